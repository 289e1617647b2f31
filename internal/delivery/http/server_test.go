package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	nethttp "net/http"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/policyhub-service/internal/config"
	delivery "github.com/policyhub-service/internal/delivery/http"
	"github.com/policyhub-service/internal/delivery/http/handler"
	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/infrastructure/hubapi"
	"github.com/policyhub-service/internal/pkg/errors"
	"github.com/policyhub-service/internal/usecase"
)

const editToken = "edit-secret"

// fakeRepo - HubRepository в памяти: commit и make_concept меняют фазы на месте,
// derive всегда упирается в существующий черновик
type fakeRepo struct {
	mu     sync.Mutex
	hubs   []domain.Hub
	actors []string
}

func newFakeRepo() *fakeRepo {
	ring := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	mk := func(id int64, gid string, phase domain.Phase, gt domain.GeographyType) domain.Hub {
		return domain.Hub{
			ZoneID: id, GeographyID: gid, Name: gid, Phase: phase, GeographyType: gt,
			Municipality: "GM0599", Area: geojson.NewGeometry(orb.Polygon{ring}),
		}
	}
	return &fakeRepo{hubs: []domain.Hub{
		mk(1, "a", domain.PhaseConcept, domain.GeographyTypeStop),
		mk(2, "b", domain.PhaseConcept, domain.GeographyTypeStop),
		mk(3, "c", domain.PhaseCommittedConcept, domain.GeographyTypeNoParking),
		mk(4, "d", domain.PhaseConcept, domain.GeographyTypeMonitoring),
	}}
}

func (r *fakeRepo) FetchHubs(_ context.Context, municipality string) ([]domain.Hub, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Hub, 0, len(r.hubs))
	for _, h := range r.hubs {
		if h.Municipality == municipality {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *fakeRepo) move(ctx context.Context, ids []string, from, to domain.Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actors = append(r.actors, usecase.ActorFromContext(ctx))
	for _, id := range ids {
		found := false
		for i := range r.hubs {
			if r.hubs[i].GeographyID == id && r.hubs[i].Phase == from {
				r.hubs[i].Phase = to
				found = true
			}
		}
		if !found {
			return errors.ErrInvalidTransition
		}
	}
	return nil
}

func (r *fakeRepo) Commit(ctx context.Context, ids []string) error {
	return r.move(ctx, ids, domain.PhaseConcept, domain.PhaseCommittedConcept)
}

func (r *fakeRepo) MakeConcept(ctx context.Context, ids []string) error {
	return r.move(ctx, ids, domain.PhaseCommittedConcept, domain.PhaseConcept)
}

func (r *fakeRepo) DeriveConcept(context.Context, []string) error {
	return errors.ErrDraftAlreadyExists
}

func (r *fakeRepo) ProposeRetirement(context.Context, []string) error {
	return errors.ErrMonitoringHubNotAllowed
}

func (r *fakeRepo) SaveHub(_ context.Context, hub domain.Hub) (*domain.Hub, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hub.ZoneID = int64(len(r.hubs) + 1)
	if hub.GeographyID == "" {
		hub.GeographyID = "drawn"
	}
	hub.Phase = domain.PhaseConcept
	r.hubs = append(r.hubs, hub)
	return &hub, nil
}

func (r *fakeRepo) PreprocessGeometryPackage(context.Context, string, []byte) ([]domain.DraftImportZone, error) {
	return nil, errors.ErrMalformedPackage
}

func (r *fakeRepo) ImportGeometryPackage(context.Context, string, []domain.DraftZone) (*domain.ImportResult, error) {
	return domain.NewImportResult(), nil
}

func (r *fakeRepo) phase(zoneID int64) domain.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.hubs {
		if h.ZoneID == zoneID {
			return h.Phase
		}
	}
	return 0
}

func (r *fakeRepo) actorLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.actors...)
}

func newTestServer(t *testing.T, repo *fakeRepo) *delivery.Server {
	t.Helper()

	logger := zap.NewNop()
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", EditToken: editToken, BodyLimit: 1024 * 1024},
		HubAPI: config.HubAPIConfig{Backend: config.HubBackendPostgres},
	}
	registry := usecase.NewWorkspaceRegistry(
		repo,
		usecase.NewTransitionUseCase(repo, logger),
		usecase.NewImportUseCase(repo, logger),
		logger,
	)
	return delivery.NewServer(cfg, logger,
		handler.NewWorkspaceHandler(registry, domain.PhaseConcept, logger),
		handler.NewHubHandler(repo, nil, logger),
	)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]int  `json:"meta"`
	Error *struct {
		Code    string                 `json:"code"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func call(t *testing.T, s *delivery.Server, method, path string, body interface{}, token string) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := nethttp.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", "anna")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func openWorkspace(t *testing.T, s *delivery.Server) string {
	t.Helper()

	status, env := call(t, s, nethttp.MethodPost, "/api/v1/workspaces", map[string]string{"municipality": "GM0599"}, "")
	require.Equal(t, nethttp.StatusCreated, status)

	var ws struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ws))
	require.NotEmpty(t, ws.ID)
	return ws.ID
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, newFakeRepo())

	status, _ := call(t, s, nethttp.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, nethttp.StatusOK, status)
}

func TestServer_OpenWorkspace_Validation(t *testing.T) {
	s := newTestServer(t, newFakeRepo())

	status, env := call(t, s, nethttp.MethodPost, "/api/v1/workspaces", map[string]string{}, "")
	assert.Equal(t, nethttp.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
	assert.Equal(t, "required", env.Error.Details["municipality"])
}

func TestServer_UnknownWorkspace(t *testing.T) {
	s := newTestServer(t, newFakeRepo())

	status, env := call(t, s, nethttp.MethodGet, "/api/v1/workspaces/nope", nil, "")
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "WORKSPACE_NOT_FOUND", env.Error.Code)
}

func TestServer_SelectionAndEligibility(t *testing.T) {
	s := newTestServer(t, newFakeRepo())
	id := openWorkspace(t, s)

	status, env := call(t, s, nethttp.MethodPut, "/api/v1/workspaces/"+id+"/selection",
		map[string]interface{}{"selection": []int64{1, 2}}, "")
	require.Equal(t, nethttp.StatusOK, status)

	var view struct {
		Selection []int64         `json:"selection"`
		Actions   []domain.Action `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, []int64{1, 2}, view.Selection)
	assert.Equal(t, []domain.Action{domain.ActionCommit}, view.Actions)

	// Хаб monitoring блокирует commit для всего выбора
	_, env = call(t, s, nethttp.MethodPut, "/api/v1/workspaces/"+id+"/selection",
		map[string]interface{}{"selection": []int64{1, 4}}, "")
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Empty(t, view.Actions)
}

func TestServer_ExecuteCommit(t *testing.T) {
	repo := newFakeRepo()
	s := newTestServer(t, repo)
	id := openWorkspace(t, s)

	call(t, s, nethttp.MethodPut, "/api/v1/workspaces/"+id+"/selection",
		map[string]interface{}{"selection": []int64{1, 2}}, "")

	action := map[string]interface{}{"action": "commit"}

	status, env := call(t, s, nethttp.MethodPost, "/api/v1/workspaces/"+id+"/actions", action, "")
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
	assert.Equal(t, domain.PhaseConcept, repo.phase(1))

	status, env = call(t, s, nethttp.MethodPost, "/api/v1/workspaces/"+id+"/actions", action, editToken)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, 1, env.Meta["refetch_count"])
	assert.Equal(t, domain.PhaseCommittedConcept, repo.phase(1))
	assert.Equal(t, domain.PhaseCommittedConcept, repo.phase(2))
	assert.Equal(t, []string{"anna"}, repo.actorLog())
}

func TestServer_RevertRequiresConfirmation(t *testing.T) {
	repo := newFakeRepo()
	s := newTestServer(t, repo)
	id := openWorkspace(t, s)

	call(t, s, nethttp.MethodPut, "/api/v1/workspaces/"+id+"/selection",
		map[string]interface{}{"selection": []int64{3}}, "")

	status, env := call(t, s, nethttp.MethodPost, "/api/v1/workspaces/"+id+"/actions",
		map[string]interface{}{"action": "revert"}, editToken)
	assert.Equal(t, nethttp.StatusPreconditionRequired, status)
	assert.Equal(t, "CONFIRMATION_REQUIRED", env.Error.Code)
	assert.Equal(t, domain.PhaseCommittedConcept, repo.phase(3))

	status, _ = call(t, s, nethttp.MethodPost, "/api/v1/workspaces/"+id+"/actions",
		map[string]interface{}{"action": "revert", "confirmed": true}, editToken)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, domain.PhaseConcept, repo.phase(3))
}

func TestServer_ExecuteValidation(t *testing.T) {
	s := newTestServer(t, newFakeRepo())
	id := openWorkspace(t, s)

	status, env := call(t, s, nethttp.MethodPost, "/api/v1/workspaces/"+id+"/actions",
		map[string]interface{}{"action": "publish"}, editToken)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "hub_action", env.Error.Details["action"])

	status, env = call(t, s, nethttp.MethodPost, "/api/v1/workspaces/"+id+"/actions",
		map[string]interface{}{"action": "commit"}, editToken)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "EMPTY_SELECTION", env.Error.Code)
}

func TestServer_DrawAndSave(t *testing.T) {
	repo := newFakeRepo()
	s := newTestServer(t, repo)
	id := openWorkspace(t, s)
	base := "/api/v1/workspaces/" + id

	polygon := geojson.NewGeometry(orb.Polygon{orb.Ring{{2, 2}, {3, 2}, {3, 3}, {2, 3}, {2, 2}}})

	// Без режима рисования фича не принимается
	status, env := call(t, s, nethttp.MethodPost, base+"/drawing/features", map[string]interface{}{"geometry": polygon}, "")
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "ACTION_NOT_ELIGIBLE", env.Error.Code)

	status, _ = call(t, s, nethttp.MethodPut, base+"/drawing/mode", map[string]string{"mode": "polygon"}, "")
	require.Equal(t, nethttp.StatusOK, status)

	status, _ = call(t, s, nethttp.MethodPost, base+"/drawing/features", map[string]interface{}{"geometry": polygon}, "")
	require.Equal(t, nethttp.StatusOK, status)

	status, env = call(t, s, nethttp.MethodPost, base+"/drawing/save",
		map[string]string{"name": "Station", "geography_type": "stop"}, editToken)
	require.Equal(t, nethttp.StatusOK, status)

	var saved struct {
		Hub       domain.Hub `json:"hub"`
		Workspace struct {
			Selection     []int64 `json:"selection"`
			DrawnFeatures int     `json:"drawn_features"`
		} `json:"workspace"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	assert.Equal(t, domain.PhaseConcept, saved.Hub.Phase)
	assert.Equal(t, []int64{saved.Hub.ZoneID}, saved.Workspace.Selection)
	assert.Zero(t, saved.Workspace.DrawnFeatures)
}

func TestServer_HubsRequiresMunicipality(t *testing.T) {
	s := newTestServer(t, newFakeRepo())

	status, env := call(t, s, nethttp.MethodGet, "/api/v1/hubs", nil, "")
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
}

// Клиент hubapi поверх того же HTTP API ведёт себя как локальный репозиторий
func TestServer_RemoteClientRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	s := newTestServer(t, repo)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.App().Listener(ln) }()
	t.Cleanup(func() { _ = s.App().Shutdown() })

	client := hubapi.NewClient(&config.HubAPIConfig{
		BaseURL:        "http://" + ln.Addr().String(),
		Token:          editToken,
		RequestTimeout: 5 * time.Second,
	}, zap.NewNop())
	ctx := usecase.ContextWithActor(context.Background(), "piet")

	hubs, err := client.FetchHubs(ctx, "GM0599")
	require.NoError(t, err)
	assert.Len(t, hubs, 4)

	require.NoError(t, client.Commit(ctx, []string{"a"}))
	assert.Equal(t, domain.PhaseCommittedConcept, repo.phase(1))
	assert.Equal(t, []string{"piet"}, repo.actorLog())

	assert.ErrorIs(t, client.ProposeRetirement(ctx, []string{"a"}), errors.ErrMonitoringHubNotAllowed)
	assert.ErrorIs(t, client.DeriveConcept(ctx, []string{"c"}), errors.ErrDraftAlreadyExists)
	assert.Equal(t, domain.PhaseCommittedConcept, repo.phase(3))

	_, err = client.PreprocessGeometryPackage(ctx, "GM0599", []byte("not json"))
	assert.ErrorIs(t, err, errors.ErrMalformedPackage)

	unauthorized := hubapi.NewClient(&config.HubAPIConfig{
		BaseURL:        "http://" + ln.Addr().String(),
		RequestTimeout: 5 * time.Second,
	}, zap.NewNop())
	assert.ErrorIs(t, unauthorized.Commit(ctx, []string{"b"}), errors.ErrForbidden)
}
