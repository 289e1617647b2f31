package usecase_test

import (
	"context"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/mock"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/domain/repository"
	"github.com/policyhub-service/internal/pkg/errors"
)

// memoryHubStore - in-memory HubStore для тестов HubService
type memoryHubStore struct {
	mu      sync.Mutex
	hubs    map[int64]domain.Hub
	nextID  int64
	failErr error
	writes  int

	// failCreateFor - ошибка Create для конкретного geography_id
	failCreateFor map[string]error
}

var _ repository.HubStore = (*memoryHubStore)(nil)

func newMemoryHubStore(hubs ...domain.Hub) *memoryHubStore {
	s := &memoryHubStore{hubs: make(map[int64]domain.Hub), nextID: 1}
	for _, h := range hubs {
		if h.ZoneID >= s.nextID {
			s.nextID = h.ZoneID + 1
		}
		s.hubs[h.ZoneID] = h
	}
	return s
}

func (s *memoryHubStore) ListByMunicipality(_ context.Context, municipality string) ([]domain.Hub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Hub
	for _, h := range s.hubs {
		if h.Municipality == municipality {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ZoneID < out[j].ZoneID })
	return out, nil
}

func (s *memoryHubStore) ListByGeographyIDs(_ context.Context, geographyIDs []string) ([]domain.Hub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]bool, len(geographyIDs))
	for _, id := range geographyIDs {
		wanted[id] = true
	}
	var out []domain.Hub
	for _, h := range s.hubs {
		if wanted[h.GeographyID] {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ZoneID < out[j].ZoneID })
	return out, nil
}

func (s *memoryHubStore) GetByZoneID(_ context.Context, zoneID int64) (*domain.Hub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hubs[zoneID]
	if !ok {
		return nil, errors.ErrHubNotFound
	}
	return &h, nil
}

func (s *memoryHubStore) Create(_ context.Context, hub domain.Hub) (*domain.Hub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return nil, s.failErr
	}
	if err := s.failCreateFor[hub.GeographyID]; err != nil {
		return nil, err
	}
	// Как частичный уникальный индекс: один черновик на geography_id
	if hub.Phase.IsDraft() {
		for _, h := range s.hubs {
			if h.Municipality == hub.Municipality && h.GeographyID == hub.GeographyID && h.Phase.IsDraft() {
				return nil, errors.ErrDraftAlreadyExists
			}
		}
	}
	hub.ZoneID = s.nextID
	s.nextID++
	s.hubs[hub.ZoneID] = hub
	s.writes++
	return &hub, nil
}

func (s *memoryHubStore) Update(_ context.Context, hub domain.Hub) (*domain.Hub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return nil, s.failErr
	}
	stored, ok := s.hubs[hub.ZoneID]
	if !ok {
		return nil, errors.ErrHubNotFound
	}
	if stored.Phase != domain.PhaseConcept {
		return nil, errors.ErrInvalidTransition
	}
	s.hubs[hub.ZoneID] = hub
	s.writes++
	return &hub, nil
}

func (s *memoryHubStore) UpdatePhases(_ context.Context, changes []repository.PhaseChange, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		return s.failErr
	}
	for _, c := range changes {
		h, ok := s.hubs[c.ZoneID]
		if !ok || h.Phase != c.From {
			return errors.ErrInvalidTransition
		}
	}
	for _, c := range changes {
		h := s.hubs[c.ZoneID]
		h.Phase = c.To
		h.LastModifiedBy = actor
		s.hubs[c.ZoneID] = h
		s.writes++
	}
	return nil
}

func (s *memoryHubStore) get(zoneID int64) domain.Hub {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hubs[zoneID]
}

func (s *memoryHubStore) byGeography(geographyID string) []domain.Hub {
	hubs, _ := s.ListByGeographyIDs(context.Background(), []string{geographyID})
	return hubs
}

func (s *memoryHubStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// staticBorders - граница каждого муниципалитета: квадрат 0..10
type staticBorders struct{}

func (staticBorders) GetBorder(_ context.Context, municipality string) (*domain.MunicipalityBorder, error) {
	if municipality == "" || municipality == "unknown" {
		return nil, errors.ErrBorderNotFound
	}
	return &domain.MunicipalityBorder{
		Municipality: municipality,
		Area:         orb.MultiPolygon{square(0, 0, 10, 10)},
	}, nil
}

func (staticBorders) SaveBorder(context.Context, domain.MunicipalityBorder) error {
	return nil
}

// recordingStream запоминает опубликованные события
type recordingStream struct {
	mu     sync.Mutex
	events []domain.HubsChangedEvent
}

func (r *recordingStream) ConsumeBatch(context.Context, string, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (r *recordingStream) AckMessages(context.Context, string, string, []string) error {
	return nil
}

func (r *recordingStream) CreateConsumerGroup(context.Context, string, string) error {
	return nil
}

func (r *recordingStream) PublishToStream(_ context.Context, _ string, data interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := data.(domain.HubsChangedEvent); ok {
		r.events = append(r.events, e)
	}
	return nil
}

// MockHubRepository - testify mock для клиентской части движка
type MockHubRepository struct {
	mock.Mock
}

func (m *MockHubRepository) FetchHubs(ctx context.Context, municipality string) ([]domain.Hub, error) {
	args := m.Called(ctx, municipality)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Hub), args.Error(1)
}

func (m *MockHubRepository) Commit(ctx context.Context, geographyIDs []string) error {
	return m.Called(ctx, geographyIDs).Error(0)
}

func (m *MockHubRepository) MakeConcept(ctx context.Context, geographyIDs []string) error {
	return m.Called(ctx, geographyIDs).Error(0)
}

func (m *MockHubRepository) DeriveConcept(ctx context.Context, geographyIDs []string) error {
	return m.Called(ctx, geographyIDs).Error(0)
}

func (m *MockHubRepository) ProposeRetirement(ctx context.Context, geographyIDs []string) error {
	return m.Called(ctx, geographyIDs).Error(0)
}

func (m *MockHubRepository) SaveHub(ctx context.Context, hub domain.Hub) (*domain.Hub, error) {
	args := m.Called(ctx, hub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Hub), args.Error(1)
}

func (m *MockHubRepository) PreprocessGeometryPackage(ctx context.Context, municipality string, file []byte) ([]domain.DraftImportZone, error) {
	args := m.Called(ctx, municipality, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DraftImportZone), args.Error(1)
}

func (m *MockHubRepository) ImportGeometryPackage(ctx context.Context, municipality string, zones []domain.DraftZone) (*domain.ImportResult, error) {
	args := m.Called(ctx, municipality, zones)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ImportResult), args.Error(1)
}

func square(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

func area(p orb.Polygon) *geojson.Geometry {
	return geojson.NewGeometry(p)
}

func hub(zoneID int64, geographyID string, phase domain.Phase, gt domain.GeographyType) domain.Hub {
	return domain.Hub{
		ZoneID:        zoneID,
		GeographyID:   geographyID,
		Name:          "Hub " + geographyID,
		GeographyType: gt,
		Phase:         phase,
		Municipality:  "utrecht",
		Area:          area(square(1, 1, 2, 2)),
	}
}

func zonePackage(zones ...string) []byte {
	out := `{"type":"FeatureCollection","features":[`
	for i, z := range zones {
		if i > 0 {
			out += ","
		}
		out += z
	}
	return []byte(out + "]}")
}

func zoneFeature(geographyID, name string, x0, y0, x1, y1 float64) string {
	f := geojson.NewFeature(square(x0, y0, x1, y1))
	f.Properties["geography_id"] = geographyID
	f.Properties["name"] = name
	data, _ := f.MarshalJSON()
	return string(data)
}
