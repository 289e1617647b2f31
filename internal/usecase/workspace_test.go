package usecase_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/pkg/errors"
	"github.com/policyhub-service/internal/usecase"
)

// openWorkspace собирает рабочее пространство поверх HubService и in-memory хранилища
func openWorkspace(t *testing.T, hubs ...domain.Hub) (*usecase.Workspace, *memoryHubStore, *usecase.WorkspaceRegistry) {
	t.Helper()

	store := newMemoryHubStore(hubs...)
	svc, _ := newHubService(store)
	logger := zap.NewNop()
	registry := usecase.NewWorkspaceRegistry(
		svc,
		usecase.NewTransitionUseCase(svc, logger),
		usecase.NewImportUseCase(svc, logger),
		logger,
	)

	ws, err := registry.Open(context.Background(), "utrecht")
	require.NoError(t, err)
	return ws, store, registry
}

func TestWorkspace_ScenarioConceptStop(t *testing.T) {
	ws, _, _ := openWorkspace(t, hub(1, "a", domain.PhaseConcept, domain.GeographyTypeStop))

	ws.SelectHubs([]int64{1})
	actions := ws.EligibleActions(domain.PhaseConcept)

	assert.Equal(t, []domain.Action{domain.ActionCommit}, actions.Actions())
	assert.True(t, actions.HasExactlyOneSelection)
}

func TestWorkspace_ScenarioActiveHubDerive(t *testing.T) {
	ws, store, _ := openWorkspace(t, hub(1, "a", domain.PhaseActive, domain.GeographyTypeStop))
	ctx := context.Background()

	ws.SelectHubs([]int64{1})
	actions := ws.EligibleActions(domain.PhaseActive)
	assert.ElementsMatch(t,
		[]domain.Action{domain.ActionDeriveNewConcept, domain.ActionProposeRetirement},
		actions.Actions())

	require.NoError(t, ws.Execute(ctx, domain.ActionDeriveNewConcept, domain.PhaseActive, false))

	hubs, err := ws.Directory().Hubs(ctx)
	require.NoError(t, err)
	require.Len(t, hubs, 2)
	assert.Equal(t, domain.PhaseActive, store.get(1).Phase)
	assert.Equal(t, domain.PhaseConcept, hubs[1].Phase)
	assert.Equal(t, int64(1), ws.Directory().RefetchCount())
}

func TestWorkspace_ProposeRetirementNeedsConfirmation(t *testing.T) {
	ws, store, _ := openWorkspace(t, hub(1, "a", domain.PhasePublished, domain.GeographyTypeStop))
	ctx := context.Background()

	ws.SelectHubs([]int64{1})
	err := ws.Execute(ctx, domain.ActionProposeRetirement, domain.PhasePublished, false)
	assert.ErrorIs(t, err, errors.ErrConfirmationRequired)
	assert.Len(t, store.byGeography("a"), 1)

	require.NoError(t, ws.Execute(ctx, domain.ActionProposeRetirement, domain.PhasePublished, true))
	assert.Len(t, store.byGeography("a"), 2)
}

func TestWorkspace_DrawMultiPolygon(t *testing.T) {
	ws, store, _ := openWorkspace(t)
	ctx := context.Background()

	ws.SetDrawingMode(domain.DrawingModePolygon)
	assert.True(t, ws.Selection().IsNew())

	require.NoError(t, ws.AddDrawnFeature(square(1, 1, 2, 2)))
	assert.Equal(t, domain.DrawingModeEdit, ws.DrawingMode())

	require.NoError(t, ws.AddPolygonPiece(domain.PhaseConcept))
	assert.Equal(t, domain.DrawingModePolygon, ws.DrawingMode())
	require.NoError(t, ws.AddDrawnFeature(square(4, 4, 5, 5)))
	assert.Equal(t, 2, ws.DrawnFeatures())

	saved, err := ws.SaveDrawing(ctx, domain.PhaseConcept, "Station square", domain.GeographyTypeStop)
	require.NoError(t, err)

	mp, ok := store.get(saved.ZoneID).Area.Geometry().(orb.MultiPolygon)
	require.True(t, ok)
	assert.Len(t, mp, 2)
	assert.Equal(t, domain.PhaseConcept, saved.Phase)

	assert.Zero(t, ws.DrawnFeatures())
	assert.Equal(t, []int64{saved.ZoneID}, ws.Selection().IDs())
	assert.Equal(t, domain.DrawingModeNone, ws.DrawingMode())
}

func TestWorkspace_ReplaceConceptArea(t *testing.T) {
	ws, store, _ := openWorkspace(t, hub(1, "a", domain.PhaseConcept, domain.GeographyTypeNoParking))
	ctx := context.Background()

	ws.SelectHubs([]int64{1})
	ws.SetDrawingMode(domain.DrawingModePolygon)
	require.NoError(t, ws.AddDrawnFeature(square(6, 6, 8, 8)))

	saved, err := ws.SaveDrawing(ctx, domain.PhaseConcept, "", "")
	require.NoError(t, err)

	assert.Equal(t, int64(1), saved.ZoneID)
	after := store.get(1)
	assert.Equal(t, "Hub a", after.Name)
	assert.Equal(t, domain.GeographyTypeNoParking, after.GeographyType)
	assert.True(t, orb.Equal(square(6, 6, 8, 8), after.Geometry()))
}

func TestWorkspace_DrawingGuards(t *testing.T) {
	ws, _, _ := openWorkspace(t, hub(1, "a", domain.PhaseActive, domain.GeographyTypeStop))
	ctx := context.Background()

	// Без нарисованной фичи
	err := ws.AddPolygonPiece(domain.PhaseConcept)
	assert.ErrorIs(t, err, errors.ErrActionNotEligible)

	// Инструмент не в режиме рисования
	err = ws.AddDrawnFeature(square(1, 1, 2, 2))
	assert.ErrorIs(t, err, errors.ErrActionNotEligible)
	assert.Zero(t, ws.DrawnFeatures())

	// Геометрию live-хаба заменить нельзя
	ws.SelectHubs([]int64{1})
	ws.SetDrawingMode(domain.DrawingModePolygon)
	require.NoError(t, ws.AddDrawnFeature(square(1, 1, 2, 2)))
	_, err = ws.SaveDrawing(ctx, domain.PhaseActive, "x", domain.GeographyTypeStop)
	assert.ErrorIs(t, err, errors.ErrActionNotEligible)
	assert.Equal(t, 1, ws.DrawnFeatures())

	ws.SetDrawingMode(domain.DrawingModePolygon)
	err = ws.AddDrawnFeature(orb.Polygon{orb.Ring{{0, 0}, {1, 1}}})
	assert.ErrorIs(t, err, errors.ErrInvalidGeometry)
}

func TestWorkspace_SelectHubsDiscardsUnsavedDrawing(t *testing.T) {
	ws, _, _ := openWorkspace(t, hub(1, "a", domain.PhaseConcept, domain.GeographyTypeStop))

	ws.SelectNew()
	ws.SetDrawingMode(domain.DrawingModePolygon)
	require.NoError(t, ws.AddDrawnFeature(square(1, 1, 2, 2)))

	ws.SelectHubs([]int64{1})
	assert.Zero(t, ws.DrawnFeatures())
	assert.Nil(t, ws.PendingGeometry())
	assert.Equal(t, domain.DrawingModeNone, ws.DrawingMode())
}

func TestWorkspace_SaveDrawingFailureKeepsBuffer(t *testing.T) {
	repo := new(MockHubRepository)
	repo.On("FetchHubs", mock.Anything, "utrecht").Return([]domain.Hub{}, nil)
	repo.On("SaveHub", mock.Anything, mock.Anything).Return(nil, stderrors.New("timeout"))

	logger := zap.NewNop()
	dir := usecase.NewHubDirectory(repo, "utrecht", logger)
	ws := usecase.NewWorkspace(repo, dir,
		usecase.NewTransitionUseCase(repo, logger),
		usecase.NewImportUseCase(repo, logger),
		logger)
	_, err := dir.Hubs(context.Background())
	require.NoError(t, err)

	ws.SetDrawingMode(domain.DrawingModePolygon)
	require.NoError(t, ws.AddDrawnFeature(square(1, 1, 2, 2)))

	_, err = ws.SaveDrawing(context.Background(), domain.PhaseConcept, "Drawn", domain.GeographyTypeStop)
	require.Error(t, err)

	assert.Equal(t, 1, ws.DrawnFeatures())
	assert.True(t, ws.Selection().IsNew())
	assert.Zero(t, dir.RefetchCount())
}

func TestWorkspace_ImportFlow(t *testing.T) {
	ws, store, _ := openWorkspace(t)
	ctx := context.Background()

	drafts, err := ws.PreprocessImport(ctx, zonePackage(
		zoneFeature("z1", "One", 1, 1, 2, 2),
		zoneFeature("z2", "Two", 3, 3, 4, 4),
		zoneFeature("z3", "Outside", 20, 20, 21, 21),
	))
	require.NoError(t, err)
	require.Len(t, drafts, 3)

	// Зона вне границ отклоняет подтверждение целиком
	_, err = ws.ConfirmImport(ctx, []string{"z1", "z3"})
	assert.ErrorIs(t, err, errors.ErrZoneOutsideBorders)
	assert.Zero(t, store.writeCount())

	result, err := ws.ConfirmImport(ctx, []string{"z1", "z2"})
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
	assert.Empty(t, result.Error)
	assert.Empty(t, ws.PendingImport())

	hubs, err := ws.Directory().Hubs(ctx)
	require.NoError(t, err)
	assert.Len(t, hubs, 2)
}

func TestWorkspace_ConfirmImportValidation(t *testing.T) {
	ws, _, _ := openWorkspace(t)
	ctx := context.Background()

	_, err := ws.ConfirmImport(ctx, []string{"z1"})
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)

	_, err = ws.PreprocessImport(ctx, zonePackage(zoneFeature("z1", "One", 1, 1, 2, 2)))
	require.NoError(t, err)

	_, err = ws.ConfirmImport(ctx, nil)
	assert.ErrorIs(t, err, errors.ErrEmptySelection)

	_, err = ws.ConfirmImport(ctx, []string{"nope"})
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)

	_, err = ws.PreprocessImport(ctx, nil)
	assert.ErrorIs(t, err, errors.ErrMalformedPackage)
}

func TestWorkspaceRegistry(t *testing.T) {
	ws, _, registry := openWorkspace(t)

	got, err := registry.Get(ws.ID())
	require.NoError(t, err)
	assert.Same(t, ws, got)

	other, err := registry.Open(context.Background(), "utrecht")
	require.NoError(t, err)
	assert.NotEqual(t, ws.ID(), other.ID())
	assert.Same(t, ws.Directory(), other.Directory())

	assert.True(t, registry.InvalidateMunicipality("utrecht"))
	assert.False(t, registry.InvalidateMunicipality("amsterdam"))
	assert.True(t, ws.Directory().IsStale())

	registry.Close(ws.ID())
	_, err = registry.Get(ws.ID())
	assert.ErrorIs(t, err, errors.ErrWorkspaceNotFound)

	_, err = registry.Open(context.Background(), "")
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)
}
