package usecase

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/domain/repository"
	"github.com/policyhub-service/internal/pkg/errors"
	"github.com/policyhub-service/internal/pkg/geo"
)

// Workspace - состояние одного оператора: выбор, режим рисования, буфер
// нарисованной геометрии и ожидающий подтверждения импорт. Операции
// сериализуются, как в однопоточном UI.
type Workspace struct {
	id          string
	repo        repository.HubRepository
	directory   *HubDirectory
	transitions *TransitionUseCase
	imports     *ImportUseCase
	logger      *zap.Logger

	mu            sync.Mutex
	selection     domain.Selection
	drawingMode   domain.DrawingMode
	drawing       domain.DrawingBuffer
	pendingImport []domain.DraftImportZone
}

// NewWorkspace создаёт рабочее пространство поверх общего справочника
func NewWorkspace(
	repo repository.HubRepository,
	directory *HubDirectory,
	transitions *TransitionUseCase,
	imports *ImportUseCase,
	logger *zap.Logger,
) *Workspace {
	id := uuid.NewString()
	return &Workspace{
		id:          id,
		repo:        repo,
		directory:   directory,
		transitions: transitions,
		imports:     imports,
		logger:      logger.With(zap.String("workspace_id", id)),
		drawingMode: domain.DrawingModeNone,
	}
}

func (w *Workspace) ID() string {
	return w.id
}

func (w *Workspace) Municipality() string {
	return w.directory.Municipality()
}

func (w *Workspace) Directory() *HubDirectory {
	return w.directory
}

// SelectHubs выбирает сохранённые хабы. Несохранённый рисунок отбрасывается.
func (w *Workspace) SelectHubs(ids []int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.selection.IsNew() {
		w.drawing.Reset()
		w.drawingMode = domain.DrawingModeNone
	}
	w.selection = domain.SelectIDs(ids...)
}

// SelectNew выбирает свежую геометрию. Одновременно существует не больше
// одного рисунка: предыдущий буфер очищается.
func (w *Workspace) SelectNew() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.drawing.Reset()
	w.selection = domain.SelectNewDrawing()
}

// ClearSelection снимает выбор и сбрасывает рисование
func (w *Workspace) ClearSelection() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.selection = domain.Selection{}
	w.drawing.Reset()
	w.drawingMode = domain.DrawingModeNone
}

func (w *Workspace) Selection() domain.Selection {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selection
}

// SetDrawingMode переключает инструмент рисования. Начало рисования без
// выбора выбирает сентинел "new".
func (w *Workspace) SetDrawingMode(mode domain.DrawingMode) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if mode == domain.DrawingModePolygon && !w.selection.HasSelection() {
		w.selection = domain.SelectNewDrawing()
	}
	if mode == domain.DrawingModeNone && w.selection.IsNew() && w.drawing.Len() == 0 {
		w.selection = domain.Selection{}
	}
	w.drawingMode = mode
}

func (w *Workspace) DrawingMode() domain.DrawingMode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drawingMode
}

// DrawnFeatures - количество фич в буфере рисования
func (w *Workspace) DrawnFeatures() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drawing.Len()
}

// PendingGeometry возвращает ещё не сохранённую геометрию (nil если пусто)
func (w *Workspace) PendingGeometry() orb.Geometry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drawing.Geometry()
}

// SelectedHubs возвращает выбранные хабы из справочника
func (w *Workspace) SelectedHubs(ctx context.Context) ([]domain.Hub, error) {
	hubs, err := w.directory.Hubs(ctx)
	if err != nil {
		return nil, err
	}

	sel := w.Selection()
	index := domain.IndexHubs(hubs)
	out := make([]domain.Hub, 0, len(sel.IDs()))
	for _, id := range sel.IDs() {
		if h, ok := index[id]; ok {
			out = append(out, *h)
		}
	}
	return out, nil
}

// EligibleActions оценивает допустимые действия по последнему известному
// состоянию справочника
func (w *Workspace) EligibleActions(activePhase domain.Phase) domain.ActionSet {
	w.mu.Lock()
	defer w.mu.Unlock()
	return domain.EligibleActions(w.selection, w.directory.Snapshot(), activePhase, w.drawing.Len())
}

// AddDrawnFeature добавляет нарисованный полигон в буфер. Доступно только в
// режиме рисования; после добавления инструмент переходит в режим правки.
func (w *Workspace) AddDrawnFeature(p orb.Polygon) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.drawingMode != domain.DrawingModePolygon {
		return errors.ErrActionNotEligible.WithMessage("drawing mode is %s", w.drawingMode)
	}
	g, err := geo.NormalizeArea(p)
	if err != nil {
		return errors.ErrInvalidGeometry
	}

	if !w.selection.HasSelection() {
		w.selection = domain.SelectNewDrawing()
	}
	w.drawing.Add(g.(orb.Polygon))
	w.drawingMode = domain.DrawingModeEdit
	return nil
}

// AddPolygonPiece снова входит в режим рисования, сохраняя уже нарисованные
// фичи. Без нарисованной фичи действие недопустимо и буфер не меняется.
func (w *Workspace) AddPolygonPiece(activePhase domain.Phase) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	actions := domain.EligibleActions(w.selection, w.directory.Snapshot(), activePhase, w.drawing.Len())
	if !actions.AddPolygonPiece {
		return errors.ErrActionNotEligible.WithMessage("nothing drawn yet")
	}
	w.drawingMode = domain.DrawingModePolygon
	return nil
}

// SaveDrawing записывает буфер в area: новый концепт для "new" либо замена
// геометрии выбранного концепта. При ошибке буфер сохраняется.
func (w *Workspace) SaveDrawing(
	ctx context.Context,
	activePhase domain.Phase,
	name string,
	geographyType domain.GeographyType,
) (*domain.Hub, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	hubs := w.directory.Snapshot()
	actions := domain.EligibleActions(w.selection, hubs, activePhase, w.drawing.Len())
	if !actions.SaveDrawing {
		return nil, errors.ErrActionNotEligible.WithMessage("no drawing to save for the current selection")
	}

	hub := domain.Hub{
		Name:          name,
		GeographyType: geographyType,
		Phase:         domain.PhaseConcept,
		Municipality:  w.directory.Municipality(),
		Area:          geojson.NewGeometry(w.drawing.Geometry()),
	}
	if !w.selection.IsNew() {
		existing := domain.IndexHubs(hubs)[w.selection.IDs()[0]]
		hub.ZoneID = existing.ZoneID
		hub.GeographyID = existing.GeographyID
		hub.Stop = existing.Stop
		if hub.Name == "" {
			hub.Name = existing.Name
		}
		if hub.GeographyType == "" {
			hub.GeographyType = existing.GeographyType
		}
	}

	saved, err := w.repo.SaveHub(ctx, hub)
	if err != nil {
		w.logger.Error("Failed to save drawing", zap.Error(err))
		return nil, err
	}

	w.drawing.Reset()
	w.drawingMode = domain.DrawingModeNone
	w.selection = domain.SelectIDs(saved.ZoneID)
	w.directory.invalidateAndRefetch(ctx)

	w.logger.Info("Drawing saved",
		zap.Int64("zone_id", saved.ZoneID),
		zap.String("geography_id", saved.GeographyID))
	return saved, nil
}

// Execute выполняет переход фазы для текущего выбора
func (w *Workspace) Execute(ctx context.Context, action domain.Action, activePhase domain.Phase, confirmed bool) error {
	sel := w.Selection()
	return w.transitions.Execute(ctx, w.directory, TransitionRequest{
		Action:      action,
		Selection:   sel,
		ActivePhase: activePhase,
		Confirmed:   confirmed,
	})
}

// PreprocessImport разбирает пакет и запоминает черновики до подтверждения
func (w *Workspace) PreprocessImport(ctx context.Context, file []byte) ([]domain.DraftImportZone, error) {
	drafts, err := w.imports.Preprocess(ctx, w.directory.Municipality(), file)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.pendingImport = drafts
	w.mu.Unlock()
	return drafts, nil
}

// PendingImport возвращает черновики, ожидающие подтверждения
func (w *Workspace) PendingImport() []domain.DraftImportZone {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]domain.DraftImportZone, len(w.pendingImport))
	copy(out, w.pendingImport)
	return out
}

// ConfirmImport импортирует выбранные черновики. Черновики очищаются только
// после ответа репозитория.
func (w *Workspace) ConfirmImport(ctx context.Context, geographyIDs []string) (*domain.ImportResult, error) {
	drafts := w.PendingImport()
	if len(drafts) == 0 {
		return nil, errors.ErrInvalidRequest.WithMessage("no preprocessed geometry package")
	}

	result, err := w.imports.Confirm(ctx, w.directory, drafts, geographyIDs)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.pendingImport = nil
	w.mu.Unlock()
	return result, nil
}

// WorkspaceRegistry хранит рабочие пространства и общие справочники
// муниципалитетов
type WorkspaceRegistry struct {
	repo        repository.HubRepository
	transitions *TransitionUseCase
	imports     *ImportUseCase
	logger      *zap.Logger

	mu          sync.RWMutex
	workspaces  map[string]*Workspace
	directories map[string]*HubDirectory
}

func NewWorkspaceRegistry(
	repo repository.HubRepository,
	transitions *TransitionUseCase,
	imports *ImportUseCase,
	logger *zap.Logger,
) *WorkspaceRegistry {
	return &WorkspaceRegistry{
		repo:        repo,
		transitions: transitions,
		imports:     imports,
		logger:      logger,
		workspaces:  make(map[string]*Workspace),
		directories: make(map[string]*HubDirectory),
	}
}

// Open создаёт рабочее пространство и загружает справочник муниципалитета
func (r *WorkspaceRegistry) Open(ctx context.Context, municipality string) (*Workspace, error) {
	if municipality == "" {
		return nil, errors.ErrInvalidRequest.WithMessage("municipality is required")
	}

	dir := r.Directory(municipality)
	if _, err := dir.Hubs(ctx); err != nil {
		return nil, err
	}

	ws := NewWorkspace(r.repo, dir, r.transitions, r.imports, r.logger)

	r.mu.Lock()
	r.workspaces[ws.ID()] = ws
	r.mu.Unlock()

	r.logger.Info("Workspace opened",
		zap.String("workspace_id", ws.ID()),
		zap.String("municipality", municipality))
	return ws, nil
}

// Get возвращает рабочее пространство по id
func (r *WorkspaceRegistry) Get(id string) (*Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ws, ok := r.workspaces[id]
	if !ok {
		return nil, errors.ErrWorkspaceNotFound
	}
	return ws, nil
}

// Close удаляет рабочее пространство
func (r *WorkspaceRegistry) Close(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workspaces, id)
}

// Directory возвращает общий справочник муниципалитета
func (r *WorkspaceRegistry) Directory(municipality string) *HubDirectory {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir, ok := r.directories[municipality]
	if !ok {
		dir = NewHubDirectory(r.repo, municipality, r.logger)
		r.directories[municipality] = dir
	}
	return dir
}

// InvalidateMunicipality инвалидирует справочник после внешнего изменения
// (событие из стрима). Возвращает false, если справочник ещё не открывался.
func (r *WorkspaceRegistry) InvalidateMunicipality(municipality string) bool {
	r.mu.RLock()
	dir, ok := r.directories[municipality]
	r.mu.RUnlock()

	if !ok {
		return false
	}
	dir.Invalidate()
	return true
}
