package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/pkg/errors"
	"github.com/policyhub-service/internal/pkg/utils"
	"github.com/policyhub-service/internal/usecase"
	"github.com/policyhub-service/internal/usecase/dto"
)

// WorkspaceHandler - сессия дашборда: выбор, рисование, переходы и импорт
type WorkspaceHandler struct {
	registry     *usecase.WorkspaceRegistry
	defaultPhase domain.Phase
	logger       *zap.Logger
}

// NewWorkspaceHandler создает новый экземпляр WorkspaceHandler
func NewWorkspaceHandler(registry *usecase.WorkspaceRegistry, defaultPhase domain.Phase, logger *zap.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		registry:     registry,
		defaultPhase: defaultPhase,
		logger:       logger,
	}
}

// Open godoc
// @Summary Открыть рабочее пространство
// @Description Загружает справочник хабов муниципалитета и создаёт пустой выбор
// @Tags Workspaces
// @Accept json
// @Produce json
// @Param request body dto.OpenWorkspaceRequest true "Муниципалитет"
// @Success 201 {object} utils.SuccessResponse{data=dto.WorkspaceResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 502 {object} utils.ErrorResponse
// @Router /api/v1/workspaces [post]
func (h *WorkspaceHandler) Open(c *fiber.Ctx) error {
	var req dto.OpenWorkspaceRequest
	if err := parseRequest(c, &req); err != nil {
		return utils.SendError(c, err)
	}

	ws, err := h.registry.Open(c.UserContext(), req.Municipality)
	if err != nil {
		h.logger.Error("Failed to open workspace", zap.String("municipality", req.Municipality), zap.Error(err))
		return utils.SendError(c, err)
	}

	c.Status(fiber.StatusCreated)
	return utils.SendSuccess(c, h.view(ws, h.defaultPhase), nil)
}

// Get godoc
// @Summary Состояние рабочего пространства
// @Description Возвращает выбор, режим рисования и допустимые действия для активной фазы процесса
// @Tags Workspaces
// @Produce json
// @Param id path string true "ID рабочего пространства"
// @Param active_phase query string false "Активная фаза процесса"
// @Success 200 {object} utils.SuccessResponse{data=dto.WorkspaceResponse}
// @Failure 404 {object} utils.ErrorResponse
// @Router /api/v1/workspaces/{id} [get]
func (h *WorkspaceHandler) Get(c *fiber.Ctx) error {
	ws, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return utils.SendError(c, err)
	}
	phase, err := activePhase(c.Query("active_phase"), h.defaultPhase)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, h.view(ws, phase), nil)
}

// Close godoc
// @Summary Закрыть рабочее пространство
// @Tags Workspaces
// @Param id path string true "ID рабочего пространства"
// @Success 204
// @Router /api/v1/workspaces/{id} [delete]
func (h *WorkspaceHandler) Close(c *fiber.Ctx) error {
	h.registry.Close(c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}

// Hubs godoc
// @Summary Хабы муниципалитета
// @Description Справочник хабов рабочего пространства; перечитывается после инвалидации
// @Tags Workspaces
// @Produce json
// @Param id path string true "ID рабочего пространства"
// @Success 200 {object} utils.SuccessResponse{data=[]domain.Hub}
// @Failure 404 {object} utils.ErrorResponse
// @Router /api/v1/workspaces/{id}/hubs [get]
func (h *WorkspaceHandler) Hubs(c *fiber.Ctx) error {
	ws, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return utils.SendError(c, err)
	}

	hubs, err := ws.Directory().Hubs(c.UserContext())
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, hubs, &utils.Meta{
		Total:        len(hubs),
		RefetchCount: ws.Directory().RefetchCount(),
	})
}

// SelectedHubs godoc
// @Summary Выбранные хабы
// @Tags Workspaces
// @Produce json
// @Param id path string true "ID рабочего пространства"
// @Success 200 {object} utils.SuccessResponse{data=[]domain.Hub}
// @Router /api/v1/workspaces/{id}/selection/hubs [get]
func (h *WorkspaceHandler) SelectedHubs(c *fiber.Ctx) error {
	ws, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return utils.SendError(c, err)
	}

	hubs, err := ws.SelectedHubs(c.UserContext())
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, hubs, &utils.Meta{Total: len(hubs)})
}

// Select godoc
// @Summary Изменить выбор
// @Description Принимает массив zone_id, "new" для новой геометрии или null для сброса
// @Tags Workspaces
// @Accept json
// @Produce json
// @Param id path string true "ID рабочего пространства"
// @Param request body dto.SelectionRequest true "Выбор"
// @Success 200 {object} utils.SuccessResponse{data=dto.WorkspaceResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/workspaces/{id}/selection [put]
func (h *WorkspaceHandler) Select(c *fiber.Ctx) error {
	ws, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return utils.SendError(c, err)
	}

	var req dto.SelectionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, errors.ErrInvalidRequest.WithMessage("invalid selection: %v", err))
	}

	switch {
	case req.Selection.IsNew():
		ws.SelectNew()
	case req.Selection.HasSelection():
		ws.SelectHubs(req.Selection.IDs())
	default:
		ws.ClearSelection()
	}
	return utils.SendSuccess(c, h.view(ws, h.defaultPhase), nil)
}

// SetDrawingMode godoc
// @Summary Режим рисования
// @Tags Drawing
// @Accept json
// @Produce json
// @Param id path string true "ID рабочего пространства"
// @Param request body dto.DrawingModeRequest true "Режим: none, polygon, edit"
// @Success 200 {object} utils.SuccessResponse{data=dto.WorkspaceResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/workspaces/{id}/drawing/mode [put]
func (h *WorkspaceHandler) SetDrawingMode(c *fiber.Ctx) error {
	ws, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return utils.SendError(c, err)
	}

	var req dto.DrawingModeRequest
	if err := parseRequest(c, &req); err != nil {
		return utils.SendError(c, err)
	}

	ws.SetDrawingMode(domain.DrawingMode(req.Mode))
	return utils.SendSuccess(c, h.view(ws, h.defaultPhase), nil)
}

// AddFeature godoc
// @Summary Добавить нарисованный полигон
// @Description Полигон попадает в буфер рисования; в area хаба он запишется только при сохранении
// @Tags Drawing
// @Accept json
// @Produce json
// @Param id path string true "ID рабочего пространства"
// @Param request body dto.DrawnFeatureRequest true "GeoJSON Polygon"
// @Success 200 {object} utils.SuccessResponse{data=dto.WorkspaceResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse
// @Router /api/v1/workspaces/{id}/drawing/features [post]
func (h *WorkspaceHandler) AddFeature(c *fiber.Ctx) error {
	ws, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return utils.SendError(c, err)
	}

	var req dto.DrawnFeatureRequest
	if err := parseRequest(c, &req); err != nil {
		return utils.SendError(c, err)
	}

	g, err := geojson.UnmarshalGeometry(req.Geometry)
	if err != nil {
		return utils.SendError(c, errors.ErrInvalidGeometry)
	}
	polygon, ok := g.Geometry().(orb.Polygon)
	if !ok {
		return utils.SendError(c, errors.ErrInvalidGeometry.WithMessage("drawn feature must be a Polygon, got %s", g.Type))
	}

	if err := ws.AddDrawnFeature(polygon); err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, h.view(ws, h.defaultPhase), nil)
}

// AddPiece godoc
// @Summary Добавить ещё один полигон
// @Description Возвращает инструмент в режим рисования, сохраняя нарисованные фичи
// @Tags Drawing
// @Accept json
// @Produce json
// @Param id path string true "ID рабочего пространства"
// @Param request body dto.ActivePhaseRequest false "Активная фаза процесса"
// @Success 200 {object} utils.SuccessResponse{data=dto.WorkspaceResponse}
// @Failure 409 {object} utils.ErrorResponse
// @Router /api/v1/workspaces/{id}/drawing/pieces [post]
func (h *WorkspaceHandler) AddPiece(c *fiber.Ctx) error {
	ws, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return utils.SendError(c, err)
	}

	var req dto.ActivePhaseRequest
	if len(c.Body()) > 0 {
		if err := parseRequest(c, &req); err != nil {
			return utils.SendError(c, err)
		}
	}
	phase, err := activePhase(req.ActivePhase, h.defaultPhase)
	if err != nil {
		return utils.SendError(c, err)
	}

	if err := ws.AddPolygonPiece(phase); err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, h.view(ws, phase), nil)
}

// SaveDrawing godoc
// @Summary Сохранить нарисованную геометрию
// @Description Создаёт concept хаб для выбора "new" или заменяет area выбранного концепта
// @Tags Drawing
// @Accept json
// @Produce json
// @Param id path string true "ID рабочего пространства"
// @Param request body dto.SaveDrawingRequest true "Имя и тип зоны"
// @Success 200 {object} utils.SuccessResponse{data=dto.SaveDrawingResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse
// @Router /api/v1/workspaces/{id}/drawing/save [post]
func (h *WorkspaceHandler) SaveDrawing(c *fiber.Ctx) error {
	ws, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return utils.SendError(c, err)
	}

	var req dto.SaveDrawingRequest
	if err := parseRequest(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	phase, err := activePhase(req.ActivePhase, h.defaultPhase)
	if err != nil {
		return utils.SendError(c, err)
	}

	saved, err := ws.SaveDrawing(c.UserContext(), phase, req.Name, domain.GeographyType(req.GeographyType))
	if err != nil {
		return utils.SendError(c, err)
	}

	return utils.SendSuccess(c, dto.SaveDrawingResponse{
		Hub:       saved,
		Workspace: h.view(ws, phase),
	}, &utils.Meta{RefetchCount: ws.Directory().RefetchCount()})
}

// Execute godoc
// @Summary Выполнить переход фазы
// @Description Выполняет commit, revert, derive_new_concept или propose_retirement над текущим выбором. Revert и propose_retirement требуют confirmed=true.
// @Tags Transitions
// @Accept json
// @Produce json
// @Param id path string true "ID рабочего пространства"
// @Param request body dto.ExecuteActionRequest true "Действие"
// @Success 200 {object} utils.SuccessResponse{data=dto.WorkspaceResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 409 {object} utils.ErrorResponse
// @Failure 428 {object} utils.ErrorResponse
// @Failure 502 {object} utils.ErrorResponse
// @Router /api/v1/workspaces/{id}/actions [post]
func (h *WorkspaceHandler) Execute(c *fiber.Ctx) error {
	ws, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return utils.SendError(c, err)
	}

	var req dto.ExecuteActionRequest
	if err := parseRequest(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	action, err := domain.ParseAction(req.Action)
	if err != nil {
		return utils.SendError(c, errors.ErrInvalidRequest.WithMessage("%v", err))
	}
	phase, err := activePhase(req.ActivePhase, h.defaultPhase)
	if err != nil {
		return utils.SendError(c, err)
	}

	if err := ws.Execute(c.UserContext(), action, phase, req.Confirmed); err != nil {
		h.logger.Warn("Action failed",
			zap.String("workspace_id", ws.ID()),
			zap.String("action", string(action)),
			zap.Error(err))
		return utils.SendError(c, err)
	}

	return utils.SendSuccess(c, h.view(ws, phase), &utils.Meta{
		RefetchCount: ws.Directory().RefetchCount(),
	})
}

// PreprocessImport godoc
// @Summary Разобрать геометрический пакет
// @Description Разбирает GeoJSON FeatureCollection и помечает зоны вне границ муниципалитета. Ничего не записывает.
// @Tags Import
// @Accept json
// @Accept mpfd
// @Produce json
// @Param id path string true "ID рабочего пространства"
// @Param file formData file false "GeoJSON пакет"
// @Success 200 {object} utils.SuccessResponse{data=dto.PreprocessResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/workspaces/{id}/import/preprocess [post]
func (h *WorkspaceHandler) PreprocessImport(c *fiber.Ctx) error {
	ws, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return utils.SendError(c, err)
	}

	file, err := readPackage(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	drafts, err := ws.PreprocessImport(c.UserContext(), file)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, preprocessResponse(drafts), &utils.Meta{Total: len(drafts)})
}

// ConfirmImport godoc
// @Summary Импортировать выбранные зоны
// @Description Создаёт или обновляет concept хабы по geography_id. Зоны вне границ отклоняются.
// @Tags Import
// @Accept json
// @Produce json
// @Param id path string true "ID рабочего пространства"
// @Param request body dto.ConfirmImportRequest true "Выбранные geography_id"
// @Success 200 {object} utils.SuccessResponse{data=domain.ImportResult}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Router /api/v1/workspaces/{id}/import/confirm [post]
func (h *WorkspaceHandler) ConfirmImport(c *fiber.Ctx) error {
	ws, err := h.registry.Get(c.Params("id"))
	if err != nil {
		return utils.SendError(c, err)
	}

	var req dto.ConfirmImportRequest
	if err := parseRequest(c, &req); err != nil {
		return utils.SendError(c, err)
	}

	result, err := ws.ConfirmImport(c.UserContext(), req.GeographyIDs)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, result, importMeta(result, ws.Directory().RefetchCount()))
}

func (h *WorkspaceHandler) view(ws *usecase.Workspace, phase domain.Phase) dto.WorkspaceResponse {
	actions := ws.EligibleActions(phase)
	dir := ws.Directory()
	return dto.WorkspaceResponse{
		ID:              ws.ID(),
		Municipality:    ws.Municipality(),
		Selection:       ws.Selection(),
		DrawingMode:     ws.DrawingMode(),
		DrawnFeatures:   ws.DrawnFeatures(),
		PendingImport:   len(ws.PendingImport()),
		ActivePhase:     phase,
		EligibleActions: actions,
		Actions:         actions.Actions(),
		RefetchCount:    dir.RefetchCount(),
		Stale:           dir.IsStale(),
	}
}

func preprocessResponse(drafts []domain.DraftImportZone) dto.PreprocessResponse {
	selectable := 0
	for _, d := range drafts {
		if d.Selectable() {
			selectable++
		}
	}
	return dto.PreprocessResponse{Zones: drafts, Selectable: selectable}
}

func importMeta(result *domain.ImportResult, refetchCount int64) *utils.Meta {
	return &utils.Meta{
		Created:      len(result.Created),
		Modified:     len(result.Modified),
		Failed:       len(result.Error),
		RefetchCount: refetchCount,
	}
}
