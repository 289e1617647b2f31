package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/domain/repository"
	"github.com/policyhub-service/internal/pkg/errors"
	"github.com/policyhub-service/internal/pkg/geo"
	"github.com/policyhub-service/internal/pkg/utils"
	"github.com/policyhub-service/internal/usecase/dto"
)

// HubHandler - stateless API репозитория хабов. Этим же API пользуется
// клиент hubapi другого экземпляра сервиса.
type HubHandler struct {
	hubs    repository.HubRepository
	borders repository.BorderRepository
	logger  *zap.Logger
}

// NewHubHandler создает новый экземпляр HubHandler. borders может быть nil,
// если сервис работает поверх удалённого репозитория.
func NewHubHandler(hubs repository.HubRepository, borders repository.BorderRepository, logger *zap.Logger) *HubHandler {
	return &HubHandler{
		hubs:    hubs,
		borders: borders,
		logger:  logger,
	}
}

// HasBorders сообщает, доступно ли редактирование границ
func (h *HubHandler) HasBorders() bool {
	return h.borders != nil
}

// List godoc
// @Summary Хабы муниципалитета
// @Tags Hubs
// @Produce json
// @Param municipality query string true "Код муниципалитета, например GM0599"
// @Success 200 {object} utils.SuccessResponse{data=[]domain.Hub}
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/hubs [get]
func (h *HubHandler) List(c *fiber.Ctx) error {
	municipality := c.Query("municipality")
	if municipality == "" {
		return utils.SendError(c, errors.ErrInvalidRequest.WithMessage("municipality is required"))
	}

	hubs, err := h.hubs.FetchHubs(c.UserContext(), municipality)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, hubs, &utils.Meta{Total: len(hubs)})
}

// Commit godoc
// @Summary Vaststellen: зафиксировать концепты
// @Description concept -> committed_concept, retirement_concept -> committed_retirement_concept
// @Tags Hubs
// @Accept json
// @Produce json
// @Param request body dto.GeographyIDsRequest true "geography_id"
// @Success 200 {object} utils.SuccessResponse
// @Failure 422 {object} utils.ErrorResponse
// @Router /api/v1/hubs/commit [post]
func (h *HubHandler) Commit(c *fiber.Ctx) error {
	return h.transition(c, domain.ActionCommit, h.hubs.Commit)
}

// MakeConcept godoc
// @Summary Вернуть в концепт
// @Description Committed-варианты возвращаются в концепт; остальные фазы отклоняются
// @Tags Hubs
// @Accept json
// @Produce json
// @Param request body dto.GeographyIDsRequest true "geography_id"
// @Success 200 {object} utils.SuccessResponse
// @Failure 409 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Router /api/v1/hubs/make-concept [post]
func (h *HubHandler) MakeConcept(c *fiber.Ctx) error {
	return h.transition(c, domain.ActionRevert, h.hubs.MakeConcept)
}

// DeriveConcept godoc
// @Summary Nieuw concept maken
// @Description Создаёт новый концепт из live-хаба с prev_geographies; источник не меняется
// @Tags Hubs
// @Accept json
// @Produce json
// @Param request body dto.GeographyIDsRequest true "geography_id"
// @Success 200 {object} utils.SuccessResponse
// @Failure 409 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Router /api/v1/hubs/derive-concept [post]
func (h *HubHandler) DeriveConcept(c *fiber.Ctx) error {
	return h.transition(c, domain.ActionDeriveNewConcept, h.hubs.DeriveConcept)
}

// ProposeRetirement godoc
// @Summary Voorstellen voor verwijderen
// @Description Создаёт retirement_concept для live-хабов; источник не меняется
// @Tags Hubs
// @Accept json
// @Produce json
// @Param request body dto.GeographyIDsRequest true "geography_id"
// @Success 200 {object} utils.SuccessResponse
// @Failure 409 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Router /api/v1/hubs/propose-retirement [post]
func (h *HubHandler) ProposeRetirement(c *fiber.Ctx) error {
	return h.transition(c, domain.ActionProposeRetirement, h.hubs.ProposeRetirement)
}

func (h *HubHandler) transition(c *fiber.Ctx, action domain.Action, call func(context.Context, []string) error) error {
	var req dto.GeographyIDsRequest
	if err := parseRequest(c, &req); err != nil {
		return utils.SendError(c, err)
	}

	if err := call(c.UserContext(), req.GeographyIDs); err != nil {
		h.logger.Warn("Hub transition rejected",
			zap.String("action", string(action)),
			zap.Strings("geography_ids", req.GeographyIDs),
			zap.Error(err))
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, fiber.Map{"geography_ids": req.GeographyIDs}, &utils.Meta{Total: len(req.GeographyIDs)})
}

// Save godoc
// @Summary Сохранить хаб
// @Description Без zone_id создаёт concept хаб, с zone_id обновляет геометрию концепта
// @Tags Hubs
// @Accept json
// @Produce json
// @Param request body domain.Hub true "Хаб"
// @Success 200 {object} utils.SuccessResponse{data=domain.Hub}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 422 {object} utils.ErrorResponse
// @Router /api/v1/hubs [post]
func (h *HubHandler) Save(c *fiber.Ctx) error {
	var hub domain.Hub
	if err := c.BodyParser(&hub); err != nil {
		return utils.SendError(c, errors.ErrInvalidRequest.WithMessage("invalid hub: %v", err))
	}

	saved, err := h.hubs.SaveHub(c.UserContext(), hub)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, saved, nil)
}

// Preprocess godoc
// @Summary Разобрать геометрический пакет
// @Tags Hubs
// @Accept json
// @Produce json
// @Param municipality query string true "Код муниципалитета"
// @Success 200 {object} utils.SuccessResponse{data=[]domain.DraftImportZone}
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/hubs/import/preprocess [post]
func (h *HubHandler) Preprocess(c *fiber.Ctx) error {
	municipality := c.Query("municipality")
	if municipality == "" {
		return utils.SendError(c, errors.ErrInvalidRequest.WithMessage("municipality is required"))
	}

	file, err := readPackage(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	drafts, err := h.hubs.PreprocessGeometryPackage(c.UserContext(), municipality, file)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, drafts, &utils.Meta{Total: len(drafts)})
}

// Import godoc
// @Summary Импортировать зоны
// @Tags Hubs
// @Accept json
// @Produce json
// @Param request body dto.ImportRequest true "Зоны"
// @Success 200 {object} utils.SuccessResponse{data=domain.ImportResult}
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/hubs/import [post]
func (h *HubHandler) Import(c *fiber.Ctx) error {
	var req dto.ImportRequest
	if err := parseRequest(c, &req); err != nil {
		return utils.SendError(c, err)
	}

	result, err := h.hubs.ImportGeometryPackage(c.UserContext(), req.Municipality, req.Zones)
	if err != nil {
		return utils.SendError(c, err)
	}
	return utils.SendSuccess(c, result, importMeta(result, 0))
}

// SaveBorder godoc
// @Summary Граница муниципалитета
// @Description Создаёт или заменяет авторитетную границу, по которой проверяется импорт
// @Tags Borders
// @Accept json
// @Produce json
// @Param municipality path string true "Код муниципалитета"
// @Param request body dto.SaveBorderRequest true "Граница"
// @Success 200 {object} utils.SuccessResponse{data=dto.BorderResponse}
// @Failure 400 {object} utils.ErrorResponse
// @Router /api/v1/borders/{municipality} [put]
func (h *HubHandler) SaveBorder(c *fiber.Ctx) error {
	var req dto.SaveBorderRequest
	if err := parseRequest(c, &req); err != nil {
		return utils.SendError(c, err)
	}

	g, err := geojson.UnmarshalGeometry(req.Area)
	if err != nil {
		return utils.SendError(c, errors.ErrInvalidGeometry)
	}
	area, err := geo.AsMultiPolygon(g.Geometry())
	if err != nil {
		return utils.SendError(c, errors.ErrInvalidGeometry)
	}

	border := domain.MunicipalityBorder{
		Municipality: c.Params("municipality"),
		Name:         req.Name,
		Area:         area,
	}
	if err := h.borders.SaveBorder(c.UserContext(), border); err != nil {
		return utils.SendError(c, err)
	}

	h.logger.Info("Municipality border saved",
		zap.String("municipality", border.Municipality),
		zap.Int("polygons", len(area)))
	return utils.SendSuccess(c, dto.BorderResponse{
		Municipality: border.Municipality,
		Name:         border.Name,
		Polygons:     len(area),
	}, nil)
}
