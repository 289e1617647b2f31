package dto

import (
	"encoding/json"

	"github.com/policyhub-service/internal/domain"
)

// OpenWorkspaceRequest - открыть рабочее пространство муниципалитета
type OpenWorkspaceRequest struct {
	Municipality string `json:"municipality" validate:"required,min=2,max=32"`
}

// SelectionRequest - новый выбор: массив zone_id либо "new"
type SelectionRequest struct {
	Selection domain.Selection `json:"selection"`
}

// DrawingModeRequest - переключение инструмента рисования
type DrawingModeRequest struct {
	Mode string `json:"mode" validate:"required,drawing_mode"`
}

// DrawnFeatureRequest - нарисованный полигон (GeoJSON geometry)
type DrawnFeatureRequest struct {
	Geometry json.RawMessage `json:"geometry" validate:"required"`
}

// ActivePhaseRequest - активная фаза процесса; пустая берётся из конфигурации
type ActivePhaseRequest struct {
	ActivePhase string `json:"active_phase" validate:"omitempty,phase"`
}

// SaveDrawingRequest - сохранение нарисованной геометрии
type SaveDrawingRequest struct {
	ActivePhase   string `json:"active_phase" validate:"omitempty,phase"`
	Name          string `json:"name" validate:"omitempty,max=255"`
	GeographyType string `json:"geography_type" validate:"omitempty,geography_type"`
}

// ExecuteActionRequest - выполнение перехода фазы над текущим выбором
type ExecuteActionRequest struct {
	Action      string `json:"action" validate:"required,hub_action"`
	ActivePhase string `json:"active_phase" validate:"omitempty,phase"`
	Confirmed   bool   `json:"confirmed"`
}

// ConfirmImportRequest - geography_id черновиков, выбранных оператором
type ConfirmImportRequest struct {
	GeographyIDs []string `json:"geography_ids" validate:"required,min=1,dive,required"`
}

// GeographyIDsRequest - тело административных переходов
type GeographyIDsRequest struct {
	GeographyIDs []string `json:"geography_ids" validate:"required,min=1,max=500,dive,required"`
}

// ImportRequest - импорт выбранных зон в муниципалитет
type ImportRequest struct {
	Municipality string             `json:"municipality" validate:"required,min=2,max=32"`
	Zones        []domain.DraftZone `json:"zones" validate:"required,min=1"`
}

// SaveBorderRequest - граница муниципалитета (Polygon или MultiPolygon)
type SaveBorderRequest struct {
	Name string          `json:"name" validate:"omitempty,max=255"`
	Area json.RawMessage `json:"area" validate:"required"`
}
