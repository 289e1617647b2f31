package dto

import "github.com/policyhub-service/internal/domain"

// WorkspaceResponse - состояние рабочего пространства и допустимые действия
type WorkspaceResponse struct {
	ID              string             `json:"id"`
	Municipality    string             `json:"municipality"`
	Selection       domain.Selection   `json:"selection"`
	DrawingMode     domain.DrawingMode `json:"drawing_mode"`
	DrawnFeatures   int                `json:"drawn_features"`
	PendingImport   int                `json:"pending_import"`
	ActivePhase     domain.Phase       `json:"active_phase"`
	EligibleActions domain.ActionSet   `json:"eligible_actions"`
	Actions         []domain.Action    `json:"actions"`
	RefetchCount    int64              `json:"refetch_count"`
	Stale           bool               `json:"stale"`
}

// SaveDrawingResponse - сохранённый хаб и новое состояние пространства
type SaveDrawingResponse struct {
	Hub       *domain.Hub       `json:"hub"`
	Workspace WorkspaceResponse `json:"workspace"`
}

// PreprocessResponse - черновики импорта; невыбираемые помечены
type PreprocessResponse struct {
	Zones      []domain.DraftImportZone `json:"zones"`
	Selectable int                      `json:"selectable"`
}

// BorderResponse - сохранённая граница
type BorderResponse struct {
	Municipality string `json:"municipality"`
	Name         string `json:"name"`
	Polygons     int    `json:"polygons"`
}
