package domain

import "github.com/paulmach/orb/geojson"

// DraftZone - кандидат зоны из геометрического пакета
type DraftZone struct {
	GeographyID   string            `json:"geography_id"`
	Name          string            `json:"name"`
	GeographyType GeographyType     `json:"geography_type"`
	Municipality  string            `json:"municipality"`
	Area          *geojson.Geometry `json:"area"`
}

// DraftImportZone - транзиентная пара {zone, is_within_borders_municipality}.
// Никогда не сохраняется напрямую.
type DraftImportZone struct {
	Zone                        DraftZone `json:"zone"`
	IsWithinBordersMunicipality bool      `json:"is_within_borders_municipality"`
}

// Selectable - зоны вне границ муниципалитета выбрать нельзя
func (d DraftImportZone) Selectable() bool {
	return d.IsWithinBordersMunicipality
}

// ImportError - зона, не сохранённая на стороне репозитория
type ImportError struct {
	Zone   DraftZone `json:"zone"`
	Reason string    `json:"reason"`
}

// ImportResult - трёхчастный результат импорта
type ImportResult struct {
	Created  []Hub         `json:"created"`
	Modified []Hub         `json:"modified"`
	Error    []ImportError `json:"error"`
}

// NewImportResult создаёт пустой результат с ненулевыми срезами
func NewImportResult() *ImportResult {
	return &ImportResult{
		Created:  []Hub{},
		Modified: []Hub{},
		Error:    []ImportError{},
	}
}
