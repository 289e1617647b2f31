package domain

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Hub - policy hub: зона парковки/остановки, запрета парковки или мониторинга
type Hub struct {
	ZoneID          int64             `json:"zone_id" db:"zone_id"`
	GeographyID     string            `json:"geography_id" db:"geography_id"`
	Name            string            `json:"name" db:"name"`
	GeographyType   GeographyType     `json:"geography_type" db:"geography_type"`
	Phase           Phase             `json:"phase" db:"phase"`
	Municipality    string            `json:"municipality" db:"municipality"`
	Area            *geojson.Geometry `json:"area" db:"-"`
	Stop            *StopConfig       `json:"stop,omitempty" db:"-"`
	PrevGeographies []string          `json:"prev_geographies,omitempty" db:"-"`
	CreatedBy       string            `json:"created_by,omitempty" db:"created_by"`
	LastModifiedBy  string            `json:"last_modified_by,omitempty" db:"last_modified_by"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	ModifiedAt      time.Time         `json:"modified_at" db:"modified_at"`
}

// StopConfig - realtime конфигурация хаба типа stop
type StopConfig struct {
	IsVirtual bool           `json:"is_virtual"`
	Status    map[string]any `json:"status,omitempty"`
	Capacity  map[string]int `json:"capacity,omitempty"`
}

// Geometry возвращает orb-геометрию зоны (nil если зона без геометрии)
func (h *Hub) Geometry() orb.Geometry {
	if h.Area == nil {
		return nil
	}
	return h.Area.Geometry()
}

// Supersedes проверяет, ссылается ли хаб на geography_id через prev_geographies
func (h *Hub) Supersedes(geographyID string) bool {
	for _, id := range h.PrevGeographies {
		if id == geographyID {
			return true
		}
	}
	return false
}

// DraftFrom строит новый черновой хаб на основе live-хаба.
// Источник не изменяется: копируется геометрия, prev_geographies ссылается на источник.
func DraftFrom(source *Hub, phase Phase, actor string) Hub {
	draft := Hub{
		GeographyID:     source.GeographyID,
		Name:            source.Name,
		GeographyType:   source.GeographyType,
		Phase:           phase,
		Municipality:    source.Municipality,
		PrevGeographies: []string{source.GeographyID},
		CreatedBy:       actor,
		LastModifiedBy:  actor,
	}
	if source.Area != nil {
		draft.Area = geojson.NewGeometry(orb.Clone(source.Area.Geometry()))
	}
	if source.Stop != nil {
		stop := *source.Stop
		draft.Stop = &stop
	}
	return draft
}

// HubIndex - индекс хабов по zone_id
type HubIndex map[int64]*Hub

// IndexHubs строит индекс по zone_id
func IndexHubs(hubs []Hub) HubIndex {
	idx := make(HubIndex, len(hubs))
	for i := range hubs {
		idx[hubs[i].ZoneID] = &hubs[i]
	}
	return idx
}

// GeographyIDs собирает уникальные geography_id хабов, сохраняя порядок
func GeographyIDs(hubs []*Hub) []string {
	seen := make(map[string]struct{}, len(hubs))
	ids := make([]string, 0, len(hubs))
	for _, h := range hubs {
		if _, ok := seen[h.GeographyID]; ok {
			continue
		}
		seen[h.GeographyID] = struct{}{}
		ids = append(ids, h.GeographyID)
	}
	return ids
}

// MunicipalityBorder - авторитетная граница муниципалитета
type MunicipalityBorder struct {
	Municipality string           `json:"municipality" db:"municipality"`
	Name         string           `json:"name" db:"name"`
	Area         orb.MultiPolygon `json:"-" db:"-"`
}
