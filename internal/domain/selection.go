package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
)

// SelectionNew - сентинел выбора свежей, ещё не сохранённой геометрии
const SelectionNew = "new"

// Selection - упорядоченный список выбранных zone_id либо сентинел "new".
// Нулевое значение - пустой выбор.
type Selection struct {
	ids   []int64
	isNew bool
}

// SelectIDs создаёт выбор из zone_id. Повторы отбрасываются, порядок сохраняется.
func SelectIDs(ids ...int64) Selection {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return Selection{ids: out}
}

// SelectNewDrawing создаёт выбор нарисованной геометрии
func SelectNewDrawing() Selection {
	return Selection{isNew: true}
}

// IDs возвращает копию выбранных zone_id
func (s Selection) IDs() []int64 {
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s Selection) IsNew() bool {
	return s.isNew
}

// HasSelection - выбран хотя бы один хаб или новая геометрия
func (s Selection) HasSelection() bool {
	return s.isNew || len(s.ids) > 0
}

// HasExactlyOne - выбран ровно один сохранённый хаб (сентинел не считается)
func (s Selection) HasExactlyOne() bool {
	return !s.isNew && len(s.ids) == 1
}

func (s Selection) MarshalJSON() ([]byte, error) {
	if s.isNew {
		return json.Marshal(SelectionNew)
	}
	return json.Marshal(s.IDs())
}

// UnmarshalJSON принимает "new", массив zone_id или null
func (s *Selection) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = Selection{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var sentinel string
		if err := json.Unmarshal(data, &sentinel); err != nil {
			return err
		}
		if sentinel != SelectionNew {
			return fmt.Errorf("unknown selection sentinel %q", sentinel)
		}
		*s = SelectNewDrawing()
		return nil
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("selection must be %q or a list of zone ids: %w", SelectionNew, err)
	}
	*s = SelectIDs(ids...)
	return nil
}

// DrawingMode - режим инструмента рисования
type DrawingMode string

const (
	DrawingModeNone    DrawingMode = "none"
	DrawingModePolygon DrawingMode = "polygon"
	DrawingModeEdit    DrawingMode = "edit"
)

// ParseDrawingMode разбирает режим рисования
func ParseDrawingMode(s string) (DrawingMode, error) {
	switch m := DrawingMode(s); m {
	case DrawingModeNone, DrawingModePolygon, DrawingModeEdit:
		return m, nil
	}
	return "", fmt.Errorf("unknown drawing mode %q", s)
}

// DrawingBuffer накапливает нарисованные кольца как отдельные фичи.
// В area хаба попадает только при явном Flush.
type DrawingBuffer struct {
	pieces []orb.Polygon
}

// Add добавляет нарисованный полигон
func (b *DrawingBuffer) Add(p orb.Polygon) {
	b.pieces = append(b.pieces, p)
}

// Len - количество нарисованных фич
func (b *DrawingBuffer) Len() int {
	return len(b.pieces)
}

// Reset очищает буфер
func (b *DrawingBuffer) Reset() {
	b.pieces = nil
}

// Geometry собирает буфер в одну геометрию: Polygon для одной фичи,
// MultiPolygon для нескольких. Буфер не очищается.
func (b *DrawingBuffer) Geometry() orb.Geometry {
	switch len(b.pieces) {
	case 0:
		return nil
	case 1:
		return b.pieces[0]
	}
	mp := make(orb.MultiPolygon, len(b.pieces))
	copy(mp, b.pieces)
	return mp
}

// Flush возвращает собранную геометрию и очищает буфер
func (b *DrawingBuffer) Flush() orb.Geometry {
	g := b.Geometry()
	b.Reset()
	return g
}
