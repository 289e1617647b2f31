package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stream names
const (
	StreamHubsChanged = "stream:hubs:changed"
)

// HubsChangedEvent публикуется после каждой успешной мутации репозитория
type HubsChangedEvent struct {
	EventID      uuid.UUID `json:"event_id"`
	Municipality string    `json:"municipality"`
	Action       string    `json:"action"`
	GeographyIDs []string  `json:"geography_ids"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewHubsChangedEvent создаёт событие изменения хабов
func NewHubsChangedEvent(municipality, action string, geographyIDs []string) HubsChangedEvent {
	return HubsChangedEvent{
		EventID:      uuid.New(),
		Municipality: municipality,
		Action:       action,
		GeographyIDs: geographyIDs,
		OccurredAt:   time.Now().UTC(),
	}
}

// Valid проверяет минимально необходимые поля события
func (e *HubsChangedEvent) Valid() bool {
	return e.Municipality != "" && e.Action != ""
}

// StreamMessage - сообщение из Redis Stream
type StreamMessage struct {
	ID   string
	Data string
}
