package repository

import (
	"context"
	"time"

	"github.com/policyhub-service/internal/domain"
)

// CacheRepository определяет методы для работы с кешем
type CacheRepository interface {
	// Get получает значение из кеша по ключу (nil при промахе)
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение в кеше с TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete удаляет значение из кеша
	Delete(ctx context.Context, key string) error

	// GetHubs получает список хабов муниципалитета (nil при промахе)
	GetHubs(ctx context.Context, municipality string) ([]domain.Hub, error)

	// SetHubs сохраняет список хабов муниципалитета
	SetHubs(ctx context.Context, municipality string, hubs []domain.Hub, ttl time.Duration) error

	// InvalidateHubs удаляет список хабов и увеличивает счётчик перезагрузки
	InvalidateHubs(ctx context.Context, municipality string) (int64, error)

	// RefetchCounter возвращает текущий счётчик перезагрузки муниципалитета
	RefetchCounter(ctx context.Context, municipality string) (int64, error)
}
