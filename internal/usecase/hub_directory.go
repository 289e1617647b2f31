package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/domain/repository"
)

// HubDirectory - in-memory справочник хабов муниципалитета.
// После мутаций не патчится локально: инвалидируется и перечитывается из
// репозитория, счётчик перезагрузки растёт с каждой инвалидацией.
type HubDirectory struct {
	repo         repository.HubRepository
	municipality string
	logger       *zap.Logger

	mu           sync.RWMutex
	hubs         []domain.Hub
	loaded       bool
	stale        bool
	refetchCount int64
}

// NewHubDirectory создаёт пустой справочник
func NewHubDirectory(repo repository.HubRepository, municipality string, logger *zap.Logger) *HubDirectory {
	return &HubDirectory{
		repo:         repo,
		municipality: municipality,
		logger:       logger,
	}
}

func (d *HubDirectory) Municipality() string {
	return d.municipality
}

// Refresh перечитывает хабы. При ошибке сохраняется последнее известное состояние.
func (d *HubDirectory) Refresh(ctx context.Context) error {
	hubs, err := d.repo.FetchHubs(ctx, d.municipality)
	if err != nil {
		d.logger.Error("Failed to refresh hub directory",
			zap.String("municipality", d.municipality),
			zap.Error(err))
		return err
	}

	d.mu.Lock()
	d.hubs = hubs
	d.loaded = true
	d.stale = false
	d.mu.Unlock()

	d.logger.Debug("Hub directory refreshed",
		zap.String("municipality", d.municipality),
		zap.Int("hubs", len(hubs)))
	return nil
}

// Hubs возвращает хабы, загружая их при первом обращении или после инвалидации
func (d *HubDirectory) Hubs(ctx context.Context) ([]domain.Hub, error) {
	d.mu.RLock()
	fresh := d.loaded && !d.stale
	d.mu.RUnlock()

	if !fresh {
		if err := d.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return d.Snapshot(), nil
}

// Snapshot возвращает копию последнего известного состояния без запросов
func (d *HubDirectory) Snapshot() []domain.Hub {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.Hub, len(d.hubs))
	copy(out, d.hubs)
	return out
}

// Get ищет хаб по zone_id в последнем известном состоянии
func (d *HubDirectory) Get(zoneID int64) (domain.Hub, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, h := range d.hubs {
		if h.ZoneID == zoneID {
			return h, true
		}
	}
	return domain.Hub{}, false
}

// Invalidate помечает справочник устаревшим и увеличивает счётчик перезагрузки
func (d *HubDirectory) Invalidate() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stale = true
	d.refetchCount++
	return d.refetchCount
}

// RefetchCount - счётчик, за которым следят представления
func (d *HubDirectory) RefetchCount() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.refetchCount
}

// IsStale - true после инвалидации до успешной перезагрузки
func (d *HubDirectory) IsStale() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stale || !d.loaded
}

// invalidateAndRefetch вызывается после успешной мутации. Ошибка перезагрузки
// не отменяет мутацию: справочник остаётся stale до следующего обращения.
func (d *HubDirectory) invalidateAndRefetch(ctx context.Context) {
	count := d.Invalidate()
	if err := d.Refresh(ctx); err != nil {
		d.logger.Warn("Hub directory refetch after mutation failed",
			zap.String("municipality", d.municipality),
			zap.Int64("refetch_count", count),
			zap.Error(err))
	}
}
