package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/domain/repository"
	"github.com/policyhub-service/internal/metrics"
)

// cachedHubRepository - cache-aside над HubRepository. Списки хабов
// кешируются по муниципалитету; любая успешная мутация инвалидирует список
// и увеличивает счётчик перезагрузки.
type cachedHubRepository struct {
	inner  repository.HubRepository
	cache  repository.CacheRepository
	ttl    time.Duration
	logger *zap.Logger

	mu             sync.RWMutex
	municipalities map[string]string // geography_id -> municipality
}

// NewCachedHubRepository оборачивает репозиторий хабов кешем
func NewCachedHubRepository(
	inner repository.HubRepository,
	cache repository.CacheRepository,
	ttl time.Duration,
	logger *zap.Logger,
) repository.HubRepository {
	return &cachedHubRepository{
		inner:          inner,
		cache:          cache,
		ttl:            ttl,
		logger:         logger,
		municipalities: make(map[string]string),
	}
}

func (r *cachedHubRepository) FetchHubs(ctx context.Context, municipality string) ([]domain.Hub, error) {
	hubs, err := r.cache.GetHubs(ctx, municipality)
	if err != nil {
		// Недоступный кеш не блокирует чтение
		r.logger.Warn("Hub cache read failed, falling back to repository",
			zap.String("municipality", municipality),
			zap.Error(err))
	}
	if hubs != nil {
		metrics.HubCacheHitsTotal.Inc()
		r.remember(hubs)
		return hubs, nil
	}
	metrics.HubCacheMissesTotal.Inc()

	hubs, err = r.inner.FetchHubs(ctx, municipality)
	if err != nil {
		return nil, err
	}
	r.remember(hubs)

	if err := r.cache.SetHubs(ctx, municipality, hubs, r.ttl); err != nil {
		r.logger.Warn("Failed to cache hubs", zap.String("municipality", municipality), zap.Error(err))
	}
	return hubs, nil
}

func (r *cachedHubRepository) Commit(ctx context.Context, geographyIDs []string) error {
	if err := r.inner.Commit(ctx, geographyIDs); err != nil {
		return err
	}
	r.invalidate(ctx, r.lookup(geographyIDs)...)
	return nil
}

func (r *cachedHubRepository) MakeConcept(ctx context.Context, geographyIDs []string) error {
	if err := r.inner.MakeConcept(ctx, geographyIDs); err != nil {
		return err
	}
	r.invalidate(ctx, r.lookup(geographyIDs)...)
	return nil
}

func (r *cachedHubRepository) DeriveConcept(ctx context.Context, geographyIDs []string) error {
	if err := r.inner.DeriveConcept(ctx, geographyIDs); err != nil {
		return err
	}
	r.invalidate(ctx, r.lookup(geographyIDs)...)
	return nil
}

func (r *cachedHubRepository) ProposeRetirement(ctx context.Context, geographyIDs []string) error {
	if err := r.inner.ProposeRetirement(ctx, geographyIDs); err != nil {
		return err
	}
	r.invalidate(ctx, r.lookup(geographyIDs)...)
	return nil
}

func (r *cachedHubRepository) SaveHub(ctx context.Context, hub domain.Hub) (*domain.Hub, error) {
	saved, err := r.inner.SaveHub(ctx, hub)
	if err != nil {
		return nil, err
	}
	r.remember([]domain.Hub{*saved})
	r.invalidate(ctx, saved.Municipality)
	return saved, nil
}

// PreprocessGeometryPackage ничего не пишет и не кешируется
func (r *cachedHubRepository) PreprocessGeometryPackage(ctx context.Context, municipality string, file []byte) ([]domain.DraftImportZone, error) {
	return r.inner.PreprocessGeometryPackage(ctx, municipality, file)
}

func (r *cachedHubRepository) ImportGeometryPackage(ctx context.Context, municipality string, zones []domain.DraftZone) (*domain.ImportResult, error) {
	result, err := r.inner.ImportGeometryPackage(ctx, municipality, zones)
	if err != nil {
		return nil, err
	}
	if len(result.Created)+len(result.Modified) > 0 {
		r.invalidate(ctx, municipality)
	}
	return result, nil
}

func (r *cachedHubRepository) remember(hubs []domain.Hub) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range hubs {
		r.municipalities[h.GeographyID] = h.Municipality
	}
}

// lookup возвращает муниципалитеты затронутых geography_id
func (r *cachedHubRepository) lookup(geographyIDs []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, id := range geographyIDs {
		m, ok := r.municipalities[id]
		if !ok {
			r.logger.Warn("Unknown municipality for geography_id, cache entry left to expire",
				zap.String("geography_id", id))
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func (r *cachedHubRepository) invalidate(ctx context.Context, municipalities ...string) {
	for _, m := range municipalities {
		count, err := r.cache.InvalidateHubs(ctx, m)
		if err != nil {
			r.logger.Warn("Failed to invalidate hub cache", zap.String("municipality", m), zap.Error(err))
			continue
		}
		metrics.InvalidationsTotal.WithLabelValues("mutation").Inc()
		r.logger.Debug("Hub cache invalidated",
			zap.String("municipality", m),
			zap.Int64("refetch_count", count))
	}
}
