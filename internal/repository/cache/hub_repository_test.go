package cache_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/repository/cache"
)

// memoryCache - CacheRepository в памяти
type memoryCache struct {
	mu       sync.Mutex
	lists    map[string][]domain.Hub
	counters map[string]int64
	failGet  bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{lists: map[string][]domain.Hub{}, counters: map[string]int64{}}
}

func (c *memoryCache) Get(context.Context, string) ([]byte, error)              { return nil, nil }
func (c *memoryCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (c *memoryCache) Delete(context.Context, string) error                     { return nil }
func (c *memoryCache) RefetchCounter(_ context.Context, m string) (int64, error) {
	return c.counters[m], nil
}
func (c *memoryCache) SetHubs(_ context.Context, m string, h []domain.Hub, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[m] = h
	return nil
}

func (c *memoryCache) GetHubs(_ context.Context, m string) ([]domain.Hub, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, stderrors.New("redis down")
	}
	return c.lists[m], nil
}

func (c *memoryCache) InvalidateHubs(_ context.Context, m string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lists, m)
	c.counters[m]++
	return c.counters[m], nil
}

type mockInner struct {
	mock.Mock
}

func (m *mockInner) FetchHubs(ctx context.Context, municipality string) ([]domain.Hub, error) {
	args := m.Called(ctx, municipality)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Hub), args.Error(1)
}

func (m *mockInner) Commit(ctx context.Context, ids []string) error {
	return m.Called(ctx, ids).Error(0)
}

func (m *mockInner) MakeConcept(ctx context.Context, ids []string) error {
	return m.Called(ctx, ids).Error(0)
}

func (m *mockInner) DeriveConcept(ctx context.Context, ids []string) error {
	return m.Called(ctx, ids).Error(0)
}

func (m *mockInner) ProposeRetirement(ctx context.Context, ids []string) error {
	return m.Called(ctx, ids).Error(0)
}

func (m *mockInner) SaveHub(ctx context.Context, hub domain.Hub) (*domain.Hub, error) {
	args := m.Called(ctx, hub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Hub), args.Error(1)
}

func (m *mockInner) PreprocessGeometryPackage(ctx context.Context, municipality string, file []byte) ([]domain.DraftImportZone, error) {
	args := m.Called(ctx, municipality, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DraftImportZone), args.Error(1)
}

func (m *mockInner) ImportGeometryPackage(ctx context.Context, municipality string, zones []domain.DraftZone) (*domain.ImportResult, error) {
	args := m.Called(ctx, municipality, zones)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ImportResult), args.Error(1)
}

var utrechtHubs = []domain.Hub{
	{ZoneID: 1, GeographyID: "a", Municipality: "utrecht", Phase: domain.PhaseConcept},
}

func TestCachedHubRepository_FetchHubs_CacheAside(t *testing.T) {
	inner := new(mockInner)
	inner.On("FetchHubs", mock.Anything, "utrecht").Return(utrechtHubs, nil).Once()
	store := newMemoryCache()
	repo := cache.NewCachedHubRepository(inner, store, time.Minute, zap.NewNop())

	first, err := repo.FetchHubs(context.Background(), "utrecht")
	require.NoError(t, err)
	second, err := repo.FetchHubs(context.Background(), "utrecht")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	inner.AssertNumberOfCalls(t, "FetchHubs", 1)
}

func TestCachedHubRepository_FetchHubs_CacheDown(t *testing.T) {
	inner := new(mockInner)
	inner.On("FetchHubs", mock.Anything, "utrecht").Return(utrechtHubs, nil)
	store := newMemoryCache()
	store.failGet = true
	repo := cache.NewCachedHubRepository(inner, store, time.Minute, zap.NewNop())

	hubs, err := repo.FetchHubs(context.Background(), "utrecht")
	require.NoError(t, err)
	assert.Len(t, hubs, 1)
}

func TestCachedHubRepository_MutationInvalidates(t *testing.T) {
	inner := new(mockInner)
	inner.On("FetchHubs", mock.Anything, "utrecht").Return(utrechtHubs, nil)
	inner.On("Commit", mock.Anything, []string{"a"}).Return(nil).Once()
	store := newMemoryCache()
	repo := cache.NewCachedHubRepository(inner, store, time.Minute, zap.NewNop())
	ctx := context.Background()

	_, err := repo.FetchHubs(ctx, "utrecht")
	require.NoError(t, err)

	require.NoError(t, repo.Commit(ctx, []string{"a"}))
	assert.Equal(t, int64(1), store.counters["utrecht"])

	_, err = repo.FetchHubs(ctx, "utrecht")
	require.NoError(t, err)
	inner.AssertNumberOfCalls(t, "FetchHubs", 2)
}

func TestCachedHubRepository_FailedMutationKeepsCache(t *testing.T) {
	inner := new(mockInner)
	inner.On("FetchHubs", mock.Anything, "utrecht").Return(utrechtHubs, nil)
	inner.On("MakeConcept", mock.Anything, []string{"a"}).Return(stderrors.New("boom"))
	store := newMemoryCache()
	repo := cache.NewCachedHubRepository(inner, store, time.Minute, zap.NewNop())
	ctx := context.Background()

	_, err := repo.FetchHubs(ctx, "utrecht")
	require.NoError(t, err)

	assert.Error(t, repo.MakeConcept(ctx, []string{"a"}))
	assert.Zero(t, store.counters["utrecht"])
	assert.Len(t, store.lists["utrecht"], 1)
}

func TestCachedHubRepository_ImportInvalidatesOnlyOnWrites(t *testing.T) {
	inner := new(mockInner)
	empty := domain.NewImportResult()
	created := domain.NewImportResult()
	created.Created = append(created.Created, utrechtHubs[0])

	inner.On("ImportGeometryPackage", mock.Anything, "utrecht", mock.Anything).Return(empty, nil).Once()
	inner.On("ImportGeometryPackage", mock.Anything, "utrecht", mock.Anything).Return(created, nil).Once()
	store := newMemoryCache()
	repo := cache.NewCachedHubRepository(inner, store, time.Minute, zap.NewNop())
	ctx := context.Background()

	_, err := repo.ImportGeometryPackage(ctx, "utrecht", nil)
	require.NoError(t, err)
	assert.Zero(t, store.counters["utrecht"])

	_, err = repo.ImportGeometryPackage(ctx, "utrecht", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.counters["utrecht"])
}
