package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sandwichproject/coordinator/internal/collections"
	"github.com/sandwichproject/coordinator/internal/directory"
	"github.com/sandwichproject/coordinator/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var _ Store = (*Facade)(nil)

type facadeFixture struct {
	facade   *Facade
	primary  *scriptedStore
	fallback *scriptedStore
	logs     *observer.ObservedLogs
	registry *prometheus.Registry
}

func newFacadeFixture(t *testing.T) facadeFixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	registry := prometheus.NewRegistry()
	storageMetrics, err := metrics.NewStorageMetrics(registry)
	require.NoError(t, err)

	primary := newScriptedStore()
	fallback := newScriptedStore()
	facade := NewFacade(FacadeConfig{
		Primary:  func() (Store, error) { return primary, nil },
		Fallback: fallback,
		Logger:   zap.New(core),
		Metrics:  storageMetrics,
	})
	require.False(t, facade.Degraded())
	return facadeFixture{facade: facade, primary: primary, fallback: fallback, logs: logs, registry: registry}
}

func TestFacadeFallsBackWhenPrimaryErrors(t *testing.T) {
	fixture := newFacadeFixture(t)
	ctx := context.Background()
	_, err := fixture.fallback.MemoryStore.CreateSandwichCollection(ctx, collectionRecord(0, "2024-03-02", "Dunwoody", 30))
	require.NoError(t, err)
	fixture.primary.failWith(errPrimaryDown)

	records, err := fixture.facade.GetAllSandwichCollections(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Dunwoody", records[0].HostName)

	warnings := fixture.logs.FilterMessage("primary store operation failed").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zapcore.WarnLevel, warnings[0].Level)
	assert.Equal(t, 1, fixture.logs.FilterMessage("fallback store served operation").Len())
	assert.Equal(t, 0, fixture.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Equal(t, float64(1), counterValue(t, fixture.registry, "storage_fallback_served_total", map[string]string{"operation": "collections.list", "reason": metrics.ReasonError}))
}

func TestFacadeRetriesRecoveredPrimaryOnNextCall(t *testing.T) {
	fixture := newFacadeFixture(t)
	ctx := context.Background()
	_, err := fixture.primary.MemoryStore.CreateHost(ctx, directory.Host{Name: "Primary Host"})
	require.NoError(t, err)
	_, err = fixture.fallback.MemoryStore.CreateHost(ctx, directory.Host{Name: "Fallback Host"})
	require.NoError(t, err)

	fixture.primary.failWith(errPrimaryDown)
	hosts, err := fixture.facade.GetAllHosts(ctx)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "Fallback Host", hosts[0].Name)

	fixture.primary.failWith(nil)
	hosts, err = fixture.facade.GetAllHosts(ctx)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "Primary Host", hosts[0].Name)
}

func TestFacadeSoftFailureConsultsFallback(t *testing.T) {
	fixture := newFacadeFixture(t)
	ctx := context.Background()
	stored, err := fixture.fallback.MemoryStore.CreateHost(ctx, directory.Host{Name: "Roswell"})
	require.NoError(t, err)

	updated, err := fixture.facade.UpdateHost(ctx, stored.ID, directory.HostUpdate{Phone: stringPointer("555-0100")})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "555-0100", updated.Phone)

	deleted, err := fixture.facade.DeleteHost(ctx, stored.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	assert.Equal(t, float64(1), counterValue(t, fixture.registry, "storage_fallback_served_total", map[string]string{"operation": "hosts.update", "reason": metrics.ReasonSoftFailure}))
	assert.Equal(t, float64(1), counterValue(t, fixture.registry, "storage_fallback_served_total", map[string]string{"operation": "hosts.delete", "reason": metrics.ReasonSoftFailure}))
	assert.Equal(t, 0, fixture.logs.FilterMessage("primary store operation failed").Len())
}

func TestFacadeSoftFailureMissingEverywhere(t *testing.T) {
	fixture := newFacadeFixture(t)
	ctx := context.Background()

	updated, err := fixture.facade.UpdateSandwichCollection(ctx, 404, collections.CollectionUpdate{HostName: stringPointer("Nowhere")})
	require.NoError(t, err)
	assert.Nil(t, updated)

	deleted, err := fixture.facade.DeleteHost(ctx, 404)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestFacadeDoubleFailurePropagatesFallbackError(t *testing.T) {
	fixture := newFacadeFixture(t)
	fallbackErr := errors.New("memory store closed")
	fixture.primary.failWith(errPrimaryDown)
	fixture.fallback.failWith(fallbackErr)

	_, err := fixture.facade.GetAllHosts(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, fallbackErr)
	assert.NotErrorIs(t, err, errPrimaryDown)
	assert.Equal(t, 1, fixture.logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestFacadeTombstoneHidesStaleRecord(t *testing.T) {
	fixture := newFacadeFixture(t)
	ctx := context.Background()
	stale := []collections.Collection{
		collectionRecord(5, "2024-02-03", "Sandy Springs", 60),
		collectionRecord(6, "2024-02-10", "Sandy Springs", 45),
	}
	fixture.primary.staleCollections = stale
	fixture.primary.deleteResult = boolPointer(true)

	deleted, err := fixture.facade.DeleteSandwichCollection(ctx, 5)
	require.NoError(t, err)
	require.True(t, deleted)

	records, err := fixture.facade.GetAllSandwichCollections(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(6), records[0].ID)

	record, err := fixture.facade.GetSandwichCollection(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.Equal(t, 0, fixture.fallback.deleteCalls, "successful primary delete must not touch the fallback")
}

func TestFacadeTombstoneRolledBackWhenPrimaryDeclines(t *testing.T) {
	fixture := newFacadeFixture(t)
	ctx := context.Background()
	fixture.primary.staleCollections = []collections.Collection{collectionRecord(7, "2024-02-03", "Decatur", 20)}
	fixture.primary.deleteResult = boolPointer(false)

	deleted, err := fixture.facade.DeleteSandwichCollection(ctx, 7)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.False(t, fixture.facade.tombstones.contains(7))
	assert.Equal(t, 0, fixture.fallback.deleteCalls, "declined primary delete must not consult the fallback")

	records, err := fixture.facade.GetAllSandwichCollections(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(7), records[0].ID)
}

func TestFacadeDeleteRetriesFallbackWhenPrimaryErrors(t *testing.T) {
	fixture := newFacadeFixture(t)
	ctx := context.Background()
	stored, err := fixture.fallback.MemoryStore.CreateSandwichCollection(ctx, collectionRecord(0, "2024-04-06", "Marietta", 12))
	require.NoError(t, err)
	fixture.primary.failWith(errPrimaryDown)

	deleted, err := fixture.facade.DeleteSandwichCollection(ctx, stored.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, fixture.facade.tombstones.contains(stored.ID))
	assert.Equal(t, 1, fixture.fallback.deleteCalls)
	assert.Equal(t, 1, fixture.logs.FilterMessage("primary store operation failed").Len())
}

func TestFacadeCreateMirrorsIntoFallback(t *testing.T) {
	fixture := newFacadeFixture(t)
	ctx := context.Background()
	_, err := fixture.primary.MemoryStore.CreateSandwichCollection(ctx, collectionRecord(0, "2024-01-06", "Alpharetta", 1))
	require.NoError(t, err)

	created, err := fixture.facade.CreateSandwichCollection(ctx, collectionRecord(0, "2024-01-13", "Alpharetta", 80))
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.ID)

	mirrored, err := fixture.fallback.MemoryStore.GetSandwichCollection(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, mirrored)
	assert.Equal(t, 80, mirrored.IndividualSandwiches)

	next, err := fixture.fallback.MemoryStore.CreateSandwichCollection(ctx, collectionRecord(0, "2024-01-20", "Alpharetta", 3))
	require.NoError(t, err)
	assert.Greater(t, next.ID, created.ID, "fallback sequence must move past mirrored ids")
}

func TestFacadeCreateSurvivesMirrorFailure(t *testing.T) {
	fixture := newFacadeFixture(t)
	fixture.fallback.failWith(errors.New("fallback full"))

	created, err := fixture.facade.CreateSandwichCollection(context.Background(), collectionRecord(0, "2024-01-13", "Alpharetta", 80))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, 1, fixture.logs.FilterMessage("failed to mirror collection into fallback store").Len())
	assert.Equal(t, float64(1), counterValue(t, fixture.registry, "storage_mirror_failures_total", nil))
}

func TestFacadeCreateServedByFallbackIsNotMirrored(t *testing.T) {
	fixture := newFacadeFixture(t)
	ctx := context.Background()
	fixture.primary.failWith(errPrimaryDown)

	created, err := fixture.facade.CreateSandwichCollection(ctx, collectionRecord(0, "2024-01-13", "Alpharetta", 80))
	require.NoError(t, err)

	records, err := fixture.fallback.MemoryStore.GetAllSandwichCollections(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, created.ID, records[0].ID)
}

func TestFacadeUpdateCollectionHostNamesCountsMatches(t *testing.T) {
	fixture := newFacadeFixture(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := fixture.primary.MemoryStore.CreateSandwichCollection(ctx, collectionRecord(0, "2024-05-04", "Group 3", 10))
		require.NoError(t, err)
	}
	for i := 0; i < 6; i++ {
		_, err := fixture.primary.MemoryStore.CreateSandwichCollection(ctx, collectionRecord(0, "2024-05-04", "Roswell", 10))
		require.NoError(t, err)
	}

	affected, err := fixture.facade.UpdateCollectionHostNames(ctx, "Group 3", "East Metro")
	require.NoError(t, err)
	assert.Equal(t, int64(4), affected)
	assert.Equal(t, 1, fixture.primary.renameCalls)
	assert.Equal(t, 0, fixture.fallback.renameCalls)

	records, err := fixture.facade.GetAllSandwichCollections(ctx)
	require.NoError(t, err)
	counts := map[string]int{}
	for _, record := range records {
		counts[record.HostName]++
	}
	assert.Equal(t, map[string]int{"East Metro": 4, "Roswell": 6}, counts)
}

func TestNewFacadeFallsBackWhenPrimaryConstructionFails(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	fallback := NewMemoryStore()
	facade := NewFacade(FacadeConfig{
		Primary:  func() (Store, error) { return nil, errPrimaryDown },
		Fallback: fallback,
		Logger:   zap.New(core),
	})
	require.NotNil(t, facade)
	assert.True(t, facade.Degraded())
	assert.Equal(t, 1, logs.FilterMessage("primary store construction failed, serving from fallback store").Len())

	ctx := context.Background()
	created, err := facade.CreateSandwichCollection(ctx, collectionRecord(0, "2024-06-01", "Roswell", 9))
	require.NoError(t, err)
	stored, err := fallback.GetSandwichCollection(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	deleted, err := facade.DeleteSandwichCollection(ctx, 999)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestNewFacadeWithoutConfiguration(t *testing.T) {
	facade := NewFacade(FacadeConfig{})
	require.NotNil(t, facade)
	assert.True(t, facade.Degraded())

	stats, err := facade.GetCollectionStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, collections.Stats{}, stats)
}

func TestFacadeSameStoreDoubleFailureIsUnavailable(t *testing.T) {
	store := newScriptedStore()
	store.failWith(errPrimaryDown)
	facade := NewFacade(FacadeConfig{Fallback: store})

	_, err := facade.GetAllSandwichCollections(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, errPrimaryDown)

	_, err = facade.DeleteSandwichCollection(context.Background(), 1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, facade.tombstones.contains(1))
}

func TestFacadeListSandwichCollectionsPages(t *testing.T) {
	fixture := newFacadeFixture(t)
	ctx := context.Background()
	for day := 1; day <= 5; day++ {
		_, err := fixture.facade.CreateSandwichCollection(ctx, collectionRecord(0, fmt.Sprintf("2024-07-%02d", day), "Roswell", day))
		require.NoError(t, err)
	}

	page, err := fixture.facade.ListSandwichCollections(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, Pagination{CurrentPage: 2, TotalPages: 3, TotalItems: 5, ItemsPerPage: 2}, page.Pagination)
	require.Len(t, page.Collections, 2)
	assert.Equal(t, "2024-07-03", page.Collections[0].CollectionDate)

	beyond, err := fixture.facade.ListSandwichCollections(ctx, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, beyond.Collections)

	huge, err := fixture.facade.ListSandwichCollections(ctx, math.MaxInt/2+2, 4)
	require.NoError(t, err)
	assert.Empty(t, huge.Collections)
	assert.Equal(t, math.MaxInt/2+2, huge.Pagination.CurrentPage)

	wide, err := fixture.facade.ListSandwichCollections(ctx, 2, math.MaxInt)
	require.NoError(t, err)
	assert.Empty(t, wide.Collections)
	assert.Equal(t, 1, wide.Pagination.TotalPages)

	all, err := fixture.facade.ListSandwichCollections(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, all.Collections, 5)
	assert.Equal(t, 1, all.Pagination.TotalPages)

	stats, err := fixture.facade.GetCollectionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, collections.Stats{TotalEntries: 5, TotalSandwiches: 15}, stats)
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	series:
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			for key, value := range want {
				if labels[key] != value {
					continue series
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}
