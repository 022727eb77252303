package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/adapters/memory"
	"intake/internal/domain"
)

type brokenRepo struct{}

func (brokenRepo) List(context.Context) ([]domain.ArchiveEntry, error) { return nil, nil }
func (brokenRepo) Insert(context.Context, string, domain.ArchiveEntry) (domain.ArchiveEntry, error) {
	return domain.ArchiveEntry{}, errors.New("connection reset")
}
func (brokenRepo) Upsert(context.Context, string, domain.ArchiveEntry) (domain.ArchiveEntry, error) {
	return domain.ArchiveEntry{}, errors.New("connection reset")
}

// gatedArchive holds every Insert until release is closed, so callers
// computing keys from the same List snapshot race on the write.
type gatedArchive struct {
	*memory.Archive
	entered chan struct{}
	release chan struct{}
}

func (g *gatedArchive) Insert(ctx context.Context, key string, e domain.ArchiveEntry) (domain.ArchiveEntry, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.Archive.Insert(ctx, key, e)
}

func entry(branch, chassis, brand string) domain.ArchiveEntry {
	return domain.ArchiveEntry{Branch: branch, Record: domain.Record{Vehicle: domain.VehicleFields{ChassisNumber: chassis, Brand: brand}}}
}

func TestNewKey(t *testing.T) {
	assert.Equal(t, "DEN-BOSCH_WDB-123", NewKey("Den Bosch", "wdb 123", nil))
	assert.Equal(t, "A_CH1", NewKey("a", "c.h.1", nil))
	taken := map[string]bool{"A_CH1": true, "A_CH1-2": true}
	assert.Equal(t, "A_CH1-3", NewKey("a", "CH1", func(k string) bool { return taken[k] }))
	assert.Equal(t, "UNKNOWN_UNKNOWN", NewKey("", "", nil))
}

func TestCommitAppendsWithFreshKey(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.NewArchive())

	first, err := svc.Commit(ctx, entry("A", "CH1", "Volvo"), "")
	require.NoError(t, err)
	second, err := svc.Commit(ctx, entry("A", "CH1", "Volvo"), "")
	require.NoError(t, err)

	assert.Equal(t, "A_CH1", first.Key)
	assert.Equal(t, "A_CH1-2", second.Key)
	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCommitReplacesEditedEntry(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.NewArchive())
	first, err := svc.Commit(ctx, entry("A", "CH1", "Volvo"), "")
	require.NoError(t, err)

	edited, err := svc.Commit(ctx, entry("A", "CH1", "Scania"), first.Key)
	require.NoError(t, err)
	assert.Equal(t, first.Key, edited.Key)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Scania", all[0].Record.Vehicle.Brand)
}

func TestCommitUnknownEditingKeyAppends(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.NewArchive())
	saved, err := svc.Commit(ctx, entry("A", "CH9", ""), "A_GONE")
	require.NoError(t, err)
	assert.Equal(t, "A_CH9", saved.Key)
}

func TestConcurrentCommitsBothAppend(t *testing.T) {
	ctx := context.Background()
	repo := &gatedArchive{Archive: memory.NewArchive(), entered: make(chan struct{}, 4), release: make(chan struct{})}
	svc := New(repo)

	type result struct {
		saved domain.ArchiveEntry
		err   error
	}
	results := make(chan result, 2)
	for _, owner := range []string{"Jansen Transport", "Second Owner"} {
		e := entry("Utrecht", "CH1", "Volvo")
		e.Record.Vehicle.Owner = owner
		go func() {
			saved, err := svc.Commit(ctx, e, "")
			results <- result{saved, err}
		}()
	}
	<-repo.entered
	<-repo.entered
	close(repo.release)

	keys := map[string]bool{}
	for i := 0; i < 2; i++ {
		r := <-results
		require.NoError(t, r.err)
		keys[r.saved.Key] = true
	}
	assert.Equal(t, map[string]bool{"UTRECHT_CH1": true, "UTRECHT_CH1-2": true}, keys)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	owners := []string{all[0].Record.Vehicle.Owner, all[1].Record.Vehicle.Owner}
	assert.ElementsMatch(t, []string{"Jansen Transport", "Second Owner"}, owners)
}

func TestCommitInsertNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewArchive()
	_, err := repo.Insert(ctx, "A_CH1", entry("A", "CH1", "Volvo"))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, "A_CH1", entry("A", "CH1", "Scania"))
	assert.ErrorIs(t, err, domain.ErrKeyTaken)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Volvo", all[0].Record.Vehicle.Brand)
}

func TestCommitFailureIsArchiveCommitError(t *testing.T) {
	_, err := New(brokenRepo{}).Commit(context.Background(), entry("A", "CH1", ""), "")
	assert.ErrorIs(t, err, domain.ErrArchiveCommit)
}

func TestSearchAndGet(t *testing.T) {
	ctx := context.Background()
	svc := New(memory.NewArchive())
	_, err := svc.Commit(ctx, entry("Utrecht", "WDB1", "Mercedes"), "")
	require.NoError(t, err)
	_, err = svc.Commit(ctx, entry("Zwolle", "YV2", "Volvo"), "")
	require.NoError(t, err)

	hits, err := svc.Search(ctx, "volvo")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ZWOLLE_YV2", hits[0].Key)

	all, err := svc.Search(ctx, " ")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := svc.Get(ctx, "UTRECHT_WDB1")
	require.NoError(t, err)
	assert.Equal(t, "Mercedes", got.Record.Vehicle.Brand)

	_, err = svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
