package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/domain"
	"intake/internal/ports"
)

// Compile-time port checks.
var (
	_ ports.ArchiveRepository      = (*DB)(nil)
	_ ports.SessionPersister       = (*DB)(nil)
	_ ports.ImportJobRepository    = (*DB)(nil)
	_ ports.TypeApprovalRepository = (*TypeApprovals)(nil)
)

// testDB connects to INTAKE_TEST_DATABASE_URL and migrates it. Tests are
// skipped when the variable is unset.
func testDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("INTAKE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("INTAKE_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestArchiveUpsertReplacesByKey(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	key := "TEST_" + uuid.NewString()

	e := domain.ArchiveEntry{Branch: "Utrecht", CommittedAt: time.Now().UTC().Truncate(time.Millisecond),
		Record: domain.Record{Vehicle: domain.VehicleFields{ChassisNumber: "CH1", Brand: "Volvo"}}}
	_, err := db.Upsert(ctx, key, e)
	require.NoError(t, err)
	e.Record.Vehicle.Brand = "Scania"
	_, err = db.Upsert(ctx, key, e)
	require.NoError(t, err)

	all, err := db.List(ctx)
	require.NoError(t, err)
	var hits []domain.ArchiveEntry
	for _, x := range all {
		if x.Key == key {
			hits = append(hits, x)
		}
	}
	require.Len(t, hits, 1)
	assert.Equal(t, "Scania", hits[0].Record.Vehicle.Brand)
}

func TestArchiveInsertRejectsTakenKey(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	key := "TEST_" + uuid.NewString()
	e := domain.ArchiveEntry{Branch: "Utrecht", CommittedAt: time.Now().UTC(),
		Record: domain.Record{Vehicle: domain.VehicleFields{ChassisNumber: "CH1", Owner: "Jansen Transport"}}}

	_, err := db.Insert(ctx, key, e)
	require.NoError(t, err)
	e.Record.Vehicle.Owner = "Second Owner"
	_, err = db.Insert(ctx, key, e)
	assert.ErrorIs(t, err, domain.ErrKeyTaken)

	all, err := db.List(ctx)
	require.NoError(t, err)
	for _, x := range all {
		if x.Key == key {
			assert.Equal(t, "Jansen Transport", x.Record.Vehicle.Owner)
		}
	}
}

func TestSessionStateRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	key := "intake-session:" + uuid.NewString()

	_, found, err := db.Load(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, db.Save(ctx, key, []byte(`{"branch":"A"}`)))
	require.NoError(t, db.Save(ctx, key, []byte(`{"branch":"B"}`)))
	raw, found, err := db.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"branch":"B"}`, string(raw))
}

func TestImportJobLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ta := db.TypeApprovals()

	id, err := db.EnqueueImport(ctx, "sheet.csv", []byte("approval number\ne4*1\n"))
	require.NoError(t, err)
	job, err := db.StartImport(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "sheet.csv", job.FileName)

	prefix := "TEST-" + uuid.NewString()
	require.NoError(t, ta.InsertMany(ctx, []domain.TypeApproval{
		{ApprovalNumber: prefix + "*1", Brand: "DAF", Extra: map[string]string{"Categorie": "N3"}},
	}))
	require.NoError(t, db.MarkCompleted(ctx, id, 1))

	got, err := db.GetImport(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, 1, got.RowsLoaded)

	rows, err := ta.List(ctx)
	require.NoError(t, err)
	found := false
	for _, r := range rows {
		if r.ApprovalNumber == prefix+"*1" {
			found = true
			assert.Equal(t, "N3", r.Extra["Categorie"])
		}
	}
	assert.True(t, found)
}
