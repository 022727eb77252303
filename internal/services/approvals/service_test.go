package approvals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/adapters/memory"
	"intake/internal/domain"
	"intake/internal/ports"
)

func seeded(t *testing.T) *Service {
	t.Helper()
	repo := memory.NewTypeApprovals()
	require.NoError(t, repo.InsertMany(context.Background(), []domain.TypeApproval{
		{ApprovalNumber: "e4*2007/46*0001", Brand: "Volvo", Type: "FH", Variant: "A", Version: "B1"},
		{ApprovalNumber: "e4*2007/46*0002", Brand: "Volvo", Type: "FM", Variant: "A", Version: "B1"},
		{ApprovalNumber: "e1*2001/116*0003", Brand: "DAF", Type: "XF"},
	}))
	return New(repo, memory.NewImportJobs(), nil)
}

func TestLookupRequiresPrefix(t *testing.T) {
	_, err := seeded(t).Lookup(context.Background(), Filter{Brand: "Volvo"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLookupPrefixAndEquality(t *testing.T) {
	svc := seeded(t)
	ctx := context.Background()

	rows, err := svc.Lookup(ctx, Filter{ApprovalPrefix: "E4*2007"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = svc.Lookup(ctx, Filter{ApprovalPrefix: "e4", Brand: "volvo", Type: "fm"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "e4*2007/46*0002", rows[0].ApprovalNumber)

	rows, err = svc.Lookup(ctx, Filter{ApprovalPrefix: "e1", Brand: "Volvo"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEnqueueAndProcessImport(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewTypeApprovals()
	jobs := memory.NewImportJobs()
	svc := New(repo, jobs, nil)

	payload := []byte("approval number,brand\ne5*1,Scania\ne5*2,Scania\n")
	id, err := svc.EnqueueImport(ctx, "scania.csv", payload)
	require.NoError(t, err)

	job, found, err := jobs.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, job.ID)

	n, err := svc.Process(ctx, ports.ImportJob{ID: job.ID, Payload: job.Payload})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestEnqueueRejectsInvalidSheet(t *testing.T) {
	_, err := seeded(t).EnqueueImport(context.Background(), "bad.csv", []byte("brand\nVolvo\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
