package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"intake/internal/domain"
)

// ArchiveRepository

func (db *DB) List(ctx context.Context) ([]domain.ArchiveEntry, error) {
	rows, err := db.Pool.Query(ctx, `
        SELECT key, branch, committed_at, payload
        FROM archive_entries
        ORDER BY created_at, key
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ArchiveEntry
	for rows.Next() {
		var e domain.ArchiveEntry
		var payload []byte
		if err := rows.Scan(&e.Key, &e.Branch, &e.CommittedAt, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &e.Record); err != nil {
			return nil, fmt.Errorf("decode archive entry %s: %w", e.Key, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (db *DB) Insert(ctx context.Context, key string, entry domain.ArchiveEntry) (domain.ArchiveEntry, error) {
	entry.Key = key
	entry.Record = entry.Record.Persistable()
	entry.Record.Archive = nil
	payload, err := json.Marshal(entry.Record)
	if err != nil {
		return domain.ArchiveEntry{}, err
	}
	tag, err := db.Pool.Exec(ctx, `
        INSERT INTO archive_entries (key, branch, chassis_number, payload, committed_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (key) DO NOTHING
    `, key, entry.Branch, entry.Record.Vehicle.ChassisNumber, payload, entry.CommittedAt)
	if err != nil {
		return domain.ArchiveEntry{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.ArchiveEntry{}, fmt.Errorf("%s: %w", key, domain.ErrKeyTaken)
	}
	return entry, nil
}

func (db *DB) Upsert(ctx context.Context, key string, entry domain.ArchiveEntry) (domain.ArchiveEntry, error) {
	entry.Key = key
	entry.Record = entry.Record.Persistable()
	entry.Record.Archive = nil
	payload, err := json.Marshal(entry.Record)
	if err != nil {
		return domain.ArchiveEntry{}, err
	}
	_, err = db.Pool.Exec(ctx, `
        INSERT INTO archive_entries (key, branch, chassis_number, payload, committed_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (key) DO UPDATE SET
            branch = EXCLUDED.branch,
            chassis_number = EXCLUDED.chassis_number,
            payload = EXCLUDED.payload,
            committed_at = EXCLUDED.committed_at,
            updated_at = now()
    `, key, entry.Branch, entry.Record.Vehicle.ChassisNumber, payload, entry.CommittedAt)
	if err != nil {
		return domain.ArchiveEntry{}, err
	}
	return entry, nil
}

// SessionPersister

func (db *DB) Save(ctx context.Context, key string, payload []byte) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO session_state (key, payload) VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
    `, key, payload)
	return err
}

func (db *DB) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := db.Pool.QueryRow(ctx, `SELECT payload FROM session_state WHERE key = $1`, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// TypeApprovals returns the reference-table view of db. The table shares
// the pool but not the method set, since List means something else there.
func (db *DB) TypeApprovals() *TypeApprovals { return &TypeApprovals{db: db} }

type TypeApprovals struct{ db *DB }

func (t *TypeApprovals) List(ctx context.Context) ([]domain.TypeApproval, error) {
	rows, err := t.db.Pool.Query(ctx, `
        SELECT id::text, approval_number, brand, type, variant, version, trade_name, extra, imported_at
        FROM type_approvals
        ORDER BY approval_number, imported_at
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TypeApproval
	for rows.Next() {
		var r domain.TypeApproval
		var extra map[string]string
		if err := rows.Scan(&r.ID, &r.ApprovalNumber, &r.Brand, &r.Type, &r.Variant, &r.Version, &r.TradeName, &extra, &r.ImportedAt); err != nil {
			return nil, err
		}
		if len(extra) > 0 {
			r.Extra = extra
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertMany bulk loads rows with COPY.
func (t *TypeApprovals) InsertMany(ctx context.Context, rows []domain.TypeApproval) error {
	if len(rows) == 0 {
		return nil
	}
	src := make([][]any, 0, len(rows))
	for _, r := range rows {
		extra := r.Extra
		if extra == nil {
			extra = map[string]string{}
		}
		src = append(src, []any{r.ApprovalNumber, r.Brand, r.Type, r.Variant, r.Version, r.TradeName, extra})
	}
	_, err := t.db.Pool.CopyFrom(ctx,
		pgx.Identifier{"type_approvals"},
		[]string{"approval_number", "brand", "type", "variant", "version", "trade_name", "extra"},
		pgx.CopyFromRows(src),
	)
	return err
}
