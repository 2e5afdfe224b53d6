package collection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type sqliteStore struct {
	col *SQLiteCollection
}

func (s *sqliteStore) Meta(ctx context.Context) (Meta, error) {
	db, err := s.col.conn()
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	if err := db.QueryRowContext(ctx, `SELECT mod, scm, usn, ls, crt FROM col`).
		Scan(&m.Mod, &m.SchemaMod, &m.USN, &m.LastSync, &m.Created); err != nil {
		return Meta{}, fmt.Errorf("failed to read collection meta: %w", err)
	}
	return m, nil
}

func (s *sqliteStore) BasicCheck(ctx context.Context) (bool, error) {
	db, err := s.col.conn()
	if err != nil {
		return false, err
	}
	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return false, fmt.Errorf("failed to run integrity check: %w", err)
	}
	return result == "ok", nil
}

func (s *sqliteStore) PrepareFullUpload(ctx context.Context) error {
	db, err := s.col.conn()
	if err != nil {
		return err
	}
	now := s.col.now().UnixMilli()
	return withTx(ctx, db, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`UPDATE records SET usn = 0`,
			`DELETE FROM graves`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to prepare upload: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE col SET scm = ?, mod = ?, ls = ?, usn = 0`, now, now, now); err != nil {
			return fmt.Errorf("failed to prepare upload: %w", err)
		}
		return nil
	})
}

func (s *sqliteStore) SyncTx(ctx context.Context, fn func(tx SyncTx) (bool, error)) error {
	db, err := s.col.conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin sync transaction: %w", err)
	}

	commit, err := fn(&sqliteTx{tx: tx})
	if err != nil || !commit {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("failed to roll back sync transaction: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync transaction: %w", err)
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func usnFilter(since int) (string, int) {
	if since < 0 {
		return "usn = ?", PendingUSN
	}
	return "usn >= ?", since
}

func (t *sqliteTx) Graves(ctx context.Context, since int) ([]Grave, error) {
	cond, arg := usnFilter(since)
	rows, err := t.tx.QueryContext(ctx, `SELECT kind, id FROM graves WHERE `+cond+` ORDER BY kind, id`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list removals: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var graves []Grave
	for rows.Next() {
		var g Grave
		var kind string
		if err := rows.Scan(&kind, &g.ID); err != nil {
			return nil, fmt.Errorf("failed to scan removal: %w", err)
		}
		g.Kind = Kind(kind)
		graves = append(graves, g)
	}
	return graves, rows.Err()
}

func (t *sqliteTx) MarkGravesSent(ctx context.Context, usn int) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE graves SET usn = ? WHERE usn = ?`, usn, PendingUSN); err != nil {
		return fmt.Errorf("failed to mark removals sent: %w", err)
	}
	return nil
}

func (t *sqliteTx) ApplyGraves(ctx context.Context, graves []Grave, usn int) error {
	for _, g := range graves {
		if _, err := t.tx.ExecContext(ctx,
			`DELETE FROM records WHERE kind = ? AND id = ?`, string(g.Kind), g.ID); err != nil {
			return fmt.Errorf("failed to apply removal of %s %d: %w", g.Kind, g.ID, err)
		}
		if _, err := t.tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO graves (kind, id, usn) VALUES (?, ?, ?)`, string(g.Kind), g.ID, usn); err != nil {
			return fmt.Errorf("failed to record removal of %s %d: %w", g.Kind, g.ID, err)
		}
	}
	return nil
}

func (t *sqliteTx) Changed(ctx context.Context, kinds []Kind, since int, limit int) ([]Record, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	cond, usnArg := usnFilter(since)

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(kinds)), ",")
	args := make([]any, 0, len(kinds)+2)
	for _, k := range kinds {
		args = append(args, string(k))
	}
	args = append(args, usnArg)

	query := `SELECT kind, id, mod, usn, data FROM records WHERE kind IN (` + placeholders + `) AND ` +
		cond + ` ORDER BY kind, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list changes: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []Record
	for rows.Next() {
		var r Record
		var kind, data string
		if err := rows.Scan(&kind, &r.ID, &r.Mod, &r.USN, &data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Kind = Kind(kind)
		r.Data = json.RawMessage(data)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (t *sqliteTx) MarkSent(ctx context.Context, records []Record, usn int) error {
	for _, r := range records {
		if _, err := t.tx.ExecContext(ctx,
			`UPDATE records SET usn = ? WHERE kind = ? AND id = ? AND usn = ?`,
			usn, string(r.Kind), r.ID, PendingUSN); err != nil {
			return fmt.Errorf("failed to mark %s %d sent: %w", r.Kind, r.ID, err)
		}
	}
	return nil
}

func (t *sqliteTx) Merge(ctx context.Context, records []Record, usn int) error {
	for _, r := range records {
		var localMod int64
		err := t.tx.QueryRowContext(ctx,
			`SELECT mod FROM records WHERE kind = ? AND id = ?`, string(r.Kind), r.ID).Scan(&localMod)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to read %s %d: %w", r.Kind, r.ID, err)
		case localMod >= r.Mod:
			continue
		}

		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO records (kind, id, mod, usn, data) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (kind, id) DO UPDATE SET mod = excluded.mod, usn = excluded.usn, data = excluded.data`,
			string(r.Kind), r.ID, r.Mod, usn, string(r.Data)); err != nil {
			return fmt.Errorf("failed to merge %s %d: %w", r.Kind, r.ID, err)
		}
	}
	return nil
}

func (t *sqliteTx) Counts(ctx context.Context) (Counts, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT kind, count(*) FROM records GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := Counts{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[Kind(kind)] = n
	}
	return counts, rows.Err()
}

func (t *sqliteTx) Finish(ctx context.Context, mod int64, usn int) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE col SET mod = ?, ls = ?, usn = ?`, mod, mod, usn); err != nil {
		return fmt.Errorf("failed to record sync completion: %w", err)
	}
	return nil
}
