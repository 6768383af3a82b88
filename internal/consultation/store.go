// Package consultation keeps the append-only log of tree views and the
// per-tree counters the statistics command reads.
package consultation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"famtree/pkg/domain"
	"famtree/pkg/platform/tx"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Stat summarises the views of one tree.
type Stat struct {
	TreeID       string
	Views        int
	LastViewedAt time.Time
}

// Store is the SQLite consultation log.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record appends one view and bumps the tree's counter in the same
// transaction.
func (s *Store) Record(ctx context.Context, treeID domain.TreeID, viewerID string, at time.Time) error {
	ts := at.UTC().Format(timeLayout)
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		exec := tx.Exec(ctx, s.db)
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO consultations (tree_id, viewer_id, viewed_at) VALUES (?, ?, ?)`,
			treeID.String(), viewerID, ts,
		); err != nil {
			return fmt.Errorf("inserting consultation: %w", err)
		}
		if _, err := exec.ExecContext(ctx,
			`INSERT INTO tree_views (tree_id, views, last_viewed_at) VALUES (?, 1, ?)
			 ON CONFLICT(tree_id) DO UPDATE SET views = views + 1, last_viewed_at = excluded.last_viewed_at`,
			treeID.String(), ts,
		); err != nil {
			return fmt.Errorf("updating tree views: %w", err)
		}
		return nil
	})
}

// CountByTree returns the number of recorded views of treeID.
func (s *Store) CountByTree(ctx context.Context, treeID domain.TreeID) (int, error) {
	var n int
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT views FROM tree_views WHERE tree_id = ?`, treeID.String(),
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counting views: %w", err)
	}
	return n, nil
}

// ViewersSince returns the distinct viewers of treeID from since onwards.
func (s *Store) ViewersSince(ctx context.Context, treeID domain.TreeID, since time.Time) ([]string, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT DISTINCT viewer_id FROM consultations WHERE tree_id = ? AND viewed_at >= ? ORDER BY viewer_id`,
		treeID.String(), since.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("listing viewers: %w", err)
	}
	defer rows.Close()

	var viewers []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		viewers = append(viewers, v)
	}
	return viewers, rows.Err()
}

// Stats returns every tree's counters, most viewed first.
func (s *Store) Stats(ctx context.Context) ([]Stat, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx,
		`SELECT tree_id, views, last_viewed_at FROM tree_views ORDER BY views DESC, tree_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stats: %w", err)
	}
	defer rows.Close()

	var stats []Stat
	for rows.Next() {
		var (
			st   Stat
			last string
		)
		if err := rows.Scan(&st.TreeID, &st.Views, &last); err != nil {
			return nil, err
		}
		if st.LastViewedAt, err = time.Parse(timeLayout, last); err != nil {
			return nil, fmt.Errorf("parsing last view of %s: %w", st.TreeID, err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
