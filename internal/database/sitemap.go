package database

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/webswarm/internal/model"
)

// Discovery kinds stored in the discoveries table.
const (
	KindPage  = "page"
	KindAsset = "asset"
)

// DiscoveryRecord is one path ever discovered on a target.
type DiscoveryRecord struct {
	Path      string
	Kind      string
	FirstSeen time.Time
	LastSeen  time.Time
}

// SaveSiteMap merges the pages and assets of site into the discoveries of
// its origin and returns how many paths had never been seen before.
// A path keeps the kind it was first stored with.
func (hdb *HistoryDB) SaveSiteMap(ctx context.Context, site *model.DiscoveredSite) (int, error) {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO discoveries (target, path, kind, first_seen, last_seen)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(target, path) DO UPDATE SET
		last_seen = excluded.last_seen
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare discovery upsert: %w", err)
	}
	defer stmt.Close()

	now := formatTimestamp(time.Now())
	fresh := 0
	upsert := func(path, kind string) error {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM discoveries WHERE target = ? AND path = ?`,
			site.Origin, path).Scan(&exists); err != nil {
			return fmt.Errorf("failed to look up %s: %w", path, err)
		}
		if exists == 0 {
			fresh++
		}
		if _, err := stmt.ExecContext(ctx, site.Origin, path, kind, now, now); err != nil {
			return fmt.Errorf("failed to save %s: %w", path, err)
		}
		return nil
	}

	for _, p := range site.Pages() {
		if err := upsert(p, KindPage); err != nil {
			return 0, err
		}
	}
	for _, a := range site.Assets() {
		if err := upsert(a, KindAsset); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit site map: %w", err)
	}
	return fresh, nil
}

// GetSiteMap returns every path discovered on target ordered by first
// discovery.
func (hdb *HistoryDB) GetSiteMap(ctx context.Context, target string) ([]DiscoveryRecord, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT path, kind, first_seen, last_seen
	FROM discoveries
	WHERE target = ?
	ORDER BY first_seen, id
	`, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get site map: %w", err)
	}
	defer rows.Close()

	var records []DiscoveryRecord
	for rows.Next() {
		var (
			rec         DiscoveryRecord
			first, last string
		)
		if err := rows.Scan(&rec.Path, &rec.Kind, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan discovery: %w", err)
		}
		rec.FirstSeen = parseTimestamp(first)
		rec.LastSeen = parseTimestamp(last)
		records = append(records, rec)
	}
	return records, rows.Err()
}
