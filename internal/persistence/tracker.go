package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/resistanceisuseless/footprint/internal/enumeration"
	"github.com/resistanceisuseless/footprint/internal/network"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

// Tracker records scan runs and remembers every domain and network seen per
// target.
type Tracker struct {
	db     *sql.DB
	now    func() time.Time
	logger zerolog.Logger
}

type DomainHistory struct {
	Domain    string    `json:"domain"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	SeenCount int       `json:"seen_count"`
	Resolved  bool      `json:"resolved"`
}

type Run struct {
	ID           int64     `json:"id"`
	Target       string    `json:"target"`
	StartedAt    time.Time `json:"started_at"`
	Domains      int       `json:"domains"`
	Resolved     int       `json:"resolved"`
	NewDomains   int       `json:"new_domains"`
	IPv4Networks int       `json:"ipv4_networks"`
	IPv6Networks int       `json:"ipv6_networks"`
}

// RunSummary describes what a tracked run added to the history.
type RunSummary struct {
	RunID       int64
	NewDomains  []string
	NewNetworks []string
}

type DomainStats struct {
	Target          string
	TotalDomains    int
	ResolvedDomains int
	TotalNetworks   int
	Runs            int
	FirstRun        time.Time
	LastRun         time.Time
}

func Open(path string, logger zerolog.Logger) (*Tracker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	t := &Tracker{db: db, now: time.Now, logger: logger}
	if err := t.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return t, nil
}

func (t *Tracker) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		domains INTEGER NOT NULL DEFAULT 0,
		resolved INTEGER NOT NULL DEFAULT 0,
		new_domains INTEGER NOT NULL DEFAULT 0,
		ipv4_networks INTEGER NOT NULL DEFAULT 0,
		ipv6_networks INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS domains (
		target TEXT NOT NULL,
		domain TEXT NOT NULL,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		seen_count INTEGER NOT NULL DEFAULT 1,
		resolved INTEGER NOT NULL DEFAULT 0,
		ipv4 TEXT NOT NULL DEFAULT '',
		ipv6 TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (target, domain)
	);

	CREATE TABLE IF NOT EXISTS networks (
		target TEXT NOT NULL,
		cidr TEXT NOT NULL,
		family INTEGER NOT NULL,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		seen_count INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (target, cidr)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target, started_at);
	CREATE INDEX IF NOT EXISTS idx_domains_first_seen ON domains(target, first_seen);
	`

	_, err := t.db.Exec(schema)
	return err
}

func (t *Tracker) Close() error {
	return t.db.Close()
}

// TrackRun stores one run and returns the records with IsNew set for domains
// never seen before for this target.
func (t *Tracker) TrackRun(ctx context.Context, target string, records []enumeration.DomainRecord, networks network.Networks) ([]enumeration.DomainRecord, RunSummary, error) {
	target = strings.ToLower(target)
	now := t.now().UnixNano()
	summary := RunSummary{}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return records, summary, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	domainStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO domains (target, domain, first_seen, last_seen, seen_count, resolved, ipv4, ipv6)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(target, domain) DO UPDATE SET
			last_seen = excluded.last_seen,
			seen_count = domains.seen_count + 1,
			resolved = excluded.resolved,
			ipv4 = excluded.ipv4,
			ipv6 = excluded.ipv6
		RETURNING seen_count
	`)
	if err != nil {
		return records, summary, fmt.Errorf("failed to prepare domain upsert: %w", err)
	}
	defer domainStmt.Close()

	updated := make([]enumeration.DomainRecord, len(records))
	resolved := 0
	for i, record := range records {
		domain := strings.ToLower(record.Domain)
		if record.HasIPs() {
			resolved++
		}

		var seenCount int
		err := domainStmt.QueryRowContext(ctx, target, domain, now, now,
			record.HasIPs(), strings.Join(record.IPv4, ","), strings.Join(record.IPv6, ",")).Scan(&seenCount)
		if err != nil {
			return records, summary, fmt.Errorf("failed to record domain %s: %w", domain, err)
		}

		record.IsNew = seenCount == 1
		if record.IsNew {
			summary.NewDomains = append(summary.NewDomains, domain)
		}
		updated[i] = record
	}

	networkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO networks (target, cidr, family, first_seen, last_seen, seen_count)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(target, cidr) DO UPDATE SET
			last_seen = excluded.last_seen,
			seen_count = networks.seen_count + 1
		RETURNING seen_count
	`)
	if err != nil {
		return records, summary, fmt.Errorf("failed to prepare network upsert: %w", err)
	}
	defer networkStmt.Close()

	for _, list := range []struct {
		family int
		cidrs  []string
	}{{4, networks.IPv4}, {6, networks.IPv6}} {
		for _, cidr := range list.cidrs {
			var seenCount int
			if err := networkStmt.QueryRowContext(ctx, target, cidr, list.family, now, now).Scan(&seenCount); err != nil {
				return records, summary, fmt.Errorf("failed to record network %s: %w", cidr, err)
			}
			if seenCount == 1 {
				summary.NewNetworks = append(summary.NewNetworks, cidr)
			}
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (target, started_at, domains, resolved, new_domains, ipv4_networks, ipv6_networks)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, target, now, len(records), resolved, len(summary.NewDomains), len(networks.IPv4), len(networks.IPv6))
	if err != nil {
		return records, summary, fmt.Errorf("failed to record run: %w", err)
	}
	summary.RunID, _ = res.LastInsertId()

	if err := tx.Commit(); err != nil {
		return records, summary, fmt.Errorf("failed to commit run: %w", err)
	}

	t.logger.Info().
		Str("target", target).
		Int("new_domains", len(summary.NewDomains)).
		Int("new_networks", len(summary.NewNetworks)).
		Msg("History updated")

	return updated, summary, nil
}

func (t *Tracker) GetDomainStats(ctx context.Context, target string) (DomainStats, error) {
	target = strings.ToLower(target)
	stats := DomainStats{Target: target}

	err := t.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(resolved), 0) FROM domains WHERE target = ?
	`, target).Scan(&stats.TotalDomains, &stats.ResolvedDomains)
	if err != nil {
		return stats, fmt.Errorf("failed to query domain stats: %w", err)
	}

	if err := t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM networks WHERE target = ?`, target).Scan(&stats.TotalNetworks); err != nil {
		return stats, fmt.Errorf("failed to query network stats: %w", err)
	}

	var first, last sql.NullInt64
	err = t.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(started_at), MAX(started_at) FROM runs WHERE target = ?
	`, target).Scan(&stats.Runs, &first, &last)
	if err != nil {
		return stats, fmt.Errorf("failed to query run stats: %w", err)
	}
	if first.Valid {
		stats.FirstRun = time.Unix(0, first.Int64)
	}
	if last.Valid {
		stats.LastRun = time.Unix(0, last.Int64)
	}

	return stats, nil
}

// GetNewDomains returns domains first seen at or after since, oldest first.
func (t *Tracker) GetNewDomains(ctx context.Context, target string, since time.Time) ([]DomainHistory, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT domain, first_seen, last_seen, seen_count, resolved
		FROM domains
		WHERE target = ? AND first_seen >= ?
		ORDER BY first_seen, domain
	`, strings.ToLower(target), since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query new domains: %w", err)
	}
	defer rows.Close()

	var domains []DomainHistory
	for rows.Next() {
		var (
			h                   DomainHistory
			firstSeen, lastSeen int64
		)
		if err := rows.Scan(&h.Domain, &firstSeen, &lastSeen, &h.SeenCount, &h.Resolved); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		h.FirstSeen = time.Unix(0, firstSeen)
		h.LastSeen = time.Unix(0, lastSeen)
		domains = append(domains, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating domains: %w", err)
	}

	return domains, nil
}

// GetRuns returns the most recent runs for a target, newest first. A limit of
// zero returns all runs.
func (t *Tracker) GetRuns(ctx context.Context, target string, limit int) ([]Run, error) {
	query := `
		SELECT id, target, started_at, domains, resolved, new_domains, ipv4_networks, ipv6_networks
		FROM runs
		WHERE target = ?
		ORDER BY started_at DESC, id DESC
	`
	args := []any{strings.ToLower(target)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r         Run
			startedAt int64
		)
		if err := rows.Scan(&r.ID, &r.Target, &startedAt, &r.Domains, &r.Resolved, &r.NewDomains, &r.IPv4Networks, &r.IPv6Networks); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, startedAt)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// Prune forgets domains and networks of a target not seen since before and
// returns how many rows were removed. Runs are kept.
func (t *Tracker) Prune(ctx context.Context, target string, before time.Time) (int64, error) {
	target = strings.ToLower(target)
	cutoff := before.UnixNano()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var removed int64
	for _, table := range []string{"domains", "networks"} {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE target = ? AND last_seen < ?", target, cutoff)
		if err != nil {
			return 0, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}

	t.logger.Info().Str("target", target).Int64("removed", removed).Msg("Old history entries pruned")
	return removed, nil
}
