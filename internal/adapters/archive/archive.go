// Package archive provides SQLite persistence for competitors and match
// history. The store in internal/adapters/repository is authoritative while
// a run is live; the archive is the durable mirror written at commit points
// and queried after the fact.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okian/agon/internal/domain/model"
	"github.com/okian/agon/pkg/logger"
	"github.com/okian/agon/pkg/metrics"
)

// Default configuration values.
const (
	defaultBusyTimeout = 5 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS competitors (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	origin TEXT NOT NULL DEFAULT '',
	rating REAL NOT NULL,
	deviation REAL NOT NULL,
	volatility REAL NOT NULL,
	wins INTEGER NOT NULL DEFAULT 0,
	losses INTEGER NOT NULL DEFAULT 0,
	draws INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS matches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run TEXT NOT NULL,
	round INTEGER NOT NULL,
	competitor_a TEXT NOT NULL,
	competitor_b TEXT NOT NULL,
	result TEXT NOT NULL,
	rating_a_before REAL NOT NULL,
	rating_a_after REAL NOT NULL,
	rating_b_before REAL NOT NULL,
	rating_b_after REAL NOT NULL,
	rationale TEXT NOT NULL DEFAULT '',
	attempts INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_matches_run_round ON matches(run, round);
CREATE INDEX IF NOT EXISTS idx_matches_sides ON matches(competitor_a, competitor_b);
`

// Archive persists rating state and match outcomes across process restarts.
type Archive interface {
	// SaveCompetitors upserts the given competitors. Ratings and tallies are
	// replaced; the original created_at is kept on conflict.
	SaveCompetitors(ctx context.Context, competitors []model.Competitor) error

	// SaveOutcomes appends match outcomes for a run. Indeterminate outcomes
	// are stored too, marked by their status in the result column.
	SaveOutcomes(ctx context.Context, run string, outcomes []model.MatchOutcome) error

	// Matches returns the stored outcomes for a run in insertion order.
	// A negative round returns every round.
	Matches(ctx context.Context, run string, round int) ([]model.MatchOutcome, error)

	// Competitors returns every archived competitor ordered by rating
	// descending.
	Competitors(ctx context.Context) ([]model.Competitor, error)

	// Close releases the underlying database handle.
	Close() error
}

// sqliteArchive is the file-backed Archive implementation.
type sqliteArchive struct {
	db          *sql.DB
	busyTimeout time.Duration
	logger      logger.Logger
}

// NewSQLite opens (or creates) the archive database at path and applies the
// schema. SQLite allows a single writer, so the connection pool is pinned to
// one connection.
func NewSQLite(ctx context.Context, path string, opts ...Option) (Archive, error) {
	if path == "" {
		return nil, fmt.Errorf("archive path is empty")
	}

	a := &sqliteArchive{
		busyTimeout: defaultBusyTimeout,
		logger:      logger.Get().Named("archive"),
	}
	for _, opt := range opts {
		opt(a)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect archive %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", a.busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply archive schema: %w", err)
	}

	a.db = db
	a.logger.Info(ctx, "archive opened", logger.String("path", path))
	return a, nil
}

// SaveCompetitors upserts the batch inside a single transaction so a partial
// commit never reaches the file.
func (a *sqliteArchive) SaveCompetitors(ctx context.Context, competitors []model.Competitor) error {
	if len(competitors) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		a.recordError("begin_tx")
		return fmt.Errorf("begin competitor archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO competitors (id, content, origin, rating, deviation, volatility, wins, losses, draws)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			origin = excluded.origin,
			rating = excluded.rating,
			deviation = excluded.deviation,
			volatility = excluded.volatility,
			wins = excluded.wins,
			losses = excluded.losses,
			draws = excluded.draws`)
	if err != nil {
		a.recordError("prepare")
		return fmt.Errorf("prepare competitor upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range competitors {
		c := &competitors[i]
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.Content, c.Origin,
			c.Rating, c.Deviation, c.Volatility,
			c.Wins, c.Losses, c.Draws,
		); err != nil {
			a.recordError("competitor_write")
			return fmt.Errorf("archive competitor %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		a.recordError("commit")
		return fmt.Errorf("commit competitor archive: %w", err)
	}

	metrics.RecordArchiveWrite(len(competitors))
	a.logger.Debug(ctx, "archived competitors", logger.Int("count", len(competitors)))
	return nil
}

// SaveOutcomes appends the batch inside a single transaction.
func (a *sqliteArchive) SaveOutcomes(ctx context.Context, run string, outcomes []model.MatchOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		a.recordError("begin_tx")
		return fmt.Errorf("begin match archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO matches (run, round, competitor_a, competitor_b, result,
			rating_a_before, rating_a_after, rating_b_before, rating_b_after,
			rationale, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		a.recordError("prepare")
		return fmt.Errorf("prepare match insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range outcomes {
		o := &outcomes[i]
		ts := o.TS
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			run, o.Round, o.AID, o.BID, resultColumn(o),
			o.RatingABefore, o.RatingAAfter, o.RatingBBefore, o.RatingBAfter,
			o.Rationale, o.Attempts, ts,
		); err != nil {
			a.recordError("match_write")
			return fmt.Errorf("archive match %s vs %s: %w", o.AID, o.BID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		a.recordError("commit")
		return fmt.Errorf("commit match archive: %w", err)
	}

	metrics.RecordArchiveWrite(len(outcomes))
	a.logger.Debug(ctx, "archived matches",
		logger.String("run", run),
		logger.Int("count", len(outcomes)))
	return nil
}

// Matches returns the stored outcomes for a run, optionally narrowed to one
// round. Results come back in insertion order.
func (a *sqliteArchive) Matches(ctx context.Context, run string, round int) ([]model.MatchOutcome, error) {
	query := `
		SELECT round, competitor_a, competitor_b, result,
			rating_a_before, rating_a_after, rating_b_before, rating_b_after,
			rationale, attempts, created_at
		FROM matches WHERE run = ?`
	args := []any{run}
	if round >= 0 {
		query += " AND round = ?"
		args = append(args, round)
	}
	query += " ORDER BY id"

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		a.recordError("match_query")
		return nil, fmt.Errorf("query archived matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var outcomes []model.MatchOutcome
	for rows.Next() {
		var o model.MatchOutcome
		var result string
		if err := rows.Scan(
			&o.Round, &o.AID, &o.BID, &result,
			&o.RatingABefore, &o.RatingAAfter, &o.RatingBBefore, &o.RatingBAfter,
			&o.Rationale, &o.Attempts, &o.TS,
		); err != nil {
			a.recordError("match_scan")
			return nil, fmt.Errorf("scan archived match: %w", err)
		}
		o.Status, o.Verdict = statusFromResult(result)
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		a.recordError("match_query")
		return nil, fmt.Errorf("iterate archived matches: %w", err)
	}
	return outcomes, nil
}

// Competitors returns every archived competitor, best rating first.
func (a *sqliteArchive) Competitors(ctx context.Context) ([]model.Competitor, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, content, origin, rating, deviation, volatility, wins, losses, draws
		FROM competitors ORDER BY rating DESC, deviation ASC, id ASC`)
	if err != nil {
		a.recordError("competitor_query")
		return nil, fmt.Errorf("query archived competitors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var competitors []model.Competitor
	for rows.Next() {
		var c model.Competitor
		if err := rows.Scan(
			&c.ID, &c.Content, &c.Origin,
			&c.Rating, &c.Deviation, &c.Volatility,
			&c.Wins, &c.Losses, &c.Draws,
		); err != nil {
			a.recordError("competitor_scan")
			return nil, fmt.Errorf("scan archived competitor: %w", err)
		}
		competitors = append(competitors, c)
	}
	if err := rows.Err(); err != nil {
		a.recordError("competitor_query")
		return nil, fmt.Errorf("iterate archived competitors: %w", err)
	}
	return competitors, nil
}

// Close closes the database handle.
func (a *sqliteArchive) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *sqliteArchive) recordError(kind string) {
	metrics.RecordArchiveError()
	metrics.RecordErrorByComponent("archive", kind)
}

// resultColumn flattens status and verdict into one column: judged outcomes
// store the verdict, indeterminate outcomes store the status marker.
func resultColumn(o *model.MatchOutcome) string {
	if o.Status == model.StatusJudged {
		return string(o.Verdict)
	}
	return string(model.StatusIndeterminate)
}

func statusFromResult(result string) (model.MatchStatus, model.Verdict) {
	switch v := model.Verdict(result); v {
	case model.VerdictAWins, model.VerdictBWins, model.VerdictDraw:
		return model.StatusJudged, v
	default:
		return model.StatusIndeterminate, ""
	}
}
