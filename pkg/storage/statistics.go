package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const statisticsSchema = `
CREATE TABLE IF NOT EXISTS statistics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	keywords TEXT NOT NULL,
	query TEXT NOT NULL,
	num_found INTEGER NOT NULL DEFAULT 0,
	page INTEGER NOT NULL DEFAULT 1,
	page_id INTEGER NOT NULL DEFAULT 0,
	language TEXT NOT NULL DEFAULT '',
	time_ms INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_statistics_keywords ON statistics(keywords);
CREATE INDEX IF NOT EXISTS idx_statistics_created_at ON statistics(created_at);
`

// QueryRecord is one executed search.
type QueryRecord struct {
	Query     string
	NumFound  int
	Page      int
	PageID    int
	Language  string
	Duration  time.Duration
	CreatedAt time.Time
}

// FrequentQuery is a query with the number of times it was searched.
type FrequentQuery struct {
	Keywords string
	Count    int
	LastSeen time.Time
}

// TopOptions filters frequent queries.
type TopOptions struct {
	Limit    int
	Language string
	PageID   int
	Since    time.Time
}

// StatisticsStore records executed searches in SQLite.
type StatisticsStore struct {
	db *sql.DB
}

// NewStatisticsStore opens (and creates) the statistics database at dbPath.
func NewStatisticsStore(dbPath string) (*StatisticsStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA temp_store = memory",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(statisticsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating statistics schema: %w", err)
	}

	return &StatisticsStore{db: db}, nil
}

// NormalizeKeywords lowercases q and collapses whitespace so equivalent
// queries are counted together.
func NormalizeKeywords(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

// Record stores r. Blank queries are ignored.
func (s *StatisticsStore) Record(ctx context.Context, r QueryRecord) error {
	keywords := NormalizeKeywords(r.Query)
	if keywords == "" {
		return nil
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Page < 1 {
		r.Page = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO statistics (keywords, query, num_found, page, page_id, language, time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, keywords, r.Query, r.NumFound, r.Page, r.PageID, r.Language, r.Duration.Milliseconds(), r.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("recording query: %w", err)
	}
	return nil
}

// Top returns the most frequent queries that found results, most frequent
// first.
func (s *StatisticsStore) Top(ctx context.Context, opts TopOptions) ([]FrequentQuery, error) {
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	where := []string{"num_found > 0"}
	var args []any
	if opts.Language != "" {
		where = append(where, "language = ?")
		args = append(args, opts.Language)
	}
	if opts.PageID != 0 {
		where = append(where, "page_id = ?")
		args = append(args, opts.PageID)
	}
	if !opts.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, opts.Since.Unix())
	}
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT keywords, COUNT(*) AS hits, MAX(created_at)
		FROM statistics
		WHERE `+strings.Join(where, " AND ")+`
		GROUP BY keywords
		ORDER BY hits DESC, keywords ASC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying frequent searches: %w", err)
	}
	defer rows.Close()

	var out []FrequentQuery
	for rows.Next() {
		var fq FrequentQuery
		var lastSeen int64
		if err := rows.Scan(&fq.Keywords, &fq.Count, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning frequent search: %w", err)
		}
		fq.LastSeen = time.Unix(lastSeen, 0)
		out = append(out, fq)
	}
	return out, rows.Err()
}

// Stats summarizes the recorded queries.
type Stats struct {
	Total       int
	Distinct    int
	NoResults   int
	AvgDuration time.Duration
	First       time.Time
	Last        time.Time
}

// Stats returns a summary of all recorded queries.
func (s *StatisticsStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var avg sql.NullFloat64
	var first, last sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT keywords), COALESCE(SUM(CASE WHEN num_found = 0 THEN 1 ELSE 0 END), 0),
		       AVG(time_ms), MIN(created_at), MAX(created_at)
		FROM statistics
	`).Scan(&st.Total, &st.Distinct, &st.NoResults, &avg, &first, &last)
	if err != nil {
		return st, fmt.Errorf("reading statistics: %w", err)
	}
	if avg.Valid {
		st.AvgDuration = time.Duration(avg.Float64 * float64(time.Millisecond))
	}
	if first.Valid {
		st.First = time.Unix(first.Int64, 0)
	}
	if last.Valid {
		st.Last = time.Unix(last.Int64, 0)
	}
	return st, nil
}

// Prune deletes records older than before and returns how many were removed.
func (s *StatisticsStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM statistics WHERE created_at < ?", before.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning statistics: %w", err)
	}
	return res.RowsAffected()
}

// WALCheckpoint truncates the write-ahead log.
func (s *StatisticsStore) WALCheckpoint() error {
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

func (s *StatisticsStore) Close() error {
	return s.db.Close()
}
