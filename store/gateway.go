// Package store persists collected posts into date-partitioned SQLite
// databases, one file per partition key.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gleaner/dbopen"
	"gleaner/engine"
)

// Gateway owns the partition databases for one run. It implements
// engine.Sink. Partitions open lazily on first write and stay open
// until Close.
type Gateway struct {
	dir     string
	prefix  string
	monthly bool
	log     *slog.Logger

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// NewGateway builds a Gateway rooted at dir. monthly folds all dates of
// a month into one partition.
func NewGateway(dir, prefix string, monthly bool, log *slog.Logger) *Gateway {
	return &Gateway{
		dir:     dir,
		prefix:  prefix,
		monthly: monthly,
		log:     log,
		dbs:     make(map[string]*sql.DB),
	}
}

// Key returns the partition key for a collection date.
func (g *Gateway) Key(day time.Time) string {
	return Resolve(g.prefix, day, g.monthly)
}

// DB opens (or returns the cached) partition database for a key.
func (g *Gateway) DB(key string) (*sql.DB, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if db, ok := g.dbs[key]; ok {
		return db, nil
	}
	db, err := dbopen.Open(filepath.Join(g.dir, key+".db"),
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	)
	if err != nil {
		return nil, fmt.Errorf("open partition %s: %w", key, err)
	}
	g.dbs[key] = db
	return db, nil
}

// Persist upserts the batch into the date's partition and returns how
// many rows were newly created. Re-collected posts refresh their
// metrics but keep downstream processing results untouched. If the
// batch transaction fails, each record is retried individually so one
// malformed row cannot sink the whole batch.
func (g *Gateway) Persist(ctx context.Context, day time.Time, items []engine.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	key := g.Key(day)
	db, err := g.DB(key)
	if err != nil {
		return 0, err
	}

	scrapedAt := time.Now().UTC()
	recs := make([]Record, 0, len(items))
	for _, it := range items {
		recs = append(recs, fromItem(it, scrapedAt))
	}

	var created int
	err = dbopen.RunTx(ctx, db, func(tx *sql.Tx) error {
		before, err := countRecords(ctx, tx)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if err := upsertRecord(ctx, tx, rec); err != nil {
				return err
			}
		}
		after, err := countRecords(ctx, tx)
		if err != nil {
			return err
		}
		created = after - before
		return nil
	})
	if err == nil {
		return created, nil
	}

	g.log.Warn("batch persist failed, falling back to per-record writes",
		"partition", key, "batch", len(recs), "error", err)

	created = 0
	for _, rec := range recs {
		n, err := g.persistOne(ctx, db, rec)
		if err != nil {
			g.log.Error("record persist failed", "partition", key, "id", rec.ID, "error", err)
			continue
		}
		created += n
	}
	return created, nil
}

func (g *Gateway) persistOne(ctx context.Context, db *sql.DB, rec Record) (int, error) {
	var created int
	err := dbopen.RunTx(ctx, db, func(tx *sql.Tx) error {
		before, err := countRecords(ctx, tx)
		if err != nil {
			return err
		}
		if err := upsertRecord(ctx, tx, rec); err != nil {
			return err
		}
		after, err := countRecords(ctx, tx)
		if err != nil {
			return err
		}
		created = after - before
		return nil
	})
	return created, err
}

func countRecords(ctx context.Context, tx *sql.Tx) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n)
	return n, err
}

// upsertRecord writes the core-owned columns. The conflict branch
// deliberately leaves clean_text, location_json, and the sentiment
// columns alone: downstream processing owns them once set.
func upsertRecord(ctx context.Context, tx *sql.Tx, rec Record) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO records (id, text, clean_text, author_name, author_handle,
			created_at, scraped_at, location_json, source_url,
			replies, shares, likes)
		VALUES (?, ?, '', ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text = excluded.text,
			author_name = excluded.author_name,
			author_handle = excluded.author_handle,
			scraped_at = excluded.scraped_at,
			replies = excluded.replies,
			shares = excluded.shares,
			likes = excluded.likes`,
		rec.ID, rec.Text, rec.AuthorName, rec.AuthorHandle,
		rec.CreatedAt.UTC().Format(time.RFC3339), rec.ScrapedAt.UTC().Format(time.RFC3339),
		rec.locationJSON(), rec.SourceURL,
		rec.Replies, rec.Shares, rec.Likes,
	)
	return err
}

// CountForDate reports how many records of a specific date exist in the
// date's partition. In monthly mode the partition holds the whole
// month, so the count filters on the created_at day.
func (g *Gateway) CountForDate(ctx context.Context, day time.Time) (int, error) {
	key := g.Key(day)
	if !g.partitionExists(key) {
		return 0, nil
	}
	db, err := g.DB(key)
	if err != nil {
		return 0, err
	}

	var n int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE substr(created_at, 1, 10) = ?`,
		day.Format("2006-01-02")).Scan(&n)
	return n, err
}

func (g *Gateway) partitionExists(key string) bool {
	g.mu.Lock()
	_, open := g.dbs[key]
	g.mu.Unlock()
	if open {
		return true
	}
	_, err := os.Stat(filepath.Join(g.dir, key+".db"))
	return err == nil
}

// Partitions lists the partition keys present on disk, sorted.
func (g *Gateway) Partitions() ([]string, error) {
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, g.prefix) || !strings.HasSuffix(name, ".db") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".db"))
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes all open partitions.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var firstErr error
	for key, db := range g.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(g.dbs, key)
	}
	return firstErr
}
