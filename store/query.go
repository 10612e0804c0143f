package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const recordColumns = `id, text, clean_text, author_name, author_handle,
	created_at, scraped_at, location_json, source_url,
	replies, shares, likes, sentiment, sentiment_score, sentiment_analyzed`

// Unprocessed returns up to limit records of a partition that have not
// been through downstream processing, oldest first.
func (g *Gateway) Unprocessed(ctx context.Context, key string, limit int) ([]Record, error) {
	db, err := g.DB(key)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records
		WHERE sentiment_analyzed = 0
		ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// MarkProcessed writes the processing results for one record: cleaned
// text, detected location, and sentiment label.
func (g *Gateway) MarkProcessed(ctx context.Context, key string, rec Record) error {
	db, err := g.DB(key)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		`UPDATE records SET clean_text = ?, location_json = ?,
		sentiment = ?, sentiment_score = ?, sentiment_analyzed = 1
		WHERE id = ?`,
		rec.CleanText, rec.locationJSON(),
		rec.Sentiment, rec.SentimentScore, rec.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("record %s not found in partition %s", rec.ID, key)
	}
	return nil
}

// All returns every record of a partition ordered by creation time.
func (g *Gateway) All(ctx context.Context, key string) ([]Record, error) {
	db, err := g.DB(key)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Search runs an FTS5 match over the cleaned text of a partition.
func (g *Gateway) Search(ctx context.Context, key, match string, limit int) ([]Record, error) {
	db, err := g.DB(key)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records
		WHERE rowid IN (SELECT rowid FROM records_fts WHERE records_fts MATCH ?)
		ORDER BY created_at DESC LIMIT ?`, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Count returns the number of records in a partition.
func (g *Gateway) Count(ctx context.Context, key string) (int, error) {
	db, err := g.DB(key)
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n)
	return n, err
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var recs []Record
	for rows.Next() {
		var (
			rec                  Record
			createdAt, scrapedAt string
			locationJSON         string
			analyzed             int
		)
		if err := rows.Scan(&rec.ID, &rec.Text, &rec.CleanText,
			&rec.AuthorName, &rec.AuthorHandle,
			&createdAt, &scrapedAt, &locationJSON, &rec.SourceURL,
			&rec.Replies, &rec.Shares, &rec.Likes,
			&rec.Sentiment, &rec.SentimentScore, &analyzed); err != nil {
			return nil, err
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		rec.ScrapedAt, _ = time.Parse(time.RFC3339, scrapedAt)
		rec.Location = parseLocation(locationJSON)
		rec.SentimentAnalyzed = analyzed != 0
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
