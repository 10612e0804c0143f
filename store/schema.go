package store

// Schema is applied to every partition database. It is idempotent;
// partitions are reopened across runs and the schema runs on each open.
const Schema = `
-- Collected posts, one row per source item
CREATE TABLE IF NOT EXISTS records (
    id                 TEXT PRIMARY KEY,
    text               TEXT NOT NULL,
    clean_text         TEXT NOT NULL DEFAULT '',
    author_name        TEXT NOT NULL DEFAULT '',
    author_handle      TEXT NOT NULL DEFAULT '',
    created_at         TEXT NOT NULL,
    scraped_at         TEXT NOT NULL,
    location_json      TEXT NOT NULL DEFAULT '{}',
    source_url         TEXT NOT NULL DEFAULT '',
    replies            INTEGER NOT NULL DEFAULT 0,
    shares             INTEGER NOT NULL DEFAULT 0,
    likes              INTEGER NOT NULL DEFAULT 0,
    sentiment          TEXT NOT NULL DEFAULT '',
    sentiment_score    REAL NOT NULL DEFAULT 0,
    sentiment_analyzed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at);
CREATE INDEX IF NOT EXISTS idx_records_location ON records(location_json);
CREATE INDEX IF NOT EXISTS idx_records_unprocessed ON records(sentiment_analyzed)
    WHERE sentiment_analyzed = 0;

-- FTS5 over cleaned text
CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
    clean_text, content='records', content_rowid='rowid',
    tokenize='unicode61 remove_diacritics 2'
);

-- Triggers to keep FTS5 in sync
CREATE TRIGGER IF NOT EXISTS records_ai AFTER INSERT ON records BEGIN
    INSERT INTO records_fts(rowid, clean_text) VALUES (new.rowid, new.clean_text);
END;
CREATE TRIGGER IF NOT EXISTS records_ad AFTER DELETE ON records BEGIN
    INSERT INTO records_fts(records_fts, rowid, clean_text) VALUES('delete', old.rowid, old.clean_text);
END;
CREATE TRIGGER IF NOT EXISTS records_au AFTER UPDATE ON records BEGIN
    INSERT INTO records_fts(records_fts, rowid, clean_text) VALUES('delete', old.rowid, old.clean_text);
    INSERT INTO records_fts(rowid, clean_text) VALUES (new.rowid, new.clean_text);
END;
`
