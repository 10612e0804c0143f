// Package export dumps partitions to JSON files for downstream
// analysis tools.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gleaner/store"
)

// Dump is the on-disk shape of one exported partition.
type Dump struct {
	Partition  string         `json:"partition"`
	ExportedAt time.Time      `json:"exported_at"`
	Count      int            `json:"count"`
	Records    []store.Record `json:"records"`
}

// Exporter writes partition dumps under a directory.
type Exporter struct {
	gw  *store.Gateway
	dir string
	log *slog.Logger
}

// New builds an Exporter writing into dir.
func New(gw *store.Gateway, dir string, log *slog.Logger) *Exporter {
	return &Exporter{gw: gw, dir: dir, log: log}
}

// Export writes one partition to <dir>/<key>_labeled.json and returns
// the file path.
func (e *Exporter) Export(ctx context.Context, key string) (string, error) {
	recs, err := e.gw.All(ctx, key)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", key, err)
	}
	if recs == nil {
		recs = []store.Record{}
	}

	dump := Dump{
		Partition:  key,
		ExportedAt: time.Now().UTC(),
		Count:      len(recs),
		Records:    recs,
	}
	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export %s: %w", key, err)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("export %s: %w", key, err)
	}
	path := filepath.Join(e.dir, key+"_labeled.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("export %s: %w", key, err)
	}

	e.log.Info("partition exported", "partition", key, "records", len(recs), "path", path)
	return path, nil
}

// ExportAll exports every partition on disk and returns the written
// file paths.
func (e *Exporter) ExportAll(ctx context.Context) ([]string, error) {
	keys, err := e.gw.Partitions()
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, key := range keys {
		path, err := e.Export(ctx, key)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
