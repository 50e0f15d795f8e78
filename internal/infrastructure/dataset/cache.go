// Package dataset owns the daily materialized snapshot of the master
// shipment dataset and builds the per-request security-filtered view.
// Nothing else reads or writes the snapshot file.
package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
	"github.com/kirillkom/shipment-qna-assistant/internal/core/ports"
)

const snapshotPrefix = "master_"

// Manager keeps at most one live snapshot per calendar day. Cache-mutating
// operations (fetch, cleanup) are serialized behind the mutex; reads of a
// completed snapshot run without it.
type Manager struct {
	dir         string
	store       ports.ObjectStore
	container   string
	blobName    string
	schema      domain.SchemaRegistry
	scopeColumn string
	now         func() time.Time

	mu sync.Mutex
}

type Options struct {
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

func NewManager(dir string, store ports.ObjectStore, container, blobName, scopeColumn string, schema domain.SchemaRegistry) (*Manager, error) {
	return NewManagerWithOptions(dir, store, container, blobName, scopeColumn, schema, Options{})
}

func NewManagerWithOptions(dir string, store ports.ObjectStore, container, blobName, scopeColumn string, schema domain.SchemaRegistry, options Options) (*Manager, error) {
	if dir == "" {
		dir = "./data/dataset-cache"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if scopeColumn == "" {
		scopeColumn = "consignee_codes"
	}
	if schema == nil {
		schema = domain.DefaultShipmentSchema()
	}
	clock := options.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		dir:         dir,
		store:       store,
		container:   container,
		blobName:    blobName,
		schema:      schema,
		scopeColumn: scopeColumn,
		now:         clock,
	}, nil
}

func (m *Manager) dateKey() string {
	return m.now().UTC().Format("2006-01-02")
}

func (m *Manager) snapshotPath(dateKey string) string {
	return filepath.Join(m.dir, snapshotPrefix+dateKey+".xlsx")
}

// EnsureToday returns the path of today's snapshot, fetching it from the
// object store on first use. Stale snapshots are removed eagerly; a partial
// download is never observable at the returned path.
func (m *Manager) EnsureToday(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dateKey := m.dateKey()
	target := m.snapshotPath(dateKey)

	m.cleanupStale(dateKey)

	if _, err := os.Stat(target); err == nil {
		return target, nil
	}

	slog.Info("snapshot_fetch_start", "blob", m.blobName, "date_key", dateKey)
	if err := m.fetchSnapshot(ctx, target); err != nil {
		return "", domain.WrapError(domain.ErrCacheFetch, "ensure snapshot", err)
	}
	slog.Info("snapshot_fetch_done", "path", target)
	return target, nil
}

// fetchSnapshot downloads to a temp file and renames into place so the
// final path only ever holds a complete snapshot.
func (m *Manager) fetchSnapshot(ctx context.Context, target string) (err error) {
	tmp := target + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	body, err := m.store.Download(ctx, m.container, m.blobName)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("download master dataset: %w", err)
	}
	defer body.Close()

	if _, err = io.Copy(f, body); err != nil {
		_ = f.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err = os.Rename(tmp, target); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// cleanupStale removes every snapshot (and orphaned temp file) whose date
// key differs from the current one. Caller holds the mutex.
func (m *Manager) cleanupStale(currentDateKey string) {
	keep := snapshotPrefix + currentDateKey + ".xlsx"
	matches, err := filepath.Glob(filepath.Join(m.dir, snapshotPrefix+"*"))
	if err != nil {
		return
	}
	for _, path := range matches {
		if filepath.Base(path) == keep {
			continue
		}
		if err := os.Remove(path); err != nil {
			slog.Warn("snapshot_cleanup_failed", "path", path, "error", err)
			continue
		}
		slog.Info("snapshot_cleanup", "path", path)
	}
}

// LoadFiltered materializes the caller-scoped, type-coerced view. A row is
// in scope when its scoping collection shares any element with codes. Empty
// codes yield an empty view without touching the snapshot; a missing
// scoping column degrades to an empty view with a logged warning.
func (m *Manager) LoadFiltered(ctx context.Context, codes []string) (*domain.Table, error) {
	if len(codes) == 0 {
		slog.Warn("filtered_load_denied", "reason", "empty scope")
		return &domain.Table{}, nil
	}

	path, err := m.EnsureToday(ctx)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		slog.Error("snapshot_open_failed", "path", path, "error", err)
		return &domain.Table{}, nil
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		slog.Warn("snapshot_empty", "path", path)
		return &domain.Table{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil || len(rows) == 0 {
		slog.Warn("snapshot_unreadable", "path", path, "error", err)
		return &domain.Table{}, nil
	}

	header := rows[0]
	scopeIdx := -1
	for i, col := range header {
		if col == m.scopeColumn {
			scopeIdx = i
			break
		}
	}
	if scopeIdx < 0 {
		slog.Warn("scope_column_missing", "column", m.scopeColumn, "columns", header)
		return &domain.Table{}, nil
	}

	allowed := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		allowed[c] = struct{}{}
	}

	view := &domain.Table{Columns: header}
	for _, record := range rows[1:] {
		if !scopeMatches(cellAt(record, scopeIdx), allowed) {
			continue
		}
		row := make(map[string]any, len(header))
		for i, col := range header {
			row[col] = m.coerce(col, cellAt(record, i))
		}
		view.Rows = append(view.Rows, row)
	}

	slog.Info("filtered_load_done", "rows", view.RowCount(), "scope_count", len(codes))
	return view, nil
}

func cellAt(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func scopeMatches(cell string, allowed map[string]struct{}) bool {
	for _, code := range splitList(cell) {
		if _, ok := allowed[code]; ok {
			return true
		}
	}
	return false
}

func splitList(cell string) []string {
	fields := strings.FieldsFunc(cell, func(r rune) bool {
		return r == ';' || r == ','
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
