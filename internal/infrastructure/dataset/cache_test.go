package dataset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
)

var testClock = func() time.Time {
	return time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
}

type storeFake struct {
	payload []byte
	err     error
	calls   int
}

func (s *storeFake) Download(_ context.Context, _, _ string) (io.ReadCloser, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(bytes.NewReader(s.payload)), nil
}

func snapshotBytes(t *testing.T, header []string, records [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	for i, record := range records {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &record); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	return buf.Bytes()
}

func testSnapshot(t *testing.T) []byte {
	t.Helper()
	header := []string{"container_number", "shipment_status", "cargo_weight_kg", "eta_dp_date", "po_numbers", "consignee_codes"}
	return snapshotBytes(t, header, [][]string{
		{"MSCU1234567", "IN_OCEAN", "1200.5", "2026-09-10", "PO12345;PO67890", "0002990;0003001"},
		{"TCNU7654321", "DELIVERED", "800", "2026-08-01", "PO55555", "9999999"},
	})
}

func newTestManager(t *testing.T, store *storeFake) *Manager {
	t.Helper()
	m, err := NewManagerWithOptions(t.TempDir(), store, "datasets", "master.xlsx", "consignee_codes", nil, Options{Clock: testClock})
	if err != nil {
		t.Fatalf("NewManagerWithOptions() error = %v", err)
	}
	return m
}

func TestLoadFilteredScopesAndCoercesRows(t *testing.T) {
	store := &storeFake{payload: testSnapshot(t)}
	m := newTestManager(t, store)

	view, err := m.LoadFiltered(context.Background(), []string{"0002990"})
	if err != nil {
		t.Fatalf("LoadFiltered() error = %v", err)
	}
	if view.RowCount() != 1 {
		t.Fatalf("RowCount() = %d, want 1", view.RowCount())
	}

	row := view.Rows[0]
	if row["container_number"] != "MSCU1234567" {
		t.Errorf("container_number = %v, want MSCU1234567", row["container_number"])
	}
	if weight, ok := row["cargo_weight_kg"].(float64); !ok || weight != 1200.5 {
		t.Errorf("cargo_weight_kg = %v (%T), want 1200.5 float64", row["cargo_weight_kg"], row["cargo_weight_kg"])
	}
	eta, ok := row["eta_dp_date"].(time.Time)
	if !ok || !eta.Equal(time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("eta_dp_date = %v (%T), want 2026-09-10 time.Time", row["eta_dp_date"], row["eta_dp_date"])
	}
	pos, ok := row["po_numbers"].([]string)
	if !ok || len(pos) != 2 || pos[0] != "PO12345" {
		t.Errorf("po_numbers = %v, want [PO12345 PO67890]", row["po_numbers"])
	}
}

func TestLoadFilteredEmptyScopeSkipsLoad(t *testing.T) {
	store := &storeFake{payload: testSnapshot(t)}
	m := newTestManager(t, store)

	view, err := m.LoadFiltered(context.Background(), nil)
	if err != nil {
		t.Fatalf("LoadFiltered() error = %v", err)
	}
	if !view.IsEmpty() {
		t.Errorf("RowCount() = %d, want empty view", view.RowCount())
	}
	if store.calls != 0 {
		t.Errorf("store calls = %d, want 0", store.calls)
	}
}

func TestEnsureTodayFetchesOnce(t *testing.T) {
	store := &storeFake{payload: testSnapshot(t)}
	m := newTestManager(t, store)

	for i := 0; i < 2; i++ {
		if _, err := m.LoadFiltered(context.Background(), []string{"9999999"}); err != nil {
			t.Fatalf("LoadFiltered() #%d error = %v", i+1, err)
		}
	}
	if store.calls != 1 {
		t.Errorf("store calls = %d, want 1", store.calls)
	}
}

func TestEnsureTodayRemovesStaleSnapshots(t *testing.T) {
	store := &storeFake{payload: testSnapshot(t)}
	m := newTestManager(t, store)

	stale := filepath.Join(m.dir, "master_2020-01-01.xlsx")
	orphan := filepath.Join(m.dir, "master_2026-08-30.xlsx.tmp")
	for _, path := range []string{stale, orphan} {
		if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", path, err)
		}
	}

	path, err := m.EnsureToday(context.Background())
	if err != nil {
		t.Fatalf("EnsureToday() error = %v", err)
	}
	if filepath.Base(path) != "master_2026-08-31.xlsx" {
		t.Errorf("EnsureToday() path = %s, want master_2026-08-31.xlsx", path)
	}
	for _, gone := range []string{stale, orphan} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("stale file %s still present", gone)
		}
	}
}

func TestEnsureTodayDownloadFailureLeavesNoPartial(t *testing.T) {
	store := &storeFake{err: errors.New("blob unavailable")}
	m := newTestManager(t, store)

	if _, err := m.EnsureToday(context.Background()); !domain.IsKind(err, domain.ErrCacheFetch) {
		t.Fatalf("EnsureToday() error = %v, want ErrCacheFetch kind", err)
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("cache dir has %d entries after failed fetch, want 0", len(entries))
	}
}

func TestLoadFilteredMissingScopeColumn(t *testing.T) {
	payload := snapshotBytes(t, []string{"container_number", "shipment_status"}, [][]string{
		{"MSCU1234567", "IN_OCEAN"},
	})
	store := &storeFake{payload: payload}
	m := newTestManager(t, store)

	view, err := m.LoadFiltered(context.Background(), []string{"0002990"})
	if err != nil {
		t.Fatalf("LoadFiltered() error = %v", err)
	}
	if !view.IsEmpty() {
		t.Errorf("RowCount() = %d, want empty view when scoping column is absent", view.RowCount())
	}
}
