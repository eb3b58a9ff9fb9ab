package taxtable

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/salestax-cli/internal/model"
)

type fakeFetcher struct {
	body  string
	file  string // path copied by DownloadToFile
	err   error
	calls int
}

func (f *fakeFetcher) Download(_ context.Context, _ string) (io.ReadCloser, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func (f *fakeFetcher) DownloadToFile(_ context.Context, _ string, path string) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	data, err := os.ReadFile(f.file)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

type stubProvider struct {
	name  string
	rows  []model.TaxTableRow
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Fetch(_ context.Context) ([]model.TaxTableRow, error) {
	s.calls++
	return s.rows, s.err
}

type memCache struct {
	mu        sync.Mutex
	rows      map[string][]model.TaxTableRow
	fetchedAt map[string]time.Time
	loadErr   error
	saveErr   error
	saves     int
}

func newMemCache() *memCache {
	return &memCache{
		rows:      make(map[string][]model.TaxTableRow),
		fetchedAt: make(map[string]time.Time),
	}
}

func (m *memCache) LoadTaxTable(_ context.Context, source string) ([]model.TaxTableRow, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, time.Time{}, m.loadErr
	}
	return m.rows[source], m.fetchedAt[source], nil
}

func (m *memCache) SaveTaxTable(_ context.Context, source string, rows []model.TaxTableRow, fetchedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.rows[source] = rows
	m.fetchedAt[source] = fetchedAt
	return nil
}

var errUpstream = eris.New("upstream unavailable")
