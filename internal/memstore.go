package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/openledger/bankfeed/store"
)

// MemStore is an in-memory store.RowStore for tests. Insert errors can
// be queued per table to script partial-failure behavior.
type MemStore struct {
	mu         sync.Mutex
	Tables     map[string][]store.Row
	insertErrs map[string][]error
	Inserts    map[string]int
}

func NewMemStore() *MemStore {
	return &MemStore{
		Tables:     map[string][]store.Row{},
		insertErrs: map[string][]error{},
		Inserts:    map[string]int{},
	}
}

// QueueInsertError makes the next Insert on table fail with err.
func (m *MemStore) QueueInsertError(table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertErrs[table] = append(m.insertErrs[table], err)
}

// Seed adds rows to a table directly.
func (m *MemStore) Seed(table string, rows ...store.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tables[table] = append(m.Tables[table], rows...)
}

func matches(row store.Row, filter store.Filter) bool {
	for k, want := range filter {
		got, ok := row[k]
		if want == nil {
			if ok && got != nil {
				return false
			}
			continue
		}
		if !ok || got == nil || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func project(row store.Row, columns []string) store.Row {
	if len(columns) == 0 {
		out := store.Row{}
		for k, v := range row {
			out[k] = v
		}
		return out
	}

	out := store.Row{}
	for _, c := range columns {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	return out
}

func (m *MemStore) Select(_ context.Context, table string, filter store.Filter, columns []string) ([]store.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []store.Row
	for _, row := range m.Tables[table] {
		if matches(row, filter) {
			out = append(out, project(row, columns))
		}
	}
	return out, nil
}

func (m *MemStore) SelectIn(_ context.Context, table, keyColumn string, keys []string, columns []string) ([]store.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := map[string]bool{}
	for _, k := range keys {
		want[k] = true
	}

	var out []store.Row
	for _, row := range m.Tables[table] {
		if v, ok := row[keyColumn]; ok && want[fmt.Sprint(v)] {
			out = append(out, project(row, columns))
		}
	}
	return out, nil
}

func (m *MemStore) Insert(_ context.Context, table string, rows []store.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Inserts[table]++

	if errs := m.insertErrs[table]; len(errs) > 0 {
		err := errs[0]
		m.insertErrs[table] = errs[1:]
		return err
	}

	for _, row := range rows {
		m.Tables[table] = append(m.Tables[table], project(row, nil))
	}
	return nil
}

func (m *MemStore) Update(_ context.Context, table string, set store.Row, filter store.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, row := range m.Tables[table] {
		if matches(row, filter) {
			for k, v := range set {
				row[k] = v
			}
			n++
		}
	}
	return n, nil
}
