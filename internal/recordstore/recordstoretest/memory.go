// Package recordstoretest provides an in-memory recordstore.Store for tests.
package recordstoretest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/recordstore"
)

var _ recordstore.Store = (*Memory)(nil)

// Memory is an in-process recordstore.Store. Errors can be queued per store id to
// simulate upstream failures, and a cancelled context fails the call the way
// the HTTP client does. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	stores map[string][]models.Record
	nextID int
	faults map[string][]error
	always map[string]error
	calls  map[string]int
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		stores: make(map[string][]models.Record),
		faults: make(map[string][]error),
		always: make(map[string]error),
		calls:  make(map[string]int),
	}
}

// Seed adds records to a store, assigning ids to records without one
func (m *Memory) Seed(storeID string, records ...models.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.stores[storeID] = append(m.stores[storeID], m.withID(r))
	}
}

// FailNext queues errors returned by the next calls against storeID
func (m *Memory) FailNext(storeID string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[storeID] = append(m.faults[storeID], errs...)
}

// FailAlways makes every call against storeID return err; nil clears it
func (m *Memory) FailAlways(storeID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.always, storeID)
		return
	}
	m.always[storeID] = err
}

// Records returns a copy of every record in storeID
func (m *Memory) Records(storeID string) []models.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Record, len(m.stores[storeID]))
	for i, r := range m.stores[storeID] {
		out[i] = copyRecord(r)
	}
	return out
}

// Calls returns how many calls were made against storeID
func (m *Memory) Calls(storeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[storeID]
}

func (m *Memory) Fetch(ctx context.Context, storeID string, filter recordstore.Filter, fields []string) ([]models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(ctx, storeID); err != nil {
		return nil, err
	}
	var out []models.Record
	for _, r := range m.stores[storeID] {
		if filter.Field != "" && r.String(filter.Field) != filter.Value {
			continue
		}
		out = append(out, project(r, fields))
	}
	return out, nil
}

func (m *Memory) FetchIn(ctx context.Context, storeID, keyField string, keys []string, fields []string) ([]models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(ctx, storeID); err != nil {
		return nil, err
	}
	if len(keys) > recordstore.MaxBatch {
		return nil, &recordstore.StatusError{Code: http.StatusBadRequest, Body: "too many keys"}
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	var out []models.Record
	for _, r := range m.stores[storeID] {
		if _, ok := set[r.String(keyField)]; ok {
			out = append(out, project(r, fields))
		}
	}
	return out, nil
}

func (m *Memory) BulkWrite(ctx context.Context, storeID string, records []models.Record) (recordstore.WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(ctx, storeID); err != nil {
		return recordstore.WriteResult{}, err
	}
	if len(records) > recordstore.MaxBatch {
		return recordstore.WriteResult{}, &recordstore.StatusError{Code: http.StatusBadRequest, Body: "too many records"}
	}
	res := recordstore.WriteResult{IDs: make([]string, 0, len(records))}
	for _, r := range records {
		stored := m.withID(copyRecord(r))
		m.stores[storeID] = append(m.stores[storeID], stored)
		res.IDs = append(res.IDs, stored.ID())
	}
	return res, nil
}

func (m *Memory) BulkUpdate(ctx context.Context, storeID string, updates []recordstore.Update) (recordstore.WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(ctx, storeID); err != nil {
		return recordstore.WriteResult{}, err
	}
	if len(updates) > recordstore.MaxBatch {
		return recordstore.WriteResult{}, &recordstore.StatusError{Code: http.StatusBadRequest, Body: "too many records"}
	}

	index := make(map[string]int, len(m.stores[storeID]))
	for i, r := range m.stores[storeID] {
		index[r.ID()] = i
	}
	for _, u := range updates {
		if _, ok := index[u.ID]; !ok {
			return recordstore.WriteResult{}, &recordstore.StatusError{Code: http.StatusNotFound, Body: fmt.Sprintf("record %s not found", u.ID)}
		}
	}

	res := recordstore.WriteResult{IDs: make([]string, 0, len(updates))}
	for _, u := range updates {
		r := m.stores[storeID][index[u.ID]]
		for k, v := range u.Record {
			r[k] = v
		}
		res.IDs = append(res.IDs, u.ID)
	}
	return res, nil
}

// fault must be called with mu held
func (m *Memory) fault(ctx context.Context, storeID string) error {
	m.calls[storeID]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := m.always[storeID]; ok {
		return err
	}
	if q := m.faults[storeID]; len(q) > 0 {
		m.faults[storeID] = q[1:]
		return q[0]
	}
	return nil
}

// withID must be called with mu held
func (m *Memory) withID(r models.Record) models.Record {
	if r == nil {
		r = models.Record{}
	}
	if r.ID() == "" {
		m.nextID++
		r[models.FieldID] = strconv.Itoa(m.nextID)
	}
	return r
}

func project(r models.Record, fields []string) models.Record {
	if len(fields) == 0 {
		return copyRecord(r)
	}
	out := models.Record{models.FieldID: r[models.FieldID]}
	for _, f := range fields {
		if v, ok := r[f]; ok {
			out[f] = v
		}
	}
	return out
}

func copyRecord(r models.Record) models.Record {
	out := make(models.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
