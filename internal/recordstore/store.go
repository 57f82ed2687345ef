// Package recordstore is the boundary to the generic records store that holds
// marketplace orders, the listing catalog and shipment instructions.
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"shipment-consolidator/internal/models"
)

// MaxBatch is the upstream limit on keys per set-membership query and records per write
const MaxBatch = 100

// Store is the records store collaborator
type Store interface {
	Fetch(ctx context.Context, storeID string, filter Filter, fields []string) ([]models.Record, error)
	FetchIn(ctx context.Context, storeID, keyField string, keys []string, fields []string) ([]models.Record, error)
	BulkWrite(ctx context.Context, storeID string, records []models.Record) (WriteResult, error)
	BulkUpdate(ctx context.Context, storeID string, updates []Update) (WriteResult, error)
}

// Filter is an equality filter on one field
type Filter struct {
	Field string
	Value string
}

// Query renders the filter in the store's query syntax
func (f Filter) Query() string {
	if f.Field == "" {
		return ""
	}
	return fmt.Sprintf("%s = %s", f.Field, quote(f.Value))
}

// InQuery renders a set-membership query
func InQuery(field string, keys []string) string {
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = quote(k)
	}
	return fmt.Sprintf("%s in (%s)", field, strings.Join(quoted, ", "))
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}

// Update is a partial update of one record
type Update struct {
	ID     string        `json:"id"`
	Record models.Record `json:"record"`
}

// WriteResult lists the record ids touched by a bulk call
type WriteResult struct {
	IDs []string `json:"ids"`
}

// StatusError is returned when the store answers with a non-success status
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("records store returned %d", e.Code)
	}
	return fmt.Sprintf("records store returned %d: %s", e.Code, e.Body)
}

// ErrMalformedPayload is returned when a response body cannot be decoded
var ErrMalformedPayload = errors.New("malformed records store payload")

// IsRetryable reports whether err is a transient store failure: 429, any 5xx,
// or a network error that never produced a status.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || (se.Code >= 500 && se.Code <= 599)
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Chunk splits items into consecutive slices of at most size elements.
// A non-positive size uses MaxBatch.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = MaxBatch
	}
	if len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}
