package service

import (
	"context"
	"fmt"
	"time"

	"shipment-consolidator/config"
	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/recordstore"
	"shipment-consolidator/internal/retry"
	"shipment-consolidator/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SourceError records a source whose pending orders could not be fetched
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e SourceError) Unwrap() error {
	return e.Err
}

// OrderDecoder turns a raw order record into one or more orders
type OrderDecoder interface {
	Decode(source string, rec models.Record) []models.Order
}

// SourceFetcher pulls pending orders from every marketplace order store
type SourceFetcher struct {
	store   recordstore.Store
	decoder OrderDecoder
	policy  retry.Policy
	logger  *zap.Logger
}

// NewSourceFetcher creates a new source fetcher
func NewSourceFetcher(store recordstore.Store, decoder OrderDecoder, policy retry.Policy) *SourceFetcher {
	return &SourceFetcher{
		store:   store,
		decoder: decoder,
		policy:  policy,
		logger:  util.GetLogger(),
	}
}

type fetchResult struct {
	orders []models.Order
	err    error
}

// FetchAll fetches every source concurrently. A failing source yields no orders and
// one SourceError; it never cancels or fails its siblings.
func (f *SourceFetcher) FetchAll(ctx context.Context, sources []config.SourceConfig) (map[string][]models.Order, []SourceError) {
	ctx, span := util.StartSpan(ctx, "SourceFetcher.FetchAll")
	defer span.End()

	results := make([]fetchResult, len(sources))
	// a failed source never cancels its siblings, so errors stay in results
	var g errgroup.Group
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			orders, err := f.fetchSource(ctx, src)
			results[i] = fetchResult{orders: orders, err: err}
			return nil
		})
	}
	_ = g.Wait()

	bySource := make(map[string][]models.Order, len(sources))
	var failures []SourceError
	for i, src := range sources {
		res := results[i]
		if res.err != nil {
			util.SourceFetchFailedTotal.WithLabelValues(src.Key).Inc()
			f.logger.Error("Source fetch failed",
				zap.String("source", src.Key),
				zap.String("store_id", src.StoreID),
				zap.Error(res.err))
			bySource[src.Key] = nil
			failures = append(failures, SourceError{Source: src.Key, Err: res.err})
			continue
		}
		util.OrdersFetchedTotal.WithLabelValues(src.Key).Add(float64(len(res.orders)))
		bySource[src.Key] = res.orders
	}

	return bySource, failures
}

func (f *SourceFetcher) fetchSource(ctx context.Context, src config.SourceConfig) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "SourceFetcher.fetchSource")
	defer span.End()

	policy := f.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		util.StoreRetriesTotal.WithLabelValues("fetch").Inc()
		f.logger.Warn("Retrying source fetch",
			zap.String("source", src.Key),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	var records []models.Record
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		records, err = f.store.Fetch(ctx, src.StoreID,
			recordstore.Filter{Field: models.FieldStatus, Value: models.OrderStatusPending}, nil)
		return err
	})
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}

	orders := make([]models.Order, 0, len(records))
	for _, rec := range records {
		orders = append(orders, f.decoder.Decode(src.Key, rec)...)
	}

	f.logger.Info("Fetched pending orders",
		zap.String("source", src.Key),
		zap.Int("records", len(records)),
		zap.Int("orders", len(orders)))
	return orders, nil
}
