package service

import (
	"context"
	"testing"

	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/recordstore"
	"shipment-consolidator/internal/recordstore/recordstoretest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAllFiltersPending(t *testing.T) {
	mem := recordstoretest.NewMemory()
	done := rakutenOrder("MN-2", 1)
	done[models.FieldStatus] = models.OrderStatusIssued
	mem.Seed("app-rakuten", rakutenOrder("MN-1", 1), done)
	mem.Seed("app-amazon", amazonOrder("SKU-1", 1))

	sources := testSources()
	f := NewSourceFetcher(mem, NewTransformer(DefaultMarketplaces(), sources), testPolicy())
	orders, failures := f.FetchAll(context.Background(), sources)

	assert.Empty(t, failures)
	require.Len(t, orders["rakuten"], 1)
	assert.Equal(t, "MN-1", orders["rakuten"][0].ManagementKey)
	assert.Len(t, orders["amazon"], 1)
	assert.Empty(t, orders["yahoo"])
}

func TestFetchAllIsolatesFailingSource(t *testing.T) {
	mem := recordstoretest.NewMemory()
	mem.Seed("app-rakuten", rakutenOrder("MN-1", 1))
	mem.Seed("app-amazon", amazonOrder("SKU-1", 1))
	mem.Seed("app-yahoo", yahooOrder(models.Record{"group_id": "G-1", "quantity": 1}))
	mem.FailAlways("app-amazon", errUnavailable)

	sources := testSources()
	f := NewSourceFetcher(mem, NewTransformer(DefaultMarketplaces(), sources), testPolicy())
	orders, failures := f.FetchAll(context.Background(), sources)

	require.Len(t, failures, 1)
	assert.Equal(t, "amazon", failures[0].Source)
	assert.ErrorIs(t, failures[0], errUnavailable)
	assert.Equal(t, 3, mem.Calls("app-amazon"), "first attempt plus two retries")

	assert.Len(t, orders["rakuten"], 1)
	assert.Len(t, orders["yahoo"], 1)
	assert.Empty(t, orders["amazon"])
}

func TestFetchAllRecoversFromTransientError(t *testing.T) {
	mem := recordstoretest.NewMemory()
	mem.Seed("app-rakuten", rakutenOrder("MN-1", 1))
	mem.FailNext("app-rakuten", &recordstore.StatusError{Code: 429})

	sources := testSources()[:1]
	f := NewSourceFetcher(mem, NewTransformer(DefaultMarketplaces(), sources), testPolicy())
	orders, failures := f.FetchAll(context.Background(), sources)

	assert.Empty(t, failures)
	assert.Len(t, orders["rakuten"], 1)
	assert.Equal(t, 2, mem.Calls("app-rakuten"))
}

func TestFetchAllDoesNotRetryClientErrors(t *testing.T) {
	mem := recordstoretest.NewMemory()
	mem.FailNext("app-rakuten", &recordstore.StatusError{Code: 400, Body: "bad query"})

	sources := testSources()[:1]
	f := NewSourceFetcher(mem, NewTransformer(DefaultMarketplaces(), sources), testPolicy())
	_, failures := f.FetchAll(context.Background(), sources)

	require.Len(t, failures, 1)
	assert.Equal(t, 1, mem.Calls("app-rakuten"))
}
