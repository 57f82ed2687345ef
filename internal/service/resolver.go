package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"shipment-consolidator/config"
	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/normalize"
	"shipment-consolidator/internal/recordstore"
	"shipment-consolidator/internal/retry"
	"shipment-consolidator/internal/util"

	"go.uber.org/zap"
)

// ListingResolver fetches the master listings every fetched order links to
type ListingResolver struct {
	store     recordstore.Store
	storeID   string
	sources   map[string]config.SourceConfig
	chunkSize int
	policy    retry.Policy
	logger    *zap.Logger
}

// NewListingResolver creates a new listing resolver
func NewListingResolver(
	store recordstore.Store,
	listingStoreID string,
	sources []config.SourceConfig,
	chunkSize int,
	policy retry.Policy,
) *ListingResolver {
	bySource := make(map[string]config.SourceConfig, len(sources))
	for _, s := range sources {
		bySource[s.Key] = s
	}
	return &ListingResolver{
		store:     store,
		storeID:   listingStoreID,
		sources:   bySource,
		chunkSize: chunkSize,
		policy:    policy,
		logger:    util.GetLogger(),
	}
}

// Resolve returns the de-duplicated listings for orders. Any chunk that still
// fails after retries fails the whole call: later steps need the complete set.
func (r *ListingResolver) Resolve(ctx context.Context, orders map[string][]models.Order) ([]models.Listing, error) {
	ctx, span := util.StartSpan(ctx, "ListingResolver.Resolve")
	defer span.End()

	keysByField := r.lookupKeys(orders)

	var records []models.Record
	for _, field := range []string{config.LinkByManagementNumber, config.LinkByGroupID} {
		for _, chunk := range recordstore.Chunk(keysByField[field], r.chunkSize) {
			recs, err := r.fetchChunk(ctx, field, chunk)
			if err != nil {
				util.SpanError(span, err)
				return nil, fmt.Errorf("failed to resolve listings by %s: %w", field, err)
			}
			records = append(records, recs...)
		}
	}

	listings := make([]models.Listing, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		l := ListingFromRecord(rec)
		if _, dup := seen[l.ID]; dup {
			continue
		}
		seen[l.ID] = struct{}{}
		if l.ManagementNumber == "" {
			r.logger.Warn("Listing has no management number",
				zap.String("listing_id", l.ID),
				zap.String("media", l.MediaName),
				zap.String("group_id", l.GroupID))
		}
		listings = append(listings, l)
	}

	util.ListingsResolvedTotal.Add(float64(len(listings)))
	r.logger.Info("Listings resolved",
		zap.Int("management_numbers", len(keysByField[config.LinkByManagementNumber])),
		zap.Int("group_ids", len(keysByField[config.LinkByGroupID])),
		zap.Int("records", len(records)),
		zap.Int("listings", len(listings)))
	return listings, nil
}

// lookupKeys returns the distinct link keys per listing field, sorted. Each key
// is sent both as written on the order and normalized, since the index matches
// listings on the normalized form.
func (r *ListingResolver) lookupKeys(orders map[string][]models.Order) map[string][]string {
	sets := map[string]map[string]struct{}{
		config.LinkByManagementNumber: {},
		config.LinkByGroupID:          {},
	}
	for source, list := range orders {
		field := r.linkField(source)
		for _, o := range list {
			raw := strings.TrimSpace(o.ManagementKey)
			if raw == "" {
				continue
			}
			sets[field][raw] = struct{}{}
			sets[field][normalize.Code(raw)] = struct{}{}
		}
	}

	out := make(map[string][]string, len(sets))
	for field, set := range sets {
		keys := make([]string, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out[field] = keys
	}
	return out
}

func (r *ListingResolver) linkField(source string) string {
	if src, ok := r.sources[source]; ok && src.LinkBy == config.LinkByGroupID {
		return config.LinkByGroupID
	}
	return config.LinkByManagementNumber
}

func (r *ListingResolver) fetchChunk(ctx context.Context, field string, keys []string) ([]models.Record, error) {
	policy := r.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		util.StoreRetriesTotal.WithLabelValues("resolve").Inc()
		r.logger.Warn("Retrying listing fetch",
			zap.String("field", field),
			zap.Int("keys", len(keys)),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	var recs []models.Record
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		var err error
		recs, err = r.store.FetchIn(ctx, r.storeID, field, keys, models.ListingFields())
		return err
	})
	return recs, err
}

// ListingFromRecord decodes a listing store record
func ListingFromRecord(rec models.Record) models.Listing {
	l := models.Listing{
		ID:               rec.ID(),
		MediaName:        rec.String(models.ListingFieldMediaName),
		ManagementNumber: rec.String(models.ListingFieldManagementNumber),
		GroupID:          rec.String(models.ListingFieldGroupID),
		Carrier:          rec.String(models.ListingFieldCarrier),
		DisplayName:      rec.String(models.ListingFieldDisplayName),
		SizeCode:         rec.String(models.ListingFieldSizeCode),
	}
	if floor, ok := parseDate(rec.String(models.ListingFieldExpiryFloor)); ok {
		l.ExpiryFloor = &floor
	}
	for n := 1; n <= models.MaxListingItems; n++ {
		code := rec.String(models.ListingCodeField(n))
		if code == "" {
			continue
		}
		l.Items = append(l.Items, models.ListingItem{
			Code:        code,
			UnitsPerSet: rec.Int(models.ListingUnitsField(n)),
		})
	}
	return l
}

type indexKey struct {
	media string
	field string
	key   string
}

// ListingIndex finds the listings an order contributes to
type ListingIndex struct {
	byKey map[indexKey][]*models.Listing
}

// NewListingIndex indexes listings by media and both link keys
func NewListingIndex(listings []models.Listing) *ListingIndex {
	ix := &ListingIndex{byKey: make(map[indexKey][]*models.Listing)}
	for i := range listings {
		l := &listings[i]
		media := strings.TrimSpace(l.MediaName)
		if l.ManagementNumber != "" {
			k := indexKey{media, config.LinkByManagementNumber, normalize.Code(l.ManagementNumber)}
			ix.byKey[k] = append(ix.byKey[k], l)
		}
		if l.GroupID != "" {
			k := indexKey{media, config.LinkByGroupID, normalize.Code(l.GroupID)}
			ix.byKey[k] = append(ix.byKey[k], l)
		}
	}
	return ix
}

// Lookup returns the listings for a media name, link field and key
func (ix *ListingIndex) Lookup(media, field, key string) []*models.Listing {
	return ix.byKey[indexKey{strings.TrimSpace(media), field, normalize.Code(key)}]
}
