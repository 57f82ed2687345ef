package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shipment-consolidator/config"
	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const runLockKey = "consolidation-run"

var (
	// ErrRunInProgress is returned when another run holds the run lock
	ErrRunInProgress = errors.New("a consolidation run is already in progress")
	// ErrNoSources is returned when no source is configured
	ErrNoSources = errors.New("no order sources configured")
)

// InventorySource loads the stock lots and product catalog a run allocates against
type InventorySource interface {
	ListStockLots(ctx context.Context) ([]models.StockLot, error)
	ListProductCodes(ctx context.Context) ([]string, error)
}

// RunLocker serializes runs across processes
type RunLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// WrittenMarker remembers orders whose instructions were committed, so a run
// that failed to mark them processed does not write them twice
type WrittenMarker interface {
	IsWritten(ctx context.Context, ref models.OrderRef) (bool, error)
	MarkWritten(ctx context.Context, refs []models.OrderRef, ttl time.Duration) error
}

// RunRecorder persists finished run summaries
type RunRecorder interface {
	SaveRun(ctx context.Context, summary *models.RunSummary) error
}

// RunEventPublisher announces run results
type RunEventPublisher interface {
	PublishInstructionsWritten(ctx context.Context, event *models.InstructionsWrittenEvent) error
	PublishRunCompleted(ctx context.Context, event *models.RunCompletedEvent) error
}

// Dependencies are the optional collaborators of an Orchestrator. Nil fields are skipped.
type Dependencies struct {
	Locker    RunLocker
	Marker    WrittenMarker
	Recorder  RunRecorder
	Publisher RunEventPublisher
}

// RunContext holds everything one run accumulates. A new one is built per run.
type RunContext struct {
	Summary      *models.RunSummary
	FetchDate    time.Time
	Orders       map[string][]models.Order
	Listings     *ListingIndex
	Allocator    *StockAllocator
	Catalog      CatalogIndex
	Instructions []models.ShipmentInstruction
	// AlreadyWritten holds record ids per source skipped because a previous run wrote them
	AlreadyWritten map[string][]string
}

func (rc *RunContext) setState(state string) {
	rc.Summary.State = state
}

// Orchestrator sequences fetch, resolve, allocate, validate, write and mark-processed
type Orchestrator struct {
	fetcher     *SourceFetcher
	resolver    *ListingResolver
	transformer *Transformer
	validator   *AddressValidator
	writer      *BatchWriter
	inventory   InventorySource
	deps        Dependencies
	sources     []config.SourceConfig
	engine      config.EngineConfig
	now         func() time.Time
	logger      *zap.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	fetcher *SourceFetcher,
	resolver *ListingResolver,
	transformer *Transformer,
	validator *AddressValidator,
	writer *BatchWriter,
	inventory InventorySource,
	deps Dependencies,
	sources []config.SourceConfig,
	engine config.EngineConfig,
) *Orchestrator {
	return &Orchestrator{
		fetcher:     fetcher,
		resolver:    resolver,
		transformer: transformer,
		validator:   validator,
		writer:      writer,
		inventory:   inventory,
		deps:        deps,
		sources:     sources,
		engine:      engine,
		now:         time.Now,
		logger:      util.GetLogger(),
	}
}

// Run executes one consolidation run. The returned summary is non-nil whenever the
// run started; the error is non-nil only for a Fatal outcome or when the run could
// not start.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunSummary, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.Run")
	defer span.End()

	if len(o.sources) == 0 {
		return nil, ErrNoSources
	}

	if o.deps.Locker != nil {
		ok, err := o.deps.Locker.AcquireLock(ctx, runLockKey, o.engine.RunLockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !ok {
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := o.deps.Locker.ReleaseLock(context.Background(), runLockKey); err != nil {
				o.logger.Error("Failed to release run lock", zap.Error(err))
			}
		}()
	}

	started := o.now()
	rc := &RunContext{
		Summary:        models.NewRunSummary(uuid.New().String(), started),
		FetchDate:      started,
		AlreadyWritten: make(map[string][]string),
	}
	logger := o.logger.With(zap.String("run_id", rc.Summary.RunID))
	logger.Info("Consolidation run started", zap.Int("sources", len(o.sources)))

	err := o.execute(ctx, rc, logger)
	if err != nil {
		util.SpanError(span, err)
	}
	o.finish(context.WithoutCancel(ctx), rc, logger)
	return rc.Summary, err
}

func (o *Orchestrator) execute(ctx context.Context, rc *RunContext, logger *zap.Logger) error {
	summary := rc.Summary

	rc.setState(models.RunStateFetching)
	if total := o.fetch(ctx, rc); total == 0 {
		summary.NoOp = true
		logger.Info("No pending orders fetched, nothing to do")
		return nil
	}

	rc.setState(models.RunStateResolving)
	listings, err := o.resolver.Resolve(ctx, rc.Orders)
	if err != nil {
		summary.AddError(models.StageResolve, "", err)
		summary.Outcome = models.RunOutcomeFatal
		return fmt.Errorf("listing resolution failed: %w", err)
	}
	rc.Listings = NewListingIndex(listings)

	if err := o.loadLedger(ctx, rc); err != nil {
		summary.AddError(models.StageLedger, "", err)
		summary.Outcome = models.RunOutcomeFatal
		return fmt.Errorf("inventory ledger load failed: %w", err)
	}

	rc.setState(models.RunStateAllocating)
	o.allocate(ctx, rc, logger)

	rc.setState(models.RunStateValidating)
	for i := range rc.Instructions {
		rc.Instructions[i] = o.validator.Validate(rc.Instructions[i])
		if rc.Instructions[i].HasDefect {
			summary.Defects++
		}
	}

	// once the first chunk lands, markers and status updates must follow it
	// even if the caller goes away
	commitCtx := context.WithoutCancel(ctx)

	rc.setState(models.RunStateWriting)
	written := o.write(commitCtx, rc)

	rc.setState(models.RunStateMarkingProcessed)
	o.markProcessed(commitCtx, rc, written)
	return nil
}

// fetch runs phase 1 and returns the number of orders fetched across all sources.
// Sources without a marketplace strategy are not fetched.
func (o *Orchestrator) fetch(ctx context.Context, rc *RunContext) int {
	active := make([]config.SourceConfig, 0, len(o.sources))
	for _, src := range o.sources {
		if !o.transformer.Supports(src.Key) {
			rc.Summary.AddError(models.StageFetch, src.Key,
				fmt.Errorf("no marketplace strategy for %q", src.Marketplace))
			rc.Summary.Source(src.Key).Failed++
			continue
		}
		active = append(active, src)
	}

	orders, failures := o.fetcher.FetchAll(ctx, active)
	rc.Orders = orders
	for _, f := range failures {
		rc.Summary.AddError(models.StageFetch, f.Source, f.Err)
		rc.Summary.Source(f.Source).Failed++
	}
	total := 0
	for _, src := range active {
		n := len(orders[src.Key])
		rc.Summary.Source(src.Key).Fetched = n
		total += n
	}
	return total
}

func (o *Orchestrator) loadLedger(ctx context.Context, rc *RunContext) error {
	lots, err := o.inventory.ListStockLots(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stock lots: %w", err)
	}
	codes, err := o.inventory.ListProductCodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list product codes: %w", err)
	}
	rc.Allocator = NewStockAllocator(lots)
	rc.Catalog = NewCatalogIndex(codes)
	return nil
}

// allocate runs phase 2: sources in configured order, orders in fetched order,
// every allocation on the single run ledger
func (o *Orchestrator) allocate(ctx context.Context, rc *RunContext, logger *zap.Logger) {
	for _, src := range o.sources {
		if len(rc.Orders[src.Key]) == 0 {
			continue
		}
		counts := rc.Summary.Source(src.Key)

		tc := &TransformContext{
			Allocator: rc.Allocator,
			Catalog:   rc.Catalog,
			Source:    src,
			FetchDate: rc.FetchDate,
			Sender:    senderParty(o.engine.Sender),
		}
		field := src.LinkBy
		if field == "" {
			field = config.LinkByManagementNumber
		}

		for _, order := range rc.Orders[src.Key] {
			if o.alreadyWritten(ctx, order, logger) {
				rc.AlreadyWritten[src.Key] = append(rc.AlreadyWritten[src.Key], order.RecordID)
				counts.Skipped++
				continue
			}

			listings := rc.Listings.Lookup(src.MediaName, field, order.ManagementKey)
			if len(listings) == 0 {
				logger.Warn("Order has no listing",
					zap.String("source", src.Key),
					zap.String("record_id", order.RecordID),
					zap.String("management_key", order.ManagementKey))
				counts.Skipped++
				continue
			}
			counts.Resolved++

			produced := 0
			for _, listing := range listings {
				instr := o.transformer.Transform(tc, order, listing)
				if instr == nil {
					continue
				}
				rc.Instructions = append(rc.Instructions, *instr)
				produced++
				if instr.HasShortage {
					rc.Summary.Shortages++
				}
			}
			if produced == 0 {
				counts.Skipped++
				continue
			}
			counts.Allocated += produced
		}
	}
	rc.Summary.Instructions = len(rc.Instructions)
	logger.Info("Allocation finished",
		zap.Int("instructions", len(rc.Instructions)),
		zap.Int("shortages", rc.Allocator.Shortages()))
}

func (o *Orchestrator) alreadyWritten(ctx context.Context, order models.Order, logger *zap.Logger) bool {
	if o.deps.Marker == nil {
		return false
	}
	ok, err := o.deps.Marker.IsWritten(ctx, order.Ref())
	if err != nil {
		logger.Warn("Failed to check written marker, processing order",
			zap.String("source", order.Source),
			zap.String("record_id", order.RecordID),
			zap.Error(err))
		return false
	}
	return ok
}

// write commits every instruction and returns the ones that were written
func (o *Orchestrator) write(ctx context.Context, rc *RunContext) []models.ShipmentInstruction {
	if len(rc.Instructions) == 0 {
		return nil
	}
	report := o.writer.WriteInstructions(ctx, rc.Instructions)
	for _, f := range report.Failures {
		rc.Summary.AddError(models.StageWrite, "", f)
	}

	refsBySource := make(map[string][]models.OrderRef)
	var refs []models.OrderRef
	for _, instr := range report.Written {
		rc.Summary.Source(instr.Source).Written++
		refsBySource[instr.Source] = append(refsBySource[instr.Source], instr.OrderRef())
		refs = append(refs, instr.OrderRef())
	}
	for source, n := range refsBySource {
		util.InstructionsWrittenTotal.WithLabelValues(source).Add(float64(len(n)))
	}

	if o.deps.Marker != nil && len(refs) > 0 {
		if err := o.deps.Marker.MarkWritten(ctx, refs, o.engine.WrittenMarkerTTL); err != nil {
			o.logger.Warn("Failed to set written markers", zap.Error(err))
		}
	}
	if o.deps.Publisher != nil {
		for _, src := range o.sources {
			if len(refsBySource[src.Key]) == 0 {
				continue
			}
			event := &models.InstructionsWrittenEvent{
				BaseEvent: newBaseEvent(models.EventTypeInstructionsWritten, o.now()),
				RunID:     rc.Summary.RunID,
				Source:    src.Key,
				Orders:    refsBySource[src.Key],
			}
			if err := o.deps.Publisher.PublishInstructionsWritten(ctx, event); err != nil {
				o.logger.Warn("Failed to publish instructions written event",
					zap.String("source", src.Key), zap.Error(err))
			}
		}
	}
	return report.Written
}

// markProcessed marks every source order with at least one written instruction,
// plus orders a previous run already wrote
func (o *Orchestrator) markProcessed(ctx context.Context, rc *RunContext, written []models.ShipmentInstruction) {
	ids := make(map[string][]string)
	for _, instr := range written {
		ids[instr.Source] = append(ids[instr.Source], instr.SourceRecordID)
	}
	for source, prior := range rc.AlreadyWritten {
		ids[source] = append(ids[source], prior...)
	}

	for _, src := range o.sources {
		if len(ids[src.Key]) == 0 {
			continue
		}
		report := o.writer.MarkProcessed(ctx, src.Key, src.StoreID, ids[src.Key])
		rc.Summary.Source(src.Key).Marked += len(report.MarkedIDs)
		for _, f := range report.Failures {
			rc.Summary.AddError(models.StageMark, src.Key, f)
		}
	}
}

func (o *Orchestrator) finish(ctx context.Context, rc *RunContext, logger *zap.Logger) {
	summary := rc.Summary
	summary.FinishedAt = o.now()
	summary.State = models.RunStateDone
	if summary.Outcome == "" {
		summary.Outcome = models.RunOutcomeSuccess
		if len(summary.Errors) > 0 {
			summary.Outcome = models.RunOutcomePartialSuccess
		}
	}

	util.RunsTotal.WithLabelValues(summary.Outcome).Inc()
	util.RunDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())

	if o.deps.Recorder != nil {
		if err := o.deps.Recorder.SaveRun(ctx, summary); err != nil {
			logger.Error("Failed to save run summary", zap.Error(err))
		}
	}
	if o.deps.Publisher != nil {
		event := &models.RunCompletedEvent{
			BaseEvent: newBaseEvent(models.EventTypeRunCompleted, summary.FinishedAt),
			RunID:     summary.RunID,
			Outcome:   summary.Outcome,
			Summary:   summary,
		}
		if err := o.deps.Publisher.PublishRunCompleted(ctx, event); err != nil {
			logger.Warn("Failed to publish run completed event", zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.String("outcome", summary.Outcome),
		zap.Bool("no_op", summary.NoOp),
		zap.Int("instructions", summary.Instructions),
		zap.Int("shortages", summary.Shortages),
		zap.Int("defects", summary.Defects),
		zap.Int("errors", len(summary.Errors)),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
	}
	if len(summary.Errors) > 0 {
		fields = append(fields, zap.Strings("first_errors", summary.FirstErrors(3)))
	}
	logger.Info("Consolidation run finished", fields...)
}

func senderParty(s config.SenderConfig) models.Party {
	return models.Party{
		Name:       s.Name,
		PostalCode: s.PostalCode,
		Address:    s.Address,
		Phone:      s.Phone,
	}
}

func newBaseEvent(eventType string, at time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: at,
	}
}
