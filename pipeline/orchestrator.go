package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"livability-pipeline/models"
	"livability-pipeline/services"
	"livability-pipeline/storage"
	"livability-pipeline/utils"
)

// Gateway retrieves the raw report text for one identifier.
type Gateway interface {
	Fetch(ctx context.Context, id string) (string, error)
}

// Summary describes the outcome of a Run against its identifier list.
type Summary struct {
	RunID string
	services.ProgressReport
	// Fetched and FromCache count this run's identifiers only.
	Fetched     int
	FromCache   int
	Interrupted bool
}

// Orchestrator drives identifiers through cache, gateway, parser and output,
// recording every outcome in the checkpoint so an interrupted run can resume.
// A Run is strictly sequential.
type Orchestrator struct {
	gateway     Gateway
	cache       storage.RecordCache
	checkpoints storage.CheckpointStore
	writer      storage.RowWriter
	parser      *services.Parser
	insights    *services.InsightService
	throttle    *utils.Throttle
	logger      *utils.Logger
	now         func() time.Time
}

// New creates an Orchestrator. rateLimit is the minimum delay between the end
// of one gateway call and the start of the next; cache hits are never delayed.
func New(gateway Gateway, cache storage.RecordCache, checkpoints storage.CheckpointStore,
	writer storage.RowWriter, rateLimit time.Duration, logger *utils.Logger) *Orchestrator {
	return &Orchestrator{
		gateway:     gateway,
		cache:       cache,
		checkpoints: checkpoints,
		writer:      writer,
		parser:      services.NewParser(logger),
		insights:    services.NewInsightService(logger),
		throttle:    utils.NewThrottle(rateLimit),
		logger:      logger,
		now:         time.Now,
	}
}

// Run processes every identifier of ids that the checkpoint has not marked as
// processed, in input order. Identifiers are normalized and de-duplicated
// first. Output rows are flushed after every batch of
// batchSize identifiers. Retrieval failures are recorded and skipped;
// persistence failures end the run with a *PersistenceError. When ctx is
// cancelled the run stops before the next identifier, flushes what it has and
// returns the summary together with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, ids []string, batchSize int) (*Summary, error) {
	if batchSize < 1 {
		return nil, &InputError{Source: "batch size", Err: eris.Errorf("must be at least 1, got %d", batchSize)}
	}

	state, err := o.checkpoints.Load()
	if err != nil {
		return nil, &InputError{Source: "checkpoint", Err: err}
	}
	ids = models.UniqueIDs(ids)

	runID := uuid.NewString()
	log := o.logger.With("run_id", runID)
	pending := state.Pending(ids)
	log.Info("[pipeline] %d identifiers, %d already processed, %d pending (batch size %d)",
		len(ids), len(ids)-len(pending), len(pending), batchSize)

	// Persistence must finish even after an interrupt.
	persistCtx := context.WithoutCancel(ctx)
	r := &run{Orchestrator: o, log: log, state: state, persistCtx: persistCtx}

	for start := 0; start < len(pending) && ctx.Err() == nil; start += batchSize {
		end := min(start+batchSize, len(pending))
		var rows []*models.OutputRow

		for _, id := range pending[start:end] {
			if ctx.Err() != nil {
				break
			}
			row, err := r.process(ctx, id)
			if row != nil {
				rows = append(rows, row)
			}
			if err != nil {
				if ferr := o.writer.WriteRows(rows); ferr != nil {
					log.Error("[pipeline] Could not flush %d rows after failure: %v", len(rows), ferr)
				}
				return o.summarize(runID, state, ids, r, false), err
			}
		}

		if err := o.writer.WriteRows(rows); err != nil {
			return o.summarize(runID, state, ids, r, false), &PersistenceError{Op: "output rows", Err: err}
		}

		p := o.insights.Progress(state, ids)
		log.Info("[pipeline] Batch %d-%d done: processed %d/%d (%.2f%%), failed %d",
			start+1, end, p.Processed, p.Total, p.Percentage, p.Failed)
	}

	interrupted := ctx.Err() != nil
	summary := o.summarize(runID, state, ids, r, interrupted)
	if interrupted {
		log.Warn("[pipeline] Interrupted; %d identifiers remain", summary.Remaining)
		return summary, ctx.Err()
	}
	log.Info("[pipeline] Run complete: processed %d, failed %d, remaining %d",
		summary.Processed, summary.Failed, summary.Remaining)
	return summary, nil
}

// Fetch retrieves, parses and caches a single identifier without touching
// the checkpoint.
func (o *Orchestrator) Fetch(ctx context.Context, id string) (*models.LivabilityRecord, error) {
	id = models.NormalizeID(id)
	if id == "" {
		return nil, &InputError{Source: "identifier", Err: eris.New("empty identifier")}
	}
	if err := o.throttle.Wait(ctx); err != nil {
		return nil, err
	}
	raw, err := o.gateway.Fetch(ctx, id)
	o.throttle.Done()
	if err != nil {
		return nil, &RetrievalError{ID: id, Err: err}
	}
	rec := o.parser.Parse(raw)
	if err := o.cache.Put(context.WithoutCancel(ctx), id, rec, raw); err != nil {
		return nil, &PersistenceError{Op: "cache put " + id, Err: err}
	}
	return rec, nil
}

func (o *Orchestrator) summarize(runID string, state *models.CheckpointState, ids []string, r *run, interrupted bool) *Summary {
	return &Summary{
		RunID:          runID,
		ProgressReport: *o.insights.Progress(state, ids),
		Fetched:        r.fetched,
		FromCache:      r.fromCache,
		Interrupted:    interrupted,
	}
}

// run holds the mutable state of one Run.
type run struct {
	*Orchestrator
	log        *utils.Logger
	state      *models.CheckpointState
	persistCtx context.Context

	fetched   int
	fromCache int
}

// process handles one identifier. It returns the row to append (nil when the
// identifier was not attempted) and a non-nil error only for persistence
// failures.
func (r *run) process(ctx context.Context, id string) (*models.OutputRow, error) {
	log := r.log.With("identifier", id)

	rec, ok, err := r.cache.Get(r.persistCtx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "cache get " + id, Err: err}
	}
	if ok {
		r.fromCache++
		log.Debug("[pipeline] Cache hit for %s", id)
		r.state.MarkProcessed(id)
		if err := r.save(); err != nil {
			return nil, err
		}
		return services.NewRecordRow(id, rec, models.SourceCache, r.now()), nil
	}

	if err := r.throttle.Wait(ctx); err != nil {
		// interrupted before the call; id stays pending
		return nil, nil
	}

	r.fetched++
	raw, err := r.gateway.Fetch(ctx, id)
	r.throttle.Done()
	if err != nil {
		rerr := &RetrievalError{ID: id, Err: err}
		log.Warn("[pipeline] %v", rerr)
		r.state.MarkFailed(id)
		if err := r.save(); err != nil {
			return nil, err
		}
		return services.NewErrorRow(id, rerr, r.now()), nil
	}

	rec = r.parser.Parse(raw)
	if err := r.cache.Put(r.persistCtx, id, rec, raw); err != nil {
		return nil, &PersistenceError{Op: "cache put " + id, Err: err}
	}
	r.state.MarkProcessed(id)
	if err := r.save(); err != nil {
		return nil, err
	}
	log.Info("[pipeline] Retrieved %s (overall score %s)", id, scoreText(rec.OverallScore))
	return services.NewRecordRow(id, rec, models.SourceGateway, r.now()), nil
}

func (r *run) save() error {
	if err := r.checkpoints.Save(r.state); err != nil {
		return &PersistenceError{Op: "checkpoint", Err: err}
	}
	return nil
}

func scoreText(n *int) string {
	if n == nil {
		return "n/a"
	}
	return strconv.Itoa(*n)
}
