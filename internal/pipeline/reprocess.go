package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"spritegen/internal/domain"
	"spritegen/internal/imaging"
	"spritegen/internal/infra"
	"spritegen/internal/metrics"
)

// Store reads existing sprites and writes processed ones.
// *storage.Writer satisfies it.
type Store interface {
	Writer
	Read(ctx context.Context, destination string) ([]byte, string, error)
}

type ReprocessOptions struct {
	Store    Store
	Recorder Recorder
	Metrics  *metrics.Collector
	Logger   *infra.Logger
	// MaxPixels bounds decoded source images. Zero disables the check.
	MaxPixels int64
}

// Reprocessor re-applies matte and resize settings to sprites already on
// disk without contacting the generation service.
type Reprocessor struct {
	orch      *Orchestrator
	store     Store
	maxPixels int64
}

func NewReprocessor(opts ReprocessOptions) (*Reprocessor, error) {
	if opts.Store == nil {
		return nil, errors.New("pipeline: store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Reprocessor{
		orch: &Orchestrator{
			writer:      opts.Store,
			recorder:    opts.Recorder,
			metrics:     opts.Metrics,
			logger:      logger,
			concurrency: 1,
			locks:       newPathLocks(),
			sleep:       sleepContext,
		},
		store:     opts.Store,
		maxPixels: opts.MaxPixels,
	}, nil
}

// Reprocess loads each request's source file, then mattes, resizes and
// writes it to every destination. Outcomes are reported like Run.
func (r *Reprocessor) Reprocess(ctx context.Context, requests []domain.AssetRequest) Summary {
	o := r.orch
	summary := Summary{
		RunID:   uuid.New(),
		Started: time.Now().UTC(),
		Results: make([]AssetResult, len(requests)),
	}
	defer o.metrics.RunStarted()()

	logger := o.logger.With().Str("run_id", summary.RunID.String()).Str("mode", "reprocess").Logger()
	logger.Info().Int("assets", len(requests)).Msg("pipeline: reprocess started")

	for i, req := range requests {
		if err := ctx.Err(); err != nil {
			o.cancelRemaining(ctx, &logger, summary.RunID, requests, summary.Results, i, err)
			break
		}
		summary.Results[i] = o.finish(ctx, &logger, summary.RunID, r.reprocess(ctx, &logger, i, req))
	}

	summary.Finished = time.Now().UTC()
	summary.tally()
	logger.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Dur("elapsed", summary.Duration()).
		Msg("pipeline: reprocess finished")
	return summary
}

func (r *Reprocessor) reprocess(ctx context.Context, logger *infra.Logger, seq int, raw domain.AssetRequest) AssetResult {
	started := time.Now()
	res := AssetResult{Seq: seq, Name: raw.Name, Stage: StageValidate}
	fail := func(stage Stage, err error) AssetResult {
		res.Stage = stage
		res.Err = err
		res.Kind = domain.KindOf(err)
		res.Duration = time.Since(started)
		return res
	}

	req, err := domain.NewAssetRequest(raw)
	if err != nil {
		return fail(StageValidate, err)
	}
	res.Name = req.Name

	stageStart := time.Now()
	data, path, err := r.store.Read(ctx, req.SourcePath())
	if err != nil {
		return fail(StageLoad, err)
	}
	img, _, err := imaging.DecodeLimited(data, r.maxPixels)
	r.orch.metrics.ObserveStage(string(StageLoad), time.Since(stageStart))
	if err != nil {
		return fail(StageLoad, fmt.Errorf("%w: %s: %v", domain.ErrIOFailure, path, err))
	}
	res.SourceURL = path
	logger.Debug().Str("asset", req.Name).Str("source", path).Msg("pipeline: loaded")

	if stage, err := r.orch.render(ctx, logger, req, img, &res); err != nil {
		return fail(stage, err)
	}

	res.Stage = StageDone
	res.Duration = time.Since(started)
	return res
}
