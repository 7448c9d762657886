// Package pipeline drives a batch of asset requests through generation,
// download, post-processing and output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"spritegen/internal/domain"
	"spritegen/internal/fetch"
	"spritegen/internal/imaging"
	"spritegen/internal/infra"
	"spritegen/internal/metrics"
	"spritegen/internal/providers/leonardo"
	"spritegen/internal/storage"
)

const (
	DefaultDelay         = 3 * time.Second
	DefaultFetchAttempts = 3
	DefaultFetchBackoff  = 500 * time.Millisecond
)

// Generator submits requests and waits for their jobs.
type Generator interface {
	Submit(ctx context.Context, req domain.AssetRequest) (string, error)
	Await(ctx context.Context, jobID string, policy leonardo.PollPolicy) (domain.GenerationJob, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*imaging.RawImage, error)
}

type Writer interface {
	Write(ctx context.Context, sprite *imaging.RawImage, format domain.Format, destinations []string) (storage.WriteReport, error)
}

// Recorder persists finished results. Recording errors are logged and never
// change the outcome of an asset.
type Recorder interface {
	RecordResult(ctx context.Context, runID uuid.UUID, res AssetResult) error
}

type Options struct {
	Generator Generator
	Fetcher   Fetcher
	Writer    Writer
	Recorder  Recorder
	Metrics   *metrics.Collector
	Logger    *infra.Logger

	// Delay separates consecutive submissions. Zero disables it.
	Delay         time.Duration
	PollPolicy    leonardo.PollPolicy
	FetchAttempts int
	FetchBackoff  time.Duration
	// Concurrency above one processes requests in parallel while keeping
	// submissions at least Delay apart.
	Concurrency int
}

type Orchestrator struct {
	generator Generator
	fetcher   Fetcher
	writer    Writer
	recorder  Recorder
	metrics   *metrics.Collector
	logger    *infra.Logger

	delay         time.Duration
	policy        leonardo.PollPolicy
	fetchAttempts int
	fetchBackoff  time.Duration
	concurrency   int

	locks *pathLocks
	sleep func(ctx context.Context, d time.Duration) error
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Generator == nil || opts.Fetcher == nil || opts.Writer == nil {
		return nil, errors.New("pipeline: generator, fetcher and writer are required")
	}
	if err := opts.PollPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if opts.Delay < 0 {
		return nil, errors.New("pipeline: delay must not be negative")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	attempts := opts.FetchAttempts
	if attempts <= 0 {
		attempts = DefaultFetchAttempts
	}
	backoffBase := opts.FetchBackoff
	if backoffBase <= 0 {
		backoffBase = DefaultFetchBackoff
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Orchestrator{
		generator:     opts.Generator,
		fetcher:       opts.Fetcher,
		writer:        opts.Writer,
		recorder:      opts.Recorder,
		metrics:       opts.Metrics,
		logger:        logger,
		delay:         opts.Delay,
		policy:        opts.PollPolicy,
		fetchAttempts: attempts,
		fetchBackoff:  backoffBase,
		concurrency:   concurrency,
		locks:         newPathLocks(),
		sleep:         sleepContext,
	}, nil
}

// Run processes requests in order and reports every outcome. Failures of one
// request never stop the batch. Once ctx is done no new request starts and
// the remaining ones are reported as canceled.
func (o *Orchestrator) Run(ctx context.Context, requests []domain.AssetRequest) Summary {
	summary := Summary{
		RunID:   uuid.New(),
		Started: time.Now().UTC(),
		Results: make([]AssetResult, len(requests)),
	}
	defer o.metrics.RunStarted()()

	logger := o.logger.With().Str("run_id", summary.RunID.String()).Logger()
	logger.Info().Int("assets", len(requests)).Int("concurrency", o.concurrency).Msg("pipeline: run started")

	if o.concurrency > 1 {
		o.runConcurrent(ctx, &logger, summary.RunID, requests, summary.Results)
	} else {
		o.runSequential(ctx, &logger, summary.RunID, requests, summary.Results)
	}

	summary.Finished = time.Now().UTC()
	summary.tally()
	logger.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Dur("elapsed", summary.Duration()).
		Msg("pipeline: run finished")
	return summary
}

func (o *Orchestrator) runSequential(ctx context.Context, logger *infra.Logger, runID uuid.UUID, requests []domain.AssetRequest, results []AssetResult) {
	for i, req := range requests {
		if i > 0 && o.delay > 0 {
			if err := o.sleep(ctx, o.delay); err != nil {
				o.cancelRemaining(ctx, logger, runID, requests, results, i, err)
				return
			}
		}
		if err := ctx.Err(); err != nil {
			o.cancelRemaining(ctx, logger, runID, requests, results, i, err)
			return
		}
		results[i] = o.finish(ctx, logger, runID, o.process(ctx, logger, i, req))
	}
}

func (o *Orchestrator) runConcurrent(ctx context.Context, logger *infra.Logger, runID uuid.UUID, requests []domain.AssetRequest, results []AssetResult) {
	limit := rate.Inf
	if o.delay > 0 {
		limit = rate.Every(o.delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, req := range requests {
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				}
				results[i] = o.finish(ctx, logger, runID, canceledResult(i, req, err))
				return nil
			}
			results[i] = o.finish(ctx, logger, runID, o.process(ctx, logger, i, req))
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) cancelRemaining(ctx context.Context, logger *infra.Logger, runID uuid.UUID, requests []domain.AssetRequest, results []AssetResult, from int, cause error) {
	for j := from; j < len(requests); j++ {
		results[j] = o.finish(ctx, logger, runID, canceledResult(j, requests[j], cause))
	}
}

func canceledResult(seq int, req domain.AssetRequest, cause error) AssetResult {
	return AssetResult{
		Seq:   seq,
		Name:  req.Name,
		Stage: StageQueued,
		Kind:  domain.KindCanceled,
		Err:   fmt.Errorf("not started: %w", cause),
	}
}

// process runs one request through every stage. The returned result names
// the failing stage on error.
func (o *Orchestrator) process(ctx context.Context, logger *infra.Logger, seq int, raw domain.AssetRequest) AssetResult {
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
	jobID, err := o.generator.Submit(ctx, req)
	o.metrics.ObserveStage(string(StageSubmit), time.Since(stageStart))
	if err != nil {
		return fail(StageSubmit, err)
	}
	res.JobID = jobID
	logger.Debug().Str("asset", req.Name).Str("job_id", jobID).Msg("pipeline: submitted")

	stageStart = time.Now()
	job, err := o.generator.Await(ctx, jobID, o.policy)
	o.metrics.ObserveStage(string(StagePoll), time.Since(stageStart))
	res.PollAttempts = job.Attempts
	o.metrics.ObservePollAttempts(job.Attempts)
	if err != nil {
		return fail(StagePoll, err)
	}
	sourceURL, ok := job.FirstResult()
	if !ok {
		return fail(StagePoll, fmt.Errorf("%w: job %s has no result url", domain.ErrGenerationFailed, jobID))
	}
	res.SourceURL = sourceURL

	stageStart = time.Now()
	img, err := o.fetchWithRetry(ctx, logger, req.Name, sourceURL)
	o.metrics.ObserveStage(string(StageFetch), time.Since(stageStart))
	if err != nil {
		return fail(StageFetch, err)
	}

	if stage, err := o.render(ctx, logger, req, img, &res); err != nil {
		return fail(stage, err)
	}

	res.Stage = StageDone
	res.Duration = time.Since(started)
	return res
}

// render mattes, resizes and writes img for req, filling res. On failure it
// returns the stage that failed.
func (o *Orchestrator) render(ctx context.Context, logger *infra.Logger, req domain.AssetRequest, img *imaging.RawImage, res *AssetResult) (Stage, error) {
	if req.Matte != nil {
		stageStart := time.Now()
		matted, stats, err := imaging.Matte(img, *req.Matte)
		o.metrics.ObserveStage(string(StageMatte), time.Since(stageStart))
		if err != nil {
			return StageMatte, err
		}
		img = matted
		res.Cleared = stats.Cleared
		o.metrics.AddCleared(stats.Cleared)
		logger.Debug().Str("asset", req.Name).Stringer("matte", stats).Msg("pipeline: matted")
	}

	stageStart := time.Now()
	sprite, err := imaging.Resize(img, req.Width, req.Height)
	o.metrics.ObserveStage(string(StageResize), time.Since(stageStart))
	if err != nil {
		return StageResize, err
	}

	stageStart = time.Now()
	unlock := o.locks.lock(o.writer, req.Destinations)
	report, err := o.writer.Write(ctx, sprite, req.Format, req.Destinations)
	unlock()
	o.metrics.ObserveStage(string(StageWrite), time.Since(stageStart))
	res.Outputs = report.Written()
	o.metrics.RecordWrites(len(res.Outputs), len(report.Results)-len(res.Outputs))
	if err != nil {
		return StageWrite, err
	}
	return StageDone, nil
}

// fetchWithRetry retries transient download failures with exponential
// backoff. Failures the fetcher marks permanent end the loop at once.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, logger *infra.Logger, asset, url string) (*imaging.RawImage, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.fetchBackoff
	b.MaxInterval = 8 * o.fetchBackoff

	return backoff.Retry(ctx, func() (*imaging.RawImage, error) {
		img, err := o.fetcher.Fetch(ctx, url)
		if err != nil && fetch.IsPermanent(err) {
			return nil, backoff.Permanent(err)
		}
		return img, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(o.fetchAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn().Err(err).Str("asset", asset).Dur("retry_in", next).Msg("pipeline: download failed, retrying")
		}),
	)
}

// finish logs, records and counts a completed result.
func (o *Orchestrator) finish(ctx context.Context, logger *infra.Logger, runID uuid.UUID, res AssetResult) AssetResult {
	if res.Succeeded() {
		o.metrics.RecordAsset("succeeded", "")
		logger.Info().
			Str("asset", res.Name).
			Str("job_id", res.JobID).
			Strs("outputs", res.Outputs).
			Dur("duration", res.Duration).
			Msg("pipeline: asset done")
	} else {
		o.metrics.RecordAsset("failed", string(res.Kind))
		logger.Error().
			Err(res.Err).
			Str("asset", res.Name).
			Str("job_id", res.JobID).
			Str("stage", string(res.Stage)).
			Str("kind", string(res.Kind)).
			Msg("pipeline: asset failed")
	}

	if o.recorder != nil {
		// The ledger write must outlive a canceled run.
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := o.recorder.RecordResult(recCtx, runID, res); err != nil {
			logger.Warn().Err(err).Str("asset", res.Name).Msg("pipeline: failed to record result")
		}
		cancel()
	}
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
