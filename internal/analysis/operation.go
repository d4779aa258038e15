package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/logger"
	"github.com/tphakala/go-lpc/internal/observability/metrics"
	"github.com/tphakala/go-lpc/internal/scheduler"
)

// Operation names used in logs and metrics.
const (
	OpSoundToLPC           = "sound_to_lpc"
	OpRefineLPCRobust      = "lpc_robust"
	OpLPCToFormant         = "lpc_to_formant"
	OpFormantToLPC         = "formant_to_lpc"
	OpLPCToLSF             = "lpc_to_lsf"
	OpLSFToLPC             = "lsf_to_lpc"
	OpSoundToFormantBurg   = "sound_to_formant_burg"
	OpSoundToFormantRobust = "sound_to_formant_robust"
)

// Metric status values.
const (
	statusSuccess   = "success"
	statusError     = "error"
	statusCancelled = "cancelled"
)

// operation tracks one public call for logging and metrics.
type operation struct {
	name  string
	ctx   context.Context
	rec   metrics.AnalysisRecorder
	log   logger.Logger
	opts  Options
	start time.Time
}

func startOperation(ctx context.Context, name string, opts Options) *operation {
	if logger.TraceIDFromContext(ctx) == "" {
		ctx = logger.WithTraceID(ctx, uuid.New().String())
	}
	return &operation{
		name:  name,
		ctx:   ctx,
		rec:   opts.recorder(),
		log:   GetLogger().WithContext(ctx).With(logger.String("operation", name)),
		opts:  opts,
		start: time.Now(),
	}
}

// fail records an error raised before any frame was scheduled.
func (op *operation) fail(err error) error {
	return op.finish(scheduler.Stats{}, err)
}

func (op *operation) finish(stats scheduler.Stats, err error) error {
	elapsed := time.Since(op.start)
	op.rec.RecordDuration(op.name, elapsed.Seconds())
	if stats.Threads > 0 {
		op.rec.RecordThreads(op.name, stats.Threads)
	}

	switch {
	case err == nil:
		op.rec.RecordOperation(op.name, statusSuccess)
		op.log.Info("operation finished",
			logger.Int("threads", stats.Threads),
			logger.Duration("elapsed", elapsed))
	case errors.IsCancellation(err):
		op.rec.RecordOperation(op.name, statusCancelled)
		op.log.Info("operation cancelled", logger.Duration("elapsed", elapsed))
	default:
		op.rec.RecordOperation(op.name, statusError)
		op.rec.RecordError(op.name, errorType(err))
		op.log.Error("operation failed", logger.Error(err))
	}
	return err
}

func errorType(err error) string {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return string(ee.Category)
	}
	return string(errors.CategoryGeneric)
}

// run schedules job with the operation's thread options.
func run[W any](op *operation, job scheduler.Job[W]) (scheduler.Stats, error) {
	job.Name = op.name
	return scheduler.Run(op.ctx, job, op.opts.Threads)
}

// degradationRootFallback counts frames whose roots needed the
// Durand-Kerner fallback after the eigenvalue solver failed. Such frames are
// still counted as ok.
const degradationRootFallback = "root_fallback"

// frameTally counts frame outcomes of a finished run.
type frameTally struct {
	ok, degraded, invalid int
	kinds                 map[string]int
	rootFallbacks         int
}

func (t *frameTally) add(valid bool, degradation string) {
	switch {
	case !valid:
		t.invalid++
	case degradation != "":
		t.degraded++
		if t.kinds == nil {
			t.kinds = make(map[string]int)
		}
		t.kinds[degradation]++
	default:
		t.ok++
	}
}

func (op *operation) recordFrames(t frameTally) {
	op.rec.RecordFrames(op.name, "ok", t.ok)
	op.rec.RecordFrames(op.name, "degraded", t.degraded)
	op.rec.RecordFrames(op.name, "invalid", t.invalid)
	for kind, n := range t.kinds {
		op.rec.RecordDegradation(op.name, kind, n)
	}
	if t.rootFallbacks > 0 {
		op.rec.RecordDegradation(op.name, degradationRootFallback, t.rootFallbacks)
	}
	if t.degraded > 0 || t.invalid > 0 || t.rootFallbacks > 0 {
		op.log.Debug("frame outcomes",
			logger.Int("ok", t.ok),
			logger.Int("degraded", t.degraded),
			logger.Int("invalid", t.invalid),
			logger.Int("root_fallbacks", t.rootFallbacks))
	}
}

// availableMemory reports the memory the system can hand out without
// swapping.
func availableMemory() (uint64, error) {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vmStat.Available, nil
}

// memoryEstimate returns the approximate number of bytes an operation
// allocates for its output and per-thread workspaces.
func memoryEstimate(frames, bytesPerFrame, threads, bytesPerThread int) uint64 {
	return uint64(frames)*uint64(bytesPerFrame) + uint64(threads)*uint64(bytesPerThread)
}

// checkMemory fails when need exceeds what available reports. A failing
// probe does not block the operation.
func checkMemory(need uint64, available func() (uint64, error)) error {
	avail, err := available()
	if err != nil {
		GetLogger().Debug("memory preflight skipped", logger.Error(err))
		return nil
	}
	GetLogger().Debug("memory preflight",
		logger.Uint64("required_bytes", need),
		logger.Uint64("available_bytes", avail))
	if need > avail {
		return errors.Newf("operation needs about %d bytes but only %d are available", need, avail).
			Component("analysis").
			Category(errors.CategoryResource).
			Priority(errors.PriorityHigh).
			Context("required_bytes", need).
			Context("available_bytes", avail).
			Build()
	}
	return nil
}

// preflight checks memory for an operation over frames frames.
func (op *operation) preflight(frames, bytesPerFrame, minFrames, bytesPerThread int) error {
	if op.opts.SkipMemoryCheck {
		return nil
	}
	threads := scheduler.NumberOfThreads(frames, minFrames, op.opts.Threads)
	return checkMemory(memoryEstimate(frames, bytesPerFrame, threads, bytesPerThread), availableMemory)
}

// WithProgressRange returns opts with the progress sink remapped so that a
// step reporting 0..1 covers [from, to] of the caller's progress. Chained
// steps with adjacent ranges keep the overall progress monotonic.
func WithProgressRange(opts Options, from, to float64) Options {
	sink := opts.Threads.Progress
	if sink == nil {
		return opts
	}
	opts.Threads.Progress = func(f float64) bool {
		return sink(from + (to-from)*f)
	}
	return opts
}
