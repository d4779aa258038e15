// Package scheduler runs per-frame jobs on a fork-join pool of goroutines.
//
// The frames of a job are split into contiguous ranges, one per thread. Each
// thread builds a private workspace and processes its range in order; the
// calling goroutine takes the first range and reports progress. A frame's
// result may depend only on that frame, so the output of a job does not
// depend on the number of threads.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/go-lpc/internal/cpuspec"
	"github.com/tphakala/go-lpc/internal/errors"
	"github.com/tphakala/go-lpc/internal/logger"
)

const (
	// DefaultMinFrames is the minimum number of frames per thread for
	// analysis and model conversion jobs.
	DefaultMinFrames = 40
	// SynthesisMinFrames is used for the cheaper formant to LPC synthesis.
	SynthesisMinFrames = 80
	// MaxThreads bounds the thread count independent of the hardware, as
	// there are only that many random streams.
	MaxThreads = 400
)

// randomStream selects the PCG stream shared by all thread sources.
const randomStream = 0x6c7063

// ErrCancelled is wrapped by the error returned when a job stops early.
var ErrCancelled = errors.NewStd("scheduler: cancelled")

// Thread describes the frame range of one worker. Frames First up to but
// excluding Last belong to the thread.
type Thread struct {
	ID    int
	First int
	Last  int
	// Rand is a deterministic source keyed by ID, private to the thread.
	Rand *rand.Rand
}

// Len returns the number of frames in the range.
func (t *Thread) Len() int { return t.Last - t.First }

// Job is a frame-parallel computation with a per-thread workspace of type W.
type Job[W any] struct {
	// Name identifies the job in logs and errors.
	Name string
	// Frames is the number of frames to process.
	Frames int
	// MinFrames is the per-thread frame threshold, DefaultMinFrames if zero.
	MinFrames int
	// NewWorkspace allocates the scratch state of one thread. It runs on the
	// thread itself before any frame is touched.
	NewWorkspace func(t *Thread) (W, error)
	// Process computes frame i into workspace ws and publishes its result.
	Process func(ws W, i int) error
}

// Options controls thread selection and progress.
type Options struct {
	// SingleThreaded runs every frame on the calling goroutine.
	SingleThreaded bool
	// MaxThreads caps the thread count. Zero uses the hardware ceiling.
	MaxThreads int
	// MinFrames overrides the job's per-thread threshold when positive.
	MinFrames int
	// Progress receives the estimated completion of the first thread, from
	// the calling goroutine only, and 1 once a job has finished without
	// error. Returning false cancels the job.
	Progress func(fraction float64) bool
}

// Stats summarizes a finished run.
type Stats struct {
	Threads int
	Elapsed time.Duration
}

// NumberOfThreads returns the thread count for a job of the given size.
func NumberOfThreads(frames, minFrames int, opts Options) int {
	if opts.SingleThreaded || frames < 1 {
		return 1
	}
	if opts.MinFrames > 0 {
		minFrames = opts.MinFrames
	}
	if minFrames <= 0 {
		minFrames = DefaultMinFrames
	}

	ceiling := opts.MaxThreads
	if ceiling <= 0 {
		ceiling = cpuspec.GetCPUSpec().MaxThreads()
	}

	threads := int(math.Round(float64(frames) / 1.5 / float64(minFrames)))
	return max(min(threads, ceiling, MaxThreads), 1)
}

// Split divides frames into threads contiguous ranges. The first
// frames%threads ranges hold one extra frame.
func Split(frames, threads int) []Thread {
	if threads < 1 {
		threads = 1
	}
	base, extra := frames/threads, frames%threads
	out := make([]Thread, threads)
	first := 0
	for i := range out {
		n := base
		if i < extra {
			n++
		}
		out[i] = Thread{
			ID:    i,
			First: first,
			Last:  first + n,
			Rand:  rand.New(rand.NewPCG(uint64(i), randomStream)),
		}
		first += n
	}
	return out
}

// run is the state shared by the threads of one job.
type run struct {
	ctx      context.Context
	progress func(float64) bool
	start    time.Time
	stop     atomic.Bool
	firstErr atomic.Pointer[error]
	done     atomic.Int64
}

// fail records err unless another thread failed first, and stops the job.
func (r *run) fail(err error) {
	r.firstErr.CompareAndSwap(nil, &err)
	r.stop.Store(true)
}

func (r *run) stopped() bool {
	if r.stop.Load() {
		return true
	}
	if r.ctx.Err() != nil {
		r.stop.Store(true)
		return true
	}
	return false
}

// Run executes job and returns after every thread has finished. The first
// error raised by any thread is returned; otherwise a stopped job returns an
// error of category errors.CategoryCancellation that wraps ErrCancelled.
// Frames finished before the stop keep their results.
func Run[W any](ctx context.Context, job Job[W], opts Options) (Stats, error) {
	if job.Frames <= 0 {
		return Stats{Threads: 1}, nil
	}
	if job.NewWorkspace == nil || job.Process == nil {
		return Stats{}, errors.Newf("job %q has no workspace or process function", job.Name).
			Component("scheduler").
			Category(errors.CategoryWorker).
			Build()
	}

	start := time.Now()
	minFrames := job.MinFrames
	if minFrames <= 0 {
		minFrames = DefaultMinFrames
	}
	threads := Split(job.Frames, NumberOfThreads(job.Frames, minFrames, opts))

	log := GetLogger().WithContext(ctx)
	log.Debug("starting job",
		logger.String("job", job.Name),
		logger.Int("frames", job.Frames),
		logger.Int("threads", len(threads)))

	r := &run{ctx: ctx, progress: opts.Progress, start: start}

	var g errgroup.Group
	for i := 1; i < len(threads); i++ {
		t := &threads[i]
		g.Go(func() error {
			return runThread(r, job, t)
		})
	}
	_ = runThread(r, job, &threads[0])
	_ = g.Wait()

	stats := Stats{Threads: len(threads), Elapsed: time.Since(start)}

	if errp := r.firstErr.Load(); errp != nil {
		log.Warn("job failed",
			logger.String("job", job.Name),
			logger.Error(*errp))
		return stats, *errp
	}
	if r.stop.Load() {
		cause := ErrCancelled
		if ctxErr := ctx.Err(); ctxErr != nil {
			cause = errors.Join(ErrCancelled, ctxErr)
		}
		log.Info("job cancelled",
			logger.String("job", job.Name),
			logger.Int64("frames_done", r.done.Load()),
			logger.Int("frames", job.Frames))
		return stats, errors.New(cause).
			Component("scheduler").
			Category(errors.CategoryCancellation).
			Context("job", job.Name).
			Context("frames_done", r.done.Load()).
			Build()
	}

	if r.progress != nil {
		r.progress(1)
	}
	log.Debug("job finished",
		logger.String("job", job.Name),
		logger.Duration("elapsed", stats.Elapsed))
	return stats, nil
}

func runThread[W any](r *run, job Job[W], t *Thread) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.New(fmt.Errorf("panic in %s thread %d: %v", job.Name, t.ID, p)).
				Component("scheduler").
				Category(errors.CategoryWorker).
				Priority(errors.PriorityCritical).
				Timing(job.Name, time.Since(r.start)).
				Context("thread", t.ID).
				Build()
			r.fail(err)
		}
	}()

	if r.stopped() {
		return nil
	}
	ws, err := job.NewWorkspace(t)
	if err != nil {
		err = wrapWorker(err, job.Name, t.ID, time.Since(r.start))
		r.fail(err)
		return err
	}

	for i := t.First; i < t.Last; i++ {
		if r.stopped() {
			return nil
		}
		if t.ID == 0 && r.progress != nil {
			fraction := (float64(i-t.First) + 0.5) / float64(t.Len())
			if !r.progress(fraction) {
				r.stop.Store(true)
				return nil
			}
		}
		if err := job.Process(ws, i); err != nil {
			err = wrapFrame(err, job.Name, i, job.Frames, time.Since(r.start))
			r.fail(err)
			return err
		}
		r.done.Add(1)
	}
	return nil
}

func wrapWorker(err error, job string, thread int, elapsed time.Duration) error {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return err
	}
	return errors.New(err).
		Component("scheduler").
		Category(errors.CategoryWorker).
		Timing(job, elapsed).
		Context("thread", thread).
		Build()
}

func wrapFrame(err error, job string, frame, frames int, elapsed time.Duration) error {
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return err
	}
	return errors.New(err).
		Component("scheduler").
		Category(errors.CategoryProcessing).
		Timing(job, elapsed).
		FrameContext(frame, frames).
		Build()
}
