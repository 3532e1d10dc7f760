// Package worker runs named periodic background jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Fuyukai/Jokusoramame-sub000/infrastructure/observability"

	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/panics"
)

// DefaultGrace is how long Stop waits for a body to return
const DefaultGrace = 5 * time.Second

// ErrAlreadyRunning is returned by Start for a name that is already running
var ErrAlreadyRunning = errors.New("worker already running")

// Spec describes a periodic job. InitialDelay, when non-nil, computes the delay
// before the first run; otherwise the first run is immediate.
type Spec struct {
	Name         string
	InitialDelay func(now time.Time) time.Duration
	Period       time.Duration
	Body         func(ctx context.Context) error
}

type Metrics interface {
	MeasureWorkerRun(name string) func(result string)
}

type running struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Pool owns the running workers
type Pool struct {
	mu      sync.Mutex
	workers map[string]*running
	grace   time.Duration
	metrics Metrics
	now     func() time.Time
}

func NewPool(metrics Metrics) *Pool {
	return &Pool{
		workers: map[string]*running{},
		grace:   DefaultGrace,
		metrics: metrics,
		now:     time.Now,
	}
}

// WithGrace overrides the stop grace window
func (p *Pool) WithGrace(d time.Duration) *Pool {
	p.grace = d
	return p
}

// Start launches the worker. Each name runs at most one body at a time.
func (p *Pool) Start(spec Spec) error {
	if spec.Period <= 0 {
		return fmt.Errorf("worker %s: period must be positive", spec.Name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.workers[spec.Name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, spec.Name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{cancel: cancel, done: make(chan struct{})}
	p.workers[spec.Name] = r

	go p.loop(ctx, spec, r.done)
	return nil
}

func (p *Pool) loop(ctx context.Context, spec Spec, done chan struct{}) {
	defer close(done)

	logger := log.WithField("worker", spec.Name)
	logger.Info("Worker started")

	var delay time.Duration
	if spec.InitialDelay != nil {
		delay = spec.InitialDelay(p.now())
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Worker shutting down")
			return
		case <-timer.C:
			p.runOnce(ctx, spec, logger)
			timer.Reset(spec.Period)
		}
	}
}

func (p *Pool) runOnce(ctx context.Context, spec Spec, logger *log.Entry) {
	var finish func(string)
	if p.metrics != nil {
		finish = p.metrics.MeasureWorkerRun(spec.Name)
	}

	var catcher panics.Catcher
	var err error
	catcher.Try(func() {
		err = spec.Body(ctx)
	})

	result := observability.ResultOK
	if r := catcher.Recovered(); r != nil {
		result = observability.ResultPanic
		logger.Errorf("Worker panicked: %v\n%s", r.Value, r.Stack)
	} else if err != nil && !errors.Is(err, context.Canceled) {
		result = observability.ResultError
		logger.WithError(err).Error("Worker run failed")
	}

	if finish != nil {
		finish(result)
	}
}

// Stop cancels the worker and waits up to the grace window. It reports
// whether the worker exited in time; stopping an unknown name returns true.
func (p *Pool) Stop(name string) bool {
	p.mu.Lock()
	r, ok := p.workers[name]
	delete(p.workers, name)
	p.mu.Unlock()

	if !ok {
		return true
	}

	r.cancel()
	select {
	case <-r.done:
		return true
	case <-time.After(p.grace):
		log.WithField("worker", name).Warn("Worker did not stop within grace window")
		return false
	}
}

// StopAll stops every worker concurrently
func (p *Pool) StopAll() {
	var wg sync.WaitGroup
	for _, name := range p.Running() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Stop(name)
		}()
	}
	wg.Wait()
}

// Running lists the active worker names
func (p *Pool) Running() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.workers))
	for name := range p.workers {
		out = append(out, name)
	}
	return out
}

// NextHour returns the delay from now to the top of the next hour
func NextHour(now time.Time) time.Duration {
	next := now.Truncate(time.Hour).Add(time.Hour)
	return next.Sub(now)
}

// Every is an InitialDelay that waits one full period before the first run
func Every(period time.Duration) func(time.Time) time.Duration {
	return func(time.Time) time.Duration { return period }
}
