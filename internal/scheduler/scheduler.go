package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type Scheduler struct {
	name     string
	interval time.Duration
	tickFn   func(context.Context)

	immediate bool
	log       *zap.Logger

	running  atomic.Bool
	lastRun  atomic.Int64
	lastTook atomic.Int64
	ticks    atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Scheduler)

func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithoutImmediateTick waits a full interval before the first tick.
func WithoutImmediateTick() Option {
	return func(s *Scheduler) { s.immediate = false }
}

func New(name string, interval time.Duration, tickFn func(context.Context), opts ...Option) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	s := &Scheduler{
		name:      name,
		interval:  interval,
		tickFn:    tickFn,
		immediate: true,
		log:       zap.NewNop(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("job", name))
	return s, nil
}

func (s *Scheduler) Name() string { return s.name }

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.log.Info("scheduler started", zap.Duration("interval", s.interval))

		if s.immediate {
			s.safeTick(ctx)
		}

		for {
			select {
			case <-ctx.Done():
				s.log.Info("scheduler stopping")
				return
			case <-ticker.C:
				s.safeTick(ctx)
			}
		}
	}()

	return true
}

// Stop cancels the loop and waits for an in-flight tick to return.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	s.log.Info("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

type Status struct {
	Name         string     `json:"name"`
	Running      bool       `json:"running"`
	Interval     string     `json:"interval"`
	Ticks        int64      `json:"ticks"`
	LastRun      *time.Time `json:"lastRun,omitempty"`
	LastDuration string     `json:"lastDuration,omitempty"`
}

func (s *Scheduler) Status() Status {
	st := Status{
		Name:     s.name,
		Running:  s.running.Load(),
		Interval: s.interval.String(),
		Ticks:    s.ticks.Load(),
	}
	if ns := s.lastRun.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		st.LastRun = &t
		st.LastDuration = time.Duration(s.lastTook.Load()).String()
	}
	return st
}

func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler tick panic recovered", zap.Any("panic", r))
		}
	}()

	start := time.Now()
	s.lastRun.Store(start.UnixNano())
	s.ticks.Add(1)

	s.tickFn(ctx)

	took := time.Since(start)
	s.lastTook.Store(int64(took))
	s.log.Debug("scheduler tick completed", zap.Int64("duration_ms", took.Milliseconds()))
}
