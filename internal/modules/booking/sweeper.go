package booking

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultSweepInterval = 5 * time.Minute

type expirer interface {
	ExpireAbandonedBookings(ctx context.Context) (int64, error)
}

// Sweeper periodically expires bookings whose payment window has passed.
// Reclamation lags the nominal expiry by at most one interval.
type Sweeper struct {
	svc      expirer
	interval time.Duration
	log      *logrus.Logger

	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started atomic.Bool
}

func NewSweeper(svc expirer, interval time.Duration, log *logrus.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		svc:      svc,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop in a goroutine until ctx is cancelled or Stop is
// called. The first sweep happens immediately.
func (s *Sweeper) Start(ctx context.Context) {
	if s.started.CompareAndSwap(false, true) {
		go s.run(ctx)
	}
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.stop) })
	if s.started.Load() {
		<-s.done
	}
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.svc.ExpireAbandonedBookings(ctx)
	if err != nil {
		s.log.WithError(err).Error("booking sweep failed")
		return
	}
	s.log.WithField("expired", n).Debug("booking sweep finished")
}
