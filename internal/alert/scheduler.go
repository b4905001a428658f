package alert

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Cycler runs one evaluation cycle.
type Cycler interface {
	RunCycle(ctx context.Context) (CycleReport, error)
}

// Scheduler drives cycles from a cron schedule and from on-demand triggers.
// Cycles from both sources may overlap.
type Scheduler struct {
	cycler   Cycler
	schedule string
	onCycle  func(CycleReport, error)
	cron     *cron.Cron
	trigger  chan struct{}
	log      *log.Entry

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewScheduler validates schedule (standard 5-field cron or a descriptor such
// as "@every 1m"). onCycle, if set, is called after every cycle.
func NewScheduler(cycler Cycler, schedule string, onCycle func(CycleReport, error)) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, errors.Wrapf(err, "invalid alert schedule %q", schedule)
	}

	cronLog := cron.PrintfLogger(log.StandardLogger())
	return &Scheduler{
		cycler:   cycler,
		schedule: schedule,
		onCycle:  onCycle,
		cron:     cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog))),
		trigger:  make(chan struct{}, 1),
		log:      log.WithField("component", "scheduler"),
	}, nil
}

// Start begins scheduling. Cycles stop when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(s.schedule, func() { s.run(ctx, "schedule") }); err != nil {
		cancel()
		return errors.Wrap(err, "failed to schedule alert checks")
	}
	s.cancel = cancel
	s.started = true

	s.wg.Add(1)
	go s.listen(ctx)
	s.cron.Start()

	s.log.Infof("🚀 Alert service started (%s)", s.schedule)
	return nil
}

// Trigger requests an immediate cycle. It never blocks; a request made while
// another is still pending is merged into it and false is returned.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop cancels running cycles and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}

	cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("Alert service stopped")
}

func (s *Scheduler) listen(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.trigger:
			s.run(ctx, "trigger")
		}
	}
}

func (s *Scheduler) run(ctx context.Context, source string) {
	entry := s.log.WithField("source", source)
	report, err := s.cycler.RunCycle(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		entry.Debug("Alert cycle cancelled")
	case err != nil:
		entry.Errorf("❌ Alert cycle failed: %v", err)
	default:
		entry.Infof("Alert cycle finished: %s", report)
	}
	if s.onCycle != nil {
		s.onCycle(report, err)
	}
}
