package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job is one pipeline run. Its error is logged and never stops the schedule.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron   *cron.Cron
	job    cron.Job
	run    Job
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New registers run on spec ("@every 30m", or a five-field cron line). A tick
// that arrives while the previous run is still going is skipped.
func New(spec string, run Job, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	c := cron.New(cron.WithLogger(cl))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   c,
		run:    run,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	sched, err := cron.ParseStandard(spec)
	if err != nil {
		cancel()
		return nil, err
	}
	// wrap once so the startup run shares the skip-if-running guard with ticks
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(s.runOnce))
	c.Schedule(sched, s.job)
	return s, nil
}

// Start kicks off a run immediately and then one per tick.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.job.Run()
	}()
}

// RunOnce runs the job synchronously, outside the schedule.
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

// Stop cancels any in-flight run and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

func (s *Scheduler) runOnce() {
	if s.ctx.Err() != nil {
		return
	}

	s.logger.Info("pipeline run starting")
	if err := s.run(s.ctx); err != nil {
		s.logger.Error("pipeline run failed", "error", err)
		return
	}
	s.logger.Info("pipeline run done")
}

// cronLogger routes cron's own messages through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
