// Package worker runs the periodic background jobs on asynq.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const TypeCompleteStays = "reservations:complete_stays"

// Completer moves finished stays to completed and reports how many it moved.
type Completer interface {
	CompleteEnded(ctx context.Context) (int, error)
}

type Config struct {
	Redis asynq.RedisClientOpt
	// CompleteSpec is the cron spec of the completion sweep.
	CompleteSpec string
	Concurrency  int
	Location     *time.Location
}

type Worker struct {
	srv   *asynq.Server
	sched *asynq.Scheduler
	mux   *asynq.ServeMux
	cfg   Config
	log   *slog.Logger
}

func New(cfg Config, completer Completer, log *slog.Logger) *Worker {
	if cfg.CompleteSpec == "" {
		cfg.CompleteSpec = "@every 1h"
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}

	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeCompleteStays, HandleCompleteStays(completer, log))

	al := asynqLogger{log: log.With("component", "asynq")}

	srv := asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{"default": 1},
		Logger:      al,
	})

	sched := asynq.NewScheduler(cfg.Redis, &asynq.SchedulerOpts{
		Location: cfg.Location,
		Logger:   al,
	})

	return &Worker{srv: srv, sched: sched, mux: mux, cfg: cfg, log: log}
}

// NewCompleteStaysTask builds the sweep task. Unique keeps instances sharing
// one redis from queueing the same sweep twice.
func NewCompleteStaysTask() (*asynq.Task, []asynq.Option) {
	return asynq.NewTask(TypeCompleteStays, nil), []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Timeout(5 * time.Minute),
		asynq.Unique(time.Minute),
	}
}

func HandleCompleteStays(c Completer, log *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		n, err := c.CompleteEnded(ctx)
		if err != nil {
			return fmt.Errorf("worker.HandleCompleteStays:%w", err)
		}

		if n > 0 {
			log.Info("completed ended stays", "count", n)
		}

		return nil
	}
}

// Run processes tasks and fires the schedule until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	const op = "worker.Worker.Run"

	task, opts := NewCompleteStaysTask()
	if _, err := w.sched.Register(w.cfg.CompleteSpec, task, opts...); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := w.srv.Start(w.mux); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := w.sched.Start(); err != nil {
		w.srv.Shutdown()
		return fmt.Errorf("%s:%w", op, err)
	}

	w.log.Info("worker started", "complete_spec", w.cfg.CompleteSpec)

	<-ctx.Done()

	w.sched.Shutdown()
	w.srv.Shutdown()

	w.log.Info("worker stopped")

	return nil
}

// asynqLogger adapts slog to asynq's printf-less logger interface.
type asynqLogger struct {
	log *slog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }

// Fatal is only called by asynq on unrecoverable startup errors.
func (l asynqLogger) Fatal(args ...any) {
	l.log.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}
