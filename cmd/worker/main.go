package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/suPer8Hu/ai-chat-backend/internal/app"
	"github.com/suPer8Hu/ai-chat-backend/internal/chat"
	"github.com/suPer8Hu/ai-chat-backend/internal/config"
	"github.com/suPer8Hu/ai-chat-backend/internal/logger"
	"github.com/suPer8Hu/ai-chat-backend/internal/store/rabbitmq"
)

const (
	maxAttempts = 3
	retryDelay  = 5 * time.Second
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}
	cfg := config.Load()

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Dir: cfg.LogDir, FileName: "worker.log"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("worker exited", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	core, err := app.NewCore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer core.Close()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		return fmt.Errorf("rabbit dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbit channel: %w", err)
	}
	defer ch.Close()

	topo := rabbitmq.TopologyFor(cfg.RabbitQueue)
	if err := topo.Declare(ch); err != nil {
		return err
	}

	// strict concurrency control
	concurrency := cfg.WorkerConcurrency
	if err := ch.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	msgs, err := ch.Consume(topo.Main, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	log.Info("worker started", zap.String("queue", topo.Main), zap.Int("concurrency", concurrency))

	w := &worker{repo: core.Repo, turns: core.Turns, log: log}
	// channel publishes are not safe for concurrent use
	var pubMu sync.Mutex

	jobs := make(chan amqp.Delivery, concurrency*2)
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			wlog := log.With(zap.Int("worker", workerID))
			for d := range jobs {
				m, err := rabbitmq.DecodeJob(d.Body)
				if err != nil {
					wlog.Warn("bad message", zap.Error(err))
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				err = w.handle(ctx, m.JobID)
				switch {
				case err == nil:
					if err := d.Ack(false); err != nil {
						wlog.Warn("ack failed", zap.String("job_id", m.JobID), zap.Error(err))
					}
				case !retryable(err):
					wlog.Warn("job failed, not retrying", zap.String("job_id", m.JobID),
						zap.Bool("provider", isProviderError(err)), logger.Since(start), zap.Error(err))
					w.fail(m.JobID, err)
					_ = d.Nack(false, false)
				default:
					attempt := rabbitmq.Attempt(d) + 1
					wlog.Warn("job failed", zap.String("job_id", m.JobID), zap.Int("attempt", attempt),
						logger.Since(start), zap.Error(err))
					if attempt >= maxAttempts {
						w.fail(m.JobID, err)
						_ = d.Nack(false, false)
						continue
					}
					pubMu.Lock()
					rerr := rabbitmq.Retry(ctx, ch, topo, m.JobID, attempt, retryDelay)
					pubMu.Unlock()
					if rerr != nil {
						wlog.Error("retry publish failed", zap.String("job_id", m.JobID), zap.Error(rerr))
						w.fail(m.JobID, err)
						_ = d.Nack(false, false)
						continue
					}
					_ = d.Ack(false)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return nil

		case d, ok := <-msgs:
			if !ok {
				close(jobs)
				wg.Wait()
				return errors.New("delivery channel closed")
			}
			jobs <- d
		}
	}
}

type worker struct {
	repo  *chat.Repo
	turns *chat.Orchestrator
	log   *zap.Logger
}

// handle runs one queued completion. A job that already finished is acked
// without running again, so redeliveries are harmless.
func (w *worker) handle(ctx context.Context, jobID string) error {
	j, err := w.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status == chat.JobSucceeded || j.Status == chat.JobFailed {
		return nil
	}
	if err := w.repo.UpdateJobStatusRunning(ctx, jobID); err != nil {
		return err
	}

	start := time.Now()
	msg, err := w.turns.CompleteTurn(ctx, j.ChatID, j.Prompt)
	if err != nil {
		if chat.PromptStored(err) {
			return &finalError{err: err}
		}
		return err
	}
	if err := w.repo.MarkJobSucceeded(ctx, jobID, msg.MessageID); err != nil {
		// both messages are stored; running again would duplicate them
		return &finalError{err: err}
	}
	w.log.Info("job done", zap.String("job_id", jobID), zap.String("chat_id", j.ChatID), logger.Since(start))
	return nil
}

func (w *worker) fail(jobID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.repo.MarkJobFailed(ctx, jobID, cause.Error()); err != nil {
		w.log.Error("mark job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// finalError marks a job failure that happened after the prompt was stored.
type finalError struct{ err error }

func (e *finalError) Error() string { return e.err.Error() }

func (e *finalError) Unwrap() error { return e.err }

// retryable reports whether a failed job may run again through the retry queue.
func retryable(err error) bool {
	if errors.Is(err, chat.ErrJobNotFound) || errors.Is(err, chat.ErrChatNotFound) {
		return false
	}
	var fe *finalError
	return !errors.As(err, &fe)
}

func isProviderError(err error) bool {
	var perr *chat.ProviderError
	return errors.As(err, &perr)
}
