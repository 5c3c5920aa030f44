package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker wraps the Asynq server.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Handlers  []TaskHandler
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}
	return &Worker{server: srv, mux: mux, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client        *asynq.Client
	reminderDelay time.Duration
}

// NewClient constructs an Asynq client. reminderDelay is how long a session
// may sit without completion before the reminder fires.
func NewClient(redisOpts asynq.RedisClientOpt, reminderDelay time.Duration) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts), reminderDelay: reminderDelay}, nil
}

// ScheduleReminder enqueues a deferred survey reminder for the session.
func (c *Client) ScheduleReminder(ctx context.Context, sessionID, tenantID uuid.UUID) error {
	task, err := NewSurveyReminderTask(SurveyReminderPayload{
		SessionID: sessionID.String(),
		TenantID:  tenantID.String(),
	})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.ProcessIn(c.reminderDelay))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
