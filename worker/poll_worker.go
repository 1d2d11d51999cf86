package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"dukalink-payment-api/models"
	"dukalink-payment-api/queue"
	"dukalink-payment-api/services/charge"
	"dukalink-payment-api/services/session"
)

// SessionLocker serializes pollers for the same session. The MySQL
// implementation is database.Connection.
type SessionLocker interface {
	LockSession(sessionID string) (bool, error)
	ReleaseLock(sessionID string) error
}

// SessionStore is the slice of the session persistence layer the worker
// reads and writes. database.SessionStore satisfies it.
type SessionStore interface {
	GetByID(ctx context.Context, id string) (*models.ChargeSession, error)
	UpdateState(ctx context.Context, sessionID string, status models.ChargeStatus, next models.NextAction) error
	IncrementPollCount(ctx context.Context, sessionID string) (int, error)
	DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// Config carries the polling and retention knobs from the configuration
// surface.
type Config struct {
	PollInterval  time.Duration
	MaxPollCount  int
	Retention     time.Duration
	SweepInterval time.Duration
}

// Worker drives charge-session polling in the background. Each poll job is
// one atomic read-then-maybe-update of a session; non-terminal sessions
// re-queue themselves with a delay until the max poll count cuts them off.
type Worker struct {
	queue     *queue.Queue
	locks     SessionLocker
	store     SessionStore
	charges   *charge.Service
	projector *session.Projector
	config    Config
	shutdown  chan struct{}
	isRunning bool
}

func NewWorker(q *queue.Queue, locks SessionLocker, store SessionStore,
	charges *charge.Service, projector *session.Projector, config Config) *Worker {
	return &Worker{
		queue:     q,
		locks:     locks,
		store:     store,
		charges:   charges,
		projector: projector,
		config:    config,
		shutdown:  make(chan struct{}),
	}
}

// Start begins processing jobs and runs the delayed-job scheduler loop.
func (w *Worker) Start(concurrency int) {
	w.isRunning = true

	for i := 0; i < concurrency; i++ {
		go w.processJobs(i)
	}
	go w.scheduleLoop()

	log.Printf("Started %d worker goroutines", concurrency)
}

// Stop signals the worker to stop processing jobs.
func (w *Worker) Stop() {
	if !w.isRunning {
		return
	}

	log.Println("Stopping worker...")
	close(w.shutdown)
	w.isRunning = false
}

// SchedulePoll queues the first delayed poll for a session.
func (w *Worker) SchedulePoll(ctx context.Context, sessionID string) error {
	return w.queue.EnqueueDelayed(ctx, queue.JobTypePollChargeStatus,
		map[string]interface{}{"session_id": sessionID}, w.config.PollInterval)
}

// scheduleLoop promotes due delayed jobs and fires the periodic retention
// sweep.
func (w *Worker) scheduleLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	sweep := time.NewTicker(w.config.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-w.shutdown:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := w.queue.ProcessDelayedJobs(ctx); err != nil {
				log.Printf("Error processing delayed jobs: %v", err)
			}
			cancel()
		case <-sweep.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := w.queue.Enqueue(ctx, queue.JobTypeSweepSessions, map[string]interface{}{}); err != nil {
				log.Printf("Error enqueueing retention sweep: %v", err)
			}
			cancel()
		}
	}
}

// processJobs continuously processes jobs from the queue.
func (w *Worker) processJobs(workerID int) {
	log.Printf("Worker %d starting", workerID)

	for {
		select {
		case <-w.shutdown:
			log.Printf("Worker %d shutting down", workerID)
			return
		default:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			job, err := w.queue.Dequeue(ctx, 5*time.Second)
			cancel()

			if err != nil {
				log.Printf("Worker %d: Error dequeuing job: %v", workerID, err)
				time.Sleep(time.Second)
				continue
			}

			if job == nil {
				time.Sleep(100 * time.Millisecond)
				continue
			}

			log.Printf("Worker %d processing job %s of type %s", workerID, job.ID, job.Type)

			jobErr := w.processJob(job)
			if jobErr != nil {
				log.Printf("Worker %d: Error processing job %s: %v", workerID, job.ID, jobErr)

				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				failErr := w.queue.FailJob(ctx, job, jobErr)
				cancel()

				if failErr != nil {
					log.Printf("Worker %d: Error marking job %s as failed: %v", workerID, job.ID, failErr)
				}

				time.Sleep(time.Second)
				continue
			}

			ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
			completeErr := w.queue.CompleteJob(ctx, job)
			cancel()

			if completeErr != nil {
				log.Printf("Worker %d: Error marking job %s as complete: %v", workerID, job.ID, completeErr)
			}
		}
	}
}

func (w *Worker) processJob(job *queue.Job) error {
	switch job.Type {
	case queue.JobTypePollChargeStatus:
		return w.processPollChargeStatus(job)
	case queue.JobTypeCreateSession:
		return w.processCreateSession(job)
	case queue.JobTypeSweepSessions:
		return w.processSweepSessions(job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (w *Worker) processPollChargeStatus(job *queue.Job) error {
	sessionID, ok := job.Data["session_id"].(string)
	if !ok || sessionID == "" {
		return fmt.Errorf("invalid session_id in job data")
	}

	// The redis queue cannot rule out duplicate dispatch after a crash, so
	// pollers for the same session serialize on a short db lock.
	locked, err := w.locks.LockSession(sessionID)
	if err != nil {
		return fmt.Errorf("failed to lock session %s: %v", sessionID, err)
	}
	if !locked {
		log.Printf("Session %s is being polled elsewhere, skipping", sessionID)
		return nil
	}
	defer func() {
		if err := w.locks.ReleaseLock(sessionID); err != nil {
			log.Printf("Warning: Failed to release lock for session %s: %v", sessionID, err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	sess, err := w.store.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %v", sessionID, err)
	}

	if sess.IsTerminal() {
		log.Printf("Session %s already terminal (%s), no further polling", sessionID, sess.Status)
		return nil
	}

	charge, err := w.charges.Status(ctx, sess.RemoteChargeID)
	if err != nil {
		return fmt.Errorf("status poll failed for charge %s: %v", sess.RemoteChargeID, err)
	}

	sess, err = w.projector.Apply(ctx, charge)
	if err != nil {
		return fmt.Errorf("failed to project charge %s: %v", charge.ID, err)
	}

	polls, err := w.store.IncrementPollCount(ctx, sessionID)
	if err != nil {
		return err
	}

	if sess.IsTerminal() {
		log.Printf("Session %s reached terminal status %s after %d polls", sessionID, sess.Status, polls)
		return nil
	}

	if polls >= w.config.MaxPollCount {
		// The remote charge may still resolve later; locally the session is
		// closed out as timed out once the poll budget is spent.
		log.Printf("Session %s exceeded max poll count (%d), marking timed out", sessionID, w.config.MaxPollCount)
		return w.store.UpdateState(ctx, sessionID, models.ChargeStatusTimeout, models.NextAction{Type: models.NextActionNone})
	}

	return w.queue.EnqueueDelayed(ctx, queue.JobTypePollChargeStatus,
		map[string]interface{}{"session_id": sessionID}, w.config.PollInterval)
}

func (w *Worker) processCreateSession(job *queue.Job) error {
	chargeID, ok := job.Data["charge_id"].(string)
	if !ok || chargeID == "" {
		return fmt.Errorf("invalid charge_id in job data")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	charge, err := w.charges.Status(ctx, chargeID)
	if err != nil {
		return fmt.Errorf("failed to fetch charge %s for session creation: %v", chargeID, err)
	}

	sess, err := w.projector.Apply(ctx, charge)
	if err == session.ErrSessionNotFound {
		sess, err = w.projector.CreateFromCharge(ctx, charge)
	}
	if err != nil {
		return fmt.Errorf("failed to create session for charge %s: %v", chargeID, err)
	}

	if sess.IsTerminal() {
		return nil
	}

	return w.queue.EnqueueDelayed(ctx, queue.JobTypePollChargeStatus,
		map[string]interface{}{"session_id": sess.ID}, w.config.PollInterval)
}

func (w *Worker) processSweepSessions(job *queue.Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err := w.store.DeleteOlderThan(ctx, w.config.Retention)
	return err
}
