package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dukalink-payment-api/models"
	"dukalink-payment-api/queue"
	"dukalink-payment-api/ratelimit"
	"dukalink-payment-api/services/charge"
	"dukalink-payment-api/services/charge/kwelipay"
	"dukalink-payment-api/services/session"
)

// fakeSessionStore backs both the worker and the projector in memory.
type fakeSessionStore struct {
	sessions map[string]*models.ChargeSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*models.ChargeSession{}}
}

func (f *fakeSessionStore) Create(ctx context.Context, s *models.ChargeSession) error {
	s.ID = fmt.Sprintf("sess_%d", len(f.sessions)+1)
	copied := *s
	f.sessions[s.ID] = &copied
	return nil
}

func (f *fakeSessionStore) GetByID(ctx context.Context, id string) (*models.ChargeSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSessionStore) GetByChargeID(ctx context.Context, remoteChargeID string) (*models.ChargeSession, error) {
	for _, s := range f.sessions {
		if s.RemoteChargeID == remoteChargeID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, session.ErrSessionNotFound
}

func (f *fakeSessionStore) UpdateState(ctx context.Context, sessionID string, status models.ChargeStatus, next models.NextAction) error {
	s, ok := f.sessions[sessionID]
	if !ok {
		return session.ErrSessionNotFound
	}
	if s.IsTerminal() {
		return nil
	}
	s.Status = status
	s.NextAction = next
	return nil
}

func (f *fakeSessionStore) IncrementPollCount(ctx context.Context, sessionID string) (int, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return 0, session.ErrSessionNotFound
	}
	s.PollCount++
	return s.PollCount, nil
}

func (f *fakeSessionStore) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	return 0, nil
}

type fakeLocker struct {
	denyLock bool
	locks    int
	releases int
}

func (f *fakeLocker) LockSession(sessionID string) (bool, error) {
	f.locks++
	return !f.denyLock, nil
}

func (f *fakeLocker) ReleaseLock(sessionID string) error {
	f.releases++
	return nil
}

type workerTestEnv struct {
	worker      *Worker
	store       *fakeSessionStore
	locker      *fakeLocker
	queue       *queue.Queue
	remoteCalls *int32
}

type workerStubTokens struct{}

func (workerStubTokens) Token(ctx context.Context) (string, error) { return "tok_test", nil }

func newWorkerTestEnv(t *testing.T, remoteStatus models.ChargeStatus, maxPolls int) *workerTestEnv {
	t.Helper()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"data": map[string]interface{}{
				"id":          "ch_1",
				"reference":   "ORDER-1",
				"status":      remoteStatus,
				"next_action": map[string]interface{}{"type": models.NextActionNone},
			},
		})
	}))
	t.Cleanup(server.Close)

	gate := ratelimit.NewRateGate(nil, ratelimit.Config{Disabled: true})
	client := kwelipay.NewClient("sandbox", workerStubTokens{}, kwelipay.NewRetryPolicy(1, time.Millisecond), gate)
	client.SetBaseURL(server.URL)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	store := newFakeSessionStore()
	locker := &fakeLocker{}
	q := queue.NewQueueWithClient(redisClient, "test_jobs")

	w := NewWorker(q, locker, store, charge.NewService(client), session.NewProjector(store, false), Config{
		PollInterval:  time.Minute,
		MaxPollCount:  maxPolls,
		Retention:     time.Hour,
		SweepInterval: time.Hour,
	})

	return &workerTestEnv{worker: w, store: store, locker: locker, queue: q, remoteCalls: &calls}
}

func seedSession(env *workerTestEnv, pollCount int, status models.ChargeStatus) *models.ChargeSession {
	sess := &models.ChargeSession{
		RemoteChargeID: "ch_1",
		Reference:      "ORDER-1",
		Status:         status,
		NextAction:     models.NextAction{Type: models.NextActionNone},
		PollCount:      pollCount,
	}
	env.store.Create(context.Background(), sess)
	return sess
}

func pollJob(sessionID string) *queue.Job {
	return &queue.Job{
		ID:   "job_1",
		Type: queue.JobTypePollChargeStatus,
		Data: map[string]interface{}{"session_id": sessionID},
	}
}

func delayedJobs(t *testing.T, env *workerTestEnv) int64 {
	t.Helper()
	return env.queue.Client().ZCard(context.Background(), "test_jobs:delayed").Val()
}

func TestPollReschedulesWhileBudgetRemains(t *testing.T) {
	env := newWorkerTestEnv(t, models.ChargeStatusPending, 5)
	sess := seedSession(env, 0, models.ChargeStatusPending)

	err := env.worker.processJob(pollJob(sess.ID))
	require.NoError(t, err)

	stored, err := env.store.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChargeStatusPending, stored.Status)
	assert.Equal(t, 1, stored.PollCount)
	assert.Equal(t, int64(1), delayedJobs(t, env))
}

func TestPollMarksSessionTimedOutAtBudget(t *testing.T) {
	env := newWorkerTestEnv(t, models.ChargeStatusPending, 5)
	sess := seedSession(env, 4, models.ChargeStatusPending)

	err := env.worker.processJob(pollJob(sess.ID))
	require.NoError(t, err)

	stored, err := env.store.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChargeStatusTimeout, stored.Status)
	assert.Equal(t, models.NextActionNone, stored.NextAction.Type)

	// The spent budget ends the schedule: no re-poll is queued.
	assert.Equal(t, int64(0), delayedJobs(t, env))
}

func TestPollStopsOnTerminalRemoteStatus(t *testing.T) {
	env := newWorkerTestEnv(t, models.ChargeStatusSucceeded, 5)
	sess := seedSession(env, 4, models.ChargeStatusPending)

	err := env.worker.processJob(pollJob(sess.ID))
	require.NoError(t, err)

	stored, err := env.store.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)

	// A success on the final allowed poll wins over the timeout cutoff.
	assert.Equal(t, models.ChargeStatusSucceeded, stored.Status)
	assert.Equal(t, int64(0), delayedJobs(t, env))
}

func TestPollSkipsAlreadyTerminalSession(t *testing.T) {
	env := newWorkerTestEnv(t, models.ChargeStatusPending, 5)
	sess := seedSession(env, 1, models.ChargeStatusSucceeded)

	err := env.worker.processJob(pollJob(sess.ID))
	require.NoError(t, err)

	assert.Equal(t, int32(0), atomic.LoadInt32(env.remoteCalls))
	assert.Equal(t, int64(0), delayedJobs(t, env))
}

func TestPollSkipsWhenLockedElsewhere(t *testing.T) {
	env := newWorkerTestEnv(t, models.ChargeStatusPending, 5)
	env.locker.denyLock = true
	sess := seedSession(env, 0, models.ChargeStatusPending)

	err := env.worker.processJob(pollJob(sess.ID))
	require.NoError(t, err)

	assert.Equal(t, int32(0), atomic.LoadInt32(env.remoteCalls))
	assert.Equal(t, 0, env.locker.releases)
}

func TestPollReleasesLockOnCompletion(t *testing.T) {
	env := newWorkerTestEnv(t, models.ChargeStatusPending, 5)
	sess := seedSession(env, 0, models.ChargeStatusPending)

	require.NoError(t, env.worker.processJob(pollJob(sess.ID)))
	assert.Equal(t, 1, env.locker.locks)
	assert.Equal(t, 1, env.locker.releases)
}

func TestPollRejectsJobWithoutSessionID(t *testing.T) {
	env := newWorkerTestEnv(t, models.ChargeStatusPending, 5)

	err := env.worker.processJob(&queue.Job{
		ID:   "job_bad",
		Type: queue.JobTypePollChargeStatus,
		Data: map[string]interface{}{},
	})
	require.Error(t, err)
}
