package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dukalink-payment-api/models"
)

// fakeStore is an in-memory Store keyed by remote charge id, counting
// UpdateState calls so tests can assert on write idempotency.
type fakeStore struct {
	sessions map[string]*models.ChargeSession
	updates  int
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string]*models.ChargeSession{}}
}

func (f *fakeStore) Create(ctx context.Context, session *models.ChargeSession) error {
	if _, exists := f.sessions[session.RemoteChargeID]; exists {
		return fmt.Errorf("duplicate session for charge %s", session.RemoteChargeID)
	}
	f.nextID++
	session.ID = fmt.Sprintf("sess_%d", f.nextID)
	copied := *session
	f.sessions[session.RemoteChargeID] = &copied
	return nil
}

func (f *fakeStore) GetByChargeID(ctx context.Context, remoteChargeID string) (*models.ChargeSession, error) {
	session, ok := f.sessions[remoteChargeID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (f *fakeStore) UpdateState(ctx context.Context, sessionID string, status models.ChargeStatus, next models.NextAction) error {
	f.updates++
	for _, session := range f.sessions {
		if session.ID == sessionID {
			if session.IsTerminal() {
				return nil
			}
			session.Status = status
			session.NextAction = next
			return nil
		}
	}
	return ErrSessionNotFound
}

func pendingCharge(id string) *models.DirectCharge {
	return &models.DirectCharge{
		ID:         id,
		Reference:  "ORDER-" + id,
		Status:     models.ChargeStatusPending,
		NextAction: models.NextAction{Type: models.NextActionNone},
	}
}

func TestApplyAutoCreatesSession(t *testing.T) {
	store := newFakeStore()
	projector := NewProjector(store, true)

	sess, err := projector.Apply(context.Background(), pendingCharge("ch_1"))
	require.NoError(t, err)
	assert.Equal(t, "ch_1", sess.RemoteChargeID)
	assert.Equal(t, models.ChargeStatusPending, sess.Status)
	assert.NotEmpty(t, sess.ID)
}

func TestApplyWithoutAutoCreateReportsNotFound(t *testing.T) {
	store := newFakeStore()
	projector := NewProjector(store, false)

	_, err := projector.Apply(context.Background(), pendingCharge("ch_1"))
	assert.Equal(t, ErrSessionNotFound, err)
}

func TestApplyTransitionsThroughLifecycle(t *testing.T) {
	store := newFakeStore()
	projector := NewProjector(store, true)

	charge := pendingCharge("ch_1")
	_, err := projector.Apply(context.Background(), charge)
	require.NoError(t, err)

	charge.Status = models.ChargeStatusRequiresAction
	charge.NextAction = models.NextAction{Type: models.NextActionRequiresOTP, OTPDeliveredTo: "+2557****001"}
	sess, err := projector.Apply(context.Background(), charge)
	require.NoError(t, err)
	assert.Equal(t, models.ChargeStatusRequiresAction, sess.Status)
	assert.Equal(t, models.NextActionRequiresOTP, sess.NextAction.Type)

	charge.Status = models.ChargeStatusSucceeded
	charge.NextAction = models.NextAction{Type: models.NextActionNone}
	sess, err = projector.Apply(context.Background(), charge)
	require.NoError(t, err)
	assert.Equal(t, models.ChargeStatusSucceeded, sess.Status)
}

func TestApplyIsIdempotent(t *testing.T) {
	store := newFakeStore()
	projector := NewProjector(store, true)

	charge := pendingCharge("ch_1")
	charge.Status = models.ChargeStatusRequiresAction
	charge.NextAction = models.NextAction{Type: models.NextActionRequiresPin}

	_, err := projector.Apply(context.Background(), charge)
	require.NoError(t, err)
	updatesAfterCreate := store.updates

	// Re-delivering the same state writes nothing.
	_, err = projector.Apply(context.Background(), charge)
	require.NoError(t, err)
	assert.Equal(t, updatesAfterCreate, store.updates)
}

func TestApplyPersistsChangedActionPayload(t *testing.T) {
	store := newFakeStore()
	projector := NewProjector(store, true)

	charge := pendingCharge("ch_1")
	charge.Status = models.ChargeStatusRequiresAction
	charge.NextAction = models.NextAction{Type: models.NextActionRedirectURL, RedirectURL: "https://pay.example.com/3ds/1"}
	_, err := projector.Apply(context.Background(), charge)
	require.NoError(t, err)
	updatesAfterCreate := store.updates

	// Same status and action type, new payload: the update must be written.
	charge.NextAction.RedirectURL = "https://pay.example.com/3ds/2"
	sess, err := projector.Apply(context.Background(), charge)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/3ds/2", sess.NextAction.RedirectURL)
	assert.Equal(t, updatesAfterCreate+1, store.updates)

	stored, err := store.GetByChargeID(context.Background(), "ch_1")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/3ds/2", stored.NextAction.RedirectURL)
}

func TestTerminalSessionsAreImmutable(t *testing.T) {
	store := newFakeStore()
	projector := NewProjector(store, true)

	charge := pendingCharge("ch_1")
	charge.Status = models.ChargeStatusSucceeded
	_, err := projector.Apply(context.Background(), charge)
	require.NoError(t, err)

	// A late conflicting update loses to the recorded terminal state.
	charge.Status = models.ChargeStatusFailed
	sess, err := projector.Apply(context.Background(), charge)
	require.NoError(t, err)
	assert.Equal(t, models.ChargeStatusSucceeded, sess.Status)

	stored, err := store.GetByChargeID(context.Background(), "ch_1")
	require.NoError(t, err)
	assert.Equal(t, models.ChargeStatusSucceeded, stored.Status)
}

func TestApplyRejectsUnknownStatus(t *testing.T) {
	store := newFakeStore()
	projector := NewProjector(store, true)

	charge := pendingCharge("ch_1")
	_, err := projector.Apply(context.Background(), charge)
	require.NoError(t, err)

	charge.Status = models.ChargeStatus("exploded")
	_, err = projector.Apply(context.Background(), charge)
	require.Error(t, err)
}

func TestApplyEventMatchesPollProjection(t *testing.T) {
	store := newFakeStore()
	projector := NewProjector(store, true)

	_, err := projector.Apply(context.Background(), pendingCharge("ch_1"))
	require.NoError(t, err)

	event := &models.WebhookEvent{
		Event: "charge.completed",
		Data: models.WebhookEventData{
			ID:         "ch_1",
			Status:     models.ChargeStatusSucceeded,
			NextAction: &models.NextAction{Type: models.NextActionNone},
		},
	}

	sess, err := projector.ApplyEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, models.ChargeStatusSucceeded, sess.Status)

	// The poll path now sees the same terminal state and changes nothing.
	charge := pendingCharge("ch_1")
	charge.Status = models.ChargeStatusSucceeded
	pollSess, err := projector.Apply(context.Background(), charge)
	require.NoError(t, err)
	assert.Equal(t, sess.Status, pollSess.Status)
}

func TestApplyEventForUnknownChargeReportsNotFound(t *testing.T) {
	store := newFakeStore()
	projector := NewProjector(store, true)

	event := &models.WebhookEvent{
		Event: "charge.completed",
		Data:  models.WebhookEventData{ID: "ch_unknown", Status: models.ChargeStatusSucceeded},
	}

	_, err := projector.ApplyEvent(context.Background(), event)
	assert.Equal(t, ErrSessionNotFound, err)
}
