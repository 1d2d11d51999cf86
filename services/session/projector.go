package session

import (
    "context"
    "fmt"
    "log"
    "reflect"

    "dukalink-payment-api/models"
)

// Store is the persistence contract the projector writes through. The MySQL
// implementation lives in the database package; tests use an in-memory fake.
type Store interface {
    Create(ctx context.Context, session *models.ChargeSession) error
    GetByChargeID(ctx context.Context, remoteChargeID string) (*models.ChargeSession, error)
    UpdateState(ctx context.Context, sessionID string, status models.ChargeStatus, next models.NextAction) error
}

// ErrSessionNotFound is returned by stores when no session mirrors the remote
// charge id.
var ErrSessionNotFound = fmt.Errorf("charge session not found")

// Projector applies server-reported charge state onto persisted sessions.
// Poll-driven and webhook-driven updates go through the same mapping, so both
// converge on identical session state for the same remote event. Updates are
// idempotent: re-applying a status is a no-op, and terminal sessions accept
// no further transitions.
type Projector struct {
    store      Store
    autoCreate bool
}

func NewProjector(store Store, autoCreate bool) *Projector {
    return &Projector{store: store, autoCreate: autoCreate}
}

// Apply mirrors a DirectCharge onto its session. When no session exists and
// auto-creation is on, one is created from the charge; otherwise the caller
// is expected to have created it.
func (p *Projector) Apply(ctx context.Context, charge *models.DirectCharge) (*models.ChargeSession, error) {
    session, err := p.store.GetByChargeID(ctx, charge.ID)
    if err == ErrSessionNotFound {
        if !p.autoCreate {
            return nil, err
        }
        return p.CreateFromCharge(ctx, charge)
    }
    if err != nil {
        return nil, fmt.Errorf("failed to load session for charge %s: %v", charge.ID, err)
    }

    return p.transition(ctx, session, charge.Status, charge.NextAction)
}

// ApplyEvent projects a verified webhook event through the same status and
// next-action mapping used for polling.
func (p *Projector) ApplyEvent(ctx context.Context, event *models.WebhookEvent) (*models.ChargeSession, error) {
    session, err := p.store.GetByChargeID(ctx, event.Data.ID)
    if err == ErrSessionNotFound {
        log.Printf("Webhook event %s for unknown charge %s, skipping projection", event.Event, event.Data.ID)
        return nil, err
    }
    if err != nil {
        return nil, fmt.Errorf("failed to load session for charge %s: %v", event.Data.ID, err)
    }

    next := session.NextAction
    if event.Data.NextAction != nil {
        next = *event.Data.NextAction
    }

    return p.transition(ctx, session, event.Data.Status, next)
}

func (p *Projector) transition(ctx context.Context, session *models.ChargeSession, status models.ChargeStatus, next models.NextAction) (*models.ChargeSession, error) {
    if !status.IsValid() {
        return nil, fmt.Errorf("unknown charge status %q for session %s", status, session.ID)
    }

    // Terminal sessions are immutable. Re-delivery of the same terminal
    // status is a no-op; a conflicting late update loses to the state already
    // recorded.
    if session.IsTerminal() {
        if session.Status != status {
            log.Printf("Ignoring status %s for terminal session %s (status %s)",
                status, session.ID, session.Status)
        }
        return session, nil
    }

    if session.Status == status && reflect.DeepEqual(session.NextAction, next) {
        return session, nil
    }

    if err := p.store.UpdateState(ctx, session.ID, status, next); err != nil {
        return nil, fmt.Errorf("failed to update session %s: %v", session.ID, err)
    }

    session.Status = status
    session.NextAction = next
    log.Printf("Session %s transitioned to %s (next action %s)", session.ID, status, next.Type)

    return session, nil
}

// CreateFromCharge starts a session mirroring a freshly created charge.
func (p *Projector) CreateFromCharge(ctx context.Context, charge *models.DirectCharge) (*models.ChargeSession, error) {
    session := &models.ChargeSession{
        RemoteChargeID: charge.ID,
        Reference:      charge.Reference,
        Status:         charge.Status,
        NextAction:     charge.NextAction,
    }

    if err := p.store.Create(ctx, session); err != nil {
        return nil, fmt.Errorf("failed to create session for charge %s: %v", charge.ID, err)
    }

    log.Printf("Created session %s for charge %s (status %s)", session.ID, charge.ID, charge.Status)
    return session, nil
}
