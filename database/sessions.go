package database

import (
    "context"
    "crypto/rand"
    "database/sql"
    "encoding/json"
    "fmt"
    "log"
    "time"

    "github.com/oklog/ulid/v2"

    "dukalink-payment-api/models"
    "dukalink-payment-api/services/session"
)

// SessionStore persists charge sessions in MySQL. The unique key on
// remote_charge_id enforces at most one session per remote charge.
type SessionStore struct {
    conn *Connection
}

func NewSessionStore(conn *Connection) *SessionStore {
    return &SessionStore{conn: conn}
}

// Create inserts a new session. A missing id gets a fresh ULID; missing
// status defaults to pending.
func (s *SessionStore) Create(ctx context.Context, sess *models.ChargeSession) error {
    if sess.ID == "" {
        sess.ID = ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
    }
    if sess.Status == "" {
        sess.Status = models.ChargeStatusPending
    }
    if sess.NextAction.Type == "" {
        sess.NextAction.Type = models.NextActionNone
    }

    nextActionJSON, err := json.Marshal(sess.NextAction)
    if err != nil {
        return fmt.Errorf("failed to marshal next action: %v", err)
    }

    metaJSON, err := json.Marshal(sess.Meta)
    if err != nil {
        return fmt.Errorf("failed to marshal session meta: %v", err)
    }

    _, err = s.conn.GetDB().ExecContext(ctx, `
        INSERT INTO charge_sessions
            (id, user_id, payment_id, remote_charge_id, reference, status,
             next_action, meta, poll_count, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NOW(), NOW())`,
        sess.ID, sess.UserID, sess.PaymentID, sess.RemoteChargeID,
        sess.Reference, sess.Status.String(), string(nextActionJSON), string(metaJSON))
    if err != nil {
        return fmt.Errorf("error creating charge session: %v", err)
    }

    return nil
}

func (s *SessionStore) GetByID(ctx context.Context, id string) (*models.ChargeSession, error) {
    return s.scanOne(s.conn.GetDB().QueryRowContext(ctx, `
        SELECT id, user_id, payment_id, remote_charge_id, reference, status,
               next_action, meta, poll_count, created_at, updated_at
        FROM charge_sessions WHERE id = ?`, id))
}

func (s *SessionStore) GetByChargeID(ctx context.Context, remoteChargeID string) (*models.ChargeSession, error) {
    return s.scanOne(s.conn.GetDB().QueryRowContext(ctx, `
        SELECT id, user_id, payment_id, remote_charge_id, reference, status,
               next_action, meta, poll_count, created_at, updated_at
        FROM charge_sessions WHERE remote_charge_id = ?`, remoteChargeID))
}

// UpdateState applies the latest server-reported status and next action. The
// WHERE guard keeps terminal sessions immutable, which also makes duplicate
// deliveries of the same terminal status harmless.
func (s *SessionStore) UpdateState(ctx context.Context, sessionID string, status models.ChargeStatus, next models.NextAction) error {
    nextActionJSON, err := json.Marshal(next)
    if err != nil {
        return fmt.Errorf("failed to marshal next action: %v", err)
    }

    result, err := s.conn.GetDB().ExecContext(ctx, `
        UPDATE charge_sessions
        SET status = ?, next_action = ?, updated_at = NOW()
        WHERE id = ?
          AND status NOT IN ('succeeded', 'failed', 'cancelled', 'timeout')`,
        status.String(), string(nextActionJSON), sessionID)
    if err != nil {
        return fmt.Errorf("error updating charge session: %v", err)
    }

    rows, err := result.RowsAffected()
    if err != nil {
        return fmt.Errorf("error getting rows affected: %v", err)
    }
    if rows == 0 {
        log.Printf("Session %s not updated to %s (already terminal or missing)", sessionID, status)
    }

    return nil
}

// IncrementPollCount bumps the poll counter and returns the new value for the
// max-poll cutoff decision.
func (s *SessionStore) IncrementPollCount(ctx context.Context, sessionID string) (int, error) {
    _, err := s.conn.GetDB().ExecContext(ctx, `
        UPDATE charge_sessions SET poll_count = poll_count + 1, updated_at = NOW()
        WHERE id = ?`, sessionID)
    if err != nil {
        return 0, fmt.Errorf("error incrementing poll count: %v", err)
    }

    var count int
    err = s.conn.GetDB().QueryRowContext(ctx,
        `SELECT poll_count FROM charge_sessions WHERE id = ?`, sessionID).Scan(&count)
    if err != nil {
        return 0, fmt.Errorf("error reading poll count: %v", err)
    }

    return count, nil
}

// SetMeta merges a key into the session's meta map (poll bookkeeping, last
// webhook event).
func (s *SessionStore) SetMeta(ctx context.Context, sessionID, key, value string) error {
    sess, err := s.GetByID(ctx, sessionID)
    if err != nil {
        return err
    }

    if sess.Meta == nil {
        sess.Meta = make(map[string]string)
    }
    sess.Meta[key] = value

    metaJSON, err := json.Marshal(sess.Meta)
    if err != nil {
        return fmt.Errorf("failed to marshal session meta: %v", err)
    }

    _, err = s.conn.GetDB().ExecContext(ctx, `
        UPDATE charge_sessions SET meta = ?, updated_at = NOW() WHERE id = ?`,
        string(metaJSON), sessionID)
    if err != nil {
        return fmt.Errorf("error updating session meta: %v", err)
    }
    return nil
}

// DeleteOlderThan is the retention sweep: sessions older than the window are
// removed regardless of status.
func (s *SessionStore) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
    cutoff := time.Now().Add(-retention)

    result, err := s.conn.GetDB().ExecContext(ctx,
        `DELETE FROM charge_sessions WHERE created_at < ?`, cutoff)
    if err != nil {
        return 0, fmt.Errorf("error sweeping charge sessions: %v", err)
    }

    deleted, err := result.RowsAffected()
    if err != nil {
        return 0, fmt.Errorf("error getting rows affected: %v", err)
    }

    if deleted > 0 {
        log.Printf("Retention sweep deleted %d charge sessions older than %v", deleted, retention)
    }
    return deleted, nil
}

func (s *SessionStore) scanOne(row *sql.Row) (*models.ChargeSession, error) {
    var sess models.ChargeSession
    var status, nextActionJSON, metaJSON string
    var userID, paymentID sql.NullString

    err := row.Scan(&sess.ID, &userID, &paymentID, &sess.RemoteChargeID,
        &sess.Reference, &status, &nextActionJSON, &metaJSON,
        &sess.PollCount, &sess.CreatedAt, &sess.UpdatedAt)
    if err == sql.ErrNoRows {
        return nil, session.ErrSessionNotFound
    }
    if err != nil {
        return nil, fmt.Errorf("error scanning charge session: %v", err)
    }

    sess.UserID = userID.String
    sess.PaymentID = paymentID.String
    sess.Status = models.ChargeStatus(status)

    if err := json.Unmarshal([]byte(nextActionJSON), &sess.NextAction); err != nil {
        return nil, fmt.Errorf("error parsing next action json: %v", err)
    }
    if metaJSON != "" && metaJSON != "null" {
        if err := json.Unmarshal([]byte(metaJSON), &sess.Meta); err != nil {
            return nil, fmt.Errorf("error parsing session meta json: %v", err)
        }
    }

    return &sess, nil
}
