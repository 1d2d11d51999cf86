package models

import "time"

// ChargeSession is the locally persisted mirror of an in-flight charge, used
// to resume the authorization flow across requests and processes. At most one
// session exists per remote charge id.
type ChargeSession struct {
    ID             string            `json:"id"` // ULID
    UserID         string            `json:"user_id,omitempty"`
    PaymentID      string            `json:"payment_id,omitempty"`
    RemoteChargeID string            `json:"remote_charge_id"`
    Reference      string            `json:"reference"`
    Status         ChargeStatus      `json:"status"`
    NextAction     NextAction        `json:"next_action"`
    Meta           map[string]string `json:"meta,omitempty"`
    PollCount      int               `json:"poll_count"`
    CreatedAt      time.Time         `json:"created_at"`
    UpdatedAt      time.Time         `json:"updated_at"`
}

func (s *ChargeSession) IsTerminal() bool {
    return s.Status.IsTerminal()
}
