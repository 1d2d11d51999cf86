package charge

import (
    "context"
    "errors"
    "fmt"
    "log"

    "dukalink-payment-api/models"
    "dukalink-payment-api/services/charge/kwelipay"
)

// Service owns the direct-charge lifecycle against Kwelipay:
//
//	pending -> requires_action -> {succeeded | failed | cancelled | timeout}
//
// with the direct pending -> succeeded/failed shortcut when no customer
// authorization is needed. The service is storage-free: projecting results
// onto charge sessions is the session projector's job, which keeps the
// lifecycle logic testable in isolation.
type Service struct {
    client *kwelipay.Client
}

func NewService(client *kwelipay.Client) *Service {
    return &Service{client: client}
}

// Create sends a built, encrypted charge request and surfaces the next
// required authorization step, if any, on the returned charge.
func (s *Service) Create(ctx context.Context, req *models.ChargeRequest) (*models.DirectCharge, error) {
    log.Printf("Creating direct charge for reference %s (%d %s via %s)",
        req.Reference, req.Amount, req.Currency, req.PaymentMethod.Type)

    charge, err := s.client.CreateCharge(ctx, req)
    if err != nil {
        log.Printf("Error creating charge for reference %s: %v", req.Reference, err)
        return nil, fmt.Errorf("charge creation failed: %w", err)
    }

    if charge.RequiresAuthorization() {
        log.Printf("Charge %s requires authorization: %s", charge.ID, charge.NextAction.Type)
    } else {
        log.Printf("Charge %s created with status %s", charge.ID, charge.Status)
    }

    return charge, nil
}

// Authorize submits a PIN, OTP or AVS step against an existing charge and
// maps the new state the same way Create does. Kwelipay is the authority on
// terminal-state rejection; locally only the charge id is checked.
func (s *Service) Authorize(ctx context.Context, chargeID string, sub models.AuthorizationSubmission) (*models.DirectCharge, error) {
    if chargeID == "" {
        return nil, errors.New("charge id is required for authorization")
    }

    log.Printf("Submitting %s authorization for charge %s", sub.Type, chargeID)

    charge, err := s.client.AuthorizeCharge(ctx, chargeID, sub)
    if err != nil {
        log.Printf("Error authorizing charge %s: %v", chargeID, err)
        return nil, fmt.Errorf("charge authorization failed: %w", err)
    }

    return charge, nil
}

// Status is a read-only fetch. It never mutates local session state; callers
// decide whether to persist the result.
func (s *Service) Status(ctx context.Context, chargeID string) (*models.DirectCharge, error) {
    if chargeID == "" {
        return nil, errors.New("charge id is required for status lookup")
    }

    charge, err := s.client.GetCharge(ctx, chargeID)
    if err != nil {
        return nil, fmt.Errorf("charge status lookup failed: %w", err)
    }

    return charge, nil
}
