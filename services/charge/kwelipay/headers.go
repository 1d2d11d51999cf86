package kwelipay

import (
    "net/http"

    "github.com/google/uuid"
)

// EndpointKind selects the non-production scenario default for an outbound
// call. Recipient and sender endpoints never receive a scenario key.
type EndpointKind int

const (
    EndpointCharge EndpointKind = iota
    EndpointTransfer
    EndpointRecipient
    EndpointSender
    EndpointGeneric
)

const (
    scenarioAuthRedirect = "scenario:auth_redirect"
    scenarioSuccessful   = "scenario:successful"
)

// HeaderOptions carries the caller-supplied values for one logical call.
// Empty fields fall back to fresh random UUIDs (idempotency, trace) or the
// endpoint's scenario default.
type HeaderOptions struct {
    IdempotencyKey string
    TraceID        string
    ScenarioKey    string
    Kind           EndpointKind
}

// HeaderBuilder derives the idempotency, trace and scenario headers for every
// outbound Kwelipay call. Stateless: same inputs give the same headers except
// for the random fallback ids.
type HeaderBuilder struct {
    environment string
}

func NewHeaderBuilder(environment string) *HeaderBuilder {
    return &HeaderBuilder{environment: environment}
}

func (b *HeaderBuilder) Build(opts HeaderOptions) http.Header {
    h := http.Header{}
    h.Set("Content-Type", "application/json")

    idempotencyKey := opts.IdempotencyKey
    if idempotencyKey == "" {
        idempotencyKey = uuid.New().String()
    }
    h.Set("X-Idempotency-Key", idempotencyKey)

    traceID := opts.TraceID
    if traceID == "" {
        traceID = uuid.New().String()
    }
    h.Set("X-Trace-Id", traceID)

    if scenario := b.scenarioKey(opts); scenario != "" {
        h.Set("X-Scenario-Key", scenario)
    }

    return h
}

// scenarioKey resolves the simulated-behavior header. Production traffic
// never carries one; elsewhere an explicit caller value wins over the
// endpoint default.
func (b *HeaderBuilder) scenarioKey(opts HeaderOptions) string {
    if b.environment == "production" {
        return ""
    }
    if opts.Kind == EndpointRecipient || opts.Kind == EndpointSender {
        return ""
    }
    if opts.ScenarioKey != "" {
        return opts.ScenarioKey
    }
    switch opts.Kind {
    case EndpointCharge:
        return scenarioAuthRedirect
    case EndpointTransfer:
        return scenarioSuccessful
    default:
        return ""
    }
}
