package kwelipay

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "log"
    "net/http"
    "strings"
    "time"

    "dukalink-payment-api/models"
    "dukalink-payment-api/ratelimit"
    "dukalink-payment-api/types"
)

const (
    SandboxEndpoint    = "https://sandbox.api.kwelipay.com/v1"
    ProductionEndpoint = "https://api.kwelipay.com/v1"
    RequestTimeout     = 30 * time.Second
)

// TokenProvider supplies the bearer access token for outbound calls. The
// caching/refresh cycle lives behind this interface.
type TokenProvider interface {
    Token(ctx context.Context) (string, error)
}

// Client is the HTTP client for Kwelipay's JSON API. Every outbound call goes
// through the rate gate, the header builder and the retry policy.
type Client struct {
    environment string
    baseURL     string
    tokens      TokenProvider
    headers     *HeaderBuilder
    retry       *RetryPolicy
    gate        *ratelimit.RateGate
    client      *http.Client
}

func NewClient(environment string, tokens TokenProvider, retry *RetryPolicy, gate *ratelimit.RateGate) *Client {
    transport := &http.Transport{
        MaxIdleConns:        100,
        MaxIdleConnsPerHost: 20,
        MaxConnsPerHost:     100,
        IdleConnTimeout:     90 * time.Second,
        DisableKeepAlives:   false,
        TLSHandshakeTimeout: 10 * time.Second,
    }

    baseURL := SandboxEndpoint
    if environment == "production" {
        baseURL = ProductionEndpoint
    }

    return &Client{
        environment: environment,
        baseURL:     baseURL,
        tokens:      tokens,
        headers:     NewHeaderBuilder(environment),
        retry:       retry,
        gate:        gate,
        client: &http.Client{
            Timeout:   RequestTimeout,
            Transport: transport,
        },
    }
}

// SetBaseURL overrides the environment endpoint. Used by tests to point the
// client at a local server.
func (c *Client) SetBaseURL(baseURL string) {
    c.baseURL = strings.TrimSuffix(baseURL, "/")
}

// CreateCharge posts a built, already-encrypted charge request and maps the
// response into a DirectCharge.
func (c *Client) CreateCharge(ctx context.Context, req *models.ChargeRequest) (*models.DirectCharge, error) {
    opts := HeaderOptions{
        IdempotencyKey: req.IdempotencyKey,
        TraceID:        req.TraceID,
        ScenarioKey:    req.ScenarioKey,
        Kind:           EndpointCharge,
    }
    return c.chargeCall(ctx, http.MethodPost, "/charges", req, opts)
}

// AuthorizeCharge submits a PIN, OTP or AVS authorization against an existing
// charge. Kwelipay rejects submissions to charges already in a terminal
// state; no local pre-validation is done beyond the non-empty id.
func (c *Client) AuthorizeCharge(ctx context.Context, chargeID string, sub models.AuthorizationSubmission) (*models.DirectCharge, error) {
    opts := HeaderOptions{Kind: EndpointCharge}
    path := fmt.Sprintf("/charges/%s/authorize", chargeID)
    return c.chargeCall(ctx, http.MethodPost, path, authorizeRequest{Authorization: sub}, opts)
}

// GetCharge is the read-only status fetch.
func (c *Client) GetCharge(ctx context.Context, chargeID string) (*models.DirectCharge, error) {
    opts := HeaderOptions{Kind: EndpointGeneric}
    path := fmt.Sprintf("/charges/%s", chargeID)
    return c.chargeCall(ctx, http.MethodGet, path, nil, opts)
}

// ListBanks fetches the static bank directory.
func (c *Client) ListBanks(ctx context.Context, country string) ([]models.Bank, error) {
    body, err := c.do(ctx, http.MethodGet, "/banks?country="+country, nil, HeaderOptions{Kind: EndpointGeneric})
    if err != nil {
        return nil, err
    }

    var resp bankListResponse
    if err := json.Unmarshal(body, &resp); err != nil {
        return nil, fmt.Errorf("error decoding bank list: %v", err)
    }
    return resp.Data, nil
}

// ListMobileNetworks fetches the supported mobile-money networks.
func (c *Client) ListMobileNetworks(ctx context.Context, country string) ([]models.MobileNetwork, error) {
    body, err := c.do(ctx, http.MethodGet, "/mobile-networks?country="+country, nil, HeaderOptions{Kind: EndpointGeneric})
    if err != nil {
        return nil, err
    }

    var resp mobileNetworkListResponse
    if err := json.Unmarshal(body, &resp); err != nil {
        return nil, fmt.Errorf("error decoding mobile network list: %v", err)
    }
    return resp.Data, nil
}

func (c *Client) chargeCall(ctx context.Context, method, path string, payload interface{}, opts HeaderOptions) (*models.DirectCharge, error) {
    body, err := c.do(ctx, method, path, payload, opts)
    if err != nil {
        return nil, err
    }

    var resp chargeResponse
    if err := json.Unmarshal(body, &resp); err != nil {
        return nil, fmt.Errorf("error decoding charge response: %v, body: %s", err, string(body))
    }

    charge := resp.Data
    if charge.NextAction.Type == "" {
        charge.NextAction.Type = models.NextActionNone
    }
    return &charge, nil
}

// do performs one logical call: rate gate, then the retried HTTP round trip.
// Remote rejections come back as *types.APIError with the raw body attached.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}, opts HeaderOptions) ([]byte, error) {
    if err := c.gate.Attempt(ctx, ratelimit.DefaultKey); err != nil {
        return nil, err
    }

    var jsonPayload []byte
    if payload != nil {
        var err error
        jsonPayload, err = json.Marshal(payload)
        if err != nil {
            return nil, fmt.Errorf("error marshaling request: %v", err)
        }
    }

    url := c.baseURL + path
    headers := c.headers.Build(opts)

    var respBody []byte
    err := c.retry.Execute(ctx, method+" "+url, func() error {
        var attemptErr error
        respBody, attemptErr = c.roundTrip(ctx, method, url, jsonPayload, headers)
        return attemptErr
    })
    if err != nil {
        return nil, err
    }

    return respBody, nil
}

func (c *Client) roundTrip(ctx context.Context, method, url string, jsonPayload []byte, headers http.Header) ([]byte, error) {
    reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
    defer cancel()

    var reader io.Reader
    if jsonPayload != nil {
        reader = bytes.NewBuffer(jsonPayload)
    }

    httpReq, err := http.NewRequestWithContext(reqCtx, method, url, reader)
    if err != nil {
        return nil, fmt.Errorf("error creating request: %v", err)
    }

    token, err := c.tokens.Token(reqCtx)
    if err != nil {
        return nil, fmt.Errorf("error obtaining access token: %v", err)
    }

    for name, values := range headers {
        for _, v := range values {
            httpReq.Header.Set(name, v)
        }
    }
    httpReq.Header.Set("Authorization", "Bearer "+token)
    httpReq.Header.Set("Cache-Control", "no-cache")

    start := time.Now()
    resp, err := c.client.Do(httpReq)
    if err != nil {
        return nil, fmt.Errorf("error making request: %v", err)
    }
    defer resp.Body.Close()

    respBody, err := io.ReadAll(resp.Body)
    if err != nil {
        return nil, fmt.Errorf("error reading response body: %v", err)
    }

    elapsed := time.Since(start)
    if elapsed > 500*time.Millisecond || resp.StatusCode >= 400 {
        log.Printf("Kwelipay %s %s returned %d in %v", method, url, resp.StatusCode, elapsed)
    }

    cleanBody := []byte(strings.TrimPrefix(string(respBody), "\ufeff"))

    if resp.StatusCode >= 400 {
        return nil, c.apiError(resp.StatusCode, cleanBody)
    }

    return cleanBody, nil
}

// apiError decodes the provider's error envelope. An undecodable body still
// produces a structured error with the raw payload attached.
func (c *Client) apiError(statusCode int, body []byte) *types.APIError {
    apiErr := &types.APIError{
        StatusCode: statusCode,
        RawBody:    string(body),
    }

    var envelope responseEnvelope
    if err := json.Unmarshal(body, &envelope); err == nil {
        apiErr.Code = envelope.Code
        apiErr.Type = envelope.Type
        apiErr.Message = envelope.Message
    }
    if apiErr.Message == "" {
        apiErr.Message = http.StatusText(statusCode)
    }

    return apiErr
}
