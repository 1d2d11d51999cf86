package auth

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "log"
    "net/http"
    "sync"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

const (
    // RefreshMargin is how far before expiry a cached token is considered
    // stale, so a refresh happens before Kwelipay starts rejecting it.
    RefreshMargin = 60 * time.Second

    // FallbackTokenLifetime is assumed when the issued token carries no
    // readable expiry.
    FallbackTokenLifetime = 15 * time.Minute

    tokenRequestTimeout = 10 * time.Second
)

var (
    ErrMissingCredentials = errors.New("client id and client secret are required")
    ErrEmptyToken         = errors.New("token endpoint returned an empty access token")
)

// TokenService fetches bearer access tokens from Kwelipay's client-credentials
// endpoint and caches them until shortly before expiry. Safe for concurrent
// use; at most one refresh is in flight at a time.
type TokenService struct {
    tokenURL     string
    clientID     string
    clientSecret string
    client       *http.Client

    mu        sync.Mutex
    token     string
    expiresAt time.Time
}

type tokenResponse struct {
    AccessToken string `json:"access_token"`
    TokenType   string `json:"token_type"`
    ExpiresIn   int64  `json:"expires_in"`
}

func NewTokenService(tokenURL, clientID, clientSecret string) (*TokenService, error) {
    if clientID == "" || clientSecret == "" {
        return nil, ErrMissingCredentials
    }

    return &TokenService{
        tokenURL:     tokenURL,
        clientID:     clientID,
        clientSecret: clientSecret,
        client:       &http.Client{Timeout: tokenRequestTimeout},
    }, nil
}

// Token returns the cached bearer token, refreshing it when it is within the
// refresh margin of expiry.
func (s *TokenService) Token(ctx context.Context) (string, error) {
    s.mu.Lock()
    defer s.mu.Unlock()

    if s.token != "" && time.Now().Before(s.expiresAt.Add(-RefreshMargin)) {
        return s.token, nil
    }

    if err := s.refresh(ctx); err != nil {
        return "", err
    }
    return s.token, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
// Used after a 401 from the API.
func (s *TokenService) Invalidate() {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.token = ""
    s.expiresAt = time.Time{}
}

func (s *TokenService) refresh(ctx context.Context) error {
    payload, err := json.Marshal(map[string]string{
        "grant_type":    "client_credentials",
        "client_id":     s.clientID,
        "client_secret": s.clientSecret,
    })
    if err != nil {
        return fmt.Errorf("error marshaling token request: %v", err)
    }

    req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, bytes.NewBuffer(payload))
    if err != nil {
        return fmt.Errorf("error creating token request: %v", err)
    }
    req.Header.Set("Content-Type", "application/json")

    resp, err := s.client.Do(req)
    if err != nil {
        return fmt.Errorf("error requesting access token: %v", err)
    }
    defer resp.Body.Close()

    body, err := io.ReadAll(resp.Body)
    if err != nil {
        return fmt.Errorf("error reading token response: %v", err)
    }

    if resp.StatusCode != http.StatusOK {
        return fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
    }

    var tr tokenResponse
    if err := json.Unmarshal(body, &tr); err != nil {
        return fmt.Errorf("error decoding token response: %v", err)
    }
    if tr.AccessToken == "" {
        return ErrEmptyToken
    }

    s.token = tr.AccessToken
    s.expiresAt = s.resolveExpiry(tr)

    log.Printf("Refreshed Kwelipay access token, valid until %s", s.expiresAt.Format(time.RFC3339))
    return nil
}

// resolveExpiry prefers the token's own exp claim over the expires_in hint.
// The claim is read without signature verification: the token came over TLS
// from the provider and is only used to schedule the local refresh.
func (s *TokenService) resolveExpiry(tr tokenResponse) time.Time {
    parser := jwt.NewParser()
    claims := jwt.MapClaims{}
    if _, _, err := parser.ParseUnverified(tr.AccessToken, claims); err == nil {
        if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
            return exp.Time
        }
    }

    if tr.ExpiresIn > 0 {
        return time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
    }
    return time.Now().Add(FallbackTokenLifetime)
}
