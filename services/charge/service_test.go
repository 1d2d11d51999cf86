package charge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dukalink-payment-api/models"
	"dukalink-payment-api/ratelimit"
	"dukalink-payment-api/services/charge/kwelipay"
)

type staticTokens struct{}

func (staticTokens) Token(ctx context.Context) (string, error) { return "tok_test", nil }

// kwelipayStub simulates the provider's charge lifecycle: creation demands a
// PIN, a valid authorization settles the charge.
type kwelipayStub struct {
	t          *testing.T
	authorized bool
}

func (s *kwelipayStub) charge() map[string]interface{} {
	status := models.ChargeStatusRequiresAction
	next := map[string]interface{}{"type": "requires_pin"}
	if s.authorized {
		status = models.ChargeStatusSucceeded
		next = map[string]interface{}{"type": "none"}
	}
	return map[string]interface{}{
		"id":          "ch_1",
		"amount":      10000,
		"currency":    "TZS",
		"reference":   "ORDER-1",
		"status":      status,
		"next_action": next,
	}
}

func (s *kwelipayStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/charges":
		var req models.ChargeRequest
		require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(s.t, int64(10000), req.Amount)
	case r.Method == http.MethodPost && r.URL.Path == "/charges/ch_1/authorize":
		var req struct {
			Authorization models.AuthorizationSubmission `json:"authorization"`
		}
		require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(s.t, models.AuthorizationPin, req.Authorization.Type)
		require.NotNil(s.t, req.Authorization.Pin)
		assert.NotEmpty(s.t, req.Authorization.Pin.EncryptedPin)
		s.authorized = true
	case r.Method == http.MethodGet && r.URL.Path == "/charges/ch_1":
	default:
		http.NotFound(w, r)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "success",
		"data":   s.charge(),
	})
}

func testService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gate := ratelimit.NewRateGate(nil, ratelimit.Config{Disabled: true})
	client := kwelipay.NewClient("sandbox", staticTokens{}, kwelipay.NewRetryPolicy(1, time.Millisecond), gate)
	client.SetBaseURL(server.URL)
	return NewService(client)
}

func TestChargeLifecycle(t *testing.T) {
	codec := testCodec(t)
	stub := &kwelipayStub{t: t}
	service := testService(t, stub)
	ctx := context.Background()

	req, err := validBuilder(codec).
		Card("4242424242424242", "09", "2028", "123", nil).
		Build()
	require.NoError(t, err)

	created, err := service.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.ChargeStatusRequiresAction, created.Status)
	assert.True(t, created.RequiresAuthorization())
	assert.Equal(t, models.NextActionRequiresPin, created.NextAction.Type)

	pin, err := codec.EncryptPin("1234")
	require.NoError(t, err)

	authorized, err := service.Authorize(ctx, created.ID, models.AuthorizationSubmission{
		Type: models.AuthorizationPin,
		Pin:  pin,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChargeStatusSucceeded, authorized.Status)
	assert.False(t, authorized.RequiresAuthorization())

	current, err := service.Status(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChargeStatusSucceeded, current.Status)
}

func TestAuthorizeRequiresChargeID(t *testing.T) {
	service := testService(t, http.NotFoundHandler())

	_, err := service.Authorize(context.Background(), "", models.AuthorizationSubmission{
		Type: models.AuthorizationOTP,
		OTP:  "123456",
	})
	require.Error(t, err)
}

func TestStatusRequiresChargeID(t *testing.T) {
	service := testService(t, http.NotFoundHandler())

	_, err := service.Status(context.Background(), "")
	require.Error(t, err)
}
