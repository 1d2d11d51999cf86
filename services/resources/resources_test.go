package resources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dukalink-payment-api/ratelimit"
	"dukalink-payment-api/services/charge/kwelipay"
	"dukalink-payment-api/types"
)

type staticTokens struct{}

func (staticTokens) Token(ctx context.Context) (string, error) { return "tok_test", nil }

func testService(t *testing.T, handler http.Handler) (*Service, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	gate := ratelimit.NewRateGate(nil, ratelimit.Config{Disabled: true})
	client := kwelipay.NewClient("sandbox", staticTokens{}, kwelipay.NewRetryPolicy(1, time.Millisecond), gate)
	client.SetBaseURL(server.URL)

	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	return NewService(client, cache), &calls
}

func bankDirectory(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "success",
		"data": []map[string]string{
			{"code": "CRDB", "name": "CRDB Bank", "country": "TZ"},
			{"code": "NMB", "name": "NMB Bank", "country": "TZ"},
		},
	})
}

func TestBanksAreCached(t *testing.T) {
	svc, calls := testService(t, http.HandlerFunc(bankDirectory))
	ctx := context.Background()

	banks, err := svc.Banks(ctx, "TZ")
	require.NoError(t, err)
	require.Len(t, banks, 2)
	assert.Equal(t, "CRDB", banks[0].Code)

	// Second read is served from the cache.
	banks, err = svc.Banks(ctx, "TZ")
	require.NoError(t, err)
	require.Len(t, banks, 2)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBanksCacheIsPerCountry(t *testing.T) {
	svc, calls := testService(t, http.HandlerFunc(bankDirectory))
	ctx := context.Background()

	_, err := svc.Banks(ctx, "TZ")
	require.NoError(t, err)
	_, err = svc.Banks(ctx, "KE")
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestMobileNetworks(t *testing.T) {
	svc, calls := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"data": []map[string]string{
				{"code": "MPESA", "name": "M-Pesa", "country_code": "TZ"},
			},
		})
	}))
	ctx := context.Background()

	networks, err := svc.MobileNetworks(ctx, "TZ")
	require.NoError(t, err)
	require.Len(t, networks, 1)
	assert.Equal(t, "MPESA", networks[0].Code)

	_, err = svc.MobileNetworks(ctx, "TZ")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCacheFailureFallsThroughToAPI(t *testing.T) {
	svc, calls := testService(t, http.HandlerFunc(bankDirectory))
	svc.cache = nil

	banks, err := svc.Banks(context.Background(), "TZ")
	require.NoError(t, err)
	require.Len(t, banks, 2)

	// Without a cache every read goes to the API.
	_, err = svc.Banks(context.Background(), "TZ")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearchBanksIsNotImplemented(t *testing.T) {
	svc, _ := testService(t, http.HandlerFunc(bankDirectory))

	_, err := svc.SearchBanks(context.Background(), "CRDB")
	assert.Equal(t, types.ErrNotImplemented, err)
}
