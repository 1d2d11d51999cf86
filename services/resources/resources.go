package resources

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "time"

    "github.com/go-redis/redis/v8"

    "dukalink-payment-api/models"
    "dukalink-payment-api/services/charge/kwelipay"
    "dukalink-payment-api/types"
)

// CacheTTL bounds how long static reference data (bank and mobile network
// directories) is served from redis before being refetched.
const CacheTTL = 12 * time.Hour

// Service caches Kwelipay's static reference directories. A cache miss or a
// redis failure falls through to the API; cache write failures are logged,
// never fatal.
type Service struct {
    client *kwelipay.Client
    cache  *redis.Client
}

func NewService(client *kwelipay.Client, cache *redis.Client) *Service {
    return &Service{client: client, cache: cache}
}

// Banks returns the bank directory for a country, cache-aside.
func (s *Service) Banks(ctx context.Context, country string) ([]models.Bank, error) {
    key := "ref:banks:" + country

    var banks []models.Bank
    if s.readCached(ctx, key, &banks) {
        return banks, nil
    }

    banks, err := s.client.ListBanks(ctx, country)
    if err != nil {
        return nil, fmt.Errorf("failed to fetch bank list: %w", err)
    }

    s.writeCached(ctx, key, banks)
    return banks, nil
}

// MobileNetworks returns the supported mobile-money networks for a country,
// cache-aside.
func (s *Service) MobileNetworks(ctx context.Context, country string) ([]models.MobileNetwork, error) {
    key := "ref:mobile_networks:" + country

    var networks []models.MobileNetwork
    if s.readCached(ctx, key, &networks) {
        return networks, nil
    }

    networks, err := s.client.ListMobileNetworks(ctx, country)
    if err != nil {
        return nil, fmt.Errorf("failed to fetch mobile network list: %w", err)
    }

    s.writeCached(ctx, key, networks)
    return networks, nil
}

// SearchBanks is deliberately unsupported: Kwelipay exposes no search
// endpoint for reference data, so this integration does not fake one.
func (s *Service) SearchBanks(ctx context.Context, query string) ([]models.Bank, error) {
    return nil, types.ErrNotImplemented
}

func (s *Service) readCached(ctx context.Context, key string, out interface{}) bool {
    if s.cache == nil {
        return false
    }

    cached, err := s.cache.Get(ctx, key).Bytes()
    if err == redis.Nil {
        return false
    }
    if err != nil {
        log.Printf("Reference cache read failed for %s: %v", key, err)
        return false
    }

    if err := json.Unmarshal(cached, out); err != nil {
        log.Printf("Reference cache entry %s is corrupt, refetching: %v", key, err)
        return false
    }
    return true
}

func (s *Service) writeCached(ctx context.Context, key string, value interface{}) {
    if s.cache == nil {
        return
    }

    data, err := json.Marshal(value)
    if err != nil {
        log.Printf("Failed to marshal reference data for %s: %v", key, err)
        return
    }

    if err := s.cache.Set(ctx, key, data, CacheTTL).Err(); err != nil {
        log.Printf("Reference cache write failed for %s: %v", key, err)
    }
}
