package billing

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the Redis-backed store.
type RedisConfig struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"` // format "redis://:password@host:6379/0"
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"paywall:sub:"`
}

var (
	errFailedToParseRedisURL = errors.New("billing: failed to parse redis connection url")
	errRedisNotReady         = errors.New("billing: redis is not ready")
)

// ConnectRedis establishes a Redis connection, retrying per the config.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(errFailedToParseRedisURL, err)
	}

	for range cfg.RetryAttempts {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(errRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	return nil, errRedisNotReady
}

// Hash field names. One hash per user keeps HSET an atomic partial update,
// which is exactly the patch contract Apply needs.
const (
	fieldPaid              = "paid"
	fieldStatus            = "status"
	fieldProviderStatus    = "provider_status"
	fieldProviderCustomer  = "provider_customer_id"
	fieldProviderSub       = "provider_subscription_id"
	fieldCancelAtPeriodEnd = "cancel_at_period_end"
	fieldCurrentPeriodEnd  = "current_period_end"
	fieldUpdatedAt         = "updated_at"
)

// RedisStore persists subscription records as one Redis hash per user.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

// NewRedisStore returns a Store backed by the given Redis client.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if client == nil {
		panic("billing: redis client is required")
	}
	if keyPrefix == "" {
		keyPrefix = "paywall:sub:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *RedisStore) key(userID string) string {
	return s.keyPrefix + userID
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	fields, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrRecordNotFound
	}

	rec := &Record{
		UserID:                 userID,
		Paid:                   fields[fieldPaid] == "1",
		Status:                 Status(fields[fieldStatus]),
		ProviderStatus:         fields[fieldProviderStatus],
		ProviderCustomerID:     fields[fieldProviderCustomer],
		ProviderSubscriptionID: fields[fieldProviderSub],
		CancelAtPeriodEnd:      fields[fieldCancelAtPeriodEnd] == "1",
	}
	if rec.Status == "" {
		rec.Status = StatusInactive
	}
	if v := fields[fieldCurrentPeriodEnd]; v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			rec.CurrentPeriodEnd = n
		}
	}
	if v := fields[fieldUpdatedAt]; v != "" {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			rec.UpdatedAt = ts
		}
	}

	return rec, nil
}

func (s *RedisStore) Apply(ctx context.Context, userID string, patch Patch) error {
	if userID == "" {
		return ErrMissingUserID
	}

	values := make([]any, 0, 16)
	if patch.Paid != nil {
		values = append(values, fieldPaid, boolField(*patch.Paid))
	}
	if patch.Status != nil {
		values = append(values, fieldStatus, string(*patch.Status))
	}
	if patch.ProviderStatus != nil {
		values = append(values, fieldProviderStatus, *patch.ProviderStatus)
	}
	if patch.ProviderCustomerID != nil {
		values = append(values, fieldProviderCustomer, *patch.ProviderCustomerID)
	}
	if patch.ProviderSubscriptionID != nil {
		values = append(values, fieldProviderSub, *patch.ProviderSubscriptionID)
	}
	if patch.CancelAtPeriodEnd != nil {
		values = append(values, fieldCancelAtPeriodEnd, boolField(*patch.CancelAtPeriodEnd))
	}
	if patch.CurrentPeriodEnd != nil {
		values = append(values, fieldCurrentPeriodEnd, strconv.FormatInt(*patch.CurrentPeriodEnd, 10))
	}
	values = append(values, fieldUpdatedAt, s.now().Format(time.RFC3339Nano))

	if err := s.client.HSet(ctx, s.key(userID), values...).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// Ping reports store reachability for readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
