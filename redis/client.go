package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	jsonpatch "github.com/evanphx/json-patch"
	"github.com/go-redis/redis/v8"
	"github.com/kelseyhightower/envconfig"
)

type DB int
type ReleaseLock func() error

type Client struct {
	client         redis.UniversalClient
	lockExpiration time.Duration
	lockRetries    int
}

type Config struct {
	LockExpirationSeconds   int     `envconfig:"MDL_COMN_REDIS_LOCK_EXPIRATION" default:"3"`
	LockRetries             int     `envconfig:"MDL_COMN_REDIS_LOCK_RETRIES" default:"20"`
	Host                    string  `envconfig:"MDL_COMN_REDIS_HOST" required:"true"`
	Port                    string  `envconfig:"MDL_COMN_REDIS_PORT" required:"true"`
	HASentinelPort          string  `envconfig:"MDL_COMN_REDIS_HA_SENTINEL_PORT" default:"26379"`
	HASentinelMasterName    string  `envconfig:"MDL_COMN_REDIS_HA_MASTER_NAME" default:"mymaster"`
	Password                string  `envconfig:"MDL_COMN_REDIS_AUTH_PASSWORD" default:"0"`
	AuthRequired            bool    `envconfig:"MDL_COMN_REDIS_AUTH_REQUIRED" default:"false"`
	HAMode                  bool    `envconfig:"MDL_COMN_REDIS_HA_MODE" default:"false"`
	HASentinelSocketTimeout float32 `envconfig:"MDL_COMN_REDIS_SOCKET_TIMEOUT" default:"0.5"`
}

func NewClient(db DB) (Client, error) {
	cfg, err := readEnvironment()
	if err != nil {
		return Client{}, err
	}
	var client redis.UniversalClient
	if cfg.HAMode {
		client = newFailoverClient(cfg, db)
	} else {
		client = newClient(cfg, db)
	}
	return Client{
		client:         client,
		lockExpiration: time.Duration(cfg.LockExpirationSeconds) * time.Second,
		lockRetries:    cfg.LockRetries,
	}, nil
}

func newFailoverClient(cfg *Config, db DB) *redis.ClusterClient {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.HASentinelPort)
	timeout := time.Duration(float64(cfg.HASentinelSocketTimeout) * float64(time.Second))
	options := redis.FailoverOptions{
		SentinelAddrs: []string{addr},
		ReadTimeout:   timeout,
		WriteTimeout:  timeout,
		MaxRetries:    6,
		DB:            int(db),
		MasterName:    cfg.HASentinelMasterName,
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewFailoverClusterClient(&options)
}

func newClient(cfg *Config, db DB) *redis.Client {
	options := redis.Options{
		Addr:       fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		MaxRetries: 6,
		DB:         int(db),
	}
	if cfg.AuthRequired {
		options.Password = cfg.Password
	}
	return redis.NewClient(&options)
}

// GetRaw returns the JSON document stored at redisKey.
func (client *Client) GetRaw(ctx context.Context, redisKey string) ([]byte, error) {
	return client.client.Get(ctx, redisKey).Bytes()
}

func (client *Client) SaveRaw(ctx context.Context, redisKey string, raw []byte) error {
	return client.client.Set(ctx, redisKey, raw, 0).Err()
}

// GetDocument decodes the document at redisKey into doc. Fields doc does not
// declare are ignored.
func (client *Client) GetDocument(ctx context.Context, redisKey string, doc interface{}) error {
	raw, err := client.GetRaw(ctx, redisKey)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(raw, doc); err != nil {
		return fmt.Errorf("document %q: %w", redisKey, err)
	}
	return nil
}

// Patch reads redisKey into doc and runs update on it. The returned document
// is the stored one with only the fields update changed merged in.
func (client *Client) Patch(ctx context.Context, redisKey string, doc interface{}, update func()) ([]byte, error) {
	raw, err := client.GetRaw(ctx, redisKey)
	if err != nil {
		return nil, err
	}
	merged, err := ApplyUpdate(raw, doc, update)
	if err != nil {
		return nil, fmt.Errorf("document %q: %w", redisKey, err)
	}
	return merged, nil
}

// UpdateDocument patches redisKey while holding its lock.
func (client *Client) UpdateDocument(ctx context.Context, redisKey string, doc interface{}, update func()) (err error) {
	releaseLock, err := client.Lock(ctx, redisKey)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := releaseLock(); err == nil {
			err = releaseErr
		}
	}()

	merged, err := client.Patch(ctx, redisKey, doc, update)
	if err != nil {
		return err
	}
	return client.SaveRaw(ctx, redisKey, merged)
}

// SaveAll writes every document concurrently and returns the first error.
func (client *Client) SaveAll(ctx context.Context, docs map[string][]byte) error {
	errChan := make(chan error, len(docs))
	var wg sync.WaitGroup
	wg.Add(len(docs))
	for key, raw := range docs {
		go func(key string, raw []byte) {
			defer wg.Done()
			errChan <- client.SaveRaw(ctx, key, raw)
		}(key, raw)
	}
	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return err
		}
	}
	return nil
}

func (client *Client) Lock(ctx context.Context, redisKey string) (ReleaseLock, error) {
	lockCl := redislock.New(client.client)
	strategy := redislock.LimitRetry(redislock.LinearBackoff(time.Second), client.lockRetries)
	lockKey := fmt.Sprintf("lock:%s", redisKey)
	lock, err := lockCl.Obtain(ctx, lockKey, client.lockExpiration, &redislock.Options{RetryStrategy: strategy})
	if err != nil {
		return nil, fmt.Errorf("lock %q: %w", lockKey, err)
	}
	return func() error {
		return lock.Release(ctx)
	}, nil
}

func (client *Client) Close() error {
	return client.client.Close()
}

// ApplyUpdate decodes raw into doc, runs update and merges the difference
// back into raw as a JSON merge patch.
func ApplyUpdate(raw []byte, doc interface{}, update func()) ([]byte, error) {
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, err
	}
	before, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	update()
	after, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	patch, err := jsonpatch.CreateMergePatch(before, after)
	if err != nil {
		return nil, err
	}
	return jsonpatch.MergePatch(raw, patch)
}

func readEnvironment() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
