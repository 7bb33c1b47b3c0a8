package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Transfer list cache keys
const (
	TransferListPrefix = "transfers:list:"
	transferPattern    = "transfers:*"
)

var client *redis.Client

// Options configures the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Init initializes the Redis connection. On failure the package stays
// disabled and every call below is a no-op.
func Init(opts Options) error {
	client = redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// Close the failed client and set to nil for graceful degradation
		client.Close()
		client = nil
		return err
	}
	return nil
}

// GetClient returns the Redis client, nil when caching is disabled
func GetClient() *redis.Client {
	return client
}

// Close releases the connection
func Close() {
	if client != nil {
		client.Close()
		client = nil
	}
}

// TransferListKey builds the cache key of one list+stats response.
// The caller id is part of the key because the mine and approvals tabs
// depend on who is asking.
func TransferListKey(projectID *int, userID int, tab, status, search string) string {
	project := "all"
	if projectID != nil {
		project = fmt.Sprintf("%d", *projectID)
	}
	return TransferListPrefix + strings.Join([]string{
		project, fmt.Sprintf("%d", userID), tab, status, strings.ToLower(strings.TrimSpace(search)),
	}, ":")
}

// GetCached returns cached data for a key
func GetCached(ctx context.Context, key string) ([]byte, bool) {
	if client == nil {
		return nil, false
	}
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetCached stores data with a TTL
func SetCached(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if client == nil {
		return
	}
	client.Set(ctx, key, data, ttl)
}

// InvalidatePattern removes all keys matching a glob pattern
func InvalidatePattern(ctx context.Context, pattern string) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, pattern, 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

// InvalidateTransferCaches drops every cached transfer list. Called after
// any committed transfer mutation.
func InvalidateTransferCaches(ctx context.Context) {
	InvalidatePattern(ctx, transferPattern)
}
