package redis

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

// newTestRedisClient starts an in-process redis for one test. The server is
// stopped by RunT when the test ends.
func newTestRedisClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{
		Addr:       server.Addr(),
		MaxRetries: -1,
	})

	return client, server
}
