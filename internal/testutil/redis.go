//go:build integration

package testutil

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/go-redis/redis/v8"
)

// RedisAddr returns the address of the test Redis instance (IP:port). It
// first checks IFSIM_TEST_REDIS_ADDR, then discovers the Docker container
// named ifsim-test-redis.
func RedisAddr() string {
	if addr := os.Getenv("IFSIM_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	ip := redisContainerIP()
	if ip == "" {
		return ""
	}
	return ip + ":6379"
}

func redisContainerIP() string {
	out, err := exec.Command("docker", "inspect",
		"--format", "{{range .NetworkSettings.Networks}}{{.IPAddress}}{{end}}",
		"ifsim-test-redis").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// SkipIfNoRedis skips the test when no test Redis is reachable.
func SkipIfNoRedis(t *testing.T) {
	t.Helper()

	addr := RedisAddr()
	if addr == "" {
		t.Skip("no test Redis available (set IFSIM_TEST_REDIS_ADDR or run the ifsim-test-redis container)")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("test Redis at %s not responding: %v", addr, err)
	}
}

// FlushDB flushes a specific Redis database.
func FlushDB(t *testing.T, addr string, db int) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flushing DB %d: %v", db, err)
	}
}

// ReadEntry reads a hash entry written in the TABLE|key layout.
func ReadEntry(t *testing.T, addr string, db int, table, key string) map[string]string {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	vals, err := client.HGetAll(context.Background(), table+"|"+key).Result()
	if err != nil {
		t.Fatalf("reading %s|%s: %v", table, key, err)
	}
	return vals
}
