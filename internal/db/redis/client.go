// Package redis is the Redis 8 backend: FT indexes over hashes for chunks,
// plain strings for the page cache.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/nooikko/nightreign-query/internal/db"
)

var _ db.Store = (*Store)(nil)

const defaultClientName = "nightreign"

// Config holds connection parameters.
type Config struct {
	Addrs      []string
	Username   string
	Password   string
	DB         int
	ClientName string // CLIENT SETNAME, defaults to "nightreign"
}

// Store implements db.Store on a rueidis client.
type Store struct {
	client rueidis.Client
}

// NewStore connects to Redis. The connection is lazy; use WaitForReady
// before the first command when the server may still be starting.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: no addresses configured")
	}
	name := cfg.ClientName
	if name == "" {
		name = defaultClientName
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		ClientName:   name,
		DisableCache: true,
		// FT.SEARCH replies are parsed as flat RESP2 arrays.
		AlwaysRESP2: true,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return &Store{client: client}, nil
}

// Ping sends PING.
func (s *Store) Ping(ctx context.Context) error {
	return db.Wrap(db.OpPing, "", s.do(ctx, s.b().Ping().Build()).Error())
}

// Close releases the client's connections.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady retries Ping with a doubling delay, capped at one second,
// until it succeeds or timeout passes. The last ping error is returned
// alongside the deadline.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := 50 * time.Millisecond
	for {
		err := s.Ping(ctx)
		if err == nil {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis not ready after %s: %w", timeout, errors.Join(ctx.Err(), err))
		case <-timer.C:
		}
		delay = min(delay*2, time.Second)
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr reports whether err is a server error reply whose message
// contains substr, ignoring case.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
