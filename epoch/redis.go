package epoch

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

var ErrNilClient = errors.New("epoch: nil redis client")

// Redis shares epochs across processes and survives restarts. Epoch keys
// never expire: an expired epoch would read as 0 again and resurrect
// entries written before the first bump.
type Redis struct {
	rdb         redis.UniversalClient
	prefix      string
	closeClient bool
}

var _ Store = (*Redis)(nil)

// NewRedis creates a Redis-backed epoch store. Keys are "<prefix>epoch:<ns>";
// prefix may be empty.
func NewRedis(client redis.UniversalClient, prefix string, closeClient bool) (*Redis, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: client, prefix: prefix, closeClient: closeClient}, nil
}

func (s *Redis) key(ns string) string { return s.prefix + "epoch:" + ns }

// Current returns the namespace epoch. A missing key is epoch 0.
func (s *Redis) Current(ctx context.Context, ns string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(ns)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis epoch parse: %w", err)
	}
	return u, nil
}

func (s *Redis) Bump(ctx context.Context, ns string) (uint64, error) {
	return s.rdb.Incr(ctx, s.key(ns)).Uint64()
}

// Close closes the client only when this store owns it.
func (s *Redis) Close(context.Context) error {
	if !s.closeClient {
		return nil
	}
	if err := s.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
