package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/docker/client"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"quest-server/internal/models"
)

type RedisStoreSuite struct {
	suite.Suite
	ctx         context.Context
	container   *tcredis.RedisContainer
	redisClient *redis.Client
	store       *RedisStore
}

func (s *RedisStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error

	s.container, err = tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(1*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start redis container")

	host, err := s.container.Host(s.ctx)
	require.NoError(s.T(), err)
	port, err := s.container.MappedPort(s.ctx, "6379/tcp")
	require.NoError(s.T(), err)

	s.redisClient = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(s.T(), s.redisClient.Ping(s.ctx).Err())

	s.store = NewRedisStore(s.redisClient, 0, zap.NewNop())
}

func (s *RedisStoreSuite) TearDownSuite() {
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *RedisStoreSuite) SetupTest() {
	require.NoError(s.T(), s.redisClient.FlushDB(s.ctx).Err())
}

func (s *RedisStoreSuite) TestContract() {
	runStoreContract(s.T(), s.store)
}

func (s *RedisStoreSuite) TestKeyLayout() {
	require.NoError(s.T(), s.store.Save(s.ctx, walletA, sampleRecord()))
	keys, err := s.redisClient.Keys(s.ctx, "questState_*").Result()
	require.NoError(s.T(), err)
	s.Equal([]string{models.StorageKey(walletA)}, keys)
}

func (s *RedisStoreSuite) TestCorruptValue() {
	require.NoError(s.T(), s.redisClient.Set(s.ctx, models.StorageKey(walletB), "[]", 0).Err())
	_, err := s.store.Load(s.ctx, walletB)
	s.ErrorIs(err, models.ErrCorruptRecord)
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		t.Skipf("Docker client init error: %v", err)
	}
	if _, err := cli.Ping(context.Background()); err != nil {
		cli.Close()
		t.Skipf("Docker daemon is not running or accessible: %v", err)
	}
	cli.Close()

	suite.Run(t, new(RedisStoreSuite))
}
