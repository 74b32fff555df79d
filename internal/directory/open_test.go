package directory

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"outsy/internal/config"
)

func TestOpenMemory(t *testing.T) {
	svc, closeFn, err := Open(context.Background(), config.Config{DirectoryBackend: config.BackendMemory}, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &Memory{}, svc)
}

func TestOpenRedis(t *testing.T) {
	s := miniredis.RunT(t)
	svc, closeFn, err := Open(context.Background(), config.Config{
		DirectoryBackend: config.BackendRedis,
		RedisAddr:        s.Addr(),
	}, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &Redis{}, svc)
}

func TestOpenRedisUnreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	_, _, err := Open(context.Background(), config.Config{
		DirectoryBackend: config.BackendRedis,
		RedisAddr:        addr,
	}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestOpenUnknown(t *testing.T) {
	_, _, err := Open(context.Background(), config.Config{DirectoryBackend: "firestore"}, zap.NewNop().Sugar())
	assert.Error(t, err)
}
