package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railmadad/complaint-api/pkg/config"
)

func TestPingCheckNilClient(t *testing.T) {
	err := PingCheck(nil)(context.Background())
	assert.Error(t, err)
}

func TestNewRedisUnreachable(t *testing.T) {
	client, err := NewRedis(config.RedisConfig{Host: "127.0.0.1", Port: 1})
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
