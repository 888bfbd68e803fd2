package database

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/slidecoffee/brew-service/internal/config"
)

func TestConnectRedis(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client, err := ConnectRedis(context.Background(), config.RedisConfig{Host: m.Host(), Port: m.Port()})
	require.NoError(t, err)
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := m.Get("k")
	require.NoError(t, err)
	require.Equal(t, "v", got)
	_ = client.Close()

	m.Close()
	_, err = ConnectRedis(context.Background(), config.RedisConfig{Host: m.Host(), Port: m.Port()})
	require.Error(t, err)
}

func TestConnectMongoWithRetry_InvalidURI(t *testing.T) {
	start := time.Now()
	_, err := ConnectMongoWithRetry(context.Background(), config.MongoDBConfig{URI: "not-a-mongo-uri", Timeout: time.Second}, 2, 10*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 2 attempts")
	require.Less(t, time.Since(start), 5*time.Second)
}
