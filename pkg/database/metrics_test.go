package database

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countDescs(c prometheus.Collector) int {
	ch := make(chan *prometheus.Desc, 32)
	c.Describe(ch)
	close(ch)

	n := 0
	for range ch {
		n++
	}
	return n
}

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := newPoolStatsCollector(func() *pgxpool.Stat { return nil }, "marketplace")
	assert.Equal(t, 7, countDescs(c))

	var _ prometheus.Collector = c
}

func TestRedisStatsCollector_Collect(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, client.Ping(t.Context()).Err())

	c := NewRedisStatsCollector(client, "marketplace")
	assert.Equal(t, 5, countDescs(c))
	assert.Equal(t, 5, testutil.CollectAndCount(c))
}

func TestRegisterPoolMetrics_SkipsNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	RegisterPoolMetrics(reg, nil, client, "marketplace")

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
