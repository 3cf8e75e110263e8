package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMemory(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"1024M", 1 << 30},
		{"4G", 4 << 30},
		{"512k", 512 << 10},
		{"2048", 2048},
		{"-1", 0},
		{"0", 0},
		{"", 0},
		{" 256M ", 256 << 20},
	}
	for _, tc := range cases {
		got, err := ParseMemory(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}

	_, err := ParseMemory("lots")
	assert.Error(t, err)
}

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	c := Default()
	c.TimeThreshold = 1.0
	assert.Error(t, c.Validate())

	c = Default()
	c.MemoryThreshold = 0
	assert.Error(t, c.Validate())

	c = Default()
	c.MaxBatchSize = 0
	assert.Error(t, c.Validate())

	c = Default()
	c.UnlimitedMemoryLimit = 0
	assert.Error(t, c.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MAX_BATCH_SIZE", "250")
	t.Setenv("MEMORY_LIMIT", "512M")
	t.Setenv("TIME_LIMIT", "600")
	t.Setenv("TEST_MODE", "1")
	t.Setenv("SEND_RATE_PER_SECOND", "12.5")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 250, c.MaxBatchSize)
	assert.Equal(t, uint64(512<<20), c.MemoryLimit)
	assert.Equal(t, 600*time.Second, c.TimeLimit)
	assert.True(t, c.TestMode)
	assert.Equal(t, 12.5, c.SendRatePerSecond)
	assert.Equal(t, 10, c.MaxRetryAttempts, "untouched settings keep their defaults")
}
