package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soralab/paywall/pkg/config"
)

type serverTestConfig struct {
	Host string `env:"LOADER_TEST_HOST" envDefault:"localhost"`
	Port int    `env:"LOADER_TEST_PORT" envDefault:"8080"`
}

type requiredTestConfig struct {
	Secret string `env:"LOADER_TEST_SECRET,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		var cfg serverTestConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 8080, cfg.Port)
	})

	t.Run("cached on second load", func(t *testing.T) {
		var first serverTestConfig
		require.NoError(t, config.Load(&first))

		// Changing the environment after the first load must not leak into
		// the cached value.
		t.Setenv("LOADER_TEST_PORT", "9999")

		var second serverTestConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, first.Port, second.Port)
	})

	t.Run("missing required variable fails", func(t *testing.T) {
		var cfg requiredTestConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer rejected", func(t *testing.T) {
		err := config.Load[serverTestConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})
}
