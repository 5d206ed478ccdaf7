package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailtriage/backend/internal/config"
)

func TestNew_MemoryStore(t *testing.T) {
	cfg := &config.Config{
		Google: config.GoogleConfig{
			OperatorAddr: "john@example.com",
			OperatorName: "John Tashiro",
			RefreshToken: "1//bootstrap",
		},
		Gemini: config.GeminiConfig{Model: "gemini-2.5-flash", BaseURL: "http://127.0.0.1:1"},
		Drive:  config.DriveConfig{PageSize: 10, MaxFileBytes: 1 << 20, ExportMime: "application/pdf", CacheTTL: time.Minute},
		Triage: config.TriageConfig{MaxMessages: 10, Workers: 1},
		Redis:  config.RedisConfig{TokenKey: "refresh_token"},
	}

	components, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer components.Close()

	token, err := components.Store.GetSecret(context.Background(), "refresh_token")
	require.NoError(t, err)
	assert.Equal(t, "1//bootstrap", token)

	assert.NotNil(t, components.Runner)
	assert.NotNil(t, components.Cache)
	assert.Nil(t, components.JWT)
	assert.Equal(t, "OK", components.Health.CheckHealth(context.Background())["secret_store"])
}
