package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailtriage/backend/internal/config"
	"mailtriage/backend/internal/storage/memory"
)

func tokenServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "stored-token", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenProvider_Client(t *testing.T) {
	ctx := context.Background()

	t.Run("换取成功并附带访问令牌", func(t *testing.T) {
		srv := tokenServer(t, http.StatusOK, `{"access_token":"access-1","token_type":"Bearer","expires_in":3600}`)
		store := memory.NewStore(map[string]string{"refresh_token": "stored-token"})
		p := NewTokenProvider(&config.GoogleConfig{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL}, store, "refresh_token", zap.NewNop())

		client, err := p.Client(ctx, "stored-token")
		require.NoError(t, err)

		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		}))
		defer api.Close()
		resp, err := client.Get(api.URL)
		require.NoError(t, err)
		resp.Body.Close()

		value, err := store.GetSecret(ctx, "refresh_token")
		require.NoError(t, err)
		assert.Equal(t, "stored-token", value)
	})

	t.Run("轮换的刷新令牌写回存储", func(t *testing.T) {
		srv := tokenServer(t, http.StatusOK, `{"access_token":"access-2","token_type":"Bearer","expires_in":3600,"refresh_token":"rotated-token"}`)
		store := memory.NewStore(map[string]string{"refresh_token": "stored-token"})
		p := NewTokenProvider(&config.GoogleConfig{TokenURL: srv.URL}, store, "refresh_token", nil)

		_, err := p.Client(ctx, "stored-token")
		require.NoError(t, err)

		value, err := store.GetSecret(ctx, "refresh_token")
		require.NoError(t, err)
		assert.Equal(t, "rotated-token", value)
	})

	t.Run("令牌被吊销时返回换取错误", func(t *testing.T) {
		srv := tokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`)
		p := NewTokenProvider(&config.GoogleConfig{TokenURL: srv.URL}, nil, "refresh_token", nil).WithHTTPClient(srv.Client())

		_, err := p.Client(ctx, "stored-token")
		assert.ErrorIs(t, err, ErrTokenExchange)
		assert.Contains(t, err.Error(), "invalid_grant")
	})
}
