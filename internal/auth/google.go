package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	driveapi "google.golang.org/api/drive/v3"
	gmailapi "google.golang.org/api/gmail/v1"

	"mailtriage/backend/internal/config"
	"mailtriage/backend/internal/storage"
)

// ErrTokenExchange 刷新令牌换取访问令牌失败
var ErrTokenExchange = errors.New("Failed to get access token")

// Scopes 运行所需的授权范围
var Scopes = []string{
	gmailapi.GmailModifyScope,
	gmailapi.GmailComposeScope,
	driveapi.DriveReadonlyScope,
}

// TokenProvider 用长期刷新令牌换取访问令牌
type TokenProvider struct {
	oauth  *oauth2.Config
	store  storage.SecretStore
	key    string
	client *http.Client
	log    *zap.Logger
}

// NewTokenProvider 创建令牌提供者
//
// 参数:
//   - cfg: Google OAuth 客户端配置，TokenURL 为空时使用 Google 默认端点
//   - store: 刷新令牌所在的密钥存储，令牌轮换时写回
//   - key: 刷新令牌在存储中的键
//   - log: 日志记录器
func NewTokenProvider(cfg *config.GoogleConfig, store storage.SecretStore, key string, log *zap.Logger) *TokenProvider {
	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &TokenProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		store: store,
		key:   key,
		log:   log,
	}
}

// WithHTTPClient 指定访问令牌端点时使用的 HTTP 客户端
func (p *TokenProvider) WithHTTPClient(client *http.Client) *TokenProvider {
	p.client = client
	return p
}

// Client 换取访问令牌并返回自动附带令牌的 HTTP 客户端
//
// 换取失败返回包装了 ErrTokenExchange 的错误。
// 如果令牌端点返回了新的刷新令牌，会写回密钥存储；写回失败只记录日志。
func (p *TokenProvider) Client(ctx context.Context, refreshToken string) (*http.Client, error) {
	if p.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	}

	source := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}

	if token.RefreshToken != "" && token.RefreshToken != refreshToken && p.store != nil {
		if err := p.store.SetSecret(ctx, p.key, token.RefreshToken); err != nil {
			p.log.Warn("failed to persist rotated refresh token", zap.Error(err))
		} else {
			p.log.Info("refresh token rotated")
		}
	}

	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, source)), nil
}
