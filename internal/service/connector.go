package service

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"mailtriage/backend/internal/auth"
	"mailtriage/backend/internal/drive"
	"mailtriage/backend/internal/gmail"
)

// GoogleConnector 用 Google OAuth 刷新令牌建立 Gmail 与 Drive 会话
type GoogleConnector struct {
	tokens    *auth.TokenProvider
	user      string
	drive     drive.Options
	log       *zap.Logger
	gmailOpts []option.ClientOption
	driveOpts []option.ClientOption
}

// NewGoogleConnector 创建 Google 会话连接器
//
// 参数:
//   - tokens: 访问令牌提供者
//   - user: Gmail 用户，空值表示 "me"
//   - driveOpts: Drive 搜索与下载参数
//   - log: 日志记录器
func NewGoogleConnector(tokens *auth.TokenProvider, user string, driveOpts drive.Options, log *zap.Logger) *GoogleConnector {
	if log == nil {
		log = zap.NewNop()
	}
	if driveOpts.Logger == nil {
		driveOpts.Logger = log
	}
	return &GoogleConnector{tokens: tokens, user: user, drive: driveOpts, log: log}
}

// WithEndpoints 覆盖 API 客户端选项，用于测试或私有代理
func (c *GoogleConnector) WithEndpoints(gmailOpts, driveOpts []option.ClientOption) *GoogleConnector {
	c.gmailOpts = gmailOpts
	c.driveOpts = driveOpts
	return c
}

// Connect 换取访问令牌并创建会话
//
// 令牌换取失败时返回包装了 auth.ErrTokenExchange 的错误，调用方视为致命错误。
func (c *GoogleConnector) Connect(ctx context.Context, refreshToken string) (*Session, error) {
	client, err := c.tokens.Client(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	mailbox, err := gmail.New(ctx, client, c.user, c.log, c.gmailOpts...)
	if err != nil {
		return nil, err
	}

	files, err := drive.New(ctx, client, c.drive, c.driveOpts...)
	if err != nil {
		return nil, err
	}

	return &Session{Mailbox: mailbox, Files: files}, nil
}
