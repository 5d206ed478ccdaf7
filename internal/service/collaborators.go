package service

import (
	"context"

	"mailtriage/backend/internal/domain"
)

// Mailbox 邮箱协作方
type Mailbox interface {
	ListUnread(ctx context.Context, max int64) ([]domain.MessageRef, error)
	GetMessage(ctx context.Context, id string) (*domain.InboundMessage, error)
	CreateDraft(ctx context.Context, threadID, raw string) (string, error)
	MarkRead(ctx context.Context, id string) error
}

// FileStore 文件存储协作方
type FileStore interface {
	Search(ctx context.Context, query string) ([]domain.DriveFile, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	Export(ctx context.Context, fileID, mimeType string) ([]byte, error)
}

// Generator 语言模型协作方
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Session 一次运行期间使用的、已授权的协作方
type Session struct {
	Mailbox Mailbox
	Files   FileStore
}

// Connector 用刷新令牌建立一次运行的会话
type Connector interface {
	Connect(ctx context.Context, refreshToken string) (*Session, error)
}

// MessageView 邮件在分类和起草时使用的视图
type MessageView struct {
	From      string
	To        string
	Cc        string
	Subject   string
	Body      string
	MessageID string
}
