package service

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/stretchr/testify/mock"

	"mailtriage/backend/internal/domain"
)

// MockMailbox 模拟邮箱
type MockMailbox struct {
	mock.Mock
}

func (m *MockMailbox) ListUnread(ctx context.Context, max int64) ([]domain.MessageRef, error) {
	args := m.Called(ctx, max)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MessageRef), args.Error(1)
}

func (m *MockMailbox) GetMessage(ctx context.Context, id string) (*domain.InboundMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InboundMessage), args.Error(1)
}

func (m *MockMailbox) CreateDraft(ctx context.Context, threadID, raw string) (string, error) {
	args := m.Called(ctx, threadID, raw)
	return args.String(0), args.Error(1)
}

func (m *MockMailbox) MarkRead(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockFileStore 模拟文件存储
type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) Search(ctx context.Context, query string) ([]domain.DriveFile, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DriveFile), args.Error(1)
}

func (m *MockFileStore) Download(ctx context.Context, fileID string) ([]byte, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockFileStore) Export(ctx context.Context, fileID, mimeType string) ([]byte, error) {
	args := m.Called(ctx, fileID, mimeType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockGenerator 模拟语言模型
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// 按提示词模板区分模型调用
var (
	classifyPrompt = mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Expected output: YES, NO, or IS_FILE_REQUEST")
	})
	draftPrompt = mock.MatchedBy(func(p string) bool {
		return strings.HasSuffix(strings.TrimSpace(p), "EMAIL DRAFT")
	})
	keywordsPrompt = mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "comma-separated list of keywords")
	})
)

// subjectIs 匹配包含指定主题的提示词
func subjectIs(subject string) interface{} {
	return mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Subject: "+subject+"\n")
	})
}

// newMessage 构造一封带纯文本正文的收件
func newMessage(id, from, to, cc, subject, body string) *domain.InboundMessage {
	headers := []domain.Header{
		{Name: "From", Value: from},
		{Name: "To", Value: to},
		{Name: "Subject", Value: subject},
		{Name: "Message-ID", Value: "<" + id + "@mail.example.com>"},
	}
	if cc != "" {
		headers = append(headers, domain.Header{Name: "Cc", Value: cc})
	}
	return &domain.InboundMessage{
		ID:       id,
		ThreadID: "thread-" + id,
		Headers:  headers,
		Payload: &domain.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []domain.MessagePart{
				{MimeType: "text/html", Data: base64.URLEncoding.EncodeToString([]byte("<p>" + body + "</p>"))},
				{MimeType: "text/plain", Data: base64.URLEncoding.EncodeToString([]byte(body))},
			},
		},
	}
}

// decodeDraft 解码传给 CreateDraft 的 raw 参数
func decodeDraft(raw string) string {
	data, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return ""
	}
	return string(data)
}
