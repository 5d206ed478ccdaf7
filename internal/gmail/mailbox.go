package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mailtriage/backend/internal/domain"
)

const (
	// DefaultUser 代表当前授权账号
	DefaultUser = "me"
	// UnreadQuery 未读邮件搜索条件
	UnreadQuery = "is:unread"
	// UnreadLabel 未读标签
	UnreadLabel = "UNREAD"

	maxPageSize = 500
)

// Mailbox 基于 Gmail API 的邮箱适配器
type Mailbox struct {
	svc  *gmailapi.Service
	user string
	log  *zap.Logger
}

// New 使用已授权的 HTTP 客户端创建邮箱适配器
//
// 参数:
//   - ctx: 上下文
//   - client: 已注入访问令牌的 HTTP 客户端
//   - user: 账号标识，空字符串时使用 "me"
//   - log: 日志记录器
//   - opts: 额外的客户端选项（测试中用于指定 endpoint）
func New(ctx context.Context, client *http.Client, user string, log *zap.Logger, opts ...option.ClientOption) (*Mailbox, error) {
	if user == "" {
		user = DefaultUser
	}
	if log == nil {
		log = zap.NewNop()
	}

	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return &Mailbox{svc: svc, user: user, log: log}, nil
}

// ListUnread 列出未读邮件，最多返回 max 条
func (m *Mailbox) ListUnread(ctx context.Context, max int64) ([]domain.MessageRef, error) {
	var refs []domain.MessageRef
	pageToken := ""

	for {
		remaining := max - int64(len(refs))
		if remaining <= 0 {
			break
		}
		if remaining > maxPageSize {
			remaining = maxPageSize
		}

		call := m.svc.Users.Messages.List(m.user).Q(UnreadQuery).MaxResults(remaining).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, wrapError("list unread messages", err)
		}

		for _, msg := range resp.Messages {
			refs = append(refs, domain.MessageRef{ID: msg.Id, ThreadID: msg.ThreadId})
		}

		pageToken = resp.NextPageToken
		if pageToken == "" || len(resp.Messages) == 0 {
			break
		}
	}

	m.log.Debug("listed unread messages", zap.Int("count", len(refs)))
	return refs, nil
}

// GetMessage 以 full 格式拉取单封邮件
func (m *Mailbox) GetMessage(ctx context.Context, id string) (*domain.InboundMessage, error) {
	msg, err := m.svc.Users.Messages.Get(m.user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, wrapError("get message "+id, err)
	}

	inbound := convertMessage(msg)
	if err := inbound.Validate(); err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return inbound, nil
}

// CreateDraft 在指定线程中创建草稿
//
// 参数:
//   - threadID: 原邮件所属线程
//   - raw: URL 安全 base64 编码的完整 RFC 2822 文档
//
// 返回值:
//   - string: 草稿 ID
func (m *Mailbox) CreateDraft(ctx context.Context, threadID, raw string) (string, error) {
	draft := &gmailapi.Draft{
		Message: &gmailapi.Message{
			Raw:      raw,
			ThreadId: threadID,
		},
	}

	created, err := m.svc.Users.Drafts.Create(m.user, draft).Context(ctx).Do()
	if err != nil {
		return "", wrapError("create draft", err)
	}
	return created.Id, nil
}

// MarkRead 移除未读标签
func (m *Mailbox) MarkRead(ctx context.Context, id string) error {
	req := &gmailapi.ModifyMessageRequest{RemoveLabelIds: []string{UnreadLabel}}
	if _, err := m.svc.Users.Messages.Modify(m.user, id, req).Context(ctx).Do(); err != nil {
		return wrapError("mark message "+id+" as read", err)
	}
	return nil
}

func convertMessage(msg *gmailapi.Message) *domain.InboundMessage {
	inbound := &domain.InboundMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Snippet:  msg.Snippet,
	}
	if msg.Payload != nil {
		part := convertPart(msg.Payload)
		inbound.Payload = &part
		inbound.Headers = part.Headers
	}
	return inbound
}

func convertPart(p *gmailapi.MessagePart) domain.MessagePart {
	part := domain.MessagePart{
		PartID:   p.PartId,
		MimeType: p.MimeType,
		Filename: p.Filename,
	}
	for _, h := range p.Headers {
		if h == nil {
			continue
		}
		part.Headers = append(part.Headers, domain.Header{Name: h.Name, Value: h.Value})
	}
	if p.Body != nil {
		part.Data = p.Body.Data
	}
	for _, child := range p.Parts {
		if child == nil {
			continue
		}
		part.Parts = append(part.Parts, convertPart(child))
	}
	return part
}

// wrapError 把 googleapi 错误折叠成一条描述性信息
func wrapError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.Code)
		}
		return fmt.Errorf("%s: gmail api error %d: %s: %w", op, apiErr.Code, msg, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
