package domain

import (
	"errors"
	"net/mail"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrEmailTooLong     = errors.New("email address too long")
	ErrMissingMessageID = errors.New("message id is empty")
	ErrMissingThreadID  = errors.New("thread id is empty")
	ErrEmptyDraftBody   = errors.New("draft body is empty")
	ErrEmptyAttachment  = errors.New("attachment has no content")
	ErrMissingFilename  = errors.New("attachment filename is empty")
)

// MaxEmailLength RFC 5321 邮箱地址最大长度
const MaxEmailLength = 254

// ValidateOperatorAddress 验证操作者（机器人自身）邮箱地址
//
// 该地址用于从回复收件人中剔除自身，必须是单个裸地址。
//
// 参数:
//   - address: 邮箱地址，如 "john@example.com"
//
// 返回值:
//   - error: 格式无效时返回错误
func ValidateOperatorAddress(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return ErrInvalidEmail
	}
	if len(address) > MaxEmailLength {
		return ErrEmailTooLong
	}

	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return ErrInvalidEmail
	}
	// 不接受 "Name <addr>" 形式
	if parsed.Address != address {
		return ErrInvalidEmail
	}
	return nil
}

// Validate 验证拉取到的邮件满足 id/threadId 非空的约束
func (m *InboundMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrMissingMessageID
	}
	if strings.TrimSpace(m.ThreadID) == "" {
		return ErrMissingThreadID
	}
	return nil
}

// Validate 验证草稿在提交前的基本约束
func (d *DraftEmail) Validate() error {
	if strings.TrimSpace(d.ThreadID) == "" {
		return ErrMissingThreadID
	}
	if strings.TrimSpace(d.Body) == "" {
		return ErrEmptyDraftBody
	}
	if d.Attachment != nil {
		if strings.TrimSpace(d.Attachment.Filename) == "" {
			return ErrMissingFilename
		}
		if len(d.Attachment.Content) == 0 {
			return ErrEmptyAttachment
		}
	}
	return nil
}
