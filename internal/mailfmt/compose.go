package mailfmt

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"mailtriage/backend/internal/domain"
)

// ReplyPrefix 回复主题前缀，总是添加
const ReplyPrefix = "Re: "

const mimeVersionField = "MIME-Version: 1.0\r\n"

// NewBoundary 为每封草稿生成独立的 multipart 分隔符
func NewBoundary() string {
	return "mailtriage-" + uuid.NewString()
}

// Compose 把草稿组装为 RFC 5322 原始邮件
//
// 头部总是包含 To、Subject（加 "Re: " 前缀）和 MIME-Version；Cc 非空时才写入。
// 没有附件时是单段 text/plain 邮件；有附件时是 multipart/mixed，
// 依次为正文段和附件段（base64 传输编码），以结束分隔符收尾。
//
// 参数:
//   - draft: 草稿内容
//
// 返回值:
//   - []byte: 原始邮件字节
//   - error: 写入失败时返回错误
func Compose(draft domain.DraftEmail) ([]byte, error) {
	return ComposeWithBoundary(draft, NewBoundary())
}

// ComposeWithBoundary 与 Compose 相同，但使用调用方给定的分隔符
func ComposeWithBoundary(draft domain.DraftEmail, boundary string) ([]byte, error) {
	// go-message 按插入的逆序写出头部，这里从最后一个字段开始添加
	var h mail.Header
	if draft.Attachment == nil {
		h.SetContentType("text/plain", map[string]string{"charset": "UTF-8"})
	} else {
		h.SetContentType("multipart/mixed", map[string]string{"boundary": boundary})
	}
	if draft.InReplyTo != "" {
		h.Set("References", draft.InReplyTo)
		h.Set("In-Reply-To", draft.InReplyTo)
	}
	// Set 会把字段名规范化为 Mime-Version，保留原始写法
	h.AddRaw([]byte(mimeVersionField))
	h.SetSubject(ReplyPrefix + draft.Subject)
	if draft.Cc != "" {
		h.Set("Cc", draft.Cc)
	}
	h.Set("To", draft.To)

	var buf bytes.Buffer
	if draft.Attachment == nil {
		if err := writeSingle(&buf, h.Header, draft.Body); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	if err := writeMixed(&buf, h.Header, draft.Body, draft.Attachment); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeRaw 对原始邮件做 URL 安全的 base64 编码，供草稿接口提交
func EncodeRaw(raw []byte) string {
	return base64.URLEncoding.EncodeToString(raw)
}

func writeSingle(w io.Writer, h message.Header, body string) error {
	mw, err := message.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("create message writer: %w", err)
	}
	if _, err := io.WriteString(mw, body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return mw.Close()
}

func writeMixed(w io.Writer, h message.Header, body string, att *domain.Attachment) error {
	mw, err := message.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("create multipart writer: %w", err)
	}

	var textHeader message.Header
	textHeader.SetContentType("text/plain", map[string]string{"charset": "UTF-8"})
	tw, err := mw.CreatePart(textHeader)
	if err != nil {
		return fmt.Errorf("create text part: %w", err)
	}
	if _, err := io.WriteString(tw, body); err != nil {
		return fmt.Errorf("write text part: %w", err)
	}
	if err := tw.Close(); err != nil {
		return err
	}

	mimeType := att.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	var attHeader message.Header
	attHeader.SetContentType(mimeType, map[string]string{"name": att.Filename})
	attHeader.SetContentDisposition("attachment", map[string]string{"filename": att.Filename})
	attHeader.Set("Content-Transfer-Encoding", "base64")
	aw, err := mw.CreatePart(attHeader)
	if err != nil {
		return fmt.Errorf("create attachment part: %w", err)
	}
	if _, err := aw.Write(att.Content); err != nil {
		return fmt.Errorf("write attachment part: %w", err)
	}
	if err := aw.Close(); err != nil {
		return err
	}

	return mw.Close()
}
