package mailfmt

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"

	"mailtriage/backend/internal/domain"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestFindPlainText(t *testing.T) {
	t.Run("根节点即纯文本", func(t *testing.T) {
		root := &domain.MessagePart{MimeType: "text/plain", Data: b64("hello")}
		data, ok := FindPlainText(root)
		require.True(t, ok)
		assert.Equal(t, b64("hello"), data)
	})

	t.Run("先序遍历选择第一个纯文本叶子", func(t *testing.T) {
		root := &domain.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []domain.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []domain.MessagePart{
						{MimeType: "text/html", Data: b64("<p>html</p>")},
						{MimeType: "text/plain", Data: b64("nested first")},
					},
				},
				{MimeType: "text/plain", Data: b64("shallow second")},
			},
		}
		data, ok := FindPlainText(root)
		require.True(t, ok)
		assert.Equal(t, b64("nested first"), data)
	})

	t.Run("空负载的纯文本节点被跳过", func(t *testing.T) {
		root := &domain.MessagePart{
			MimeType: "text/plain",
			Parts: []domain.MessagePart{
				{MimeType: "text/plain", Data: b64("child")},
			},
		}
		data, ok := FindPlainText(root)
		require.True(t, ok)
		assert.Equal(t, b64("child"), data)
	})

	t.Run("没有纯文本节点", func(t *testing.T) {
		root := &domain.MessagePart{
			MimeType: "multipart/alternative",
			Parts:    []domain.MessagePart{{MimeType: "text/html", Data: b64("<b>x</b>")}},
		}
		_, ok := FindPlainText(root)
		assert.False(t, ok)
		assert.Equal(t, NoPlainTextBody, PlainTextBody(root))
	})

	t.Run("nil 根节点", func(t *testing.T) {
		_, ok := FindPlainText(nil)
		assert.False(t, ok)
	})
}

func TestDecodeBody(t *testing.T) {
	t.Run("带填充", func(t *testing.T) {
		data, err := DecodeBody(base64.URLEncoding.EncodeToString([]byte("Can you send the report?")))
		require.NoError(t, err)
		assert.Equal(t, "Can you send the report?", string(data))
	})

	t.Run("不带填充", func(t *testing.T) {
		data, err := DecodeBody(base64.RawURLEncoding.EncodeToString([]byte("ab")))
		require.NoError(t, err)
		assert.Equal(t, "ab", string(data))
	})

	t.Run("空负载", func(t *testing.T) {
		_, err := DecodeBody("")
		assert.ErrorIs(t, err, ErrEmptyPayload)
	})

	t.Run("非法负载", func(t *testing.T) {
		root := &domain.MessagePart{MimeType: "text/plain", Data: "!!!not-base64!!!"}
		assert.Equal(t, UndecodableBody, PlainTextBody(root))
	})
}

func TestPlainTextBodyCharset(t *testing.T) {
	encoded, err := japanese.ShiftJIS.NewEncoder().String("お疲れ様です。")
	require.NoError(t, err)

	root := &domain.MessagePart{
		MimeType: "text/plain",
		Headers:  []domain.Header{{Name: "Content-Type", Value: `text/plain; charset="Shift_JIS"`}},
		Data:     b64(encoded),
	}
	assert.Equal(t, "お疲れ様です。", PlainTextBody(root))
}

func TestBodyTextHTMLFallback(t *testing.T) {
	root := &domain.MessagePart{
		MimeType: "multipart/alternative",
		Parts:    []domain.MessagePart{{MimeType: "text/html", Data: b64("<p>Please send the <strong>report</strong></p>")}},
	}

	t.Run("关闭时不回退", func(t *testing.T) {
		assert.Equal(t, NoPlainTextBody, BodyText(root, false))
	})

	t.Run("开启时转换为 Markdown", func(t *testing.T) {
		assert.Equal(t, "Please send the **report**", BodyText(root, true))
	})

	t.Run("存在纯文本时优先纯文本", func(t *testing.T) {
		withPlain := &domain.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []domain.MessagePart{
				{MimeType: "text/html", Data: b64("<p>html</p>")},
				{MimeType: "text/plain", Data: b64("plain")},
			},
		}
		assert.Equal(t, "plain", BodyText(withPlain, true))
	})

	t.Run("空的纯文本节点不算正文", func(t *testing.T) {
		emptyPlain := &domain.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []domain.MessagePart{
				{MimeType: "text/plain"},
				{MimeType: "text/html", Data: b64("<p>html</p>")},
			},
		}
		assert.Equal(t, "html", BodyText(emptyPlain, true))
		assert.Equal(t, NoPlainTextBody, BodyText(emptyPlain, false))
	})
}
