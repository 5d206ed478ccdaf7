package mailfmt

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailtriage/backend/internal/domain"
)

func decodeRaw(t *testing.T, encoded string) []byte {
	t.Helper()
	raw, err := base64.URLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	return raw
}

func TestComposeWithoutAttachment(t *testing.T) {
	draft := domain.DraftEmail{
		ThreadID: "t1",
		To:       "emika@example.com",
		Subject:  "Attendance Report",
		Body:     "Hi Emika,\n\nI'll send it shortly.\n\nJohn",
	}

	raw, err := Compose(draft)
	require.NoError(t, err)

	e, err := message.Read(bytes.NewReader(decodeRaw(t, EncodeRaw(raw))))
	require.NoError(t, err)

	h := mail.Header{Header: e.Header}
	subject, err := h.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Re: Attendance Report", subject)
	assert.Equal(t, "emika@example.com", e.Header.Get("To"))
	assert.Equal(t, "1.0", e.Header.Get("MIME-Version"))
	assert.Empty(t, e.Header.Get("Cc"), "empty Cc must not be emitted")

	mediaType, params, err := e.Header.ContentType()
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mediaType)
	assert.Equal(t, "UTF-8", params["charset"])
	assert.Nil(t, e.MultipartReader())

	body, err := io.ReadAll(e.Body)
	require.NoError(t, err)
	assert.Equal(t, draft.Body, string(body))
}

func TestComposeCcAndThreading(t *testing.T) {
	raw, err := Compose(domain.DraftEmail{
		ThreadID:  "t1",
		To:        "a@example.com",
		Cc:        "c@example.com",
		Subject:   "明日の予定の件",
		Body:      "坂本さん",
		InReplyTo: "<abc@mail.example.com>",
	})
	require.NoError(t, err)

	e, err := message.Read(bytes.NewReader(raw))
	require.NoError(t, err)

	h := mail.Header{Header: e.Header}
	subject, err := h.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Re: 明日の予定の件", subject)
	assert.Equal(t, "c@example.com", e.Header.Get("Cc"))
	assert.Equal(t, "<abc@mail.example.com>", e.Header.Get("In-Reply-To"))
	assert.Equal(t, "<abc@mail.example.com>", e.Header.Get("References"))

	t.Run("头部按固定顺序写出并保留 MIME-Version 写法", func(t *testing.T) {
		head := string(raw[:bytes.Index(raw, []byte("\r\n\r\n"))+2])
		assert.True(t, strings.HasPrefix(head, "To: a@example.com\r\n"))
		assert.Contains(t, head, "\r\nMIME-Version: 1.0\r\n")
		assert.NotContains(t, head, "Mime-Version")

		order := []string{"To: ", "Cc: ", "Subject: ", "MIME-Version: ", "In-Reply-To: ", "References: ", "Content-Type: "}
		last := -1
		for _, name := range order {
			idx := strings.Index(head, name)
			require.GreaterOrEqual(t, idx, 0, name)
			assert.Greater(t, idx, last, name)
			last = idx
		}
	})
}

func TestComposeWithAttachment(t *testing.T) {
	content := []byte{0x25, 0x50, 0x44, 0x46, 0x2d, 0x00, 0xff, 0x10}
	draft := domain.DraftEmail{
		ThreadID: "t1",
		To:       "emika@example.com",
		Subject:  "Attendance Report",
		Body:     "Please find the attendance report attached.",
		Attachment: &domain.Attachment{
			Filename: "Attendance Report.pdf",
			MimeType: "application/pdf",
			Content:  content,
		},
	}

	raw, err := ComposeWithBoundary(draft, "fixed-boundary-for-test")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "--fixed-boundary-for-test\r\n")
	assert.Contains(t, string(raw), "--fixed-boundary-for-test--")

	mr, err := mail.CreateReader(bytes.NewReader(decodeRaw(t, EncodeRaw(raw))))
	require.NoError(t, err)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Re: Attendance Report", subject)

	mediaType, params, err := mr.Header.ContentType()
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)
	assert.Equal(t, "fixed-boundary-for-test", params["boundary"])

	t.Run("第一段是正文", func(t *testing.T) {
		p, err := mr.NextPart()
		require.NoError(t, err)
		inline, ok := p.Header.(*mail.InlineHeader)
		require.True(t, ok)
		ct, ctParams, err := inline.ContentType()
		require.NoError(t, err)
		assert.Equal(t, "text/plain", ct)
		assert.Equal(t, "UTF-8", ctParams["charset"])
		body, err := io.ReadAll(p.Body)
		require.NoError(t, err)
		assert.Equal(t, draft.Body, string(body))
	})

	t.Run("第二段是附件且内容可还原", func(t *testing.T) {
		p, err := mr.NextPart()
		require.NoError(t, err)
		att, ok := p.Header.(*mail.AttachmentHeader)
		require.True(t, ok)
		name, err := att.Filename()
		require.NoError(t, err)
		assert.Equal(t, "Attendance Report.pdf", name)
		ct, ctParams, err := att.ContentType()
		require.NoError(t, err)
		assert.Equal(t, "application/pdf", ct)
		assert.Equal(t, "Attendance Report.pdf", ctParams["name"])
		assert.True(t, strings.EqualFold("base64", att.Get("Content-Transfer-Encoding")))
		data, err := io.ReadAll(p.Body)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("没有第三段", func(t *testing.T) {
		_, err := mr.NextPart()
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestComposeBoundaryPerMessage(t *testing.T) {
	draft := domain.DraftEmail{
		ThreadID:   "t1",
		To:         "a@example.com",
		Subject:    "s",
		Body:       "b",
		Attachment: &domain.Attachment{Filename: "a.txt", MimeType: "text/plain", Content: []byte("x")},
	}

	first, err := Compose(draft)
	require.NoError(t, err)
	second, err := Compose(draft)
	require.NoError(t, err)

	boundaryOf := func(raw []byte) string {
		e, err := message.Read(bytes.NewReader(raw))
		require.NoError(t, err)
		_, params, err := e.Header.ContentType()
		require.NoError(t, err)
		return params["boundary"]
	}

	b1, b2 := boundaryOf(first), boundaryOf(second)
	assert.True(t, strings.HasPrefix(b1, "mailtriage-"))
	assert.NotEqual(t, b1, b2)
}
