package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateOperatorAddress(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		expected error
	}{
		{"Valid address", "john@example.com", nil},
		{"Valid address with subdomain", "john@mail.example.com", nil},
		{"Valid address with spaces around", "  john@example.com ", nil},
		{"Invalid - empty", "", ErrInvalidEmail},
		{"Invalid - no @", "johnexample.com", ErrInvalidEmail},
		{"Invalid - display name form", "John <john@example.com>", ErrInvalidEmail},
		{"Invalid - list", "a@example.com, b@example.com", ErrInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateOperatorAddress(tt.address))
		})
	}
}

func TestInboundMessageValidate(t *testing.T) {
	assert.NoError(t, (&InboundMessage{ID: "m1", ThreadID: "t1"}).Validate())
	assert.ErrorIs(t, (&InboundMessage{ThreadID: "t1"}).Validate(), ErrMissingMessageID)
	assert.ErrorIs(t, (&InboundMessage{ID: "m1", ThreadID: " "}).Validate(), ErrMissingThreadID)
}

func TestDraftEmailValidate(t *testing.T) {
	t.Run("普通草稿通过", func(t *testing.T) {
		d := &DraftEmail{ThreadID: "t1", Body: "Hi"}
		assert.NoError(t, d.Validate())
	})

	t.Run("空正文被拒绝", func(t *testing.T) {
		d := &DraftEmail{ThreadID: "t1", Body: "  \n"}
		assert.ErrorIs(t, d.Validate(), ErrEmptyDraftBody)
	})

	t.Run("附件缺少内容被拒绝", func(t *testing.T) {
		d := &DraftEmail{ThreadID: "t1", Body: "Hi", Attachment: &Attachment{Filename: "a.pdf"}}
		assert.ErrorIs(t, d.Validate(), ErrEmptyAttachment)
	})

	t.Run("附件缺少文件名被拒绝", func(t *testing.T) {
		d := &DraftEmail{ThreadID: "t1", Body: "Hi", Attachment: &Attachment{Content: []byte("x")}}
		assert.ErrorIs(t, d.Validate(), ErrMissingFilename)
	})
}

func TestHeaderLookup(t *testing.T) {
	m := &InboundMessage{
		ID:       "m1",
		ThreadID: "t1",
		Headers: []Header{
			{Name: "from", Value: "lower@example.com"},
			{Name: "From", Value: "first@example.com"},
			{Name: "From", Value: "second@example.com"},
		},
	}

	t.Run("精确匹配且首条优先", func(t *testing.T) {
		assert.Equal(t, "first@example.com", m.From())
	})

	t.Run("缺失头部使用默认值", func(t *testing.T) {
		assert.Equal(t, DefaultSubject, m.Subject())
		assert.Equal(t, "", m.Cc())
		assert.Equal(t, "", m.To())
	})

	t.Run("无任何头部时发件人默认值", func(t *testing.T) {
		empty := &InboundMessage{}
		assert.Equal(t, DefaultSender, empty.From())
	})
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected Verdict
	}{
		{"YES", "YES", VerdictNeedsReply},
		{"lowercase yes with newline", "yes\n", VerdictNeedsReply},
		{"NO with spaces", "  No  ", VerdictNoReplyNeeded},
		{"file request", "IS_FILE_REQUEST", VerdictNeedsReplyWithFile},
		{"file request mixed case", "is_file_request\r\n", VerdictNeedsReplyWithFile},
		{"sentence is unrecognized", "YES, it needs a reply", VerdictUnrecognized},
		{"empty", "", VerdictUnrecognized},
		{"maybe", "MAYBE", VerdictUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ParseVerdict(tt.raw)
			assert.Equal(t, tt.expected, c.Verdict)
			assert.Equal(t, tt.raw, c.Raw)
			assert.Equal(t, tt.expected != VerdictUnrecognized, c.Recognized())
		})
	}
}

func TestDriveFileIsGoogleNative(t *testing.T) {
	assert.True(t, DriveFile{MimeType: "application/vnd.google-apps.spreadsheet"}.IsGoogleNative())
	assert.False(t, DriveFile{MimeType: "application/pdf"}.IsGoogleNative())
}
