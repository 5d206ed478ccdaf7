package security

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"mailtriage/backend/internal/domain"
)

// ErrAttachmentRejected 附件未通过安全检查
var ErrAttachmentRejected = errors.New("attachment rejected")

// AttachmentSecurity 附件安全检查器，在检索到的文件嵌入草稿前执行
type AttachmentSecurity struct {
	// 允许的文件类型
	allowedMimeTypes map[string]bool

	// 最大文件大小（字节）
	maxFileSize int64

	// 危险文件扩展名
	dangerousExtensions map[string]bool
}

// NewAttachmentSecurity 创建附件安全检查器
//
// 参数:
//   - maxFileSize: 最大文件大小，<= 0 时使用 10MB
func NewAttachmentSecurity(maxFileSize int64) *AttachmentSecurity {
	if maxFileSize <= 0 {
		maxFileSize = 10 * 1024 * 1024
	}
	return &AttachmentSecurity{
		allowedMimeTypes: map[string]bool{
			"text/plain":               true,
			"text/csv":                 true,
			"application/json":         true,
			"application/pdf":          true,
			"image/jpeg":               true,
			"image/png":                true,
			"image/gif":                true,
			"image/webp":               true,
			"application/zip":          true,
			"application/octet-stream": true,
			"application/msword":       true,
			"application/vnd.ms-excel": true,
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
			"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
			"application/vnd.oasis.opendocument.text":                                   true,
			"application/vnd.oasis.opendocument.spreadsheet":                            true,
		},
		maxFileSize: maxFileSize,
		dangerousExtensions: map[string]bool{
			".exe": true,
			".bat": true,
			".cmd": true,
			".scr": true,
			".pif": true,
			".com": true,
			".vbs": true,
			".js":  true,
			".jar": true,
			".php": true,
			".asp": true,
			".jsp": true,
			".ps1": true,
			".msi": true,
		},
	}
}

// CheckAttachment 检查附件安全性
//
// 返回值:
//   - error: 未通过时返回包装了 ErrAttachmentRejected 的错误，信息中带原因
func (as *AttachmentSecurity) CheckAttachment(att *domain.Attachment) error {
	if att == nil {
		return fmt.Errorf("%w: no attachment", ErrAttachmentRejected)
	}

	checks := []func(*domain.Attachment) string{
		as.checkFileExtension,
		as.checkMimeType,
		as.checkFileSize,
		as.checkFileContent,
	}
	for _, check := range checks {
		if reason := check(att); reason != "" {
			return fmt.Errorf("%w: %s", ErrAttachmentRejected, reason)
		}
	}
	return nil
}

// checkFileExtension 检查文件扩展名
func (as *AttachmentSecurity) checkFileExtension(att *domain.Attachment) string {
	ext := strings.ToLower(filepath.Ext(att.Filename))
	if as.dangerousExtensions[ext] {
		return "Dangerous file extension: " + ext
	}
	return ""
}

// checkMimeType 检查 MIME 类型，未声明时按内容嗅探
func (as *AttachmentSecurity) checkMimeType(att *domain.Attachment) string {
	mimeType := att.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(att.Content)
	}

	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "Invalid MIME type: " + mimeType
	}
	if !as.allowedMimeTypes[mediaType] {
		return "Disallowed MIME type: " + mediaType
	}
	return ""
}

// checkFileSize 检查文件大小
func (as *AttachmentSecurity) checkFileSize(att *domain.Attachment) string {
	if len(att.Content) == 0 {
		return "Empty file"
	}
	if att.Size() > as.maxFileSize {
		return fmt.Sprintf("File too large: exceeds %d bytes", as.maxFileSize)
	}
	return ""
}

// checkFileContent 检查文件内容
func (as *AttachmentSecurity) checkFileContent(att *domain.Attachment) string {
	header := att.Content
	if len(header) > 512 {
		header = header[:512]
	}

	if reason := checkFileMagic(header); reason != "" {
		return reason
	}

	// 检查文本文件中的恶意内容
	if strings.HasPrefix(att.MimeType, "text/") {
		return checkTextContent(string(header))
	}
	return ""
}

// checkFileMagic 检查文件魔数
func checkFileMagic(header []byte) string {
	executableSignatures := [][]byte{
		{0x4D, 0x5A},             // PE executable
		{0x7F, 0x45, 0x4C, 0x46}, // ELF executable
		{0xFE, 0xED, 0xFA, 0xCE}, // Mach-O executable
		{0xCE, 0xFA, 0xED, 0xFE}, // Mach-O executable (reverse)
	}

	for _, sig := range executableSignatures {
		if bytes.HasPrefix(header, sig) {
			return "Executable file detected"
		}
	}
	return ""
}

// checkTextContent 检查文本内容
func checkTextContent(content string) string {
	lower := strings.ToLower(content)
	if strings.Contains(lower, "<script") {
		return "Script tag detected in text file"
	}
	if strings.Contains(lower, "javascript:") {
		return "JavaScript code detected in text file"
	}
	return ""
}
