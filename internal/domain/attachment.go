package domain

import "strings"

// Attachment 表示要嵌入草稿的一个文件，仅在定位并选中文件后产生。
type Attachment struct {
	Filename string `json:"filename"` // 文件名
	MimeType string `json:"mimeType"` // MIME类型
	Content  []byte `json:"-"`        // 原始字节
}

// Size 附件字节数
func (a *Attachment) Size() int64 {
	if a == nil {
		return 0
	}
	return int64(len(a.Content))
}

// DraftEmail 表示要在邮箱中创建的回复草稿。
//
// Subject 保存原始主题，"Re: " 前缀由编排器在组装 MIME 时统一添加。
type DraftEmail struct {
	ThreadID   string
	To         string
	Cc         string
	Subject    string
	Body       string
	InReplyTo  string
	Attachment *Attachment
}

// DriveFile 文件检索结果中的一行。
type DriveFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	WebViewLink string `json:"webViewLink,omitempty"`
}

// Google 原生文档类型前缀，此类文件只能导出不能直接下载。
const GoogleAppsMimePrefix = "application/vnd.google-apps."

// IsGoogleNative 是否为 Google 原生文档
func (f DriveFile) IsGoogleNative() bool {
	return strings.HasPrefix(f.MimeType, GoogleAppsMimePrefix)
}
