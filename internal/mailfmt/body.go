package mailfmt

import (
	"encoding/base64"
	"errors"
	"mime"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"

	"mailtriage/backend/internal/domain"
)

// 正文提取失败时写入提示词的固定文本
const (
	NoPlainTextBody   = "No plain text body found"
	UndecodableBody   = "Could not decode body."
	mimeTypePlainText = "text/plain"
	mimeTypeHTML      = "text/html"
)

// ErrEmptyPayload 负载为空
var ErrEmptyPayload = errors.New("empty body payload")

// FindPart 以深度优先先序遍历查找第一个指定类型且带负载的节点
//
// 每个节点先检查自身，再按顺序递归子节点，返回第一个命中的节点。
// 兄弟节点的顺序即为固定的决胜规则。
//
// 参数:
//   - part: MIME 树根节点，可为 nil
//   - mimeType: 目标类型，精确匹配
//
// 返回值:
//   - *domain.MessagePart: 命中的节点
//   - bool: 是否找到
func FindPart(part *domain.MessagePart, mimeType string) (*domain.MessagePart, bool) {
	if part == nil {
		return nil, false
	}
	if part.MimeType == mimeType && part.Data != "" {
		return part, true
	}
	for i := range part.Parts {
		if found, ok := FindPart(&part.Parts[i], mimeType); ok {
			return found, true
		}
	}
	return nil, false
}

// FindPlainText 返回第一个 text/plain 叶子的 base64url 负载，未找到时 ok 为 false
func FindPlainText(part *domain.MessagePart) (string, bool) {
	found, ok := FindPart(part, mimeTypePlainText)
	if !ok {
		return "", false
	}
	return found.Data, true
}

// DecodeBody 解码 base64url 负载，兼容带填充和不带填充两种形式
func DecodeBody(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	if data, err := base64.URLEncoding.DecodeString(payload); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(payload, "="))
}

// PlainTextBody 提取并解码纯文本正文
//
// 找不到 text/plain 节点时返回 NoPlainTextBody，解码失败时返回 UndecodableBody。
// 非 UTF-8 字符集会按节点 Content-Type 中的 charset 转换。
func PlainTextBody(root *domain.MessagePart) string {
	part, ok := FindPart(root, mimeTypePlainText)
	if !ok {
		return NoPlainTextBody
	}
	text, err := decodePart(part)
	if err != nil {
		return UndecodableBody
	}
	return text
}

// BodyText 提取用于分类和起草的正文
//
// 优先纯文本；htmlFallback 为 true 且没有纯文本时，把第一个 HTML 节点转换为 Markdown。
func BodyText(root *domain.MessagePart, htmlFallback bool) string {
	if _, ok := FindPlainText(root); ok || !htmlFallback {
		return PlainTextBody(root)
	}

	part, ok := FindPart(root, mimeTypeHTML)
	if !ok {
		return NoPlainTextBody
	}
	html, err := decodePart(part)
	if err != nil {
		return UndecodableBody
	}
	md, err := HTMLToText(html)
	if err != nil {
		return UndecodableBody
	}
	return md
}

// HTMLToText 将 HTML 正文转换为 Markdown 文本
func HTMLToText(html string) (string, error) {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

// decodePart 解码节点负载并做字符集转换
func decodePart(part *domain.MessagePart) (string, error) {
	data, err := DecodeBody(part.Data)
	if err != nil {
		return "", err
	}
	return convertCharset(data, partCharset(part)), nil
}

// partCharset 从节点自身的 Content-Type 头读取 charset 参数
func partCharset(part *domain.MessagePart) string {
	for _, h := range part.Headers {
		if !strings.EqualFold(h.Name, "Content-Type") {
			continue
		}
		_, params, err := mime.ParseMediaType(h.Value)
		if err != nil {
			return ""
		}
		return params["charset"]
	}
	return ""
}

// convertCharset 将指定字符集的字节转换为 UTF-8 字符串，未知字符集原样返回
func convertCharset(body []byte, charset string) string {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "us-ascii" {
		return string(body)
	}
	enc := charsetEncoding(charset)
	if enc == nil {
		return string(body)
	}
	converted, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return string(body)
	}
	return string(converted)
}

// charsetEncoding 根据字符集名称返回编码器
func charsetEncoding(charset string) encoding.Encoding {
	switch charset {
	case "gb2312", "gbk":
		return simplifiedchinese.GBK
	case "gb18030":
		return simplifiedchinese.GB18030
	case "big5":
		return traditionalchinese.Big5
	case "iso-2022-jp":
		return japanese.ISO2022JP
	case "shift_jis", "shift-jis", "sjis":
		return japanese.ShiftJIS
	case "euc-jp":
		return japanese.EUCJP
	case "euc-kr", "ks_c_5601-1987":
		return korean.EUCKR
	default:
		return nil
	}
}
