package security

import (
	"regexp"
	"strings"
)

// ContentFilter 内容过滤器
//
// 入站邮件只做垃圾邮件判断，模型生成的草稿只做脚本注入判断。
type ContentFilter struct {
	// 恶意内容模式
	maliciousPatterns []*regexp.Regexp

	// 垃圾邮件关键词
	spamKeywords []string

	// 命中多少个关键词视为垃圾邮件
	spamThreshold int
}

// NewContentFilter 创建内容过滤器
func NewContentFilter() *ContentFilter {
	return &ContentFilter{
		maliciousPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
			regexp.MustCompile(`(?i)javascript:`),
			regexp.MustCompile(`(?i)onload\s*=`),
			regexp.MustCompile(`(?i)onerror\s*=`),
			regexp.MustCompile(`(?i)document\.cookie`),
			regexp.MustCompile(`(?i)<iframe[^>]*>`),
			regexp.MustCompile(`(?i)<object[^>]*>`),
			regexp.MustCompile(`(?i)<embed[^>]*>`),
		},
		spamKeywords: []string{
			"viagra", "casino", "lottery", "winner", "congratulations",
			"free money", "click here", "limited time", "act now",
			"guaranteed", "no risk", "earn money", "work from home",
			"unsubscribe",
		},
		spamThreshold: 3,
	}
}

// IsSpam 判断入站邮件是否为垃圾邮件
//
// 返回值:
//   - bool: 是否为垃圾邮件
//   - string: 判断原因
func (cf *ContentFilter) IsSpam(subject, body string) (bool, string) {
	contentLower := strings.ToLower(subject + "\n" + body)

	var hits []string
	for _, keyword := range cf.spamKeywords {
		if strings.Contains(contentLower, keyword) {
			hits = append(hits, keyword)
		}
	}

	if len(hits) >= cf.spamThreshold {
		return true, "Spam content detected: " + strings.Join(hits, ", ")
	}
	return false, ""
}

// CheckDraft 检查模型生成的草稿正文
//
// 返回值:
//   - bool: 是否可以使用
//   - string: 拒绝原因
func (cf *ContentFilter) CheckDraft(body string) (bool, string) {
	for _, pattern := range cf.maliciousPatterns {
		if pattern.MatchString(body) {
			return false, "Malicious content detected: " + pattern.String()
		}
	}
	return true, ""
}
