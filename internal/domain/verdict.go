package domain

import "strings"

// Verdict 分类结果，闭合枚举，零值为无法识别。
type Verdict int

const (
	// VerdictUnrecognized 模型输出不是约定的任何一个标记
	VerdictUnrecognized Verdict = iota
	// VerdictNoReplyNeeded 不需要回复
	VerdictNoReplyNeeded
	// VerdictNeedsReply 需要回复
	VerdictNeedsReply
	// VerdictNeedsReplyWithFile 需要回复且需附带文件
	VerdictNeedsReplyWithFile
)

// 模型约定输出的分类标记
const (
	TokenNo            = "NO"
	TokenYes           = "YES"
	TokenIsFileRequest = "IS_FILE_REQUEST"
)

// String 返回用于日志和指标标签的名称
func (v Verdict) String() string {
	switch v {
	case VerdictNoReplyNeeded:
		return "no_reply_needed"
	case VerdictNeedsReply:
		return "needs_reply"
	case VerdictNeedsReplyWithFile:
		return "needs_reply_with_file"
	default:
		return "unrecognized"
	}
}

// Classification 一次分类的结果，保留模型原始输出便于排查。
type Classification struct {
	Verdict Verdict
	Raw     string
}

// Recognized 是否识别出有效的分类
func (c Classification) Recognized() bool {
	return c.Verdict != VerdictUnrecognized
}

// ParseVerdict 将模型输出解析为分类结果
//
// 去除首尾空白后按大小写不敏感的方式精确匹配 YES / NO / IS_FILE_REQUEST，
// 其它任何文本都解析为 VerdictUnrecognized，不做猜测。
//
// 参数:
//   - raw: 模型原始输出
//
// 返回值:
//   - Classification: 分类结果（含原始文本）
func ParseVerdict(raw string) Classification {
	token := strings.ToUpper(strings.TrimSpace(raw))

	var v Verdict
	switch token {
	case TokenNo:
		v = VerdictNoReplyNeeded
	case TokenYes:
		v = VerdictNeedsReply
	case TokenIsFileRequest:
		v = VerdictNeedsReplyWithFile
	default:
		v = VerdictUnrecognized
	}

	return Classification{Verdict: v, Raw: raw}
}
