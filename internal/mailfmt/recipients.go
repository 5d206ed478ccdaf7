package mailfmt

import (
	"sort"
	"strings"
)

// Recipients 回复草稿的收件人和抄送，已排序、去重并以 ", " 连接。
type Recipients struct {
	To string
	Cc string
}

// ResolveRecipients 计算回复的 To/Cc
//
// 规则：
//  1. 候选 To = From 与 To 按逗号拆分后合并，候选 Cc = Cc 按逗号拆分
//  2. 每项去除首尾空白，丢弃空项以及包含自身地址（不区分大小写）的项
//  3. 按字典序排序，去除相邻重复项，以 ", " 连接
//
// 全部被过滤时结果为空字符串，调用方照常传递。
//
// 参数:
//   - from, to, cc: 收到邮件的原始头部
//   - self: 操作者自身地址，为空时不做自身过滤
//
// 返回值:
//   - Recipients: 计算结果
func ResolveRecipients(from, to, cc, self string) Recipients {
	candidatesTo := append(splitAddresses(from), splitAddresses(to)...)
	candidatesCc := splitAddresses(cc)

	return Recipients{
		To: joinUnique(excludeSelf(candidatesTo, self)),
		Cc: joinUnique(excludeSelf(candidatesCc, self)),
	}
}

// splitAddresses 按逗号拆分并去除空白项
func splitAddresses(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// excludeSelf 丢弃包含自身地址的项
func excludeSelf(entries []string, self string) []string {
	self = strings.ToLower(strings.TrimSpace(self))
	if self == "" {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e), self) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// joinUnique 排序、去除相邻重复并连接
func joinUnique(entries []string) string {
	sort.Strings(entries)
	out := make([]string, 0, len(entries))
	for i, e := range entries {
		if i > 0 && e == entries[i-1] {
			continue
		}
		out = append(out, e)
	}
	return strings.Join(out, ", ")
}
