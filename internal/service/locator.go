package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"mailtriage/backend/internal/cache"
	"mailtriage/backend/internal/domain"
	"mailtriage/backend/internal/drive"
	"mailtriage/backend/internal/security"
)

// ErrNoKeywords 模型没有给出可用的关键词
var ErrNoKeywords = errors.New("no search keywords extracted")

// LocatorOptions 文件定位参数
type LocatorOptions struct {
	ExportMime string
	Cache      *cache.LocalCache // 为 nil 时不缓存
	CacheTTL   time.Duration
	Vetter     *security.AttachmentSecurity // 为 nil 时不检查
}

// FileLocator 从邮件中提取关键词、检索文件并取回内容
type FileLocator struct {
	gen      Generator
	prompts  *Prompts
	operator string
	opts     LocatorOptions
}

// NewFileLocator 创建文件定位器
func NewFileLocator(gen Generator, prompts *Prompts, operator string, opts LocatorOptions) *FileLocator {
	if opts.ExportMime == "" {
		opts.ExportMime = "application/pdf"
	}
	return &FileLocator{gen: gen, prompts: prompts, operator: operator, opts: opts}
}

// Keywords 让模型给出检索关键词
func (l *FileLocator) Keywords(ctx context.Context, view MessageView) ([]string, error) {
	prompt, err := l.prompts.Render(KeywordsPrompt, PromptData{
		Operator: l.operator,
		SignOff:  SignOffName(l.operator),
		From:     view.From,
		Subject:  view.Subject,
		Body:     view.Body,
	})
	if err != nil {
		return nil, err
	}

	raw, err := l.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}

	keywords := ParseKeywords(raw)
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}
	return keywords, nil
}

// ParseKeywords 按逗号（含全角逗号和顿号）或换行拆分，去除空白和重复项，保持原顺序
func ParseKeywords(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		switch r {
		case ',', '，', '、', '\n', '\r':
			return true
		}
		return false
	})

	seen := make(map[string]struct{}, len(fields))
	var keywords []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		key := strings.ToLower(f)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keywords = append(keywords, f)
	}
	return keywords
}

// Search 检索文件名包含全部关键词的文件，结果按修改时间倒序
func (l *FileLocator) Search(ctx context.Context, files FileStore, keywords []string) ([]domain.DriveFile, error) {
	query := drive.BuildNameQuery(keywords)

	if l.opts.Cache != nil {
		if cached, ok := l.opts.Cache.Get(query); ok {
			return cached.([]domain.DriveFile), nil
		}
	}

	found, err := files.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if l.opts.Cache != nil {
		l.opts.Cache.Set(query, found, l.opts.CacheTTL)
	}
	return found, nil
}

// Fetch 取回文件内容并组装附件
//
// Google 原生文档按 ExportMime 导出，文件名补上对应扩展名；其它文件直接下载。
func (l *FileLocator) Fetch(ctx context.Context, files FileStore, file domain.DriveFile) (*domain.Attachment, error) {
	att := &domain.Attachment{Filename: file.Name, MimeType: file.MimeType}

	var err error
	if file.IsGoogleNative() {
		att.Content, err = files.Export(ctx, file.ID, l.opts.ExportMime)
		att.MimeType = l.opts.ExportMime
		att.Filename = withExtension(file.Name, l.opts.ExportMime)
	} else {
		att.Content, err = files.Download(ctx, file.ID)
	}
	if err != nil {
		return nil, err
	}

	if l.opts.Vetter != nil {
		if err := l.opts.Vetter.CheckAttachment(att); err != nil {
			return nil, err
		}
	}
	return att, nil
}

func withExtension(name, mimeType string) string {
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return name
	}
	if strings.EqualFold(filepath.Ext(name), exts[0]) {
		return name
	}
	return name + exts[0]
}
