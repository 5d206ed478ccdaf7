package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyDraft 模型返回了空白草稿
var ErrEmptyDraft = errors.New("model returned an empty draft")

// Drafter 让模型起草回复正文
type Drafter struct {
	gen      Generator
	prompts  *Prompts
	operator string
}

// NewDrafter 创建起草器
func NewDrafter(gen Generator, prompts *Prompts, operator string) *Drafter {
	return &Drafter{gen: gen, prompts: prompts, operator: operator}
}

// Draft 起草回复
//
// 参数:
//   - view: 原邮件
//   - attachedFile: 将要附带的文件名，为空表示不带附件
//
// 返回值:
//   - string: 去除首尾空白的回复正文
//   - error: 模型调用失败或返回空白时返回错误
func (d *Drafter) Draft(ctx context.Context, view MessageView, attachedFile string) (string, error) {
	prompt, err := d.prompts.Render(DraftPrompt, PromptData{
		Operator:     d.operator,
		SignOff:      SignOffName(d.operator),
		From:         view.From,
		Subject:      view.Subject,
		Body:         view.Body,
		AttachedFile: attachedFile,
	})
	if err != nil {
		return "", err
	}

	body, err := d.gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("draft: %w", err)
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyDraft
	}
	return body, nil
}
