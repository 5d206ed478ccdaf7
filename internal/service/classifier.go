package service

import (
	"context"
	"fmt"

	"mailtriage/backend/internal/domain"
)

// Classifier 询问模型一封邮件是否需要回复
type Classifier struct {
	gen      Generator
	prompts  *Prompts
	operator string
}

// NewClassifier 创建分类器
func NewClassifier(gen Generator, prompts *Prompts, operator string) *Classifier {
	return &Classifier{gen: gen, prompts: prompts, operator: operator}
}

// Classify 分类一封邮件
//
// 模型调用失败返回错误；模型返回无法识别的文本时不返回错误，
// 而是返回 VerdictUnrecognized 并在 Raw 中保留原文。
func (c *Classifier) Classify(ctx context.Context, view MessageView) (domain.Classification, error) {
	prompt, err := c.prompts.Render(ClassifyPrompt, PromptData{
		Operator: c.operator,
		SignOff:  SignOffName(c.operator),
		From:     view.From,
		Subject:  view.Subject,
		Body:     view.Body,
	})
	if err != nil {
		return domain.Classification{}, err
	}

	raw, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("classify: %w", err)
	}

	return domain.ParseVerdict(raw), nil
}
