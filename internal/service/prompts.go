package service

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed prompts/*.tmpl
var defaultPrompts embed.FS

// 提示词模板文件名，覆盖目录中使用相同的文件名
const (
	ClassifyPrompt = "classify.tmpl"
	DraftPrompt    = "draft.tmpl"
	KeywordsPrompt = "keywords.tmpl"
)

// PromptData 渲染提示词所需的数据
type PromptData struct {
	Operator     string // 操作者全名，如 "John Tashiro"
	SignOff      string // 署名，取全名的第一个词
	From         string
	Subject      string
	Body         string
	AttachedFile string // 附件文件名，为空表示不带附件
}

// Prompts 已解析的提示词模板集合
type Prompts struct {
	templates map[string]*template.Template
}

// LoadPrompts 加载内置提示词，dir 中存在的同名文件覆盖内置版本
//
// 参数:
//   - dir: 覆盖目录，空字符串表示只使用内置模板
//
// 返回值:
//   - *Prompts: 模板集合
//   - error: 读取或解析失败时返回错误
func LoadPrompts(dir string) (*Prompts, error) {
	p := &Prompts{templates: make(map[string]*template.Template, 3)}

	for _, name := range []string{ClassifyPrompt, DraftPrompt, KeywordsPrompt} {
		content, err := readPrompt(dir, name)
		if err != nil {
			return nil, err
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(content)
		if err != nil {
			return nil, fmt.Errorf("parse prompt %s: %w", name, err)
		}
		p.templates[name] = tmpl
	}
	return p, nil
}

func readPrompt(dir, name string) (string, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read prompt override %s: %w", name, err)
		}
	}

	data, err := defaultPrompts.ReadFile("prompts/" + name)
	if err != nil {
		return "", fmt.Errorf("read embedded prompt %s: %w", name, err)
	}
	return string(data), nil
}

// Render 渲染指定模板
func (p *Prompts) Render(name string, data PromptData) (string, error) {
	tmpl, ok := p.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

// SignOffName 取操作者全名的第一个词作为署名
func SignOffName(operator string) string {
	fields := strings.Fields(operator)
	if len(fields) == 0 {
		return operator
	}
	return fields[0]
}
