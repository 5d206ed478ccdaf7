package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrompts(t *testing.T) {
	t.Run("内置模板", func(t *testing.T) {
		p, err := LoadPrompts("")
		require.NoError(t, err)

		out, err := p.Render(ClassifyPrompt, PromptData{
			Operator: "John Tashiro",
			SignOff:  "John",
			From:     "Emika <emika@example.com>",
			Subject:  "Attendance Report",
			Body:     "Can you send it?",
		})
		require.NoError(t, err)
		assert.Contains(t, out, "You are an AI assistant for John Tashiro.")
		assert.Contains(t, out, "From: Emika <emika@example.com>\nSubject: Attendance Report\nBody: Can you send it?")
	})

	t.Run("附件段落按需渲染", func(t *testing.T) {
		p, err := LoadPrompts("")
		require.NoError(t, err)

		plain, err := p.Render(DraftPrompt, PromptData{Operator: "John Tashiro", SignOff: "John"})
		require.NoError(t, err)
		assert.NotContains(t, plain, "Attached File:")

		withFile, err := p.Render(DraftPrompt, PromptData{Operator: "John Tashiro", SignOff: "John", AttachedFile: "report.pdf"})
		require.NoError(t, err)
		assert.Contains(t, withFile, "- Attached File: report.pdf")
		assert.Contains(t, withFile, "A file is attached.")
	})

	t.Run("目录覆盖", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, KeywordsPrompt), []byte("keywords for {{.Subject}}"), 0o600))

		p, err := LoadPrompts(dir)
		require.NoError(t, err)

		out, err := p.Render(KeywordsPrompt, PromptData{Subject: "Invoice"})
		require.NoError(t, err)
		assert.Equal(t, "keywords for Invoice", out)

		// 未覆盖的模板仍使用内置版本
		out, err = p.Render(ClassifyPrompt, PromptData{})
		require.NoError(t, err)
		assert.Contains(t, out, "IS_FILE_REQUEST")
	})

	t.Run("模板语法错误", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, DraftPrompt), []byte("{{.Subject"), 0o600))

		_, err := LoadPrompts(dir)
		assert.Error(t, err)
	})

	t.Run("未知模板", func(t *testing.T) {
		p, err := LoadPrompts("")
		require.NoError(t, err)

		_, err = p.Render("summary.tmpl", PromptData{})
		assert.Error(t, err)
	})
}

func TestSignOffName(t *testing.T) {
	assert.Equal(t, "John", SignOffName("John Tashiro"))
	assert.Equal(t, "John", SignOffName("  John  "))
	assert.Equal(t, "", SignOffName(""))
}

func TestTranscript(t *testing.T) {
	tr := NewTranscript(nil)
	tr.Add("Checking for unread emails...")
	tr.Addf("Found %d unread email(s). Fetching details...", 2)
	tr.Error("- Failed to create draft", errors.New("boom"))

	assert.Equal(t, []string{
		"Checking for unread emails...",
		"Found 2 unread email(s). Fetching details...",
		"- Failed to create draft: boom",
	}, tr.Lines())
	assert.Equal(t, "Checking for unread emails...\nFound 2 unread email(s). Fetching details...\n- Failed to create draft: boom", tr.String())

	lines := tr.Lines()
	lines[0] = "mutated"
	assert.Equal(t, "Checking for unread emails...", tr.Lines()[0])
}
