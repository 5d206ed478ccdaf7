package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailtriage/backend/internal/domain"
	"mailtriage/backend/internal/mailfmt"
	"mailtriage/backend/internal/pool"
	"mailtriage/backend/internal/security"
)

var (
	// ErrListUnread 未读列表获取失败，本次运行终止
	ErrListUnread = errors.New("Failed to fetch emails")
	// ErrUnrecognizedVerdict 模型输出不是约定的分类标记
	ErrUnrecognizedVerdict = errors.New("unrecognized classification")
	// ErrNoFileStore 会话中没有文件存储
	ErrNoFileStore = errors.New("file store is not configured")
)

// 指标中使用的处理阶段
const (
	stageFetch    = "fetch"
	stageClassify = "classify"
	stageDraft    = "draft"
	stageCompose  = "compose"
	stageMarkRead = "mark_read"
	stageKeywords = "keywords"
	stageSearch   = "search"
	stageAttach   = "attach"
)

// Options 分拣流程参数
type Options struct {
	OperatorAddr  string   // 从收件人中剔除的自身地址
	OperatorName  string   // 写入提示词的操作者全名
	MaxMessages   int64    // 每次运行最多处理的未读邮件数
	Workers       int      // > 1 时并发预取和分类
	IgnoreSenders []string // 发件人包含其中任意一项时直接跳过
	HTMLFallback  bool
	AttachFiles   bool
	ContentFilter *security.ContentFilter // 为 nil 时不过滤
	Locator       LocatorOptions
}

// Stats 一次运行的统计
type Stats struct {
	Unread         int `json:"unread"`
	NoReplyNeeded  int `json:"noReplyNeeded"`
	Drafted        int `json:"drafted"`
	WithAttachment int `json:"withAttachment"`
	MarkedRead     int `json:"markedRead"`
	Skipped        int `json:"skipped"`
	Unrecognized   int `json:"unrecognized"`
	NoFileMatch    int `json:"noFileMatch"`
	Errors         int `json:"errors"`
}

// TriageService 处理一次运行中的全部未读邮件
type TriageService struct {
	classifier *Classifier
	drafter    *Drafter
	locator    *FileLocator
	opts       Options
	rec        Recorder
	log        *zap.Logger
}

// NewTriageService 创建分拣服务
//
// 参数:
//   - gen: 语言模型
//   - prompts: 提示词模板
//   - opts: 流程参数
//   - rec: 指标记录，可为 nil
//   - log: 日志记录器
func NewTriageService(gen Generator, prompts *Prompts, opts Options, rec Recorder, log *zap.Logger) *TriageService {
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 50
	}

	return &TriageService{
		classifier: NewClassifier(timedGenerator{gen: gen, purpose: "classify", rec: rec}, prompts, opts.OperatorName),
		drafter:    NewDrafter(timedGenerator{gen: gen, purpose: "draft", rec: rec}, prompts, opts.OperatorName),
		locator:    NewFileLocator(timedGenerator{gen: gen, purpose: "keywords", rec: rec}, prompts, opts.OperatorName, opts.Locator),
		opts:       opts,
		rec:        rec,
		log:        log,
	}
}

// prepared 一封邮件在执行动作之前的结果（拉取、分类）
type prepared struct {
	msg        *domain.InboundMessage
	view       MessageView
	class      domain.Classification
	skipReason string
	stage      string
	err        error
}

// Process 处理所有未读邮件
//
// 只有未读列表获取失败会返回错误（包装 ErrListUnread）；
// 单封邮件的错误写入运行日志后继续处理下一封。
func (s *TriageService) Process(ctx context.Context, sess *Session, tr *Transcript) (Stats, error) {
	var stats Stats

	tr.Add("Checking for unread emails...")
	refs, err := sess.Mailbox.ListUnread(ctx, s.opts.MaxMessages)
	if err != nil {
		return stats, fmt.Errorf("%w: %v", ErrListUnread, err)
	}

	stats.Unread = len(refs)
	if len(refs) == 0 {
		tr.Add("No unread emails found.")
		return stats, nil
	}
	tr.Addf("Found %d unread email(s). Fetching details...", len(refs))

	next, stop := s.prefetch(ctx, sess, refs)
	defer stop()

	for i := range refs {
		if err := ctx.Err(); err != nil {
			tr.Error("Run cancelled", err)
			stats.Errors++
			break
		}

		start := time.Now()
		s.handle(ctx, sess, tr, i, next(i), &stats)
		s.rec.RecordEmailProcessingTime(time.Since(start))
	}

	return stats, nil
}

// prefetch 返回按顺序获取预处理结果的函数
//
// Workers <= 1 时在调用时同步处理；否则通过协程池并发拉取和分类，
// 调用方仍按列表顺序逐封取结果并执行动作。
func (s *TriageService) prefetch(ctx context.Context, sess *Session, refs []domain.MessageRef) (func(int) *prepared, func()) {
	if s.opts.Workers <= 1 {
		return func(i int) *prepared { return s.prepare(ctx, sess, refs[i]) }, func() {}
	}

	results := make([]*prepared, len(refs))
	done := make([]chan struct{}, len(refs))

	p := pool.NewWorkerPool(s.opts.Workers, len(refs), s.log)
	p.OnPanic(func(interface{}) { s.rec.RecordPanic() })
	p.Start(ctx)

	for i := range refs {
		i := i
		done[i] = make(chan struct{})
		err := p.Submit(ctx, func() {
			defer close(done[i])
			results[i] = s.prepare(ctx, sess, refs[i])
		})
		if err != nil {
			results[i] = &prepared{stage: stageFetch, err: fmt.Errorf("prefetch not scheduled: %w", err)}
			close(done[i])
		}
	}

	next := func(i int) *prepared {
		select {
		case <-done[i]:
		case <-ctx.Done():
			return &prepared{stage: stageFetch, err: ctx.Err()}
		}
		if results[i] == nil {
			return &prepared{stage: stageFetch, err: fmt.Errorf("prefetch of message %s panicked", refs[i].ID)}
		}
		return results[i]
	}
	return next, p.Stop
}

// prepare 拉取并分类一封邮件，不写运行日志
func (s *TriageService) prepare(ctx context.Context, sess *Session, ref domain.MessageRef) *prepared {
	msg, err := sess.Mailbox.GetMessage(ctx, ref.ID)
	if err != nil {
		return &prepared{stage: stageFetch, err: err}
	}

	p := &prepared{msg: msg, view: s.viewOf(msg)}

	if sender, ok := s.ignoredSender(p.view.From); ok {
		p.skipReason = "sender matches ignore list (" + sender + ")"
		return p
	}
	if s.opts.ContentFilter != nil {
		if spam, reason := s.opts.ContentFilter.IsSpam(p.view.Subject, p.view.Body); spam {
			p.skipReason = reason
			return p
		}
	}

	p.class, err = s.classifier.Classify(ctx, p.view)
	if err != nil {
		p.stage = stageClassify
		p.err = err
	}
	return p
}

func (s *TriageService) viewOf(msg *domain.InboundMessage) MessageView {
	return MessageView{
		From:      msg.From(),
		To:        msg.To(),
		Cc:        msg.Cc(),
		Subject:   msg.Subject(),
		Body:      mailfmt.BodyText(msg.Payload, s.opts.HTMLFallback),
		MessageID: msg.MessageID(),
	}
}

func (s *TriageService) ignoredSender(from string) (string, bool) {
	lower := strings.ToLower(from)
	for _, pattern := range s.opts.IgnoreSenders {
		pattern = strings.TrimSpace(pattern)
		if pattern != "" && strings.Contains(lower, strings.ToLower(pattern)) {
			return pattern, true
		}
	}
	return "", false
}

// handle 按分类结果对一封邮件执行动作
func (s *TriageService) handle(ctx context.Context, sess *Session, tr *Transcript, index int, p *prepared, stats *Stats) {
	tr.Addf("\n===== Email #%d =====", index+1)

	if p.stage == stageFetch {
		tr.Error("- Failed to fetch email details", p.err)
		s.fail(stats, stageFetch)
		return
	}

	tr.Addf("- Subject: %s", p.view.Subject)

	if p.skipReason != "" {
		tr.Addf("- Skipped: %s", p.skipReason)
		stats.Skipped++
		s.rec.RecordVerdict("skipped")
		return
	}
	if p.err != nil {
		tr.Error("- Failed to classify email", p.err)
		s.fail(stats, stageClassify)
		return
	}

	decision := strings.ToUpper(strings.TrimSpace(p.class.Raw))
	tr.Addf("- Needs Reply?: %s", decision)
	s.rec.RecordVerdict(p.class.Verdict.String())

	if !p.class.Recognized() {
		tr.Error("- Skipping email", fmt.Errorf("%w: %q", ErrUnrecognizedVerdict, p.class.Raw))
		stats.Unrecognized++
		return
	}

	switch p.class.Verdict {
	case domain.VerdictNoReplyNeeded:
		stats.NoReplyNeeded++
	case domain.VerdictNeedsReply:
		tr.Add("- Decision is YES. Drafting reply...")
		s.reply(ctx, sess, tr, p, nil, stats)
	case domain.VerdictNeedsReplyWithFile:
		tr.Add("- Decision is IS_FILE_REQUEST. Searching for a matching file...")
		s.replyWithFile(ctx, sess, tr, p, stats)
	}
}

// replyWithFile 检索文件并在找到时带附件起草
func (s *TriageService) replyWithFile(ctx context.Context, sess *Session, tr *Transcript, p *prepared, stats *Stats) {
	if sess.Files == nil {
		tr.Error("- Failed to search files", ErrNoFileStore)
		s.fail(stats, stageSearch)
		return
	}

	keywords, err := s.locator.Keywords(ctx, p.view)
	if err != nil {
		tr.Error("- Failed to extract search keywords", err)
		s.fail(stats, stageKeywords)
		return
	}
	tr.Addf("- Search keywords: %s", strings.Join(keywords, ", "))

	files, err := s.locator.Search(ctx, sess.Files, keywords)
	if err != nil {
		tr.Error("- Failed to search files", err)
		s.fail(stats, stageSearch)
		return
	}
	if len(files) == 0 {
		tr.Add("- No matching file found. Email left unread.")
		stats.NoFileMatch++
		return
	}

	for _, f := range files {
		tr.Addf("- Candidate file: %s (%s)", f.Name, f.WebViewLink)
	}

	if !s.opts.AttachFiles {
		return
	}

	att, err := s.locator.Fetch(ctx, sess.Files, files[0])
	if err != nil {
		tr.Error("- Failed to retrieve file "+files[0].Name, err)
		s.fail(stats, stageAttach)
		return
	}
	tr.Addf("- Attaching file: %s (%d bytes)", att.Filename, att.Size())
	s.rec.RecordAttachmentSize(att.Size())

	s.reply(ctx, sess, tr, p, att, stats)
}

// reply 起草、组装并创建草稿，草稿创建成功后才标记已读
func (s *TriageService) reply(ctx context.Context, sess *Session, tr *Transcript, p *prepared, att *domain.Attachment, stats *Stats) {
	recipients := mailfmt.ResolveRecipients(p.view.From, p.view.To, p.view.Cc, s.opts.OperatorAddr)

	filename := ""
	if att != nil {
		filename = att.Filename
	}
	body, err := s.drafter.Draft(ctx, p.view, filename)
	if err != nil {
		tr.Error("- Failed to draft reply", err)
		s.fail(stats, stageDraft)
		return
	}
	tr.Addf("- Draft from Gemini: %s", body)

	if s.opts.ContentFilter != nil {
		if ok, reason := s.opts.ContentFilter.CheckDraft(body); !ok {
			tr.Error("- Draft rejected", errors.New(reason))
			s.fail(stats, stageDraft)
			return
		}
	}

	draft := domain.DraftEmail{
		ThreadID:   p.msg.ThreadID,
		To:         recipients.To,
		Cc:         recipients.Cc,
		Subject:    p.view.Subject,
		Body:       body,
		InReplyTo:  p.view.MessageID,
		Attachment: att,
	}
	if err := draft.Validate(); err != nil {
		tr.Error("- Failed to create draft", err)
		s.fail(stats, stageCompose)
		return
	}

	raw, err := mailfmt.Compose(draft)
	if err != nil {
		tr.Error("- Failed to create draft", err)
		s.fail(stats, stageCompose)
		return
	}

	if _, err := sess.Mailbox.CreateDraft(ctx, draft.ThreadID, mailfmt.EncodeRaw(raw)); err != nil {
		tr.Error("- Failed to create draft", err)
		s.fail(stats, stageDraft)
		return
	}
	tr.Add("- Successfully created draft in Gmail.")
	stats.Drafted++
	if att != nil {
		stats.WithAttachment++
	}
	s.rec.RecordDraft(att != nil)

	if err := sess.Mailbox.MarkRead(ctx, p.msg.ID); err != nil {
		tr.Error("- Failed to mark email as read", err)
		s.fail(stats, stageMarkRead)
		return
	}
	tr.Add("- Successfully marked original email as read.")
	stats.MarkedRead++
	s.rec.RecordMarkedRead()
}

func (s *TriageService) fail(stats *Stats, stage string) {
	stats.Errors++
	s.rec.RecordError(stage)
}
