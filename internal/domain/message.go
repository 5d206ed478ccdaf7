package domain

// 收件邮件的默认头部取值，头部缺失时使用。
const (
	DefaultSender  = "Unknown Sender"
	DefaultSubject = "No Subject"
)

// Header 表示一条邮件头部（名称区分大小写）。
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MessagePart 表示 MIME 树中的一个节点。
//
// Data 保存 base64url 编码的正文负载；节点可以同时带负载和子节点。
type MessagePart struct {
	PartID   string        `json:"partId,omitempty"`
	MimeType string        `json:"mimeType"`
	Filename string        `json:"filename,omitempty"`
	Headers  []Header      `json:"headers,omitempty"`
	Data     string        `json:"data,omitempty"`
	Parts    []MessagePart `json:"parts,omitempty"`
}

// MessageRef 未读列表中的一行。
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// InboundMessage 表示一次运行中拉取到的一封邮件，只读，不跨运行缓存。
type InboundMessage struct {
	ID       string       `json:"id"`
	ThreadID string       `json:"threadId"`
	Headers  []Header     `json:"headers"`
	Payload  *MessagePart `json:"payload,omitempty"`
	Snippet  string       `json:"snippet,omitempty"`
}

// Header 按名称精确匹配查找头部，返回第一条匹配。
//
// 参数:
//   - name: 头部名称，大小写敏感
//
// 返回值:
//   - string: 头部取值
//   - bool: 是否找到
func (m *InboundMessage) Header(name string) (string, bool) {
	for _, h := range m.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// HeaderOr 查找头部，缺失时返回 fallback
func (m *InboundMessage) HeaderOr(name, fallback string) string {
	if v, ok := m.Header(name); ok {
		return v
	}
	return fallback
}

// From 发件人，缺失时为 DefaultSender
func (m *InboundMessage) From() string { return m.HeaderOr("From", DefaultSender) }

// Subject 主题，缺失时为 DefaultSubject
func (m *InboundMessage) Subject() string { return m.HeaderOr("Subject", DefaultSubject) }

// To 收件人原始头部，缺失时为空字符串
func (m *InboundMessage) To() string { return m.HeaderOr("To", "") }

// Cc 抄送原始头部，缺失时为空字符串
func (m *InboundMessage) Cc() string { return m.HeaderOr("Cc", "") }

// MessageID RFC 5322 Message-ID，用于回复线程头
func (m *InboundMessage) MessageID() string { return m.HeaderOr("Message-ID", "") }
