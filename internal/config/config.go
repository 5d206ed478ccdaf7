package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mailtriage/backend/internal/domain"
)

// ServerConfig 定义 HTTP 触发服务的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// GoogleConfig 定义 Google OAuth 客户端与邮箱账号配置
type GoogleConfig struct {
	ClientID     string // OAuth 客户端 ID
	ClientSecret string // OAuth 客户端密钥
	TokenURL     string // 令牌端点，留空使用 Google 默认端点
	Account      string // 邮箱账号标识，默认 "me"
	OperatorAddr string // 操作者自身地址，用于从回复收件人中剔除
	OperatorName string // 操作者署名，写入起草提示词
	RefreshToken string // 仅在使用内存密钥存储时用于引导
}

// GeminiConfig 定义语言模型调用配置
type GeminiConfig struct {
	APIKey          string        // API 密钥
	Model           string        // 模型名称，默认 "gemini-2.5-flash"
	BaseURL         string        // 接口地址
	Timeout         time.Duration // 单次调用超时
	RatePerMinute   int           // 每分钟最多调用次数，0 表示不限
	Burst           int           // 突发额度
	BreakerFailures int           // 连续失败多少次后熔断
	BreakerTimeout  time.Duration // 熔断后多久进入半开
}

// DriveConfig 定义文件检索配置
type DriveConfig struct {
	PageSize     int           // 单次检索最多返回的文件数
	MaxFileBytes int64         // 下载或导出的最大字节数
	ExportMime   string        // Google 原生文档的导出类型
	CacheTTL     time.Duration // 检索结果缓存时间，0 表示不缓存
}

// TriageConfig 定义分拣流程配置
type TriageConfig struct {
	MaxMessages   int64         // 每次运行最多处理的未读邮件数
	Workers       int           // 预取并发数，1 表示严格顺序
	IgnoreSenders []string      // 直接跳过的发件人（子串匹配，不区分大小写）
	HTMLFallback  bool          // 无纯文本时是否回退到 HTML
	ContentFilter bool          // 是否跳过垃圾邮件并拒绝含脚本的草稿
	AttachFiles   bool          // 文件请求是否附带检索到的文件
	PromptsDir    string        // 提示词覆盖目录
	Schedule      time.Duration // 定时运行间隔，0 表示只由 HTTP 触发
	RunTimeout    time.Duration // 单次运行超时，0 表示不限
}

// RedisConfig 定义 Redis 密钥存储配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，留空使用内存存储
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
	TokenKey string // 刷新令牌所在的键，默认 "refresh_token"
}

// TriggerConfig 定义 HTTP 触发端点的认证配置
type TriggerConfig struct {
	JWTSecret string        // 签名密钥，留空表示不校验
	Issuer    string        // 签发者标识，默认 "mailtriage"
	Expiry    time.Duration // 签发令牌的有效期，默认 24 小时
}

// MonitoringConfig 定义告警配置
type MonitoringConfig struct {
	AlertWebhook string // 致命错误告警的 Webhook 地址，留空只写日志
}

// Config 是系统配置的根结构体，包含所有子系统的配置
type Config struct {
	Server  ServerConfig
	CORS    CORSConfig
	Log     LogConfig
	Google  GoogleConfig
	Gemini  GeminiConfig
	Drive   DriveConfig
	Triage  TriageConfig
	Redis   RedisConfig
	Trigger TriggerConfig
	Monitor MonitoringConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: MAILTRIAGE_
// 例如: MAILTRIAGE_GOOGLE_CLIENT_ID, MAILTRIAGE_GEMINI_API_KEY
//
// 返回值:
//   - *Config: 加载成功的配置对象
//   - error: 配置验证失败时返回错误
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("mailtriage")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.client_secret", "")
	v.SetDefault("google.token_url", "")
	v.SetDefault("google.account", "me")
	v.SetDefault("google.operator_addr", "")
	v.SetDefault("google.operator_name", "")
	v.SetDefault("google.refresh_token", "")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.timeout", "60s")
	v.SetDefault("gemini.rate_per_minute", 30)
	v.SetDefault("gemini.burst", 5)
	v.SetDefault("gemini.breaker_failures", 5)
	v.SetDefault("gemini.breaker_timeout", "30s")
	v.SetDefault("drive.page_size", 10)
	v.SetDefault("drive.max_file_bytes", 10*1024*1024)
	v.SetDefault("drive.export_mime", "application/pdf")
	v.SetDefault("drive.cache_ttl", "0s")
	v.SetDefault("triage.max_messages", 50)
	v.SetDefault("triage.workers", 1)
	v.SetDefault("triage.ignore_senders", "")
	v.SetDefault("triage.html_fallback", false)
	v.SetDefault("triage.content_filter", false)
	v.SetDefault("triage.attach_files", true)
	v.SetDefault("triage.prompts_dir", "")
	v.SetDefault("triage.schedule", "0s")
	v.SetDefault("triage.run_timeout", "0s")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.token_key", "refresh_token")
	v.SetDefault("trigger.jwt_secret", "")
	v.SetDefault("trigger.issuer", "mailtriage")
	v.SetDefault("trigger.expiry", "24h")
	v.SetDefault("monitoring.alert_webhook", "")

	operator := strings.TrimSpace(v.GetString("google.operator_addr"))
	if err := domain.ValidateOperatorAddress(operator); err != nil {
		return nil, fmt.Errorf("invalid google.operator_addr %q: %w", operator, err)
	}

	geminiTimeout, err := parseDuration(v, "gemini.timeout")
	if err != nil {
		return nil, err
	}
	breakerTimeout, err := parseDuration(v, "gemini.breaker_timeout")
	if err != nil {
		return nil, err
	}
	schedule, err := parseDuration(v, "triage.schedule")
	if err != nil {
		return nil, err
	}
	runTimeout, err := parseDuration(v, "triage.run_timeout")
	if err != nil {
		return nil, err
	}
	driveCacheTTL, err := parseDuration(v, "drive.cache_ttl")
	if err != nil {
		return nil, err
	}
	triggerExpiry, err := parseDuration(v, "trigger.expiry")
	if err != nil {
		return nil, err
	}

	workers := v.GetInt("triage.workers")
	if workers <= 0 {
		workers = 1
	}

	maxMessages := v.GetInt64("triage.max_messages")
	if maxMessages <= 0 {
		return nil, fmt.Errorf("triage.max_messages must be positive")
	}

	pageSize := v.GetInt("drive.page_size")
	if pageSize <= 0 {
		pageSize = 10
	}

	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	jwtSecret := v.GetString("trigger.jwt_secret")
	if jwtSecret != "" && len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: trigger JWT secret must be at least 32 characters long")
	}

	operatorName := v.GetString("google.operator_name")
	if operatorName == "" {
		operatorName = strings.SplitN(operator, "@", 2)[0]
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
		Google: GoogleConfig{
			ClientID:     v.GetString("google.client_id"),
			ClientSecret: v.GetString("google.client_secret"),
			TokenURL:     v.GetString("google.token_url"),
			Account:      v.GetString("google.account"),
			OperatorAddr: operator,
			OperatorName: operatorName,
			RefreshToken: v.GetString("google.refresh_token"),
		},
		Gemini: GeminiConfig{
			APIKey:          v.GetString("gemini.api_key"),
			Model:           v.GetString("gemini.model"),
			BaseURL:         strings.TrimRight(v.GetString("gemini.base_url"), "/"),
			Timeout:         geminiTimeout,
			RatePerMinute:   v.GetInt("gemini.rate_per_minute"),
			Burst:           v.GetInt("gemini.burst"),
			BreakerFailures: v.GetInt("gemini.breaker_failures"),
			BreakerTimeout:  breakerTimeout,
		},
		Drive: DriveConfig{
			PageSize:     pageSize,
			MaxFileBytes: v.GetInt64("drive.max_file_bytes"),
			ExportMime:   v.GetString("drive.export_mime"),
			CacheTTL:     driveCacheTTL,
		},
		Triage: TriageConfig{
			MaxMessages:   maxMessages,
			Workers:       workers,
			IgnoreSenders: parseList(v.GetString("triage.ignore_senders")),
			HTMLFallback:  v.GetBool("triage.html_fallback"),
			ContentFilter: v.GetBool("triage.content_filter"),
			AttachFiles:   v.GetBool("triage.attach_files"),
			PromptsDir:    v.GetString("triage.prompts_dir"),
			Schedule:      schedule,
			RunTimeout:    runTimeout,
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			TokenKey: v.GetString("redis.token_key"),
		},
		Trigger: TriggerConfig{
			JWTSecret: jwtSecret,
			Issuer:    v.GetString("trigger.issuer"),
			Expiry:    triggerExpiry,
		},
		Monitor: MonitoringConfig{
			AlertWebhook: v.GetString("monitoring.alert_webhook"),
		},
	}

	return cfg, nil
}

// parseDuration 读取并解析时长配置项
func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
//
// 参数:
//   - value: 逗号分隔的字符串，如 "item1,item2,item3"
//
// 返回值:
//   - []string: 解析后的字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env
//
// 文件不存在时静默跳过，已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
