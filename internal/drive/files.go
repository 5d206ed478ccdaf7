package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mailtriage/backend/internal/domain"
)

const (
	// SearchFields 检索结果返回的字段
	SearchFields = "files(id,name,mimeType,webViewLink)"
	// SearchOrder 最近修改的文件排在前面
	SearchOrder = "modifiedTime desc"
	// FolderMimeType 文件夹类型，检索时排除
	FolderMimeType = "application/vnd.google-apps.folder"
)

// ErrFileTooLarge 文件超过允许的下载大小
var ErrFileTooLarge = errors.New("file exceeds maximum download size")

// Options 文件检索参数
type Options struct {
	PageSize     int64
	MaxFileBytes int64
	Logger       *zap.Logger
}

// Store 基于 Drive API 的文件检索与下载
type Store struct {
	svc      *driveapi.Service
	pageSize int64
	maxBytes int64
	log      *zap.Logger
}

// New 使用已授权的 HTTP 客户端创建文件存储适配器
func New(ctx context.Context, client *http.Client, opts Options, clientOpts ...option.ClientOption) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	clientOpts = append([]option.ClientOption{option.WithHTTPClient(client)}, clientOpts...)
	svc, err := driveapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}
	return &Store{svc: svc, pageSize: pageSize, maxBytes: opts.MaxFileBytes, log: log}, nil
}

// BuildNameQuery 构造要求文件名包含全部关键词、排除文件夹和回收站的检索条件
//
// 参数:
//   - keywords: 关键词列表，空白项被忽略
//
// 返回值:
//   - string: Drive 检索表达式
func BuildNameQuery(keywords []string) string {
	var clauses []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("name contains '%s'", escapeQueryValue(kw)))
	}
	clauses = append(clauses,
		fmt.Sprintf("mimeType != '%s'", FolderMimeType),
		"trashed = false",
	)
	return strings.Join(clauses, " and ")
}

func escapeQueryValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// Search 执行检索，结果按修改时间倒序
func (s *Store) Search(ctx context.Context, query string) ([]domain.DriveFile, error) {
	resp, err := s.svc.Files.List().
		Q(query).
		Fields(googleapi.Field(SearchFields)).
		OrderBy(SearchOrder).
		PageSize(s.pageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapError("search files", err)
	}

	files := make([]domain.DriveFile, 0, len(resp.Files))
	for _, f := range resp.Files {
		files = append(files, domain.DriveFile{
			ID:          f.Id,
			Name:        f.Name,
			MimeType:    f.MimeType,
			WebViewLink: f.WebViewLink,
		})
	}
	s.log.Debug("drive search finished", zap.String("query", query), zap.Int("count", len(files)))
	return files, nil
}

// Download 下载普通文件的原始内容
func (s *Store) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := s.svc.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, wrapError("download file "+fileID, err)
	}
	defer resp.Body.Close()
	return s.readLimited(resp.Body, fileID)
}

// Export 把 Google 原生文档导出为指定类型
func (s *Store) Export(ctx context.Context, fileID, mimeType string) ([]byte, error) {
	resp, err := s.svc.Files.Export(fileID, mimeType).Context(ctx).Download()
	if err != nil {
		return nil, wrapError("export file "+fileID, err)
	}
	defer resp.Body.Close()
	return s.readLimited(resp.Body, fileID)
}

func (s *Store) readLimited(r io.Reader, fileID string) ([]byte, error) {
	if s.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", fileID, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("file %s: %w", fileID, ErrFileTooLarge)
	}
	return data, nil
}

func wrapError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.Code)
		}
		return fmt.Errorf("%s: drive api error %d: %s: %w", op, apiErr.Code, msg, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
