package drive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"mailtriage/backend/internal/domain"
)

func newTestStore(t *testing.T, maxBytes int64, handler http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := New(context.Background(), srv.Client(), Options{PageSize: 5, MaxFileBytes: maxBytes}, option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return s
}

func TestBuildNameQuery(t *testing.T) {
	t.Run("每个关键词都必须出现", func(t *testing.T) {
		q := BuildNameQuery([]string{"attendance", " report ", ""})
		assert.Equal(t,
			"name contains 'attendance' and name contains 'report' and "+
				"mimeType != 'application/vnd.google-apps.folder' and trashed = false",
			q)
	})

	t.Run("转义单引号", func(t *testing.T) {
		q := BuildNameQuery([]string{"john's"})
		assert.True(t, strings.HasPrefix(q, `name contains 'john\'s'`), q)
	})

	t.Run("没有关键词时仍排除文件夹", func(t *testing.T) {
		q := BuildNameQuery(nil)
		assert.Equal(t, "mimeType != 'application/vnd.google-apps.folder' and trashed = false", q)
	})
}

func TestStore_Search(t *testing.T) {
	s := newTestStore(t, 0, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/files"), r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "name contains 'report'", q.Get("q"))
		assert.Equal(t, SearchFields, q.Get("fields"))
		assert.Equal(t, SearchOrder, q.Get("orderBy"))
		assert.Equal(t, "5", q.Get("pageSize"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files":[
			{"id":"f1","name":"report.pdf","mimeType":"application/pdf","webViewLink":"https://drive/f1"},
			{"id":"f2","name":"report","mimeType":"application/vnd.google-apps.document"}
		]}`))
	})

	files, err := s.Search(context.Background(), "name contains 'report'")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, domain.DriveFile{ID: "f1", Name: "report.pdf", MimeType: "application/pdf", WebViewLink: "https://drive/f1"}, files[0])
	assert.True(t, files[1].IsGoogleNative())
}

func TestStore_DownloadAndExport(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/files/f1"):
			assert.Equal(t, "media", r.URL.Query().Get("alt"))
			_, _ = w.Write([]byte("%PDF-1.4 body"))
		case strings.HasSuffix(r.URL.Path, "/files/f2/export"):
			assert.Equal(t, "application/pdf", r.URL.Query().Get("mimeType"))
			_, _ = w.Write([]byte("%PDF exported"))
		case strings.HasSuffix(r.URL.Path, "/files/missing"):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"File not found"}}`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}

	t.Run("下载与导出", func(t *testing.T) {
		s := newTestStore(t, 1024, handler)

		data, err := s.Download(context.Background(), "f1")
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 body", string(data))

		data, err = s.Export(context.Background(), "f2", "application/pdf")
		require.NoError(t, err)
		assert.Equal(t, "%PDF exported", string(data))
	})

	t.Run("超过大小上限", func(t *testing.T) {
		s := newTestStore(t, 4, handler)
		_, err := s.Download(context.Background(), "f1")
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})

	t.Run("API 错误", func(t *testing.T) {
		s := newTestStore(t, 1024, handler)
		_, err := s.Download(context.Background(), "missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
		assert.Contains(t, err.Error(), "File not found")
	})
}
