package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMimeType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		want        string
	}{
		{"xlsx mapped", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/xlsx"},
		{"params dropped", "application/pdf; charset=binary", "application/pdf"},
		{"unknown passes through", "text/csv", "text/csv"},
		{"case folded", "Application/PDF", "application/pdf"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MimeType(tt.contentType))
		})
	}
}

func TestDownload_SavesFile(t *testing.T) {
	t.Parallel()

	var accept atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept.Store(r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		_, _ = w.Write([]byte("PK\x03\x04sheet"))
	}))
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	c := New(ts.URL, WithSaver(DirSaver{Dir: dir}))

	dl, err := c.Download(context.Background(), "reports/1/export", "report.xlsx", "")
	require.NoError(t, err)
	assert.Equal(t, "*/*", accept.Load())
	assert.Equal(t, "application/xlsx", dl.MimeType)
	assert.Equal(t, filepath.Join(dir, "report.xlsx"), dl.Path)
	assert.Equal(t, len("PK\x03\x04sheet"), dl.Size)

	data, err := os.ReadFile(dl.Path)
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04sheet", string(data))

	_, err = os.Stat(dl.Path + ".part")
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, c.Ledger().Len(), "downloads bypass the ledger")
}

func TestDownload_MarksResponseBinary(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"users":[{"id":1}]}`))
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL, WithSaver(&recordingSaver{}))
	var seen []bool
	c.RegisterResponseMiddleware(func(resp *Response) {
		seen = append(seen, resp.Binary)
	})

	_, err := c.Download(context.Background(), "export", "users.json", "")
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, seen)
}

func TestDownload_ExplicitTypeWins(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("%PDF"))
	}))
	t.Cleanup(ts.Close)

	saver := &recordingSaver{}
	c := New(ts.URL, WithSaver(saver))

	dl, err := c.Download(context.Background(), "invoice", "invoice.pdf", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", dl.MimeType)
	assert.Equal(t, "application/pdf", saver.mimeType)
	assert.Equal(t, "invoice.pdf", saver.name)
}

func TestDownload_Errors(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("x"))
	}))
	t.Cleanup(ts.Close)

	c := New(ts.URL, WithSaver(DirSaver{Dir: t.TempDir()}))

	_, err := c.Download(context.Background(), "missing", "a.txt", "")
	assert.True(t, IsNotFound(err))

	for _, name := range []string{"", "..", "../escape.txt", "/etc/passwd"} {
		_, err = c.Download(context.Background(), "ok", name, "")
		assert.Error(t, err, "name %q", name)
	}
}

type recordingSaver struct {
	name     string
	mimeType string
}

func (s *recordingSaver) Save(name, mimeType string, data []byte) (string, error) {
	s.name = name
	s.mimeType = mimeType
	return "memory://" + name, nil
}
