package httpclient

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/servkit/restsync/pkg/util"
)

// headersToType maps response content types to the type a saved file is
// labelled with. Content types not listed are used unchanged.
var headersToType = map[string]string{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": "application/xlsx",
}

// MimeType maps a Content-Type header value to the type used for a saved
// download. Parameters such as charset are dropped.
func MimeType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.ToLower(contentType))
	}
	if mapped, ok := headersToType[mediaType]; ok {
		return mapped
	}
	return mediaType
}

// Saver persists downloaded content on the client side.
type Saver interface {
	// Save writes data under name and returns where it ended up.
	Save(name, mimeType string, data []byte) (string, error)
}

// DirSaver writes downloads into Dir.
type DirSaver struct {
	Dir string
}

// Save implements Saver.
func (s DirSaver) Save(name, _ string, data []byte) (string, error) {
	safe, ok := util.SafeFileName(name)
	if !ok {
		return "", fmt.Errorf("invalid download name %q", name)
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, safe)
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return path, nil
}

func binary(rc *requestConfig) {
	rc.binary = true
}

// Download describes a saved file.
type Download struct {
	Name     string
	MimeType string
	Path     string
	Size     int
	Response *Response
}

// Download fetches binary content from endpoint and hands it to the Saver
// under name. When mimeType is empty it is inferred from the Content-Type
// header. Downloads bypass the cache ledger but run all middleware; the
// response they see has Binary set.
func (c *Client) Download(ctx context.Context, endpoint, name, mimeType string) (*Download, error) {
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil, []RequestOption{Header("Accept", "*/*"), binary})
	if err != nil {
		return nil, err
	}
	if mimeType == "" {
		mimeType = MimeType(resp.Header.Get("Content-Type"))
	}
	path, err := c.saver.Save(name, mimeType, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to save download %q: %w", name, err)
	}
	c.log.Debug("download saved", "endpoint", endpoint, "path", path, "type", mimeType, "size", len(resp.Body))
	return &Download{
		Name:     name,
		MimeType: mimeType,
		Path:     path,
		Size:     len(resp.Body),
		Response: resp,
	}, nil
}
