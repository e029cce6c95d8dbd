package attachments

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/starford/hashnote/internal/storage"
)

// Local keeps attachments in a directory served by the HTTP server.
type Local struct {
	fs        storage.Provider
	publicURL string
}

var _ Backend = (*Local)(nil)

// NewLocal stores files through fs and reports URLs under publicURL.
func NewLocal(fs storage.Provider, publicURL string) *Local {
	return &Local{fs: fs, publicURL: strings.TrimRight(publicURL, "/")}
}

// Put writes data to key.
func (l *Local) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if err := l.fs.Write(key, data); err != nil {
		return "", err
	}
	return l.publicURL + "/" + path.Clean(key), nil
}

// Handler serves stored files. Directory listings are not exposed.
func (l *Local) Handler() http.Handler {
	files := http.FileServer(http.Dir(l.fs.Root()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "" || strings.HasSuffix(name, "/") || !l.fs.Exists(name) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}
