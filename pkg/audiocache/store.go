package audiocache

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Store persists one audio asset per (namespace, slot).
type Store interface {
	Exists(namespace, slot string) bool
	Write(namespace, slot string, data []byte) error
	URL(namespace, slot string) string
}

// FileStore keeps assets under <dir>/<namespace>/<slot><ext> and serves them
// below /audio/.
type FileStore struct {
	dir     string
	baseURL string
	ext     string
}

func NewFileStore(dir, baseURL, ext string) *FileStore {
	if dir == "" {
		dir = "audio"
	}
	if ext == "" {
		ext = ".mp3"
	}
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), ext: ext}
}

func (f *FileStore) Dir() string { return f.dir }

func (f *FileStore) Path(namespace, slot string) string {
	return filepath.Join(f.dir, sanitize(namespace), sanitize(slot)+f.ext)
}

func (f *FileStore) Exists(namespace, slot string) bool {
	info, err := os.Stat(f.Path(namespace, slot))
	return err == nil && info.Size() > 0
}

// Write stores data atomically so concurrent readers never see a partial file.
func (f *FileStore) Write(namespace, slot string, data []byte) error {
	path := f.Path(namespace, slot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (f *FileStore) URL(namespace, slot string) string {
	return f.baseURL + "/audio/" + url.PathEscape(sanitize(namespace)) + "/" + url.PathEscape(sanitize(slot)+f.ext)
}

// Handler serves stored assets. Mount it at /audio/.
func (f *FileStore) Handler() http.Handler {
	return http.StripPrefix("/audio/", http.FileServer(http.Dir(f.dir)))
}

func sanitize(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "_"
	}
	var b strings.Builder
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
