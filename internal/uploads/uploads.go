// Package uploads stores multipart image uploads on local disk under
// generated names and serves them back.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const MaxFileSize = 5 << 20

var (
	ErrUnsupportedType = errors.New("only image files are allowed")
	ErrTooLarge        = errors.New("file exceeds the 5MB limit")
)

var allowedExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save writes every file and returns the stored names in order. Files already
// written are removed if a later one fails.
func (s *Store) Save(files []*multipart.FileHeader) ([]string, error) {
	names := make([]string, 0, len(files))
	for _, fh := range files {
		name, err := s.save(fh)
		if err != nil {
			s.Remove(names...)
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func (s *Store) save(fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExt[ext] {
		return "", fmt.Errorf("%s: %w", fh.Filename, ErrUnsupportedType)
	}
	if fh.Size > MaxFileSize {
		return "", fmt.Errorf("%s: %w", fh.Filename, ErrTooLarge)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	name := uuid.NewString() + ext
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := io.Copy(dst, io.LimitReader(src, MaxFileSize+1)); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return name, dst.Close()
}

// Remove deletes stored files by name, ignoring ones that are already gone.
func (s *Store) Remove(names ...string) error {
	var errs []error
	for _, n := range names {
		if n == "" || filepath.Base(n) != n {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, n)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handler serves stored files; mount it with http.StripPrefix.
func (s *Store) Handler() http.Handler {
	fs := http.FileServer(http.Dir(s.dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
		fs.ServeHTTP(w, r)
	})
}
