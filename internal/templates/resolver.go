package templates

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultRoot = "templates"
	DefaultYear = 2026
)

var (
	ErrNotFound    = errors.New("template not found")
	ErrAspectRatio = errors.New("invalid aspect ratio")
)

type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template not found: %s", e.Path)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Template is a base calendar page, loaded into memory.
type Template struct {
	Index    int
	Path     string
	Data     []byte
	MimeType string
}

type Options struct {
	Root string
	Year int
}

type Resolver struct {
	root string
	year int
}

func New(opts Options) *Resolver {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		root = DefaultRoot
	}

	year := opts.Year
	if year <= 0 {
		year = DefaultYear
	}

	return &Resolver{root: root, year: year}
}

// Path builds templates/<W_H>/<index>-<year>.png without touching the disk.
func (r *Resolver) Path(aspectRatio string, index int) string {
	dir := strings.ReplaceAll(strings.TrimSpace(aspectRatio), ":", "_")
	return filepath.Join(r.root, dir, FileName(index, r.year))
}

// FileName is the page naming convention shared by templates and outputs.
func FileName(index, year int) string {
	return fmt.Sprintf("%d-%d.png", index, year)
}

func (r *Resolver) Year() int {
	return r.year
}

func (r *Resolver) Resolve(aspectRatio string, index int) (Template, error) {
	if err := ValidateAspectRatio(aspectRatio); err != nil {
		return Template{}, err
	}

	path := r.Path(aspectRatio, index)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Template{}, &NotFoundError{Path: path}
		}
		return Template{}, fmt.Errorf("read template %s: %w", path, err)
	}

	return Template{
		Index:    index,
		Path:     path,
		Data:     data,
		MimeType: detectMime(data),
	}, nil
}

// ResolveAll loads pages 1..n in order and stops at the first failure.
func (r *Resolver) ResolveAll(aspectRatio string, n int) ([]Template, error) {
	out := make([]Template, 0, n)
	for i := 1; i <= n; i++ {
		tpl, err := r.Resolve(aspectRatio, i)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, nil
}

func ValidateAspectRatio(aspectRatio string) error {
	w, h, ok := strings.Cut(strings.TrimSpace(aspectRatio), ":")
	if !ok {
		return fmt.Errorf("%w: %q", ErrAspectRatio, aspectRatio)
	}
	for _, side := range []string{w, h} {
		n, err := strconv.Atoi(side)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: %q", ErrAspectRatio, aspectRatio)
		}
	}
	return nil
}

func detectMime(data []byte) string {
	mimeType := http.DetectContentType(data)
	if strings.Contains(mimeType, ";") {
		mimeType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	if mimeType == "" || mimeType == "application/octet-stream" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/png"
	}
	return mimeType
}
