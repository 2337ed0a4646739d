package output

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"invysia-calendar/internal/templates"
)

const (
	PromptsFile = "prompts.txt"

	minSuffix   = 100
	maxSuffix   = 999
	randomTries = 32
)

var ErrExhausted = errors.New("output: no free folder name")

type Options struct {
	Root string
	Year int
	Rand *rand.Rand
}

// Store allocates run folders under Root and writes run artifacts into them.
type Store struct {
	root string
	year int

	mu  sync.Mutex
	rnd *rand.Rand
}

type Folder struct {
	Name string
	Path string
	year int
}

func NewStore(opts Options) (*Store, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("output: ensure root: %w", err)
	}

	year := opts.Year
	if year <= 0 {
		year = templates.DefaultYear
	}

	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Store{root: root, year: year, rnd: rnd}, nil
}

// Allocate creates a fresh output_<NNN> folder. Random names are tried first;
// os.Mkdir fails on an existing name, so two runs never share a folder.
func (s *Store) Allocate() (Folder, error) {
	for i := 0; i < randomTries; i++ {
		folder, err := s.tryCreate(s.draw())
		if err == nil {
			return folder, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return Folder{}, err
		}
	}

	for n := minSuffix; n <= maxSuffix; n++ {
		folder, err := s.tryCreate(n)
		if err == nil {
			return folder, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return Folder{}, err
		}
	}

	return Folder{}, ErrExhausted
}

func (s *Store) draw() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return minSuffix + s.rnd.Intn(maxSuffix-minSuffix+1)
}

func (s *Store) tryCreate(n int) (Folder, error) {
	name := fmt.Sprintf("output_%03d", n)
	path := filepath.Join(s.root, name)
	if err := os.Mkdir(path, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Folder{}, err
		}
		return Folder{}, fmt.Errorf("output: create folder: %w", err)
	}
	return Folder{Name: name, Path: path, year: s.year}, nil
}

func (f Folder) PromptsPath() string {
	return filepath.Join(f.Path, PromptsFile)
}

func (f Folder) ImagePath(index int) string {
	return filepath.Join(f.Path, templates.FileName(index, f.year))
}

// WritePrompts stores the batch one prompt per line, in order.
func (s *Store) WritePrompts(ctx context.Context, folder Folder, prompts []string) error {
	var b strings.Builder
	for _, p := range prompts {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return s.WriteFile(ctx, folder.PromptsPath(), []byte(b.String()))
}

// WriteFile creates any missing parent directories and writes data to path.
func (s *Store) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(path) == "" {
		return errors.New("output: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("output: ensure directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("output: write file: %w", err)
	}
	return nil
}
