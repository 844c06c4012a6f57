// Package library keeps the books of a home directory open for the HTTP
// service and serializes every mutation of one book.
package library

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jackzampolin/clickread/internal/book"
	"github.com/jackzampolin/clickread/internal/home"
	"github.com/jackzampolin/clickread/internal/region"
)

// ErrExists is returned when creating a book whose record already exists.
var ErrExists = errors.New("book already exists")

// Summary describes one book record in the library.
type Summary struct {
	ID      string      `json:"id"`
	Path    string      `json:"path"`
	Layout  book.Layout `json:"layout,omitempty"`
	Pages   int         `json:"pages"`
	Regions int         `json:"regions"`
	Error   string      `json:"error,omitempty"`
}

type entry struct {
	mu   sync.Mutex
	book *book.Book
}

// Library caches opened books by id. Each book has its own mutex; View and
// Update hold it for the duration of the callback, so at most one request
// touches a book at a time.
type Library struct {
	home   *home.Dir
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a library over the books in h.
func New(h *home.Dir, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		home:    h,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Home returns the library's home directory.
func (l *Library) Home() *home.Dir {
	return l.home
}

// List reports every book record in the books directory. Records that fail
// to load are listed with their error.
func (l *Library) List() ([]Summary, error) {
	files, err := os.ReadDir(l.home.BooksDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []Summary{}, nil
		}
		return nil, fmt.Errorf("failed to read books directory: %w", err)
	}

	var ids []string
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)

	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		s := Summary{ID: id, Path: l.home.BookPath(id)}
		err := l.View(id, func(b *book.Book) error {
			s.Layout = b.Layout
			s.Pages = b.Store.PageCount()
			s.Regions = b.Store.Len()
			return nil
		})
		if err != nil {
			s.Error = err.Error()
		}
		out = append(out, s)
	}
	return out, nil
}

// View calls fn with the book locked. fn must not retain the book.
func (l *Library) View(id string, fn func(*book.Book) error) error {
	e, err := l.open(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.book)
}

// Update calls fn with the book locked and saves the book when fn succeeds.
// If the save fails the in-memory change stands and the error is returned;
// the next successful save writes it. If fn fails the book is reloaded from
// disk, so anything fn changed before failing is discarded.
func (l *Library) Update(id string, fn func(*book.Book) error) error {
	e, err := l.open(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := fn(e.book); err != nil {
		l.reload(id, e)
		return err
	}
	if err := e.book.Save(); err != nil {
		l.logger.Error("write-through failed", "book_id", id, "error", err)
		return err
	}
	if e.book.Layout == book.LayoutFlat {
		// Flat records only know pages through their regions.
		if n := e.book.Store.DropEmptyPages(); n > 0 {
			l.logger.Debug("dropped empty pages", "book_id", id, "pages", n)
		}
	}
	return nil
}

// reload replaces a cached book with its file on disk. Changes that were
// never saved are lost. If the file cannot be read the entry is dropped and
// the next access reports the error.
func (l *Library) reload(id string, e *entry) {
	b, err := book.Load(e.book.Path, l.logger)
	if err != nil {
		l.logger.Warn("failed to reload book, dropping from cache", "book_id", id, "error", err)
		l.mu.Lock()
		if l.entries[id] == e {
			delete(l.entries, id)
		}
		l.mu.Unlock()
		return
	}
	e.book = b
}

// Create writes a new empty book record with the given pages and caches it.
// A flat record has nowhere to keep pages without regions, so a flat book
// cannot be created with pages.
func (l *Library) Create(id string, layout book.Layout, pages []book.PageInfo) (*book.Book, error) {
	if err := home.ValidateBookID(id); err != nil {
		return nil, err
	}
	if layout == book.LayoutFlat && len(pages) > 0 {
		return nil, fmt.Errorf("%w: a flat book cannot hold empty pages, use the paged layout", region.ErrValidation)
	}
	path := l.home.BookPath(id)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, id)
	}

	b := book.New(path, id, layout, l.logger)
	for _, p := range pages {
		b.AddPage(p.Number, p.Image)
	}
	if err := b.Save(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.entries[id] = &entry{book: b}
	l.mu.Unlock()

	l.logger.Info("book created", "book_id", id, "layout", layout, "pages", len(pages))
	return b, nil
}

// Forget drops a cached book so the next access reloads it from disk.
func (l *Library) Forget(id string) {
	l.mu.Lock()
	delete(l.entries, id)
	l.mu.Unlock()
}

func (l *Library) open(id string) (*entry, error) {
	if err := home.ValidateBookID(id); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[id]; ok {
		return e, nil
	}

	path := l.home.BookPath(id)
	b, err := book.Load(path, l.logger)
	if err != nil {
		if errors.Is(err, region.ErrNotFound) {
			return nil, fmt.Errorf("%w: book %s", region.ErrNotFound, id)
		}
		return nil, err
	}
	e := &entry{book: b}
	l.entries[id] = e
	l.logger.Debug("book opened", "book_id", id, "regions", b.Store.Len())
	return e, nil
}
