// Package book loads and saves a book's JSON record and rebuilds the region
// store from it.
//
// Two top-level shapes are read:
//
//	flat:  [ {Text, Category, Image, X1, Y1, X2, Y2, ...}, ... ]
//	paged: { "metadata": {"bookId": ...}, "pages": [ {"pageNumber", "image", "elements"|"regions"} ] }
//
// A book is written back in the shape it was read in.
package book

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jackzampolin/clickread/internal/region"
)

// Layout is the top-level shape of a book record.
type Layout string

const (
	LayoutFlat  Layout = "flat"
	LayoutPaged Layout = "paged"
)

// ParseLayout accepts "flat" or "paged".
func ParseLayout(s string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(s))) {
	case LayoutFlat:
		return LayoutFlat, nil
	case LayoutPaged:
		return LayoutPaged, nil
	}
	return "", fmt.Errorf("%w: unknown layout %q", region.ErrValidation, s)
}

// PageInfo describes one page of a paged book.
type PageInfo struct {
	Number int    `json:"pageNumber"`
	Image  string `json:"image"`
}

// Key is the page key regions on this page carry.
func (p PageInfo) Key() string {
	if p.Image != "" {
		return p.Image
	}
	return fmt.Sprintf("page_%04d", p.Number)
}

// Book is one loaded book record.
type Book struct {
	ID       string
	Path     string
	Layout   Layout
	Metadata map[string]any
	Store    *region.Store

	pages  []PageInfo
	logger *slog.Logger
}

// New creates an empty book that will be saved to path.
func New(path, id string, layout Layout, logger *slog.Logger) *Book {
	if logger == nil {
		logger = slog.Default()
	}
	if id == "" {
		id = idFromPath(path)
	}
	return &Book{
		ID:       id,
		Path:     path,
		Layout:   layout,
		Metadata: map[string]any{},
		Store:    region.NewStore(logger),
		logger:   logger,
	}
}

// AddPage registers a page and returns its key. Pages are kept in the order
// added.
func (b *Book) AddPage(number int, image string) string {
	p := PageInfo{Number: number, Image: image}
	key := p.Key()
	if b.Store.RegisterPage(key) {
		b.pages = append(b.pages, p)
	}
	return key
}

// Pages returns the book's pages in order. Pages that only exist because a
// region names them are numbered by position.
func (b *Book) Pages() []PageInfo {
	known := make(map[string]PageInfo, len(b.pages))
	for _, p := range b.pages {
		known[p.Key()] = p
	}
	keys := b.Store.Pages()
	out := make([]PageInfo, 0, len(keys))
	for i, key := range keys {
		if p, ok := known[key]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, PageInfo{Number: i + 1, Image: key})
	}
	return out
}

// Load reads and parses the book record at path.
func Load(path string, logger *slog.Logger) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: book file %s", region.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read book: %w", err)
	}
	b, err := Parse(data, path, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return b, nil
}

// Parse decodes a book record. path is recorded for later saves and used to
// derive the id when the record carries none.
func Parse(data []byte, path string, logger *slog.Logger) (*Book, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", region.ErrFormat)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", region.ErrFormat, err)
	}
	if err := validateShape(doc); err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(data)
	switch {
	case root.IsArray():
		return parseFlat(root, path, logger)
	case root.IsObject() && root.Get("pages").IsArray():
		return parsePaged(root, path, logger)
	}
	return nil, fmt.Errorf("%w: unrecognized top-level shape", region.ErrFormat)
}

func parseFlat(root gjson.Result, path string, logger *slog.Logger) (*Book, error) {
	b := New(path, "", LayoutFlat, logger)

	var regions []region.Region
	for i, rec := range root.Array() {
		r, err := decodeRecord(rec, "")
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		regions = append(regions, r)
	}
	if err := b.Store.Load(regions, nil); err != nil {
		return nil, err
	}

	b.logLoaded()
	return b, nil
}

func parsePaged(root gjson.Result, path string, logger *slog.Logger) (*Book, error) {
	b := New(path, root.Get("metadata.bookId").String(), LayoutPaged, logger)

	if meta := root.Get("metadata"); meta.IsObject() {
		if err := json.Unmarshal([]byte(meta.Raw), &b.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata: %v", region.ErrFormat, err)
		}
	}

	var (
		regions []region.Region
		keys    []string
		seen    = make(map[string]struct{})
	)
	for i, page := range root.Get("pages").Array() {
		info := PageInfo{
			Number: int(page.Get("pageNumber").Int()),
			Image:  page.Get("image").String(),
		}
		if info.Number == 0 {
			info.Number = i + 1
		}
		key := info.Key()
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate page %q", region.ErrFormat, key)
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
		b.pages = append(b.pages, info)

		records := page.Get("elements")
		if !records.Exists() {
			records = page.Get("regions")
		}
		for j, rec := range records.Array() {
			r, err := decodeRecord(rec, key)
			if err != nil {
				return nil, fmt.Errorf("page %d record %d: %w", info.Number, j, err)
			}
			regions = append(regions, r)
		}
	}
	if err := b.Store.Load(regions, keys); err != nil {
		return nil, err
	}

	b.logLoaded()
	return b, nil
}

func (b *Book) logLoaded() {
	b.logger.Debug("book loaded",
		"book_id", b.ID,
		"layout", b.Layout,
		"pages", b.Store.PageCount(),
		"regions", b.Store.Len())
}

type pagedDoc struct {
	Metadata map[string]any `json:"metadata"`
	Pages    []pagedPage    `json:"pages"`
}

type pagedPage struct {
	PageNumber int      `json:"pageNumber"`
	Image      string   `json:"image"`
	Elements   []Record `json:"elements"`
}

// Marshal renders the book in its layout with two-space indentation and
// non-ASCII text left unescaped.
func (b *Book) Marshal() ([]byte, error) {
	var doc any
	switch b.Layout {
	case LayoutPaged:
		meta := make(map[string]any, len(b.Metadata)+1)
		for k, v := range b.Metadata {
			meta[k] = v
		}
		meta["bookId"] = b.ID

		pd := pagedDoc{Metadata: meta, Pages: []pagedPage{}}
		for _, p := range b.Pages() {
			regions, err := b.Store.PageByKey(p.Key())
			if err != nil {
				return nil, err
			}
			pp := pagedPage{PageNumber: p.Number, Image: p.Image, Elements: make([]Record, 0, len(regions))}
			for _, r := range regions {
				pp.Elements = append(pp.Elements, NewRecord(r))
			}
			pd.Pages = append(pd.Pages, pp)
		}
		doc = pd
	default:
		elements := b.Store.Elements()
		records := make([]Record, 0, len(elements))
		for _, r := range elements {
			records = append(records, NewRecord(r))
		}
		doc = records
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode book: %w", err)
	}
	return buf.Bytes(), nil
}

// Save replaces the book file with the current contents. The new contents
// are written to a temporary file in the same directory and renamed over
// the old one, so a failed save leaves the previous file intact.
func (b *Book) Save() error {
	if err := b.Store.Check(); err != nil {
		return fmt.Errorf("refusing to save %s: %w", b.ID, err)
	}
	data, err := b.Marshal()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(b.Path, data); err != nil {
		return fmt.Errorf("failed to save book %s: %w", b.ID, err)
	}
	b.logger.Debug("book saved", "book_id", b.ID, "path", b.Path, "regions", b.Store.Len())
	return nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func idFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
