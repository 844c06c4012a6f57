package home

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jackzampolin/clickread/internal/region"
)

const (
	// DefaultDirName is the default name for the clickread home directory.
	DefaultDirName = ".clickread"

	// BooksDirName is the subdirectory holding one JSON record per book.
	BooksDirName = "books"

	// ImagesDirName is the subdirectory holding page images, one directory
	// per book.
	ImagesDirName = "images"

	// AudioDirName is the subdirectory holding audio, by language then book.
	AudioDirName = "audio"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

var bookIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateBookID rejects ids that cannot be used as a file name.
func ValidateBookID(id string) error {
	if !bookIDPattern.MatchString(id) {
		return fmt.Errorf("%w: invalid book id %q", region.ErrValidation, id)
	}
	return nil
}

// Dir represents the clickread home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.clickread).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// BooksDir returns the directory holding book records.
func (d *Dir) BooksDir() string {
	return filepath.Join(d.path, BooksDirName)
}

// BookPath returns the record path for a book.
func (d *Dir) BookPath(bookID string) string {
	return filepath.Join(d.BooksDir(), bookID+".json")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.BooksDir(), d.ImagesRoot(), d.AudioRoot()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// ImagesRoot returns the directory holding every book's page images.
func (d *Dir) ImagesRoot() string {
	return filepath.Join(d.path, ImagesDirName)
}

// ImagesDir returns the directory for page images of a book.
func (d *Dir) ImagesDir(bookID string) string {
	return filepath.Join(d.ImagesRoot(), bookID)
}

// ImageName returns the file name of a rendered page. Page numbers are
// 1-indexed.
func ImageName(pageNum int) string {
	return fmt.Sprintf("page_%04d.png", pageNum)
}

// ImagePath returns the path to a page image by page key.
func (d *Dir) ImagePath(bookID, pageKey string) (string, error) {
	name := filepath.Base(pageKey)
	if name != pageKey || name == "." || name == ".." {
		return "", fmt.Errorf("%w: invalid page image %q", region.ErrValidation, pageKey)
	}
	return filepath.Join(d.ImagesDir(bookID), name), nil
}

// EnsureImagesDir creates the images directory for a book.
func (d *Dir) EnsureImagesDir(bookID string) error {
	return os.MkdirAll(d.ImagesDir(bookID), 0o755)
}

// OriginalsDir returns the directory for original PDF files of a book.
func (d *Dir) OriginalsDir(bookID string) string {
	return filepath.Join(d.ImagesDir(bookID), "originals")
}

// EnsureOriginalsDir creates the originals directory for a book's PDFs.
func (d *Dir) EnsureOriginalsDir(bookID string) error {
	return os.MkdirAll(d.OriginalsDir(bookID), 0o755)
}

// AudioRoot returns the directory holding all audio.
func (d *Dir) AudioRoot() string {
	return filepath.Join(d.path, AudioDirName)
}

// BookAudioDir returns the audio directory for a book in one language.
func (d *Dir) BookAudioDir(lang, bookID string) string {
	return filepath.Join(d.AudioRoot(), lang, bookID)
}

// AudioLocator resolves a book's audio references.
type AudioLocator struct {
	dir    *Dir
	bookID string
}

// Audio returns the audio locator for a book.
func (d *Dir) Audio(bookID string) *AudioLocator {
	return &AudioLocator{dir: d, bookID: bookID}
}

// Locate returns the stored path for an audio file name. Absolute paths
// are accepted when they exist under AudioRoot; bare names are looked up in
// the book's audio directory for lang. The returned path is what gets
// written to the region.
func (a *AudioLocator) Locate(lang, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: audio file name is required", region.ErrValidation)
	}
	var path string
	switch {
	case filepath.IsAbs(name):
		path = filepath.Clean(name)
		rel, err := filepath.Rel(a.dir.AudioRoot(), path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: audio file %q is outside %s", region.ErrValidation, name, a.dir.AudioRoot())
		}
	case filepath.Base(name) != name:
		return "", fmt.Errorf("%w: invalid audio file %q", region.ErrValidation, name)
	default:
		path = filepath.Join(a.dir.BookAudioDir(lang, a.bookID), name)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: audio file %s", region.ErrNotFound, path)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", region.ErrValidation, path)
	}
	return path, nil
}
