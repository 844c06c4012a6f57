// Package region holds the annotated-rectangle entity and the store that
// keeps a book's flat region list and its per-page index in lock-step.
package region

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jackzampolin/clickread/internal/geom"
)

// Category classifies the span a region covers.
type Category string

const (
	Word     Category = "Word"
	Sentence Category = "Sentence"
	FullText Category = "FullText"
)

// Categories lists the valid categories in display order.
var Categories = []Category{Word, Sentence, FullText}

// ParseCategory accepts the canonical names, the "Full Text" label written by
// older tooling, and any casing of those.
func ParseCategory(s string) (Category, error) {
	key := strings.ToLower(strings.Join(strings.Fields(s), ""))
	switch key {
	case "word":
		return Word, nil
	case "sentence":
		return Sentence, nil
	case "fulltext":
		return FullText, nil
	}
	return "", validationf("unknown category %q", s)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case Word, Sentence, FullText:
		return true
	}
	return false
}

// Label is the form persisted in book records.
func (c Category) Label() string {
	if c == FullText {
		return "Full Text"
	}
	return string(c)
}

func (c Category) String() string { return string(c) }

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Region is one annotated rectangle on a page.
type Region struct {
	// ID is generated once at creation. Records loaded from older files may
	// have none; such regions can be displayed but not updated or deleted.
	ID       string       `json:"id"`
	PageKey  string       `json:"page_key"`
	Text     string       `json:"text"`
	Category Category     `json:"category"`
	Geometry geom.Corners `json:"geometry"`

	Translation      string `json:"translation"`
	EnglishAudioFile string `json:"english_audio_file,omitempty"`
	ChineseAudioFile string `json:"chinese_audio_file,omitempty"`
}

// DisplayTranslation is what an edit form shows: the translation, or the
// source text when no translation has been entered. Never persist it.
func (r Region) DisplayTranslation() string {
	if r.Translation == "" {
		return r.Text
	}
	return r.Translation
}

// Rect returns the geometry in origin/size form for the drawing surface.
func (r Region) Rect() geom.Rect {
	origin, size := geom.FromCorners(r.Geometry)
	return geom.Rect{Origin: origin, Size: size}
}

func (r Region) String() string {
	return fmt.Sprintf("%s[%s %q %s]", r.ID, r.Category, r.Text, r.Geometry)
}

// Patch carries a partial update. Nil fields are left unchanged.
type Patch struct {
	Text             *string       `json:"text,omitempty"`
	Translation      *string       `json:"translation,omitempty"`
	Category         *Category     `json:"category,omitempty"`
	Geometry         *geom.Corners `json:"geometry,omitempty"`
	EnglishAudioFile *string       `json:"english_audio_file,omitempty"`
	ChineseAudioFile *string       `json:"chinese_audio_file,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Text == nil && p.Translation == nil && p.Category == nil &&
		p.Geometry == nil && p.EnglishAudioFile == nil && p.ChineseAudioFile == nil
}

// normalized validates the patch and returns a copy with text cleaned and
// geometry normalized.
func (p Patch) normalized() (Patch, error) {
	if p.Text != nil {
		text := CleanText(*p.Text)
		if text == "" {
			return p, validationf("text is required")
		}
		p.Text = &text
	}
	if p.Translation != nil {
		tr := CleanText(*p.Translation)
		p.Translation = &tr
	}
	if p.Category != nil && !p.Category.Valid() {
		return p, validationf("unknown category %q", *p.Category)
	}
	if p.Geometry != nil {
		if p.Geometry.Degenerate() {
			return p, validationf("geometry %s has no area", *p.Geometry)
		}
		g := p.Geometry.Normalize()
		p.Geometry = &g
	}
	return p, nil
}

// apply writes the patch into r. The patch must already be normalized.
func (p Patch) apply(r *Region) {
	if p.Text != nil {
		r.Text = *p.Text
	}
	if p.Translation != nil {
		r.Translation = *p.Translation
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Geometry != nil {
		r.Geometry = *p.Geometry
	}
	if p.EnglishAudioFile != nil {
		r.EnglishAudioFile = *p.EnglishAudioFile
	}
	if p.ChineseAudioFile != nil {
		r.ChineseAudioFile = *p.ChineseAudioFile
	}
}

// CleanText trims surrounding whitespace and applies NFC normalization so
// that visually identical text compares equal.
func CleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
