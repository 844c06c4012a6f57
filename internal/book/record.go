package book

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jackzampolin/clickread/internal/geom"
	"github.com/jackzampolin/clickread/internal/region"
)

// Record is the persisted form of one region. Field order is the order
// written to disk.
type Record struct {
	Text             string `json:"Text"`
	Category         string `json:"Category"`
	Image            string `json:"Image"`
	X1               int    `json:"X1"`
	Y1               int    `json:"Y1"`
	X2               int    `json:"X2"`
	Y2               int    `json:"Y2"`
	EnglishAudioFile string `json:"English_Audio_File"`
	Translation      string `json:"中文翻譯"`
	ChineseAudioFile string `json:"Chinese_Audio_File"`
	ID               string `json:"id,omitempty"`
}

// NewRecord converts a region to its persisted form. The page key is written
// as the record's Image.
func NewRecord(r region.Region) Record {
	return Record{
		Text:             r.Text,
		Category:         r.Category.Label(),
		Image:            r.PageKey,
		X1:               r.Geometry.X1,
		Y1:               r.Geometry.Y1,
		X2:               r.Geometry.X2,
		Y2:               r.Geometry.Y2,
		EnglishAudioFile: r.EnglishAudioFile,
		Translation:      r.Translation,
		ChineseAudioFile: r.ChineseAudioFile,
		ID:               r.ID,
	}
}

// Field name variants seen in book files, canonical first.
var (
	textKeys        = []string{"Text", "text"}
	categoryKeys    = []string{"Category", "category"}
	imageKeys       = []string{"Image", "image"}
	translationKeys = []string{"中文翻譯", "translation"}
	englishKeys     = []string{"English_Audio_File", "audioFile"}
	chineseKeys     = []string{"Chinese_Audio_File"}
	idKeys          = []string{"id", "ID"}
)

// lookup returns the first non-null value among the variant keys.
func lookup(rec gjson.Result, keys []string) gjson.Result {
	for _, k := range keys {
		if v := rec.Get(k); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

// coordinate reads a corner value from the top-level upper-case field or
// the nested coordinates object. Fractional values are truncated.
func coordinate(rec gjson.Result, upper, lower string) (int, error) {
	v := rec.Get(upper)
	if !v.Exists() || v.Type == gjson.Null {
		v = rec.Get("coordinates." + lower)
	}
	switch v.Type {
	case gjson.Number:
		return int(v.Float()), nil
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s is not a number: %q", region.ErrFormat, upper, v.Str)
		}
		return int(f), nil
	}
	return 0, fmt.Errorf("%w: missing %s", region.ErrFormat, upper)
}

// decodeRecord maps one persisted record, in any known variant, to a
// region. pageKey overrides the record's own Image when non-empty.
func decodeRecord(rec gjson.Result, pageKey string) (region.Region, error) {
	if !rec.IsObject() {
		return region.Region{}, fmt.Errorf("%w: region record is not an object", region.ErrFormat)
	}

	var g geom.Corners
	var err error
	if g.X1, err = coordinate(rec, "X1", "x1"); err != nil {
		return region.Region{}, err
	}
	if g.Y1, err = coordinate(rec, "Y1", "y1"); err != nil {
		return region.Region{}, err
	}
	if g.X2, err = coordinate(rec, "X2", "x2"); err != nil {
		return region.Region{}, err
	}
	if g.Y2, err = coordinate(rec, "Y2", "y2"); err != nil {
		return region.Region{}, err
	}

	category := region.Word
	if raw := lookup(rec, categoryKeys).String(); raw != "" {
		if category, err = region.ParseCategory(raw); err != nil {
			return region.Region{}, fmt.Errorf("%w: unknown category %q", region.ErrFormat, raw)
		}
	}

	if pageKey == "" {
		pageKey = lookup(rec, imageKeys).String()
	}

	return region.Region{
		ID:               lookup(rec, idKeys).String(),
		PageKey:          pageKey,
		Text:             region.CleanText(lookup(rec, textKeys).String()),
		Category:         category,
		Geometry:         g.Normalize(),
		Translation:      region.CleanText(lookup(rec, translationKeys).String()),
		EnglishAudioFile: lookup(rec, englishKeys).String(),
		ChineseAudioFile: lookup(rec, chineseKeys).String(),
	}, nil
}
