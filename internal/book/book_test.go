package book

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/clickread/internal/geom"
	"github.com/jackzampolin/clickread/internal/region"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBook_AddSaveLoadDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book1.json")
	b := New(path, "", LayoutFlat, discardLogger())
	assert.Equal(t, "book1", b.ID)

	r, err := b.Store.AddRegion("p1", "cat", region.Word, geom.Corners{X1: 10, Y1: 10, X2: 50, Y2: 30}, "")
	require.NoError(t, err)
	require.Equal(t, 1, b.Store.Len())
	require.NoError(t, b.Save())

	loaded, err := Load(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, LayoutFlat, loaded.Layout)
	page, err := loaded.Store.PageByKey("p1")
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, r, page[0])

	require.NoError(t, loaded.Store.DeleteRegion("p1", r.ID))
	require.NoError(t, loaded.Save())

	empty, err := Load(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Store.Len())
	assert.Empty(t, empty.Store.Elements())
}

func TestBook_IdenticalContentSurvivesRoundTrip(t *testing.T) {
	for _, layout := range []Layout{LayoutFlat, LayoutPaged} {
		t.Run(string(layout), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "book.json")
			b := New(path, "b1", layout, discardLogger())
			b.AddPage(1, "p1")

			first, err := b.Store.AddRegion("p1", "the", region.Word, geom.Corners{X1: 0, Y1: 0, X2: 10, Y2: 10}, "")
			require.NoError(t, err)
			second, err := b.Store.AddRegion("p1", "the", region.Word, geom.Corners{X1: 20, Y1: 0, X2: 30, Y2: 10}, "")
			require.NoError(t, err)
			require.NotEqual(t, first.ID, second.ID)
			require.NoError(t, b.Save())

			loaded, err := Load(path, discardLogger())
			require.NoError(t, err)
			assert.Equal(t, layout, loaded.Layout)
			assert.Equal(t, []region.Region{first, second}, loaded.Store.Elements())
		})
	}
}

func TestBook_SaveFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.json")
	b := New(path, "b1", LayoutFlat, discardLogger())
	_, err := b.Store.AddRegion("page_1.png", "Full moon", region.FullText, geom.Corners{X1: 5, Y1: 6, X2: 7, Y2: 8}, "滿月")
	require.NoError(t, err)
	require.NoError(t, b.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "\n  {\n    \"Text\": \"Full moon\",")
	assert.Contains(t, text, `"Category": "Full Text"`)
	assert.Contains(t, text, `"中文翻譯": "滿月"`)
	assert.Contains(t, text, `"X1": 5`)
	assert.Less(t, strings.Index(text, `"Text"`), strings.Index(text, `"Category"`))
	assert.Less(t, strings.Index(text, `"Y2"`), strings.Index(text, `"English_Audio_File"`))
	assert.Less(t, strings.Index(text, `"Chinese_Audio_File"`), strings.Index(text, `"id"`))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")
}

func TestBook_SaveReplacesWholeFile(t *testing.T) {
	path := writeFile(t, "book.json", strings.Repeat(" ", 4096))
	b := New(path, "b1", LayoutFlat, discardLogger())
	require.NoError(t, b.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestLoad_FlatLegacyVariants(t *testing.T) {
	path := writeFile(t, "legacy.json", `[
  {"Text": "dog", "Category": "Word", "Image": "a.png", "X1": 1, "Y1": 2, "X2": 30, "Y2": 40, "中文翻譯": "狗", "English_Audio_File": "dog.mp3", "id": "r1"},
  {"text": "a cat sat", "category": "sentence", "image": "b.png", "X1": 50.7, "Y1": 60, "X2": 5, "Y2": 6, "translation": "貓坐著", "ID": "r2"},
  {"Text": "moon", "Category": "Full Text", "Image": "a.png", "X1": "3", "Y1": "4", "X2": "13", "Y2": "14"}
]`)

	b, err := Load(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, LayoutFlat, b.Layout)
	assert.Equal(t, "legacy", b.ID)
	assert.Equal(t, []string{"a.png", "b.png"}, b.Store.Pages())

	els := b.Store.Elements()
	require.Len(t, els, 3)

	assert.Equal(t, region.Region{
		ID: "r1", PageKey: "a.png", Text: "dog", Category: region.Word,
		Geometry:    geom.Corners{X1: 1, Y1: 2, X2: 30, Y2: 40},
		Translation: "狗", EnglishAudioFile: "dog.mp3",
	}, els[0])

	assert.Equal(t, "r2", els[1].ID)
	assert.Equal(t, region.Sentence, els[1].Category)
	assert.Equal(t, "貓坐著", els[1].Translation)
	assert.Equal(t, geom.Corners{X1: 5, Y1: 6, X2: 50, Y2: 60}, els[1].Geometry, "inverted corners are normalized")

	assert.Empty(t, els[2].ID)
	assert.Equal(t, region.FullText, els[2].Category)
	assert.Equal(t, geom.Corners{X1: 3, Y1: 4, X2: 13, Y2: 14}, els[2].Geometry)
}

func TestLoad_PagedShape(t *testing.T) {
	path := writeFile(t, "ignored.json", `{
  "metadata": {"bookId": "moon-book", "title": "Goodnight"},
  "pages": [
    {"pageNumber": 1, "image": "p1.png", "elements": [
      {"text": "moon", "category": "Word", "coordinates": {"x1": 10, "y1": 10, "x2": 50, "y2": 30}, "audioFile": "moon.mp3", "id": "m1"}
    ]},
    {"pageNumber": 2, "image": "p2.png", "regions": []},
    {"pageNumber": 3, "image": "p3.png", "regions": [
      {"Text": "room", "Category": "Word", "X1": 0, "Y1": 0, "X2": 4, "Y2": 4, "id": "m2"}
    ]}
  ]
}`)

	b, err := Load(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, LayoutPaged, b.Layout)
	assert.Equal(t, "moon-book", b.ID)
	assert.Equal(t, "Goodnight", b.Metadata["title"])
	assert.Equal(t, []string{"p1.png", "p2.png", "p3.png"}, b.Store.Pages())

	p1, err := b.Store.GetPage(0)
	require.NoError(t, err)
	require.Len(t, p1, 1)
	assert.Equal(t, "moon.mp3", p1[0].EnglishAudioFile)
	assert.Equal(t, geom.Corners{X1: 10, Y1: 10, X2: 50, Y2: 30}, p1[0].Geometry)

	p2, err := b.Store.GetPage(1)
	require.NoError(t, err)
	assert.Empty(t, p2)

	p3, err := b.Store.GetPage(2)
	require.NoError(t, err)
	require.Len(t, p3, 1)
	assert.Equal(t, "p3.png", p3[0].PageKey)
}

func TestLoad_BothShapesNormalizeAlike(t *testing.T) {
	flat := writeFile(t, "flat.json", `[
  {"Text": "sun", "Category": "Word", "Image": "p1.png", "X1": 1, "Y1": 1, "X2": 9, "Y2": 9, "中文翻譯": "太陽", "id": "s1"}
]`)
	paged := writeFile(t, "paged.json", `{"pages": [{"pageNumber": 1, "image": "p1.png", "elements": [
  {"Text": "sun", "Category": "Word", "Image": "p1.png", "X1": 1, "Y1": 1, "X2": 9, "Y2": 9, "中文翻譯": "太陽", "id": "s1"}
]}]}`)

	a, err := Load(flat, discardLogger())
	require.NoError(t, err)
	b, err := Load(paged, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, a.Store.Elements(), b.Store.Elements())
	assert.Equal(t, a.Store.Pages(), b.Store.Pages())
}

func TestLoad_PagedRoundTripKeepsShape(t *testing.T) {
	path := writeFile(t, "book.json", `{"metadata": {"bookId": "x", "title": "T"}, "pages": [
  {"pageNumber": 1, "image": "p1.png", "elements": []},
  {"pageNumber": 2, "image": "p2.png", "elements": []}
]}`)

	b, err := Load(path, discardLogger())
	require.NoError(t, err)
	_, err = b.Store.AddRegion("p2.png", "star", region.Word, geom.Corners{X1: 1, Y1: 1, X2: 2, Y2: 2}, "")
	require.NoError(t, err)
	require.NoError(t, b.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Metadata map[string]any `json:"metadata"`
		Pages    []struct {
			PageNumber int               `json:"pageNumber"`
			Image      string            `json:"image"`
			Elements   []json.RawMessage `json:"elements"`
		} `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "T", doc.Metadata["title"])
	assert.Equal(t, "x", doc.Metadata["bookId"])
	require.Len(t, doc.Pages, 2)
	assert.Empty(t, doc.Pages[0].Elements)
	assert.Len(t, doc.Pages[1].Elements, 1)
	assert.Equal(t, 2, doc.Pages[1].PageNumber)
}

func TestLoad_FormatErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", `{"pages": [`},
		{"scalar", `"hello"`},
		{"object without pages", `{"regions": []}`},
		{"pages not a list", `{"pages": {}}`},
		{"record not an object", `[1, 2]`},
		{"missing coordinate", `[{"Text": "a", "Image": "p", "X1": 1, "Y1": 1, "X2": 2}]`},
		{"bad coordinate", `[{"Text": "a", "Image": "p", "X1": "one", "Y1": 1, "X2": 2, "Y2": 2}]`},
		{"unknown category", `[{"Text": "a", "Category": "Chapter", "Image": "p", "X1": 1, "Y1": 1, "X2": 2, "Y2": 2}]`},
		{"missing page key", `[{"Text": "a", "X1": 1, "Y1": 1, "X2": 2, "Y2": 2}]`},
		{"duplicate ids", `[{"Text": "a", "Image": "p", "X1": 1, "Y1": 1, "X2": 2, "Y2": 2, "id": "x"},
			{"Text": "b", "Image": "p", "X1": 1, "Y1": 1, "X2": 2, "Y2": 2, "id": "x"}]`},
		{"duplicate pages", `{"pages": [{"image": "p"}, {"image": "p"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "bad.json", tt.content)
			_, err := Load(path, discardLogger())
			assert.ErrorIs(t, err, region.ErrFormat)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), discardLogger())
	assert.ErrorIs(t, err, region.ErrNotFound)
}

func TestParseLayout(t *testing.T) {
	l, err := ParseLayout(" Paged ")
	require.NoError(t, err)
	assert.Equal(t, LayoutPaged, l)

	_, err = ParseLayout("nested")
	assert.ErrorIs(t, err, region.ErrValidation)
}

func TestPageInfo_Key(t *testing.T) {
	assert.Equal(t, "p.png", PageInfo{Number: 3, Image: "p.png"}.Key())
	assert.Equal(t, "page_0003", PageInfo{Number: 3}.Key())
}
