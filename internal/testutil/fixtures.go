package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// FlatBook is a flat book record in the legacy shape: one array of region
// records tagged with their page image.
const FlatBook = `[
  {
    "Text": "cat",
    "Category": "Word",
    "Image": "page_0001.png",
    "X1": 10,
    "Y1": 10,
    "X2": 50,
    "Y2": 30,
    "English_Audio_File": "",
    "中文翻譯": "貓",
    "Chinese_Audio_File": "",
    "id": "r-cat"
  },
  {
    "Text": "The cat sat.",
    "Category": "Sentence",
    "Image": "page_0001.png",
    "X1": 10,
    "Y1": 40,
    "X2": 200,
    "Y2": 60,
    "English_Audio_File": "",
    "中文翻譯": "",
    "Chinese_Audio_File": "",
    "id": "r-sat"
  },
  {
    "Text": "dog",
    "Category": "Word",
    "Image": "page_0002.png",
    "X1": 5,
    "Y1": 5,
    "X2": 25,
    "Y2": 15,
    "English_Audio_File": "",
    "中文翻譯": "狗",
    "Chinese_Audio_File": "",
    "id": "r-dog"
  }
]
`

// PagedBook is a paged book record with an empty third page.
const PagedBook = `{
  "metadata": {"bookId": "moon", "title": "Goodnight Moon"},
  "pages": [
    {
      "pageNumber": 1,
      "image": "page_0001.png",
      "elements": [
        {"Text": "moon", "Category": "Word", "X1": 1, "Y1": 2, "X2": 30, "Y2": 40, "中文翻譯": "月亮", "id": "m1"}
      ]
    },
    {
      "pageNumber": 2,
      "image": "page_0002.png",
      "regions": [
        {"text": "Goodnight moon.", "category": "Full Text", "coordinates": {"x1": 0, "y1": 0, "x2": 300, "y2": 50}, "id": "m2"}
      ]
    },
    {"pageNumber": 3, "image": "page_0003.png", "elements": []}
  ]
}
`

// WriteBook writes a book record named <id>.json into the books directory
// of home and returns its path.
func WriteBook(t *testing.T, home, id, content string) string {
	t.Helper()
	dir := filepath.Join(home, "books")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create books dir: %v", err)
	}
	path := filepath.Join(dir, id+".json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write book %s: %v", id, err)
	}
	return path
}

// WriteFile writes content to home/rel, creating parent directories.
func WriteFile(t *testing.T, home, rel string, content []byte) string {
	t.Helper()
	path := filepath.Join(home, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return path
}
