package translate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackzampolin/clickread/internal/book"
	"github.com/jackzampolin/clickread/internal/region"
)

// BatchOptions controls a batch translation run.
type BatchOptions struct {
	// SkipTranslated leaves regions that already have a translation alone.
	SkipTranslated bool
	// DryRun translates but does not save.
	DryRun bool
}

// FileResult reports what a batch run did to one book file.
type FileResult struct {
	Path       string `json:"path"`
	BookID     string `json:"book_id,omitempty"`
	Regions    int    `json:"regions"`
	Translated int    `json:"translated"`
	Failed     int    `json:"failed"`
	Saved      bool   `json:"saved"`
	Error      string `json:"error,omitempty"`
}

// Batch translates every region's text in every book file in dir and
// stores the result as the region's translation when it differs from what
// is there. A file is written only when something changed. Files that fail
// to load are reported and skipped.
func Batch(ctx context.Context, dir string, client Client, opts BatchOptions, logger *slog.Logger) ([]FileResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read book directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	logger.Info("starting batch translation", "dir", dir, "files", len(paths), "provider", client.Name())

	results := make([]FileResult, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := translateFile(ctx, path, client, opts, logger)
		results = append(results, res)
	}
	return results, nil
}

func translateFile(ctx context.Context, path string, client Client, opts BatchOptions, logger *slog.Logger) FileResult {
	res := FileResult{Path: path}

	b, err := book.Load(path, logger)
	if err != nil {
		logger.Warn("skipping book", "path", path, "error", err)
		res.Error = err.Error()
		return res
	}
	res.BookID = b.ID
	res.Regions = b.Store.Len()

	changed, err := b.Store.UpdateEach(func(r region.Region) (region.Patch, bool) {
		if r.Text == "" || (opts.SkipTranslated && r.Translation != "") {
			return region.Patch{}, false
		}
		out, err := client.TranslateText(ctx, r.Text)
		if err != nil {
			res.Failed++
			logger.Warn("translation failed", "book_id", b.ID, "region_id", r.ID, "error", err)
			return region.Patch{}, false
		}
		out = region.CleanText(out)
		if out == "" || out == r.Translation {
			return region.Patch{}, false
		}
		return region.Patch{Translation: &out}, true
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Translated = changed

	if changed == 0 || opts.DryRun {
		return res
	}
	if err := b.Save(); err != nil {
		logger.Error("failed to save book", "book_id", b.ID, "error", err)
		res.Error = err.Error()
		return res
	}
	res.Saved = true
	logger.Info("book translated", "book_id", b.ID, "translated", changed, "failed", res.Failed)
	return res
}
