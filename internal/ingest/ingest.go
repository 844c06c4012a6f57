// Package ingest creates book records from scanned PDF files.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jackzampolin/clickread/internal/book"
	"github.com/jackzampolin/clickread/internal/home"
	"github.com/jackzampolin/clickread/internal/library"
	"github.com/jackzampolin/clickread/internal/region"
)

// Request contains the parameters for ingesting book scans.
type Request struct {
	PDFPaths      []string     // PDF file paths (will be sorted by numeric suffix)
	BookID        string       // Book id (optional, derived from filename if empty)
	KeepOriginals bool         // Copy the PDFs next to the rendered pages
	Logger        *slog.Logger // Optional logger for progress updates
}

// Result contains the result of a successful ingest operation.
type Result struct {
	BookID    string          `json:"book_id"`
	Path      string          `json:"path"`
	PageCount int             `json:"page_count"`
	Pages     []book.PageInfo `json:"pages"`
}

// CountFunc returns the number of pages in a PDF.
type CountFunc func(pdfPath string) (int, error)

// RenderFunc renders one page of a PDF (1-indexed) to a PNG at dst.
type RenderFunc func(ctx context.Context, pdfPath string, page int, dst string) error

// Ingester renders PDF pages into the home directory and creates a paged
// book record with one empty page per rendered image.
type Ingester struct {
	lib     *library.Library
	count   CountFunc
	render  RenderFunc
	workers int
}

// New returns an Ingester that counts pages with pdfcpu and renders them
// with pdftoppm.
func New(lib *library.Library) *Ingester {
	return &Ingester{
		lib:     lib,
		count:   pageCount,
		render:  renderPage,
		workers: runtime.NumCPU(),
	}
}

// Ingest extracts pages from PDFs and creates the book record.
func (in *Ingester) Ingest(ctx context.Context, req Request) (*Result, error) {
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}

	if len(req.PDFPaths) == 0 {
		return nil, fmt.Errorf("%w: no PDF paths provided", region.ErrValidation)
	}

	// Validate all PDF paths exist
	for _, p := range req.PDFPaths {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w: PDF %s", region.ErrNotFound, p)
		}
	}

	// Sort PDFs by numeric suffix (e.g., book-1.pdf, book-2.pdf)
	sortedPaths := sortPDFsByNumber(req.PDFPaths)

	bookID := req.BookID
	if bookID == "" {
		bookID = deriveBookID(sortedPaths[0])
	}
	if err := home.ValidateBookID(bookID); err != nil {
		return nil, err
	}

	h := in.lib.Home()
	if _, err := os.Stat(h.BookPath(bookID)); err == nil {
		return nil, fmt.Errorf("%w: %s", library.ErrExists, bookID)
	}

	log.Info("starting ingest", "pdfs", len(sortedPaths), "book_id", bookID)

	if err := h.EnsureImagesDir(bookID); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	outDir := h.ImagesDir(bookID)

	pageTotal := 0
	for i, pdfPath := range sortedPaths {
		log.Debug("extracting PDF", "file", filepath.Base(pdfPath), "part", i+1, "of", len(sortedPaths))
		count, err := in.extractImages(ctx, pdfPath, outDir, pageTotal)
		if err != nil {
			os.RemoveAll(outDir)
			return nil, fmt.Errorf("failed to extract images from %s: %w", pdfPath, err)
		}
		log.Debug("extracted pages", "count", count, "total", pageTotal+count)
		pageTotal += count
	}

	if pageTotal == 0 {
		os.RemoveAll(outDir)
		return nil, fmt.Errorf("%w: no pages in PDFs", region.ErrValidation)
	}

	if req.KeepOriginals {
		if err := copyOriginals(h, bookID, sortedPaths); err != nil {
			os.RemoveAll(outDir)
			return nil, err
		}
	}

	pages := make([]book.PageInfo, pageTotal)
	for i := range pages {
		pages[i] = book.PageInfo{Number: i + 1, Image: home.ImageName(i + 1)}
	}

	b, err := in.lib.Create(bookID, book.LayoutPaged, pages)
	if err != nil {
		os.RemoveAll(outDir)
		return nil, fmt.Errorf("failed to create book record: %w", err)
	}

	log.Info("ingest complete", "book_id", bookID, "pages", pageTotal)

	return &Result{
		BookID:    bookID,
		Path:      b.Path,
		PageCount: pageTotal,
		Pages:     pages,
	}, nil
}

// extractImages renders every page of a PDF into outDir. Output pages are
// numbered from pageOffset+1 so multi-part PDFs form one sequence.
func (in *Ingester) extractImages(ctx context.Context, pdfPath, outDir string, pageOffset int) (int, error) {
	pageCount, err := in.count(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}

	workers := in.workers
	if workers < 1 {
		workers = 1
	}

	type result struct {
		pageNum int
		err     error
	}

	results := make(chan result, pageCount)
	sem := make(chan struct{}, workers)

	for page := 1; page <= pageCount; page++ {
		sem <- struct{}{} // acquire
		go func(pageInPDF int) {
			defer func() { <-sem }() // release

			if err := ctx.Err(); err != nil {
				results <- result{pageNum: pageInPDF, err: err}
				return
			}
			dst := filepath.Join(outDir, home.ImageName(pageOffset+pageInPDF))
			results <- result{pageNum: pageInPDF, err: in.render(ctx, pdfPath, pageInPDF, dst)}
		}(page)
	}

	var firstErr error
	successCount := 0
	for i := 0; i < pageCount; i++ {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to render page %d: %w", r.pageNum, r.err)
			}
			continue
		}
		successCount++
	}
	if firstErr != nil {
		return 0, firstErr
	}

	return successCount, nil
}

// pageCount reads the page count with pdfcpu in relaxed validation mode,
// which accepts the slightly broken files scanners tend to produce.
func pageCount(pdfPath string) (int, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(f, conf)
}

// renderPage renders a single page from a PDF using pdftoppm (poppler-utils).
func renderPage(ctx context.Context, pdfPath string, pageInPDF int, dst string) error {
	tmpDir, err := os.MkdirTemp("", "clickread-page-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	// -singlefile: don't add page number suffix
	pageStr := strconv.Itoa(pageInPDF)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", "150",
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	// pdftoppm with -singlefile creates: <prefix>.png
	return copyFile(outputPrefix+".png", dst)
}

func copyOriginals(h *home.Dir, bookID string, paths []string) error {
	if err := h.EnsureOriginalsDir(bookID); err != nil {
		return fmt.Errorf("failed to create originals directory: %w", err)
	}
	for _, p := range paths {
		if err := copyFile(p, filepath.Join(h.OriginalsDir(bookID), filepath.Base(p))); err != nil {
			return fmt.Errorf("failed to copy original %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("expected output missing: %w", err)
		}
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

var pdfNumberSuffix = regexp.MustCompile(`-(\d+)\.pdf$`)

// sortPDFsByNumber sorts PDF paths by their numeric suffix.
// e.g., ["book-2.pdf", "book-1.pdf", "book-10.pdf"] -> ["book-1.pdf", "book-2.pdf", "book-10.pdf"]
func sortPDFsByNumber(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)

	sort.SliceStable(sorted, func(i, j int) bool {
		mi := pdfNumberSuffix.FindStringSubmatch(sorted[i])
		mj := pdfNumberSuffix.FindStringSubmatch(sorted[j])

		if len(mi) > 1 && len(mj) > 1 {
			ni, _ := strconv.Atoi(mi[1])
			nj, _ := strconv.Atoi(mj[1])
			return ni < nj
		}

		// Files without numbers come first
		if len(mi) > 1 {
			return false
		}
		if len(mj) > 1 {
			return true
		}

		return sorted[i] < sorted[j]
	})

	return sorted
}

var (
	trailingPart = regexp.MustCompile(`-\d+$`)
	idUnsafe     = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// deriveBookID builds a book id from a PDF filename.
// e.g., "Little Cat-1.pdf" -> "little-cat"
func deriveBookID(pdfPath string) string {
	base := filepath.Base(pdfPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = trailingPart.ReplaceAllString(name, "")
	name = idUnsafe.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(name, "-._")
}
