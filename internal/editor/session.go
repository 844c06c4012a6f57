// Package editor implements the interaction state machine that turns
// drawing and selection gestures into region store mutations.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackzampolin/clickread/internal/geom"
	"github.com/jackzampolin/clickread/internal/region"
)

// State is the session's interaction state.
type State int

const (
	Idle State = iota
	Drawing
	Selected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	case Selected:
		return "selected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Store is the subset of region.Store the session drives.
type Store interface {
	AddRegion(pageKey, text string, category region.Category, geometry geom.Corners, translation string) (region.Region, error)
	DeleteRegion(pageKey, id string) error
	UpdateRegion(id string, patch region.Patch) (region.Region, error)
	Get(id string) (region.Region, error)
	PageByKey(key string) ([]region.Region, error)
	ResolvePageKey(index int) (string, error)
	PageIndex(key string) (int, error)
}

// Saver persists the book after a mutation.
type Saver interface {
	Save() error
}

// Translator suggests a translation. Implementations return the input
// unchanged when they cannot translate.
type Translator interface {
	Translate(ctx context.Context, text string) string
}

// AudioLocator resolves an audio reference for a language to a stored path.
type AudioLocator interface {
	Locate(lang, name string) (string, error)
}

// Audio languages accepted by AttachAudio.
const (
	LangEnglish = "en"
	LangChinese = "zh"
)

// Form is the edit-field state shown next to the page.
type Form struct {
	Text        string          `json:"text"`
	Translation string          `json:"translation"`
	Category    region.Category `json:"category"`
}

// ViewRecord is what the rendering surface draws for one region.
type ViewRecord struct {
	ID          string          `json:"id,omitempty"`
	Geometry    geom.Corners    `json:"geometry"`
	Text        string          `json:"text"`
	Category    region.Category `json:"category"`
	Selected    bool            `json:"selected"`
	Provisional bool            `json:"provisional,omitempty"`
}

// Config holds a session's collaborators. Store is required.
type Config struct {
	Store      Store
	Saver      Saver
	Translator Translator
	Audio      AudioLocator

	// DefaultCategory seeds the form for a new drawing.
	DefaultCategory region.Category

	Logger *slog.Logger
}

// Session mediates one curator's gestures against a book's region store.
// At most one region is selected at a time. A session is not safe for
// concurrent use.
type Session struct {
	store      Store
	saver      Saver
	translator Translator
	audio      AudioLocator
	defaultCat region.Category
	logger     *slog.Logger

	state   State
	pageKey string

	drawStart geom.Point

	// selection is the selected region. When provisional is true it has not
	// been added to the store and has no id.
	selection   region.Region
	provisional bool

	form Form
	// fallback is set while the form shows the source text in place of an
	// empty translation, so that the fallback is never written back.
	fallback bool
}

// New creates a session in Idle with no page open.
func New(cfg Config) (*Session, error) {
	if cfg.Store == nil {
		return nil, errors.New("editor: store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cat := cfg.DefaultCategory
	if !cat.Valid() {
		cat = region.Word
	}
	s := &Session{
		store:      cfg.Store,
		saver:      cfg.Saver,
		translator: cfg.Translator,
		audio:      cfg.Audio,
		defaultCat: cat,
		logger:     logger,
	}
	s.reset()
	return s, nil
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// PageKey returns the open page, or "" when none is open.
func (s *Session) PageKey() string { return s.pageKey }

// Form returns the current edit-field state.
func (s *Session) Form() Form { return s.form }

// Selection returns the selected region and whether it is provisional. ok
// is false when nothing is selected.
func (s *Session) Selection() (r region.Region, provisional, ok bool) {
	if s.state != Selected {
		return region.Region{}, false, false
	}
	return s.selection, s.provisional, true
}

// Open navigates to the page at index. Any drawing or selection is dropped.
// An out-of-range index leaves the session unchanged.
func (s *Session) Open(index int) error {
	key, err := s.store.ResolvePageKey(index)
	if err != nil {
		return err
	}
	s.pageKey = key
	s.reset()
	s.logger.Debug("page opened", "page_index", index, "page_key", key)
	return nil
}

// OpenKey navigates to the page with key.
func (s *Session) OpenKey(key string) error {
	index, err := s.store.PageIndex(key)
	if err != nil {
		return err
	}
	return s.Open(index)
}

// BeginDraw starts a rectangle at p. A current selection is dropped; a
// provisional rectangle is abandoned.
func (s *Session) BeginDraw(p geom.Point) error {
	if err := s.requirePage(); err != nil {
		return err
	}
	s.reset()
	s.state = Drawing
	s.drawStart = p
	return nil
}

// EndDraw finishes the rectangle at p and selects it provisionally. A
// rectangle without area is rejected and the session stays in Drawing.
func (s *Session) EndDraw(p geom.Point) (geom.Corners, error) {
	if s.state != Drawing {
		return geom.Corners{}, validationf("no drawing in progress")
	}
	corners := geom.FromPoints(s.drawStart, p).Corners()
	if corners.Degenerate() {
		return geom.Corners{}, validationf("rectangle %s has no area", corners)
	}
	s.selectProvisional(corners)
	return corners, nil
}

// Propose selects a provisional rectangle given directly in corner form,
// for surfaces that report a finished rectangle rather than drag events.
func (s *Session) Propose(c geom.Corners) error {
	if err := s.requirePage(); err != nil {
		return err
	}
	if s.state == Selected && !s.provisional {
		return validationf("deselect the current region first")
	}
	if c.Degenerate() {
		return validationf("rectangle %s has no area", c)
	}
	s.selectProvisional(c.Normalize())
	return nil
}

func (s *Session) selectProvisional(c geom.Corners) {
	s.state = Selected
	s.provisional = true
	s.selection = region.Region{PageKey: s.pageKey, Geometry: c, Category: s.defaultCat}
	s.form = Form{Category: s.defaultCat}
	s.fallback = false
}

// Cancel abandons a drawing or provisional rectangle, or deselects.
// Nothing has been stored, so nothing is rolled back.
func (s *Session) Cancel() {
	s.reset()
}

// SetForm replaces the edit fields.
func (s *Session) SetForm(f Form) {
	if s.fallback && f.Translation != s.form.Translation {
		s.fallback = false
	}
	s.form = f
}

// Confirm commits the provisional rectangle with the form's text, category
// and translation, then saves. The session returns to Idle with the form
// reset.
func (s *Session) Confirm() (region.Region, error) {
	if s.state != Selected || !s.provisional {
		return region.Region{}, validationf("no rectangle to confirm")
	}
	if region.CleanText(s.form.Text) == "" {
		return region.Region{}, validationf("text is required")
	}
	cat := s.form.Category
	if cat == "" {
		cat = s.defaultCat
	}

	translation := s.form.Translation
	if s.fallback {
		translation = ""
	}
	r, err := s.store.AddRegion(s.pageKey, s.form.Text, cat, s.selection.Geometry, translation)
	if err != nil {
		return region.Region{}, s.fail(err)
	}
	s.logger.Info("region created", "page_key", s.pageKey, "region_id", r.ID, "category", r.Category)
	s.reset()
	return r, s.persist("add")
}

// Select selects the region with id on the open page and fills the form
// from it. An empty translation is shown as the source text.
func (s *Session) Select(id string) (region.Region, error) {
	if err := s.requirePage(); err != nil {
		return region.Region{}, err
	}
	if id == "" {
		return region.Region{}, validationf("region has no id")
	}
	r, err := s.store.Get(id)
	if err != nil {
		return region.Region{}, s.fail(err)
	}
	if r.PageKey != s.pageKey {
		return region.Region{}, s.fail(fmt.Errorf("%w: region %s is not on page %q", region.ErrNotFound, id, s.pageKey))
	}
	s.selectCommitted(r)
	return r, nil
}

// SelectAt selects the topmost region on the open page containing p. When
// no region contains p the session returns to Idle.
func (s *Session) SelectAt(p geom.Point) (region.Region, error) {
	if err := s.requirePage(); err != nil {
		return region.Region{}, err
	}
	regions, err := s.store.PageByKey(s.pageKey)
	if err != nil {
		return region.Region{}, s.fail(err)
	}
	for i := len(regions) - 1; i >= 0; i-- {
		if regions[i].Geometry.Contains(p) {
			return s.Select(regions[i].ID)
		}
	}
	// A click on empty space deselects.
	s.reset()
	return region.Region{}, fmt.Errorf("%w: no region at (%g,%g)", region.ErrNotFound, p.X, p.Y)
}

func (s *Session) selectCommitted(r region.Region) {
	s.state = Selected
	s.provisional = false
	s.selection = r
	s.form = Form{Text: r.Text, Translation: r.DisplayTranslation(), Category: r.Category}
	s.fallback = r.Translation == ""
}

// Deselect returns to Idle.
func (s *Session) Deselect() {
	s.reset()
}

// Delete removes the selected region and saves.
func (s *Session) Delete() error {
	id, err := s.requireCommitted()
	if err != nil {
		return err
	}
	if err := s.store.DeleteRegion(s.pageKey, id); err != nil {
		return s.fail(err)
	}
	s.logger.Info("region deleted", "page_key", s.pageKey, "region_id", id)
	s.reset()
	return s.persist("delete")
}

// Update applies patch to the selection. For a committed region the store
// is updated and the book saved; for a provisional rectangle only its
// geometry may change.
func (s *Session) Update(patch region.Patch) (region.Region, error) {
	if s.state != Selected {
		return region.Region{}, validationf("no region selected")
	}
	if s.provisional {
		if patch.Geometry == nil || patch.Text != nil || patch.Translation != nil || patch.Category != nil {
			return region.Region{}, validationf("only geometry can change before confirm")
		}
		if patch.Geometry.Degenerate() {
			return region.Region{}, validationf("rectangle %s has no area", *patch.Geometry)
		}
		s.selection.Geometry = patch.Geometry.Normalize()
		return s.selection, nil
	}

	id, err := s.requireCommitted()
	if err != nil {
		return region.Region{}, err
	}
	r, err := s.store.UpdateRegion(id, patch)
	if err != nil {
		return region.Region{}, s.fail(err)
	}
	s.selectCommitted(r)
	return r, s.persist("update")
}

// Move translates the selection by (dx, dy).
func (s *Session) Move(dx, dy int) (region.Region, error) {
	if s.state != Selected {
		return region.Region{}, validationf("no region selected")
	}
	g := s.selection.Geometry.Translate(dx, dy)
	return s.Update(region.Patch{Geometry: &g})
}

// ApplyForm writes the form's text, category and translation to the
// selected committed region. A translation still showing the source-text
// fallback is not written.
func (s *Session) ApplyForm() (region.Region, error) {
	if _, err := s.requireCommitted(); err != nil {
		return region.Region{}, err
	}
	text := s.form.Text
	patch := region.Patch{Text: &text}
	if s.form.Category != "" {
		cat := s.form.Category
		patch.Category = &cat
	}
	if !s.fallback {
		tr := s.form.Translation
		patch.Translation = &tr
	}
	return s.Update(patch)
}

// SuggestTranslation asks the translator for the form text's translation
// and places it in the form. The store is not changed until ApplyForm or
// Confirm.
func (s *Session) SuggestTranslation(ctx context.Context) (string, error) {
	if s.state != Selected {
		return "", validationf("no region selected")
	}
	if s.translator == nil {
		return "", validationf("no translator configured")
	}
	text := region.CleanText(s.form.Text)
	if text == "" {
		return "", validationf("text is required")
	}
	tr := s.translator.Translate(ctx, text)
	s.form.Translation = tr
	// Translators hand back the source text when they fail.
	s.fallback = tr == text
	return tr, nil
}

// AttachAudio sets the selected region's English or Chinese audio file.
// When the locator cannot find the file the field is cleared, the failure
// logged and returned.
func (s *Session) AttachAudio(lang, name string) (region.Region, error) {
	if _, err := s.requireCommitted(); err != nil {
		return region.Region{}, err
	}
	if s.audio == nil {
		return region.Region{}, validationf("no audio locator configured")
	}

	var field **string
	var patch region.Patch
	switch lang {
	case LangEnglish:
		field = &patch.EnglishAudioFile
	case LangChinese:
		field = &patch.ChineseAudioFile
	default:
		return region.Region{}, validationf("unknown audio language %q", lang)
	}

	path, locateErr := s.audio.Locate(lang, name)
	if locateErr != nil {
		s.logger.Warn("audio file not available",
			"region_id", s.selection.ID, "lang", lang, "file", name, "error", locateErr)
		path = ""
	}
	*field = &path

	r, err := s.Update(patch)
	if err != nil {
		return r, err
	}
	return r, locateErr
}

// View returns the render records for the open page, optionally limited to
// one category. A provisional rectangle is appended last.
func (s *Session) View(filter region.Category) ([]ViewRecord, error) {
	if err := s.requirePage(); err != nil {
		return nil, err
	}
	regions, err := s.store.PageByKey(s.pageKey)
	if err != nil {
		return nil, err
	}

	selectedID := ""
	if s.state == Selected && !s.provisional {
		selectedID = s.selection.ID
	}

	view := make([]ViewRecord, 0, len(regions)+1)
	for _, r := range regions {
		if filter != "" && r.Category != filter {
			continue
		}
		view = append(view, ViewRecord{
			ID:       r.ID,
			Geometry: r.Geometry,
			Text:     r.Text,
			Category: r.Category,
			Selected: selectedID != "" && r.ID == selectedID,
		})
	}
	if s.state == Selected && s.provisional {
		view = append(view, ViewRecord{
			Geometry:    s.selection.Geometry,
			Text:        s.form.Text,
			Category:    s.form.Category,
			Selected:    true,
			Provisional: true,
		})
	}
	return view, nil
}

func (s *Session) requirePage() error {
	if s.pageKey == "" {
		return validationf("no page open")
	}
	return nil
}

func (s *Session) requireCommitted() (string, error) {
	if s.state != Selected || s.provisional {
		return "", validationf("no stored region selected")
	}
	if s.selection.ID == "" {
		return "", validationf("selected region has no id")
	}
	return s.selection.ID, nil
}

// fail resets to Idle when the store no longer agrees with the session's
// view of it. Validation errors leave the state alone.
func (s *Session) fail(err error) error {
	if errors.Is(err, region.ErrNotFound) || errors.Is(err, region.ErrConsistency) {
		s.logger.Warn("editor operation failed, returning to idle", "page_key", s.pageKey, "error", err)
		s.reset()
	}
	return err
}

// persist saves after a mutation. The mutation stands even if the save
// fails; the next successful save writes it.
func (s *Session) persist(op string) error {
	if s.saver == nil {
		return nil
	}
	if err := s.saver.Save(); err != nil {
		s.logger.Error("failed to save book", "op", op, "page_key", s.pageKey, "error", err)
		return fmt.Errorf("%s saved in memory but not on disk: %w", op, err)
	}
	return nil
}

func (s *Session) reset() {
	s.state = Idle
	s.provisional = false
	s.selection = region.Region{}
	s.drawStart = geom.Point{}
	s.form = Form{Category: s.defaultCat}
	s.fallback = false
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", region.ErrValidation, fmt.Sprintf(format, args...))
}
