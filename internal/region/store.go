package region

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jackzampolin/clickread/internal/geom"
)

// Store owns a book's regions.
//
// The flat list is authoritative and its order is the persisted order. The
// page index is derived from it: each bucket holds the same *Region pointers
// as the flat list, so an in-place edit is visible through both without a
// second write. Every mutation updates both containers before returning, or
// neither.
//
// Store is not safe for concurrent use; callers serialize mutations.
type Store struct {
	elements []*Region
	pages    map[string][]*Region

	// order is the ordered set of known page keys. A page stays known after
	// its last region is deleted.
	order []string

	newID  func() string
	logger *slog.Logger
}

// NewStore creates an empty store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pages:  make(map[string][]*Region),
		newID:  uuid.NewString,
		logger: logger,
	}
}

// Load replaces the store's contents with elements and rebuilds the page
// index from each region's page key. pageKeys seeds the page order so pages
// without regions stay addressable; keys only seen on elements are appended
// in first-appearance order. Two regions sharing a non-empty id is an
// ErrFormat.
func (s *Store) Load(elements []Region, pageKeys []string) error {
	seen := make(map[string]struct{}, len(elements))
	loaded := make([]*Region, 0, len(elements))
	for i := range elements {
		r := elements[i]
		if r.PageKey == "" {
			return fmt.Errorf("%w: region %d has no page key", ErrFormat, i)
		}
		if r.ID != "" {
			if _, dup := seen[r.ID]; dup {
				return fmt.Errorf("%w: duplicate region id %s", ErrFormat, r.ID)
			}
			seen[r.ID] = struct{}{}
		}
		r.Geometry = r.Geometry.Normalize()
		loaded = append(loaded, &r)
	}

	s.elements = loaded
	s.order = s.order[:0]
	for _, key := range pageKeys {
		s.RegisterPage(key)
	}
	s.Rebuild()
	return nil
}

// Rebuild recomputes the page index from the flat list. Known pages are kept
// even when empty.
func (s *Store) Rebuild() {
	pages := make(map[string][]*Region, len(s.order))
	for _, key := range s.order {
		pages[key] = nil
	}
	for _, r := range s.elements {
		if _, ok := pages[r.PageKey]; !ok {
			s.order = append(s.order, r.PageKey)
		}
		pages[r.PageKey] = append(pages[r.PageKey], r)
	}
	s.pages = pages
}

// RegisterPage adds key to the known pages. It reports false when the key
// was already known or is empty.
func (s *Store) RegisterPage(key string) bool {
	if key == "" {
		return false
	}
	if s.pages == nil {
		s.pages = make(map[string][]*Region)
	}
	for _, k := range s.order {
		if k == key {
			return false
		}
	}
	s.order = append(s.order, key)
	if _, ok := s.pages[key]; !ok {
		s.pages[key] = nil
	}
	return true
}

// AddRegion creates a region on pageKey and appends it to both the flat list
// and the page's bucket. Text is required; geometry is normalized and must
// have an area.
func (s *Store) AddRegion(pageKey, text string, category Category, geometry geom.Corners, translation string) (Region, error) {
	if pageKey == "" {
		return Region{}, validationf("page key is required")
	}
	text = CleanText(text)
	if text == "" {
		return Region{}, validationf("text is required")
	}
	if !category.Valid() {
		return Region{}, validationf("unknown category %q", category)
	}
	if geometry.Degenerate() {
		return Region{}, validationf("geometry %s has no area", geometry)
	}

	r := &Region{
		ID:          s.newID(),
		PageKey:     pageKey,
		Text:        text,
		Category:    category,
		Geometry:    geometry.Normalize(),
		Translation: CleanText(translation),
	}

	s.RegisterPage(pageKey)
	s.elements = append(s.elements, r)
	s.pages[pageKey] = append(s.pages[pageKey], r)

	s.logger.Debug("region added", "page_key", pageKey, "region_id", r.ID)
	return *r, nil
}

// DeleteRegion removes the region with id from pageKey's bucket and from the
// flat list. Matching is by id only. Both positions are located before
// anything is removed; if the region is present in one container but not the
// other the delete is refused with ErrConsistency.
func (s *Store) DeleteRegion(pageKey, id string) error {
	if id == "" {
		return validationf("region has no id")
	}
	bucket, ok := s.pages[pageKey]
	if !ok {
		return notFoundf("page %q", pageKey)
	}

	pageIdx := indexByID(bucket, id)
	flatIdx := indexByID(s.elements, id)

	switch {
	case pageIdx < 0 && flatIdx < 0:
		return notFoundf("region %s on page %q", id, pageKey)
	case pageIdx < 0:
		// Present in the book but not on this page: either the caller has the
		// wrong page or the index has diverged.
		if s.elements[flatIdx].PageKey != pageKey {
			return notFoundf("region %s on page %q", id, pageKey)
		}
		return s.inconsistent(pageKey, id, "region in flat list but missing from page index")
	case flatIdx < 0:
		return s.inconsistent(pageKey, id, "region in page index but missing from flat list")
	case bucket[pageIdx] != s.elements[flatIdx]:
		return s.inconsistent(pageKey, id, "page index and flat list hold different regions")
	}

	s.pages[pageKey] = removeAt(bucket, pageIdx)
	s.elements = removeAt(s.elements, flatIdx)

	s.logger.Debug("region deleted", "page_key", pageKey, "region_id", id)
	return nil
}

// UpdateRegion applies patch to the region with id in place. The patch is
// validated in full before any field changes.
func (s *Store) UpdateRegion(id string, patch Patch) (Region, error) {
	if id == "" {
		return Region{}, validationf("region has no id")
	}
	patch, err := patch.normalized()
	if err != nil {
		return Region{}, err
	}

	flatIdx := indexByID(s.elements, id)
	if flatIdx < 0 {
		return Region{}, notFoundf("region %s", id)
	}
	r := s.elements[flatIdx]
	if indexByID(s.pages[r.PageKey], id) < 0 {
		return Region{}, s.inconsistent(r.PageKey, id, "region in flat list but missing from page index")
	}

	patch.apply(r)
	return *r, nil
}

// UpdateEach visits every region in flat-list order and applies the patch fn
// returns when its second result is true. It is meant for bulk maintenance
// such as batch translation, where legacy regions may lack ids. All patches
// are validated before any is applied. It returns the number of regions
// changed.
func (s *Store) UpdateEach(fn func(r Region) (Patch, bool)) (int, error) {
	type pending struct {
		r     *Region
		patch Patch
	}
	var todo []pending
	for i, r := range s.elements {
		patch, ok := fn(*r)
		if !ok || patch.Empty() {
			continue
		}
		normalized, err := patch.normalized()
		if err != nil {
			return 0, fmt.Errorf("region %d: %w", i, err)
		}
		todo = append(todo, pending{r: r, patch: normalized})
	}
	for _, p := range todo {
		p.patch.apply(p.r)
	}
	return len(todo), nil
}

// Get returns the region with id.
func (s *Store) Get(id string) (Region, error) {
	if id == "" {
		return Region{}, validationf("region has no id")
	}
	if i := indexByID(s.elements, id); i >= 0 {
		return *s.elements[i], nil
	}
	return Region{}, notFoundf("region %s", id)
}

// GetPage returns the regions of the page at zero-based position index, in
// insertion order.
func (s *Store) GetPage(index int) ([]Region, error) {
	key, err := s.ResolvePageKey(index)
	if err != nil {
		return nil, err
	}
	return s.PageByKey(key)
}

// PageByKey returns the regions on the page with key, in insertion order. A
// known page with no regions yields an empty slice.
func (s *Store) PageByKey(key string) ([]Region, error) {
	bucket, ok := s.pages[key]
	if !ok {
		return nil, notFoundf("page %q", key)
	}
	return copyRegions(bucket), nil
}

// Filter returns the regions on key with the given category.
func (s *Store) Filter(key string, category Category) ([]Region, error) {
	regions, err := s.PageByKey(key)
	if err != nil {
		return nil, err
	}
	filtered := regions[:0]
	for _, r := range regions {
		if r.Category == category {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// ResolvePageKey maps a zero-based page position to its key.
func (s *Store) ResolvePageKey(index int) (string, error) {
	if index < 0 || index >= len(s.order) {
		return "", fmt.Errorf("%w: %d not in [0,%d)", ErrIndex, index, len(s.order))
	}
	return s.order[index], nil
}

// PageIndex returns the position of key among the known pages.
func (s *Store) PageIndex(key string) (int, error) {
	for i, k := range s.order {
		if k == key {
			return i, nil
		}
	}
	return -1, notFoundf("page %q", key)
}

// Pages returns the known page keys in order.
func (s *Store) Pages() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// DropEmptyPages forgets every page that holds no regions and returns how
// many were dropped. A flat record stores no page list, so this makes the
// store match what a reload of such a record would produce.
func (s *Store) DropEmptyPages() int {
	kept := s.order[:0]
	dropped := 0
	for _, key := range s.order {
		if len(s.pages[key]) == 0 {
			delete(s.pages, key)
			dropped++
			continue
		}
		kept = append(kept, key)
	}
	s.order = kept
	return dropped
}

// PageCount returns the number of known pages.
func (s *Store) PageCount() int {
	return len(s.order)
}

// Len returns the number of regions in the book.
func (s *Store) Len() int {
	return len(s.elements)
}

// Elements returns the flat list in persisted order.
func (s *Store) Elements() []Region {
	return copyRegions(s.elements)
}

// AssignMissingIDs gives a fresh id to every region that has none and
// returns how many were assigned.
func (s *Store) AssignMissingIDs() int {
	n := 0
	for _, r := range s.elements {
		if r.ID == "" {
			r.ID = s.newID()
			n++
		}
	}
	return n
}

// Check verifies that every region in the flat list appears exactly once in
// the bucket for its page key and that the page index holds nothing else.
func (s *Store) Check() error {
	inFlat := make(map[*Region]struct{}, len(s.elements))
	for _, r := range s.elements {
		inFlat[r] = struct{}{}
	}

	indexed := 0
	for key, bucket := range s.pages {
		for _, r := range bucket {
			if _, ok := inFlat[r]; !ok {
				return s.inconsistent(key, r.ID, "region in page index but missing from flat list")
			}
			if r.PageKey != key {
				return s.inconsistent(key, r.ID, fmt.Sprintf("region filed under page %q but belongs to %q", key, r.PageKey))
			}
			indexed++
		}
	}
	if indexed != len(s.elements) {
		return consistencyf("flat list holds %d regions, page index holds %d", len(s.elements), indexed)
	}
	for _, r := range s.elements {
		if indexByPtr(s.pages[r.PageKey], r) < 0 {
			return s.inconsistent(r.PageKey, r.ID, "region in flat list but missing from page index")
		}
	}
	return nil
}

func (s *Store) inconsistent(pageKey, id, msg string) error {
	s.logger.Error("region store inconsistency", "page_key", pageKey, "region_id", id, "detail", msg)
	return consistencyf("%s (page %q, region %s)", msg, pageKey, id)
}

func indexByID(regions []*Region, id string) int {
	for i, r := range regions {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func indexByPtr(regions []*Region, target *Region) int {
	for i, r := range regions {
		if r == target {
			return i
		}
	}
	return -1
}

func removeAt(regions []*Region, i int) []*Region {
	out := make([]*Region, 0, len(regions)-1)
	out = append(out, regions[:i]...)
	return append(out, regions[i+1:]...)
}

func copyRegions(regions []*Region) []Region {
	out := make([]Region, len(regions))
	for i, r := range regions {
		out[i] = *r
	}
	return out
}
