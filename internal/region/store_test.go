package region

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/clickread/internal/geom"
)

func newTestStore() *Store {
	return NewStore(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func flatIDs(s *Store) []string {
	var ids []string
	for _, r := range s.elements {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return ids
}

func indexedIDs(s *Store) []string {
	var ids []string
	for _, bucket := range s.pages {
		for _, r := range bucket {
			ids = append(ids, r.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

func TestStore_AddRegion(t *testing.T) {
	s := newTestStore()

	r, err := s.AddRegion("p1", "cat", Word, geom.Corners{X1: 10, Y1: 10, X2: 50, Y2: 30}, "")
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "p1", r.PageKey)
	assert.Equal(t, geom.Corners{X1: 10, Y1: 10, X2: 50, Y2: 30}, r.Geometry)
	assert.Equal(t, 1, s.Len())

	page, err := s.PageByKey("p1")
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, r, page[0])
	assert.Equal(t, []string{"p1"}, s.Pages())
}

func TestStore_AddRegion_Validation(t *testing.T) {
	tests := []struct {
		name     string
		pageKey  string
		text     string
		category Category
		geometry geom.Corners
	}{
		{"empty text", "p1", "", Word, geom.Corners{X1: 0, Y1: 0, X2: 5, Y2: 5}},
		{"whitespace text", "p1", "  \t", Word, geom.Corners{X1: 0, Y1: 0, X2: 5, Y2: 5}},
		{"missing page", "", "cat", Word, geom.Corners{X1: 0, Y1: 0, X2: 5, Y2: 5}},
		{"bad category", "p1", "cat", Category("Paragraph"), geom.Corners{X1: 0, Y1: 0, X2: 5, Y2: 5}},
		{"no area", "p1", "cat", Word, geom.Corners{X1: 5, Y1: 0, X2: 5, Y2: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore()
			_, err := s.AddRegion(tt.pageKey, tt.text, tt.category, tt.geometry, "")
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, 0, s.Len())
			assert.Empty(t, indexedIDs(s))
		})
	}
}

func TestStore_AddRegion_NormalizesGeometry(t *testing.T) {
	s := newTestStore()

	r, err := s.AddRegion("p1", "cat", Word, geom.Corners{X1: 50, Y1: 30, X2: 10, Y2: 10}, "")
	require.NoError(t, err)
	assert.Equal(t, geom.Corners{X1: 10, Y1: 10, X2: 50, Y2: 30}, r.Geometry)
}

func TestStore_DeleteRegion_ByIDWithDuplicateContent(t *testing.T) {
	s := newTestStore()
	g := geom.Corners{X1: 1, Y1: 1, X2: 9, Y2: 9}

	first, err := s.AddRegion("p1", "the", Word, g, "")
	require.NoError(t, err)
	second, err := s.AddRegion("p1", "the", Word, g, "")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	require.NoError(t, s.DeleteRegion("p1", second.ID))

	page, err := s.PageByKey("p1")
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, first.ID, s.Elements()[0].ID)
}

func TestStore_DeleteRegion_Errors(t *testing.T) {
	s := newTestStore()
	r, err := s.AddRegion("p1", "cat", Word, geom.Corners{X1: 1, Y1: 1, X2: 9, Y2: 9}, "")
	require.NoError(t, err)
	s.RegisterPage("p2")

	t.Run("unknown id leaves store unchanged", func(t *testing.T) {
		err := s.DeleteRegion("p1", "does-not-exist")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 1, s.Len())
		assert.Equal(t, flatIDs(s), indexedIDs(s))
	})

	t.Run("id on another page", func(t *testing.T) {
		err := s.DeleteRegion("p2", r.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NotErrorIs(t, err, ErrConsistency)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("unknown page", func(t *testing.T) {
		assert.ErrorIs(t, s.DeleteRegion("nope", r.ID), ErrNotFound)
	})

	t.Run("missing id", func(t *testing.T) {
		assert.ErrorIs(t, s.DeleteRegion("p1", ""), ErrValidation)
	})
}

func TestStore_DeleteRegion_ConsistencyViolation(t *testing.T) {
	t.Run("missing from flat list", func(t *testing.T) {
		s := newTestStore()
		r, err := s.AddRegion("p1", "cat", Word, geom.Corners{X1: 1, Y1: 1, X2: 9, Y2: 9}, "")
		require.NoError(t, err)
		s.elements = nil

		err = s.DeleteRegion("p1", r.ID)
		assert.ErrorIs(t, err, ErrConsistency)
		assert.Len(t, s.pages["p1"], 1, "refused delete must not touch the index")
	})

	t.Run("missing from page index", func(t *testing.T) {
		s := newTestStore()
		r, err := s.AddRegion("p1", "cat", Word, geom.Corners{X1: 1, Y1: 1, X2: 9, Y2: 9}, "")
		require.NoError(t, err)
		s.pages["p1"] = nil

		err = s.DeleteRegion("p1", r.ID)
		assert.ErrorIs(t, err, ErrConsistency)
		assert.Equal(t, 1, s.Len())
	})
}

func TestStore_AddDeleteKeepsContainersInStep(t *testing.T) {
	s := newTestStore()
	rng := rand.New(rand.NewSource(7))
	pages := []string{"p1", "p2", "p3"}
	var live []Region

	for step := 0; step < 300; step++ {
		if len(live) == 0 || rng.Intn(3) > 0 {
			key := pages[rng.Intn(len(pages))]
			r, err := s.AddRegion(key, "w", Word, geom.Corners{X1: 0, Y1: 0, X2: 4, Y2: 4}, "")
			require.NoError(t, err)
			live = append(live, r)
		} else {
			i := rng.Intn(len(live))
			require.NoError(t, s.DeleteRegion(live[i].PageKey, live[i].ID))
			live = append(live[:i], live[i+1:]...)
		}

		require.Equal(t, flatIDs(s), indexedIDs(s), "step %d", step)
		require.NoError(t, s.Check(), "step %d", step)
	}
}

func TestStore_UpdateRegion(t *testing.T) {
	s := newTestStore()
	r, err := s.AddRegion("p1", "cat", Word, geom.Corners{X1: 1, Y1: 1, X2: 9, Y2: 9}, "")
	require.NoError(t, err)

	text := "cats"
	tr := "貓"
	cat := Sentence
	g := geom.Corners{X1: 20, Y1: 20, X2: 2, Y2: 2}

	updated, err := s.UpdateRegion(r.ID, Patch{Text: &text, Translation: &tr, Category: &cat, Geometry: &g})
	require.NoError(t, err)
	assert.Equal(t, "cats", updated.Text)
	assert.Equal(t, "貓", updated.Translation)
	assert.Equal(t, Sentence, updated.Category)
	assert.Equal(t, geom.Corners{X1: 2, Y1: 2, X2: 20, Y2: 20}, updated.Geometry)

	// The page view shares the entity, so it sees the edit without a resync.
	page, err := s.PageByKey("p1")
	require.NoError(t, err)
	assert.Equal(t, updated, page[0])
	assert.Equal(t, updated, s.Elements()[0])

	t.Run("invalid patch changes nothing", func(t *testing.T) {
		empty := ""
		newTr := "changed"
		_, err := s.UpdateRegion(r.ID, Patch{Text: &empty, Translation: &newTr})
		assert.ErrorIs(t, err, ErrValidation)

		got, err := s.Get(r.ID)
		require.NoError(t, err)
		assert.Equal(t, "貓", got.Translation)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.UpdateRegion("missing", Patch{Text: &text})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_GetPageAndResolve(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.Load(nil, []string{"a.png", "b.png"}))
	_, err := s.AddRegion("b.png", "x", Word, geom.Corners{X1: 0, Y1: 0, X2: 1, Y2: 1}, "")
	require.NoError(t, err)

	key, err := s.ResolvePageKey(1)
	require.NoError(t, err)
	assert.Equal(t, "b.png", key)

	empty, err := s.GetPage(0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	page, err := s.GetPage(1)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	for _, idx := range []int{-1, 2} {
		_, err := s.GetPage(idx)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, err, ErrIndex)
	}

	_, err = s.PageByKey("c.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Load(t *testing.T) {
	t.Run("rebuilds index from elements", func(t *testing.T) {
		s := newTestStore()
		err := s.Load([]Region{
			{ID: "1", PageKey: "b", Text: "x", Category: Word, Geometry: geom.Corners{X1: 5, Y1: 5, X2: 1, Y2: 1}},
			{ID: "2", PageKey: "a", Text: "y", Category: Word},
			{ID: "3", PageKey: "b", Text: "z", Category: Word},
		}, nil)
		require.NoError(t, err)

		assert.Equal(t, []string{"b", "a"}, s.Pages())
		page, err := s.PageByKey("b")
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "1", page[0].ID)
		assert.Equal(t, "3", page[1].ID)
		assert.Equal(t, geom.Corners{X1: 1, Y1: 1, X2: 5, Y2: 5}, page[0].Geometry)
		assert.NoError(t, s.Check())
	})

	t.Run("duplicate ids", func(t *testing.T) {
		s := newTestStore()
		err := s.Load([]Region{{ID: "1", PageKey: "a"}, {ID: "1", PageKey: "b"}}, nil)
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("missing page key", func(t *testing.T) {
		s := newTestStore()
		err := s.Load([]Region{{ID: "1"}}, nil)
		assert.ErrorIs(t, err, ErrFormat)
	})
}

func TestStore_LegacyRegionsWithoutIDs(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.Load([]Region{
		{PageKey: "a", Text: "x", Category: Word},
		{PageKey: "a", Text: "x", Category: Word},
	}, nil))

	assert.ErrorIs(t, s.DeleteRegion("a", ""), ErrValidation)
	assert.Equal(t, 2, s.Len())

	assert.Equal(t, 2, s.AssignMissingIDs())
	assert.Equal(t, 0, s.AssignMissingIDs())

	page, err := s.PageByKey("a")
	require.NoError(t, err)
	require.NotEqual(t, page[0].ID, page[1].ID)
	require.NoError(t, s.DeleteRegion("a", page[0].ID))
	assert.Equal(t, 1, s.Len())
}

func TestStore_UpdateEach(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.Load([]Region{
		{PageKey: "a", Text: "one", Category: Word},
		{PageKey: "a", Text: "two", Category: Word, Translation: "二"},
	}, nil))

	n, err := s.UpdateEach(func(r Region) (Patch, bool) {
		tr := fmt.Sprintf("<%s>", r.Text)
		if r.Translation != "" {
			return Patch{}, false
		}
		return Patch{Translation: &tr}, true
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "<one>", s.Elements()[0].Translation)
	assert.Equal(t, "二", s.Elements()[1].Translation)

	t.Run("one invalid patch applies none", func(t *testing.T) {
		empty := ""
		tr := "x"
		_, err := s.UpdateEach(func(r Region) (Patch, bool) {
			if r.Text == "two" {
				return Patch{Text: &empty}, true
			}
			return Patch{Translation: &tr}, true
		})
		assert.True(t, errors.Is(err, ErrValidation))
		assert.Equal(t, "<one>", s.Elements()[0].Translation)
	})
}

func TestStore_Filter(t *testing.T) {
	s := newTestStore()
	g := geom.Corners{X1: 0, Y1: 0, X2: 1, Y2: 1}
	_, _ = s.AddRegion("a", "w", Word, g, "")
	_, _ = s.AddRegion("a", "s", Sentence, g, "")
	_, _ = s.AddRegion("a", "w2", Word, g, "")

	words, err := s.Filter("a", Word)
	require.NoError(t, err)
	require.Len(t, words, 2)
	assert.Equal(t, "w", words[0].Text)
	assert.Equal(t, "w2", words[1].Text)
}

func TestStore_Check_DetectsMisfiledRegion(t *testing.T) {
	s := newTestStore()
	r, err := s.AddRegion("a", "w", Word, geom.Corners{X1: 0, Y1: 0, X2: 1, Y2: 1}, "")
	require.NoError(t, err)
	s.RegisterPage("b")
	s.pages["b"] = s.pages["a"]
	s.pages["a"] = nil

	err = s.Check()
	assert.ErrorIs(t, err, ErrConsistency)
	assert.Contains(t, err.Error(), r.ID)
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"Word", Word},
		{"sentence", Sentence},
		{"Full Text", FullText},
		{"FullText", FullText},
		{"full  text", FullText},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseCategory("Paragraph")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Full Text", FullText.Label())
}

func TestRegion_DisplayTranslation(t *testing.T) {
	assert.Equal(t, "cat", Region{Text: "cat"}.DisplayTranslation())
	assert.Equal(t, "貓", Region{Text: "cat", Translation: "貓"}.DisplayTranslation())
}
