package library

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/clickread/internal/book"
	"github.com/jackzampolin/clickread/internal/geom"
	"github.com/jackzampolin/clickread/internal/home"
	"github.com/jackzampolin/clickread/internal/region"
)

func newLibrary(t *testing.T) *Library {
	t.Helper()
	h, err := home.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, h.EnsureExists())
	return New(h, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLibrary_CreateListUpdate(t *testing.T) {
	lib := newLibrary(t)

	_, err := lib.Create("moon", book.LayoutPaged, []book.PageInfo{{Number: 1, Image: "page_0001.png"}, {Number: 2, Image: "page_0002.png"}})
	require.NoError(t, err)

	_, err = lib.Create("moon", book.LayoutPaged, nil)
	assert.ErrorIs(t, err, ErrExists)

	require.NoError(t, os.WriteFile(lib.Home().BookPath("broken"), []byte("{"), 0o644))

	list, err := lib.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "broken", list[0].ID)
	assert.NotEmpty(t, list[0].Error)
	assert.Equal(t, Summary{ID: "moon", Path: lib.Home().BookPath("moon"), Layout: book.LayoutPaged, Pages: 2}, list[1])

	var added region.Region
	err = lib.Update("moon", func(b *book.Book) error {
		added, err = b.Store.AddRegion("page_0002.png", "moon", region.Word, geom.Corners{X1: 1, Y1: 1, X2: 9, Y2: 9}, "")
		return err
	})
	require.NoError(t, err)

	// Written through: a fresh load sees the region.
	lib.Forget("moon")
	err = lib.View("moon", func(b *book.Book) error {
		got, err := b.Store.Get(added.ID)
		require.NoError(t, err)
		assert.Equal(t, added, got)
		return nil
	})
	require.NoError(t, err)
}

func TestLibrary_Errors(t *testing.T) {
	lib := newLibrary(t)

	err := lib.View("missing", func(*book.Book) error { return nil })
	assert.ErrorIs(t, err, region.ErrNotFound)

	err = lib.View("../etc", func(*book.Book) error { return nil })
	assert.ErrorIs(t, err, region.ErrValidation)

	_, err = lib.Create("moon", book.LayoutFlat, nil)
	require.NoError(t, err)

	err = lib.Update("moon", func(b *book.Book) error {
		_, err := b.Store.AddRegion("p1", "", region.Word, geom.Corners{X1: 1, Y1: 1, X2: 9, Y2: 9}, "")
		return err
	})
	assert.ErrorIs(t, err, region.ErrValidation)
}

func TestLibrary_ConcurrentUpdatesAreSerialized(t *testing.T) {
	lib := newLibrary(t)
	_, err := lib.Create("moon", book.LayoutPaged, []book.PageInfo{{Number: 1, Image: "p1.png"}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = lib.Update("moon", func(b *book.Book) error {
				_, err := b.Store.AddRegion("p1.png", "w", region.Word, geom.Corners{X1: 0, Y1: 0, X2: 2, Y2: 2}, "")
				return err
			})
		}()
	}
	wg.Wait()

	lib.Forget("moon")
	err = lib.View("moon", func(b *book.Book) error {
		assert.Equal(t, 20, b.Store.Len())
		return b.Store.Check()
	})
	require.NoError(t, err)
}

func TestLibrary_PagesSurviveReload(t *testing.T) {
	lib := newLibrary(t)
	pages := []book.PageInfo{{Number: 1, Image: "page_0001.png"}, {Number: 2, Image: "page_0002.png"}}

	_, err := lib.Create("flat", book.LayoutFlat, pages)
	assert.ErrorIs(t, err, region.ErrValidation)
	_, err = os.Stat(lib.Home().BookPath("flat"))
	assert.True(t, os.IsNotExist(err), "rejected book must not be written")

	_, err = lib.Create("moon", book.LayoutPaged, pages)
	require.NoError(t, err)

	lib.Forget("moon")
	err = lib.View("moon", func(b *book.Book) error {
		assert.Equal(t, []string{"page_0001.png", "page_0002.png"}, b.Store.Pages())
		return nil
	})
	require.NoError(t, err)
}

func TestLibrary_FlatBookPagesMatchDisk(t *testing.T) {
	lib := newLibrary(t)
	_, err := lib.Create("cat", book.LayoutFlat, nil)
	require.NoError(t, err)

	box := geom.Corners{X1: 1, Y1: 1, X2: 9, Y2: 9}
	var first region.Region
	err = lib.Update("cat", func(b *book.Book) error {
		if first, err = b.Store.AddRegion("p1.png", "cat", region.Word, box, ""); err != nil {
			return err
		}
		_, err = b.Store.AddRegion("p2.png", "dog", region.Word, box, "")
		return err
	})
	require.NoError(t, err)

	// Deleting the only region on p1 removes the page from a flat book, both
	// in the cached copy and in a fresh load.
	err = lib.Update("cat", func(b *book.Book) error {
		return b.Store.DeleteRegion("p1.png", first.ID)
	})
	require.NoError(t, err)

	var cached []string
	require.NoError(t, lib.View("cat", func(b *book.Book) error {
		cached = b.Store.Pages()
		return nil
	}))
	lib.Forget("cat")
	require.NoError(t, lib.View("cat", func(b *book.Book) error {
		assert.Equal(t, cached, b.Store.Pages())
		return nil
	}))
	assert.Equal(t, []string{"p2.png"}, cached)
}

func TestLibrary_FailedUpdateDiscardsChanges(t *testing.T) {
	lib := newLibrary(t)
	_, err := lib.Create("moon", book.LayoutPaged, []book.PageInfo{{Number: 1, Image: "p1.png"}})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = lib.Update("moon", func(b *book.Book) error {
		if _, err := b.Store.AddRegion("p1.png", "moon", region.Word, geom.Corners{X1: 1, Y1: 1, X2: 9, Y2: 9}, ""); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// The cached book matches the file: the region added before the failure is gone.
	require.NoError(t, lib.View("moon", func(b *book.Book) error {
		assert.Equal(t, 0, b.Store.Len())
		assert.Equal(t, []string{"p1.png"}, b.Store.Pages())
		return nil
	}))
}
