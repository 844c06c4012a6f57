package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/clickread/internal/api"
	"github.com/jackzampolin/clickread/internal/book"
	"github.com/jackzampolin/clickread/internal/editor"
	"github.com/jackzampolin/clickread/internal/geom"
	"github.com/jackzampolin/clickread/internal/region"
	"github.com/jackzampolin/clickread/internal/translate"
)

var regionCmd = &cobra.Command{
	Use:   "region",
	Short: "Edit the regions of a book record",
	Long: `Edit the regions of a book record without a running server.

Every change is saved to the book file before the command returns. Pages
are addressed by zero-based index.

Examples:
  clickread region list moon 0
  clickread region add moon 0 10 10 120 40 --text "Goodnight" --suggest
  clickread region update moon <region_id> --translation "晚安"
  clickread region update moon <region_id> --english-audio goodnight.mp3
  clickread region move moon <region_id> 5 -3
  clickread region delete moon 0 <region_id>`,
}

// openSession loads the book named by arg and opens an editor session
// that saves the book after each mutation.
func openSession(arg string, withTranslator bool) (*book.Book, *editor.Session, error) {
	h, b, err := openBook(arg)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(os.Stderr)
	mgr, err := loadConfig(h, logger)
	if err != nil {
		return nil, nil, err
	}
	cfg := mgr.Get()

	ec := editor.Config{
		Store:           b.Store,
		Saver:           b,
		Audio:           h.Audio(b.ID),
		DefaultCategory: cfg.Category(),
		Logger:          logger,
	}
	if withTranslator {
		tr, err := translate.New(cfg.ToTranslateConfig(logger))
		if err != nil {
			return nil, nil, err
		}
		ec.Translator = tr
	}
	s, err := editor.New(ec)
	if err != nil {
		return nil, nil, err
	}
	return b, s, nil
}

func parsePage(arg string) (int, error) {
	page, err := strconv.Atoi(arg)
	if err != nil || page < 0 {
		return 0, fmt.Errorf("%w: page must be a non-negative integer, got %q", region.ErrValidation, arg)
	}
	return page, nil
}

var listCategory string

var regionListCmd = &cobra.Command{
	Use:   "list <book> <page>",
	Short: "List the regions of a page",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := parsePage(args[1])
		if err != nil {
			return err
		}
		_, s, err := openSession(args[0], false)
		if err != nil {
			return err
		}
		var filter region.Category
		if listCategory != "" {
			if filter, err = region.ParseCategory(listCategory); err != nil {
				return err
			}
		}
		if err := s.Open(page); err != nil {
			return err
		}
		records, err := s.View(filter)
		if err != nil {
			return err
		}
		return api.Output(records)
	},
}

var (
	addText        string
	addTranslation string
	addCategory    string
	addSuggest     bool
)

var regionAddCmd = &cobra.Command{
	Use:   "add <book> <page> <x1> <y1> <x2> <y2>",
	Short: "Add a region to a page",
	Args:  cobra.ExactArgs(6),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := parsePage(args[1])
		if err != nil {
			return err
		}
		corners, err := geom.ParseCorners(strings.Join(args[2:], ","))
		if err != nil {
			return fmt.Errorf("%w: %v", region.ErrValidation, err)
		}
		form := editor.Form{Text: addText, Translation: addTranslation}
		if addCategory != "" {
			if form.Category, err = region.ParseCategory(addCategory); err != nil {
				return err
			}
		}

		_, s, err := openSession(args[0], addSuggest)
		if err != nil {
			return err
		}
		if err := s.Open(page); err != nil {
			return err
		}
		if err := s.Propose(corners); err != nil {
			return err
		}
		s.SetForm(form)
		if addSuggest && addTranslation == "" {
			if _, err := s.SuggestTranslation(cmd.Context()); err != nil {
				return err
			}
		}
		r, err := s.Confirm()
		if err != nil {
			return err
		}
		return api.Output(r)
	},
}

var (
	updText        string
	updTranslation string
	updCategory    string
	updGeometry    string
	updEnglish     string
	updChinese     string
)

var regionUpdateCmd = &cobra.Command{
	Use:   "update <book> <region_id>",
	Short: "Update a region",
	Long: `Update a region's fields. Only the flags given are changed.

Audio names are looked up in <home>/audio/<lang>/<book_id>/ unless they
are absolute paths. A file that cannot be found clears the field and is
reported as a warning; the other changes are still saved. An empty audio
flag clears the field.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		var patch region.Patch
		if flags.Changed("text") {
			patch.Text = &updText
		}
		if flags.Changed("translation") {
			patch.Translation = &updTranslation
		}
		if flags.Changed("category") {
			cat, err := region.ParseCategory(updCategory)
			if err != nil {
				return err
			}
			patch.Category = &cat
		}
		if flags.Changed("geometry") {
			c, err := geom.ParseCorners(updGeometry)
			if err != nil {
				return fmt.Errorf("%w: %v", region.ErrValidation, err)
			}
			patch.Geometry = &c
		}
		audio := map[string]*string{}
		if flags.Changed("english-audio") {
			audio[editor.LangEnglish] = &updEnglish
		}
		if flags.Changed("chinese-audio") {
			audio[editor.LangChinese] = &updChinese
		}
		for lang, name := range audio {
			if *name != "" {
				continue
			}
			// Clearing needs no lookup.
			if lang == editor.LangEnglish {
				patch.EnglishAudioFile = name
			} else {
				patch.ChineseAudioFile = name
			}
			delete(audio, lang)
		}
		if patch.Empty() && len(audio) == 0 {
			return fmt.Errorf("at least one field flag must be specified")
		}

		b, s, err := openSession(args[0], false)
		if err != nil {
			return err
		}
		r, err := selectByID(b, s, args[1])
		if err != nil {
			return err
		}
		if !patch.Empty() {
			if r, err = s.Update(patch); err != nil {
				return err
			}
		}
		for _, lang := range []string{editor.LangEnglish, editor.LangChinese} {
			name, ok := audio[lang]
			if !ok {
				continue
			}
			updated, err := s.AttachAudio(lang, *name)
			if errors.Is(err, region.ErrConsistency) {
				return err
			}
			r = updated
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: %s audio: %v\n", lang, err)
			}
		}
		return api.Output(r)
	},
}

// selectByID opens the page holding id and selects the region.
func selectByID(b *book.Book, s *editor.Session, id string) (region.Region, error) {
	current, err := b.Store.Get(id)
	if err != nil {
		return region.Region{}, err
	}
	if err := s.OpenKey(current.PageKey); err != nil {
		return region.Region{}, err
	}
	return s.Select(id)
}

var regionMoveCmd = &cobra.Command{
	Use:   "move <book> <region_id> <dx> <dy>",
	Short: "Move a region by an offset",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		dx, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("%w: dx must be an integer", region.ErrValidation)
		}
		dy, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("%w: dy must be an integer", region.ErrValidation)
		}
		b, s, err := openSession(args[0], false)
		if err != nil {
			return err
		}
		if _, err := selectByID(b, s, args[1]); err != nil {
			return err
		}
		r, err := s.Move(dx, dy)
		if err != nil {
			return err
		}
		return api.Output(r)
	},
}

var regionDeleteCmd = &cobra.Command{
	Use:   "delete <book> <page> <region_id>",
	Short: "Delete a region from a page",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := parsePage(args[1])
		if err != nil {
			return err
		}
		_, s, err := openSession(args[0], false)
		if err != nil {
			return err
		}
		if err := s.Open(page); err != nil {
			return err
		}
		if _, err := s.Select(args[2]); err != nil {
			return err
		}
		if err := s.Delete(); err != nil {
			return err
		}
		fmt.Printf("Deleted region %s\n", args[2])
		return nil
	},
}

func init() {
	regionListCmd.Flags().StringVar(&listCategory, "category", "", "Only list regions of this category")

	regionAddCmd.Flags().StringVar(&addText, "text", "", "Region text (required)")
	regionAddCmd.Flags().StringVar(&addTranslation, "translation", "", "Translation")
	regionAddCmd.Flags().StringVar(&addCategory, "category", "", "Word, Sentence or Full Text (default from config)")
	regionAddCmd.Flags().BoolVar(&addSuggest, "suggest", false, "Fill an empty translation from the configured translator")
	regionAddCmd.MarkFlagRequired("text")

	regionUpdateCmd.Flags().StringVar(&updText, "text", "", "New text")
	regionUpdateCmd.Flags().StringVar(&updTranslation, "translation", "", "New translation")
	regionUpdateCmd.Flags().StringVar(&updCategory, "category", "", "New category")
	regionUpdateCmd.Flags().StringVar(&updGeometry, "geometry", "", "New corners as x1,y1,x2,y2")
	regionUpdateCmd.Flags().StringVar(&updEnglish, "english-audio", "", "English audio file (empty clears)")
	regionUpdateCmd.Flags().StringVar(&updChinese, "chinese-audio", "", "Chinese audio file (empty clears)")

	regionCmd.AddCommand(regionListCmd)
	regionCmd.AddCommand(regionAddCmd)
	regionCmd.AddCommand(regionUpdateCmd)
	regionCmd.AddCommand(regionMoveCmd)
	regionCmd.AddCommand(regionDeleteCmd)

	rootCmd.AddCommand(regionCmd)
}

