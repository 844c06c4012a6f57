package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/clickread/internal/api"
	"github.com/jackzampolin/clickread/internal/translate"
)

var (
	translateSkipTranslated bool
	translateDryRun         bool
)

var translateCmd = &cobra.Command{
	Use:   "translate [dir]",
	Short: "Translate every region of every book in a directory",
	Long: `Translate the text of every region of every book record in a
directory (default: <home>/books) with the configured translator.

A region's translation is replaced when the new one differs; failed
translations leave the region alone. A file is saved only when something
changed. Files that cannot be read are reported and skipped.

Examples:
  clickread translate                       # All books in the home directory
  clickread translate ./legacy --dry-run    # Preview on another directory
  clickread translate --skip-translated     # Only fill empty translations`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(os.Stderr)
		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := loadConfig(h, logger)
		if err != nil {
			return err
		}
		client, err := translate.New(mgr.Get().ToTranslateConfig(logger))
		if err != nil {
			return err
		}

		dir := h.BooksDir()
		if len(args) == 1 {
			dir = args[0]
		}
		results, err := translate.Batch(cmd.Context(), dir, client, translate.BatchOptions{
			SkipTranslated: translateSkipTranslated,
			DryRun:         translateDryRun,
		}, logger)
		if outErr := api.Output(results); outErr != nil && err == nil {
			err = outErr
		}
		return err
	},
}

func init() {
	translateCmd.Flags().BoolVar(&translateSkipTranslated, "skip-translated", false, "Leave regions that already have a translation alone")
	translateCmd.Flags().BoolVar(&translateDryRun, "dry-run", false, "Translate but do not save")

	rootCmd.AddCommand(translateCmd)
}
