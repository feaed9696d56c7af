package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lettercast/internal/analyzer"
	"lettercast/internal/download"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var title string
	var description string

	cmd := &cobra.Command{
		Use:   "analyze <audio-url-or-file>",
		Short: "Analyze one episode from a direct audio URL or a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			src := classifySource(args[0])
			meta := analyzer.Metadata{
				Title:       strings.TrimSpace(title),
				Description: strings.TrimSpace(description),
			}
			if meta.Title == "" {
				meta.Title = inferTitle(src.Location)
			}

			runCtx, cancel := signalContext()
			defer cancel()
			return runEpisode(runCtx, cmd.OutOrStdout(), cfg, src, meta, false)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Episode title used in prompts and the newsletter")
	cmd.Flags().StringVar(&description, "description", "", "Episode description fed into the prompts")
	return cmd
}

// classifySource treats anything that exists on disk as a local file and
// everything else as a direct audio URL.
func classifySource(location string) download.Source {
	if _, err := os.Stat(location); err == nil {
		return download.Source{Location: location, Kind: download.KindLocalFile}
	}
	return download.Source{Location: location, Kind: download.KindAudioURL}
}

// inferTitle derives a usable episode title from a URL or path when the
// caller gives none.
func inferTitle(location string) string {
	base := filepath.Base(location)
	if idx := strings.IndexAny(base, "?#"); idx >= 0 {
		base = base[:idx]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == "/" {
		return "Untitled Episode"
	}
	return base
}
