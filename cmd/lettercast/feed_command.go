package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lettercast/internal/analyzer"
	"lettercast/internal/config"
	"lettercast/internal/download"
	"lettercast/internal/logging"
	"lettercast/internal/store"
)

func newFeedCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "feed <feed-url>",
		Short: "Analyze the newest unseen episode of an RSS feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			feedURL := args[0]

			runCtx, cancel := signalContext()
			defer cancel()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			d := download.NewDownloader(cfg, logger)
			episodes, err := d.Episodes(runCtx, feedURL)
			if err != nil {
				return err
			}

			episode, err := pickEpisode(runCtx, cfg, episodes, force)
			if err != nil {
				return err
			}
			if episode == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No new episodes; everything in the feed was already analyzed.")
				return nil
			}

			src := download.Source{Location: episode.AudioURL, Kind: download.KindAudioURL}
			meta := analyzer.Metadata{
				PodcastTitle: episode.PodcastTitle,
				Title:        episode.Title,
				Description:  episode.Description,
				GUID:         episode.GUID,
				Published:    episode.Published,
			}
			return runEpisode(runCtx, cmd.OutOrStdout(), cfg, src, meta, true)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-analyze the newest episode even if its GUID was seen before")
	return cmd
}

// pickEpisode returns the newest episode the store has not seen, or the
// newest episode outright when force is set. A nil episode means the feed
// holds nothing new.
func pickEpisode(ctx context.Context, cfg *config.Config, episodes []download.Episode, force bool) (*download.Episode, error) {
	if force {
		return &episodes[0], nil
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	for i := range episodes {
		seen, err := st.SeenEpisode(ctx, episodes[i].GUID)
		if err != nil {
			return nil, err
		}
		if !seen {
			return &episodes[i], nil
		}
	}
	return nil, nil
}
