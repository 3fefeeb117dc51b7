package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	tierColor   = color.New(color.FgGreen, color.Bold)
	warnColor   = color.New(color.FgYellow)
	dimColor    = color.New(color.Faint)
)

func seedCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the bundled sample playlists into the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeStore, err := openStore(a.cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			svc, _ := newServices(a.cfg, repo)
			var n int
			if force {
				n, err = svc.SeedPlaylists(cmd.Context())
			} else {
				n, err = svc.SeedIfEmpty(cmd.Context())
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if n == 0 {
				warnColor.Fprintln(out, "store already holds playlists; use --force to replace them")
				return nil
			}
			tierColor.Fprintf(out, "seeded %d playlists\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Replace existing playlists")
	return cmd
}

func recommendCommand(a *app) *cobra.Command {
	var (
		emotion   string
		languages []string
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Resolve playlists for an emotion once and print them",
		Example: `  moodlist recommend --emotion happy --languages English,Hindi
  moodlist recommend --emotion fearful --languages Odia`,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeStore, err := openStore(a.cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			svc, _ := newServices(a.cfg, repo)
			res, err := svc.Recommend(cmd.Context(), emotion, languages)
			if err != nil {
				return err
			}
			printRecommendation(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&emotion, "emotion", "e", "", "Classifier emotion (happy, sad, angry, fearful, disgusted, surprised, neutral)")
	cmd.Flags().StringSliceVarP(&languages, "languages", "l", nil, "Preferred languages, comma separated")
	_ = cmd.MarkFlagRequired("emotion")
	_ = cmd.MarkFlagRequired("languages")
	return cmd
}

func printRecommendation(w io.Writer, res domain.RecommendationResult) {
	if res.Empty() {
		warnColor.Fprintf(w, "no playlists for %s in %v\n", res.Emotion, res.Languages)
		return
	}
	tierColor.Fprintf(w, "%s", res.Tier)
	if res.MatchedEmotion != "" && res.MatchedEmotion != string(res.Emotion) {
		fmt.Fprintf(w, " (%s via %s)", res.Emotion, res.MatchedEmotion)
	}
	fmt.Fprintln(w)
	for _, p := range res.Playlists {
		headerColor.Fprintf(w, "%s", p.Name)
		dimColor.Fprintf(w, "  [%s, %s]\n", p.Language, p.Emotion)
		for i, s := range p.Songs {
			fmt.Fprintf(w, "  %d. %s - %s  ", i+1, s.Title, s.Artist)
			dimColor.Fprintln(w, s.PlaybackURL())
		}
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "moodlist %s\n", version)
		},
	}
}
