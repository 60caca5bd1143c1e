package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/example/go-scene-voice/internal/config"
	"github.com/example/go-scene-voice/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect saved sessions",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withHistory(cmd, func(ctx context.Context, s *history.Store) error {
				sessions, err := s.List(ctx, limit)
				if err != nil {
					return err
				}
				return printSessions(cmd.OutOrStdout(), sessions, time.Now())
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum number of sessions to list")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, func(ctx context.Context, s *history.Store) error {
				sess, err := s.Get(ctx, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sess)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd, func(ctx context.Context, s *history.Store) error {
				if err := s.Delete(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return err
			})
		},
	}

	prune := &cobra.Command{
		Use:   "prune <keep>",
		Short: "Keep only the newest sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keep, err := strconv.Atoi(args[0])
			if err != nil || keep < 0 {
				return fmt.Errorf("keep must be a non-negative integer, got %q", args[0])
			}
			return withHistory(cmd, func(ctx context.Context, s *history.Store) error {
				n, err := s.Prune(ctx, keep)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "pruned %d session(s)\n", n)
				return err
			})
		},
	}

	cmd.AddCommand(list, show, del, prune)
	return cmd
}

func withHistory(cmd *cobra.Command, fn func(context.Context, *history.Store) error) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	return runWithHistory(cmd.Context(), cfg, fn)
}

func runWithHistory(ctx context.Context, cfg config.Config, fn func(context.Context, *history.Store) error) error {
	if !cfg.History.Enabled {
		return errors.New("history is disabled (set --history or history.enabled)")
	}
	s, err := history.Open(ctx, cfg.History.Path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(ctx, s)
}

func printSessions(w io.Writer, sessions []history.Session, now time.Time) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "no sessions")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCREATED\tPART\tVOICE\tWORDS\tAUDIO")
	for _, s := range sessions {
		words := 0
		if s.Script != nil {
			words = s.Script.WordCount()
		}
		audioPath := s.AudioPath
		if audioPath == "" {
			audioPath = "-"
		} else if s.Skipped > 0 {
			audioPath = fmt.Sprintf("%s (%d skipped)", audioPath, s.Skipped)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\n",
			s.ID, humanize.RelTime(s.CreatedAt, now, "ago", "from now"), s.Config.Part, s.Voice, words, audioPath)
	}
	return tw.Flush()
}
