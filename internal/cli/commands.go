package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gokatarajesh/challenge-engine/internal/app"
	"github.com/gokatarajesh/challenge-engine/internal/challenge"
	"github.com/gokatarajesh/challenge-engine/internal/events"
)

func newTickCmd(opts *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one lifecycle pass (activate due, close ended)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all {
				return opts.withService(cmd, func(svc *challenge.Service) error {
					report, err := svc.TickAll(cmd.Context())
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), map[string]any{string(svc.Variant()): report})
				})
			}
			return opts.withComponents(cmd, func(c *app.Components) error {
				reports := make(map[string]challenge.TickReport, len(c.Services))
				var errs []error
				for _, svc := range c.ServiceList() {
					report, err := svc.TickAll(cmd.Context())
					if err != nil {
						errs = append(errs, err)
					}
					reports[string(svc.Variant())] = report
				}
				if err := printJSON(cmd.OutOrStdout(), reports); err != nil {
					return err
				}
				return errors.Join(errs...)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "tick every variant")
	return cmd
}

func newPostCmd(opts *rootOptions) *cobra.Command {
	var immediate bool
	cmd := &cobra.Command{
		Use:   "post [day]",
		Short: "Create the day's challenge if missing and activate it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd, func(svc *challenge.Service) error {
				day := svc.Today()
				if len(args) == 1 {
					day = args[0]
				}
				e, err := svc.PostOrActivate(cmd.Context(), day, immediate)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), e)
			})
		},
	}
	cmd.Flags().BoolVar(&immediate, "immediate", false, "open the window now instead of waiting for its start")
	return cmd
}

func newActivateCmd(opts *rootOptions) *cobra.Command {
	var now bool
	cmd := &cobra.Command{
		Use:   "activate <challenge-id>",
		Short: "Activate a scheduled challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(svc *challenge.Service) error {
				activate := svc.Activate
				if now {
					activate = svc.ActivateNow
				}
				e, changed, err := activate(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"changed": changed, "challenge": e})
			})
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "start the window immediately")
	return cmd
}

func newCloseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "close <challenge-id>",
		Short: "Close a challenge whose window has ended",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(svc *challenge.Service) error {
				e, changed, err := svc.Close(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"changed": changed, "challenge": e})
			})
		},
	}
}

func newLeaderboardCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard <challenge-id>",
		Short: "Print the ranked submissions of a challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(svc *challenge.Service) error {
				board, err := svc.GetLeaderboard(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), board)
			})
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream lifecycle and submission events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return opts.withComponents(cmd, func(c *app.Components) error {
				if c.Redis == nil {
					return errors.New("watch requires REDIS_ADDR")
				}
				out := cmd.OutOrStdout()
				err := events.Subscribe(ctx, c.Redis, c.EventsChannel, opts.logger(cmd.ErrOrStderr()), func(e challenge.Event) {
					_ = printJSON(out, e)
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}
