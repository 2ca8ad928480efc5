package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gokatarajesh/challenge-engine/internal/app"
	"github.com/gokatarajesh/challenge-engine/internal/challenge"
	"github.com/gokatarajesh/challenge-engine/internal/config"
)

type rootOptions struct {
	envFile string
	variant string
	verbose bool
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the challengectl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "challengectl",
		Short:        "Operate daily challenges: post, activate, close, tick and watch events",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "configs/.env", "dotenv file loaded outside production")
	cmd.PersistentFlags().StringVar(&opts.variant, "variant", string(challenge.VariantDaily), "challenge variant")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(
		newTickCmd(opts),
		newPostCmd(opts),
		newActivateCmd(opts),
		newCloseCmd(opts),
		newLeaderboardCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

func (o *rootOptions) logger(w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(level).With().Timestamp().Logger()
}

func (o *rootOptions) loadConfig(ctx context.Context) (*config.App, error) {
	if os.Getenv("APP_ENV") != "production" && o.envFile != "" {
		// A missing dotenv file is fine; the environment may already be set.
		_ = godotenv.Load(o.envFile)
	}
	return config.Load(ctx)
}

// withService builds the components and hands fn the selected variant's service.
func (o *rootOptions) withService(cmd *cobra.Command, fn func(*challenge.Service) error) error {
	variant, err := challenge.ParseVariant(o.variant)
	if err != nil {
		return err
	}
	return o.withComponents(cmd, func(c *app.Components) error {
		svc, err := c.Service(variant)
		if err != nil {
			return err
		}
		return fn(svc)
	})
}

func (o *rootOptions) withComponents(cmd *cobra.Command, fn func(*app.Components) error) error {
	ctx := cmd.Context()
	cfg, err := o.loadConfig(ctx)
	if err != nil {
		return err
	}
	components, err := app.Build(ctx, cfg, o.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer components.Close()
	return fn(components)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
