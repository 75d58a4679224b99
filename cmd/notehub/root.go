package main

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/notehub-client/internal/config"
	"github.com/kuitang/notehub-client/internal/notehub"
	"github.com/kuitang/notehub-client/internal/obs"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	baseURL string
	timeout time.Duration
	jsonOut bool
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "notehub",
		Short: "Work with NoteHub notes from the terminal",
		Long: `notehub talks to the NoteHub API with the token in NOTEHUB_TOKEN
(or NEXT_PUBLIC_NOTEHUB_TOKEN). Input is validated locally before anything
is sent.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			obs.Configure(cmd.ErrOrStderr(), level)
		},
	}

	defaultBase := strings.TrimSpace(os.Getenv("NOTEHUB_BASE_URL"))
	if defaultBase == "" {
		defaultBase = config.DefaultBaseURL
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", defaultBase, "NoteHub API base URL (env NOTEHUB_BASE_URL)")
	flags.DurationVar(&opts.timeout, "timeout", 15*time.Second, "Per-request timeout")
	flags.BoolVar(&opts.jsonOut, "json", false, "Output in JSON format")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log NoteHub requests to stderr")

	cmd.AddCommand(
		newListCmd(opts),
		newGetCmd(opts),
		newCreateCmd(opts),
		newDeleteCmd(opts),
	)
	return cmd
}

// service builds the API client. A missing token fails here, before any
// request is attempted.
func (o *rootOptions) service() (notehub.Service, error) {
	token := strings.TrimSpace(os.Getenv(config.TokenEnv))
	if token == "" {
		token = strings.TrimSpace(os.Getenv(config.LegacyTokenEnv))
	}
	return notehub.New(notehub.Config{
		BaseURL: strings.TrimRight(o.baseURL, "/"),
		Token:   token,
		Timeout: o.timeout,
	})
}
