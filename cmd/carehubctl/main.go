package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/carehub/internal/config"
	"github.com/ehr/carehub/pkg/client"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

const (
	outputTable = "table"
	outputJSON  = "json"
)

// cli is the state shared by every subcommand.
type cli struct {
	out     io.Writer
	output  string
	verbose bool
	logger  zerolog.Logger
	client  *client.Client
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out, logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "carehubctl",
		Short:         "Command-line client for the CareHub API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.connect()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&c.output, "output", "o", outputTable, "output format: table or json")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log requests to stderr")

	for _, def := range resources {
		root.AddCommand(c.resourceCmd(def))
	}
	root.AddCommand(c.jobsCmd())
	root.AddCommand(c.uploadsCmd())
	return root
}

func (c *cli) connect() error {
	if c.output != outputTable && c.output != outputJSON {
		return fmt.Errorf("--output must be %q or %q", outputTable, outputJSON)
	}
	if c.verbose {
		c.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.client = client.New(client.Config{
		BaseURL:      cfg.APIURL,
		ResourceURLs: cfg.ResourceURLs,
		Token:        cfg.Token,
		Timeout:      cfg.Timeout,
		RetryMax:     cfg.RetryMax,
		Logger:       c.logger,
	})
	c.logger.Debug().Str("api_url", cfg.APIURL).Msg("client configured")
	return nil
}
