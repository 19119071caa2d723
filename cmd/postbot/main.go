package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"postbot/client"
	"postbot/internal/app"
	"postbot/internal/blog"
	"postbot/internal/config"
	"postbot/internal/logging"
)

// cli holds what the root command sets up for its subcommands.
type cli struct {
	configPath string
	server     string
	logLevel   string

	logger *zap.Logger
	app    *app.App
	poster blog.Poster
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "postbot",
		Short: "Manage the posts of a GitHub hosted blog",
		Long: `postbot creates, edits and deletes blog posts stored in a GitHub
repository, directly through the contents API or through a running
postbot server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ./postbot.yaml)")
	root.PersistentFlags().StringVar(&c.server, "server", "", "postbot server URL; talk to GitHub directly when empty")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newListCmd(c),
		newTreeCmd(c),
		newShowCmd(c),
		newCreateCmd(c),
		newEditCmd(c),
		newDeleteCmd(c),
		newReportsCmd(c),
		newWatchCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	logger, err := logging.NewLogger(c.logLevel, true)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	c.logger = logger.Logger

	if c.server != "" {
		c.poster = client.New(c.server)
		return nil
	}
	return c.local()
}

// local builds the in-process service; watch needs it even when a server
// is configured for everything else.
func (c *cli) local() error {
	if c.app != nil {
		return nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	a, err := app.New(cfg, c.logger)
	if err != nil {
		return err
	}
	c.app = a
	c.poster = a.Service
	return nil
}

func (c *cli) close() error {
	if c.logger != nil {
		c.logger.Sync()
	}
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
