// Package commands implements the normcache operator CLI.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// CLI represents the command line interface for normcache.
type CLI struct {
	rootCmd *cobra.Command
}

// New creates a new CLI instance.
func New() *CLI {
	rootCmd := &cobra.Command{
		Use:           "normcache",
		Short:         "Inspect and validate normalized cache deployments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "normcache.yaml", "Path to configuration file")

	c := &CLI{rootCmd: rootCmd}
	rootCmd.AddCommand(c.newCheckCmd())
	rootCmd.AddCommand(c.newKeyCmd())
	rootCmd.AddCommand(c.newFrameCmd())
	rootCmd.AddCommand(c.newVersionCmd())
	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects command output.
func (c *CLI) SetOutput(stdout, stderr io.Writer) {
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)
}

// SetInput redirects command input.
func (c *CLI) SetInput(r io.Reader) {
	c.rootCmd.SetIn(r)
}

func configPath(cmd *cobra.Command) string {
	p, _ := cmd.Flags().GetString("config")
	return p
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(Version)
		},
	}
}
