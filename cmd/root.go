package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the gmail-send-mcp application
var rootCmd = &cobra.Command{
	Use:   "gmail-send-mcp",
	Short: "MCP server that sends email through Gmail",
	Long: `gmail-send-mcp is a Model Context Protocol server that exposes a single
send_email tool to AI assistants. It speaks newline-delimited JSON-RPC 2.0 on
standard input and output and delivers mail through the Gmail API or SMTP.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// FatalStartupError reports configuration that prevents the server from
// starting at all.
type FatalStartupError struct {
	Err error
}

func (e *FatalStartupError) Error() string {
	return "startup failed: " + e.Err.Error()
}

func (e *FatalStartupError) Unwrap() error {
	return e.Err
}

func fatalf(format string, args ...any) error {
	return &FatalStartupError{Err: fmt.Errorf(format, args...)}
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "gmail-send-mcp version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newToolsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
