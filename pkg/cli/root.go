// Package cli implements the restsync command line: CRUD, sync and cache
// inspection against a live REST API through the store layer.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/servkit/restsync/pkg/cli/internal/flags"
	"github.com/servkit/restsync/pkg/cli/internal/output"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	baseURL    string
	configFile string
	logLevel   string
	jsonOutput bool
	noCache    bool
	headers    flags.Pairs

	// environ, dir and skipGlobal isolate configuration loading from the
	// process environment and the user's files; tests set them.
	environ    map[string]string
	dir        string
	skipGlobal bool
}

// NewRootCommand builds the restsync command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&globalOptions{})
}

func newRootCommand(opts *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "restsync",
		Short: "restsync keeps a local entity store in sync with a REST API",
		Long: `restsync talks to a REST API through a cached HTTP client and a store of
per-resource modules. Repeat GETs inside the cache window are suppressed, and
every successful response is scanned for registered resources.

Configuration can be provided via flags, RESTSYNC_* environment variables,
.restsyncrc.yaml in the current directory, or $XDG_CONFIG_HOME/restsync/config.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true, // We handle errors in Execute()
	}

	opts.headers = flags.NewHeaderPairs()
	pf := root.PersistentFlags()
	pf.StringVar(&opts.baseURL, "base-url", "", "API base URL (default: http://localhost:8000/api)")
	pf.StringVarP(&opts.configFile, "config", "c", "", "Config file path (replaces global and local files)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&opts.jsonOutput, "json", false, "Output command results in JSON format")
	pf.BoolVar(&opts.noCache, "no-cache", false, "Ignore the cache ledger for this invocation")
	pf.Var(&opts.headers, "header", "Extra request header 'Key: value' (repeatable)")

	root.AddCommand(
		newListCmd(opts),
		newGetCmd(opts),
		newCreateCmd(opts),
		newUpdateCmd(opts),
		newDeleteCmd(opts),
		newDownloadCmd(opts),
		newSyncCmd(opts),
		newCacheCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(opts),
	)
	return root
}

// Execute runs the root command with the process arguments.
// This is called by main.main().
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printResult writes data as JSON when --json is set and calls textFn
// otherwise. Human-readable hints must go to stderr so that --json output
// stays machine readable.
func printResult(cmd *cobra.Command, opts *globalOptions, data any, textFn func(w io.Writer) error) error {
	if opts.jsonOutput {
		return output.JSON(cmd.OutOrStdout(), data)
	}
	return textFn(cmd.OutOrStdout())
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err)
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(w, "Hint:", hint)
	}
}
