package cli

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/servkit/restsync/pkg/cli/internal/output"
	"github.com/servkit/restsync/pkg/httpclient"
	"github.com/servkit/restsync/pkg/ledger"
	"github.com/servkit/restsync/pkg/store"
)

// DownloadOutput is the JSON form of the download command.
type DownloadOutput struct {
	Path     string `json:"path"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
}

func newDownloadCmd(opts *globalOptions) *cobra.Command {
	var mimeType, dir string
	cmd := &cobra.Command{
		Use:   "download <endpoint> <name>",
		Short: "Download a file from the API",
		Long: `Download binary content and save it as <name> in --dir.

The MIME type is taken from the response unless --type is given; spreadsheet
responses are reported as application/xlsx.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, httpclient.WithSaver(httpclient.DirSaver{Dir: dir}))
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()

			d, err := s.client.Download(cmd.Context(), args[0], args[1], mimeType)
			if err != nil {
				return err
			}
			out := DownloadOutput{Path: d.Path, MimeType: d.MimeType, Size: d.Size}
			return printResult(cmd, opts, out, func(w io.Writer) error {
				fmt.Fprintf(w, "Saved %s (%s, %d bytes)\n", d.Path, d.MimeType, d.Size)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mimeType, "type", "", "MIME type to record instead of the response's")
	cmd.Flags().StringVar(&dir, "dir", ".", "Directory to save into")
	return cmd
}

// SyncOutput is the JSON form of the sync command.
type SyncOutput struct {
	Endpoint  string                  `json:"endpoint"`
	Cached    bool                    `json:"cached"`
	Resources map[string][]store.Item `json:"resources"`
}

func newSyncCmd(opts *globalOptions) *cobra.Command {
	var rulesFile string
	cmd := &cobra.Command{
		Use:   "sync <endpoint> <resource>...",
		Short: "GET any endpoint and show what it populated",
		Long: `Register the given resources, GET the endpoint and print the items every
resource received from the response. A resource is populated when the
response carries its name as a top-level key, or when a sync rule from the
configuration or --rules matches.`,
		Example: `  restsync sync dashboard users roles
  restsync sync reports/weekly users --rules rules.yaml`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, names := args[0], args[1:]
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()

			if rulesFile != "" {
				rules, err := store.LoadSyncRules(rulesFile)
				if err != nil {
					return err
				}
				for _, r := range rules {
					if err := s.svc.AddSyncRule(r); err != nil {
						return err
					}
				}
			}
			for _, name := range names {
				if _, err := s.controller(name); err != nil {
					return err
				}
			}

			_, err = s.client.Get(cmd.Context(), endpoint)
			cached := false
			switch {
			case err == nil:
			case errors.Is(err, httpclient.ErrCacheFresh):
				cached = true
				output.Warn(cmd.ErrOrStderr(), "%s was fetched less than %ds ago, nothing was synced (use --no-cache)",
					endpoint, s.cfg.CacheDuration)
			default:
				return err
			}

			out := SyncOutput{Endpoint: endpoint, Cached: cached, Resources: make(map[string][]store.Item, len(names))}
			for _, name := range names {
				items, err := s.svc.All(name)
				if err != nil {
					return err
				}
				out.Resources[name] = items
			}
			return printResult(cmd, opts, out, func(w io.Writer) error {
				tw := output.Table(w)
				fmt.Fprintln(tw, "RESOURCE\tITEMS")
				for _, name := range names {
					fmt.Fprintf(tw, "%s\t%d\n", s.labels.CapitalizedPlural(name), len(out.Resources[name]))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&rulesFile, "rules", "", "YAML file with extra sync rules")
	return cmd
}

func newCacheCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the cache ledger",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "List ledger entries and whether they are fresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()

			entries := cacheEntries(s.ledger)
			return printResult(cmd, opts, entries, func(w io.Writer) error {
				if len(entries) == 0 {
					fmt.Fprintln(w, "Cache ledger is empty")
					return nil
				}
				tw := output.Table(w)
				fmt.Fprintln(tw, "ENDPOINT\tFETCHED\tFRESH")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%t\n", e.Endpoint, e.FetchedAt.Format(time.RFC3339), e.Fresh)
				}
				return tw.Flush()
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear [endpoint]...",
		Short: "Forget the given endpoints, or every entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()

			before := s.ledger.Len()
			if len(args) == 0 {
				s.ledger.Clear()
			}
			for _, endpoint := range args {
				s.ledger.Forget(endpoint)
			}
			removed := before - s.ledger.Len()
			return printResult(cmd, opts, map[string]int{"removed": removed}, func(w io.Writer) error {
				fmt.Fprintf(w, "Removed %d ledger entries\n", removed)
				return nil
			})
		},
	}

	cmd.AddCommand(show, clearCmd)
	return cmd
}

// CacheEntry is one ledger entry as shown by cache show.
type CacheEntry struct {
	Endpoint  string    `json:"endpoint"`
	FetchedAt time.Time `json:"fetchedAt"`
	Fresh     bool      `json:"fresh"`
}

func cacheEntries(l *ledger.Ledger) []CacheEntry {
	var out []CacheEntry
	for _, e := range l.Entries() {
		out = append(out, CacheEntry{
			Endpoint:  e.Endpoint,
			FetchedAt: time.Unix(e.FetchedAt, 0).UTC(),
			Fresh:     l.Fresh(e.Endpoint),
		})
	}
	return out
}

// ConfigOutput is the JSON form of the config command.
type ConfigOutput struct {
	Config  any               `json:"config"`
	Sources map[string]string `json:"sources"`
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			out := ConfigOutput{Config: cfg, Sources: cfg.Sources}
			return printResult(cmd, opts, out, func(w io.Writer) error {
				shown := *cfg
				if shown.Token != "" {
					shown.Token = "********"
				}
				data, err := yaml.Marshal(&shown)
				if err != nil {
					return err
				}
				if _, err := w.Write(data); err != nil {
					return err
				}
				keys := make([]string, 0, len(cfg.Sources))
				for k := range cfg.Sources {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				fmt.Fprintln(w, "\n# sources")
				for _, k := range keys {
					fmt.Fprintf(w, "# %s: %s\n", k, cfg.Sources[k])
				}
				return nil
			})
		},
	}
}

// VersionOutput represents JSON output format
type VersionOutput struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

func newVersionCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show restsync version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			version, commit, date := Version, Commit, BuildDate

			if info, ok := debug.ReadBuildInfo(); ok {
				if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
					version = info.Main.Version
				}
				for _, setting := range info.Settings {
					switch setting.Key {
					case "vcs.revision":
						if commit == "none" {
							commit = setting.Value
						}
					case "vcs.time":
						if date == "unknown" {
							date = setting.Value
						}
					}
				}
			}

			out := VersionOutput{
				Version: version,
				Commit:  commit,
				Date:    date,
				Go:      runtime.Version(),
				OS:      runtime.GOOS,
				Arch:    runtime.GOARCH,
			}
			return printResult(cmd, opts, out, func(w io.Writer) error {
				fmt.Fprintf(w, "restsync %s (%s, %s)\n", out.Version, out.Commit, out.Date)
				fmt.Fprintf(w, "%s %s/%s\n", out.Go, out.OS, out.Arch)
				return nil
			})
		},
	}
}
