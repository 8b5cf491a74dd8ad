package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/servkit/restsync/pkg/cli/internal/flags"
	"github.com/servkit/restsync/pkg/cli/internal/output"
	"github.com/servkit/restsync/pkg/cli/internal/parse"
	"github.com/servkit/restsync/pkg/controller"
	"github.com/servkit/restsync/pkg/httpclient"
	"github.com/servkit/restsync/pkg/store"
)

// ListOutput is the JSON form of the list command.
type ListOutput struct {
	Resource string       `json:"resource"`
	Items    []store.Item `json:"items"`
	Total    int          `json:"total"`
	Cached   bool         `json:"cached"`
}

func newListCmd(opts *globalOptions) *cobra.Command {
	var (
		endpoint string
		query    = flags.NewQueryPairs()
		filter   = flags.NewQueryPairs()
		where    string
		sortBy   string
		order    string
		limit    int
		offset   int
	)

	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "Read a resource list and show the stored items",
		Long: `Read a resource list through its store module and print the items it holds.

--query is sent to the server and always bypasses the cache ledger.
--filter, --where, --sort, --limit and --offset run locally on the stored items.`,
		Example: `  restsync list users
  restsync list users --query role=admin
  restsync list users --where 'age >= 18' --sort name --limit 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()

			var ext *store.Extension
			if query.Len() > 0 {
				q, err := parse.Query(query.Values())
				if err != nil {
					return err
				}
				ext = &store.Extension{Actions: map[string]store.ActionFunc{
					s.svc.Conventions().Read: s.svc.Factory().ReadWith(httpclient.Query(q)),
				}}
			}
			ctrl, err := s.controller(name, controller.WithEndpoint(endpoint), controller.WithExtension(ext))
			if err != nil {
				return err
			}

			resp, err := ctrl.Read(cmd.Context())
			if err != nil {
				return err
			}
			cached := resp == nil
			if cached {
				output.Warn(cmd.ErrOrStderr(), "%s were fetched less than %ds ago, nothing new was read (use --no-cache)",
					name, s.cfg.CacheDuration)
			}

			items := ctrl.All()
			if where != "" {
				if items, err = s.svc.Where(name, where); err != nil {
					return err
				}
			}
			filters, err := parse.Query(filter.Values())
			if err != nil {
				return err
			}
			exact := make(map[string]string, len(filters))
			for k := range filters {
				exact[k] = filters.Get(k)
			}
			items = store.ApplyFilters(items, exact)
			store.SortItems(items, sortBy, order)
			page, total := store.Paginate(items, offset, limit)

			out := ListOutput{Resource: name, Items: page, Total: total, Cached: cached}
			return printResult(cmd, opts, out, func(w io.Writer) error {
				fmt.Fprintf(w, "%s (%d of %d)\n", ctrl.Labels().CapitalizedPlural(name), len(page), total)
				return writeItems(w, page)
			})
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "API endpoint when it differs from the resource name")
	cmd.Flags().Var(&query, "query", "Server query parameter key=value (repeatable)")
	cmd.Flags().Var(&filter, "filter", "Local exact-match filter field=value (repeatable)")
	cmd.Flags().StringVar(&where, "where", "", "Local filter expression, e.g. 'age >= 18'")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Field to sort by")
	cmd.Flags().StringVar(&order, "order", "asc", "Sort order: asc or desc")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum items to show (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Items to skip")
	return cmd
}

func newGetCmd(opts *globalOptions) *cobra.Command {
	var endpoint string
	cmd := &cobra.Command{
		Use:   "get <resource> <id>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, id := args[0], args[1]
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()

			ctrl, err := s.controller(name, controller.WithEndpoint(endpoint))
			if err != nil {
				return err
			}
			if _, err := ctrl.Show(cmd.Context(), id); err != nil {
				return err
			}
			item, ok := ctrl.ByID(id)
			if !ok {
				return fmt.Errorf("%s %s was not found in the response", ctrl.Singular(), id)
			}
			return printResult(cmd, opts, item, func(w io.Writer) error {
				fmt.Fprintf(w, "%s %s\n", ctrl.Labels().CapitalizedSingular(name), id)
				return writeItems(w, []store.Item{item})
			})
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "API endpoint when it differs from the resource name")
	return cmd
}

func newCreateCmd(opts *globalOptions) *cobra.Command {
	var endpoint, data string
	cmd := &cobra.Command{
		Use:     "create <resource> --data JSON",
		Short:   "Create an item on the server",
		Example: `  restsync create users --data '{"name": "Ada"}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := parseData(data)
			if err != nil {
				return err
			}
			return runWrite(cmd, opts, args[0], endpoint, func(ctrl *controller.Controller) (*httpclient.Response, error) {
				return ctrl.Create(cmd.Context(), item)
			}, "created")
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "API endpoint when it differs from the resource name")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Item as a JSON object")
	return cmd
}

func newUpdateCmd(opts *globalOptions) *cobra.Command {
	var endpoint, data string
	cmd := &cobra.Command{
		Use:     "update <resource> <id> --data JSON",
		Short:   "Update an item on the server",
		Example: `  restsync update users 3 --data '{"name": "Ada L."}'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			item, err := parseData(data)
			if err != nil {
				return err
			}
			item["id"] = args[1]
			return runWrite(cmd, opts, args[0], endpoint, func(ctrl *controller.Controller) (*httpclient.Response, error) {
				return ctrl.Update(cmd.Context(), item)
			}, "updated")
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "API endpoint when it differs from the resource name")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Changed fields as a JSON object")
	return cmd
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	var endpoint string
	cmd := &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete an item on the server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, opts, args[0], endpoint, func(ctrl *controller.Controller) (*httpclient.Response, error) {
				return ctrl.Destroy(cmd.Context(), args[1])
			}, "deleted")
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "API endpoint when it differs from the resource name")
	return cmd
}

// WriteOutput is the JSON form of create, update and delete.
type WriteOutput struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Status   int    `json:"status"`
	Body     any    `json:"body,omitempty"`
}

// runWrite runs a write through the resource's controller and prints the
// server's answer. Field errors from a 422 response are listed on stderr.
func runWrite(cmd *cobra.Command, opts *globalOptions, name, endpoint string,
	do func(*controller.Controller) (*httpclient.Response, error), action string,
) error {
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer func() { _ = s.close() }()

	ctrl, err := s.controller(name, controller.WithEndpoint(endpoint))
	if err != nil {
		return err
	}
	resp, err := do(ctrl)
	if err != nil {
		if !s.validation.Empty() {
			fmt.Fprintln(cmd.ErrOrStderr(), "Validation errors:")
			s.writeValidation(cmd.ErrOrStderr())
		}
		return err
	}

	out := WriteOutput{Resource: name, Action: action, Status: resp.StatusCode}
	if data, ok := resp.Data(); ok {
		out.Body = data
	}
	return printResult(cmd, opts, out, func(w io.Writer) error {
		fmt.Fprintf(w, "%s %s (status %d)\n", ctrl.Labels().CapitalizedSingular(name), action, resp.StatusCode)
		return nil
	})
}

func writeItems(w io.Writer, items []store.Item) error {
	rows := make([]map[string]any, len(items))
	for i, it := range items {
		rows[i] = it
	}
	return output.Rows(w, output.Columns(rows), rows)
}
