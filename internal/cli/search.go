package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/revstore/internal/queryir"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	Count   bool
	Deleted string
	Limit   int
	Offset  int
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <model> [query.yaml]",
		Short: "Search resources by metadata and indexed fields",
		Long: `Search the resources of a model. Without a query file every live
resource matches. The query file is YAML:

  filter:
    and:
      - {field: name, op: starts_with, value: Deep}
      - {field: level, op: gte, value: 2}
  sort:
    - {field: level, desc: true}
  limit: 20

Flags override the query's deleted filter, limit and offset.

Examples:
  revstore search Zone
  revstore search Zone query.yaml --count
  revstore search Zone --deleted all --limit 5`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Count, "count", false, "print only the number of matches")
	cmd.Flags().StringVar(&opts.Deleted, "deleted", "", "deletion filter (live, deleted, all)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of results")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "results to skip")

	return cmd
}

func runSearch(opts *SearchOptions, args []string, cmd *cobra.Command) error {
	return withSession(opts.RootOptions, cmd, func(s *session) error {
		var q queryir.SearchQuery
		if len(args) == 2 {
			data, err := readInput(cmd, args[1])
			if err != nil {
				return s.formatter.FailInput(err)
			}
			if q, err = queryir.ParseYAML(data); err != nil {
				return s.formatter.FailInput(err)
			}
		}
		if opts.Deleted != "" {
			q.Deleted = queryir.DeletionState(opts.Deleted)
		}
		if cmd.Flags().Changed("limit") {
			q.Limit = opts.Limit
		}
		if cmd.Flags().Changed("offset") {
			q.Offset = opts.Offset
		}
		if err := queryir.Validate(q); err != nil {
			return s.formatter.FailInput(err)
		}

		rm, err := s.model(args[0])
		if err != nil {
			return err
		}

		s.formatter.VerboseLog("Searching %s", rm.Name())
		if opts.Count {
			n, err := rm.Count(cmd.Context(), q)
			if err != nil {
				return s.fail(err)
			}
			return s.respond(map[string]int{"count": n})
		}
		metas, err := rm.Search(cmd.Context(), q)
		if err != nil {
			return s.fail(err)
		}
		return s.respond(metas)
	})
}
