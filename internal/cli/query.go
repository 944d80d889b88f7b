package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	stix2 "github.com/threatline/stix2"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	AllVersions bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [filter...]",
		Short: "Query objects matching filter expressions",
		Long: `Query the configured stores. Each argument is one filter expression of
the form "<field> <op> <value>"; all filters must match. With no filters
every stored object is returned.

Supported operators: = != < <= > >= in contains

Example:
  stix2ctl query "type = indicator"
  stix2ctl query "type = indicator" "labels contains malicious-activity"
  stix2ctl query "created > 2017-01-01T00:00:00Z"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.AllVersions, "all-versions", false, "match every stored version, not just the latest")

	return cmd
}

func runQuery(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	filters, err := ParseFilters(args)
	if err != nil {
		_ = formatter.Error(ErrCodeBadFilter, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	env, closer, err := openFromOptions(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closer()

	ctx := cmd.Context()

	var records []*stix2.Record
	if opts.AllVersions {
		records, err = env.QueryAllVersions(ctx, filters)
	} else {
		records, err = env.Query(ctx, filters)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "store query failed", err)
	}

	return printRecords(formatter, records)
}

// filterOps maps expression operators to their filter counterparts. Order
// matters when scanning: longer operators are tried before their prefixes.
var filterOps = []struct {
	token string
	op    stix2.FilterOp
}{
	{"!=", stix2.OpNotEqual},
	{"<=", stix2.OpLessOrEqual},
	{">=", stix2.OpGreaterOrEqual},
	{"=", stix2.OpEqual},
	{"<", stix2.OpLess},
	{">", stix2.OpGreater},
	{"in", stix2.OpIn},
	{"contains", stix2.OpContains},
}

// ParseFilters converts "<field> <op> <value>" expressions into filters.
func ParseFilters(exprs []string) ([]stix2.Filter, error) {
	filters := make([]stix2.Filter, 0, len(exprs))
	for _, expr := range exprs {
		f, err := parseFilter(expr)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func parseFilter(expr string) (stix2.Filter, error) {
	fields := strings.Fields(expr)
	if len(fields) < 3 {
		return stix2.Filter{}, fmt.Errorf("filter %q: want \"<field> <op> <value>\"", expr)
	}

	field, token := fields[0], fields[1]
	value := strings.Join(fields[2:], " ")

	for _, candidate := range filterOps {
		if candidate.token == token {
			return stix2.NewFilter(field, candidate.op, parseFilterValue(candidate.op, value)), nil
		}
	}
	return stix2.Filter{}, fmt.Errorf("filter %q: unknown operator %q", expr, token)
}

// parseFilterValue interprets the value side of an expression. Comma lists
// become slices for "in", numbers become floats for the ordered operators,
// and everything else stays a string. Timestamps compare correctly as
// strings because the canonical format sorts chronologically.
func parseFilterValue(op stix2.FilterOp, value string) any {
	if op == stix2.OpIn {
		parts := strings.Split(value, ",")
		list := make([]any, 0, len(parts))
		for _, p := range parts {
			list = append(list, strings.TrimSpace(p))
		}
		return list
	}
	if n, err := strconv.ParseFloat(value, 64); err == nil {
		return n
	}
	return value
}
