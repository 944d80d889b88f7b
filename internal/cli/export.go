package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	stix2 "github.com/threatline/stix2"
	"github.com/threatline/stix2/store"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <id>...",
		Short: "Export objects as a bundle",
		Long: `Fetch the latest version of each identifier and print them wrapped in a
single bundle, in argument order.

Example:
  stix2ctl export indicator--01234567-89ab-cdef-0123-456789abcdef > bundle.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runExport(opts *RootOptions, ids []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	env, closer, err := openFromOptions(opts)
	if err != nil {
		return err
	}
	defer closer()

	ctx := cmd.Context()

	records := make([]*stix2.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := env.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no object with id %s", id), nil)
			return NewExitError(ExitFailure, "object not found")
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "store read failed", err)
		}
		records = append(records, rec)
	}

	bundle, err := stix2.NewBundle(records)
	if err != nil {
		return WrapExitError(ExitCommandError, "bundle construction failed", err)
	}

	return printRecords(formatter, []*stix2.Record{bundle})
}
