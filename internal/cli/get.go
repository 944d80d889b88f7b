package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	stix2 "github.com/threatline/stix2"
	"github.com/threatline/stix2/store"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	AllVersions bool
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch an object by identifier",
		Long: `Fetch the latest version of an object from the configured stores.

Example:
  stix2ctl get indicator--01234567-89ab-cdef-0123-456789abcdef
  stix2ctl get --all-versions malware--fedcba98-7654-3210-fedc-ba9876543210`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.AllVersions, "all-versions", false, "print every stored version, oldest first")

	return cmd
}

func runGet(opts *GetOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	env, closer, err := openFromOptions(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closer()

	ctx := cmd.Context()

	var records []*stix2.Record
	if opts.AllVersions {
		records, err = env.AllVersions(ctx, id)
	} else {
		var rec *stix2.Record
		rec, err = env.Get(ctx, id)
		if err == nil {
			records = []*stix2.Record{rec}
		}
	}
	if errors.Is(err, store.ErrNotFound) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no object with id %s", id), nil)
		return NewExitError(ExitFailure, "object not found")
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "store read failed", err)
	}

	return printRecords(formatter, records)
}

// printRecords writes records in their canonical serialization. In JSON mode
// they are wrapped in the standard response envelope.
func printRecords(f *OutputFormatter, records []*stix2.Record) error {
	if f.Format == "json" {
		payload := make([]any, 0, len(records))
		for _, rec := range records {
			payload = append(payload, rec.Properties())
		}
		return f.Success(payload)
	}

	for _, rec := range records {
		text, err := rec.Serialize()
		if err != nil {
			return WrapExitError(ExitCommandError, "serialization failed", err)
		}
		fmt.Fprintln(f.Writer, string(text))
	}
	return nil
}
