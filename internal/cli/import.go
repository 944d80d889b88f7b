package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	stix2 "github.com/threatline/stix2"
	"github.com/threatline/stix2/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	AllowCustom bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file.json>...",
		Short: "Import objects or bundles into the write store",
		Long: `Parse each input file as a STIX object or bundle and persist it to the
first configured store. Bundles are unpacked; each member is stored
individually. Re-importing a stored version is a no-op.

Example:
  stix2ctl import feed.json
  stix2ctl import --allow-custom vendor-report.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.AllowCustom, "allow-custom", false, "accept custom fields without the x_ prefix")

	return cmd
}

func runImport(opts *ImportOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	env, closer, err := openFromOptions(opts.RootOptions)
	if err != nil {
		return err
	}
	defer closer()

	ctx := cmd.Context()

	var parseOpts []stix2.Option
	if opts.AllowCustom {
		parseOpts = append(parseOpts, stix2.WithAllowCustom())
	}

	imported := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			_ = formatter.Error(ErrCodeBadInput, fmt.Sprintf("reading %s: %v", path, err), nil)
			return WrapExitError(ExitCommandError, "unreadable input", err)
		}

		rec, err := stix2.Parse(data, parseOpts...)
		if err != nil {
			_ = formatter.Error(ErrCodeBadInput, fmt.Sprintf("parsing %s: %v", path, err), nil)
			return WrapExitError(ExitCommandError, "unparseable input", err)
		}

		if rec.Type() == "bundle" {
			members := stix2.BundleObjects(rec)
			if err := store.AddBundle(ctx, env, rec); err != nil {
				return WrapExitError(ExitCommandError, "store write failed", err)
			}
			slog.Debug("imported bundle", "path", path, "objects", len(members))
			imported += len(members)
			continue
		}

		if err := env.Add(ctx, rec); err != nil {
			return WrapExitError(ExitCommandError, "store write failed", err)
		}
		slog.Debug("imported object", "path", path, "id", rec.ID())
		imported++
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]int{"imported": imported})
	}
	fmt.Fprintf(formatter.Writer, "imported %d object(s)\n", imported)
	return nil
}
