package cli

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/cobra"
)

//go:embed schema.cue
var schemaSource []byte

// ValidationIssue is one schema disagreement in one input file.
type ValidationIssue struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file.json>...",
		Short: "Validate objects against their schemas",
		Long: `Check each input file against the schema for its object type: required
fields, identifier and timestamp formats, and per-type field shapes.
Nothing is stored.

Bundle files have their envelope and every member checked.

Example:
  stix2ctl validate indicator.json
  stix2ctl validate --format json feed/*.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	schemas, err := loadSchemas()
	if err != nil {
		return WrapExitError(ExitCommandError, "loading embedded schemas", err)
	}

	var issues []ValidationIssue
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			_ = formatter.Error(ErrCodeBadInput, fmt.Sprintf("reading %s: %v", path, err), nil)
			return WrapExitError(ExitCommandError, "unreadable input", err)
		}
		issues = append(issues, schemas.checkFile(path, data)...)
	}

	if len(issues) > 0 {
		return outputValidationIssues(formatter, issues)
	}
	return outputValidateSuccess(formatter, len(paths))
}

// schemaSet wraps the compiled schema value for repeated lookups.
type schemaSet struct {
	ctx     *cue.Context
	objects cue.Value
}

func loadSchemas() (*schemaSet, error) {
	ctx := cuecontext.New()
	root := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, err
	}
	objects := root.LookupPath(cue.ParsePath("objects"))
	if !objects.Exists() {
		return nil, fmt.Errorf("schema source has no objects section")
	}
	return &schemaSet{ctx: ctx, objects: objects}, nil
}

// checkFile validates one JSON document. Bundles additionally have every
// member checked against its own type's schema.
func (s *schemaSet) checkFile(path string, data []byte) []ValidationIssue {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []ValidationIssue{{File: path, Code: ErrCodeBadInput, Message: fmt.Sprintf("not a JSON object: %v", err)}}
	}

	issues := s.checkDoc(path, "", doc, data)

	if typeTag, _ := doc["type"].(string); typeTag == "bundle" {
		members, _ := doc["objects"].([]any)
		for i, member := range members {
			obj, ok := member.(map[string]any)
			if !ok {
				issues = append(issues, ValidationIssue{
					File:    path,
					Code:    ErrCodeSchemaViolation,
					Message: fmt.Sprintf("objects[%d]: not a JSON object", i),
				})
				continue
			}
			memberData, err := json.Marshal(obj)
			if err != nil {
				issues = append(issues, ValidationIssue{
					File:    path,
					Code:    ErrCodeGeneric,
					Message: fmt.Sprintf("objects[%d]: %v", i, err),
				})
				continue
			}
			issues = append(issues, s.checkDoc(path, fmt.Sprintf("objects[%d]: ", i), obj, memberData)...)
		}
	}

	return issues
}

func (s *schemaSet) checkDoc(path, prefix string, doc map[string]any, data []byte) []ValidationIssue {
	typeTag, ok := doc["type"].(string)
	if !ok || typeTag == "" {
		return []ValidationIssue{{File: path, Code: ErrCodeSchemaViolation, Message: prefix + `missing "type" field`}}
	}

	schema := s.objects.LookupPath(cue.MakePath(cue.Str(typeTag)))
	if !schema.Exists() {
		return []ValidationIssue{{
			File:    path,
			Code:    ErrCodeUnknownType,
			Message: fmt.Sprintf("%sno schema for type %q", prefix, typeTag),
		}}
	}

	// JSON is valid CUE; unify data with the schema and require concreteness.
	value := s.ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return []ValidationIssue{{File: path, Code: ErrCodeBadInput, Message: prefix + err.Error()}}
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		var issues []ValidationIssue
		for _, e := range cueerrors.Errors(err) {
			issues = append(issues, ValidationIssue{
				File:    path,
				Code:    ErrCodeSchemaViolation,
				Message: prefix + e.Error(),
			})
		}
		return issues
	}
	return nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, fileCount int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d file(s) valid\n", fileCount)
	return nil
}

// outputValidationIssues outputs validation failures and sets the exit code.
func outputValidationIssues(formatter *OutputFormatter, issues []ValidationIssue) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Issues: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		fmt.Fprintf(formatter.Writer, "%s\n  %s: %s\n\n", issue.File, issue.Code, issue.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
}
