package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/brix/internal/ir"
	"github.com/roach88/brix/internal/store"
)

// RelateOptions holds flags for the relate subcommands.
type RelateOptions struct {
	*RootOptions
	ID          string
	Name        string
	Description string
	Source      string
	Target      string
	State       string
	Status      string
	SourceKey   string

	// Now stamps status updates (for testing). Defaults to time.Now.
	Now func() time.Time
}

// NewRelateCommand creates the relate command and its subcommands.
func NewRelateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RelateOptions{RootOptions: rootOpts, Now: time.Now}

	cmd := &cobra.Command{
		Use:   "relate",
		Short: "Manage artifact relationships",
		Long: `Add, list and update the relationships that pair a source artifact
with its target counterpart. The engine reads them to decide whether a
target exists and which key actions address.

Artifacts are written endpoint/TYPE/key:

  brix relate add brix.db --id rel-1 --source se-source/SEISSUE/SRC-1 --target se-target/SEISSUE/TGT-1
  brix relate list brix.db
  brix relate status brix.db rel-1 ERROR`,
	}

	cmd.AddCommand(newRelateAddCommand(opts))
	cmd.AddCommand(newRelateListCommand(opts))
	cmd.AddCommand(newRelateStatusCommand(opts))

	return cmd
}

func newRelateAddCommand(opts *RelateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "add <db>",
		Short:         "Save a relationship",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelateAdd(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "relationship id (required)")
	_ = cmd.MarkFlagRequired("id")
	cmd.Flags().StringVar(&opts.Source, "source", "", "source artifact as endpoint/TYPE/key (required)")
	_ = cmd.MarkFlagRequired("source")
	cmd.Flags().StringVar(&opts.Target, "target", "", "target artifact as endpoint/TYPE/key (required)")
	_ = cmd.MarkFlagRequired("target")
	cmd.Flags().StringVar(&opts.Name, "name", "", "relationship name (defaults to source->target keys)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "free-form description")
	cmd.Flags().StringVar(&opts.State, "state", string(ir.StateActive), "lifecycle state")
	cmd.Flags().StringVar(&opts.Status, "status", string(ir.StatusCompleted), "processing status")

	return cmd
}

func newRelateListCommand(opts *RelateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list <db>",
		Short:         "List relationships in insertion order",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelateList(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SourceKey, "source-key", "", "only relationships of this source artifact key")

	return cmd
}

func newRelateStatusCommand(opts *RelateOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status <db> <id> <status>",
		Short:         "Set the processing status of a relationship",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelateStatus(opts, args[0], args[1], args[2], cmd)
		},
	}
}

// parseArtifactRef parses "endpoint/TYPE/key". The key may contain '/'.
func parseArtifactRef(s string) (ir.ArtifactRef, error) {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ir.ArtifactRef{}, fmt.Errorf("invalid artifact %q: want endpoint/TYPE/key", s)
	}
	return ir.ArtifactRef{
		Endpoint: parts[0],
		Type:     ir.ArtifactType(parts[1]),
		Key:      ir.ArtifactKey(parts[2]),
	}, nil
}

func runRelateAdd(opts *RelateOptions, dsn string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	source, err := parseArtifactRef(opts.Source)
	if err != nil {
		return formatter.Fail(ErrCodeInputFailed, err.Error(), nil)
	}
	target, err := parseArtifactRef(opts.Target)
	if err != nil {
		return formatter.Fail(ErrCodeInputFailed, err.Error(), nil)
	}
	state, err := ir.ParseState(opts.State)
	if err != nil {
		return formatter.Fail(ErrCodeInputFailed, err.Error(), nil)
	}
	status, err := ir.ParseStatus(opts.Status)
	if err != nil {
		return formatter.Fail(ErrCodeInputFailed, err.Error(), nil)
	}

	name := opts.Name
	if name == "" {
		name = string(source.Key) + "->" + string(target.Key)
	}
	rel := ir.ArtifactRelationship{
		ID:          opts.ID,
		Name:        name,
		Description: opts.Description,
		Source:      source,
		Target:      target,
		State:       state,
		Status:      status,
	}

	st, err := openStore(ctx, dsn)
	if err != nil {
		return formatter.Fail(ErrCodeStoreFailed, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()

	if err := st.SaveRelationship(ctx, rel); err != nil {
		return formatter.Fail(ErrCodeStoreFailed, err.Error(), nil)
	}
	formatter.VerboseLog("Saved relationship %s to %s", rel.ID, dsn)

	// An existing id keeps its first record; report what is stored.
	stored, err := st.GetRelationship(ctx, rel.ID)
	if err != nil {
		return formatter.Fail(ErrCodeStoreFailed, err.Error(), nil)
	}

	if formatter.IsJSON() {
		return formatter.Success(stored)
	}
	fmt.Fprintf(formatter.Writer, "✓ Relationship %s\n", stored.ID)
	writeRelationship(formatter, stored)
	return nil
}

func runRelateList(opts *RelateOptions, dsn string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	st, err := openStore(ctx, dsn)
	if err != nil {
		return formatter.Fail(ErrCodeStoreFailed, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()

	var rels []ir.ArtifactRelationship
	if opts.SourceKey != "" {
		rels, err = st.FindRelationships(ctx, ir.ArtifactKey(opts.SourceKey))
	} else {
		rels, err = st.ListRelationships(ctx)
	}
	if err != nil {
		return formatter.Fail(ErrCodeStoreFailed, err.Error(), nil)
	}

	if formatter.IsJSON() {
		return formatter.Success(rels)
	}
	if len(rels) == 0 {
		fmt.Fprintln(formatter.Writer, "No relationships found.")
		return nil
	}
	for _, r := range rels {
		fmt.Fprintf(formatter.Writer, "%s\n", r.ID)
		writeRelationship(formatter, r)
	}
	return nil
}

func runRelateStatus(opts *RelateOptions, dsn, id, statusArg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	status, err := ir.ParseStatus(statusArg)
	if err != nil {
		return formatter.Fail(ErrCodeInputFailed, err.Error(), nil)
	}

	st, err := openStore(ctx, dsn)
	if err != nil {
		return formatter.Fail(ErrCodeStoreFailed, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()

	if err := st.UpdateRelationshipStatus(ctx, id, status, opts.Now().UnixMilli()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return formatter.Fail(ErrCodeNotFound, fmt.Sprintf("relationship not found: %s", id), nil)
		}
		return formatter.Fail(ErrCodeStoreFailed, err.Error(), nil)
	}

	rel, err := st.GetRelationship(ctx, id)
	if err != nil {
		return formatter.Fail(ErrCodeStoreFailed, err.Error(), nil)
	}

	if formatter.IsJSON() {
		return formatter.Success(rel)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s status %s\n", rel.ID, rel.Status)
	return nil
}

func writeRelationship(formatter *OutputFormatter, r ir.ArtifactRelationship) {
	w := formatter.Writer
	fmt.Fprintf(w, "  %s/%s/%s → %s/%s/%s\n",
		r.Source.Endpoint, r.Source.Type, r.Source.Key,
		r.Target.Endpoint, r.Target.Type, r.Target.Key)
	fmt.Fprintf(w, "  state %s, status %s\n", r.State, r.Status)
	if formatter.Verbose && r.Name != "" {
		fmt.Fprintf(w, "  name: %s\n", r.Name)
	}
	if formatter.Verbose && r.Description != "" {
		fmt.Fprintf(w, "  description: %s\n", r.Description)
	}
}
