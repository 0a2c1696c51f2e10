package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/revstore/internal/config"
	"github.com/roach88/revstore/internal/manager"
	"github.com/roach88/revstore/internal/resource"
)

var errPatchRequired = errors.New("patch operations are required (--data or --file)")

// withSession opens a session, runs fn and closes it.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(s *session) error) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// mutate runs a write against model as the session actor and prints the
// resulting resource.
func mutate(s *session, ctx context.Context, model string, fn func(ctx context.Context, rm *manager.ResourceManager[config.Document]) (*resource.Resource[config.Document], error)) error {
	rm, err := s.model(model)
	if err != nil {
		return err
	}
	var res *resource.Resource[config.Document]
	err = s.write(ctx, func(ctx context.Context) error {
		res, err = fn(ctx, rm)
		return err
	})
	if err != nil {
		return s.fail(err)
	}
	return s.respond(res)
}

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Payload PayloadInput
	ID      string
	Draft   bool
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <model>",
		Short: "Create a resource",
		Long: `Create a resource whose root revision holds the given payload.

Examples:
  revstore create Zone --data '{"name":"Forest","level":1}'
  revstore create Zone --file zone.yaml --id forest --draft`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(s *session) error {
				payload, err := opts.Payload.read(cmd)
				if err != nil {
					return s.formatter.FailInput(err)
				}
				var wopts []manager.WriteOption
				if opts.ID != "" {
					wopts = append(wopts, manager.WithResourceID(opts.ID))
				}
				if opts.Draft {
					wopts = append(wopts, manager.AsDraft())
				}
				return mutate(s, cmd.Context(), args[0], func(ctx context.Context, rm *manager.ResourceManager[config.Document]) (*resource.Resource[config.Document], error) {
					return rm.Create(ctx, payload, wopts...)
				})
			})
		},
	}

	opts.Payload.register(cmd)
	cmd.Flags().StringVar(&opts.ID, "id", "", "resource id (generated when empty)")
	cmd.Flags().BoolVar(&opts.Draft, "draft", false, "store the revision as a draft")

	return cmd
}

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	Revision       string
	IncludeDeleted bool
	Meta           bool
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <model> <id>",
		Short: "Show a resource",
		Long: `Show the current revision of a resource, a specific revision with
--revision, or the meta record with --meta.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(s *session) error {
				rm, err := s.model(args[0])
				if err != nil {
					return err
				}
				var ropts []manager.ReadOption
				if opts.IncludeDeleted {
					ropts = append(ropts, manager.IncludeDeleted())
				}

				var out any
				switch {
				case opts.Meta:
					out, err = rm.GetMeta(cmd.Context(), args[1], ropts...)
				case opts.Revision != "":
					out, err = rm.GetRevision(cmd.Context(), args[1], opts.Revision, ropts...)
				default:
					out, err = rm.Get(cmd.Context(), args[1], ropts...)
				}
				if err != nil {
					return s.fail(err)
				}
				return s.respond(out)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Revision, "revision", "", "show this revision instead of the current one")
	cmd.Flags().BoolVar(&opts.IncludeDeleted, "include-deleted", false, "allow soft-deleted resources")
	cmd.Flags().BoolVar(&opts.Meta, "meta", false, "show the meta record")

	return cmd
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var includeDeleted bool

	cmd := &cobra.Command{
		Use:           "history <model> <id>",
		Short:         "List the revisions of a resource",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session) error {
				rm, err := s.model(args[0])
				if err != nil {
					return err
				}
				var ropts []manager.ReadOption
				if includeDeleted {
					ropts = append(ropts, manager.IncludeDeleted())
				}
				infos, err := rm.ListRevisions(cmd.Context(), args[1], ropts...)
				if err != nil {
					return s.fail(err)
				}
				return s.respond(infos)
			})
		},
	}

	cmd.Flags().BoolVar(&includeDeleted, "include-deleted", false, "allow soft-deleted resources")

	return cmd
}

// UpdateOptions holds flags for the update and patch commands.
type UpdateOptions struct {
	*RootOptions
	Payload  PayloadInput
	Expect   string
	Modify   bool
	Draft    bool
	Finalize bool
}

func (o *UpdateOptions) register(cmd *cobra.Command) {
	o.Payload.register(cmd)
	cmd.Flags().StringVar(&o.Expect, "expect", "", "fail unless this revision is current")
	cmd.Flags().BoolVar(&o.Modify, "modify", false, "amend the current draft instead of appending")
	cmd.Flags().BoolVar(&o.Draft, "draft", false, "store the revision as a draft")
	cmd.Flags().BoolVar(&o.Finalize, "stable", false, "store the revision as stable (finalises a draft with --modify)")
}

func (o *UpdateOptions) writeOptions() []manager.WriteOption {
	var wopts []manager.WriteOption
	if o.Expect != "" {
		wopts = append(wopts, manager.WithExpectedRevision(o.Expect))
	}
	if o.Modify {
		wopts = append(wopts, manager.WithMode(manager.ModeModify))
	}
	switch {
	case o.Finalize:
		wopts = append(wopts, manager.WithStatus(resource.StatusStable))
	case o.Draft:
		wopts = append(wopts, manager.AsDraft())
	}
	return wopts
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <model> <id>",
		Short: "Store a new payload for a resource",
		Long: `Store a new payload for a resource.

By default a new revision is appended whose parent is the current one.
With --modify the current draft revision is amended in place; add --stable
to finalise it.

Examples:
  revstore update Zone forest --data '{"name":"Deep Forest","level":2}'
  revstore update Zone forest --file zone.yaml --expect <revision-id>
  revstore update Zone forest --file zone.yaml --modify --stable`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(s *session) error {
				payload, err := opts.Payload.read(cmd)
				if err != nil {
					return s.formatter.FailInput(err)
				}
				return mutate(s, cmd.Context(), args[0], func(ctx context.Context, rm *manager.ResourceManager[config.Document]) (*resource.Resource[config.Document], error) {
					return rm.Update(ctx, args[1], payload, opts.writeOptions()...)
				})
			})
		},
	}

	opts.register(cmd)

	return cmd
}

// NewPatchCommand creates the patch command.
func NewPatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "patch <model> <id>",
		Short: "Apply a JSON Patch to a resource",
		Long: `Apply RFC 6902 JSON Patch operations to the current payload and store
the result like update does.

Example:
  revstore patch Zone forest --data '[{"op":"replace","path":"/level","value":3}]'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts.RootOptions, cmd, func(s *session) error {
				if opts.Payload.Data == "" && opts.Payload.File == "" {
					return s.formatter.FailInput(errPatchRequired)
				}
				ops := []byte(opts.Payload.Data)
				if opts.Payload.File != "" {
					var err error
					if ops, err = readInput(cmd, opts.Payload.File); err != nil {
						return s.formatter.FailInput(err)
					}
				}
				return mutate(s, cmd.Context(), args[0], func(ctx context.Context, rm *manager.ResourceManager[config.Document]) (*resource.Resource[config.Document], error) {
					return rm.Patch(ctx, args[1], ops, opts.writeOptions()...)
				})
			})
		},
	}

	opts.register(cmd)

	return cmd
}

// NewSwitchCommand creates the switch command.
func NewSwitchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "switch <model> <id> <revision>",
		Short:         "Make an existing revision current",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session) error {
				return mutate(s, cmd.Context(), args[0], func(ctx context.Context, rm *manager.ResourceManager[config.Document]) (*resource.Resource[config.Document], error) {
					return rm.Switch(ctx, args[1], args[2])
				})
			})
		},
	}
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <model> <id>",
		Short: "Rewrite a resource at the configured schema version",
		Long: `Rewrite the current revision of a resource at the model's configured
schema version as a new revision. Resources already at that version are
left alone.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session) error {
				return mutate(s, cmd.Context(), args[0], func(ctx context.Context, rm *manager.ResourceManager[config.Document]) (*resource.Resource[config.Document], error) {
					return rm.Migrate(ctx, args[1])
				})
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return newFlagCommand(rootOpts, "delete", "Soft-delete a resource and apply delete policies",
		func(ctx context.Context, rm *manager.ResourceManager[config.Document], id string) error {
			return rm.Delete(ctx, id)
		})
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return newFlagCommand(rootOpts, "restore", "Clear the deleted flag of a resource",
		func(ctx context.Context, rm *manager.ResourceManager[config.Document], id string) error {
			return rm.Restore(ctx, id)
		})
}

// newFlagCommand builds delete and restore, which change the deleted flag
// and print the resulting meta.
func newFlagCommand(rootOpts *RootOptions, name, short string, fn func(ctx context.Context, rm *manager.ResourceManager[config.Document], id string) error) *cobra.Command {
	return &cobra.Command{
		Use:           name + " <model> <id>",
		Short:         short,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session) error {
				rm, err := s.model(args[0])
				if err != nil {
					return err
				}
				err = s.write(cmd.Context(), func(ctx context.Context) error {
					return fn(ctx, rm, args[1])
				})
				if err != nil {
					return s.fail(err)
				}
				meta, err := rm.GetMeta(cmd.Context(), args[1], manager.IncludeDeleted())
				if err != nil {
					return s.fail(err)
				}
				return s.respond(meta)
			})
		},
	}
}
