package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check stored resources for inconsistencies",
		Long: `Check every configured model: each meta's revision count must match
its stored revisions, the current revision must exist, and every revision
must match its data hash.

Exits with status 1 when an inconsistency is found.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session) error {
				found, err := s.engine.Verify(cmd.Context())
				if err != nil {
					return s.fail(err)
				}
				if len(found) == 0 {
					return s.respond(map[string]any{"models": s.engine.Models(), "inconsistencies": 0})
				}
				for _, inc := range found {
					s.logger.Warn("inconsistency", "model", inc.Model, "resource_id", inc.ResourceID, "problem", inc.Problem)
				}
				return s.formatter.Fail(ErrCodeInconsistent, ExitFailure,
					fmt.Errorf("found %d inconsistencies", len(found)))
			})
		},
	}
}
