package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewBlobCommand creates the blob command.
func NewBlobCommand(rootOpts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "blob <model> <blob-id>",
		Short: "Write the bytes of an offloaded binary",
		Long: `Write the bytes of a binary offloaded by one of the model's resources to
stdout, or to a file with -o.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session) error {
				rm, err := s.model(args[0])
				if err != nil {
					return err
				}
				data, err := rm.GetBlob(cmd.Context(), args[1])
				if err != nil {
					return s.fail(err)
				}
				if out == "" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return s.formatter.Fail(ErrCodeGeneric, ExitFailure, fmt.Errorf("write %s: %w", out, err))
				}
				s.formatter.VerboseLog("Wrote %d bytes to %s", len(data), out)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "write to this file instead of stdout")

	return cmd
}
