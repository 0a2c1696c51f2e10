package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/revstore/internal/refint"
	"github.com/roach88/revstore/internal/resource"
)

type modelView struct {
	Name          string                    `json:"name"`
	SchemaVersion string                    `json:"schema_version,omitempty"`
	Indexed       []resource.IndexableField `json:"indexed"`
	Relationships []string                  `json:"relationships,omitempty"`
}

type modelsView struct {
	Models        []modelView           `json:"models"`
	CascadeCycles []refint.CycleWarning `json:"cascade_cycles,omitempty"`
}

// NewModelsCommand creates the models command.
func NewModelsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "models",
		Short:         "List configured models",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(s *session) error {
				var out modelsView
				for _, name := range s.engine.Models() {
					rm := s.managers[name]
					mv := modelView{Name: name, Indexed: rm.Indexed()}
					if m, ok := s.cfg.Model(name); ok {
						mv.SchemaVersion = m.SchemaVersion
					}
					for _, rel := range rm.Relationships() {
						mv.Relationships = append(mv.Relationships, rel.String())
					}
					out.Models = append(out.Models, mv)
				}
				out.CascadeCycles = s.engine.CascadeCycles()
				return s.respond(out)
			})
		},
	}
}
