package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/revstore/internal/codec"
	"github.com/roach88/revstore/internal/config"
	"github.com/roach88/revstore/internal/resource"
)

// DefaultActor performs steps that name no actor.
const DefaultActor = "harness"

// Scenario defines a sequence of operations and the state they must leave
// behind.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Codec is the payload codec of every model. Empty means JSON.
	Codec string `yaml:"codec,omitempty"`

	// Actor performs steps that name no actor. Empty means DefaultActor.
	Actor string `yaml:"actor,omitempty"`

	// Models are declared like the models of a configuration file. CUE
	// schema paths are relative to the scenario file.
	Models []config.Model `yaml:"models"`

	// Setup steps establish initial state and must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the steps under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step operations.
const (
	OpCreate  = "create"
	OpUpdate  = "update"
	OpPatch   = "patch"
	OpDelete  = "delete"
	OpRestore = "restore"
	OpSwitch  = "switch"
	OpMigrate = "migrate"
)

var validOps = []string{OpCreate, OpUpdate, OpPatch, OpDelete, OpRestore, OpSwitch, OpMigrate}

// Step is one operation on one resource.
type Step struct {
	Op    string `yaml:"op"`
	Model string `yaml:"model"`
	ID    string `yaml:"id"`

	// Payload is the document for create and update, or the list of JSON
	// Patch operations for patch.
	Payload any `yaml:"payload,omitempty"`

	// Revision is the target of switch: a label or a revision id.
	Revision string `yaml:"revision,omitempty"`

	// ExpectRevision makes the write conditional on the current revision.
	// It accepts a label or a revision id.
	ExpectRevision string `yaml:"expect_revision,omitempty"`

	// Status is "draft" or "stable". Modify amends the current draft.
	Status string `yaml:"status,omitempty"`
	Modify bool   `yaml:"modify,omitempty"`

	// Actor overrides the scenario actor for this step.
	Actor string `yaml:"actor,omitempty"`

	// Label names the revision this step produces.
	Label string `yaml:"label,omitempty"`

	// Expect validates the outcome. Nil means the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected error code, e.g. "CONFLICT". Empty means the
	// step must succeed.
	Error string `yaml:"error,omitempty"`

	// Status is the expected status of the produced revision.
	Status string `yaml:"status,omitempty"`

	// Payload is a subset match against the produced payload.
	Payload map[string]any `yaml:"payload,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type  string `yaml:"type"`
	Model string `yaml:"model"`
	ID    string `yaml:"id,omitempty"`

	// Expect contains expected field values (meta, payload). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Query is a search query in the YAML query format (count).
	Query map[string]any `yaml:"query,omitempty"`

	// Count is the expected number (count, revisions).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertMeta       = "meta"
	AssertPayload    = "payload"
	AssertRevisions  = "revisions"
	AssertCount      = "count"
	AssertConsistent = "consistent"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected, and CUE schema paths are resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving relative CUE schema paths
// against baseDir.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i := range scenario.Models {
		for j := range scenario.Models[i].Indexed {
			if scenario.Models[i].Indexed[j].Type == "" {
				scenario.Models[i].Indexed[j].Type = resource.TypeAny
			}
		}
		cue := scenario.Models[i].CUE
		if cue != nil && cue.File != "" && !filepath.IsAbs(cue.File) && baseDir != "" {
			cue.File = filepath.Join(baseDir, cue.File)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// config returns the scenario's models as a configuration.
func (s *Scenario) config() *config.Config {
	cfg := config.Default()
	cfg.Codec = s.Codec
	cfg.Models = s.Models
	return cfg
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Models) == 0 {
		return fmt.Errorf("models list is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Codec == "" {
		s.Codec = codec.NameJSON
	}
	if err := s.config().Validate(); err != nil {
		return err
	}

	models := map[string]bool{}
	for _, m := range s.Models {
		models[m.Name] = true
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step, models); err != nil {
			return err
		}
		if step.Expect != nil && step.Expect.Error != "" {
			return fmt.Errorf("setup[%d]: setup steps cannot expect an error", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step, models); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, assertion, models); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, step Step, models map[string]bool) error {
	if !slices.Contains(validOps, step.Op) {
		return fmt.Errorf("%s: unknown op %q", where, step.Op)
	}
	if !models[step.Model] {
		return fmt.Errorf("%s: unknown model %q", where, step.Model)
	}
	if step.ID == "" {
		return fmt.Errorf("%s: id is required", where)
	}
	switch step.Op {
	case OpCreate, OpUpdate, OpPatch:
		if step.Payload == nil {
			return fmt.Errorf("%s: payload is required for %s", where, step.Op)
		}
	case OpSwitch:
		if step.Revision == "" {
			return fmt.Errorf("%s: revision is required for switch", where)
		}
	}
	if step.Status != "" && !resource.RevisionStatus(step.Status).Valid() {
		return fmt.Errorf("%s: unknown status %q", where, step.Status)
	}
	if step.Expect != nil && step.Expect.Status != "" && !resource.RevisionStatus(step.Expect.Status).Valid() {
		return fmt.Errorf("%s.expect: unknown status %q", where, step.Expect.Status)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, models map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Type != AssertConsistent && !models[a.Model] {
		return fmt.Errorf("assertions[%d]: unknown model %q", index, a.Model)
	}

	switch a.Type {
	case AssertMeta, AssertPayload:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for %s", index, a.Type)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	case AssertRevisions:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for revisions", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for revisions", index)
		}
	case AssertCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for count", index)
		}
	case AssertConsistent:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
