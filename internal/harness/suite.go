package harness

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SuiteResult summarises a run of several scenario files.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one failed scenario file.
type ScenarioFailure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// FindScenarios returns the scenario files under path in lexical order.
// A file path is returned as is; a directory is searched recursively for
// .yaml and .yml files.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// RunFiles loads and runs each scenario file. A file that cannot be loaded
// or run counts as a failure; the remaining files still run.
func RunFiles(paths []string, logger *slog.Logger) *SuiteResult {
	out := &SuiteResult{}
	for _, path := range paths {
		out.TotalScenarios++

		name := filepath.Base(path)
		errs := func() []string {
			scenario, err := LoadScenario(path)
			if err != nil {
				return []string{err.Error()}
			}
			name = scenario.Name
			result, err := RunWithLogger(scenario, logger)
			if err != nil {
				return []string{err.Error()}
			}
			return result.Errors
		}()

		if len(errs) == 0 {
			out.Passed++
			logger.Debug("scenario passed", "scenario", name, "path", path)
			continue
		}
		out.Failed++
		out.Failures = append(out.Failures, ScenarioFailure{Scenario: name, Path: path, Errors: errs})
		logger.Warn("scenario failed", "scenario", name, "path", path, "errors", len(errs))
	}
	return out
}

// Summary renders a one-line summary.
func (r *SuiteResult) Summary() string {
	return fmt.Sprintf("%d scenarios: %d passed, %d failed", r.TotalScenarios, r.Passed, r.Failed)
}
