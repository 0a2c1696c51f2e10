package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/goccy/go-json"

	"github.com/roach88/revstore/internal/backend/memory"
	"github.com/roach88/revstore/internal/config"
	"github.com/roach88/revstore/internal/manager"
	"github.com/roach88/revstore/internal/resource"
	"github.com/roach88/revstore/internal/testutil"
)

// Phases of a trace event.
const (
	PhaseSetup = "setup"
	PhaseFlow  = "flow"
)

// Harness executes the steps of one scenario.
type Harness struct {
	engine   *manager.Engine
	managers config.Managers
	actor    string
	labels   map[string]string // label -> revision id
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory backend with a deterministic
// clock and id generator.
//
// Execution flow:
// 1. Register the scenario's models
// 2. Execute setup steps, failing the run on any error
// 3. Execute flow steps, checking each expect clause
// 4. Evaluate assertions against the final state
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine and step logging sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	e := manager.New(memory.New(),
		manager.WithLogger(logger),
		manager.WithClock(testutil.NewClock(testutil.DefaultEpoch, 0).Now),
		manager.WithIDGenerator(testutil.NewIDs("")),
	)
	managers, err := scenario.config().Register(e)
	if err != nil {
		return nil, fmt.Errorf("failed to register models: %w", err)
	}

	actor := scenario.Actor
	if actor == "" {
		actor = DefaultActor
	}
	h := &Harness{
		engine:   e,
		managers: managers,
		actor:    actor,
		labels:   map[string]string{},
		logger:   logger,
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Setup {
		if err := h.execute(ctx, PhaseSetup, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute setup: %w", err)
		}
	}
	if !result.Pass {
		return nil, fmt.Errorf("failed to execute setup: %s", result.Errors[0])
	}

	for i, step := range scenario.Flow {
		if err := h.execute(ctx, PhaseFlow, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute flow: %w", err)
		}
	}

	actx := &AssertionContext{
		Ctx:      ctx,
		Engine:   e,
		Managers: managers,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// execute runs one step and records it in the trace. Unexpected outcomes
// are added to result; only failures outside the resource error taxonomy
// abort the run.
func (h *Harness) execute(ctx context.Context, phase string, i int, step Step, result *Result) error {
	where := fmt.Sprintf("%s[%d]", phase, i)
	rm := h.managers[step.Model]

	actor := h.actor
	if step.Actor != "" {
		actor = step.Actor
	}

	var res *resource.Resource[config.Document]
	err := h.engine.Using(ctx, actor, func(ctx context.Context) error {
		var err error
		switch step.Op {
		case OpCreate:
			opts := append([]manager.WriteOption{manager.WithResourceID(step.ID)}, h.writeOptions(step)...)
			res, err = rm.Create(ctx, step.Payload, opts...)
		case OpUpdate:
			res, err = rm.Update(ctx, step.ID, step.Payload, h.writeOptions(step)...)
		case OpPatch:
			ops, merr := json.Marshal(step.Payload)
			if merr != nil {
				return fmt.Errorf("encode patch: %w", merr)
			}
			res, err = rm.Patch(ctx, step.ID, ops, h.writeOptions(step)...)
		case OpDelete:
			err = rm.Delete(ctx, step.ID)
		case OpRestore:
			err = rm.Restore(ctx, step.ID)
		case OpSwitch:
			res, err = rm.Switch(ctx, step.ID, h.revision(step.Revision))
		case OpMigrate:
			res, err = rm.Migrate(ctx, step.ID)
		default:
			return fmt.Errorf("unknown op %q", step.Op)
		}
		return err
	})

	outcome := OutcomeOK
	if err != nil {
		var rerr *resource.Error
		if !errors.As(err, &rerr) {
			return fmt.Errorf("%s: %s %s/%s: %w", where, step.Op, step.Model, step.ID, err)
		}
		outcome = string(rerr.Code)
	}

	want := OutcomeOK
	if step.Expect != nil && step.Expect.Error != "" {
		want = step.Expect.Error
	}
	if outcome != want {
		msg := fmt.Sprintf("%s: %s %s/%s: expected %s, got %s", where, step.Op, step.Model, step.ID, want, outcome)
		if err != nil {
			msg += ": " + err.Error()
		}
		result.AddError(msg)
	}

	ev := TraceEvent{
		Phase:      phase,
		Step:       i,
		Op:         step.Op,
		Model:      step.Model,
		ResourceID: step.ID,
		Outcome:    outcome,
	}
	if res != nil {
		ev.Status = string(res.Info.Status)
		if step.Label != "" {
			h.labels[step.Label] = res.Info.RevisionID
		}
		h.checkResult(where, step, res, result)
	}
	if meta, err := rm.GetMeta(ctx, step.ID, manager.IncludeDeleted()); err == nil {
		ev.Revisions = meta.TotalRevisionCount
		ev.Deleted = meta.IsDeleted
	}
	result.AddTrace(ev)

	h.logger.Info("step completed",
		"phase", phase,
		"step", i,
		"op", step.Op,
		"model", step.Model,
		"resource_id", step.ID,
		"outcome", outcome,
	)
	return nil
}

func (h *Harness) checkResult(where string, step Step, res *resource.Resource[config.Document], result *Result) {
	if step.Expect == nil {
		return
	}
	if step.Expect.Status != "" && string(res.Info.Status) != step.Expect.Status {
		result.AddError(fmt.Sprintf("%s: expected status %s, got %s", where, step.Expect.Status, res.Info.Status))
	}
	if step.Expect.Payload != nil {
		if diff := matchSubset(step.Expect.Payload, res.Data); diff != "" {
			result.AddError(fmt.Sprintf("%s: payload mismatch: %s", where, diff))
		}
	}
}

func (h *Harness) writeOptions(step Step) []manager.WriteOption {
	var opts []manager.WriteOption
	if step.ExpectRevision != "" {
		opts = append(opts, manager.WithExpectedRevision(h.revision(step.ExpectRevision)))
	}
	if step.Status != "" {
		opts = append(opts, manager.WithStatus(resource.RevisionStatus(step.Status)))
	}
	if step.Modify {
		opts = append(opts, manager.WithMode(manager.ModeModify))
	}
	return opts
}

// revision resolves a label to the revision it recorded. Anything else is
// taken as a revision id.
func (h *Harness) revision(ref string) string {
	if id, ok := h.labels[ref]; ok {
		return id
	}
	return ref
}
