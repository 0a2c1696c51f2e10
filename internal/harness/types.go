package harness

// Outcome values of a trace event.
const (
	OutcomeOK = "ok"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Phase      string `json:"phase"` // "setup" or "flow"
	Step       int    `json:"step"`
	Op         string `json:"op"`
	Model      string `json:"model"`
	ResourceID string `json:"resource_id"`
	Outcome    string `json:"outcome"` // OutcomeOK or an error code
	Status     string `json:"status,omitempty"`
	Revisions  int    `json:"revisions"`
	Deleted    bool   `json:"deleted"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an executed step.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
