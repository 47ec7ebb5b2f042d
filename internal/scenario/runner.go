package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/schema"
)

// Result is the outcome of one step.
type Result struct {
	Step   int    `json:"step"`
	Op     string `json:"op"`
	Rack   string `json:"rack"`
	Passed bool   `json:"passed"`
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Report is the outcome of a scenario.
type Report struct {
	Scenario string   `json:"scenario"`
	Passed   bool     `json:"passed"`
	Results  []Result `json:"results"`
}

// Failed returns the results that did not meet their expectations.
func (r *Report) Failed() []Result {
	var res []Result
	for _, step := range r.Results {
		if !step.Passed {
			res = append(res, step)
		}
	}
	return res
}

// Runner runs scenarios against a registry.
type Runner struct {
	registry domain.Registry
	idGen    domain.IDGenerator
	matcher  domain.Matcher
	logger   *slog.Logger
}

// NewRunner returns a Runner creating its racks in registry.
func NewRunner(registry domain.Registry, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		matcher:  matcher.NewMatcher(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run creates the racks of sc and runs its steps in order. A step that does
// not meet its expectations does not stop the run. Only failures to create
// the racks are returned as errors.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Report, error) {
	for _, rk := range sc.Racks {
		var opts []schema.Option
		if r.idGen != nil {
			opts = append(opts, schema.WithIDGenerator(r.idGen))
		}
		if _, err := r.registry.Init(ctx, rk.Name, schema.NewSchema(Fields(rk.Fields), opts...)); err != nil {
			return nil, fmt.Errorf("creating rack %s: %w", rk.Name, err)
		}
	}

	report := &Report{Scenario: sc.Name, Passed: true}
	for n, st := range sc.Steps {
		res := r.step(ctx, n+1, st)
		if !res.Passed {
			report.Passed = false
			r.logger.DebugContext(ctx, "step failed",
				slog.Int("step", res.Step),
				slog.String("reason", res.Reason),
			)
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

func (r *Runner) step(ctx context.Context, n int, st Step) Result {
	res := Result{Step: n, Op: st.Op, Rack: st.Rack}

	docs, err := r.exec(ctx, st)
	if err != nil {
		res.Error = err.Error()
	}
	if len(docs) == 1 && (st.Op == OpCreate || st.Op == OpRead) {
		res.Output = docs[0]
	} else if docs != nil {
		res.Output = docs
	}

	res.Reason = r.check(st, docs, err)
	res.Passed = res.Reason == ""
	return res
}

func (r *Runner) exec(ctx context.Context, st Step) ([]domain.Document, error) {
	rk, err := r.registry.Rack(st.Rack)
	if err != nil {
		return nil, err
	}

	var target any
	switch {
	case st.Query != nil:
		target = st.Query
	case st.ID != nil:
		target = st.ID
	}

	switch st.Op {
	case OpCreate:
		doc, err := rk.Create(ctx, st.Entry)
		return single(doc, err)
	case OpRead:
		doc, err := rk.Read(ctx, st.ID)
		return single(doc, err)
	case OpUpdate:
		return rk.Update(ctx, target, st.Patch)
	case OpDelete:
		return rk.Delete(ctx, target)
	case OpList:
		sort := make(domain.Sort, 0, len(st.Sort))
		for _, s := range st.Sort {
			sort = append(sort, domain.SortName{Key: s.Key, Order: s.Order})
		}
		return rk.List(ctx, target,
			domain.WithSort(sort),
			domain.WithSkip(st.Skip),
			domain.WithLimit(st.Limit),
		)
	}
	return nil, fmt.Errorf("unknown op %q", st.Op)
}

func single(doc domain.Document, err error) ([]domain.Document, error) {
	if err != nil {
		return nil, err
	}
	return []domain.Document{doc}, nil
}

// check returns why the step did not meet its expectations, or an empty
// string.
func (r *Runner) check(st Step, docs []domain.Document, err error) string {
	if st.ExpectError != "" {
		if err == nil {
			return fmt.Sprintf("expected error containing %q", st.ExpectError)
		}
		if !strings.Contains(err.Error(), st.ExpectError) {
			return fmt.Sprintf("expected error containing %q, got %q", st.ExpectError, err)
		}
		return ""
	}
	if err != nil {
		return fmt.Sprintf("unexpected error: %s", err)
	}

	if st.ExpectCount != nil && len(docs) != *st.ExpectCount {
		return fmt.Sprintf("expected %d entries, got %d", *st.ExpectCount, len(docs))
	}
	if st.Expect != nil {
		if len(docs) == 0 {
			return "expected an entry, got none"
		}
		ok, err := r.matcher.Match(docs[0], st.Expect)
		if err != nil {
			return fmt.Sprintf("invalid expectation: %s", err)
		}
		if !ok {
			return fmt.Sprintf("entry %v does not match %v", docs[0], st.Expect)
		}
	}
	return ""
}
