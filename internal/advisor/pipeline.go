package advisor

import (
	"context"
	"errors"
	"slices"

	"github.com/DeafMist/thesis-advisor/backend/internal/completion"
	"github.com/DeafMist/thesis-advisor/backend/internal/dataset"
	"github.com/DeafMist/thesis-advisor/backend/internal/models"
)

// DefaultCap is the number of records rendered into the context.
const DefaultCap = 10

// Status tags the outcome of preparing a prompt.
type Status string

const (
	StatusReady         Status = "ready"
	StatusEmpty         Status = "empty"
	StatusSchemaInvalid Status = "schema_invalid"
)

// Completer is the external text generation service.
type Completer interface {
	Complete(ctx context.Context, prompt string, p completion.Params) (string, error)
}

// Request is one user-initiated analysis.
type Request struct {
	Criteria Criteria
	// Question is the open question in recommend mode and the proposed
	// topic in evaluate mode.
	Question string
}

// Result is the tagged outcome of a pipeline run.
type Result struct {
	Status  Status
	Mode    Mode
	Missing []models.Field
	View    []models.ThesisRecord
	Context ContextBlock
	Stats   *Stats
	Prompt  string
	Text    string
	Verdict Verdict
}

// Pipeline is the single parameterized filter, assemble and prompt flow.
// A zero Cap means DefaultCap.
type Pipeline struct {
	Mode          Mode
	Cap           int
	Template      *Template
	KeywordFields []models.Field
	Renderer      Renderer
	TopN          int
	Params        completion.Params
}

// RequiredFields lists the columns the pipeline always reads. Keyword
// fields are optional: absent ones are skipped when filtering.
func (p *Pipeline) RequiredFields() []models.Field {
	fields := []models.Field{models.FieldTitle}
	rf := p.Renderer.Fields
	if len(rf) == 0 {
		rf = DefaultContextFields
	}
	fields = append(fields, rf...)
	if p.Mode == ModeEvaluate {
		fields = append(fields, models.FieldYear, models.FieldVariables, models.FieldMethod)
	}
	return dedupeFields(fields)
}

// requiredFor adds the columns a request's criteria filter on.
func (p *Pipeline) requiredFor(c Criteria) []models.Field {
	fields := p.RequiredFields()
	if len(c.Programs) > 0 {
		fields = append(fields, models.FieldProgram)
	}
	if len(c.Methods) > 0 {
		fields = append(fields, models.FieldMethod)
	}
	return dedupeFields(fields)
}

// keywordFields keeps the configured keyword fields the dataset carries,
// falling back to DefaultKeywordFields when none remain.
func (p *Pipeline) keywordFields(ds *dataset.Dataset) []models.Field {
	out := make([]models.Field, 0, len(p.KeywordFields))
	for _, f := range p.KeywordFields {
		if ds.Has(f) {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return DefaultKeywordFields
	}
	return out
}

// Prepare filters the dataset and builds the prompt without calling the
// completion service. Schema problems and empty views are reported in the
// result status, not as errors.
func (p *Pipeline) Prepare(ds *dataset.Dataset, req Request) (*Result, error) {
	if p.Template == nil {
		return nil, errors.New("pipeline has no template")
	}
	mode := p.Mode
	if mode == "" {
		mode = p.Template.Mode()
	}
	res := &Result{Mode: mode}

	if missing := ds.Missing(p.requiredFor(req.Criteria)...); len(missing) > 0 {
		res.Status = StatusSchemaInvalid
		res.Missing = missing
		return res, nil
	}

	res.View = Filter(ds.Records(), req.Criteria, p.keywordFields(ds))
	if len(res.View) == 0 {
		res.Status = StatusEmpty
		return res, nil
	}

	limit := p.Cap
	if limit == 0 {
		limit = DefaultCap
	}
	res.Context = Assemble(res.View, limit, p.Renderer)

	var err error
	switch mode {
	case ModeEvaluate:
		st := Summarize(res.View, p.TopN)
		res.Stats = &st
		res.Prompt, err = BuildEvaluationPrompt(res.Context, st, req.Criteria.Keyword, req.Question, p.Template)
	default:
		res.Prompt, err = BuildPrompt(res.Context, req.Question, p.Template)
	}
	if err != nil {
		return nil, err
	}

	res.Status = StatusReady
	return res, nil
}

// Run prepares the prompt and, when it is ready, makes exactly one
// completion call. A failed call returns no result.
func (p *Pipeline) Run(ctx context.Context, ds *dataset.Dataset, req Request, c Completer) (*Result, error) {
	res, err := p.Prepare(ds, req)
	if err != nil {
		return nil, err
	}
	if res.Status != StatusReady {
		return res, nil
	}

	text, err := c.Complete(ctx, res.Prompt, p.Params)
	if err != nil {
		return nil, err
	}
	res.Text = text
	if res.Mode == ModeEvaluate {
		res.Verdict = ParseVerdict(text)
	}
	return res, nil
}

func dedupeFields(fields []models.Field) []models.Field {
	out := make([]models.Field, 0, len(fields))
	for _, f := range fields {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
