package source

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/vinq-io/vinq/pkg/model"
	"github.com/vinq-io/vinq/pkg/utils/logging"
)

// Policy evaluates Rego rules that can veto routing a category to a source,
// e.g. to block a site that is rate-limiting us or a category a customer may
// not query. A routing veto is not a failure: the router falls back to the
// next source or emits a synthetic not_found.
type Policy struct {
	query rego.PreparedEvalQuery
}

// LoadPolicy loads all .rego files from policyDir and prepares the deny
// query. Returns nil if the directory holds no policy files.
func LoadPolicy(ctx context.Context, policyDir string) (*Policy, error) {
	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files")
	}
	if len(files) == 0 {
		return nil, nil
	}

	options := make([]func(*rego.Rego), 0, len(files)+1)
	options = append(options, rego.Query("data.route.deny"))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	query, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare routing policy query")
	}

	return &Policy{query: query}, nil
}

// Denies reports whether the policy vetoes dispatching the category to the
// source. Evaluation failures do not veto; they are logged and routing
// proceeds.
func (p *Policy) Denies(ctx context.Context, source model.SourceID, category model.FactCategory) bool {
	input := map[string]any{
		"source":   string(source),
		"category": string(category),
	}

	results, err := p.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		logging.From(ctx).Warn("routing policy evaluation failed", "error", err)
		return false
	}

	for _, result := range results {
		for _, expr := range result.Expressions {
			if denied, ok := expr.Value.(bool); ok && denied {
				return true
			}
		}
	}
	return false
}
