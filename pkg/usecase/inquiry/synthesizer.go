package inquiry

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vinq-io/vinq/pkg/adapter"
	"github.com/vinq-io/vinq/pkg/model"
	"github.com/vinq-io/vinq/pkg/utils/logging"
	"google.golang.org/genai"
)

//go:embed prompt/synthesize.md
var synthesizePromptRaw string

var synthesizePromptTmpl = template.Must(template.New("synthesize").Parse(synthesizePromptRaw))

// Synthesizer turns an evidence bundle into the final natural-language
// answer. When the LLM call fails it degrades to a deterministic fact
// listing, so the user always receives the retrieved data.
type Synthesizer struct {
	gemini        adapter.Gemini
	historyWindow int
}

func NewSynthesizer(gemini adapter.Gemini, historyWindow int) *Synthesizer {
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	return &Synthesizer{gemini: gemini, historyWindow: historyWindow}
}

// Answer is the synthesis result. Fallback marks a templated rendering used
// because narrative synthesis was unavailable.
type Answer struct {
	Text     string
	Fallback bool
}

// Synthesize builds the answer for one consumed evidence bundle. Never
// returns an empty answer: evidence always reaches the user, narrated or
// listed.
func (x *Synthesizer) Synthesize(ctx context.Context, session *model.Session, bundle *model.EvidenceBundle) *Answer {
	text, err := x.narrate(ctx, session, bundle)
	if err != nil {
		logging.From(ctx).Warn("answer synthesis failed, falling back to fact listing",
			"error", goerr.Wrap(model.ErrSynthesis, "narration unavailable", goerr.V("cause", err)))
		return &Answer{Text: FallbackText(bundle), Fallback: true}
	}
	return &Answer{Text: text}
}

func (x *Synthesizer) narrate(ctx context.Context, session *model.Session, bundle *model.EvidenceBundle) (string, error) {
	question := ""
	for i := len(session.Turns) - 1; i >= 0; i-- {
		if session.Turns[i].Role == model.RoleUser {
			question = session.Turns[i].Text
			break
		}
	}

	var buf bytes.Buffer
	if err := synthesizePromptTmpl.Execute(&buf, map[string]any{
		"Facts":    bundle.Facts,
		"Turns":    session.Window(x.historyWindow),
		"Question": question,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute synthesize template")
	}

	config := &genai.GenerateContentConfig{
		Temperature: ptrFloat32(0.2),
	}
	contents := []*genai.Content{genai.NewContentFromText(buf.String(), genai.RoleUser)}

	resp, err := x.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "synthesis call failed")
	}

	text := strings.TrimSpace(adapter.ResponseText(resp))
	if text == "" {
		return "", goerr.New("synthesis response is empty")
	}
	return text, nil
}

// FallbackText renders the bundle as one line per fact. Deterministic for a
// given bundle, including degraded facts, so nothing retrieved is dropped.
func FallbackText(bundle *model.EvidenceBundle) string {
	var b strings.Builder
	b.WriteString("I could not compose a full answer, but here is what was retrieved:\n")
	for _, f := range bundle.Facts {
		switch f.Status {
		case model.StatusOK:
			fmt.Fprintf(&b, "%s: %s: %s\n", f.Source, f.Category, f.Value)
		case model.StatusNotFound:
			fmt.Fprintf(&b, "%s: %s: no record found\n", f.Source, f.Category)
		case model.StatusFetchError:
			fmt.Fprintf(&b, "%s: %s: lookup failed (%s)\n", f.Source, f.Category, f.Diagnostic)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
