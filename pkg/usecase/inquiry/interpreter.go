package inquiry

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vinq-io/vinq/pkg/adapter"
	"github.com/vinq-io/vinq/pkg/model"
	"github.com/vinq-io/vinq/pkg/utils/logging"
	"google.golang.org/genai"
)

//go:embed prompt/interpret.md
var interpretPromptRaw string

var interpretPromptTmpl = template.Must(template.New("interpret").Parse(interpretPromptRaw))

// Interpreter classifies a free-text user message into a structured intent,
// or a clarification request when the target entity cannot be resolved.
// Read-only over the session.
type Interpreter struct {
	gemini        adapter.Gemini
	historyWindow int
}

func NewInterpreter(gemini adapter.Gemini, historyWindow int) *Interpreter {
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	return &Interpreter{gemini: gemini, historyWindow: historyWindow}
}

// Interpretation is the tagged result of one interpret call: exactly one of
// Intent or Clarification is set. Literals carries the entity identifiers
// stated verbatim in the current message, for session entity updates.
type Interpretation struct {
	Intent        *model.Intent
	Clarification *model.ClarificationRequest
	Literals      map[model.EntityType]string
}

// interpretOutput mirrors the LLM response schema. It is mapped to the
// strict Intent/ClarificationRequest variants at this boundary; anything
// that does not fit is a parse failure, never a partial object.
type interpretOutput struct {
	NeedsClarification    bool              `json:"needs_clarification"`
	ClarificationQuestion string            `json:"clarification_question"`
	MissingEntity         string            `json:"missing_entity"`
	Entities              map[string]string `json:"entities"`
	Categories            []string          `json:"categories"`
	Ambiguous             bool              `json:"ambiguous"`
}

// Interpret issues one classification call, retrying once on call or parse
// failure before giving up with model.ErrInterpretation.
func (x *Interpreter) Interpret(ctx context.Context, session *model.Session, message string) (*Interpretation, error) {
	if message == "" {
		return nil, goerr.Wrap(model.ErrInterpretation, "message is empty")
	}

	prompt, err := x.buildPrompt(session, message)
	if err != nil {
		return nil, goerr.Wrap(model.ErrInterpretation, "failed to build interpret prompt", goerr.V("cause", err))
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		output, err := x.classify(ctx, prompt)
		if err != nil {
			logging.From(ctx).Warn("interpretation attempt failed", "attempt", attempt, "error", err)
			lastErr = err
			continue
		}
		interp, err := x.resolve(session, output)
		if err != nil {
			// Structurally invalid output burns the retry like a parse failure
			logging.From(ctx).Warn("interpretation output rejected", "attempt", attempt, "error", err)
			lastErr = err
			continue
		}
		return interp, nil
	}

	return nil, goerr.Wrap(model.ErrInterpretation, "classification failed after retry", goerr.V("cause", lastErr))
}

func (x *Interpreter) buildPrompt(session *model.Session, message string) (string, error) {
	var buf bytes.Buffer
	if err := interpretPromptTmpl.Execute(&buf, map[string]any{
		"Categories": model.AllCategories(),
		"Entities":   session.Entities,
		"Turns":      session.Window(x.historyWindow),
		"Message":    message,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute interpret template")
	}
	return buf.String(), nil
}

func (x *Interpreter) classify(ctx context.Context, prompt string) (*interpretOutput, error) {
	config := &genai.GenerateContentConfig{
		Temperature:      ptrFloat32(0.0),
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"needs_clarification": {
					Type:        genai.TypeBoolean,
					Description: "true when a required entity is neither in the message nor resolved",
				},
				"clarification_question": {
					Type:        genai.TypeString,
					Description: "question asking the user for the missing entity",
				},
				"missing_entity": {
					Type:        genai.TypeString,
					Description: "type of the missing entity",
					Enum:        []string{"", "vin", "make_model", "year"},
				},
				"entities": {
					Type:        genai.TypeObject,
					Description: "entity identifiers literally present in the current message",
					Properties: map[string]*genai.Schema{
						"vin":        {Type: genai.TypeString},
						"make_model": {Type: genai.TypeString},
						"year":       {Type: genai.TypeString},
					},
				},
				"categories": {
					Type:        genai.TypeArray,
					Description: "requested fact categories",
					Items: &genai.Schema{
						Type: genai.TypeString,
						Enum: []string{"recall_status", "market_value", "title_history", "vehicle_specs"},
					},
				},
				"ambiguous": {
					Type:        genai.TypeBoolean,
					Description: "true when the classification is uncertain",
				},
			},
			Required: []string{"needs_clarification", "entities", "categories"},
		},
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := x.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "classification call failed")
	}

	text := adapter.ResponseText(resp)
	if text == "" {
		return nil, goerr.New("classification response is empty")
	}

	var output interpretOutput
	if err := json.Unmarshal([]byte(text), &output); err != nil {
		return nil, goerr.Wrap(err, "classification output is not valid JSON", goerr.V("text", text))
	}
	return &output, nil
}

// resolve maps the loose LLM output to the strict variants, filling entity
// references from the session when the message itself carries none.
func (x *Interpreter) resolve(session *model.Session, output *interpretOutput) (*Interpretation, error) {
	literals := make(map[model.EntityType]string)
	for key, value := range output.Entities {
		if value == "" {
			continue
		}
		switch typ := model.EntityType(key); typ {
		case model.EntityVIN, model.EntityMakeModel, model.EntityYear:
			literals[typ] = value
		default:
			return nil, goerr.Wrap(model.ErrInterpretation, "unknown entity type in output", goerr.V("type", key))
		}
	}

	categories := make([]model.FactCategory, 0, len(output.Categories))
	for _, c := range output.Categories {
		category := model.FactCategory(c)
		if err := category.Validate(); err != nil {
			return nil, goerr.Wrap(model.ErrInterpretation, "unknown category in output", goerr.V("category", c))
		}
		categories = append(categories, category)
	}

	// Merge: literals from this message win, session fills the rest
	entities := make(map[model.EntityType]string)
	for typ, entity := range session.Entities {
		entities[typ] = entity.Value
	}
	for typ, value := range literals {
		entities[typ] = value
	}

	partial := &model.Intent{
		Entities:   entities,
		Categories: categories,
		Ambiguous:  output.Ambiguous,
	}

	if output.NeedsClarification || len(entities) == 0 {
		question := output.ClarificationQuestion
		if question == "" {
			question = "Which vehicle is this about? Please provide a VIN."
		}
		missing := model.EntityType(output.MissingEntity)
		if missing == "" {
			missing = model.EntityVIN
		}
		return &Interpretation{
			Clarification: &model.ClarificationRequest{
				Question: question,
				Missing:  missing,
				Partial:  partial,
			},
			Literals: literals,
		}, nil
	}

	if len(categories) == 0 {
		return nil, goerr.Wrap(model.ErrInterpretation, "classification produced no categories")
	}

	return &Interpretation{Intent: partial, Literals: literals}, nil
}

func ptrFloat32(f float32) *float32 {
	return &f
}
