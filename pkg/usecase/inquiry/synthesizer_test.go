package inquiry_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/vinq-io/vinq/pkg/model"
	"github.com/vinq-io/vinq/pkg/usecase/inquiry"
)

func recallBundle() *model.EvidenceBundle {
	return &model.EvidenceBundle{
		Intent: model.Intent{
			Entities:   map[model.EntityType]string{model.EntityVIN: "1FTFW1ET5DFC10312"},
			Categories: []model.FactCategory{model.CategoryRecallStatus},
		},
		Facts: []model.Fact{
			{
				Category:    model.CategoryRecallStatus,
				Value:       "2 open recalls: 23V-123 FUEL PUMP; 24V-001 AIR BAG",
				Source:      "recall_db",
				RetrievedAt: time.Now(),
				Status:      model.StatusOK,
			},
		},
	}
}

func TestSynthesizeNarrative(t *testing.T) {
	gemini := scriptGemini(textReply("The vehicle has 2 open recalls (recall_db): fuel pump and air bag."))
	synthesizer := inquiry.NewSynthesizer(gemini, 0)

	session := model.NewSession()
	session.AppendTurn(model.Turn{Role: model.RoleUser, Text: "any recalls on 1FTFW1ET5DFC10312?"})

	answer := synthesizer.Synthesize(context.Background(), session, recallBundle())

	gt.False(t, answer.Fallback)
	gt.Equal(t, answer.Text, "The vehicle has 2 open recalls (recall_db): fuel pump and air bag.")

	// The prompt must ground the model on the evidence and the question
	gt.Equal(t, gemini.callCount(), 1)
	gt.S(t, gemini.prompts[0]).Contains("2 open recalls: 23V-123 FUEL PUMP; 24V-001 AIR BAG")
	gt.S(t, gemini.prompts[0]).Contains("recall_db")
	gt.S(t, gemini.prompts[0]).Contains("any recalls on 1FTFW1ET5DFC10312?")
}

func TestSynthesizeFallbackOnError(t *testing.T) {
	gemini := scriptGemini(errReply("model unavailable"))
	synthesizer := inquiry.NewSynthesizer(gemini, 0)

	session := model.NewSession()
	session.AppendTurn(model.Turn{Role: model.RoleUser, Text: "any recalls?"})

	answer := synthesizer.Synthesize(context.Background(), session, recallBundle())

	gt.True(t, answer.Fallback)
	gt.S(t, answer.Text).Contains("here is what was retrieved")
	gt.S(t, answer.Text).Contains("recall_db: recall_status: 2 open recalls")
}

func TestSynthesizeFallbackOnEmptyResponse(t *testing.T) {
	gemini := scriptGemini(textReply("  \n"))
	synthesizer := inquiry.NewSynthesizer(gemini, 0)

	answer := synthesizer.Synthesize(context.Background(), model.NewSession(), recallBundle())

	gt.True(t, answer.Fallback)
	gt.NotEqual(t, answer.Text, "")
}

func TestFallbackText(t *testing.T) {
	bundle := &model.EvidenceBundle{
		Facts: []model.Fact{
			{Category: model.CategoryRecallStatus, Value: "2 open recalls", Source: "recall_db", Status: model.StatusOK},
			{Category: model.CategoryTitleHistory, Source: "title_ledger", Status: model.StatusNotFound},
			{Category: model.CategoryMarketValue, Source: "market_watch", Status: model.StatusFetchError, Diagnostic: "element did not become visible"},
		},
	}

	text := inquiry.FallbackText(bundle)
	gt.Equal(t, text, "I could not compose a full answer, but here is what was retrieved:\n"+
		"recall_db: recall_status: 2 open recalls\n"+
		"title_ledger: title_history: no record found\n"+
		"market_watch: market_value: lookup failed (element did not become visible)")
}
