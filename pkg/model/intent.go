package model

import (
	"github.com/m-mizutani/goerr/v2"
)

type EntityType string

const (
	EntityVIN       EntityType = "vin"
	EntityMakeModel EntityType = "make_model"
	EntityYear      EntityType = "year"
)

type FactCategory string

const (
	CategoryRecallStatus FactCategory = "recall_status"
	CategoryMarketValue  FactCategory = "market_value"
	CategoryTitleHistory FactCategory = "title_history"
	CategoryVehicleSpecs FactCategory = "vehicle_specs"
)

// AllCategories lists every fact category the interpreter may request
func AllCategories() []FactCategory {
	return []FactCategory{
		CategoryRecallStatus,
		CategoryMarketValue,
		CategoryTitleHistory,
		CategoryVehicleSpecs,
	}
}

// Validate checks if the category is a known one
func (c FactCategory) Validate() error {
	switch c {
	case CategoryRecallStatus, CategoryMarketValue, CategoryTitleHistory, CategoryVehicleSpecs:
		return nil
	default:
		return goerr.New("unknown fact category", goerr.V("category", c))
	}
}

// Intent is the structured classification of one user message. Produced by
// the interpreter, consumed by the router, not persisted beyond the turn it
// annotates.
type Intent struct {
	Entities   map[EntityType]string `json:"entities"`
	Categories []FactCategory        `json:"categories"`
	Ambiguous  bool                  `json:"ambiguous"`
}

// Entity returns the entity value for the given type
func (it *Intent) Entity(typ EntityType) (string, bool) {
	v, ok := it.Entities[typ]
	return v, ok && v != ""
}

// Validate checks the intent is usable by the router
func (it *Intent) Validate() error {
	if len(it.Categories) == 0 {
		return goerr.New("intent has no requested categories")
	}
	for _, c := range it.Categories {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if len(it.Entities) == 0 {
		return goerr.New("intent has no target entities")
	}
	return nil
}

// ClarificationRequest is the normal (non-error) branch taken when the user's
// message references an entity that is neither in the message nor resolvable
// from the session.
type ClarificationRequest struct {
	Question string
	Missing  EntityType
	// Partial carries the intent fragment that could be classified, so the
	// next turn can pick it up
	Partial *Intent
}
