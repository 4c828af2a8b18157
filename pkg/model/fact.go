package model

import (
	"time"
)

// SourceID identifies one external data source (e.g. "recall_db")
type SourceID string

type FactStatus string

const (
	StatusOK         FactStatus = "ok"
	StatusNotFound   FactStatus = "not_found"
	StatusFetchError FactStatus = "fetch_error"
)

// SourceQuery is the input of a single source adapter fetch, derived
// deterministically from an intent. One intent may fan out into several
// queries, one per (category, capable source) pair.
type SourceQuery struct {
	Category FactCategory
	Source   SourceID
	Entities map[EntityType]string
}

// Entity returns the entity value for the given type
func (q *SourceQuery) Entity(typ EntityType) (string, bool) {
	v, ok := q.Entities[typ]
	return v, ok && v != ""
}

// Fact is one retrieved datum. Immutable once produced; a failed retrieval is
// still a Fact, with a degraded status and a diagnostic instead of a value.
type Fact struct {
	Category    FactCategory
	Value       string
	Source      SourceID
	RetrievedAt time.Time
	Status      FactStatus
	Diagnostic  string
}

// EvidenceBundle is the complete set of facts gathered for one intent,
// ordered by router priority. Never mutated after assembly; consumed once by
// the synthesizer.
type EvidenceBundle struct {
	Intent Intent
	Facts  []Fact
}

// FactsFor returns the facts retrieved for a category
func (b *EvidenceBundle) FactsFor(category FactCategory) []Fact {
	var facts []Fact
	for _, f := range b.Facts {
		if f.Category == category {
			facts = append(facts, f)
		}
	}
	return facts
}

// Degraded reports whether any fact failed to be retrieved
func (b *EvidenceBundle) Degraded() bool {
	for _, f := range b.Facts {
		if f.Status == StatusFetchError {
			return true
		}
	}
	return false
}
