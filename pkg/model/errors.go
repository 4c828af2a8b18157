package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrInterpretation: the LLM call or its structured output parse failed
	// after retry. Aborts only the current turn.
	ErrInterpretation = goerr.New("failed to interpret message")

	// ErrSynthesis: the LLM call for answer generation failed. The caller
	// degrades to a templated fact listing instead of dropping data.
	ErrSynthesis = goerr.New("failed to synthesize answer")

	ErrSessionNotFound = goerr.New("session not found")
)
