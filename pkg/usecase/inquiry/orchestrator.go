package inquiry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vinq-io/vinq/pkg/adapter"
	"github.com/vinq-io/vinq/pkg/model"
	"github.com/vinq-io/vinq/pkg/repository"
	"github.com/vinq-io/vinq/pkg/source"
	"github.com/vinq-io/vinq/pkg/utils/logging"
)

const (
	defaultHistoryWindow = 8
	defaultWorkerLimit   = 3
	defaultTurnTimeout   = 3 * time.Minute

	apologyText = "Sorry, I could not understand that request. Could you rephrase it?"
)

// ReplyKind distinguishes the three shapes a turn can end with
type ReplyKind string

const (
	ReplyAnswer        ReplyKind = "answer"
	ReplyClarification ReplyKind = "clarification"
	ReplyDegraded      ReplyKind = "degraded"
)

// Reply is the user-visible outcome of one turn. The user always receives
// content: an answer, a clarification question, or a degraded fact listing.
type Reply struct {
	SessionID model.SessionID
	Kind      ReplyKind
	Text      string
}

// Orchestrator is the control loop tying interpreter, router, source
// adapters and synthesizer together, one turn at a time per session.
type Orchestrator struct {
	repo        repository.Repository
	interpreter *Interpreter
	synthesizer *Synthesizer
	registry    *source.Registry

	workerLimit int
	turnTimeout time.Duration

	mu    sync.Mutex
	locks map[model.SessionID]*sync.Mutex
}

// NewInput contains dependencies for creating an orchestrator
type NewInput struct {
	Repo     repository.Repository
	Gemini   adapter.Gemini
	Registry *source.Registry

	// HistoryWindow is the number of recent turns embedded in prompts
	HistoryWindow int
	// WorkerLimit bounds concurrent source fetches per turn
	WorkerLimit int
	// TurnTimeout bounds the whole pipeline for one turn
	TurnTimeout time.Duration
}

func New(input NewInput) *Orchestrator {
	workerLimit := input.WorkerLimit
	if workerLimit <= 0 {
		workerLimit = defaultWorkerLimit
	}
	turnTimeout := input.TurnTimeout
	if turnTimeout <= 0 {
		turnTimeout = defaultTurnTimeout
	}

	return &Orchestrator{
		repo:        input.Repo,
		interpreter: NewInterpreter(input.Gemini, input.HistoryWindow),
		synthesizer: NewSynthesizer(input.Gemini, input.HistoryWindow),
		registry:    input.Registry,
		workerLimit: workerLimit,
		turnTimeout: turnTimeout,
		locks:       make(map[model.SessionID]*sync.Mutex),
	}
}

// HandleMessage processes one user message: interpret, route, fetch,
// synthesize, update session. A failure in any stage yields a degraded but
// non-fatal reply; the session stays usable for the next turn.
func (x *Orchestrator) HandleMessage(ctx context.Context, sessionID model.SessionID, userText string) (*Reply, error) {
	if userText == "" {
		return nil, goerr.New("message is empty")
	}

	// One active turn per session
	unlock := x.lockSession(sessionID)
	defer unlock()

	session, err := x.loadOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	logger := logging.From(ctx).With("session_id", session.ID)

	turnCtx, cancel := context.WithTimeout(ctx, x.turnTimeout)
	defer cancel()

	logger.Debug("turn stage", "stage", "interpreting")
	interp, err := x.interpreter.Interpret(turnCtx, session, userText)
	if err != nil {
		logger.Warn("interpretation failed, degrading turn", "error", err)
		session.AppendTurn(model.Turn{Role: model.RoleUser, Text: userText})
		session.AppendTurn(model.Turn{Role: model.RoleAgent, Text: apologyText})
		if err := x.repo.PutSession(ctx, session); err != nil {
			return nil, goerr.Wrap(err, "failed to save session")
		}
		return &Reply{SessionID: session.ID, Kind: ReplyDegraded, Text: apologyText}, nil
	}

	// Literals stated in this message update resolved entities, clarification
	// or not; unknown references never erase what is already resolved
	for typ, value := range interp.Literals {
		session.ResolveEntity(typ, value)
	}

	if interp.Clarification != nil {
		logger.Debug("turn stage", "stage", "awaiting_clarification", "missing", interp.Clarification.Missing)
		session.AppendTurn(model.Turn{Role: model.RoleUser, Text: userText, Intent: interp.Clarification.Partial})
		session.AppendTurn(model.Turn{Role: model.RoleAgent, Text: interp.Clarification.Question})
		if err := x.repo.PutSession(ctx, session); err != nil {
			return nil, goerr.Wrap(err, "failed to save session")
		}
		return &Reply{SessionID: session.ID, Kind: ReplyClarification, Text: interp.Clarification.Question}, nil
	}

	intent := interp.Intent
	session.AppendTurn(model.Turn{Role: model.RoleUser, Text: userText, Intent: intent})

	logger.Debug("turn stage", "stage", "routing", "categories", intent.Categories)
	queries, synthetic := x.registry.Route(turnCtx, *intent)

	logger.Debug("turn stage", "stage", "fetching", "queries", len(queries))
	fetched := x.fetchAll(turnCtx, queries)

	bundle := assembleBundle(*intent, queries, fetched, synthetic)

	logger.Debug("turn stage", "stage", "synthesizing", "facts", len(bundle.Facts))
	answer := x.synthesizer.Synthesize(turnCtx, session, bundle)

	session.AppendTurn(model.Turn{Role: model.RoleAgent, Text: answer.Text, Bundle: bundle})
	if err := x.repo.PutSession(ctx, session); err != nil {
		return nil, goerr.Wrap(err, "failed to save session")
	}

	kind := ReplyAnswer
	if answer.Fallback {
		kind = ReplyDegraded
	}
	logger.Debug("turn stage", "stage", "done", "kind", kind)
	return &Reply{SessionID: session.ID, Kind: kind, Text: answer.Text}, nil
}

// EndSession discards the session state and its turn lock
func (x *Orchestrator) EndSession(ctx context.Context, sessionID model.SessionID) error {
	x.mu.Lock()
	delete(x.locks, sessionID)
	x.mu.Unlock()
	return x.repo.DeleteSession(ctx, sessionID)
}

func (x *Orchestrator) lockSession(id model.SessionID) func() {
	if id == "" {
		// A fresh anonymous session; no other turn can reference it yet
		return func() {}
	}

	x.mu.Lock()
	lock, ok := x.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		x.locks[id] = lock
	}
	x.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (x *Orchestrator) loadOrCreate(ctx context.Context, id model.SessionID) (*model.Session, error) {
	if id == "" {
		return model.NewSession(), nil
	}

	session, err := x.repo.GetSession(ctx, id)
	if err == nil {
		return session, nil
	}
	if errors.Is(err, model.ErrSessionNotFound) {
		// First message of a browser session carries a fresh ID
		session = model.NewSession()
		session.ID = id
		return session, nil
	}
	return nil, err
}

// fetchAll dispatches the routed queries across source adapters, bounded by
// the worker limit. Results are indexed by query position so the merge keeps
// router priority order regardless of arrival order. Every dispatched query
// yields a fact, degraded or not, even when the turn deadline hits.
func (x *Orchestrator) fetchAll(ctx context.Context, queries []model.SourceQuery) []model.Fact {
	facts := make([]model.Fact, len(queries))

	sem := make(chan struct{}, x.workerLimit)
	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func(i int, query model.SourceQuery) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			src, ok := x.registry.Source(query.Source)
			if !ok {
				facts[i] = model.Fact{
					Category:    query.Category,
					Source:      query.Source,
					RetrievedAt: time.Now(),
					Status:      model.StatusFetchError,
					Diagnostic:  "source not registered",
				}
				return
			}
			facts[i] = src.Fetch(ctx, query)
		}(i, query)
	}
	wg.Wait()

	return facts
}

// assembleBundle merges fetched and synthetic facts grouped by the intent's
// category order, queries already in router priority order within each
// category. The bundle is immutable from here on.
func assembleBundle(intent model.Intent, queries []model.SourceQuery, fetched []model.Fact, synthetic []model.Fact) *model.EvidenceBundle {
	bundle := &model.EvidenceBundle{Intent: intent}

	for _, category := range intent.Categories {
		for i, q := range queries {
			if q.Category == category {
				bundle.Facts = append(bundle.Facts, fetched[i])
			}
		}
		for _, f := range synthetic {
			if f.Category == category {
				bundle.Facts = append(bundle.Facts, f)
			}
		}
	}

	return bundle
}
