package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/vinq-io/vinq/pkg/adapter"
	"github.com/vinq-io/vinq/pkg/model"
	"github.com/vinq-io/vinq/pkg/utils/logging"
)

// ErrNoRecord is returned by a navigation func when the source has no record
// for the requested entity. This is an expected outcome, not a failure.
var ErrNoRecord = goerr.New("no record at source")

// retryBackoff is the wait before the single retry of a transient failure
var retryBackoff = 3 * time.Second

// Source encapsulates one external data source. Fetch never returns an
// error: a failed retrieval is a Fact with a degraded status, so the router
// and orchestrator never branch on source identity or failure mode.
type Source interface {
	// Name identifies the source in facts and citations
	Name() model.SourceID

	// Categories lists the fact categories this source can answer
	Categories() []model.FactCategory

	// Fetch drives a browser session to retrieve one fact
	Fetch(ctx context.Context, query model.SourceQuery) model.Fact
}

// Client contains shared resources that source adapters use
type Client struct {
	// Snapshots is the optional archive for raw pages of failed fetches.
	// Nil disables page captures.
	Snapshots adapter.Storage
}

// SaveSnapshot stores a raw page for post-mortem inspection of layout drift.
// Returns the storage key, or empty string if archiving is disabled or
// failed. Never fails the fetch.
func (c *Client) SaveSnapshot(ctx context.Context, source model.SourceID, html string) string {
	if c == nil || c.Snapshots == nil || html == "" {
		return ""
	}

	key := fmt.Sprintf("snapshots/%s/%d.html", source, time.Now().UnixNano())
	w, err := c.Snapshots.Put(ctx, key)
	if err != nil {
		logging.From(ctx).Warn("failed to open snapshot writer", "key", key, "error", err)
		return ""
	}
	if _, err := w.Write([]byte(html)); err != nil {
		logging.From(ctx).Warn("failed to write snapshot", "key", key, "error", err)
		_ = w.Close()
		return ""
	}
	if err := w.Close(); err != nil {
		logging.From(ctx).Warn("failed to close snapshot writer", "key", key, "error", err)
		return ""
	}
	return key
}

// NavigateFunc is one navigation attempt against a live page. It returns
// the extracted fact value, or ErrNoRecord when the record is absent.
type NavigateFunc func(ctx context.Context, page adapter.Page) (string, error)

// Fetch runs one adapter navigation with a per-attempt timeout and a single
// retry with backoff, and maps every outcome to a Fact. The browser session
// is acquired exclusively per attempt and left clean by WithPage.
func Fetch(ctx context.Context, browser adapter.Browser, name model.SourceID, query model.SourceQuery, timeout time.Duration, nav NavigateFunc) model.Fact {
	logger := logging.From(ctx)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			logger.Debug("retrying fetch", "source", name, "category", query.Category)
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return errorFact(name, query, goerr.Wrap(ctx.Err(), "fetch canceled during backoff"))
			}
		}

		var value string
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err := browser.WithPage(attemptCtx, func(ctx context.Context, page adapter.Page) error {
			v, err := nav(ctx, page)
			value = v
			return err
		})
		cancel()

		if err == nil {
			return model.Fact{
				Category:    query.Category,
				Value:       value,
				Source:      name,
				RetrievedAt: time.Now(),
				Status:      model.StatusOK,
			}
		}

		if errors.Is(err, ErrNoRecord) {
			return model.Fact{
				Category:    query.Category,
				Source:      name,
				RetrievedAt: time.Now(),
				Status:      model.StatusNotFound,
			}
		}

		if ctx.Err() != nil {
			// Turn deadline exhausted, no budget for another attempt
			return errorFact(name, query, goerr.Wrap(err, "fetch aborted by turn deadline"))
		}

		lastErr = err
	}

	logger.Warn("fetch failed after retry", "source", name, "category", query.Category, "error", lastErr)
	return errorFact(name, query, lastErr)
}

func errorFact(name model.SourceID, query model.SourceQuery, err error) model.Fact {
	diag := "unknown failure"
	if err != nil {
		diag = err.Error()
	}
	return model.Fact{
		Category:    query.Category,
		Source:      name,
		RetrievedAt: time.Now(),
		Status:      model.StatusFetchError,
		Diagnostic:  diag,
	}
}
