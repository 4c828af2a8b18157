package titleledger

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/vinq-io/vinq/pkg/adapter"
	"github.com/vinq-io/vinq/pkg/model"
	"github.com/vinq-io/vinq/pkg/source"
)

// titleLedger scrapes the title history registry. The report page renders
// one "#title-report tr.title-event" row per brand/transfer event, oldest
// first; an unknown VIN lands on an "#unknown-vin" page.
type titleLedger struct {
	baseURL string
	cfg     *source.SourceConfig
	browser adapter.Browser
	client  *source.Client
}

func New(browser adapter.Browser, client *source.Client, cfg *source.SourceConfig) source.Source {
	return &titleLedger{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		browser: browser,
		client:  client,
	}
}

func (x *titleLedger) Name() model.SourceID {
	return "title_ledger"
}

func (x *titleLedger) Categories() []model.FactCategory {
	return []model.FactCategory{model.CategoryTitleHistory}
}

func (x *titleLedger) Fetch(ctx context.Context, query model.SourceQuery) model.Fact {
	return source.Fetch(ctx, x.browser, x.Name(), query, x.cfg.FetchTimeout(),
		func(ctx context.Context, page adapter.Page) (string, error) {
			return x.navigate(ctx, page, query)
		})
}

func (x *titleLedger) navigate(ctx context.Context, page adapter.Page, query model.SourceQuery) (string, error) {
	vin, ok := query.Entity(model.EntityVIN)
	if !ok {
		return "", goerr.Wrap(source.ErrNoRecord, "title history requires a VIN")
	}

	reportURL := fmt.Sprintf("%s/report?vin=%s", x.baseURL, url.QueryEscape(vin))
	if err := page.Navigate(ctx, reportURL); err != nil {
		return "", err
	}
	if err := page.WaitVisible(ctx, "main"); err != nil {
		return "", err
	}

	html, err := page.HTML(ctx, "main")
	if err != nil {
		return "", err
	}

	return x.parse(ctx, html)
}

func (x *titleLedger) parse(ctx context.Context, html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse title report page")
	}

	if doc.Find("#unknown-vin").Length() > 0 {
		return "", source.ErrNoRecord
	}

	var events []string
	doc.Find("#title-report tr.title-event").Each(func(_ int, row *goquery.Selection) {
		date := strings.TrimSpace(row.Find(".event-date").Text())
		kind := strings.TrimSpace(row.Find(".event-type").Text())
		state := strings.TrimSpace(row.Find(".event-state").Text())
		if kind == "" {
			return
		}
		event := kind
		if state != "" {
			event += " (" + state + ")"
		}
		if date != "" {
			event = date + " " + event
		}
		events = append(events, event)
	})

	if len(events) == 0 {
		key := x.client.SaveSnapshot(ctx, x.Name(), html)
		return "", goerr.New("title report rendered without event rows",
			goerr.V("snapshot", key))
	}

	return fmt.Sprintf("%d title events: %s", len(events), strings.Join(events, "; ")), nil
}
