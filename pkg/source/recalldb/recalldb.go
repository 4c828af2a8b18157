package recalldb

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

// recallDB scrapes the public recall database. The result page lists one
// campaign per ".recall-item" row; a vehicle with no campaigns renders a
// ".no-results" panel instead.
type recallDB struct {
	baseURL string
	cfg     *source.SourceConfig
	browser adapter.Browser
	client  *source.Client
}

func New(browser adapter.Browser, client *source.Client, cfg *source.SourceConfig) source.Source {
	return &recallDB{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		browser: browser,
		client:  client,
	}
}

func (x *recallDB) Name() model.SourceID {
	return "recall_db"
}

func (x *recallDB) Categories() []model.FactCategory {
	return []model.FactCategory{model.CategoryRecallStatus}
}

func (x *recallDB) Fetch(ctx context.Context, query model.SourceQuery) model.Fact {
	return source.Fetch(ctx, x.browser, x.Name(), query, x.cfg.FetchTimeout(),
		func(ctx context.Context, page adapter.Page) (string, error) {
			return x.navigate(ctx, page, query)
		})
}

// navigate implements the per-source page walk: search by VIN, wait for the
// dynamic result list, parse campaign rows.
func (x *recallDB) navigate(ctx context.Context, page adapter.Page, query model.SourceQuery) (string, error) {
	vin, ok := query.Entity(model.EntityVIN)
	if !ok {
		return "", goerr.Wrap(source.ErrNoRecord, "no VIN to search recalls for")
	}

	searchURL := fmt.Sprintf("%s/recalls?vin=%s", x.baseURL, url.QueryEscape(vin))
	if err := page.Navigate(ctx, searchURL); err != nil {
		return "", err
	}
	if err := page.WaitVisible(ctx, "#recall-results"); err != nil {
		return "", err
	}

	html, err := page.HTML(ctx, "#recall-results")
	if err != nil {
		return "", err
	}

	return x.parse(ctx, html)
}

func (x *recallDB) parse(ctx context.Context, html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse recall results page")
	}

	if doc.Find(".no-results").Length() > 0 {
		return "", source.ErrNoRecord
	}

	var campaigns []string
	doc.Find(".recall-item").Each(func(_ int, item *goquery.Selection) {
		campaign := strings.TrimSpace(item.Find(".campaign-number").Text())
		component := strings.TrimSpace(item.Find(".component").Text())
		if campaign == "" && component == "" {
			return
		}
		campaigns = append(campaigns, strings.TrimSpace(campaign+" "+component))
	})

	if len(campaigns) == 0 {
		// Results container rendered but no rows matched the expected layout
		key := x.client.SaveSnapshot(ctx, x.Name(), html)
		return "", goerr.New("recall result rows not found, layout may have drifted",
			goerr.V("snapshot", key))
	}

	return fmt.Sprintf("%d open recalls: %s", len(campaigns), strings.Join(campaigns, "; ")), nil
}
