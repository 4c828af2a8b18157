package marketwatch

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/vinq-io/vinq/pkg/adapter"
	"github.com/vinq-io/vinq/pkg/model"
	"github.com/vinq-io/vinq/pkg/source"
)

// marketWatch scrapes a market valuation site. Lookup by VIN when one is
// known, otherwise by a make/model slug plus optional year. The valuation
// widget loads asynchronously, so the fetch waits on the value container.
type marketWatch struct {
	baseURL string
	cfg     *source.SourceConfig
	browser adapter.Browser
	client  *source.Client
}

func New(browser adapter.Browser, client *source.Client, cfg *source.SourceConfig) source.Source {
	return &marketWatch{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		browser: browser,
		client:  client,
	}
}

func (x *marketWatch) Name() model.SourceID {
	return "market_watch"
}

func (x *marketWatch) Categories() []model.FactCategory {
	return []model.FactCategory{model.CategoryMarketValue}
}

func (x *marketWatch) Fetch(ctx context.Context, query model.SourceQuery) model.Fact {
	return source.Fetch(ctx, x.browser, x.Name(), query, x.cfg.FetchTimeout(),
		func(ctx context.Context, page adapter.Page) (string, error) {
			return x.navigate(ctx, page, query)
		})
}

func (x *marketWatch) navigate(ctx context.Context, page adapter.Page, query model.SourceQuery) (string, error) {
	valueURL, err := x.lookupURL(query)
	if err != nil {
		return "", err
	}

	if err := page.Navigate(ctx, valueURL); err != nil {
		return "", err
	}
	if err := page.WaitVisible(ctx, "#valuation"); err != nil {
		return "", err
	}

	html, err := page.HTML(ctx, "#valuation")
	if err != nil {
		return "", err
	}

	return x.parse(ctx, html)
}

// lookupURL builds the valuation page URL from whichever entity the query
// carries. VIN is preferred; make/model falls back to a slug search.
func (x *marketWatch) lookupURL(query model.SourceQuery) (string, error) {
	if vin, ok := query.Entity(model.EntityVIN); ok {
		return fmt.Sprintf("%s/value/vin/%s", x.baseURL, url.PathEscape(vin)), nil
	}

	makeModel, ok := query.Entity(model.EntityMakeModel)
	if !ok {
		return "", goerr.Wrap(source.ErrNoRecord, "market value requires a VIN or make/model")
	}

	slug := makeSlug(makeModel)
	if year, ok := query.Entity(model.EntityYear); ok {
		slug = year + "-" + slug
	}
	return fmt.Sprintf("%s/value/%s", x.baseURL, slug), nil
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9-]`)
var dashRuns = regexp.MustCompile(`-{2,}`)

// makeSlug turns a free-text vehicle name into the site's URL slug
func makeSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, ".", "-")
	slug = strings.ReplaceAll(slug, "'", "")
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = nonSlugChars.ReplaceAllString(slug, "")
	slug = dashRuns.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func (x *marketWatch) parse(ctx context.Context, html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse valuation page")
	}

	if doc.Find(".no-valuation").Length() > 0 {
		return "", source.ErrNoRecord
	}

	value := strings.TrimSpace(doc.Find(`[data-testid="price"]`).First().Text())
	if value == "" {
		key := x.client.SaveSnapshot(ctx, x.Name(), html)
		return "", goerr.New("valuation widget rendered without a price",
			goerr.V("snapshot", key))
	}

	result := "estimated market value " + value
	if rng := strings.TrimSpace(doc.Find(".value-range").First().Text()); rng != "" {
		result += " (range " + rng + ")"
	}
	return result, nil
}
