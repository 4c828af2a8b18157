package vinspec

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

// specFields are the decoder attributes worth surfacing to an evaluator
var specFields = []string{"Make", "Model", "Model Year", "Body Class", "Engine", "Plant Country"}

// vinSpec scrapes the public VIN decoder. The decoded page is a plain
// attribute table, one "#decoder-results tr" per attribute.
type vinSpec struct {
	baseURL string
	cfg     *source.SourceConfig
	browser adapter.Browser
	client  *source.Client
}

func New(browser adapter.Browser, client *source.Client, cfg *source.SourceConfig) source.Source {
	return &vinSpec{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		browser: browser,
		client:  client,
	}
}

func (x *vinSpec) Name() model.SourceID {
	return "vin_spec"
}

func (x *vinSpec) Categories() []model.FactCategory {
	return []model.FactCategory{model.CategoryVehicleSpecs}
}

func (x *vinSpec) Fetch(ctx context.Context, query model.SourceQuery) model.Fact {
	return source.Fetch(ctx, x.browser, x.Name(), query, x.cfg.FetchTimeout(),
		func(ctx context.Context, page adapter.Page) (string, error) {
			return x.navigate(ctx, page, query)
		})
}

func (x *vinSpec) navigate(ctx context.Context, page adapter.Page, query model.SourceQuery) (string, error) {
	vin, ok := query.Entity(model.EntityVIN)
	if !ok {
		return "", goerr.Wrap(source.ErrNoRecord, "spec decoding requires a VIN")
	}

	decodeURL := fmt.Sprintf("%s/decoder/Decoder?vin=%s", x.baseURL, url.QueryEscape(vin))
	if err := page.Navigate(ctx, decodeURL); err != nil {
		return "", err
	}
	if err := page.WaitVisible(ctx, "#decoder-results"); err != nil {
		return "", err
	}

	html, err := page.HTML(ctx, "#decoder-results")
	if err != nil {
		return "", err
	}

	return x.parse(ctx, html)
}

func (x *vinSpec) parse(ctx context.Context, html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse decoder page")
	}

	if doc.Find(".decode-error").Length() > 0 {
		return "", source.ErrNoRecord
	}

	attrs := make(map[string]string)
	doc.Find("#decoder-results tr").Each(func(_ int, row *goquery.Selection) {
		name := strings.TrimSpace(row.Find("td").Eq(0).Text())
		value := strings.TrimSpace(row.Find("td").Eq(1).Text())
		if name != "" && value != "" {
			attrs[name] = value
		}
	})

	var specs []string
	for _, field := range specFields {
		if v, ok := attrs[field]; ok {
			specs = append(specs, field+": "+v)
		}
	}

	if len(specs) == 0 {
		key := x.client.SaveSnapshot(ctx, x.Name(), html)
		return "", goerr.New("decoder results missing expected attributes",
			goerr.V("snapshot", key))
	}

	return strings.Join(specs, ", "), nil
}
