package titleledger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/vinq-io/vinq/pkg/adapter"
	"github.com/vinq-io/vinq/pkg/model"
	"github.com/vinq-io/vinq/pkg/source"
)

type fakePage struct {
	lastURL string
	html    map[string]string
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.lastURL = url
	return nil
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string) error {
	if _, ok := p.html[selector]; !ok {
		return goerr.New("element did not become visible", goerr.V("selector", selector))
	}
	return nil
}

func (p *fakePage) Text(ctx context.Context, selector string) (string, error) {
	return p.html[selector], nil
}

func (p *fakePage) HTML(ctx context.Context, selector string) (string, error) {
	html, ok := p.html[selector]
	if !ok {
		return "", goerr.New("no such element", goerr.V("selector", selector))
	}
	return html, nil
}

type fakeBrowser struct {
	page *fakePage
}

func (b *fakeBrowser) WithPage(ctx context.Context, fn func(ctx context.Context, page adapter.Page) error) error {
	return fn(ctx, b.page)
}

func (b *fakeBrowser) Close() error { return nil }

func newTestSource(page *fakePage) source.Source {
	cfg := &source.SourceConfig{
		Name:    "title_ledger",
		BaseURL: "https://titles.example.com",
		Timeout: time.Second,
	}
	return New(&fakeBrowser{page: page}, &source.Client{}, cfg)
}

func vinQuery(vin string) model.SourceQuery {
	entities := map[model.EntityType]string{}
	if vin != "" {
		entities[model.EntityVIN] = vin
	}
	return model.SourceQuery{
		Category: model.CategoryTitleHistory,
		Source:   "title_ledger",
		Entities: entities,
	}
}

func TestFetchTitleEvents(t *testing.T) {
	page := &fakePage{html: map[string]string{
		"main": `<main><table id="title-report">
			<tr class="title-event"><td class="event-date">2019-03-12</td><td class="event-type">Clean Title Issued</td><td class="event-state">TX</td></tr>
			<tr class="title-event"><td class="event-date">2023-08-01</td><td class="event-type">Salvage Brand</td><td class="event-state">OK</td></tr>
		</table></main>`,
	}}

	fact := newTestSource(page).Fetch(context.Background(), vinQuery("1FTFW1ET5DFC10312"))

	gt.Equal(t, fact.Status, model.StatusOK)
	gt.True(t, strings.HasPrefix(fact.Value, "2 title events:"))
	gt.True(t, strings.Contains(fact.Value, "2019-03-12 Clean Title Issued (TX)"))
	gt.True(t, strings.Contains(fact.Value, "2023-08-01 Salvage Brand (OK)"))
	gt.True(t, strings.Contains(page.lastURL, "/report?vin=1FTFW1ET5DFC10312"))
}

func TestFetchUnknownVIN(t *testing.T) {
	page := &fakePage{html: map[string]string{
		"main": `<main><div id="unknown-vin">No report available for this VIN</div></main>`,
	}}

	fact := newTestSource(page).Fetch(context.Background(), vinQuery("1FTFW1ET5DFC10312"))

	gt.Equal(t, fact.Status, model.StatusNotFound)
}

func TestFetchWithoutVIN(t *testing.T) {
	page := &fakePage{html: map[string]string{}}

	fact := newTestSource(page).Fetch(context.Background(), vinQuery(""))

	gt.Equal(t, fact.Status, model.StatusNotFound)
	gt.Equal(t, page.lastURL, "")
}

func TestParsePartialRows(t *testing.T) {
	cfg := &source.SourceConfig{Name: "title_ledger", BaseURL: "https://titles.example.com"}
	x := New(&fakeBrowser{}, &source.Client{}, cfg).(*titleLedger)

	// Rows without an event type are skipped, the rest still count
	html := `<main><table id="title-report">
		<tr class="title-event"><td class="event-date">2019-03-12</td><td class="event-type"></td></tr>
		<tr class="title-event"><td class="event-date"></td><td class="event-type">Transfer</td><td class="event-state"></td></tr>
	</table></main>`

	value := gt.R1(x.parse(context.Background(), html)).NoError(t)
	gt.Equal(t, value, "1 title events: Transfer")
}

func TestParseNoRows(t *testing.T) {
	cfg := &source.SourceConfig{Name: "title_ledger", BaseURL: "https://titles.example.com"}
	x := New(&fakeBrowser{}, &source.Client{}, cfg).(*titleLedger)

	_, err := x.parse(context.Background(), `<main><p>report pending</p></main>`)
	gt.Error(t, err)
	gt.True(t, strings.Contains(err.Error(), "without event rows"))
}
