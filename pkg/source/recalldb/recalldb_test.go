package recalldb

import (
	"context"
	"io"
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

type keyRecorder struct {
	keys []string
}

func (r *keyRecorder) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	r.keys = append(r.keys, key)
	return nopWriteCloser{}, nil
}

func (r *keyRecorder) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, goerr.New("not implemented")
}

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }

func newTestSource(page *fakePage) source.Source {
	cfg := &source.SourceConfig{
		Name:    "recall_db",
		BaseURL: "https://recalls.example.com/",
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
		Category: model.CategoryRecallStatus,
		Source:   "recall_db",
		Entities: entities,
	}
}

func TestFetchOpenRecalls(t *testing.T) {
	page := &fakePage{html: map[string]string{
		"#recall-results": `<div id="recall-results">
			<div class="recall-item"><span class="campaign-number">23V-123</span><span class="component">FUEL PUMP</span></div>
			<div class="recall-item"><span class="campaign-number">24V-001</span><span class="component">AIR BAG</span></div>
		</div>`,
	}}

	fact := newTestSource(page).Fetch(context.Background(), vinQuery("1FTFW1ET5DFC10312"))

	gt.Equal(t, fact.Status, model.StatusOK)
	gt.Equal(t, fact.Source, model.SourceID("recall_db"))
	gt.True(t, strings.HasPrefix(fact.Value, "2 open recalls:"))
	gt.True(t, strings.Contains(fact.Value, "23V-123 FUEL PUMP"))
	gt.True(t, strings.Contains(fact.Value, "24V-001 AIR BAG"))
	gt.True(t, strings.Contains(page.lastURL, "/recalls?vin=1FTFW1ET5DFC10312"))
}

func TestFetchNoRecalls(t *testing.T) {
	page := &fakePage{html: map[string]string{
		"#recall-results": `<div id="recall-results"><div class="no-results">No recalls found</div></div>`,
	}}

	fact := newTestSource(page).Fetch(context.Background(), vinQuery("1FTFW1ET5DFC10312"))

	gt.Equal(t, fact.Status, model.StatusNotFound)
	gt.Equal(t, fact.Value, "")
}

func TestFetchWithoutVIN(t *testing.T) {
	page := &fakePage{html: map[string]string{}}

	fact := newTestSource(page).Fetch(context.Background(), vinQuery(""))

	// A recall lookup is meaningless without a VIN, so this is "no record",
	// not an error
	gt.Equal(t, fact.Status, model.StatusNotFound)
	gt.Equal(t, page.lastURL, "")
}

func TestParseLayoutDrift(t *testing.T) {
	recorder := &keyRecorder{}
	cfg := &source.SourceConfig{Name: "recall_db", BaseURL: "https://recalls.example.com"}
	x := New(&fakeBrowser{}, &source.Client{Snapshots: recorder}, cfg).(*recallDB)

	html := `<div id="recall-results"><table class="campaign-table"></table></div>`
	_, err := x.parse(context.Background(), html)
	gt.Error(t, err)
	gt.Equal(t, len(recorder.keys), 1)
	gt.True(t, strings.HasPrefix(recorder.keys[0], "snapshots/recall_db/"))
}

func TestFetchIdempotent(t *testing.T) {
	page := &fakePage{html: map[string]string{
		"#recall-results": `<div id="recall-results">
			<div class="recall-item"><span class="campaign-number">23V-123</span><span class="component">FUEL PUMP</span></div>
		</div>`,
	}}
	src := newTestSource(page)
	query := vinQuery("1FTFW1ET5DFC10312")

	first := src.Fetch(context.Background(), query)
	second := src.Fetch(context.Background(), query)

	gt.Equal(t, first.Status, second.Status)
	gt.Equal(t, first.Value, second.Value)
}
