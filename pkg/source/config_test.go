package source_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/vinq-io/vinq/pkg/source"
)

func TestLoadConfig(t *testing.T) {
	raw := `sources:
  - name: recall_db
    base_url: https://recalls.example.com
    timeout: 10s
  - name: market_watch
    base_url: https://market.example.com
    disabled: true
`
	path := filepath.Join(t.TempDir(), "sources.yml")
	gt.NoError(t, os.WriteFile(path, []byte(raw), 0600))

	cfg := gt.R1(source.LoadConfig(path)).NoError(t)
	gt.Equal(t, len(cfg.Sources), 2)

	recall, ok := cfg.Lookup("recall_db")
	gt.True(t, ok)
	gt.Equal(t, recall.BaseURL, "https://recalls.example.com")
	gt.Equal(t, recall.FetchTimeout(), 10*time.Second)

	market, ok := cfg.Lookup("market_watch")
	gt.True(t, ok)
	gt.True(t, market.Disabled)
	gt.Equal(t, market.FetchTimeout(), source.DefaultTimeout)

	_, ok = cfg.Lookup("title_ledger")
	gt.False(t, ok)
}

func TestLoadConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":          `sources: []`,
		"missing name":   "sources:\n  - base_url: https://example.com\n",
		"missing url":    "sources:\n  - name: recall_db\n",
		"duplicate name": "sources:\n  - name: recall_db\n    base_url: https://a.example.com\n  - name: recall_db\n    base_url: https://b.example.com\n",
	}

	for label, raw := range cases {
		t.Run(label, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sources.yml")
			gt.NoError(t, os.WriteFile(path, []byte(raw), 0600))

			_, err := source.LoadConfig(path)
			gt.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := source.LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	gt.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := source.DefaultConfig()
	gt.NoError(t, cfg.Validate())

	for _, name := range []string{"recall_db", "title_ledger", "market_watch", "vin_spec"} {
		sc, ok := cfg.Lookup(name)
		gt.True(t, ok)
		gt.NotEqual(t, sc.BaseURL, "")
	}
}
