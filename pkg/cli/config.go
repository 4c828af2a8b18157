package cli

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/vinq-io/vinq/pkg/adapter"
	"github.com/vinq-io/vinq/pkg/repository"
	"github.com/vinq-io/vinq/pkg/source"
	"github.com/vinq-io/vinq/pkg/source/marketwatch"
	"github.com/vinq-io/vinq/pkg/source/recalldb"
	"github.com/vinq-io/vinq/pkg/source/titleledger"
	"github.com/vinq-io/vinq/pkg/source/vinspec"
	"github.com/vinq-io/vinq/pkg/usecase/inquiry"
	"github.com/vinq-io/vinq/pkg/utils/logging"
)

// config holds configuration values shared across commands
type config struct {
	logLevel string

	// LLM
	geminiProject  string
	geminiLocation string
	geminiModel    string

	// Sources
	sourcesPath    string
	policyDir      string
	snapshotBucket string
	headless       bool

	// Pipeline
	workerLimit   int64
	turnTimeout   time.Duration
	historyWindow int64
}

// sourceConstructors maps config names to adapter constructors. Priority is
// taken from config order, not from this map.
var sourceConstructors = map[string]func(adapter.Browser, *source.Client, *source.SourceConfig) source.Source{
	"recall_db":    recalldb.New,
	"title_ledger": titleledger.New,
	"market_watch": marketwatch.New,
	"vin_spec":     vinspec.New,
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("VINQ_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Generative model name",
			Sources:     cli.EnvVars("VINQ_GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// sourceFlags returns flags for source and pipeline configuration
func sourceFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sources",
			Aliases:     []string{"s"},
			Usage:       "Path to source registry YAML (default: built-in registry)",
			Sources:     cli.EnvVars("VINQ_SOURCES"),
			Destination: &cfg.sourcesPath,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego routing policies",
			Sources:     cli.EnvVars("VINQ_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.StringFlag{
			Name:        "snapshot-bucket",
			Usage:       "Cloud Storage bucket for failed-fetch page snapshots",
			Sources:     cli.EnvVars("VINQ_SNAPSHOT_BUCKET"),
			Destination: &cfg.snapshotBucket,
		},
		&cli.BoolFlag{
			Name:        "headless",
			Usage:       "Run browser sessions headless",
			Value:       true,
			Sources:     cli.EnvVars("VINQ_HEADLESS"),
			Destination: &cfg.headless,
		},
		&cli.IntFlag{
			Name:        "worker-limit",
			Usage:       "Max concurrent source fetches per turn",
			Value:       3,
			Sources:     cli.EnvVars("VINQ_WORKER_LIMIT"),
			Destination: &cfg.workerLimit,
		},
		&cli.DurationFlag{
			Name:        "turn-timeout",
			Usage:       "Overall timeout for one conversation turn",
			Value:       3 * time.Minute,
			Sources:     cli.EnvVars("VINQ_TURN_TIMEOUT"),
			Destination: &cfg.turnTimeout,
		},
		&cli.IntFlag{
			Name:        "history-window",
			Usage:       "Number of recent turns embedded in prompts",
			Value:       8,
			Sources:     cli.EnvVars("VINQ_HISTORY_WINDOW"),
			Destination: &cfg.historyWindow,
		},
	}
}

// configureLogging installs the default logger for this invocation
func (cfg *config) configureLogging() {
	logging.SetDefault(logging.New(cfg.logLevel, os.Stderr))
}

// newGemini creates the LLM adapter
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	opts := []adapter.GeminiOption{}
	if cfg.geminiModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.geminiModel))
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
}

// loadSourceConfig loads the source registry file or the built-in default
func (cfg *config) loadSourceConfig() (*source.Config, error) {
	if cfg.sourcesPath == "" {
		return source.DefaultConfig(), nil
	}
	return source.LoadConfig(cfg.sourcesPath)
}

// newRegistry builds the source router. Each source owns an independent
// browser session so fetches can run concurrently. The returned cleanup
// closes all sessions.
func (cfg *config) newRegistry(ctx context.Context) (*source.Registry, func(), error) {
	srcCfg, err := cfg.loadSourceConfig()
	if err != nil {
		return nil, nil, err
	}

	client := &source.Client{}
	if cfg.snapshotBucket != "" {
		snapshots, err := adapter.NewStorage(ctx, cfg.snapshotBucket)
		if err != nil {
			return nil, nil, err
		}
		client.Snapshots = snapshots
	}

	var browsers []*adapter.ChromeBrowser
	cleanup := func() {
		for _, b := range browsers {
			_ = b.Close()
		}
	}

	var sources []source.Source
	for i := range srcCfg.Sources {
		sc := &srcCfg.Sources[i]
		if sc.Disabled {
			continue
		}
		construct, ok := sourceConstructors[sc.Name]
		if !ok {
			cleanup()
			return nil, nil, goerr.New("unknown source in config", goerr.V("name", sc.Name))
		}

		browser, err := adapter.NewBrowser(ctx, adapter.WithHeadless(cfg.headless))
		if err != nil {
			cleanup()
			return nil, nil, goerr.Wrap(err, "failed to start browser for source", goerr.V("name", sc.Name))
		}
		browsers = append(browsers, browser)
		sources = append(sources, construct(browser, client, sc))
	}

	var opts []source.RegistryOption
	if cfg.policyDir != "" {
		policy, err := source.LoadPolicy(ctx, cfg.policyDir)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if policy != nil {
			opts = append(opts, source.WithPolicy(policy))
		}
	}

	return source.New(sources, opts...), cleanup, nil
}

// newOrchestrator wires the whole pipeline
func (cfg *config) newOrchestrator(ctx context.Context) (*inquiry.Orchestrator, func(), error) {
	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, nil, err
	}

	registry, cleanup, err := cfg.newRegistry(ctx)
	if err != nil {
		return nil, nil, err
	}

	orchestrator := inquiry.New(inquiry.NewInput{
		Repo:          repository.NewMemory(),
		Gemini:        gemini,
		Registry:      registry,
		HistoryWindow: int(cfg.historyWindow),
		WorkerLimit:   int(cfg.workerLimit),
		TurnTimeout:   cfg.turnTimeout,
	})
	return orchestrator, cleanup, nil
}
