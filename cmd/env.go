package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/outreach-mate/outreach-cli/internal/crawler"
	"github.com/outreach-mate/outreach-cli/internal/emailer"
	"github.com/outreach-mate/outreach-cli/internal/fetcher"
	"github.com/outreach-mate/outreach-cli/internal/linkedin"
	"github.com/outreach-mate/outreach-cli/internal/normalize"
	"github.com/outreach-mate/outreach-cli/internal/pipeline"
	"github.com/outreach-mate/outreach-cli/internal/store"
	anthropicpkg "github.com/outreach-mate/outreach-cli/pkg/anthropic"
	"github.com/outreach-mate/outreach-cli/pkg/apollo"
	"github.com/outreach-mate/outreach-cli/pkg/gemini"
)

// pipelineEnv holds the store, clients, and pipeline shared by the run,
// csvrun, and serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	LinkedIn linkedin.Source // may be nil
	Gemini   gemini.Client   // may be nil
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.LinkedIn != nil {
		pe.LinkedIn.Close()
	}
	if pe.Gemini != nil {
		_ = pe.Gemini.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "outreach.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store and all enrichment clients and builds the
// Pipeline. Collaborators without credentials are left nil; their stages are
// skipped. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("run"); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	httpClient := fetcher.NewRateLimitedClient(fetcher.Options{
		UserAgent:         cfg.Crawl.UserAgent,
		Timeout:           time.Duration(cfg.Crawl.TimeoutSecs) * time.Second,
		MaxRetries:        cfg.Crawl.MaxRetries,
		RequestsPerSecond: cfg.Crawl.RequestsPerSecond,
		Burst:             cfg.Crawl.Burst,
	})
	siteCrawler := crawler.New(httpClient, crawler.Options{
		MaxPages:        cfg.Crawl.MaxPages,
		MaxDepth:        cfg.Crawl.MaxDepth,
		SnippetMaxChars: cfg.Crawl.SnippetMaxChars,
	})

	var apolloClient apollo.Client
	if cfg.Apollo.Key != "" {
		// Share the retrying transport with the crawler; the client keeps its
		// own token bucket for the Apollo API budget.
		apolloClient = apollo.NewClient(cfg.Apollo.Key,
			apollo.WithBaseURL(cfg.Apollo.BaseURL),
			apollo.WithHTTPClient(httpClient),
			apollo.WithRateLimit(rate.Limit(cfg.Apollo.RatePerSec), cfg.Apollo.Burst),
		)
	} else {
		zap.L().Warn("apollo key not set, enrichment stage will be skipped")
	}

	var liSource linkedin.Source
	if cfg.LinkedIn.Username != "" {
		liSource = linkedin.New(
			linkedin.Credentials{Username: cfg.LinkedIn.Username, Password: cfg.LinkedIn.Password},
			linkedin.Options{
				Headless:          cfg.LinkedIn.Headless,
				ProxyURL:          cfg.LinkedIn.ProxyURL,
				CookiesFile:       cfg.LinkedIn.CookiesFile,
				NavigationTimeout: time.Duration(cfg.LinkedIn.NavTimeoutSecs) * time.Second,
				CheckpointWait:    time.Duration(cfg.LinkedIn.CheckpointWaitSecs) * time.Second,
			},
		)
	} else {
		zap.L().Warn("linkedin credentials not set, scrape stages will be skipped")
	}

	geminiClient, err := gemini.NewClient(ctx, cfg.Gemini.Key, cfg.Gemini.Model)
	if err != nil {
		if liSource != nil {
			liSource.Close()
		}
		_ = st.Close()
		return nil, eris.Wrap(err, "init gemini client")
	}
	engine := normalize.NewEngine(geminiClient, normalize.Options{
		AllowZeroContacts: cfg.Pipeline.AllowZeroContacts,
	})

	p := pipeline.New(st, siteCrawler, apolloClient, liSource, engine, pipeline.Options{
		MaxProfileScrapes: cfg.Pipeline.MaxProfileScrapes,
	})

	return &pipelineEnv{
		Store:    st,
		Pipeline: p,
		LinkedIn: liSource,
		Gemini:   geminiClient,
	}, nil
}

// initEmailer sets up the store and the draft/send service. Callers should
// defer closing the returned store.
func initEmailer(ctx context.Context) (store.Store, *emailer.Service, error) {
	if err := cfg.Validate("email"); err != nil {
		return nil, nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	gen := emailer.NewGenerator(anthropicpkg.NewClient(cfg.Anthropic.Key), emailer.GeneratorOptions{
		Model:     cfg.Anthropic.HaikuModel,
		MaxTokens: cfg.Anthropic.MaxTokens,
	})

	// Only the dry-run transport ships; live provider credentials plug in
	// behind the Sender interface.
	var sender emailer.Sender
	if cfg.Email.DryRun {
		sender = emailer.DryRunSender{}
	} else {
		_ = st.Close()
		return nil, nil, eris.Errorf("no live transport configured for provider %s, set email.dry_run", cfg.Email.Provider)
	}

	return st, emailer.NewService(st, gen, sender), nil
}
