package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salestax-cli/internal/fetcher"
	"github.com/sells-group/salestax-cli/internal/location"
	"github.com/sells-group/salestax-cli/internal/quote"
	"github.com/sells-group/salestax-cli/internal/store"
	"github.com/sells-group/salestax-cli/internal/taxcalc"
	"github.com/sells-group/salestax-cli/internal/taxtable"
	"github.com/sells-group/salestax-cli/pkg/geocode"
)

// appEnv holds the clients and collaborators shared by every command.
type appEnv struct {
	Store    store.Store // nil when store.driver is none
	Fetcher  *fetcher.HTTPFetcher
	Rates    taxtable.Provider
	Cached   *taxtable.CachedProvider // nil without a store
	Geocoder *geocode.Geocoder
	Resolver *location.Resolver
	Calc     *taxcalc.Calculator
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// Service loads the rate table and returns a quote service over it. A
// failed load yields a service with an empty table.
func (e *appEnv) Service(ctx context.Context) *quote.Service {
	table := taxtable.Acquire(ctx, e.Rates)
	return quote.NewService(e.Resolver, table, e.Calc, quote.WithSuggestions(cfg.Rates.Suggestions))
}

// initEnv builds the environment from cfg. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	policy, err := cfg.Policy.Build()
	if err != nil {
		return nil, eris.Wrap(err, "build policy")
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         cfg.HTTP.UserAgent,
		Timeout:           time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
		MaxRetries:        cfg.HTTP.MaxRetries,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
	})

	env := &appEnv{
		Fetcher: f,
		Rates:   newRateProvider(f),
		Calc:    taxcalc.NewCalculator(policy),
	}

	geoOpts := geocodeOptions()
	if storeEnabled() {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
		env.Store = st
		env.Cached = taxtable.NewCachedProvider(env.Rates, st, cfg.Rates.CacheTTL())
		env.Rates = env.Cached
		geoOpts = append(geoOpts, geocode.WithPlaceCache(st, cfg.Geocode.CacheTTL()))
	}

	env.Geocoder = geocode.NewClient(f, geoOpts...)
	env.Resolver = location.NewResolver(env.Geocoder, location.WithDomainState(cfg.Geocode.DomainState))

	zap.L().Debug("environment ready",
		zap.String("rates", env.Rates.Name()),
		zap.String("store", cfg.Store.Driver),
		zap.String("domain_state", env.Resolver.DomainState()),
	)
	return env, nil
}

func storeEnabled() bool {
	return cfg.Store.Driver != "" && cfg.Store.Driver != "none"
}

// initStore opens the configured snapshot store.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "salestax.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// newRateProvider selects the rate table source.
func newRateProvider(f fetcher.Fetcher) taxtable.Provider {
	cols := taxtable.Columns{
		City:   cfg.Rates.CityColumn,
		Rate:   cfg.Rates.RateColumn,
		County: cfg.Rates.CountyColumn,
	}
	if cfg.Rates.Source == "xlsx" {
		return taxtable.NewXLSXProvider(f, cfg.Rates.XLSXURL,
			taxtable.WithXLSXColumns(cols),
			taxtable.WithXLSXSheet(fetcher.XLSXOptions{
				SheetName: cfg.Rates.XLSXSheet,
				SkipRows:  cfg.Rates.XLSXSkipRows,
			}),
			taxtable.WithXLSXTempDir(cfg.Geocode.TempDir),
		)
	}
	return taxtable.NewHTMLProvider(f, cfg.Rates.URL, taxtable.WithHTMLColumns(cols))
}

func geocodeOptions() []geocode.Option {
	var opts []geocode.Option
	if cfg.Geocode.BaseURL != "" {
		opts = append(opts, geocode.WithBaseURL(cfg.Geocode.BaseURL))
	}
	if cfg.Geocode.Country != "" {
		opts = append(opts, geocode.WithCountry(cfg.Geocode.Country))
	}
	if cfg.Geocode.TempDir != "" {
		opts = append(opts, geocode.WithTempDir(cfg.Geocode.TempDir))
	}
	return opts
}
