package main

import (
	"context"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-sync/internal/audit"
	"github.com/sells-group/contact-sync/internal/config"
	"github.com/sells-group/contact-sync/internal/crm"
	"github.com/sells-group/contact-sync/internal/enrich"
	"github.com/sells-group/contact-sync/internal/ledger"
	"github.com/sells-group/contact-sync/internal/monitoring"
	"github.com/sells-group/contact-sync/internal/pipeline"
	"github.com/sells-group/contact-sync/internal/resilience"
	"github.com/sells-group/contact-sync/internal/store"
	"github.com/sells-group/contact-sync/pkg/hubspot"
	"github.com/sells-group/contact-sync/pkg/notion"
	"github.com/sells-group/contact-sync/pkg/partner"
	sfpkg "github.com/sells-group/contact-sync/pkg/salesforce"
	"github.com/sells-group/contact-sync/pkg/sheets"
	"github.com/sells-group/contact-sync/pkg/trestle"
)

// resources opens shared backends on first use and closes them in reverse
// order.
type resources struct {
	cfg     *config.Config
	st      store.Store
	closers []func()
}

func newResources(c *config.Config) *resources {
	return &resources{cfg: c}
}

// Close releases everything opened so far.
func (r *resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// Store opens and migrates the SQL store.
func (r *resources) Store(ctx context.Context) (store.Store, error) {
	if r.st != nil {
		return r.st, nil
	}

	var (
		st  store.Store
		err error
	)
	switch r.cfg.Store.Driver {
	case "sqlite":
		dsn := r.cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "contact-sync.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, r.cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", r.cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	r.st = st
	r.closers = append(r.closers, func() { _ = st.Close() })
	return st, nil
}

// Ledger builds the configured ledger backend.
func (r *resources) Ledger(ctx context.Context) (ledger.Ledger, error) {
	switch r.cfg.Ledger.Backend {
	case "file", "":
		f := ledger.NewFile(r.cfg.Ledger.Path)
		zap.L().Debug("using file ledger", zap.String("path", f.Path()))
		return f, nil
	case "store":
		st, err := r.Store(ctx)
		if err != nil {
			return nil, err
		}
		return ledger.NewStore(st), nil
	case "redis":
		rc := r.cfg.Ledger.Redis
		l, err := ledger.NewRedis(ctx, ledger.RedisConfig{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			Key:      rc.Key,
			LockTTL:  time.Duration(rc.LockTTLSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, func() { _ = l.Close() })
		return l, nil
	default:
		return nil, eris.Errorf("unsupported ledger backend: %s", r.cfg.Ledger.Backend)
	}
}

// Sheets opens the audit spreadsheet.
func (r *resources) Sheets(ctx context.Context) (sheets.Client, error) {
	sc := r.cfg.Audit.Sheets
	return sheets.NewClient(ctx, sheets.Config{
		SpreadsheetID:   sc.SpreadsheetID,
		Range:           sc.Range,
		CredentialsFile: sc.CredentialsFile,
		CredentialsJSON: sc.CredentialsJSON,
	})
}

// Notion returns a client for the audit database.
func (r *resources) Notion() notion.Client {
	return notion.NewClient(r.cfg.Audit.Notion.Token,
		notion.WithHTTPClient(&http.Client{Timeout: r.cfg.HTTP.Timeout()}),
	)
}

// AuditSink fans out to every configured sink.
func (r *resources) AuditSink(ctx context.Context) (audit.Sink, error) {
	var sinks audit.Multi
	for _, name := range r.cfg.Audit.Sinks {
		switch name {
		case "sheets":
			sc, err := r.Sheets(ctx)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, audit.SheetsSink{Client: sc})
		case "notion":
			sinks = append(sinks, audit.NotionSink{Client: r.Notion(), DatabaseID: r.cfg.Audit.Notion.DatabaseID})
		case "store":
			st, err := r.Store(ctx)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, audit.StoreSink{Store: st})
		case "log":
			sinks = append(sinks, audit.LogSink{})
		default:
			return nil, eris.Errorf("unsupported audit sink: %s", name)
		}
	}
	switch len(sinks) {
	case 0:
		return audit.LogSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

// CRM builds the configured CRM backend. A missing credential yields a nil
// client so that writes fail with a configuration error instead of being
// attempted.
func (r *resources) CRM() (crm.Client, error) {
	timeout := r.cfg.HTTP.Timeout()
	switch r.cfg.CRM.Provider {
	case "hubspot":
		hs := r.cfg.HubSpot
		if hs.APIKey == "" {
			zap.L().Warn("hubspot api key not set, crm updates disabled")
			return nil, nil
		}
		return crm.NewHubSpot(hubspot.NewClient(hs.APIKey,
			hubspot.WithBaseURL(hs.BaseURL),
			hubspot.WithTimeout(timeout),
			hubspot.WithRateLimit(hs.RateLimit),
		)), nil
	case "salesforce":
		sf, err := initSalesforce(r.cfg.Salesforce)
		if err != nil {
			return nil, err
		}
		return crm.NewSalesforce(sf), nil
	default:
		return nil, eris.Errorf("unsupported crm provider: %s", r.cfg.CRM.Provider)
	}
}

func initSalesforce(sc config.SalesforceConfig) (sfpkg.Client, error) {
	if sc.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (CONTACTSYNC_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(sc.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         sc.LoginURL,
		Username:       sc.Username,
		ConsumerKey:    sc.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf, sfpkg.WithRateLimit(sc.RateLimit)), nil
}

// Enricher builds the reverse lookup enricher behind a circuit breaker.
func (r *resources) Enricher() *enrich.Enricher {
	tc := r.cfg.Trestle
	timeout := r.cfg.HTTP.Timeout()
	if tc.APIKey == "" {
		zap.L().Warn("trestle api key not set, lookups disabled")
		return enrich.New(nil)
	}
	client := trestle.NewClient(tc.APIKey,
		trestle.WithBaseURL(tc.BaseURL),
		trestle.WithTimeout(timeout),
		trestle.WithRateLimit(tc.RateLimit),
	)
	breaker := resilience.NewBreaker("trestle", resilience.BreakerConfig{
		FailureThreshold: tc.BreakerThreshold,
		CoolDown:         time.Duration(tc.BreakerCooldownSecs) * time.Second,
	})
	return enrich.New(client, enrich.WithBreaker(breaker), enrich.WithTimeout(timeout))
}

// Partner builds the delivery client, or nil when no webhook is configured.
func (r *resources) Partner() partner.Client {
	if r.cfg.Partner.WebhookURL == "" {
		return nil
	}
	return partner.NewClient(r.cfg.Partner.WebhookURL, partner.WithTimeout(r.cfg.HTTP.Timeout()))
}

// appEnv holds the pipeline and the backends it was built from.
type appEnv struct {
	*resources
	Pipeline *pipeline.Pipeline
	Audit    *audit.Logger
}

// initPipeline validates config for mode and builds the Pipeline. Callers
// should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	res := newResources(cfg)
	env, err := buildEnv(ctx, res, mode == "batch")
	if err != nil {
		res.Close()
		return nil, err
	}
	return env, nil
}

func buildEnv(ctx context.Context, res *resources, withLedger bool) (*appEnv, error) {
	crmClient, err := res.CRM()
	if err != nil {
		return nil, err
	}

	sink, err := res.AuditSink(ctx)
	if err != nil {
		return nil, err
	}

	auditLog := audit.NewLogger(sink, res.cfg.Audit.Script, audit.WithTimeout(res.cfg.HTTP.Timeout()))
	deps := pipeline.Deps{
		CRM:      crmClient,
		Enricher: res.Enricher(),
		Partner:  res.Partner(),
		Audit:    auditLog,
	}
	if withLedger {
		l, err := res.Ledger(ctx)
		if err != nil {
			return nil, err
		}
		deps.Ledger = l
	}

	zap.L().Info("pipeline initialized",
		zap.String("crm", res.cfg.CRM.Provider),
		zap.Strings("audit_sinks", res.cfg.Audit.Sinks),
		zap.Bool("partner", deps.Partner != nil),
	)

	return &appEnv{
		resources: res,
		Pipeline:  pipeline.New(deps, pipeline.WithCallTimeout(res.cfg.HTTP.Timeout())),
		Audit:     auditLog,
	}, nil
}

// Checker builds the background alert checker. It needs audit records in
// the store, so it is nil unless monitoring is enabled and "store" is one
// of the audit sinks.
func (r *resources) Checker(ctx context.Context) (*monitoring.Checker, error) {
	mc := r.cfg.Monitoring
	if !mc.Enabled() || !slices.Contains(r.cfg.Audit.Sinks, "store") {
		return nil, nil
	}
	st, err := r.Store(ctx)
	if err != nil {
		return nil, err
	}
	return monitoring.NewChecker(monitoring.NewCollector(st), monitoring.NewAlerter(mc), mc), nil
}
