package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/servkit/restsync/pkg/cli/internal/parse"
	"github.com/servkit/restsync/pkg/config"
	"github.com/servkit/restsync/pkg/controller"
	"github.com/servkit/restsync/pkg/httpclient"
	"github.com/servkit/restsync/pkg/ledger"
	"github.com/servkit/restsync/pkg/ledger/sqlite"
	"github.com/servkit/restsync/pkg/logging"
	"github.com/servkit/restsync/pkg/store"
	"github.com/servkit/restsync/pkg/translator"
)

// session is one fully wired stack: config, ledger, client, store.
type session struct {
	cfg        *config.Config
	log        *slog.Logger
	ledger     *ledger.Ledger
	client     *httpclient.Client
	svc        *store.Service
	labels     *translator.Translator
	validation *httpclient.ValidationErrors

	closers []func() error
}

// loadConfig resolves configuration from every layer, applies changed
// persistent flags on top and validates the result.
func loadConfig(cmd *cobra.Command, opts *globalOptions) (*config.Config, error) {
	cfg, err := config.LoadAll(config.LoadOptions{
		File:       opts.configFile,
		Dir:        opts.dir,
		Environ:    opts.environ,
		SkipGlobal: opts.skipGlobal,
	})
	if err != nil {
		return nil, err
	}

	pf := cmd.Flags()
	if pf.Changed("base-url") {
		cfg.BaseURL = opts.baseURL
		cfg.Sources["baseUrl"] = config.SourceFlag
	}
	if pf.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
		cfg.Sources["logLevel"] = config.SourceFlag
	}
	if opts.noCache {
		cfg.CacheDuration = 0
		cfg.Sources["cacheDuration"] = config.SourceFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openSession builds the stack for one command invocation. The caller must
// call close.
func openSession(cmd *cobra.Command, opts *globalOptions, clientOpts ...httpclient.Option) (*session, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg}
	s.log = logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
		Output: cmd.ErrOrStderr(),
	})

	storage, err := s.openStorage()
	if err != nil {
		return nil, err
	}
	s.ledger = ledger.New(
		ledger.WithDuration(time.Duration(cfg.CacheDuration)*time.Second),
		ledger.WithStorage(storage),
		ledger.WithLogger(logging.Component(s.log, "ledger")),
	)

	headers, err := parse.Headers(opts.headers.Values())
	if err != nil {
		_ = s.close()
		return nil, err
	}
	base := []httpclient.Option{
		httpclient.WithTimeout(time.Duration(cfg.Timeout) * time.Second),
		httpclient.WithLedger(s.ledger),
		httpclient.WithLogger(logging.Component(s.log, "http")),
	}
	for k, v := range headers {
		base = append(base, httpclient.WithHeader(k, v))
	}
	s.client = httpclient.New(cfg.BaseURL, append(base, clientOpts...)...)
	s.installMiddleware()

	factory, err := store.NewFactory(s.client, cfg.Table(), store.WithFactoryLogger(logging.Component(s.log, "factory")))
	if err != nil {
		_ = s.close()
		return nil, err
	}
	s.svc = store.NewService(factory, store.WithLogger(logging.Component(s.log, "store")))
	s.closers = append(s.closers, func() error {
		s.svc.Close()
		return nil
	})
	for _, rule := range cfg.SyncRules {
		if err := s.svc.AddSyncRule(rule); err != nil {
			_ = s.close()
			return nil, err
		}
	}

	s.labels = translator.New()
	for name, tr := range cfg.Translations {
		s.labels.Set(name, tr)
	}
	return s, nil
}

func (s *session) openStorage() (ledger.Storage, error) {
	switch s.cfg.Ledger.Backend {
	case config.BackendMemory:
		return ledger.NewMemoryStorage(), nil
	case config.BackendSQLite:
		db, err := sqlite.Open(s.cfg.LedgerPath())
		if err != nil {
			return nil, fmt.Errorf("open ledger database: %w", err)
		}
		s.closers = append(s.closers, db.Close)
		return db, nil
	default:
		return ledger.NewFileStorage(s.cfg.LedgerPath()), nil
	}
}

func (s *session) installMiddleware() {
	s.client.RegisterRequestMiddleware(httpclient.RequestID())
	if token := s.cfg.Token; token != "" {
		s.client.RegisterRequestMiddleware(httpclient.BearerToken(func() string { return token }))
	}
	if s.cfg.RateLimit > 0 {
		burst := max(1, int(s.cfg.RateLimit))
		s.client.RegisterRequestMiddleware(httpclient.RateLimit(rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst)))
	}
	s.client.RegisterRequestMiddleware(httpclient.RequestLogger(s.log))
	s.client.RegisterResponseMiddleware(httpclient.ResponseLogger(s.log))

	s.validation = httpclient.NewValidationErrors()
	s.validation.Install(s.client)
}

// controller registers name and returns its controller.
func (s *session) controller(name string, opts ...controller.Option) (*controller.Controller, error) {
	return controller.New(s.svc, name, append([]controller.Option{controller.WithTranslator(s.labels)}, opts...)...)
}

// close releases resources in reverse order of acquisition.
func (s *session) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// writeValidation prints collected field errors, if any.
func (s *session) writeValidation(w io.Writer) {
	for _, field := range s.validation.Fields() {
		for _, msg := range s.validation.Get(field) {
			fmt.Fprintf(w, "  %s: %s\n", field, msg)
		}
	}
}

// parseData decodes a --data flag into an object.
func parseData(data string) (map[string]any, error) {
	if data == "" {
		return nil, errors.New("--data is required")
	}
	var item map[string]any
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, fmt.Errorf("--data must be a JSON object: %w", err)
	}
	return item, nil
}

func errorHint(err error) string {
	var he store.HintError
	if errors.As(err, &he) {
		return he.Hint()
	}
	switch {
	case httpclient.IsTransport(err):
		return "Check that the API is reachable and --base-url is correct."
	case httpclient.IsNotFound(err):
		return "The endpoint or item does not exist on the server."
	}
	return ""
}
