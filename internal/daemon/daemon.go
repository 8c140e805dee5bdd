// Package daemon wires the Veridi components from configuration and runs
// the HTTP server.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veridichain/veridi/internal/api"
	"github.com/veridichain/veridi/internal/app/audit"
	"github.com/veridichain/veridi/internal/app/certificate"
	"github.com/veridichain/veridi/internal/app/credits"
	"github.com/veridichain/veridi/internal/app/executor"
	"github.com/veridichain/veridi/internal/app/journal"
	"github.com/veridichain/veridi/internal/app/milestone"
	"github.com/veridichain/veridi/internal/app/notify"
	"github.com/veridichain/veridi/internal/app/report"
	"github.com/veridichain/veridi/internal/domain"
	"github.com/veridichain/veridi/internal/infra/ledger"
	"github.com/veridichain/veridi/internal/infra/observability"
	"github.com/veridichain/veridi/internal/infra/payment"
	"github.com/veridichain/veridi/internal/infra/sqlite"
)

// NewLogger builds the process logger: production JSON output, or the
// development console encoder when level is "debug".
func NewLogger(level string) (*zap.Logger, error) {
	if strings.EqualFold(level, "debug") {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		cfg.Level = lvl
	}
	return cfg.Build()
}

// Daemon holds the wired components.
type Daemon struct {
	Config    Config
	Directory *domain.StaticDirectory
	DB        *sqlite.DB
	Ledger    *ledger.Memory
	Pool      *executor.Pool
	Tracer    *observability.Tracer
	Service   *credits.Service
	Server    *api.Server

	log *zap.Logger
}

// New validates cfg and wires every component. The reference ledger is
// bootstrapped with the provisioned accounts and every producer certified.
func New(cfg Config, log *zap.Logger) (*Daemon, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	dir, err := domain.NewDirectory(cfg.Accounts)
	if err != nil {
		return nil, err
	}
	price, _ := cfg.Price()
	ledgerTimeout, _ := parseDuration(cfg.Ledger.Timeout)
	payTimeout, _ := parseDuration(cfg.Payment.Timeout)
	latency, _ := parseDuration(cfg.Payment.Latency)
	acquireWait, _ := parseDuration(cfg.Pool.AcquireWait)
	apiTimeout, _ := parseDuration(cfg.API.Timeout)

	db, err := sqlite.Open(cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	mem := ledger.NewMemory()
	for _, a := range dir.Accounts() {
		mem.Register(a)
	}
	ctx := context.Background()
	for _, p := range dir.ByRole(domain.RoleProducer) {
		if _, err := mem.SetCertified(ctx, p.Address, true); err != nil {
			db.Close()
			return nil, fmt.Errorf("bootstrap producer %s: %w", p.Address, err)
		}
	}
	// The reference ledger starts empty; quota instances continue from the
	// numbers already persisted with milestones and certificates.
	for _, f := range dir.ByRole(domain.RoleFactory) {
		seq, err := db.LastQuotaSeq(ctx, f.Address)
		if err == nil {
			err = mem.ResumeQuotaSeq(f.Address, seq)
		}
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("resume factory %s: %w", f.Address, err)
		}
	}
	led := ledger.NewAdapter(mem, ledgerTimeout, log)

	gw := payment.NewMockGateway(payment.GatewayConfig{
		Name:        cfg.Payment.Gateway,
		SuccessRate: cfg.Payment.SuccessRate,
		Latency:     latency,
	}, nil)

	j := journal.New(db, log)
	bus := notify.New(db, cfg.Notifications.Capacity, log)
	certs := certificate.New(certificate.Config{
		IssuedBy:         cfg.Certificates.IssuedBy,
		RejectDuplicates: cfg.Certificates.RejectDuplicates,
	}, led, db, j, bus, log)
	pool := executor.New(executor.Config{MaxConcurrent: cfg.Pool.MaxConcurrent, AcquireWait: acquireWait}, log)
	tracer := observability.NewTracer(observability.DefaultTracerConfig())

	svc := credits.New(credits.Config{
		PricePerCredit: price,
		CurrencySymbol: cfg.Payment.CurrencySymbol,
		MaxPerIssue:    cfg.Issuance.MaxPerIssue,
		RecentLimit:    cfg.Notifications.RecentLimit,
	}, credits.Deps{
		Directory:    dir,
		Ledger:       led,
		Payments:     payment.NewAdapter(gw, payTimeout, log),
		PaymentStore: db,
		Journal:      j,
		Bus:          bus,
		Milestones:   milestone.New(db, bus, log),
		Certificates: certs,
		Audit:        audit.New(audit.DefaultConfig(), j, led, dir, log),
		Reports:      report.New(led, j, certs, dir),
		Pool:         pool,
		Tracer:       tracer,
	}, log)

	srv := api.NewServer(svc, log)
	srv.SetTimeout(apiTimeout)
	if cfg.API.Metrics {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:    cfg,
		Directory: dir,
		DB:        db,
		Ledger:    mem,
		Pool:      pool,
		Tracer:    tracer,
		Service:   svc,
		Server:    srv,
		log:       log.Named("daemon"),
	}, nil
}

// Serve runs the HTTP server until ctx is done, then shuts down gracefully.
func (d *Daemon) Serve(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              d.Config.Addr(),
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.log.Info("listening",
			zap.String("addr", httpSrv.Addr),
			zap.Int("accounts", len(d.Directory.Accounts())),
			zap.String("storage", d.DB.Path()))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	d.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// Close releases storage.
func (d *Daemon) Close() error {
	return d.DB.Close()
}
