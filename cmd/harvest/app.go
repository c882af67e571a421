package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yanizio/harvest/internal/batch"
	"github.com/yanizio/harvest/internal/config"
	"github.com/yanizio/harvest/internal/connector"
	"github.com/yanizio/harvest/internal/database"
	"github.com/yanizio/harvest/internal/logger"
	"github.com/yanizio/harvest/internal/notify"
	"github.com/yanizio/harvest/internal/ruleset"
	"github.com/yanizio/harvest/internal/state"
	"github.com/yanizio/harvest/internal/vault"
	"github.com/yanizio/harvest/internal/xmldoc"
)

// app holds everything `run` and `serve` share.
type app struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	secrets config.SecretGetter
	ns      xmldoc.NamespaceTable
	rules   *ruleset.Store
	runs    state.Store
	notify  *notify.Service
	source  *connector.Client
	closers []func() error
}

// bootstrap wires the process in dependency order: secrets, config, file
// logger, rule set, run state, notifications, and the catalogue client.
func bootstrap(ctx context.Context) (*app, error) {
	a := &app{ns: xmldoc.DefaultNamespaces()}

	//
	// ── 1.  Vault (only when VAULT_ADDR is set) ─────────────────────────
	//
	if vault.Enabled() {
		vc, err := vault.New(ctx, logger.Console())
		if err != nil {
			return nil, fmt.Errorf("vault: %w", err)
		}
		a.secrets = vc
	}

	//
	// ── 2.  Config and logger ───────────────────────────────────────────
	//
	cfg, err := config.Load(ctx, a.secrets)
	if err != nil {
		return nil, err
	}
	a.cfg = cfg

	log, err := logger.New(cfg.Paths.Root, logger.IsTTY())
	if err != nil {
		return nil, fmt.Errorf("start logger: %w", err)
	}
	a.log = log
	a.closers = append(a.closers, func() error { _ = log.Sync(); return nil })

	//
	// ── 3.  Rule set ────────────────────────────────────────────────────
	//
	set, err := ruleset.Open(cfg.Validator.RulesFile, a.ns)
	if err != nil {
		return nil, err
	}
	a.rules = ruleset.NewStore(set)
	log.Infow("rule set loaded", "version", set.Version, "rules", len(set.Rules), "source", set.Source)

	//
	// ── 4.  Run state: MySQL when a DSN is set, memory otherwise ───────
	//
	if cfg.Database.DSN != "" {
		db, err := database.Open(ctx, cfg.Database.ResolvedDSN())
		if err != nil {
			return nil, fmt.Errorf("connect run-state DB: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		st := state.NewMySQLStore(db)
		if err := st.Migrate(ctx); err != nil {
			return nil, err
		}
		a.runs = st
		log.Infow("run state online", "store", "mysql")
	} else {
		a.runs = state.NewMemoryStore()
		log.Warnw("no database.dsn; run history is kept in memory only")
	}

	//
	// ── 5.  Notifications and catalogue ─────────────────────────────────
	//
	ns := notify.SettingsFrom(cfg.Notifications)
	backend, err := notify.NewBackend(ns, log)
	if err != nil {
		return nil, err
	}
	a.notify = notify.NewService(ns, backend, log)
	a.source = connector.New(connector.ConfigFrom(cfg.Source), nil, log)
	return a, nil
}

func (a *app) job() *batch.Job {
	return batch.New(a.source, a.rules, a.notify, a.runs, batch.Options{
		Lookback:          a.cfg.Source.Lookback,
		Workers:           a.cfg.Validator.Workers,
		NotifyEachInvalid: a.cfg.Notifications.NotifyEachInvalid,
	}, a.log)
}

// Close releases resources in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
