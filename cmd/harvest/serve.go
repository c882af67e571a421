package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/harvest/internal/batch"
	"github.com/yanizio/harvest/internal/ruleset"
	"github.com/yanizio/harvest/internal/server"
)

const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Harvest on a schedule and expose the ops API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		g, ctx := errgroup.WithContext(ctx)

		//
		// ── Ops API ─────────────────────────────────────────────────────
		//
		api := server.NewAPI(a.rules, a.runs, a.cfg.HTTP.CacheSize, a.log)
		srv := server.New(a.cfg.HTTP.ListenAddr, api.Routes())
		g.Go(func() error {
			a.log.Infow("ops API listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
			defer cancel()
			return srv.Shutdown(sctx)
		})

		//
		// ── Rule-set hot reload ─────────────────────────────────────────
		//
		if a.cfg.Validator.Watch && a.cfg.Validator.RulesFile != "" {
			g.Go(func() error {
				err := a.rules.Watch(ctx, a.cfg.Validator.RulesFile, a.ns, ruleset.DefaultDebounce, a.log,
					func(s *ruleset.Set, err error) {
						if err != nil {
							_ = a.notify.NotifyValidationError(ctx, []string{err.Error()})
						}
					})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		}

		//
		// ── Scheduler ───────────────────────────────────────────────────
		//
		if every := a.cfg.Schedule.Interval; every > 0 {
			job := a.job()
			g.Go(func() error { return schedule(ctx, every, job, a) })
		} else {
			a.log.Infow("schedule.interval is 0; scheduler disabled")
		}

		return g.Wait()
	},
}

func init() { rootCmd.AddCommand(serveCmd) }

// schedule runs job immediately and then every interval until ctx ends.  A
// failed pass is logged; the next tick tries again.
func schedule(ctx context.Context, every time.Duration, job *batch.Job, a *app) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		if _, err := job.Run(ctx); err != nil {
			a.log.Warnw("harvest pass failed", "err", err, "next", time.Now().Add(every))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
