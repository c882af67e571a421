// internal/batch/batch.go
//
// One harvest pass.
//
// Context
// -------
// Job.Run drives a single pass end to end:
//
//  1. since = start of the last successful run, or now - lookback when
//     there is no history.
//  2. Probe the catalogue.  A dead catalogue is reported once and the run
//     is recorded as failed.
//  3. Search for records changed after since and fetch their XML.
//  4. Validate every record against the rule set that is current when the
//     pass starts, on a bounded errgroup.
//  5. Notify: optionally one message per invalid record, then the digest
//     and the harvest summary.
//  6. Record the run so the next pass starts where this one began.
//
// Notification failures never fail a run.  They are logged and returned
// joined on Report.NotifyErr.
//
// Notes
// -----
//   • The rule set is read once per run; a hot reload mid-run applies to
//     the next run.
//   • Oxford commas, two spaces after periods.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/harvest/internal/connector"
	"github.com/yanizio/harvest/internal/metrics"
	"github.com/yanizio/harvest/internal/notify"
	"github.com/yanizio/harvest/internal/ruleset"
	"github.com/yanizio/harvest/internal/state"
)

// ErrCatalogueDown is returned when the connection test fails.
var ErrCatalogueDown = errors.New("catalogue connection test failed")

// Catalogue is the part of *connector.Client a run needs.
type Catalogue interface {
	CanConnect(ctx context.Context) bool
	Query(since time.Time) connector.Query
	SearchRecords(ctx context.Context, q connector.Query) ([]connector.Record, *connector.SearchResult, error)
}

// Options tune a Job.
type Options struct {
	Lookback          time.Duration
	Workers           int
	NotifyEachInvalid bool
}

// RecordOutcome is the verdict for one harvested record.
type RecordOutcome struct {
	UUID    string   `json:"uuid"`
	Contact string   `json:"contact"`
	Valid   bool     `json:"valid"`
	Errors  []string `json:"errors"`
}

// Report summarises a run.
type Report struct {
	JobID          string          `json:"job_id"`
	Since          time.Time       `json:"since"`
	StartedAt      time.Time       `json:"started_at"`
	Duration       time.Duration   `json:"duration"`
	RulesetVersion string          `json:"ruleset_version"`
	Total          int             `json:"total"`
	Valid          int             `json:"valid"`
	Invalid        int             `json:"invalid"`
	Records        []RecordOutcome `json:"records"`
	NotifyErr      error           `json:"-"`
}

// Job is safe to Run repeatedly, but not concurrently with itself.
type Job struct {
	source Catalogue
	rules  *ruleset.Store
	notify *notify.Service
	runs   state.Store
	opts   Options
	log    *zap.SugaredLogger
	now    func() time.Time
}

// New wires a Job.  log may be nil.
func New(src Catalogue, rs *ruleset.Store, n *notify.Service, runs state.Store, opts Options, log *zap.SugaredLogger) *Job {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 7 * 24 * time.Hour
	}
	return &Job{source: src, rules: rs, notify: n, runs: runs, opts: opts, log: log, now: time.Now}
}

// Run performs one pass.  The error is non-nil when the pass failed or its
// run could not be recorded; the Report is returned either way.
func (j *Job) Run(ctx context.Context) (*Report, error) {
	set := j.rules.Current()
	rep := &Report{
		JobID:          uuid.NewString(),
		StartedAt:      j.now().UTC(),
		RulesetVersion: set.Version,
		Records:        []RecordOutcome{},
	}
	rep.Since = j.since(ctx, rep.StartedAt)
	log := j.log.With("job", rep.JobID)
	log.Infow("harvest started", "since", rep.Since, "ruleset", set.Version)

	var notes notifyErrs

	if !j.source.CanConnect(ctx) {
		notes.add(j.notify.NotifyConnectionError(ctx, ErrCatalogueDown))
		return j.fail(ctx, rep, &notes, ErrCatalogueDown)
	}

	recs, sr, err := j.source.SearchRecords(ctx, j.source.Query(rep.Since))
	if err != nil {
		notes.add(j.notify.NotifyConnectionError(ctx, err))
		return j.fail(ctx, rep, &notes, err)
	}
	if missing := hitsWithoutUUID(sr); len(missing) > 0 {
		notes.add(j.notify.NotifyValidationError(ctx, missing))
	}

	if err := j.validate(ctx, set, recs, rep); err != nil {
		return j.fail(ctx, rep, &notes, err)
	}

	var invalid []notify.InvalidRecord
	for _, o := range rep.Records {
		if o.Valid {
			continue
		}
		invalid = append(invalid, notify.InvalidRecord{UUID: o.UUID, Contact: o.Contact, Errors: o.Errors})
		if j.opts.NotifyEachInvalid {
			notes.add(j.notify.NotifyInvalidRecord(ctx, o.UUID, o.Contact, o.Errors))
		}
	}
	rep.Duration = j.now().Sub(rep.StartedAt)

	notes.add(j.notify.NotifyReport(ctx, notify.Summary{
		JobID:    rep.JobID,
		Since:    rep.Since,
		Total:    rep.Total,
		Valid:    rep.Valid,
		Invalid:  invalid,
		Duration: rep.Duration,
	}))
	notes.add(j.notify.NotifyHarvest(ctx, rep.Total, state.StatusSuccess))
	rep.NotifyErr = notes.err()

	metrics.HarvestRunsTotal.WithLabelValues(state.StatusSuccess).Inc()
	metrics.LastSuccessTimestamp.Set(float64(rep.StartedAt.Unix()))
	log.Infow("harvest finished", "total", rep.Total, "valid", rep.Valid, "invalid", rep.Invalid, "dur", rep.Duration)

	return rep, j.record(ctx, rep, state.StatusSuccess, nil)
}

// since picks the search window start.
func (j *Job) since(ctx context.Context, now time.Time) time.Time {
	last, err := j.runs.LastSuccess(ctx)
	switch {
	case err == nil:
		return last.UTC()
	case !errors.Is(err, state.ErrNoRuns):
		j.log.Warnw("run history unavailable, using lookback", "err", err)
	}
	return now.Add(-j.opts.Lookback)
}

func (j *Job) fail(ctx context.Context, rep *Report, notes *notifyErrs, cause error) (*Report, error) {
	rep.Duration = j.now().Sub(rep.StartedAt)
	notes.add(j.notify.NotifyBatchJobStatus(ctx, rep.JobID, state.StatusFailed))
	rep.NotifyErr = notes.err()

	metrics.HarvestRunsTotal.WithLabelValues(state.StatusFailed).Inc()
	j.log.Errorw("harvest failed", "job", rep.JobID, "err", cause)

	if err := j.record(ctx, rep, state.StatusFailed, cause); err != nil {
		return rep, errors.Join(cause, err)
	}
	return rep, cause
}

func (j *Job) record(ctx context.Context, rep *Report, status string, cause error) error {
	run := state.Run{
		ID:         rep.JobID,
		StartedAt:  rep.StartedAt,
		FinishedAt: rep.StartedAt.Add(rep.Duration),
		Since:      rep.Since,
		Status:     status,
		Total:      rep.Total,
		Valid:      rep.Valid,
		Invalid:    rep.Invalid,
	}
	if cause != nil {
		run.Error = cause.Error()
	}
	// The run already happened; a cancelled caller must not lose it.
	if err := j.runs.Record(context.WithoutCancel(ctx), run); err != nil {
		j.log.Errorw("record run", "job", rep.JobID, "err", err)
		return fmt.Errorf("record run %s: %w", rep.JobID, err)
	}
	return nil
}

// validate fills rep.Records in search order.
func (j *Job) validate(ctx context.Context, set *ruleset.Set, recs []connector.Record, rep *Report) error {
	out := make([]RecordOutcome, len(recs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.opts.Workers)
	for i, rec := range recs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = evaluate(set, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("validate records: %w", err)
	}

	rep.Records = out
	rep.Total = len(out)
	for _, o := range out {
		if o.Valid {
			rep.Valid++
		} else {
			rep.Invalid++
		}
	}
	return nil
}

// hitsWithoutUUID describes kept hits that could not be fetched.
func hitsWithoutUUID(sr *connector.SearchResult) []string {
	if sr == nil {
		return nil
	}
	var out []string
	for _, h := range sr.Hits {
		if h.UUID == "" {
			out = append(out, fmt.Sprintf("search hit %s has no uuid", h.ID))
		}
	}
	return out
}

// notifyErrs collects delivery failures.
type notifyErrs struct{ errs []error }

func (n *notifyErrs) add(err error) {
	if err != nil {
		n.errs = append(n.errs, err)
	}
}

func (n *notifyErrs) err() error { return errors.Join(n.errs...) }
