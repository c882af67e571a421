package batch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/harvest/internal/connector"
	"github.com/yanizio/harvest/internal/metrics"
	"github.com/yanizio/harvest/internal/notify"
	"github.com/yanizio/harvest/internal/ruleset"
	"github.com/yanizio/harvest/internal/state"
	"github.com/yanizio/harvest/internal/xmldoc"
)

var clock = time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC)

// fakeCatalogue serves canned records.
type fakeCatalogue struct {
	up      bool
	recs    []connector.Record
	hits    []connector.Hit
	err     error
	gotFrom time.Time
}

func (f *fakeCatalogue) CanConnect(context.Context) bool { return f.up }

func (f *fakeCatalogue) Query(since time.Time) connector.Query {
	f.gotFrom = since
	return connector.BuildQuery(since, 10)
}

func (f *fakeCatalogue) SearchRecords(context.Context, connector.Query) ([]connector.Record, *connector.SearchResult, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.recs, &connector.SearchResult{Hits: f.hits, HitCount: len(f.hits), FilteredCount: len(f.hits)}, nil
}

// recorder captures notifications.
type recorder struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (r *recorder) Send(_ context.Context, msg notify.Message, _ notify.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recorder) subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Subject
	}
	return out
}

func fixture(t *testing.T) string {
	t.Helper()
	raw, err := os.ReadFile("testdata/valid.xml")
	require.NoError(t, err)
	return string(raw)
}

// withoutContactPerson drops the first cit:individual block, which belongs
// to the metadata contact.
func withoutContactPerson(t *testing.T, raw string) string {
	t.Helper()
	start := strings.Index(raw, "<cit:individual>")
	end := strings.Index(raw, "</cit:individual>")
	require.True(t, start > 0 && end > start)
	return raw[:start] + raw[end+len("</cit:individual>"):]
}

type harness struct {
	cat  *fakeCatalogue
	rec  *recorder
	runs *state.MemoryStore
	job  *Job
}

func newHarness(t *testing.T, cat *fakeCatalogue, opts Options) *harness {
	t.Helper()
	set, err := ruleset.Default(xmldoc.DefaultNamespaces())
	require.NoError(t, err)

	h := &harness{cat: cat, rec: &recorder{}, runs: state.NewMemoryStore()}
	svc := notify.NewService(notify.Settings{Channel: "file"}, h.rec, nil)
	h.job = New(cat, ruleset.NewStore(set), svc, h.runs, opts, nil)
	h.job.now = func() time.Time { return clock }
	return h
}

func TestRunValidatesAndReports(t *testing.T) {
	valid := fixture(t)
	invalid := strings.Replace(withoutContactPerson(t, valid), "Soil moisture trial, Wagga Wagga", "", 1)

	h := newHarness(t, &fakeCatalogue{up: true, recs: []connector.Record{
		{UUID: "u-1", XML: valid},
		{UUID: "u-2", XML: invalid},
	}}, Options{Lookback: 48 * time.Hour, Workers: 2, NotifyEachInvalid: true})

	rep, err := h.job.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, rep.NotifyErr)

	assert.Equal(t, clock.Add(-48*time.Hour), h.cat.gotFrom)
	assert.Equal(t, clock.Add(-48*time.Hour), rep.Since)
	assert.Equal(t, ruleset.DefaultVersion, rep.RulesetVersion)
	assert.Equal(t, 2, rep.Total)
	assert.Equal(t, 1, rep.Valid)
	assert.Equal(t, 1, rep.Invalid)
	assert.Equal(t, []RecordOutcome{
		{UUID: "u-1", Contact: "Jane Curator", Valid: true, Errors: []string{}},
		{UUID: "u-2", Contact: "Grains Research and Development Corporation", Errors: []string{"Record is missing a title."}},
	}, rep.Records)

	assert.Equal(t, []string{
		"Invalid Metashare Record: u-2",
		"GRDC Harvest Report: " + rep.JobID,
		"GRDC Harvest Update",
	}, h.rec.subjects())

	runs, err := h.runs.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, state.Run{
		ID:         rep.JobID,
		StartedAt:  clock,
		FinishedAt: clock,
		Since:      clock.Add(-48 * time.Hour),
		Status:     state.StatusSuccess,
		Total:      2,
		Valid:      1,
		Invalid:    1,
	}, runs[0])
}

func TestRunStartsFromLastSuccess(t *testing.T) {
	h := newHarness(t, &fakeCatalogue{up: true}, Options{})
	last := clock.Add(-3 * time.Hour)
	require.NoError(t, h.runs.Record(context.Background(), state.Run{ID: "old", StartedAt: last, Status: state.StatusSuccess}))
	require.NoError(t, h.runs.Record(context.Background(), state.Run{ID: "bad", StartedAt: clock.Add(-time.Hour), Status: state.StatusFailed}))

	rep, err := h.job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, last, h.cat.gotFrom)
	assert.Equal(t, 0, rep.Total)
	assert.Empty(t, rep.Records)
}

func TestRunCatalogueDown(t *testing.T) {
	h := newHarness(t, &fakeCatalogue{up: false}, Options{})

	rep, err := h.job.Run(context.Background())
	assert.ErrorIs(t, err, ErrCatalogueDown)
	require.NotNil(t, rep)
	assert.Equal(t, []string{"Connection Error", "Batch Job Status: " + rep.JobID}, h.rec.subjects())

	runs, _ := h.runs.Recent(context.Background(), 1)
	require.Len(t, runs, 1)
	assert.Equal(t, state.StatusFailed, runs[0].Status)
	assert.Equal(t, ErrCatalogueDown.Error(), runs[0].Error)

	_, err = h.runs.LastSuccess(context.Background())
	assert.ErrorIs(t, err, state.ErrNoRuns)
}

func TestRunSearchFailure(t *testing.T) {
	boom := errors.New("catalogue unavailable: error getting record u-9")
	h := newHarness(t, &fakeCatalogue{up: true, err: boom}, Options{})

	_, err := h.job.Run(context.Background())
	assert.ErrorIs(t, err, boom)

	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	require.Len(t, h.rec.msgs, 2)
	assert.Equal(t, "A connection error occurred: "+boom.Error(), h.rec.msgs[0].Content)
}

func TestRunUnparseableRecord(t *testing.T) {
	h := newHarness(t, &fakeCatalogue{up: true, recs: []connector.Record{{UUID: "u-x", XML: "<broken"}}}, Options{})

	rep, err := h.job.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Records, 1)
	o := rep.Records[0]
	assert.False(t, o.Valid)
	assert.Equal(t, Unassigned, o.Contact)
	require.Len(t, o.Errors, 1)
	assert.True(t, strings.HasPrefix(o.Errors[0], "XML Parse Error: "))
}

func TestRunReportsHitsWithoutUUID(t *testing.T) {
	h := newHarness(t, &fakeCatalogue{up: true, hits: []connector.Hit{{ID: "7"}, {ID: "8", UUID: "u-8"}}}, Options{})

	_, err := h.job.Run(context.Background())
	require.NoError(t, err)

	h.rec.mu.Lock()
	defer h.rec.mu.Unlock()
	assert.Equal(t, "Validation Error", h.rec.msgs[0].Subject)
	assert.Equal(t, "Validation failed with errors: search hit 7 has no uuid", h.rec.msgs[0].Content)
}

func TestRunNotificationFailureKeepsRun(t *testing.T) {
	h := newHarness(t, &fakeCatalogue{up: true}, Options{})
	h.rec.err = errors.New("disk full")

	rep, err := h.job.Run(context.Background())
	require.NoError(t, err)
	assert.ErrorContains(t, rep.NotifyErr, "disk full")

	last, err := h.runs.LastSuccess(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clock, last)
}

func TestEvaluateCountsFailuresByField(t *testing.T) {
	set, err := ruleset.Default(xmldoc.DefaultNamespaces())
	require.NoError(t, err)

	title := metrics.RuleFailuresTotal.WithLabelValues("title")
	parse := metrics.RuleFailuresTotal.WithLabelValues(parseFailure)
	beforeTitle, beforeParse := testutil.ToFloat64(title), testutil.ToFloat64(parse)

	untitled := strings.Replace(fixture(t), "Soil moisture trial, Wagga Wagga", "", 1)
	out := evaluate(set, connector.Record{UUID: "u-1", XML: untitled})
	require.False(t, out.Valid)
	assert.Equal(t, beforeTitle+1, testutil.ToFloat64(title))

	evaluate(set, connector.Record{UUID: "u-2", XML: "<broken"})
	assert.Equal(t, beforeParse+1, testutil.ToFloat64(parse))
	assert.Equal(t, beforeTitle+1, testutil.ToFloat64(title))
}

func TestContact(t *testing.T) {
	parse := func(s string) *xmldoc.Document {
		doc, err := xmldoc.Parse([]byte(s))
		require.NoError(t, err)
		return doc
	}

	assert.Equal(t, "Jane Curator", Contact(parse(fixture(t))))
	assert.Equal(t, "Grains Research and Development Corporation", Contact(parse(withoutContactPerson(t, fixture(t)))))
	assert.Equal(t, Unassigned, Contact(parse(`<mdb:MD_Metadata xmlns:mdb="http://standards.iso.org/iso/19115/-3/mdb/2.0"/>`)))
}

func TestRunAgainstCatalogue(t *testing.T) {
	record := fixture(t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /srv/api/site", func(w http.ResponseWriter, _ *http.Request) {})
	mux.HandleFunc("POST /srv/api/search/records/_search", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_id":"1","_source":{"uuid":"e1331a40","resourceTitleObject":{"default":"GRDC trial"}}}]}}`))
	})
	mux.HandleFunc("GET /srv/api/records/{uuid}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "e1331a40", r.PathValue("uuid"))
		_, _ = w.Write([]byte(record))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cl := connector.New(connector.Config{
		URL:               srv.URL,
		SearchEndpoint:    "/srv/api/search/records/_search",
		GetRecordEndpoint: "/srv/api/records",
		TestEndpoint:      "/srv/api/site",
		MaxRecords:        10,
		FilterKeywords:    []string{"GRDC"},
		RetryDelay:        time.Millisecond,
	}, srv.Client(), nil)

	set, err := ruleset.Default(xmldoc.DefaultNamespaces())
	require.NoError(t, err)
	rec := &recorder{}
	job := New(cl, ruleset.NewStore(set), notify.NewService(notify.Settings{Channel: "log"}, rec, nil), state.NewMemoryStore(), Options{}, nil)

	rep, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Valid)
	assert.Equal(t, "e1331a40", rep.Records[0].UUID)
}
