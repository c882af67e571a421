package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Query is an Elasticsearch request body.
type Query map[string]any

// sinceLayout matches the catalogue's ISO timestamps with a literal Z.
const sinceLayout = "2006-01-02T15:04:05.999999Z07:00"

// BuildQuery matches every record created or changed after since, capped at
// size hits.  A zero since drops the date filter.
func BuildQuery(since time.Time, size int) Query {
	filter := []any{}
	if !since.IsZero() {
		ts := since.UTC().Format(sinceLayout)
		filter = append(filter, map[string]any{
			"bool": map[string]any{
				"should": []any{
					map[string]any{"range": map[string]any{"changeDate": map[string]any{"gt": ts}}},
					map[string]any{"range": map[string]any{"createDate": map[string]any{"gt": ts}}},
				},
				"minimum_should_match": 1,
			},
		})
	}
	return Query{
		"query": map[string]any{
			"bool": map[string]any{
				"must":   []any{map[string]any{"match_all": map[string]any{}}},
				"filter": filter,
			},
		},
		"size": size,
	}
}

// Query builds the query for since using the configured page size.
func (c *Client) Query(since time.Time) Query { return BuildQuery(since, c.cfg.MaxRecords) }

// Hit is one search hit.  Raw keeps every top-level member for keyword
// matching.
type Hit struct {
	ID   string
	UUID string
	Raw  map[string]json.RawMessage
}

// SearchResult holds the hits that passed the keyword filter.
type SearchResult struct {
	Hits          []Hit
	HitCount      int // hits returned by the catalogue
	FilteredCount int // hits kept
}

// UUIDs lists the kept hits' uuids in catalogue order, skipping hits without
// one.
func (r *SearchResult) UUIDs() []string {
	out := make([]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		if h.UUID != "" {
			out = append(out, h.UUID)
		}
	}
	return out
}

type searchResponse struct {
	Hits struct {
		Hits []map[string]json.RawMessage `json:"hits"`
	} `json:"hits"`
}

// Search posts q and applies the keyword filter.
func (c *Client) Search(ctx context.Context, q Query) (*SearchResult, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	url := c.url(c.cfg.SearchEndpoint)
	res, err := c.do(ctx, endpointSearch, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: error searching %s: %v", ErrUnavailable, url, err)
	}

	var sr searchResponse
	if err := json.Unmarshal(res.body, &sr); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", ErrUnavailable, err)
	}

	out := &SearchResult{HitCount: len(sr.Hits.Hits)}
	for _, raw := range sr.Hits.Hits {
		if !containsKeyword(raw, c.cfg.FilterKeywords) {
			continue
		}
		out.Hits = append(out.Hits, newHit(raw))
	}
	out.FilteredCount = len(out.Hits)

	c.log.Infow("catalogue search", "hits", out.HitCount, "kept", out.FilteredCount)
	return out, nil
}

func newHit(raw map[string]json.RawMessage) Hit {
	h := Hit{Raw: raw}
	_ = json.Unmarshal(raw["_id"], &h.ID)
	var src struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal(raw["_source"], &src); err == nil {
		h.UUID = src.UUID
	}
	return h
}

// containsKeyword reports whether any top-level value's JSON text contains
// any keyword.  Matching is case-sensitive.  No keywords keeps every hit.
func containsKeyword(hit map[string]json.RawMessage, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, v := range hit {
		s := string(v)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(s, kw) {
				return true
			}
		}
	}
	return false
}

// Record is one fetched metadata record.
type Record struct {
	UUID string
	XML  string
}

// SearchRecords runs q and fetches every kept hit's XML.  Records keep
// search order.  Any fetch failure fails the whole call.
func (c *Client) SearchRecords(ctx context.Context, q Query) ([]Record, *SearchResult, error) {
	sr, err := c.Search(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	if skipped := sr.FilteredCount - len(sr.UUIDs()); skipped > 0 {
		c.log.Warnw("search hits without uuid skipped", "count", skipped)
	}

	uuids := sr.UUIDs()
	out := make([]Record, len(uuids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)
	for i, id := range uuids {
		g.Go(func() error {
			xml, err := c.GetRecord(gctx, id)
			if err != nil {
				return err
			}
			out[i] = Record{UUID: id, XML: xml}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, sr, err
	}
	return out, sr, nil
}
