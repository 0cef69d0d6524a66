package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/thesis-advisor/backend/internal/models"
)

// fakeES serves the handful of endpoints the client touches.
type fakeES struct {
	mu       sync.Mutex
	docs     []models.ThesisRecord
	bodies   []map[string]any
	indexed  map[string]models.ThesisRecord
	created  bool
	deleteQ  map[string]any
	pingFail int
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/":
		if f.pingFail > 0 {
			f.pingFail--
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead && r.URL.Path == "/theses":
		if !f.created {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && r.URL.Path == "/theses":
		f.created = true
		fmt.Fprint(w, `{"acknowledged":true}`)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/theses/_doc/"):
		var rec models.ThesisRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.indexed[strings.TrimPrefix(r.URL.Path, "/theses/_doc/")] = rec
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"result":"created"}`)
	case r.URL.Path == "/theses/_search":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.bodies = append(f.bodies, body)
		f.writePage(w, body)
	case r.URL.Path == "/theses/_delete_by_query":
		_ = json.NewDecoder(r.Body).Decode(&f.deleteQ)
		fmt.Fprint(w, `{"deleted":4}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{}`)
	}
}

func (f *fakeES) writePage(w http.ResponseWriter, body map[string]any) {
	size := int(body["size"].(float64))
	start := 0
	if after, ok := body["search_after"].([]any); ok {
		last := int64(after[0].(float64))
		for start < len(f.docs) && f.docs[start].Seq <= last {
			start++
		}
	}
	end := start + size
	if end > len(f.docs) {
		end = len(f.docs)
	}

	type hit struct {
		Source models.ThesisRecord `json:"_source"`
		Sort   []any               `json:"sort"`
	}
	hits := make([]hit, 0, end-start)
	for _, d := range f.docs[start:end] {
		hits = append(hits, hit{Source: d, Sort: []any{d.Seq, d.ID}})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"hits": map[string]any{"hits": hits}})
}

func newTestClient(t *testing.T, fake *fakeES) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "theses", nil)
	require.NoError(t, err)
	return c
}

func TestFetchAllPagesInOrder(t *testing.T) {
	fake := &fakeES{docs: []models.ThesisRecord{
		{ID: "a", Seq: 0, Title: "Satu"},
		{ID: "b", Seq: 1, Title: "Dua"},
		{ID: "c", Seq: 2, Title: "Tiga"},
	}}
	c := newTestClient(t, fake)
	c.pageSize = 2

	ds, err := c.FetchAll(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	recs := ds.Records()
	require.Equal(t, "Satu", recs[0].Title)
	require.Equal(t, "Tiga", recs[2].Title)
	require.Empty(t, ds.Missing(models.AllFields...))

	require.Len(t, fake.bodies, 2)
	require.NotContains(t, fake.bodies[0], "search_after")
	require.Equal(t, []any{float64(1), "b"}, fake.bodies[1]["search_after"])
}

func TestFetchAllFiltersSource(t *testing.T) {
	fake := &fakeES{}
	c := newTestClient(t, fake)

	ds, err := c.FetchAll(context.Background(), "skripsi_2023")
	require.NoError(t, err)
	require.Equal(t, 0, ds.Len())

	raw, err := json.Marshal(fake.bodies[0]["query"])
	require.NoError(t, err)
	require.Contains(t, string(raw), `"source":"skripsi_2023"`)
}

func TestEnsureIndexCreatesOnce(t *testing.T) {
	fake := &fakeES{}
	c := newTestClient(t, fake)

	require.NoError(t, c.EnsureIndex(context.Background()))
	require.True(t, fake.created)
	require.NoError(t, c.EnsureIndex(context.Background()))
}

func TestIndexRecordUsesID(t *testing.T) {
	fake := &fakeES{indexed: map[string]models.ThesisRecord{}}
	c := newTestClient(t, fake)

	err := c.IndexRecord(context.Background(), models.ThesisRecord{ID: "abc123", Title: "Analisis", DerivedKeywords: "analisis"})
	require.NoError(t, err)
	require.Equal(t, "Analisis", fake.indexed["abc123"].Title)
	require.Equal(t, "analisis", fake.indexed["abc123"].DerivedKeywords)
	require.Empty(t, fake.indexed["abc123"].Keywords)
}

func TestDeleteSource(t *testing.T) {
	fake := &fakeES{}
	c := newTestClient(t, fake)

	n, err := c.DeleteSource(context.Background(), "lama")
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
	require.Equal(t, map[string]any{"term": map[string]any{"source": "lama"}}, fake.deleteQ["query"])

	_, err = c.DeleteSource(context.Background(), " ")
	require.Error(t, err)
}

func TestWaitReadyRetries(t *testing.T) {
	fake := &fakeES{pingFail: 2}
	c := newTestClient(t, fake)

	require.NoError(t, c.WaitReady(context.Background(), 5, time.Millisecond))
	require.Zero(t, fake.pingFail)
}

func TestWaitReadyGivesUp(t *testing.T) {
	fake := &fakeES{pingFail: 10}
	c := newTestClient(t, fake)

	err := c.WaitReady(context.Background(), 2, time.Millisecond)
	require.Error(t, err)
}
