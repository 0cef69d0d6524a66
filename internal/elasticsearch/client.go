package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/thesis-advisor/backend/internal/dataset"
	"github.com/DeafMist/thesis-advisor/backend/internal/models"
)

const defaultPageSize = 500

// Client wraps go-elasticsearch with the thesis record store operations.
type Client struct {
	es       *elasticsearch.Client
	index    string
	log      *slog.Logger
	pageSize int
}

// New instantiates the Elasticsearch client.
func New(addr, index string, logger *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{es: es, index: index, log: logger, pageSize: defaultPageSize}, nil
}

// Index returns the index the client reads and writes.
func (c *Client) Index() string { return c.index }

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// WaitReady pings until Elasticsearch answers, doubling delay between
// attempts up to 30s. It gives up after attempts tries or when ctx ends.
func (c *Client) WaitReady(ctx context.Context, attempts int, delay time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		lastErr = c.Ping(pingCtx)
		cancel()
		if lastErr == nil {
			c.log.Info("connected to elasticsearch", slog.Int("attempt", i+1))
			return nil
		}
		if i == attempts-1 {
			break
		}

		c.log.Warn("elasticsearch ping failed, retrying",
			slog.Any("err", lastErr),
			slog.Int("attempt", i+1),
			slog.Int("max_retries", attempts),
			slog.Duration("retry_in", delay),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
	}
	return fmt.Errorf("elasticsearch not ready after %d attempts: %w", attempts, lastErr)
}

var indexMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":               map[string]any{"type": "keyword"},
			"seq":              map[string]any{"type": "long"},
			"source":           map[string]any{"type": "keyword"},
			"title":            map[string]any{"type": "text"},
			"year":             map[string]any{"type": "integer"},
			"program":          map[string]any{"type": "keyword"},
			"variables":        map[string]any{"type": "text"},
			"method":           map[string]any{"type": "keyword"},
			"object":           map[string]any{"type": "text"},
			"location":         map[string]any{"type": "text"},
			"keywords":         map[string]any{"type": "text"},
			"derived_keywords": map[string]any{"type": "text"},
		},
	},
}

// EnsureIndex creates the thesis index with its mapping when it does not exist.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index failed: %s", res.Status())
	}

	payload, err := json.Marshal(indexMapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		// Another worker may have created it between the two calls.
		if strings.Contains(string(data), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index failed: %s", strings.TrimSpace(string(data)))
	}

	c.log.Info("created index", slog.String("index", c.index))
	return nil
}

// IndexRecord writes a thesis record using its ID as the document ID.
func (c *Client) IndexRecord(ctx context.Context, rec models.ThesisRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: rec.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index record: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index record failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.ThesisRecord `json:"_source"`
			Sort   []any               `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

// FetchAll reads every stored record, optionally restricted to one source,
// in original row order (seq, then id). The index mapping defines every
// column, so the returned dataset reports all fields as present.
func (c *Client) FetchAll(ctx context.Context, source string) (*dataset.Dataset, error) {
	query := map[string]any{"match_all": map[string]any{}}
	if source != "" {
		query = map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{
					{"term": map[string]any{"source": source}},
				},
			},
		}
	}

	var (
		records     []models.ThesisRecord
		searchAfter []any
	)
	for {
		body := map[string]any{
			"size":  c.pageSize,
			"query": query,
			"sort": []map[string]any{
				{"seq": map[string]any{"order": "asc"}},
				{"id": map[string]any{"order": "asc"}},
			},
		}
		if searchAfter != nil {
			body["search_after"] = searchAfter
		}

		page, err := c.search(ctx, body)
		if err != nil {
			return nil, err
		}
		for _, hit := range page.Hits.Hits {
			records = append(records, hit.Source)
		}
		if len(page.Hits.Hits) < c.pageSize {
			break
		}
		searchAfter = page.Hits.Hits[len(page.Hits.Hits)-1].Sort
	}

	c.log.Debug("fetched records", slog.Int("count", len(records)), slog.String("source", source))
	return dataset.New(records, models.AllFields), nil
}

func (c *Client) search(ctx context.Context, body map[string]any) (*searchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &parsed, nil
}

// DeleteSource removes every record imported under source.
func (c *Client) DeleteSource(ctx context.Context, source string) (int64, error) {
	if strings.TrimSpace(source) == "" {
		return 0, fmt.Errorf("delete source: empty source")
	}

	payload, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"term": map[string]any{"source": source},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("marshal delete body: %w", err)
	}

	res, err := c.es.DeleteByQuery(
		[]string{c.index},
		bytes.NewReader(payload),
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithWaitForCompletion(true),
		c.es.DeleteByQuery.WithConflicts("proceed"),
		c.es.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return 0, fmt.Errorf("delete by query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return 0, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode delete response: %w", err)
	}
	return parsed.Deleted, nil
}

// Health checks cluster health to ensure connectivity.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}
