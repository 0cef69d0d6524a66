package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/thesis-advisor/backend/internal/config"
	"github.com/DeafMist/thesis-advisor/backend/internal/dedupe"
	"github.com/DeafMist/thesis-advisor/backend/internal/elasticsearch"
	"github.com/DeafMist/thesis-advisor/backend/internal/logger"
	"github.com/DeafMist/thesis-advisor/backend/internal/models"
	"github.com/DeafMist/thesis-advisor/backend/internal/processing"
)

// rawThesis is one dataset row as published on the topic. Year arrives
// either as a number or as a string such as "2021" or "2021.0".
type rawThesis struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	Source    string          `json:"source"`
	Title     string          `json:"title"`
	Year      json.RawMessage `json:"year"`
	Program   string          `json:"program"`
	Variables string          `json:"variables"`
	Method    string          `json:"method"`
	Object    string          `json:"object"`
	Location  string          `json:"location"`
	Keywords  string          `json:"keywords"`
}

type thesisIndexer interface {
	IndexRecord(ctx context.Context, rec models.ThesisRecord) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := esClient.WaitReady(ctx, 10, 2*time.Second); err != nil {
		log.Error("failed to connect to elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}
	if err := esClient.EnsureIndex(ctx); err != nil {
		log.Error("ensure index", slog.Any("err", err))
		os.Exit(1)
	}

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
	defer reader.Close()

	dlqTopic := cfg.KafkaTopic + "_dlq"
	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       dlqTopic,
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
		slog.String("index", esClient.Index()),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := processMessage(ctx, log, esClient, cache, cfg, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			// Commit only once the DLQ holds the message; otherwise it is
			// reprocessed on restart.
			if !sendToDLQ(ctx, log, dlqWriter, msg, err) {
				if ctx.Err() != nil {
					return
				}
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// sendToDLQ copies msg to the dead-letter topic with error context,
// retrying with exponential backoff. It reports whether the write succeeded.
func sendToDLQ(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message, cause error) bool {
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
		kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
		kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
	)
	dlqMsg := kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}

	for attempt := 0; attempt < 5; attempt++ {
		dlqErr := w.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			log.Info("context canceled during DLQ retry")
			return false
		}
	}
	return false
}

func processMessage(ctx context.Context, log *slog.Logger, idx thesisIndexer, cache *dedupe.Cache, cfg *config.Worker, msg kafka.Message) error {
	var payload rawThesis
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	rec := models.ThesisRecord{
		ID:        strings.TrimSpace(payload.ID),
		Seq:       payload.Seq,
		Source:    payload.Source,
		Title:     payload.Title,
		Year:      parseYear(payload.Year),
		Program:   payload.Program,
		Variables: payload.Variables,
		Method:    payload.Method,
		Object:    payload.Object,
		Location:  payload.Location,
		Keywords:  payload.Keywords,
	}
	if rec.Source == "" {
		rec.Source = headerValue(msg.Headers, "source")
	}

	rec = processing.NormalizeRecord(rec, cfg.KeywordLimit, cfg.KeywordMinLength)
	if rec.Title == "" {
		return errors.New("record has no title")
	}
	if rec.ID == "" {
		rec.ID = processing.BuildRecordID(rec)
	}

	importID := headerValue(msg.Headers, "import_id")
	key := dedupeKey(rec, importID)
	if cache.IsSeen(key) {
		log.Debug("duplicate record", slog.String("id", rec.ID), slog.String("import_id", importID))
		return nil
	}

	if err := idx.IndexRecord(ctx, rec); err != nil {
		return err
	}

	cache.MarkSeen(key)
	log.Info("indexed record",
		slog.String("id", rec.ID),
		slog.String("title", rec.Title),
		slog.String("import_id", importID),
	)
	return nil
}

// dedupeKey identifies one delivery of one record version. Redelivery
// within an import is skipped; a new import or a changed row is indexed
// again even though the record ID is stable.
func dedupeKey(rec models.ThesisRecord, importID string) string {
	return importID + ":" + processing.ContentHash(rec)
}

func parseYear(raw json.RawMessage) *int {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil
	}
	return models.ParseYear(strings.Trim(s, `"`))
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
