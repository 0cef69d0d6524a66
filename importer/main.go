package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/thesis-advisor/backend/internal/config"
	"github.com/DeafMist/thesis-advisor/backend/internal/dataset"
	"github.com/DeafMist/thesis-advisor/backend/internal/elasticsearch"
	"github.com/DeafMist/thesis-advisor/backend/internal/logger"
	"github.com/DeafMist/thesis-advisor/backend/internal/models"
	"github.com/DeafMist/thesis-advisor/backend/internal/processing"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type sourceDeleter interface {
	DeleteSource(ctx context.Context, source string) (int64, error)
}

func main() {
	log := logger.New("importer")
	cfg, err := config.LoadImporter()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	ds, err := dataset.LoadCSVFile(cfg.File, dataset.CSVOptions{Source: cfg.Source})
	if err != nil {
		log.Error("load dataset", slog.String("file", cfg.File), slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("dataset loaded",
		slog.String("file", cfg.File),
		slog.String("source", cfg.Source),
		slog.Int("records", ds.Len()),
	)

	if cfg.Replace {
		esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			log.Error("init elasticsearch", slog.Any("err", err))
			os.Exit(1)
		}
		if err := esClient.WaitReady(ctx, 10, 2*time.Second); err != nil {
			log.Error("failed to connect to elasticsearch", slog.Any("err", err))
			os.Exit(1)
		}
		if err := replaceSource(ctx, log, esClient, cfg.Source); err != nil {
			log.Error("replace source", slog.Any("err", err))
			os.Exit(1)
		}
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	importID := uuid.NewString()
	sent, err := publish(ctx, writer, ds.Records(), cfg.Source, importID, cfg.BatchSize)
	if err != nil {
		log.Error("publish records",
			slog.String("import_id", importID),
			slog.Int("sent", sent),
			slog.Any("err", err),
		)
		os.Exit(1)
	}

	log.Info("import finished",
		slog.String("import_id", importID),
		slog.String("topic", cfg.KafkaTopic),
		slog.Int("sent", sent),
	)
}

func replaceSource(ctx context.Context, log *slog.Logger, es sourceDeleter, source string) error {
	subCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	deleted, err := es.DeleteSource(subCtx, source)
	if err != nil {
		return err
	}
	log.Info("removed previous import", slog.String("source", source), slog.Int64("deleted", deleted))
	return nil
}

// publish writes records in batches keyed by their deterministic ID and
// returns how many were accepted by the broker.
func publish(ctx context.Context, w messageWriter, records []models.ThesisRecord, source, importID string, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = len(records)
	}

	sent := 0
	batch := make([]kafka.Message, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.WriteMessages(ctx, batch...); err != nil {
			return fmt.Errorf("write batch at record %d: %w", sent, err)
		}
		sent += len(batch)
		batch = batch[:0]
		return nil
	}

	for _, rec := range records {
		msg, err := buildMessage(rec, source, importID)
		if err != nil {
			return sent, err
		}
		batch = append(batch, msg)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return sent, err
			}
		}
	}
	if err := flush(); err != nil {
		return sent, err
	}
	return sent, nil
}

func buildMessage(rec models.ThesisRecord, source, importID string) (kafka.Message, error) {
	if rec.Source == "" {
		rec.Source = source
	}
	if rec.ID == "" {
		rec.ID = processing.BuildRecordID(rec)
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal record %d: %w", rec.Seq, err)
	}

	return kafka.Message{
		Key:   []byte(rec.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "import_id", Value: []byte(importID)},
			{Key: "source", Value: []byte(rec.Source)},
		},
	}, nil
}
