package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/thesis-advisor/backend/internal/config"
	"github.com/DeafMist/thesis-advisor/backend/internal/dedupe"
	"github.com/DeafMist/thesis-advisor/backend/internal/logger"
	"github.com/DeafMist/thesis-advisor/backend/internal/models"
)

type stubIndexer struct {
	docs []models.ThesisRecord
	err  error
}

func (s *stubIndexer) IndexRecord(_ context.Context, rec models.ThesisRecord) error {
	if s.err != nil {
		return s.err
	}
	s.docs = append(s.docs, rec)
	return nil
}

type stubWriter struct {
	msgs []kafka.Message
	err  error
}

func (s *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msgs...)
	return nil
}

func testConfig() *config.Worker {
	return &config.Worker{
		Common: config.Common{
			ElasticsearchAddr:  "http://test",
			ElasticsearchIndex: "theses",
		},
		KeywordLimit:     5,
		KeywordMinLength: 4,
	}
}

func TestProcessMessageIndexesRecord(t *testing.T) {
	cache := dedupe.NewCache(100, time.Hour)
	idx := &stubIndexer{}

	data := []byte(`{"seq":7,"source":"skripsi_2023","title":"  Pengaruh  Digitalisasi terhadap Kinerja UMKM ",
		"year":"2021.0","program":"Manajemen","variables":"Digitalisasi, Kinerja","method":"Kuantitatif"}`)
	msg := kafka.Message{Value: data}

	require.NoError(t, processMessage(context.Background(), logger.Discard(), idx, cache, testConfig(), msg))
	require.Len(t, idx.docs, 1)

	rec := idx.docs[0]
	require.Equal(t, "Pengaruh Digitalisasi terhadap Kinerja UMKM", rec.Title)
	require.Equal(t, "skripsi_2023", rec.Source)
	require.EqualValues(t, 7, rec.Seq)
	require.NotNil(t, rec.Year)
	require.Equal(t, 2021, *rec.Year)
	require.NotEmpty(t, rec.ID)
	require.Empty(t, rec.Keywords)
	require.Contains(t, rec.DerivedKeywords, "digitalisasi")

	require.NoError(t, processMessage(context.Background(), logger.Discard(), idx, cache, testConfig(), msg))
	require.Len(t, idx.docs, 1)
}

func TestProcessMessageReimportIndexesAgain(t *testing.T) {
	cache := dedupe.NewCache(100, time.Hour)
	idx := &stubIndexer{}
	message := func(importID, method string) kafka.Message {
		payload, err := json.Marshal(map[string]any{
			"source":  "skripsi_2023",
			"title":   "Kinerja UMKM Digital",
			"year":    2021,
			"program": "Manajemen",
			"method":  method,
		})
		require.NoError(t, err)
		return kafka.Message{
			Value:   payload,
			Headers: []kafka.Header{{Key: "import_id", Value: []byte(importID)}},
		}
	}

	require.NoError(t, processMessage(context.Background(), logger.Discard(), idx, cache, testConfig(), message("import-1", "Kuantitatif")))
	require.NoError(t, processMessage(context.Background(), logger.Discard(), idx, cache, testConfig(), message("import-1", "Kuantitatif")))
	require.Len(t, idx.docs, 1)

	require.NoError(t, processMessage(context.Background(), logger.Discard(), idx, cache, testConfig(), message("import-2", "SEM-PLS")))
	require.Len(t, idx.docs, 2)
	require.Equal(t, idx.docs[0].ID, idx.docs[1].ID)
	require.Equal(t, "SEM-PLS", idx.docs[1].Method)

	require.NoError(t, processMessage(context.Background(), logger.Discard(), idx, cache, testConfig(), message("import-3", "SEM-PLS")))
	require.Len(t, idx.docs, 3)
}

func TestProcessMessageKeepsProvidedFields(t *testing.T) {
	idx := &stubIndexer{}
	payload, err := json.Marshal(map[string]any{
		"id":       "fixed-id",
		"title":    "Sistem Informasi Akademik",
		"year":     2019,
		"keywords": "sistem informasi",
	})
	require.NoError(t, err)

	msg := kafka.Message{
		Value:   payload,
		Headers: []kafka.Header{{Key: "source", Value: []byte("arsip")}},
	}
	require.NoError(t, processMessage(context.Background(), logger.Discard(), idx, dedupe.NewCache(10, time.Hour), testConfig(), msg))

	rec := idx.docs[0]
	require.Equal(t, "fixed-id", rec.ID)
	require.Equal(t, "arsip", rec.Source)
	require.Equal(t, 2019, *rec.Year)
	require.Equal(t, "sistem informasi", rec.Keywords)
}

func TestProcessMessageRejectsBadPayload(t *testing.T) {
	idx := &stubIndexer{}
	cache := dedupe.NewCache(10, time.Hour)

	err := processMessage(context.Background(), logger.Discard(), idx, cache, testConfig(), kafka.Message{Value: []byte("{")})
	require.Error(t, err)

	err = processMessage(context.Background(), logger.Discard(), idx, cache, testConfig(), kafka.Message{Value: []byte(`{"title":"   "}`)})
	require.Error(t, err)
	require.Empty(t, idx.docs)
}

func TestProcessMessageIndexFailureNotCached(t *testing.T) {
	idx := &stubIndexer{err: errors.New("es down")}
	cache := dedupe.NewCache(10, time.Hour)
	msg := kafka.Message{Value: []byte(`{"title":"Analisis Sentimen"}`)}

	require.Error(t, processMessage(context.Background(), logger.Discard(), idx, cache, testConfig(), msg))
	require.Zero(t, cache.Len())
}

func TestParseYear(t *testing.T) {
	require.Nil(t, parseYear(nil))
	require.Nil(t, parseYear(json.RawMessage("null")))
	require.Nil(t, parseYear(json.RawMessage(`"unknown"`)))
	require.Equal(t, 2020, *parseYear(json.RawMessage("2020")))
	require.Equal(t, 2022, *parseYear(json.RawMessage(`"2022"`)))
}

func TestSendToDLQAddsErrorHeaders(t *testing.T) {
	w := &stubWriter{}
	msg := kafka.Message{
		Partition: 2,
		Offset:    41,
		Value:     []byte("{"),
		Headers:   []kafka.Header{{Key: "import_id", Value: []byte("abc")}},
	}

	require.True(t, sendToDLQ(context.Background(), logger.Discard(), w, msg, errors.New("decode payload")))
	require.Len(t, w.msgs, 1)

	got := w.msgs[0]
	require.Equal(t, []byte("{"), got.Value)
	require.Equal(t, "abc", headerValue(got.Headers, "import_id"))
	require.Equal(t, "2", headerValue(got.Headers, "original_partition"))
	require.Equal(t, "41", headerValue(got.Headers, "original_offset"))
	require.Equal(t, "decode payload", headerValue(got.Headers, "error"))
	require.Len(t, msg.Headers, 1)
}

func TestSendToDLQStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &stubWriter{err: errors.New("broker unavailable")}
	require.False(t, sendToDLQ(ctx, logger.Discard(), w, kafka.Message{}, errors.New("boom")))
}
