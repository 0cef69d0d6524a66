package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DeafMist/thesis-advisor/backend/internal/advisor"
	"github.com/DeafMist/thesis-advisor/backend/internal/completion"
	"github.com/DeafMist/thesis-advisor/backend/internal/config"
	"github.com/DeafMist/thesis-advisor/backend/internal/dataset"
	"github.com/DeafMist/thesis-advisor/backend/internal/elasticsearch"
	"github.com/DeafMist/thesis-advisor/backend/internal/logger"
	"github.com/DeafMist/thesis-advisor/backend/internal/models"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	templates, err := advisor.LoadTemplatesFile(cfg.PromptTemplatesFile)
	if err != nil {
		log.Error("load prompt templates", slog.Any("err", err))
		os.Exit(1)
	}

	style, err := completion.ParseStyle(cfg.CompletionStyle)
	if err != nil {
		log.Error("completion style", slog.Any("err", err))
		os.Exit(1)
	}
	client, err := completion.New(completion.Config{
		BaseURL: cfg.CompletionBaseURL,
		APIKey:  cfg.CompletionAPIKey,
		Style:   style,
		Timeout: cfg.CompletionTimeout,
	}, log)
	if err != nil {
		log.Error("init completion client", slog.Any("err", err))
		os.Exit(1)
	}

	srv := &server{
		log:       log,
		cfg:       cfg,
		completer: client,
		recommend: newPipeline(cfg, advisor.ModeRecommend, templates.Recommend),
		evaluate:  newPipeline(cfg, advisor.ModeEvaluate, templates.Evaluate),
	}

	if cfg.DatasetPath != "" {
		srv.ds, err = dataset.LoadCSVFile(cfg.DatasetPath, dataset.CSVOptions{
			Source:   cfg.DatasetSource,
			Required: []models.Field{models.FieldTitle},
		})
	} else {
		var esClient *elasticsearch.Client
		esClient, err = elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err == nil {
			srv.health = esClient
			srv.ds, err = loadFromElasticsearch(ctx, esClient, cfg.DatasetSource)
		}
	}
	if err != nil {
		log.Error("load dataset", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("dataset loaded",
		slog.Int("records", srv.ds.Len()),
		slog.String("path", cfg.DatasetPath),
		slog.String("source", cfg.DatasetSource),
	)
	for _, p := range []*advisor.Pipeline{srv.recommend, srv.evaluate} {
		if missing := srv.ds.Missing(p.RequiredFields()...); len(missing) > 0 {
			log.Warn("dataset lacks columns, requests will be rejected",
				slog.String("mode", string(p.Mode)),
				slog.Any("missing", missing),
			)
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.CompletionTimeout + 15*time.Second,
	}

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

func newPipeline(cfg *config.API, mode advisor.Mode, tmpl *advisor.Template) *advisor.Pipeline {
	return &advisor.Pipeline{
		Mode:          mode,
		Cap:           cfg.ContextCap,
		Template:      tmpl,
		KeywordFields: cfg.KeywordFields,
		Renderer: advisor.Renderer{
			Fields:      cfg.ContextFields,
			Placeholder: cfg.ContextPlaceholder,
		},
		TopN: cfg.StatsTopN,
		Params: completion.Params{
			Model:       cfg.CompletionModel,
			Temperature: cfg.CompletionTemperature,
			MaxTokens:   cfg.CompletionMaxTokens,
		},
	}
}

func loadFromElasticsearch(ctx context.Context, es *elasticsearch.Client, source string) (*dataset.Dataset, error) {
	if err := es.WaitReady(ctx, 10, 2*time.Second); err != nil {
		return nil, err
	}
	fetchCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	ds, err := es.FetchAll(fetchCtx, source)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	return ds, nil
}
