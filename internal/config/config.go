package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/DeafMist/thesis-advisor/backend/internal/models"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Worker holds configuration for the Kafka -> Elasticsearch worker.
type Worker struct {
	Common
	KafkaBrokers     []string
	KafkaTopic       string
	KafkaConsumer    string
	KeywordLimit     int
	KeywordMinLength int
	DedupeCapacity   int
	DedupeTTL        time.Duration
	BatchSize        int
}

// API describes the HTTP layer together with the advisor pipeline settings.
type API struct {
	Common
	BindAddr      string
	DatasetPath   string
	DatasetSource string

	CompletionBaseURL     string
	CompletionAPIKey      string
	CompletionStyle       string
	CompletionModel       string
	CompletionTemperature float64
	CompletionMaxTokens   int
	CompletionTimeout     time.Duration

	ContextCap          int
	ContextFields       []models.Field
	ContextPlaceholder  string
	KeywordFields       []models.Field
	StatsTopN           int
	PromptTemplatesFile string
}

// Importer configures the CSV -> Kafka publisher.
type Importer struct {
	Common
	KafkaBrokers []string
	KafkaTopic   string
	File         string
	Source       string
	BatchSize    int
	Replace      bool
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "theses"),
	}
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Common:           loadCommon(),
		KafkaBrokers:     splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "theses_raw"),
		KafkaConsumer:    getEnv("KAFKA_CONSUMER_GROUP", "theses-worker"),
		KeywordLimit:     getInt("WORKER_KEYWORD_LIMIT", 6),
		KeywordMinLength: getInt("WORKER_KEYWORD_MIN_LEN", 4),
		DedupeCapacity:   getInt("WORKER_DEDUPE_CAPACITY", 50000),
		DedupeTTL:        getDuration("WORKER_DEDUPE_TTL", "24h"),
		BatchSize:        getInt("WORKER_BATCH_SIZE", 10),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	if c.DedupeCapacity <= 0 {
		return nil, fmt.Errorf("WORKER_DEDUPE_CAPACITY must be positive")
	}
	if c.KeywordLimit <= 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_LIMIT must be positive")
	}
	if c.KeywordMinLength < 0 {
		return nil, fmt.Errorf("WORKER_KEYWORD_MIN_LEN cannot be negative")
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
// COMPLETION_API_KEY wins over GROQ_API_KEY when both are set.
func LoadAPI() (*API, error) {
	c := &API{
		Common:        loadCommon(),
		BindAddr:      getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
		DatasetPath:   strings.TrimSpace(os.Getenv("DATASET_PATH")),
		DatasetSource: os.Getenv("DATASET_SOURCE"),

		CompletionBaseURL:     getEnv("COMPLETION_BASE_URL", "https://api.groq.com/openai"),
		CompletionAPIKey:      getEnv("COMPLETION_API_KEY", os.Getenv("GROQ_API_KEY")),
		CompletionStyle:       getEnv("COMPLETION_STYLE", "chat"),
		CompletionModel:       getEnv("COMPLETION_MODEL", "llama3-8b-8192"),
		CompletionTemperature: getFloat("COMPLETION_TEMPERATURE", 0.4),
		CompletionMaxTokens:   getInt("COMPLETION_MAX_TOKENS", 600),
		CompletionTimeout:     getDuration("COMPLETION_TIMEOUT", "60s"),

		ContextCap:          getInt("CONTEXT_CAP", 10),
		ContextPlaceholder:  getEnv("CONTEXT_PLACEHOLDER", "-"),
		StatsTopN:           getInt("STATS_TOP_N", 5),
		PromptTemplatesFile: os.Getenv("PROMPT_TEMPLATES_FILE"),
	}

	var err error
	if c.ContextFields, err = getFields("CONTEXT_FIELDS", "title,year,variables,method"); err != nil {
		return nil, err
	}
	if c.KeywordFields, err = getFields("KEYWORD_FIELDS", "title,keywords"); err != nil {
		return nil, err
	}
	if c.DatasetPath != "" && c.DatasetSource == "" {
		c.DatasetSource = sourceFromPath(c.DatasetPath)
	}

	if strings.TrimSpace(c.CompletionAPIKey) == "" {
		return nil, fmt.Errorf("COMPLETION_API_KEY or GROQ_API_KEY must be set")
	}
	if c.CompletionMaxTokens <= 0 {
		return nil, fmt.Errorf("COMPLETION_MAX_TOKENS must be positive")
	}
	if c.CompletionTemperature < 0 || c.CompletionTemperature > 2 {
		return nil, fmt.Errorf("COMPLETION_TEMPERATURE must be within [0, 2]")
	}
	if c.CompletionTimeout <= 0 {
		return nil, fmt.Errorf("COMPLETION_TIMEOUT must be positive")
	}
	if c.ContextCap <= 0 {
		return nil, fmt.Errorf("CONTEXT_CAP must be positive")
	}
	if c.StatsTopN <= 0 {
		return nil, fmt.Errorf("STATS_TOP_N must be positive")
	}

	return c, nil
}

// LoadImporter builds an Importer config from environment variables.
func LoadImporter() (*Importer, error) {
	c := &Importer{
		Common:       loadCommon(),
		KafkaBrokers: splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "theses_raw"),
		File:         strings.TrimSpace(os.Getenv("IMPORTER_FILE")),
		Source:       os.Getenv("IMPORTER_SOURCE"),
		BatchSize:    getInt("IMPORTER_BATCH_SIZE", 100),
		Replace:      getBool("IMPORTER_REPLACE", false),
	}

	if c.File == "" {
		return nil, fmt.Errorf("IMPORTER_FILE must be set")
	}
	if c.Source == "" {
		c.Source = sourceFromPath(c.File)
	}
	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("IMPORTER_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err == nil {
		return d
	}
	fd, ferr := time.ParseDuration(fallback)
	if ferr != nil {
		panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
	}
	return fd
}

// getFields parses a comma separated list of record field names.
func getFields(key, fallback string) ([]models.Field, error) {
	names := splitAndTrim(getEnv(key, fallback))
	out := make([]models.Field, 0, len(names))
	seen := make(map[models.Field]struct{}, len(names))
	for _, name := range names {
		f, ok := models.ParseField(name)
		if !ok {
			return nil, fmt.Errorf("%s: unknown field %q", key, name)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s must name at least one field", key)
	}
	return out, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// sourceFromPath labels a dataset by its file name without extension.
func sourceFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
