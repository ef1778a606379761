package config

import (
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
    "github.com/local/pdfdeck/internal/layout"
    "github.com/local/pdfdeck/internal/render"
    "gopkg.in/yaml.v3"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// HTTPConfig defines the listener and upload limits.
type HTTPConfig struct {
    Port           string
    MaxUploadBytes int64
    ReadTimeout    time.Duration
    WriteTimeout   time.Duration
}

// ExtractionConfig selects the fallback engine.
type ExtractionConfig struct {
    FallbackEngine string // "fitz"|"mutool"|"ledongthuc"
    MutoolBinary   string
    TempDir        string
    ProbeThreshold int
}

// RenderConfig defines the default output and the PDF converter.
type RenderConfig struct {
    DefaultFormat  string         `yaml:"default_format"`
    SofficeBinary  string         `yaml:"soffice_binary"`
    ConvertWorkers int            `yaml:"convert_workers"`
    ConvertTimeout time.Duration  `yaml:"convert_timeout"`
    Slides         render.Options `yaml:"slides"`
}

// WorkerConfig defines worker behavior and limits.
type WorkerConfig struct {
    Enabled            bool
    Concurrency        int
    JobTimeout         time.Duration
    JobMaxAttempts     int
    RetryBaseDelay     time.Duration
    RetryJitter        time.Duration
    RetryBackoffFactor float64
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
    RedisURL     string
    Stream       string
    Group        string
    PollInterval time.Duration
    ClaimIdle    time.Duration
}

// StorageConfig defines where inputs and results live.
type StorageConfig struct {
    UploadDir      string
    ResultDir      string
    S3Bucket       string
    S3Region       string
    S3Endpoint     string
    S3AccessKey    string
    S3SecretKey    string
    S3ResultPrefix string
    EncryptionKey  string
    TempMaxAge     time.Duration
}

// CacheConfig controls the Redis extraction cache.
type CacheConfig struct {
    Enabled bool
    TTL     time.Duration
}

// Config is the top-level configuration.
type Config struct {
    Logging    LoggingConfig
    Axiom      AxiomConfig
    HTTP       HTTPConfig
    Extraction ExtractionConfig
    Layout     layout.Options
    Render     RenderConfig
    Worker     WorkerConfig
    Queue      QueueConfig
    Storage    StorageConfig
    Cache      CacheConfig
}

// fileOverlay is the subset of settings a YAML file may override.
type fileOverlay struct {
    Layout *layout.Options `yaml:"layout"`
    Render *RenderConfig   `yaml:"render"`
}

// Load reads .env (when present), the environment, then the optional YAML
// file named by CONFIG_FILE.
func Load() (Config, error) {
    _ = godotenv.Load()
    cfg := FromEnv()
    if path := os.Getenv("CONFIG_FILE"); path != "" {
        if err := cfg.ApplyFile(path); err != nil { return cfg, err }
    }
    return cfg, nil
}

// ApplyFile overlays layout and render settings from a YAML file.
func (c *Config) ApplyFile(path string) error {
    raw, err := os.ReadFile(path)
    if err != nil { return fmt.Errorf("read config file: %w", err) }
    ov := fileOverlay{Layout: &c.Layout, Render: &c.Render}
    if err := yaml.Unmarshal(raw, &ov); err != nil { return fmt.Errorf("parse config file %s: %w", path, err) }
    return nil
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/pdfdeck.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_pdfdeck",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    cfg.HTTP = HTTPConfig{
        Port:           getEnv("PORT", "8080"),
        MaxUploadBytes: int64(parseInt(getEnv("HTTP_MAX_UPLOAD_BYTES", "10485760"), 10<<20)),
        ReadTimeout:    parseDuration(getEnv("HTTP_READ_TIMEOUT", "30s"), 30*time.Second),
        WriteTimeout:   parseDuration(getEnv("HTTP_WRITE_TIMEOUT", "5m"), 5*time.Minute),
    }

    cfg.Extraction = ExtractionConfig{
        FallbackEngine: strings.ToLower(getEnv("EXTRACT_FALLBACK_ENGINE", "fitz")),
        MutoolBinary:   getEnv("MUTOOL_BIN", "mutool"),
        TempDir:        getEnv("EXTRACT_TEMP_DIR", ""),
        ProbeThreshold: parseInt(getEnv("TEXT_PROBE_THRESHOLD", "300"), 300),
    }

    d := layout.DefaultOptions()
    cfg.Layout = layout.Options{
        PageHeight:     parseFloat(getEnv("LAYOUT_PAGE_HEIGHT", ""), d.PageHeight),
        TopMargin:      parseFloat(getEnv("LAYOUT_TOP_MARGIN", ""), d.TopMargin),
        LeftMargin:     parseFloat(getEnv("LAYOUT_LEFT_MARGIN", ""), d.LeftMargin),
        ContentWidth:   parseFloat(getEnv("LAYOUT_CONTENT_WIDTH", ""), d.ContentWidth),
        TableRowHeight: parseFloat(getEnv("LAYOUT_TABLE_ROW_HEIGHT", ""), d.TableRowHeight),
    }

    slides := render.DefaultOptions()
    slides.RepeatHeader = parseBool(getEnv("RENDER_REPEAT_TABLE_HEADER", "false"))
    cfg.Render = RenderConfig{
        DefaultFormat:  strings.ToLower(getEnv("RENDER_DEFAULT_FORMAT", "pptx")),
        SofficeBinary:  getEnv("SOFFICE_BIN", "soffice"),
        ConvertWorkers: parseInt(getEnv("SOFFICE_MAX_WORKERS", "2"), 2),
        ConvertTimeout: parseDuration(getEnv("SOFFICE_TIMEOUT", "180s"), 180*time.Second),
        Slides:         slides,
    }

    // Worker defaults
    cfg.Worker = WorkerConfig{
        Enabled:            parseBool(getEnv("WORKER_ENABLED", "true")),
        Concurrency:        parseInt(getEnv("WORKER_CONCURRENCY", "4"), 4),
        JobTimeout:         parseDuration(getEnv("JOB_TIMEOUT", "5m"), 5*time.Minute),
        JobMaxAttempts:     parseInt(getEnv("JOB_MAX_ATTEMPTS", "3"), 3),
        RetryBaseDelay:     parseDuration(getEnv("RETRY_BASE_DELAY", "2s"), 2*time.Second),
        RetryJitter:        parseDuration(getEnv("RETRY_JITTER", "200ms"), 200*time.Millisecond),
        RetryBackoffFactor: parseFloat(getEnv("RETRY_BACKOFF_FACTOR", "2.0"), 2.0),
    }

    // Queue defaults; an empty REDIS_URL disables async jobs, status and cache
    cfg.Queue = QueueConfig{
        RedisURL:     os.Getenv("REDIS_URL"),
        Stream:       getEnv("QUEUE_STREAM", "jobs:pdfdeck:convert"),
        Group:        getEnv("QUEUE_GROUP", "workers:convert"),
        PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "2s"), 2*time.Second),
        ClaimIdle:    parseDuration(getEnv("QUEUE_CLAIM_IDLE", "15m"), 15*time.Minute),
    }

    cfg.Storage = StorageConfig{
        UploadDir:      getEnv("UPLOAD_DIR", "data/uploads"),
        ResultDir:      getEnv("RESULT_DIR", "data/results"),
        S3Bucket:       getEnv("S3_BUCKET", ""),
        S3Region:       getEnv("AWS_REGION", "us-east-1"),
        S3Endpoint:     getEnv("S3_ENDPOINT", ""),
        S3AccessKey:    getEnv("S3_ACCESS_KEY_ID", ""),
        S3SecretKey:    getEnv("S3_SECRET_ACCESS_KEY", ""),
        S3ResultPrefix: getEnv("S3_RESULT_PREFIX", "results/"),
        EncryptionKey:  getEnv("RESULT_ENCRYPTION_KEY", ""),
        TempMaxAge:     parseDuration(getEnv("TEMP_MAX_AGE", "1h"), time.Hour),
    }

    cfg.Cache = CacheConfig{
        Enabled: parseBool(getEnv("CACHE_ENABLED", "false")),
        TTL:     parseDuration(getEnv("CACHE_TTL", "24h"), 24*time.Hour),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
