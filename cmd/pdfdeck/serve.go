package main

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "os/signal"
    "syscall"
    "time"

    redis "github.com/redis/go-redis/v9"
    "github.com/rs/zerolog/log"
    "github.com/spf13/cobra"

    cfgpkg "github.com/local/pdfdeck/internal/config"
    "github.com/local/pdfdeck/internal/dispatcher"
    logpkg "github.com/local/pdfdeck/internal/logger"
    "github.com/local/pdfdeck/internal/metrics"
    "github.com/local/pdfdeck/internal/orchestrator"
    "github.com/local/pdfdeck/internal/pipeline"
    "github.com/local/pdfdeck/internal/queue"
    "github.com/local/pdfdeck/internal/statuscheck"
    "github.com/local/pdfdeck/internal/storage"
    "github.com/local/pdfdeck/internal/store"
)

func newServeCmd() *cobra.Command {
    return &cobra.Command{
        Use:   "serve",
        Short: "Run the HTTP service and, with Redis configured, the conversion workers",
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg, err := loadConfig()
            if err != nil { return err }
            if err := initLogging(cfg); err != nil { return err }
            defer logpkg.Close()
            ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
            defer stop()
            return serve(ctx, cfg)
        },
    }
}

func serve(ctx context.Context, cfg cfgpkg.Config) error {
    metrics.Init()

    // Redis backs async jobs, status records and the extraction cache.
    var rdb *redis.Client
    if cfg.Queue.RedisURL != "" {
        c, err := store.Connect(ctx, cfg.Queue.RedisURL)
        if err != nil { return fmt.Errorf("failed to connect to redis: %w", err) }
        rdb = c
        defer rdb.Close()
    } else {
        log.Warn().Msg("REDIS_URL not set; async jobs, status and cache disabled")
    }

    var s3c *storage.S3Client
    if cfg.Storage.S3Bucket != "" {
        c, err := storage.NewS3Client(ctx, storage.S3Options{
            Bucket: cfg.Storage.S3Bucket, Region: cfg.Storage.S3Region, Endpoint: cfg.Storage.S3Endpoint,
            AccessKey: cfg.Storage.S3AccessKey, SecretKey: cfg.Storage.S3SecretKey,
        })
        if err != nil { return err }
        s3c = c
    }

    var extra []pipeline.Option
    if rdb != nil && cfg.Cache.Enabled {
        extra = append(extra, pipeline.WithCache(store.NewExtractionCache(rdb, cfg.Cache.TTL)))
    }
    comp := buildComponents(cfg, extra...)

    fetcher := &storage.Fetcher{
        S3:        s3c,
        HTTP:      &http.Client{Timeout: time.Minute},
        MaxBytes:  cfg.HTTP.MaxUploadBytes,
        Password:  cfg.Storage.EncryptionKey,
        // uploads are read by workers, local results by /download
        LocalDirs: []string{cfg.Storage.UploadDir, cfg.Storage.ResultDir},
    }
    var sink storage.ResultSink = storage.LocalSink{Dir: cfg.Storage.ResultDir}
    if s3c != nil {
        sink = storage.S3Sink{Client: s3c, Prefix: cfg.Storage.S3ResultPrefix, Password: cfg.Storage.EncryptionKey}
    }

    health := statuscheck.Options{LibreOffice: comp.soffice, MuPDF: comp.engine}
    deps := orchestrator.Dependencies{
        Converter:      comp.converter,
        Fetcher:        fetcher,
        UploadDir:      cfg.Storage.UploadDir,
        MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
        DefaultFormat:  cfg.Render.DefaultFormat,
    }
    if s3c != nil { health.S3 = s3c }

    if rdb != nil {
        rq, err := queue.NewRedisQueue(rdb, queue.Options{
            Stream: cfg.Queue.Stream, Group: cfg.Queue.Group,
            PollInterval: cfg.Queue.PollInterval, ClaimIdle: cfg.Queue.ClaimIdle,
        })
        if err != nil { return err }
        defer rq.Close()
        status := store.NewRedisStatus(rdb)
        health.Redis = rq
        deps.Queue, deps.Status = rq, status

        go reportQueueDepth(ctx, rq, cfg.Queue.PollInterval)

        if cfg.Worker.Enabled {
            disp := dispatcher.New(dispatcher.Config{
                Concurrency:        cfg.Worker.Concurrency,
                JobTimeout:         cfg.Worker.JobTimeout,
                MaxAttempts:        cfg.Worker.JobMaxAttempts,
                RetryBaseDelay:     cfg.Worker.RetryBaseDelay,
                RetryBackoffFactor: cfg.Worker.RetryBackoffFactor,
                RetryJitter:        cfg.Worker.RetryJitter,
            }, dispatcher.Deps{Queue: rq, Status: status, Fetcher: fetcher, Converter: comp.converter, Sink: sink})
            disp.Start()
            defer func() {
                sctx, cancel := context.WithTimeout(context.Background(), cfg.Worker.JobTimeout)
                defer cancel()
                _ = disp.Stop(sctx)
            }()
        }
    }
    deps.Health = statuscheck.New(health)

    go orchestrator.RunCleanup(ctx, cfg.Extraction.TempDir, cfg.Storage.TempMaxAge, cfg.Storage.TempMaxAge/4)

    mux := http.NewServeMux()
    orchestrator.New(deps).RegisterRoutes(mux)
    srv := &http.Server{
        Addr:         ":" + cfg.HTTP.Port,
        Handler:      mux,
        ReadTimeout:  cfg.HTTP.ReadTimeout,
        WriteTimeout: cfg.HTTP.WriteTimeout,
    }

    errCh := make(chan error, 1)
    go func() {
        log.Info().Msgf("HTTP server listening on :%s", cfg.HTTP.Port)
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            errCh <- err
        }
    }()

    select {
    case err := <-errCh:
        return fmt.Errorf("http server error: %w", err)
    case <-ctx.Done():
    }
    // Graceful shutdown
    sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    _ = srv.Shutdown(sctx)
    log.Info().Msg("shutdown complete")
    return nil
}

func reportQueueDepth(ctx context.Context, rq *queue.RedisQueue, every time.Duration) {
    if every <= 0 { every = 2 * time.Second }
    ticker := time.NewTicker(every)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            d, err := rq.Depths(ctx)
            if err != nil { continue }
            metrics.SetQueueDepth("stream", d.Stream)
            metrics.SetQueueDepth("delayed", d.Delayed)
            metrics.SetQueueDepth("dlq", d.DLQ)
        }
    }
}
