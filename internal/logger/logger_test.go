package logger

import (
    "bytes"
    "context"
    "encoding/json"
    "os"
    "path/filepath"
    "strings"
    "testing"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
)

func TestInitWritesJSONToConsoleAndFile(t *testing.T) {
    var buf bytes.Buffer
    file := filepath.Join(t.TempDir(), "logs", "pdfdeck.log")
    if err := Init(Options{Level: "debug", File: file, MaxSizeMB: 1, Console: &buf}); err != nil {
        t.Fatal(err)
    }
    defer Close()

    l := ForJob("job-1")
    l.Info().Int("pages", 3).Msg("converted")

    var ev map[string]interface{}
    if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &ev); err != nil {
        t.Fatalf("console output not JSON: %q", buf.String())
    }
    if ev["job_id"] != "job-1" || ev["service"] != serviceName || ev["message"] != "converted" {
        t.Fatalf("event %v", ev)
    }
    raw, err := os.ReadFile(file)
    if err != nil || !strings.Contains(string(raw), `"job_id":"job-1"`) {
        t.Fatalf("file output %q %v", raw, err)
    }
}

func TestInitLevelFallback(t *testing.T) {
    var buf bytes.Buffer
    if err := Init(Options{Level: "chatty", Console: &buf}); err != nil {
        t.Fatal(err)
    }
    log.Debug().Msg("hidden")
    if buf.Len() != 0 {
        t.Fatalf("debug written at default info level: %q", buf.String())
    }
}

func TestWithJobContext(t *testing.T) {
    var buf bytes.Buffer
    if err := Init(Options{Level: "info", Console: &buf}); err != nil {
        t.Fatal(err)
    }
    ctx := WithJob(context.Background(), "job-9")
    zerolog.Ctx(ctx).Info().Msg("from ctx")
    if !strings.Contains(buf.String(), `"job_id":"job-9"`) {
        t.Fatalf("output %q", buf.String())
    }
}

func TestMinLevelWriter(t *testing.T) {
    var buf bytes.Buffer
    w := &minLevelWriter{w: &buf, min: zerolog.InfoLevel}
    w.WriteLevel(zerolog.DebugLevel, []byte("debug\n"))
    w.WriteLevel(zerolog.WarnLevel, []byte("warn\n"))
    if buf.String() != "warn\n" {
        t.Fatalf("got %q", buf.String())
    }
}
