package orchestrator

import (
    "context"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/pdfdeck/internal/extract"
)

// TempPrefix matches the fallback temp files and LibreOffice profile dirs.
const TempPrefix = extract.TempPrefix

// CleanupTemps removes entries in dir named with TempPrefix that are older
// than maxAge and returns how many were removed. An empty dir means os.TempDir.
func CleanupTemps(dir string, maxAge time.Duration) int {
    if dir == "" { dir = os.TempDir() }
    entries, err := os.ReadDir(dir)
    if err != nil { return 0 }
    now := time.Now()
    removed := 0
    for _, e := range entries {
        if !strings.HasPrefix(e.Name(), TempPrefix) { continue }
        info, err := e.Info()
        if err != nil || now.Sub(info.ModTime()) < maxAge { continue }
        if err := os.RemoveAll(filepath.Join(dir, e.Name())); err == nil { removed++ }
    }
    return removed
}

// RunCleanup sweeps dir every interval until ctx is done.
func RunCleanup(ctx context.Context, dir string, maxAge, every time.Duration) {
    if every <= 0 { every = maxAge }
    if every <= 0 { return }
    ticker := time.NewTicker(every)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            if n := CleanupTemps(dir, maxAge); n > 0 {
                log.Info().Int("removed", n).Msg("stale temp files removed")
            }
        }
    }
}
