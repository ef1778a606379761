package main

import (
    "bytes"
    "context"
    "encoding/json"
    "os"
    "path/filepath"
    "testing"

    cfgpkg "github.com/local/pdfdeck/internal/config"
)

func TestFallbackEngineSelection(t *testing.T) {
    cases := map[string]string{"": "fitz", "fitz": "fitz", "mutool": "mutool", "ledongthuc": "ledongthuc", "other": "fitz"}
    for in, want := range cases {
        got := fallbackEngine(cfgpkg.ExtractionConfig{FallbackEngine: in, MutoolBinary: "mutool"}).Name()
        if got != want {
            t.Errorf("engine %q -> %q, want %q", in, got, want)
        }
    }
}

func TestRootCommands(t *testing.T) {
    root := newRootCmd()
    names := map[string]bool{}
    for _, c := range root.Commands() {
        names[c.Name()] = true
    }
    if !names["serve"] || !names["convert"] {
        t.Fatalf("commands %v", names)
    }
    root.SetArgs([]string{"convert"})
    root.SetOut(&bytes.Buffer{})
    if err := root.Execute(); err == nil {
        t.Fatal("convert without a file should fail")
    }
}

func TestRunConvertRejectsNonPDF(t *testing.T) {
    in := filepath.Join(t.TempDir(), "notes.txt")
    os.WriteFile(in, []byte("just some text"), 0o644)
    cfg := cfgpkg.FromEnv()
    cfg.Extraction.FallbackEngine = "ledongthuc"
    var out bytes.Buffer
    if err := runConvert(context.Background(), buildComponents(cfg).converter, in, "", "pptx", &out); err == nil {
        t.Fatal("expected validation error")
    }
    if out.Len() != 0 {
        t.Fatalf("summary written for failed conversion: %s", out.String())
    }
}

func TestConvertSummaryJSON(t *testing.T) {
    b, _ := json.Marshal(convertSummary{Input: "a.pdf", Output: "a.pptx", Format: "pptx", Stage: "structured", Pages: 2})
    var m map[string]any
    json.Unmarshal(b, &m)
    if _, ok := m["failed_stages"]; ok {
        t.Fatalf("empty failures serialized: %s", b)
    }
}
