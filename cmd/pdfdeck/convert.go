package main

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "strings"

    "github.com/spf13/cobra"

    logpkg "github.com/local/pdfdeck/internal/logger"
    "github.com/local/pdfdeck/internal/pipeline"
)

type convertSummary struct {
    Input    string   `json:"input"`
    Output   string   `json:"output"`
    Format   string   `json:"format"`
    Stage    string   `json:"stage"`
    Pages    int      `json:"pages"`
    Tables   int      `json:"tables"`
    Bytes    int      `json:"bytes"`
    Failures []string `json:"failed_stages,omitempty"`
    Warning  string   `json:"warning,omitempty"`
}

func newConvertCmd() *cobra.Command {
    var out, format string
    cmd := &cobra.Command{
        Use:   "convert <file.pdf>",
        Short: "Convert one PDF and print a JSON summary",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            cfg, err := loadConfig()
            if err != nil { return err }
            // logs go to stderr so stdout carries only the summary
            if err := logpkg.Init(logpkg.Options{Level: cfg.Logging.Level, Pretty: true, Console: os.Stderr}); err != nil { return err }
            defer logpkg.Close()

            if format == "" { format = cfg.Render.DefaultFormat }
            return runConvert(cmd.Context(), buildComponents(cfg).converter, args[0], out, format, cmd.OutOrStdout())
        },
    }
    cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default: input name with the format extension)")
    cmd.Flags().StringVar(&format, "format", "", "output format: pptx, pdf or xlsx")
    return cmd
}

func runConvert(ctx context.Context, conv *pipeline.Converter, in, out, format string, w io.Writer) error {
    if ctx == nil { ctx = context.Background() }
    data, err := os.ReadFile(in)
    if err != nil { return err }

    res, err := conv.Convert(ctx, pipeline.Input{Data: data, Name: filepath.Base(in), Format: format})
    if err != nil {
        var cerr *pipeline.ConversionError
        if errors.As(err, &cerr) && cerr.Hint != "" {
            return fmt.Errorf("%w\nhint: %s", err, cerr.Hint)
        }
        return err
    }

    if out == "" {
        out = filepath.Join(filepath.Dir(in), res.FileName)
    }
    if err := os.WriteFile(out, res.Output, 0o644); err != nil { return err }

    sum := convertSummary{
        Input: in, Output: out, Format: res.Format, Stage: string(res.Content.Source),
        Pages: res.Pages, Tables: len(res.Content.Tables), Bytes: len(res.Output),
    }
    for _, f := range res.Report.Failures {
        sum.Failures = append(sum.Failures, fmt.Sprintf("%s: %s", f.Stage, strings.TrimSpace(f.Error)))
    }
    if res.Diagnostics.ImageBased() { sum.Warning = pipeline.HintImageBased }
    enc := json.NewEncoder(w)
    enc.SetIndent("", "  ")
    return enc.Encode(sum)
}
