package main

import (
    "fmt"
    "os"

    "github.com/spf13/cobra"

    cfgpkg "github.com/local/pdfdeck/internal/config"
    logpkg "github.com/local/pdfdeck/internal/logger"
)

func main() {
    if err := newRootCmd().Execute(); err != nil {
        fmt.Fprintln(os.Stderr, err)
        os.Exit(1)
    }
}

func newRootCmd() *cobra.Command {
    root := &cobra.Command{
        Use:           "pdfdeck",
        Short:         "Convert PDF documents into slide decks",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    root.AddCommand(newServeCmd(), newConvertCmd())
    return root
}

func loadConfig() (cfgpkg.Config, error) { return cfgpkg.Load() }

func initLogging(cfg cfgpkg.Config) error {
    return logpkg.Init(logpkg.Options{
        Level: cfg.Logging.Level,
        Pretty: cfg.Logging.Pretty,
        File: cfg.Logging.File,
        MaxSizeMB: cfg.Logging.MaxSizeMB,
        MaxBackups: cfg.Logging.MaxBackups,
        MaxAgeDays: cfg.Logging.MaxAgeDays,
        Compress: cfg.Logging.Compress,
        SendToAxiom: cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey: cfg.Axiom.APIKey,
        AxiomOrgID: cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush: cfg.Axiom.FlushInterval,
    })
}
