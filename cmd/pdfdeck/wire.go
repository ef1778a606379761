package main

import (
    cfgpkg "github.com/local/pdfdeck/internal/config"
    "github.com/local/pdfdeck/internal/converter"
    "github.com/local/pdfdeck/internal/extract"
    "github.com/local/pdfdeck/internal/filetype"
    "github.com/local/pdfdeck/internal/layout"
    "github.com/local/pdfdeck/internal/mupdf"
    "github.com/local/pdfdeck/internal/pdftest"
    "github.com/local/pdfdeck/internal/pdftext"
    "github.com/local/pdfdeck/internal/pipeline"
    "github.com/local/pdfdeck/internal/render"
    "github.com/rs/zerolog/log"
)

// availableEngine is a fallback engine that can report whether it runs here.
type availableEngine interface {
    extract.TextEngine
    IsAvailable() bool
}

func fallbackEngine(cfg cfgpkg.ExtractionConfig) availableEngine {
    switch cfg.FallbackEngine {
    case "mutool":
        return mupdf.NewExtractor(cfg.MutoolBinary)
    case "ledongthuc":
        return pdftext.New()
    case "", "fitz":
        return mupdf.NewGoFitzExtractor()
    default:
        log.Warn().Str("engine", cfg.FallbackEngine).Msg("unknown fallback engine; using fitz")
        return mupdf.NewGoFitzExtractor()
    }
}

// components are the pieces both commands share.
type components struct {
    engine    availableEngine
    soffice   *converter.LibreOffice
    converter *pipeline.Converter
}

func buildComponents(cfg cfgpkg.Config, extra ...pipeline.Option) components {
    engine := fallbackEngine(cfg.Extraction)
    coord := extract.NewCoordinator(
        extract.NewStructured(extract.NewPDFParser()),
        extract.NewFallback(engine, cfg.Extraction.TempDir),
    )

    soffice := converter.NewLibreOffice(cfg.Render.SofficeBinary, cfg.Render.ConvertWorkers, cfg.Render.ConvertTimeout)
    var pdfConv render.PDFConverter
    if soffice.IsAvailable() {
        pdfConv = soffice
    } else {
        log.Info().Str("binary", soffice.Binary()).Msg("LibreOffice not found; pdf output disabled")
    }

    opts := []pipeline.Option{
        pipeline.WithValidator(filetype.New(cfg.HTTP.MaxUploadBytes)),
        pipeline.WithProber(pdftest.New(cfg.Extraction.ProbeThreshold)),
    }
    opts = append(opts, extra...)
    conv := pipeline.New(coord, layout.New(cfg.Layout), render.NewSet(cfg.Render.Slides, pdfConv), opts...)
    return components{engine: engine, soffice: soffice, converter: conv}
}
