package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LibreOffice converts rendered decks to PDF with a headless soffice process.
type LibreOffice struct {
	binary    string
	timeout   time.Duration
	semaphore chan struct{}
}

// Job represents a document conversion job
type Job struct {
	InputPath string
	OutputDir string
	Timeout   time.Duration
}

// Result represents the result of a conversion operation
type Result struct {
	OutputPath string
	Duration   time.Duration
}

// NewLibreOffice creates a converter limited to maxWorkers concurrent processes.
func NewLibreOffice(binary string, maxWorkers int, timeout time.Duration) *LibreOffice {
	if binary == "" {
		binary = "soffice"
	}
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &LibreOffice{
		binary:    binary,
		timeout:   timeout,
		semaphore: make(chan struct{}, maxWorkers),
	}
}

func (l *LibreOffice) Binary() string { return l.binary }

// IsAvailable reports whether the binary can be found on PATH.
func (l *LibreOffice) IsAvailable() bool {
	_, err := exec.LookPath(l.binary)
	return err == nil
}

// Version runs `--version`; used by status checks.
func (l *LibreOffice) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, l.binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("LibreOffice not found in PATH: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ConvertToPDF converts the file at job.InputPath into job.OutputDir.
func (l *LibreOffice) ConvertToPDF(ctx context.Context, job Job) (Result, error) {
	startTime := time.Now()

	select {
	case l.semaphore <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-l.semaphore }()

	if _, err := os.Stat(job.InputPath); err != nil {
		return Result{}, fmt.Errorf("input validation failed: %w", err)
	}

	// a private profile lets conversions run side by side
	profileDir := filepath.Join(os.TempDir(), fmt.Sprintf("libreoffice_profile_%s", uuid.New().String()))
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create profile directory: %w", err)
	}
	defer os.RemoveAll(profileDir)

	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	timeout := job.Timeout
	if timeout <= 0 {
		timeout = l.timeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, l.binary,
		fmt.Sprintf("-env:UserInstallation=file://%s", profileDir),
		"--headless",
		"--convert-to", "pdf",
		"--outdir", job.OutputDir,
		job.InputPath,
	)
	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("LibreOffice command")

	if out, err := cmd.CombinedOutput(); err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return Result{}, fmt.Errorf("conversion timeout after %v", timeout)
		}
		return Result{}, fmt.Errorf("conversion failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	output := expectedOutputPath(job.InputPath, job.OutputDir)
	if _, err := os.Stat(output); err != nil {
		return Result{}, fmt.Errorf("output file not created: %s", output)
	}

	res := Result{OutputPath: output, Duration: time.Since(startTime)}
	log.Info().Str("output", output).Dur("took", res.Duration).Msg("conversion completed")
	return res, nil
}

// ConvertPPTXToPDF round-trips a deck through a scratch directory.
func (l *LibreOffice) ConvertPPTXToPDF(ctx context.Context, pptx []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "pdfdeck-soffice-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "deck.pptx")
	if err := os.WriteFile(in, pptx, 0o644); err != nil {
		return nil, fmt.Errorf("write deck: %w", err)
	}
	res, err := l.ConvertToPDF(ctx, Job{InputPath: in, OutputDir: filepath.Join(dir, "out")})
	if err != nil {
		return nil, err
	}
	return os.ReadFile(res.OutputPath)
}

// expectedOutputPath is where soffice writes: same base name, .pdf extension.
func expectedOutputPath(inputPath, outputDir string) string {
	base := filepath.Base(inputPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, name+".pdf")
}
