package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"
)

// ResultSink persists rendered presentations and returns a location that
// Fetcher.Fetch can read back.
type ResultSink interface {
	SaveResult(ctx context.Context, jobID, ext, contentType string, data []byte) (string, error)
}

// ResultName is the file name used for a job's rendered output.
func ResultName(jobID, ext string) string {
	return fmt.Sprintf("%s_presentation.%s", jobID, ext)
}

// LocalSink stores results under Dir.
type LocalSink struct {
	Dir string
}

func (l LocalSink) SaveResult(ctx context.Context, jobID, ext, contentType string, data []byte) (string, error) {
	dir := l.Dir
	if dir == "" { dir = filepath.Join("data", "results") }
	if err := os.MkdirAll(dir, 0o755); err != nil { return "", err }
	p := filepath.Join(dir, ResultName(jobID, ext))
	if err := os.WriteFile(p, data, 0o644); err != nil { return "", err }
	return p, nil
}

// S3Sink uploads results under Prefix, encrypted when Password is set.
type S3Sink struct {
	Client   *S3Client
	Prefix   string
	Password string
}

func (s S3Sink) SaveResult(ctx context.Context, jobID, ext, contentType string, data []byte) (string, error) {
	key := path.Join(s.Prefix, time.Now().UTC().Format("2006/01/02"), ResultName(jobID, ext))
	return s.Client.UploadFile(ctx, key, data, s.Password, &FileMetadata{
		OriginalName: ResultName(jobID, ext),
		ContentType:  contentType,
		Metadata:     map[string]string{"job-id": jobID},
	})
}
