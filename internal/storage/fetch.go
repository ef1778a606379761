package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrTooLarge is returned when a fetched document exceeds the size limit.
type ErrTooLarge struct {
	Ref   string
	Limit int64
}

func (e *ErrTooLarge) Error() string {
	return fmt.Sprintf("%s exceeds %d bytes", e.Ref, e.Limit)
}

// HTTPStatusError is a non-200 answer from an http(s) reference.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http %d from %s", e.StatusCode, e.URL)
}

// ErrOutsideDir is returned for a file reference outside Fetcher.LocalDirs.
type ErrOutsideDir struct {
	Path string
	Dirs []string
}

func (e *ErrOutsideDir) Error() string {
	return fmt.Sprintf("%s is outside %s", e.Path, strings.Join(e.Dirs, ", "))
}

// Fetcher resolves document references to bytes. Supported references:
//   - file://path or plain filesystem paths
//   - http(s):// URLs
//   - s3://bucket/key (requires an S3 client)
type Fetcher struct {
	S3       *S3Client
	HTTP     *http.Client
	MaxBytes int64
	Password string
	// LocalDirs, when set, confines file references to these directories.
	LocalDirs []string
}

// Fetch returns the document bytes and a display name for ref.
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}
	switch {
	case strings.HasPrefix(ref, "s3://"):
		return f.fetchS3(ctx, ref)
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		return f.fetchHTTP(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		return f.fetchFile(strings.TrimPrefix(ref, "file://"))
	default:
		return f.fetchFile(ref)
	}
}

func (f *Fetcher) fetchFile(path string) ([]byte, string, error) {
	if path == "" { return nil, "", fmt.Errorf("empty file reference") }
	if !f.allowed(path) { return nil, "", &ErrOutsideDir{Path: path, Dirs: f.LocalDirs} }
	fh, err := os.Open(path)
	if err != nil { return nil, "", err }
	defer fh.Close()
	data, err := f.readLimited(path, fh)
	if err != nil { return nil, "", err }
	return data, filepath.Base(path), nil
}

func (f *Fetcher) allowed(path string) bool {
	if len(f.LocalDirs) == 0 { return true }
	for _, d := range f.LocalDirs {
		if d != "" && within(d, path) { return true }
	}
	return false
}

func within(dir, path string) bool {
	d, err := filepath.Abs(dir)
	if err != nil { return false }
	p, err := filepath.Abs(path)
	if err != nil { return false }
	rel, err := filepath.Rel(d, p)
	if err != nil { return false }
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil { return nil, "", err }
	client := f.HTTP
	if client == nil { client = http.DefaultClient }
	resp, err := client.Do(req)
	if err != nil { return nil, "", err }
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK { return nil, "", &HTTPStatusError{URL: url, StatusCode: resp.StatusCode} }
	data, err := f.readLimited(url, resp.Body)
	if err != nil { return nil, "", err }
	name := url[strings.LastIndex(url, "/")+1:]
	if q := strings.IndexByte(name, '?'); q >= 0 { name = name[:q] }
	log.Info().Str("url", url).Int("size", len(data)).Msg("downloaded pdf over http")
	return data, name, nil
}

func (f *Fetcher) fetchS3(ctx context.Context, ref string) ([]byte, string, error) {
	if f.S3 == nil { return nil, "", fmt.Errorf("s3 is not configured: %s", ref) }
	bucket, key, err := ParseS3URL(ref)
	if err != nil { return nil, "", err }
	data, meta, err := f.S3.DownloadFile(ctx, bucket, key, f.Password)
	if err != nil { return nil, "", err }
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return nil, "", &ErrTooLarge{Ref: ref, Limit: f.MaxBytes}
	}
	name := meta.OriginalName
	if name == "" { name = filepath.Base(key) }
	return data, name, nil
}

func (f *Fetcher) readLimited(ref string, r io.Reader) ([]byte, error) {
	if f.MaxBytes <= 0 { return io.ReadAll(r) }
	data, err := io.ReadAll(io.LimitReader(r, f.MaxBytes+1))
	if err != nil { return nil, err }
	if int64(len(data)) > f.MaxBytes { return nil, &ErrTooLarge{Ref: ref, Limit: f.MaxBytes} }
	return data, nil
}
