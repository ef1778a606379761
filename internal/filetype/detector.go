package filetype

import (
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

const (
	PDFMIME = "application/pdf"

	// DefaultMaxBytes is the upload ceiling when none is configured.
	DefaultMaxBytes = 10 << 20
)

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType  string
	Extension string
	Supported bool
}

// ValidationError rejects an input before any conversion work starts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason) }

// Detector checks inputs by magic bytes, not filename
type Detector struct {
	maxBytes int64
}

// New creates a detector; maxBytes <= 0 means DefaultMaxBytes.
func New(maxBytes int64) *Detector {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Detector{maxBytes: maxBytes}
}

func (d *Detector) MaxBytes() int64 { return d.maxBytes }

// Detect detects the actual type of data using magic bytes
func (d *Detector) Detect(data []byte) *FileTypeInfo {
	mtype := mimetype.Detect(data)
	info := &FileTypeInfo{MIMEType: mtype.String(), Extension: mtype.Extension()}
	info.Supported = mtype.Is(PDFMIME)
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Int("bytes", len(data)).Msg("detected file type")
	return info
}

// DetectFile is Detect for a file on disk.
func (d *Detector) DetectFile(path string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	return &FileTypeInfo{MIMEType: mtype.String(), Extension: mtype.Extension(), Supported: mtype.Is(PDFMIME)}, nil
}

// Validate applies the input rules: non-empty, within the size ceiling, a
// declared type of application/pdf when one is given, and PDF magic bytes.
func (d *Detector) Validate(data []byte, declared string) error {
	if len(data) == 0 {
		return &ValidationError{Field: "file", Reason: "empty upload"}
	}
	if int64(len(data)) > d.maxBytes {
		return &ValidationError{Field: "file", Reason: fmt.Sprintf("size %d exceeds limit of %d bytes", len(data), d.maxBytes)}
	}
	if declared != "" && declared != "application/octet-stream" {
		mt, _, err := mime.ParseMediaType(declared)
		if err != nil || !strings.EqualFold(mt, PDFMIME) {
			return &ValidationError{Field: "content type", Reason: fmt.Sprintf("%q is not %s", declared, PDFMIME)}
		}
	}
	if info := d.Detect(data); !info.Supported {
		return &ValidationError{Field: "file", Reason: fmt.Sprintf("content is %s, not a PDF", info.MIMEType)}
	}
	return nil
}
