package filetype

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var minimalPDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func TestValidate(t *testing.T) {
	d := New(64)
	cases := []struct {
		name     string
		data     []byte
		declared string
		field    string
	}{
		{"ok", minimalPDF[:60], "application/pdf", ""},
		{"ok without declared type", minimalPDF[:60], "", ""},
		{"octet stream tolerated", minimalPDF[:60], "application/octet-stream", ""},
		{"empty", nil, "application/pdf", "file"},
		{"too large", append(append([]byte{}, minimalPDF...), make([]byte, 64)...), "application/pdf", "file"},
		{"wrong declared type", minimalPDF[:60], "image/png", "content type"},
		{"not a pdf", []byte("hello, plain text"), "application/pdf", "file"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := d.Validate(tc.data, tc.declared)
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("got %v, want %s error", err, tc.field)
			}
		})
	}
}

func TestDetectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.bin")
	if err := os.WriteFile(path, minimalPDF, 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := New(0).DetectFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !info.Supported || !strings.HasPrefix(info.MIMEType, PDFMIME) {
		t.Fatalf("info %+v", info)
	}
}

func TestDefaultMax(t *testing.T) {
	if New(0).MaxBytes() != DefaultMaxBytes {
		t.Fatal("default ceiling not applied")
	}
}
