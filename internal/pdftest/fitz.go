package pdftest

import (
	fitz "github.com/gen2brain/go-fitz"
)

type fitzOpener struct{}

func (fitzOpener) OpenBytes(data []byte) (Doc, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
