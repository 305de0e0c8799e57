// This file implements logo normalization for project branding.
package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
)

const (
	// LogoMaxSize is the bounding box uploaded logos are fitted into.
	LogoMaxSize = 256

	// LogoJPEGQuality is the encoder quality for stored logos.
	LogoJPEGQuality = 90

	// MaxLogoUploadBytes caps the raw upload.
	MaxLogoUploadBytes = 5 << 20
)

// LogoProcessor turns an uploaded image into the stored logo format.
type LogoProcessor interface {
	// Normalize decodes data, fits it within maxSize x maxSize and returns JPEG bytes.
	Normalize(data io.Reader, maxSize int) ([]byte, error)
}

type imagingLogoProcessor struct{}

// NewLogoProcessor creates a LogoProcessor backed by the imaging library.
func NewLogoProcessor() LogoProcessor {
	return &imagingLogoProcessor{}
}

// Normalize flattens transparency onto white, since JPEG has no alpha channel.
func (p *imagingLogoProcessor) Normalize(data io.Reader, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	fitted := imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
	bg := imaging.New(fitted.Bounds().Dx(), fitted.Bounds().Dy(), color.White)
	flat := imaging.Overlay(bg, fitted, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(LogoJPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode logo: %w", err)
	}
	return buf.Bytes(), nil
}
