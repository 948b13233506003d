// Package badges produces and verifies the QR-coded PDF badges attached to
// basket assignment emails.
package badges

import (
	"context"
	"fmt"

	"github.com/angelmondragon/labaccess-backend/internal/messages"
	"github.com/angelmondragon/labaccess-backend/internal/records"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

const (
	DefaultSize    = 255
	pdfContentType = "application/pdf"
)

// QRRenderer fetches a PNG QR code encoding data.
type QRRenderer interface {
	PNG(ctx context.Context, data string, size int) ([]byte, error)
}

// File is a rendered badge ready to persist.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	Description string
}

// Store persists badge files and returns a reference to the stored object.
type Store interface {
	Save(ctx context.Context, file File) (string, error)
}

// Recorder indexes stored badges by hash for later verification.
type Recorder interface {
	Record(ctx context.Context, data records.BadgeData, file File, ref string) error
}

// Hash computes the integrity hash of d.
func Hash(d records.BadgeData) (string, error) {
	return d.ComputeHash()
}

// Payload returns the JSON embedded in the QR code, hash included.
func Payload(d records.BadgeData) (string, error) {
	return d.Payload()
}

// FileName builds the fixed-width badge file name: basket padded to 5,
// date padded to 12, then the full name.
func FileName(d records.BadgeData) string {
	return fmt.Sprintf("%-5s%-12s%s.pdf", d.Basket, d.Assigned, d.Name)
}

// Generator renders, stores and returns basket badges.
type Generator struct {
	qr       QRRenderer
	store    Store
	recorder Recorder
	size     int
}

type GeneratorParams struct {
	QR       QRRenderer
	Store    Store
	Recorder Recorder
	Size     int
}

func NewGenerator(params GeneratorParams) (*Generator, error) {
	if params.QR == nil {
		return nil, fmt.Errorf("qr renderer required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("badge store required")
	}
	size := params.Size
	if size <= 0 {
		size = DefaultSize
	}
	return &Generator{
		qr:       params.QR,
		store:    params.Store,
		recorder: params.Recorder,
		size:     size,
	}, nil
}

// Generate builds the badge for data. Any failure aborts the whole badge.
func (g *Generator) Generate(ctx context.Context, data records.BadgeData, size int) (*messages.Attachment, error) {
	if size <= 0 {
		size = g.size
	}

	hash, err := Hash(data)
	if err != nil {
		return nil, err
	}
	if data.Hash != "" && data.Hash != hash {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "badge hash does not match badge data").
			WithDetails(map[string]any{"expected": hash, "got": data.Hash})
	}
	data.Hash = hash

	payload, err := Payload(data)
	if err != nil {
		return nil, err
	}

	png, err := g.qr.PNG(ctx, payload, size)
	if err != nil {
		return nil, err
	}

	pdf, err := RenderPDF(png, data.Basket)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render badge pdf")
	}

	file := File{
		Name:        FileName(data),
		ContentType: pdfContentType,
		Data:        pdf,
		Description: payload,
	}
	ref, err := g.store.Save(ctx, file)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalService, err, "store badge")
	}

	if g.recorder != nil {
		if err := g.recorder.Record(ctx, data, file, ref); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record badge")
		}
	}

	return &messages.Attachment{
		Name:        file.Name,
		ContentType: file.ContentType,
		Data:        file.Data,
	}, nil
}
