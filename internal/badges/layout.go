package badges

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const (
	pageWidthMM = 215.9
	qrSideMM    = 60.0
	qrTopMM     = 30.0
	qrImageName = "basket-qr"
)

// RenderPDF lays out a one-page badge: the QR image centered near the top
// with the basket identifier underneath.
func RenderPDF(png []byte, basket string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetTitle(fmt.Sprintf("Basket %s", basket), true)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader(qrImageName, opts, bytes.NewReader(png))
	x := (pageWidthMM - qrSideMM) / 2
	pdf.ImageOptions(qrImageName, x, qrTopMM, qrSideMM, qrSideMM, false, opts, 0, "")

	pdf.SetY(qrTopMM + qrSideMM + 6)
	pdf.SetFont("Times", "B", 28)
	pdf.CellFormat(0, 12, basket, "", 1, "C", false, 0, "")

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
