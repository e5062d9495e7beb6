package qrtags

import (
	"bytes"
	"fmt"
	"image/png"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/jung-kurt/gofpdf"
)

// TagLabelData is one printable label on the sheet.
type TagLabelData struct {
	Code   string
	Status string
}

// renderTagLabelsPDF produces one A6-style label page per tag: the QR code
// in the middle, the human-readable code under it.
func renderTagLabelsPDF(labels []TagLabelData, printedAt time.Time) ([]byte, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels to render")
	}

	pdf := gofpdf.New("P", "mm", "A6", "")
	pdf.SetTitle("QR Tag Labels", false)

	for _, label := range labels {
		qrPNG, err := renderQRPNG(label.Code, 600)
		if err != nil {
			return nil, err
		}

		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 18)
		pdf.CellFormat(0, 12, "PALLET TAG", "", 1, "C", false, 0, "")

		opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		imageName := "qr-" + label.Code
		pdf.RegisterImageOptionsReader(imageName, opt, bytes.NewReader(qrPNG))
		pageW, _ := pdf.GetPageSize()
		imgSize := 70.0
		x := (pageW - imgSize) / 2
		y := 22.0
		pdf.ImageOptions(imageName, x, y, imgSize, imgSize, false, opt, 0, "")

		pdf.SetY(y + imgSize + 4)
		pdf.SetFont("Helvetica", "B", 22)
		pdf.CellFormat(0, 12, label.Code, "", 1, "C", false, 0, "")

		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 6, "Printed: "+printedAt.Format("02/01/2006"), "", 1, "C", false, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func renderQRPNG(value string, size int) ([]byte, error) {
	code, err := qr.Encode(value, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("encode qr %q: %w", value, err)
	}
	code, err = barcode.Scale(code, size, size)
	if err != nil {
		return nil, fmt.Errorf("scale qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
