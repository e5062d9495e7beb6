package pallets

import (
	"bytes"
	"fmt"
	"image/png"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/jung-kurt/gofpdf"
)

// renderContentLabelPDF produces a single A6 content label for a pallet:
// the tag code as a code128 barcode, then one line per SKU with the
// origin count.
func renderContentLabelPDF(detail DetailData, printedAt time.Time) ([]byte, error) {
	barcodePNG, err := renderCode128PNG(detail.TagCode, 600, 160)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A6", "")
	pdf.SetTitle("Pallet Content Label", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "PALLET "+detail.TagCode, "", 1, "C", false, 0, "")

	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	imageName := "code128-" + detail.TagCode
	pdf.RegisterImageOptionsReader(imageName, opt, bytes.NewReader(barcodePNG))
	pageW, _ := pdf.GetPageSize()
	imgW, imgH := 80.0, 22.0
	pdf.ImageOptions(imageName, (pageW-imgW)/2, 16, imgW, imgH, false, opt, 0, "")
	pdf.SetY(16 + imgH + 4)

	pdf.SetFont("Helvetica", "", 9)
	route := detail.Origin
	if detail.Destination != "" {
		route += " -> " + detail.Destination
	}
	pdf.CellFormat(0, 5, route, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(50, 6, "SKU", "B", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Qty", "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, item := range detail.Items {
		pdf.CellFormat(50, 6, item.SKU, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, fmt.Sprintf("%d", item.QtyOrigin), "", 1, "R", false, 0, "")
	}

	pdf.Ln(3)
	pdf.CellFormat(0, 5, "Printed: "+printedAt.Format("02/01/2006"), "", 1, "C", false, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func renderCode128PNG(value string, width, height int) ([]byte, error) {
	code, err := code128.Encode(value)
	if err != nil {
		return nil, fmt.Errorf("encode code128 %q: %w", value, err)
	}
	scaled, err := barcode.Scale(code, width, height)
	if err != nil {
		return nil, fmt.Errorf("scale code128: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
