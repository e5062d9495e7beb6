package qrtags

import (
	"bytes"
	"testing"
	"time"
)

func TestRenderTagLabelsPDF(t *testing.T) {
	labels := []TagLabelData{
		{Code: "DEP001", Status: "free"},
		{Code: "DEP002", Status: "free"},
	}
	pdfBytes, err := renderTagLabelsPDF(labels, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(pdfBytes, []byte("%PDF")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestRenderTagLabelsPDFRejectsEmpty(t *testing.T) {
	if _, err := renderTagLabelsPDF(nil, time.Now()); err == nil {
		t.Fatalf("expected error for empty label set")
	}
}

func TestRenderQRPNG(t *testing.T) {
	png, err := renderQRPNG("DEP001", 200)
	if err != nil {
		t.Fatalf("render qr: %v", err)
	}
	if len(png) == 0 {
		t.Fatalf("empty png")
	}
}
