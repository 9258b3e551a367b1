package render

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/cwrk-planet/board-service/internal/domain"

	"github.com/jung-kurt/gofpdf"
)

const pdfMargin = 10.0 // мм

// ExportPDF кладёт снимок холста на альбомный лист A4 с заголовком title.
func (r *Replayer) ExportPDF(ctx context.Context, w io.Writer, title string, moves []domain.Move) error {
	var png bytes.Buffer
	if err := r.EncodePNG(ctx, &png, moves); err != nil {
		return fmt.Errorf("render canvas: %w", err)
	}

	p := gofpdf.New("L", "mm", "A4", "")
	p.SetTitle(title, true)
	p.SetCreator("board-service", false)
	p.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	p.AddPage()

	p.SetFont("Helvetica", "B", 12)
	p.SetTextColor(40, 40, 40)
	p.Text(pdfMargin, pdfMargin+4, title)

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	p.RegisterImageOptionsReader("canvas", opts, &png)

	pageW, pageH := p.GetPageSize()
	boxW, boxH := pageW-2*pdfMargin, pageH-2*pdfMargin-8
	x, y, imgW, imgH := fit(float64(r.opts.Width), float64(r.opts.Height), boxW, boxH)
	p.ImageOptions("canvas", pdfMargin+x, pdfMargin+8+y, imgW, imgH, false, opts, 0, "")

	if err := p.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	return p.Output(w)
}

// fit вписывает w×h в рамку с сохранением пропорций и центрирует.
func fit(w, h, boxW, boxH float64) (x, y, outW, outH float64) {
	if w <= 0 || h <= 0 {
		return 0, 0, boxW, boxH
	}
	scale := boxW / w
	if s := boxH / h; s < scale {
		scale = s
	}
	outW, outH = w*scale, h*scale
	return (boxW - outW) / 2, (boxH - outH) / 2, outW, outH
}
