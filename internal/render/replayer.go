package render

import (
	"context"
	"image"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/cwrk-planet/board-service/internal/domain"

	"github.com/gogpu/gg"
)

type Options struct {
	Width        int
	Height       int
	Background   domain.RGBA
	ImageTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Width:        1920,
		Height:       1080,
		Background:   domain.RGBA{R: 255, G: 255, B: 255, A: 1},
		ImageTimeout: 5 * time.Second,
	}
}

// Replayer перерисовывает последовательность ходов на пустой холст.
// Ластик закрашивает фоном: у холста нет прозрачного слоя.
type Replayer struct {
	opts Options
}

func NewReplayer(opts Options) *Replayer {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = def.ImageTimeout
	}
	return &Replayer{opts: opts}
}

func (r *Replayer) Options() Options { return r.opts }

// Render рисует ходы в заданном порядке. Ход, который не удалось нарисовать, пропускается.
func (r *Replayer) Render(ctx context.Context, moves []domain.Move) image.Image {
	dc := r.paint(ctx, moves)
	defer func() { _ = dc.Close() }()
	return dc.Image()
}

func (r *Replayer) EncodePNG(ctx context.Context, w io.Writer, moves []domain.Move) error {
	dc := r.paint(ctx, moves)
	defer func() { _ = dc.Close() }()
	return dc.EncodePNG(w)
}

func (r *Replayer) paint(ctx context.Context, moves []domain.Move) *gg.Context {
	images := LoadImages(ctx, moves, r.opts.ImageTimeout)

	dc := gg.NewContext(r.opts.Width, r.opts.Height)
	dc.ClearWithColor(toRGBA(r.opts.Background))
	for _, m := range moves {
		if err := r.draw(dc, m, images); err != nil {
			slog.Debug("move skipped", "move", m.ID, "shape", m.Shape, "err", err)
		}
	}
	_ = dc.FlushGPU()
	return dc
}

func (r *Replayer) draw(dc *gg.Context, m domain.Move, images map[string]image.Image) error {
	if len(m.Path) == 0 {
		return nil
	}

	stroke, fill := m.Style.LineColor, m.Style.FillColor
	if m.IsEraser() {
		stroke, fill = r.opts.Background, r.opts.Background
	}

	dc.ClearPath()
	dc.SetLineWidth(math.Max(m.Style.LineWidth, 1))
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	switch m.Shape {
	case domain.ShapePath, domain.ShapeLine:
		if len(m.Path) == 1 {
			dc.SetFillBrush(gg.Solid(toRGBA(stroke)))
			dc.DrawCircle(m.Path[0].X(), m.Path[0].Y(), math.Max(m.Style.LineWidth, 1)/2)
			return dc.Fill()
		}
		dc.MoveTo(m.Path[0].X(), m.Path[0].Y())
		for _, p := range m.Path[1:] {
			dc.LineTo(p.X(), p.Y())
		}
		dc.SetStrokeBrush(gg.Solid(toRGBA(stroke)))
		return dc.Stroke()

	case domain.ShapeCircle:
		if m.Circle == nil {
			return nil
		}
		dc.DrawEllipse(m.Circle.CX, m.Circle.CY, m.Circle.RadiusX, m.Circle.RadiusY)
		return strokeAndFill(dc, stroke, fill)

	case domain.ShapeRect:
		if m.Rect == nil {
			return nil
		}
		x, y, w, h := m.Path[0].X(), m.Path[0].Y(), m.Rect.Width, m.Rect.Height
		if w < 0 {
			x, w = x+w, -w
		}
		if h < 0 {
			y, h = y+h, -h
		}
		dc.DrawRectangle(x, y, w, h)
		return strokeAndFill(dc, stroke, fill)

	case domain.ShapeImage:
		img, ok := images[m.ID]
		if !ok {
			return nil
		}
		dc.DrawImage(gg.ImageBufFromImage(img), m.Path[0].X(), m.Path[0].Y())
	}
	return nil
}

// strokeAndFill: у gg одна кисть на заливку и обводку, поэтому кисть
// ставится прямо перед каждой операцией.
func strokeAndFill(dc *gg.Context, stroke, fill domain.RGBA) error {
	if fill.A > 0 {
		dc.SetFillBrush(gg.Solid(toRGBA(fill)))
		if err := dc.FillPreserve(); err != nil {
			return err
		}
	}
	dc.SetStrokeBrush(gg.Solid(toRGBA(stroke)))
	return dc.Stroke()
}

func toRGBA(c domain.RGBA) gg.RGBA {
	return gg.RGBA{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
		A: math.Min(math.Max(c.A, 0), 1),
	}
}
