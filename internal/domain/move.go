package domain

import (
	"fmt"
	"math"
	"strings"
)

type Shape string

const (
	ShapePath   Shape = "path" // свободная линия
	ShapeLine   Shape = "line"
	ShapeCircle Shape = "circle"
	ShapeRect   Shape = "rect"
	ShapeImage  Shape = "image"
)

// Mode задаёт режим композиции: рисование или ластик.
type Mode string

const (
	ModeDraw   Mode = "draw"
	ModeEraser Mode = "eraser"
)

const (
	MaxPathPoints  = 20000
	MaxLineWidth   = 200
	MaxImageLength = 4 << 20
)

// Point сериализуется как [x, y].
type Point [2]float64

func (p Point) X() float64 { return p[0] }
func (p Point) Y() float64 { return p[1] }

type RGBA struct {
	R uint8   `json:"r"`
	G uint8   `json:"g"`
	B uint8   `json:"b"`
	A float64 `json:"a"`
}

type Style struct {
	LineWidth float64 `json:"lineWidth"`
	LineColor RGBA    `json:"lineColor"`
	FillColor RGBA    `json:"fillColor"`
	Mode      Mode    `json:"mode"`
}

type Circle struct {
	CX      float64 `json:"cX"`
	CY      float64 `json:"cY"`
	RadiusX float64 `json:"radiusX"`
	RadiusY float64 `json:"radiusY"`
}

type Rect struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Image: картинка в виде data URL (data:image/png;base64,...).
type Image struct {
	Base64 string `json:"base64"`
}

// Move: одно неизменяемое действие на холсте. ID и Timestamp
// выставляет сервер в момент приёма.
type Move struct {
	ID        string  `json:"id"`
	Timestamp int64   `json:"timestamp"`
	Shape     Shape   `json:"shape"`
	Path      []Point `json:"path"`
	Style     Style   `json:"style"`
	Circle    *Circle `json:"circle,omitempty"`
	Rect      *Rect   `json:"rect,omitempty"`
	Image     *Image  `json:"img,omitempty"`
}

func (m Move) IsEraser() bool { return m.Style.Mode == ModeEraser }

// Clone возвращает глубокую копию, чтобы хранилище не делило срезы с вызывающим.
func (m Move) Clone() Move {
	out := m
	if m.Path != nil {
		out.Path = append([]Point(nil), m.Path...)
	}
	if m.Circle != nil {
		c := *m.Circle
		out.Circle = &c
	}
	if m.Rect != nil {
		r := *m.Rect
		out.Rect = &r
	}
	if m.Image != nil {
		img := *m.Image
		out.Image = &img
	}
	return out
}

// Redraw возвращает копию без транспортной идентичности: повтор (redo)
// отправляется как новый ход и получает новые id и timestamp.
func (m Move) Redraw() Move {
	out := m.Clone()
	out.ID = ""
	out.Timestamp = 0
	return out
}

// SameContent сравнивает визуальное содержимое двух ходов, игнорируя id и timestamp.
func (m Move) SameContent(o Move) bool {
	a, b := m.Redraw(), o.Redraw()
	if a.Shape != b.Shape || a.Style != b.Style || len(a.Path) != len(b.Path) {
		return false
	}
	for i := range a.Path {
		if a.Path[i] != b.Path[i] {
			return false
		}
	}
	switch {
	case (a.Circle == nil) != (b.Circle == nil),
		(a.Rect == nil) != (b.Rect == nil),
		(a.Image == nil) != (b.Image == nil):
		return false
	}
	if a.Circle != nil && *a.Circle != *b.Circle {
		return false
	}
	if a.Rect != nil && *a.Rect != *b.Rect {
		return false
	}
	if a.Image != nil && a.Image.Base64 != b.Image.Base64 {
		return false
	}
	return true
}

func (m Move) Validate() error {
	switch m.Shape {
	case ShapePath, ShapeLine, ShapeCircle, ShapeRect, ShapeImage:
	default:
		return fmt.Errorf("%w: unknown shape %q", ErrInvalidMove, m.Shape)
	}
	switch m.Style.Mode {
	case ModeDraw, ModeEraser, "":
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidMove, m.Style.Mode)
	}
	if len(m.Path) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidMove)
	}
	if len(m.Path) > MaxPathPoints {
		return fmt.Errorf("%w: %d points", ErrInvalidMove, len(m.Path))
	}
	for _, p := range m.Path {
		if !finite(p[0]) || !finite(p[1]) {
			return fmt.Errorf("%w: non-finite point", ErrInvalidMove)
		}
	}
	if m.Style.LineWidth < 0 || m.Style.LineWidth > MaxLineWidth || !finite(m.Style.LineWidth) {
		return fmt.Errorf("%w: line width %v", ErrInvalidMove, m.Style.LineWidth)
	}

	switch m.Shape {
	case ShapeCircle:
		if m.Circle == nil || m.Circle.RadiusX < 0 || m.Circle.RadiusY < 0 {
			return fmt.Errorf("%w: circle geometry", ErrInvalidMove)
		}
	case ShapeRect:
		if m.Rect == nil {
			return fmt.Errorf("%w: rect geometry", ErrInvalidMove)
		}
	case ShapeImage:
		if m.Image == nil || !strings.HasPrefix(m.Image.Base64, "data:image/") {
			return fmt.Errorf("%w: image payload", ErrInvalidMove)
		}
		if len(m.Image.Base64) > MaxImageLength {
			return fmt.Errorf("%w: image too large", ErrInvalidMove)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
