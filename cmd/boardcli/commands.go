package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/cwrk-planet/board-service/config"
	"github.com/cwrk-planet/board-service/internal/domain"
)

var errUsage = errors.New("usage")

const helpText = `Commands:
  /create               create a room
  /join CODE            join a room
  /check CODE           check that a room exists
  /leave                leave the room
  /line X1 Y1 X2 Y2     straight line
  /path X Y X Y ...     polyline
  /rect X Y W H         rectangle
  /circle X Y RX [RY]   ellipse
  /image X Y FILE       paste an image
  /color #RRGGBB        stroke colour
  /fill #RRGGBB|none    fill colour
  /width N              line width
  /pen | /eraser        drawing mode
  /cursor X Y           move your cursor
  /undo  /redo  /clear  history (also ctrl+z, ctrl+y)
  /save FILE.png|.pdf   export the canvas
  /preview              toggle the canvas preview
  /quit
Anything else is sent to the chat.`

type command struct {
	name string
	args []string
}

// parseLine выделяет команду; обычный текст команды не образует.
func parseLine(line string) (command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") || line == "/" {
		return command{}, false
	}
	fields := strings.Fields(line[1:])
	return command{name: strings.ToLower(fields[0]), args: fields[1:]}, true
}

// pen: текущие настройки рисования.
type pen struct {
	color domain.RGBA
	fill  domain.RGBA
	width float64
	mode  domain.Mode
}

func defaultPen() pen {
	return pen{color: domain.RGBA{A: 1}, width: 3, mode: domain.ModeDraw}
}

func (p pen) style() domain.Style {
	return domain.Style{LineWidth: p.width, LineColor: p.color, FillColor: p.fill, Mode: p.mode}
}

// apply меняет настройки пера. ok=false: команда не про перо.
func (p *pen) apply(c command) (bool, error) {
	switch c.name {
	case "color":
		if len(c.args) != 1 {
			return true, fmt.Errorf("%w: /color #RRGGBB", errUsage)
		}
		col, err := config.ParseColor(c.args[0])
		if err != nil {
			return true, err
		}
		p.color = col
	case "fill":
		if len(c.args) != 1 {
			return true, fmt.Errorf("%w: /fill #RRGGBB|none", errUsage)
		}
		if c.args[0] == "none" {
			p.fill = domain.RGBA{}
			return true, nil
		}
		col, err := config.ParseColor(c.args[0])
		if err != nil {
			return true, err
		}
		p.fill = col
	case "width":
		nums, err := floats(c.args, 1, 1, "/width N")
		if err != nil {
			return true, err
		}
		if nums[0] <= 0 || nums[0] > domain.MaxLineWidth {
			return true, fmt.Errorf("width must be in (0, %d]", domain.MaxLineWidth)
		}
		p.width = nums[0]
	case "pen":
		p.mode = domain.ModeDraw
	case "eraser":
		p.mode = domain.ModeEraser
	default:
		return false, nil
	}
	return true, nil
}

// shape строит ход для команд рисования. ok=false: команда не про фигуру.
func (p pen) shape(c command) (domain.Move, bool, error) {
	m := domain.Move{Style: p.style()}
	switch c.name {
	case "line":
		n, err := floats(c.args, 4, 4, "/line X1 Y1 X2 Y2")
		if err != nil {
			return m, true, err
		}
		m.Shape = domain.ShapeLine
		m.Path = []domain.Point{{n[0], n[1]}, {n[2], n[3]}}
	case "path":
		n, err := floats(c.args, 2, domain.MaxPathPoints*2, "/path X Y X Y ...")
		if err != nil {
			return m, true, err
		}
		if len(n)%2 != 0 {
			return m, true, fmt.Errorf("%w: /path needs pairs of coordinates", errUsage)
		}
		m.Shape = domain.ShapePath
		for i := 0; i < len(n); i += 2 {
			m.Path = append(m.Path, domain.Point{n[i], n[i+1]})
		}
	case "rect":
		n, err := floats(c.args, 4, 4, "/rect X Y W H")
		if err != nil {
			return m, true, err
		}
		m.Shape = domain.ShapeRect
		m.Path = []domain.Point{{n[0], n[1]}}
		m.Rect = &domain.Rect{Width: n[2], Height: n[3]}
	case "circle":
		n, err := floats(c.args, 3, 4, "/circle X Y RX [RY]")
		if err != nil {
			return m, true, err
		}
		ry := n[2]
		if len(n) == 4 {
			ry = n[3]
		}
		m.Shape = domain.ShapeCircle
		m.Path = []domain.Point{{n[0], n[1]}}
		m.Circle = &domain.Circle{CX: n[0], CY: n[1], RadiusX: n[2], RadiusY: ry}
	case "image":
		if len(c.args) != 3 {
			return m, true, fmt.Errorf("%w: /image X Y FILE", errUsage)
		}
		n, err := floats(c.args[:2], 2, 2, "/image X Y FILE")
		if err != nil {
			return m, true, err
		}
		url, err := dataURL(c.args[2])
		if err != nil {
			return m, true, err
		}
		m.Shape = domain.ShapeImage
		m.Path = []domain.Point{{n[0], n[1]}}
		m.Image = &domain.Image{Base64: url}
	default:
		return m, false, nil
	}
	return m, true, m.Validate()
}

func floats(args []string, minN, maxN int, usage string) ([]float64, error) {
	if len(args) < minN || len(args) > maxN {
		return nil, fmt.Errorf("%w: %s", errUsage, usage)
	}
	out := make([]float64, 0, len(args))
	for _, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errUsage, usage)
		}
		out = append(out, f)
	}
	return out, nil
}

// dataURL читает картинку с диска в data:image/...;base64,...
func dataURL(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mime := http.DetectContentType(raw)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%s is not an image (%s)", path, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}
