package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/board-service/internal/domain"

	_ "golang.org/x/image/webp"
)

var ErrBadDataURL = errors.New("bad image data url")

// DecodeDataURL разбирает data:image/...;base64,... в картинку.
func DecodeDataURL(s string) (image.Image, error) {
	if !strings.HasPrefix(s, "data:image/") {
		return nil, ErrBadDataURL
	}
	meta, data, ok := strings.Cut(s, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, ErrBadDataURL
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	slog.Debug("image decoded", "format", format, "bounds", img.Bounds().String())
	return img, nil
}

// decodeImage подменяется в тестах.
var decodeImage = DecodeDataURL

// LoadImages параллельно декодирует картинки ходов-изображений.
// Картинка, не успевшая за timeout или битая, пропускается.
func LoadImages(ctx context.Context, moves []domain.Move, timeout time.Duration) map[string]image.Image {
	type result struct {
		id  string
		img image.Image
	}

	decode := decodeImage
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		out = make(map[string]image.Image)
	)
	for _, m := range moves {
		if m.Shape != domain.ShapeImage || m.Image == nil || m.Image.Base64 == "" {
			continue
		}
		wg.Add(1)
		go func(id, src string) {
			defer wg.Done()

			lctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan result, 1)
			go func() {
				img, err := decode(src)
				if err != nil {
					slog.Warn("image load failed", "move", id, "err", err)
					done <- result{id: id}
					return
				}
				done <- result{id: id, img: img}
			}()

			select {
			case r := <-done:
				if r.img != nil {
					mu.Lock()
					out[r.id] = r.img
					mu.Unlock()
				}
			case <-lctx.Done():
				slog.Warn("image load timeout", "move", id, "err", lctx.Err())
			}
		}(m.ID, m.Image.Base64)
	}
	wg.Wait()
	return out
}
