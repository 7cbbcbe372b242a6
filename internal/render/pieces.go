package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/park285/Cheese-chess-agent/internal/engine"
)

const pieceStyle = `{{style}}`

// Built-in silhouettes on a 45x45 view box.
var pieceShapes = map[engine.PieceKind]string{
	engine.Pawn: `<circle cx="22.5" cy="14" r="5" {{style}}/>
<path d="M16 36 L29 36 L26 22 L19 22 Z" {{style}}/>
<rect x="12" y="36" width="21" height="4" {{style}}/>`,
	engine.Knight: `<path d="M12 39 L34 39 L33 34 L30 34 C30 26 32 18 26 11 L22 8 L21 12 L15 17 L12 24 L15 26 L20 22 L22 24 L16 34 L13 34 Z" {{style}}/>`,
	engine.Bishop: `<path d="M12 39 L33 39 L33 36 L28 36 C32 30 31 21 22.5 12 C14 21 13 30 17 36 L12 36 Z" {{style}}/>
<circle cx="22.5" cy="9" r="3" {{style}}/>`,
	engine.Rook: `<path d="M11 39 L34 39 L34 35 L31 35 L30 17 L33 17 L33 10 L29 10 L29 13 L25 13 L25 10 L20 10 L20 13 L16 13 L16 10 L12 10 L12 17 L15 17 L14 35 L11 35 Z" {{style}}/>`,
	engine.Queen: `<path d="M10 39 L35 39 L35 35 L32 35 L36 14 L29 26 L27 11 L22.5 25 L18 11 L16 26 L9 14 L13 35 L10 35 Z" {{style}}/>
<circle cx="9" cy="12" r="2.5" {{style}}/>
<circle cx="18" cy="9" r="2.5" {{style}}/>
<circle cx="27" cy="9" r="2.5" {{style}}/>
<circle cx="36" cy="12" r="2.5" {{style}}/>`,
	engine.King: `<path d="M11 39 L34 39 L34 35 L31 35 L34 20 C30 16 26 18 22.5 22 C19 18 15 16 11 20 L14 35 L11 35 Z" {{style}}/>
<path d="M21 5 L24 5 L24 9 L28 9 L28 12 L24 12 L24 17 L21 17 L21 12 L17 12 L17 9 L21 9 Z" {{style}}/>`,
}

func builtinPieceSVG(p engine.Piece) ([]byte, error) {
	shape, ok := pieceShapes[p.Kind]
	if !ok {
		return nil, fmt.Errorf("no shape for piece %v", p.Kind)
	}
	style := `fill="#f8f8f8" stroke="#000000" stroke-width="1.5"`
	if p.Side == engine.Black {
		style = `fill="#202020" stroke="#000000" stroke-width="1.5"`
	}
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="45" height="45" viewBox="0 0 45 45">`)
	b.WriteString(strings.ReplaceAll(shape, pieceStyle, style))
	b.WriteString(`</svg>`)
	return []byte(b.String()), nil
}

// pieceAssetName is the file looked up in a custom piece directory, e.g. "wK.svg".
func pieceAssetName(p engine.Piece) string {
	prefix := "w"
	if p.Side == engine.Black {
		prefix = "b"
	}
	return fmt.Sprintf("%s%c.svg", prefix, p.Kind.Letter()-'a'+'A')
}

type pieceCacheKey struct {
	piece engine.Piece
	size  int
}

type pieceSet struct {
	dir string

	mu    sync.RWMutex
	cache map[pieceCacheKey]image.Image
}

func newPieceSet(dir string) *pieceSet {
	return &pieceSet{dir: strings.TrimSpace(dir), cache: map[pieceCacheKey]image.Image{}}
}

// source prefers the custom directory and falls back to the built-in shape.
func (s *pieceSet) source(p engine.Piece) ([]byte, error) {
	if s.dir != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, pieceAssetName(p)))
		if err == nil {
			return sanitizeSVG(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read piece asset: %w", err)
		}
	}
	return builtinPieceSVG(p)
}

func (s *pieceSet) image(p engine.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: p, size: size}

	s.mu.RLock()
	if img, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return img, nil
	}
	s.mu.RUnlock()

	data, err := s.source(p)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg %s: %w", pieceAssetName(p), err)
	}
	if icon.ViewBox.W <= 0 {
		icon.ViewBox.W = float64(size)
	}
	if icon.ViewBox.H <= 0 {
		icon.ViewBox.H = float64(size)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	s.mu.Lock()
	s.cache[key] = img
	s.mu.Unlock()
	return img, nil
}

func sanitizeSVG(svg []byte) []byte {
	fixed := bytes.ReplaceAll(svg, []byte("fill:000000"), []byte("fill:#000000"))
	fixed = bytes.ReplaceAll(fixed, []byte("fill: 000000"), []byte("fill:#000000"))
	fixed = bytes.ReplaceAll(fixed, []byte("stroke: 000000"), []byte("stroke:#000000"))
	fixed = bytes.ReplaceAll(fixed, []byte("fill: #"), []byte("fill:#"))
	fixed = bytes.ReplaceAll(fixed, []byte("stroke: #"), []byte("stroke:#"))
	fixed = bytes.ReplaceAll(fixed, []byte("stop-color: #"), []byte("stop-color:#"))
	return fixed
}
