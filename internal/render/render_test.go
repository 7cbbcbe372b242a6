package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/park285/Cheese-chess-agent/internal/engine"
	"github.com/park285/Cheese-chess-agent/internal/rules"
)

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}

func sameColor(a, b color.Color) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return ar == br && ag == bg && ab == bb && aa == ba
}

func squareCorner(sq engine.Square, flip bool) image.Point {
	r := layout{origin: image.Pt(sideMargin, topMargin), flip: flip}.squareRect(sq)
	return r.Min.Add(image.Pt(2, 2))
}

func TestRenderStartPosition(t *testing.T) {
	data, err := NewRenderer("").RenderPNG(context.Background(), rules.NewBoard(), Options{Title: "agent vs random"})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img := decode(t, data)
	if got := img.Bounds().Size(); got != image.Pt(boardSize+2*sideMargin, boardSize+topMargin+bottomMargin) {
		t.Fatalf("size = %v", got)
	}
	e4 := engine.NewSquare(4, 3)
	if p := squareCorner(e4, false); !sameColor(img.At(p.X, p.Y), lightSquare) {
		t.Fatalf("e4 corner = %v, want light square", img.At(p.X, p.Y))
	}
	a1 := engine.NewSquare(0, 0)
	if p := squareCorner(a1, false); !sameColor(img.At(p.X, p.Y), darkSquare) {
		t.Fatalf("a1 corner = %v, want dark square", img.At(p.X, p.Y))
	}
}

func TestRenderHighlightsLastMove(t *testing.T) {
	b := rules.NewBoard()
	mv := engine.Move{From: engine.NewSquare(4, 1), To: engine.NewSquare(4, 3), Promotion: engine.NoKind}
	if err := b.Push(mv); err != nil {
		t.Fatalf("Push: %v", err)
	}
	data, err := NewRenderer("").RenderPNG(context.Background(), b, Options{LastMove: &mv})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img := decode(t, data)
	p := squareCorner(mv.To, false)
	if sameColor(img.At(p.X, p.Y), lightSquare) {
		t.Fatalf("e4 not highlighted")
	}
}

func TestRenderFlip(t *testing.T) {
	data, err := NewRenderer("").RenderPNG(context.Background(), rules.NewBoard(), Options{Flip: true})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img := decode(t, data)
	// with black at the bottom, h8 sits in the bottom-left corner
	h8 := engine.NewSquare(7, 7)
	r := layout{origin: image.Pt(sideMargin, topMargin), flip: true}.squareRect(h8)
	if r.Min != image.Pt(sideMargin, topMargin+7*squareSize) {
		t.Fatalf("h8 rect = %v", r)
	}
	e5 := engine.NewSquare(4, 4)
	if p := squareCorner(e5, true); !sameColor(img.At(p.X, p.Y), darkSquare) {
		t.Fatalf("e5 corner = %v, want dark square", img.At(p.X, p.Y))
	}
}

func TestRenderCustomPieceDir(t *testing.T) {
	dir := t.TempDir()
	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="45" height="45" viewBox="0 0 45 45"><rect x="0" y="0" width="45" height="45" fill="#ff0000"/></svg>`
	if err := os.WriteFile(filepath.Join(dir, "wK.svg"), []byte(svg), 0o644); err != nil {
		t.Fatalf("write svg: %v", err)
	}
	data, err := NewRenderer(dir).RenderPNG(context.Background(), rules.NewBoard(), Options{})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img := decode(t, data)
	e1 := layout{origin: image.Pt(sideMargin, topMargin)}.squareRect(engine.NewSquare(4, 0))
	c := e1.Min.Add(image.Pt(squareSize/2, squareSize/2))
	if !sameColor(img.At(c.X, c.Y), color.RGBA{255, 0, 0, 255}) {
		t.Fatalf("king square centre = %v, want custom red piece", img.At(c.X, c.Y))
	}
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRenderer("").RenderPNG(ctx, rules.NewBoard(), Options{}); err == nil {
		t.Fatalf("expected context error")
	}
	if _, err := NewRenderer("").RenderPNG(context.Background(), nil, Options{}); err == nil {
		t.Fatalf("expected nil board error")
	}
}

func TestBuiltinPiecesParse(t *testing.T) {
	set := newPieceSet("")
	for _, side := range []engine.Side{engine.White, engine.Black} {
		for k := engine.Pawn; k <= engine.King; k++ {
			if _, err := set.image(engine.Piece{Kind: k, Side: side}, 32); err != nil {
				t.Fatalf("%v %v: %v", side, k, err)
			}
		}
	}
	if got := pieceAssetName(engine.Piece{Kind: engine.Knight, Side: engine.Black}); got != "bN.svg" {
		t.Fatalf("asset name = %s", got)
	}
}

func TestMaterialDiff(t *testing.T) {
	b, err := rules.FromFEN("4k3/8/8/8/8/8/8/R3K3 w - - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}
	if got := formatMaterialDiff(materialDiff(b)); got != "+5.0" {
		t.Fatalf("diff = %s", got)
	}
	if got := formatMaterialDiff(materialDiff(rules.NewBoard())); got != "0" {
		t.Fatalf("start diff = %s", got)
	}
}
