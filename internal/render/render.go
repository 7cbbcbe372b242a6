// Package render draws a board position as a PNG snapshot.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/Cheese-chess-agent/internal/engine"
)

// Board is the part of a position the renderer reads. *rules.Board
// satisfies it.
type Board interface {
	PieceAt(sq engine.Square) (engine.Piece, bool)
	SideToMove() engine.Side
}

type Options struct {
	// LastMove is drawn as an overlay (white) or arrow (black), coloured by
	// the piece standing on its destination.
	LastMove *engine.Move
	Title    string
	// Status replaces the "White to move" panel, e.g. with a result.
	Status string
	// Flip puts black at the bottom.
	Flip bool
}

type Renderer struct {
	pieces *pieceSet
}

// NewRenderer loads piece SVGs named like "wK.svg" from pieceDir when
// given, and uses built-in shapes for anything missing.
func NewRenderer(pieceDir string) *Renderer {
	return &Renderer{pieces: newPieceSet(pieceDir)}
}

const (
	squareSize   = 64
	boardSize    = squareSize * 8
	sideMargin   = 32
	topMargin    = 96
	bottomMargin = 32
	panelRadius  = 10
	panelHeight  = 30
	panelPadding = 16
	shadowOffset = 4
)

type layout struct {
	origin image.Point
	flip   bool
}

func (l layout) squareRect(sq engine.Square) image.Rectangle {
	row, col := 7-sq.Rank(), sq.File()
	if l.flip {
		row, col = sq.Rank(), 7-sq.File()
	}
	x := l.origin.X + col*squareSize
	y := l.origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func (l layout) boardRect() image.Rectangle {
	return image.Rect(l.origin.X, l.origin.Y, l.origin.X+boardSize, l.origin.Y+boardSize)
}

func (r *Renderer) RenderPNG(ctx context.Context, board Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	totalWidth := boardSize + sideMargin*2
	totalHeight := boardSize + topMargin + bottomMargin
	lay := layout{origin: image.Point{X: sideMargin, Y: topMargin}, flip: opts.Flip}

	img := image.NewRGBA(image.Rect(0, 0, totalWidth, totalHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	drawHUD(img, board, opts, lay.boardRect())
	drawSquares(img, lay)
	drawHighlight(img, board, opts.LastMove, lay)
	if err := r.drawPieces(img, board, lay); err != nil {
		return nil, err
	}
	drawCoordinates(img, lay)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return pngBuf.Bytes(), nil
}

var (
	backgroundColor           = color.RGBA{22, 24, 36, 255}
	lightSquare               = color.RGBA{233, 207, 163, 255}
	darkSquare                = color.RGBA{187, 136, 96, 255}
	whiteMoveHighlightFill    = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	blackMoveHighlightArrow   = color.NRGBA{R: 148, G: 207, B: 255, A: 170}
	neutralMoveHighlightArrow = color.NRGBA{R: 182, G: 184, B: 190, A: 140}
	hudPanelColor             = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	hudTurnPanelColor         = color.NRGBA{R: 32, G: 35, B: 52, A: 245}
	hudShadowColor            = color.NRGBA{0, 0, 0, 50}
	hudTextPrimary            = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	hudTurnTextColor          = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
	coordinateTextColor       = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

func drawSquares(dst imagedraw.Image, lay layout) {
	for sq := engine.Square(0); sq < 64; sq++ {
		imagedraw.Draw(dst, lay.squareRect(sq), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
	}
}

func (r *Renderer) drawPieces(dst imagedraw.Image, board Board, lay layout) error {
	for sq := engine.Square(0); sq < 64; sq++ {
		p, ok := board.PieceAt(sq)
		if !ok {
			continue
		}
		pieceImg, err := r.pieces.image(p, squareSize)
		if err != nil {
			return err
		}
		imagedraw.Draw(dst, lay.squareRect(sq), pieceImg, image.Point{}, imagedraw.Over)
	}
	return nil
}

func drawHighlight(img *image.RGBA, board Board, mv *engine.Move, lay layout) {
	if mv == nil || !mv.From.Valid() || !mv.To.Valid() {
		return
	}
	switch mover, ok := moveHighlightMover(board, mv); {
	case ok && mover == engine.Black:
		drawArrow(img, lay.squareRect(mv.From), lay.squareRect(mv.To), blackMoveHighlightArrow)
	case ok && mover == engine.White:
		drawSquareOverlay(img, lay.squareRect(mv.From), whiteMoveHighlightFill)
		drawSquareOverlay(img, lay.squareRect(mv.To), whiteMoveHighlightFill)
	default:
		drawArrow(img, lay.squareRect(mv.From), lay.squareRect(mv.To), neutralMoveHighlightArrow)
	}
}

func moveHighlightMover(board Board, mv *engine.Move) (engine.Side, bool) {
	if p, ok := board.PieceAt(mv.To); ok {
		return p.Side, true
	}
	if p, ok := board.PieceAt(mv.From); ok {
		return p.Side, true
	}
	return engine.White, false
}

// materialDiff is white's material minus black's.
func materialDiff(board Board) float64 {
	var diff float64
	for sq := engine.Square(0); sq < 64; sq++ {
		p, ok := board.PieceAt(sq)
		if !ok {
			continue
		}
		if p.Side == engine.White {
			diff += engine.Value(p.Kind)
		} else {
			diff -= engine.Value(p.Kind)
		}
	}
	return diff
}

func formatMaterialDiff(diff float64) string {
	if math.Abs(diff) < 1e-9 {
		return "0"
	}
	return fmt.Sprintf("%+.1f", diff)
}

func drawHUD(img *image.RGBA, board Board, opts Options, boardRect image.Rectangle) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Face: face}

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "chess agent"
	}
	status := strings.TrimSpace(opts.Status)
	if status == "" {
		status = "White to move"
		if board.SideToMove() == engine.Black {
			status = "Black to move"
		}
	}
	score := formatMaterialDiff(materialDiff(board))

	bottom := boardRect.Min.Y - 16
	statusRect := image.Rect(boardRect.Min.X, bottom-panelHeight, boardRect.Min.X+boardRect.Dx()/2, bottom)
	scoreWidth := drawer.MeasureString(score).Round() + panelPadding*2
	if scoreWidth < 72 {
		scoreWidth = 72
	}
	scoreRect := image.Rect(boardRect.Max.X-scoreWidth, bottom-panelHeight, boardRect.Max.X, bottom)
	titleRect := image.Rect(boardRect.Min.X, statusRect.Min.Y-10-panelHeight, boardRect.Max.X, statusRect.Min.Y-10)

	for _, rect := range []image.Rectangle{titleRect, statusRect, scoreRect} {
		drawRoundedPanel(img, rect.Add(image.Pt(0, shadowOffset)), panelRadius, hudShadowColor)
	}
	drawRoundedPanel(img, titleRect, panelRadius, hudPanelColor)
	drawRoundedPanel(img, statusRect, panelRadius, hudTurnPanelColor)
	drawRoundedPanel(img, scoreRect, panelRadius, hudPanelColor)

	title = truncateWithEllipsis(face, title, titleRect.Dx()-panelPadding*2)
	status = truncateWithEllipsis(face, status, statusRect.Dx()-panelPadding*2)

	drawCenteredString(drawer, titleRect, title, hudTextPrimary)
	drawCenteredString(drawer, statusRect, status, hudTurnTextColor)
	drawCenteredString(drawer, scoreRect, score, hudTextPrimary)
}

func drawCoordinates(dst imagedraw.Image, lay layout) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateTextColor)}
	ascent := face.Metrics().Ascent.Ceil()

	for i := 0; i < 8; i++ {
		rankSq := lay.squareRect(engine.NewSquare(0, i))
		fileSq := lay.squareRect(engine.NewSquare(i, 0))
		rankLabel := string(rune('1' + i))
		fileLabel := string(rune('a' + i))

		rankX := lay.origin.X - sideMargin/2
		drawCenteredText(drawer, rankLabel, rankX, rankSq.Min.Y+squareSize/2+ascent/2)
		drawCenteredText(drawer, fileLabel, fileSq.Min.X+squareSize/2, lay.origin.Y+boardSize+ascent+4)
	}
}

func drawSquareOverlay(img *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawArrow(img *image.RGBA, startRect, endRect image.Rectangle, clr color.Color) {
	if startRect == endRect {
		return
	}
	start := image.Pt(startRect.Min.X+squareSize/2, startRect.Min.Y+squareSize/2)
	end := image.Pt(endRect.Min.X+squareSize/2, endRect.Min.Y+squareSize/2)

	dx := float64(end.X - start.X)
	dy := float64(end.Y - start.Y)
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	dirX, dirY := dx/length, dy/length
	perpX, perpY := -dirY, dirX

	baseLength := length - float64(squareSize)*0.45
	if baseLength < float64(squareSize)*0.35 {
		baseLength = length * 0.6
	}
	halfWidth := float64(squareSize) * 0.18
	headWidth := float64(squareSize) * 0.32

	baseX := float64(start.X) + dirX*baseLength
	baseY := float64(start.Y) + dirY*baseLength

	fillQuad(img,
		pointF{float64(start.X) - perpX*halfWidth, float64(start.Y) - perpY*halfWidth},
		pointF{float64(start.X) + perpX*halfWidth, float64(start.Y) + perpY*halfWidth},
		pointF{baseX + perpX*halfWidth, baseY + perpY*halfWidth},
		pointF{baseX - perpX*halfWidth, baseY - perpY*halfWidth},
		clr)
	fillTriangleF(img,
		pointF{float64(end.X), float64(end.Y)},
		pointF{baseX - perpX*headWidth/2, baseY - perpY*headWidth/2},
		pointF{baseX + perpX*headWidth/2, baseY + perpY*headWidth/2},
		clr)
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || maxWidth <= 0 || face == nil {
		return trimmed
	}
	drawer := font.Drawer{Face: face}
	if drawer.MeasureString(trimmed).Round() <= maxWidth {
		return trimmed
	}
	ellipsis := "..."
	if drawer.MeasureString(ellipsis).Round() > maxWidth {
		return ""
	}
	runes := []rune(trimmed)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + ellipsis
		if drawer.MeasureString(candidate).Round() <= maxWidth {
			return candidate
		}
	}
	return ellipsis
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	text = strings.TrimSpace(text)
	if drawer == nil || text == "" {
		return
	}
	metrics := drawer.Face.Metrics()
	width := drawer.MeasureString(text).Round()
	x := rect.Min.X + (rect.Dx()-width)/2
	if x < rect.Min.X {
		x = rect.Min.X
	}
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func squareColor(sq engine.Square) color.Color {
	if (sq.File()+sq.Rank())%2 == 0 {
		return darkSquare
	}
	return lightSquare
}
