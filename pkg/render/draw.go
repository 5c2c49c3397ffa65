package render

import (
	"image"
	"math"

	"github.com/fogleman/gg"

	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/resource"
	"github.com/matzehuels/deckreel/pkg/snapshot"
)

// drawFunc draws one node, without its children, into box.
type drawFunc func(c *canvas, s *snapshot.Snapshot, box Rect) error

// drawers is the closed dispatch table. Carriers and resource holders are
// structural and have no entry; unknown types draw nothing. Children are
// drawn either way.
var drawers = map[resource.Type]drawFunc{
	resource.TypeDeck:    drawContainer,
	resource.TypeTipRack: drawContainer,
	resource.TypePlate:   drawContainer,
	resource.TypeTipSpot: drawTipSpot,
	resource.TypeWell:    drawWell,
	resource.TypeTrough:  drawTrough,
}

type canvas struct {
	dc      *gg.Context
	palette *Palette
}

// Rasterize draws one snapshot tree onto a white width×height canvas.
func Rasterize(s *snapshot.Snapshot, width, height int, palette *Palette) (image.Image, error) {
	if palette == nil {
		palette = DefaultPalette()
	}
	c := &canvas{dc: gg.NewContext(width, height), palette: palette}
	c.dc.SetColor(palette.Empty)
	c.dc.Clear()
	if err := c.draw(s, "", 0); err != nil {
		return nil, err
	}
	return c.dc.Image(), nil
}

func (c *canvas) draw(s *snapshot.Snapshot, parent resource.Type, parentScale float64) error {
	scale := EffectiveScale(s.Type, parent, parentScale)
	if fn, ok := drawers[s.Type]; ok {
		box := Box(s.Location, s.SizeX, s.SizeY, scale)
		if err := fn(c, s, box); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidFrame, err, "draw %s (%s)", s.Name, s.Type)
		}
	}
	for _, child := range s.Children {
		if err := c.draw(child, s.Type, scale); err != nil {
			return err
		}
	}
	return nil
}

func drawContainer(c *canvas, s *snapshot.Snapshot, box Rect) error {
	dc := c.dc
	dc.DrawRectangle(box.X, box.Y, box.W, box.H)
	dc.SetColor(c.palette.Container(s.Type))
	dc.FillPreserve()
	dc.SetColor(c.palette.Outline)
	dc.SetLineWidth(1)
	dc.Stroke()
	return nil
}

func drawTipSpot(c *canvas, s *snapshot.Snapshot, box Rect) error {
	st, err := decodeTipState(s.State)
	if err != nil {
		return err
	}
	dc := c.dc
	p := c.palette
	radius := math.Min(box.W, box.H) * tipCornerRatio

	fill, stroke, width := p.Empty, p.TipEmpty, 1.0
	if st.HasTip {
		fill, stroke, width = p.Tip, p.Outline, 2.0
	}
	dc.DrawRoundedRectangle(box.X, box.Y, box.W, box.H, radius)
	dc.SetColor(fill)
	dc.FillPreserve()
	dc.SetColor(stroke)
	dc.SetLineWidth(width)
	dc.Stroke()

	if st.HasTip {
		tw, th := box.W*tipTriangleWidth, box.H*tipTriangleHeight
		tx, ty := box.X+(box.W-tw)/2, box.Y+(box.H-th)/2
		dc.MoveTo(tx, ty)
		dc.LineTo(tx+tw, ty)
		dc.LineTo(tx+tw/2, ty+th)
		dc.ClosePath()
		dc.SetColor(p.Tip)
		dc.FillPreserve()
		dc.SetColor(p.Outline)
		dc.Stroke()
	}
	return nil
}

func drawWell(c *canvas, s *snapshot.Snapshot, box Rect) error {
	st, err := decodeLiquidState(s.State)
	if err != nil {
		return err
	}
	dc := c.dc
	p := c.palette
	cx, cy := box.X+box.W/2, box.Y+box.H/2
	radius := math.Min(box.W, box.H) * wellRadiusRatio

	slices := PieSlices(st.Liquids)
	if slices == nil {
		dc.DrawCircle(cx, cy, radius)
		dc.SetColor(p.Empty)
		dc.FillPreserve()
		dc.SetColor(p.Outline)
		dc.SetLineWidth(1)
		dc.Stroke()
		return nil
	}

	dc.SetLineWidth(1)
	for _, sl := range slices {
		dc.MoveTo(cx, cy)
		dc.DrawArc(cx, cy, radius, sl.Start, sl.Start+sl.Angle)
		dc.ClosePath()
		dc.SetColor(p.Compound(sl.Label))
		dc.FillPreserve()
		dc.SetColor(p.Outline)
		dc.Stroke()
	}
	dc.DrawCircle(cx, cy, radius)
	dc.SetColor(p.Outline)
	dc.SetLineWidth(2)
	dc.Stroke()
	return nil
}

func drawTrough(c *canvas, s *snapshot.Snapshot, box Rect) error {
	st, err := decodeLiquidState(s.State)
	if err != nil {
		return err
	}
	dc := c.dc
	p := c.palette

	dc.DrawRectangle(box.X, box.Y, box.W, box.H)
	dc.SetColor(p.Trough)
	dc.Fill()

	if len(st.Liquids) > 0 {
		if ratio := FillRatio(st.Liquids, st.MaxVolume); ratio > 0 {
			clip := TroughClipRect(box)
			fill := TroughLiquidRect(box, ratio)
			dc.Push()
			dc.DrawRectangle(clip.X, clip.Y, clip.W, clip.H)
			dc.Clip()
			dc.DrawRectangle(fill.X, fill.Y, fill.W, fill.H)
			dc.SetColor(p.Compound(st.Liquids[0].Label))
			dc.Fill()
			dc.Pop()
		}
	}

	dc.DrawRectangle(box.X, box.Y, box.W, box.H)
	dc.SetColor(p.Outline)
	dc.SetLineWidth(2)
	dc.Stroke()
	return nil
}
