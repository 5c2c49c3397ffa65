package render

import (
	"math"

	"github.com/matzehuels/deckreel/pkg/resource"
)

const (
	// ScaleLarge applies to plates, wells and resource holders.
	ScaleLarge = 2.0
	// ScaleDefault applies to every other type.
	ScaleDefault = 1.5

	// DefaultTroughMaxVolume is assumed when a trough reports no positive
	// capacity.
	DefaultTroughMaxVolume = 1000.0

	// TroughPadding insets the liquid clip region from the trough outline.
	TroughPadding = 4.0

	wellRadiusRatio   = 0.7
	tipCornerRatio    = 0.2
	tipTriangleWidth  = 0.7
	tipTriangleHeight = 0.9
)

// Rect is an axis-aligned rectangle in canvas pixels.
type Rect struct {
	X, Y, W, H float64
}

// Scale returns the type's own drawing scale.
func Scale(t resource.Type) float64 {
	switch t {
	case resource.TypePlate, resource.TypeWell, resource.TypeResourceHolder:
		return ScaleLarge
	default:
		return ScaleDefault
	}
}

// EffectiveScale returns the scale a child of type child is drawn at when its
// parent has type parent and was drawn at parentScale. A child inherits the
// parent's scale when it is a well, or when the parent is a plate and the
// child is not a tip spot. Pass an empty parent for the root.
func EffectiveScale(child, parent resource.Type, parentScale float64) float64 {
	if parent == "" {
		return Scale(child)
	}
	if child == resource.TypeWell || (parent == resource.TypePlate && child != resource.TypeTipSpot) {
		return parentScale
	}
	return Scale(child)
}

// Box maps absolute resource geometry to canvas pixels at scale.
func Box(loc resource.Coordinate, sizeX, sizeY, scale float64) Rect {
	return Rect{X: loc.X * scale, Y: loc.Y * scale, W: sizeX * scale, H: sizeY * scale}
}

// Slice is one pie wedge, in radians.
type Slice struct {
	Label string
	Start float64
	Angle float64
}

// PieSlices splits a full circle among liquids in composition order. Each
// slice spans 2π·v/Σv and the first starts at angle 0. It returns nil when
// the composition is empty or its total is not positive.
func PieSlices(liquids []resource.Liquid) []Slice {
	total := resource.TotalVolume(liquids)
	if len(liquids) == 0 || total <= 0 {
		return nil
	}
	slices := make([]Slice, 0, len(liquids))
	start := 0.0
	for _, l := range liquids {
		angle := 2 * math.Pi * l.Volume / total
		slices = append(slices, Slice{Label: l.Label, Start: start, Angle: angle})
		start += angle
	}
	return slices
}

// FillRatio is the trough fill level, min(Σv/max, 1). A missing or
// non-positive max falls back to [DefaultTroughMaxVolume].
func FillRatio(liquids []resource.Liquid, maxVolume float64) float64 {
	if maxVolume <= 0 {
		maxVolume = DefaultTroughMaxVolume
	}
	ratio := resource.TotalVolume(liquids) / maxVolume
	if ratio > 1 {
		return 1
	}
	if ratio < 0 {
		return 0
	}
	return ratio
}

// TroughClipRect is the trough box inset by [TroughPadding] on every side.
func TroughClipRect(box Rect) Rect {
	return Rect{
		X: box.X + TroughPadding,
		Y: box.Y + TroughPadding,
		W: box.W - 2*TroughPadding,
		H: box.H - 2*TroughPadding,
	}
}

// TroughLiquidRect is the bottom-aligned liquid fill for ratio. Its height
// is floor(box.H·ratio); drawing is additionally clipped to
// [TroughClipRect].
func TroughLiquidRect(box Rect, ratio float64) Rect {
	h := math.Floor(box.H * ratio)
	return Rect{
		X: box.X + TroughPadding,
		Y: box.Y + box.H - h - TroughPadding,
		W: box.W - 2*TroughPadding,
		H: h,
	}
}
