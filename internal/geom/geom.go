// Package geom converts between the rectangle form used by the drawing
// surface (origin + size) and the corner form persisted in book records.
package geom

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is a position in image pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in image pixels.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Rect is an axis-aligned rectangle as produced by the drawing surface.
// Size may be negative while the pointer is dragged up or left.
type Rect struct {
	Origin Point `json:"origin"`
	Size   Size  `json:"size"`
}

// Corners is the persisted geometry of a region: top-left (X1,Y1) and
// bottom-right (X2,Y2) in whole pixels.
type Corners struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// ToCorners converts an origin/size pair to corner form.
// Values are truncated toward zero, matching the integer cast used when the
// record format was first written.
func ToCorners(origin Point, size Size) Corners {
	return Corners{
		X1: int(origin.X),
		Y1: int(origin.Y),
		X2: int(origin.X + size.W),
		Y2: int(origin.Y + size.H),
	}
}

// FromCorners converts corner form back to origin/size.
// Inverted corners are swapped first, so the returned size is never negative.
func FromCorners(c Corners) (Point, Size) {
	c = c.Normalize()
	return Point{X: float64(c.X1), Y: float64(c.Y1)},
		Size{W: float64(c.X2 - c.X1), H: float64(c.Y2 - c.Y1)}
}

// FromPoints builds the rectangle spanned by a drag gesture.
func FromPoints(start, end Point) Rect {
	return Rect{
		Origin: start,
		Size:   Size{W: end.X - start.X, H: end.Y - start.Y},
	}
}

// Normalize returns r with a non-negative size and the same covered area.
func (r Rect) Normalize() Rect {
	if r.Size.W < 0 {
		r.Origin.X += r.Size.W
		r.Size.W = -r.Size.W
	}
	if r.Size.H < 0 {
		r.Origin.Y += r.Size.H
		r.Size.H = -r.Size.H
	}
	return r
}

// Corners returns the normalized corner form of r.
func (r Rect) Corners() Corners {
	n := r.Normalize()
	return ToCorners(n.Origin, n.Size)
}

// Normalize swaps inverted coordinates so that X1 <= X2 and Y1 <= Y2.
func (c Corners) Normalize() Corners {
	if c.X2 < c.X1 {
		c.X1, c.X2 = c.X2, c.X1
	}
	if c.Y2 < c.Y1 {
		c.Y1, c.Y2 = c.Y2, c.Y1
	}
	return c
}

// Degenerate reports whether the normalized rectangle has no area.
func (c Corners) Degenerate() bool {
	n := c.Normalize()
	return n.X1 == n.X2 || n.Y1 == n.Y2
}

// Width of the normalized rectangle.
func (c Corners) Width() int {
	n := c.Normalize()
	return n.X2 - n.X1
}

// Height of the normalized rectangle.
func (c Corners) Height() int {
	n := c.Normalize()
	return n.Y2 - n.Y1
}

// Contains reports whether p lies inside the normalized rectangle.
// Edges are inclusive so a click on the border still hits the region.
func (c Corners) Contains(p Point) bool {
	n := c.Normalize()
	return p.X >= float64(n.X1) && p.X <= float64(n.X2) &&
		p.Y >= float64(n.Y1) && p.Y <= float64(n.Y2)
}

// Translate moves the rectangle by (dx, dy).
func (c Corners) Translate(dx, dy int) Corners {
	return Corners{X1: c.X1 + dx, Y1: c.Y1 + dy, X2: c.X2 + dx, Y2: c.Y2 + dy}
}

func (c Corners) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", c.X1, c.Y1, c.X2, c.Y2)
}

// ParseCorners parses "x1,y1,x2,y2", with or without surrounding
// parentheses, as written by Corners.String.
func ParseCorners(s string) (Corners, error) {
	s = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "("), ")")
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Corners{}, fmt.Errorf("corners %q: want x1,y1,x2,y2", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Corners{}, fmt.Errorf("corners %q: %w", s, err)
		}
		v[i] = n
	}
	return Corners{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, nil
}
