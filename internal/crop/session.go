package crop

import (
	"errors"
	"fmt"
	"strings"
)

// Corner identifies a selection handle.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomLeft
	BottomRight
)

func (c Corner) String() string {
	switch c {
	case TopLeft:
		return "TL"
	case TopRight:
		return "TR"
	case BottomLeft:
		return "BL"
	case BottomRight:
		return "BR"
	}
	return "unknown"
}

// ParseCorner reads the short corner names written by Corner.String.
func ParseCorner(name string) (Corner, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TL":
		return TopLeft, nil
	case "TR":
		return TopRight, nil
	case "BL":
		return BottomLeft, nil
	case "BR":
		return BottomRight, nil
	}
	return 0, fmt.Errorf("unknown corner %q", name)
}

// State of a Session.
type State int

const (
	Idle State = iota
	Dragging
)

// ErrDragging is returned by Begin while another drag is in progress.
var ErrDragging = errors.New("a corner is already being dragged")

// Session is the selection over one loaded image. A drag moves from Idle to
// Dragging(corner) on Begin and back on End. Nudge is only meaningful while
// idle and moves the last corner that was grabbed.
type Session struct {
	bounds   Rect
	sel      Rect
	state    State
	active   Corner
	selected Corner
}

// NewSession starts a session with the initial selection for bounds.
func NewSession(bounds Rect) *Session {
	s := &Session{}
	s.Reset(bounds)
	return s
}

// Reset discards the selection, as when a new image is loaded.
func (s *Session) Reset(bounds Rect) {
	s.bounds = bounds
	s.sel = Initial(bounds)
	s.state = Idle
	s.selected = BottomRight
}

func (s *Session) Selection() Rect  { return s.sel }
func (s *Session) Bounds() Rect     { return s.bounds }
func (s *Session) State() State     { return s.state }
func (s *Session) Selected() Corner { return s.selected }

// Select replaces the selection with r clamped to the bounds, as when a
// client restores a selection it kept. A result smaller than MinSize falls
// back to the initial selection. Any drag in progress is dropped.
func (s *Session) Select(r Rect) {
	left, top := max(r.X, s.bounds.X), max(r.Y, s.bounds.Y)
	right, bottom := min(r.Right(), s.bounds.Right()), min(r.Bottom(), s.bounds.Bottom())
	s.sel = Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
	s.state = Idle
	if s.sel.Width < MinSize || s.sel.Height < MinSize {
		s.sel = Initial(s.bounds)
	}
}

// Choose makes c the corner Nudge moves.
func (s *Session) Choose(c Corner) error {
	if s.state == Dragging {
		return ErrDragging
	}
	s.selected = c
	return nil
}

// Begin grabs corner c.
func (s *Session) Begin(c Corner) error {
	if s.state == Dragging {
		return ErrDragging
	}
	s.state = Dragging
	s.active = c
	s.selected = c
	return nil
}

// Move drags the active corner to p. It reports false when no drag is in progress.
func (s *Session) Move(p Point) bool {
	if s.state != Dragging {
		return false
	}
	s.moveCorner(s.active, p)
	return true
}

// End releases the corner. A selection that ended up smaller than MinSize
// is replaced with the initial one.
func (s *Session) End() {
	s.state = Idle
	if s.sel.Width < MinSize || s.sel.Height < MinSize {
		s.sel = Initial(s.bounds)
	}
}

// Nudge shifts the selected corner by (dx, dy). It reports false when
// nothing moved.
func (s *Session) Nudge(dx, dy float64) bool {
	if s.state == Dragging || (dx == 0 && dy == 0) {
		return false
	}
	before := s.sel
	s.moveCorner(s.selected, s.cornerPoint(s.selected).add(dx, dy))
	return s.sel != before
}

func (s *Session) cornerPoint(c Corner) Point {
	switch c {
	case TopLeft:
		return Point{X: s.sel.X, Y: s.sel.Y}
	case TopRight:
		return Point{X: s.sel.Right(), Y: s.sel.Y}
	case BottomLeft:
		return Point{X: s.sel.X, Y: s.sel.Bottom()}
	}
	return Point{X: s.sel.Right(), Y: s.sel.Bottom()}
}

func (p Point) add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// moveCorner places corner c at p while the opposite corner stays put. The
// corner is kept inside the bounds and at least MinSize from the opposite edges.
func (s *Session) moveCorner(c Corner, p Point) {
	right, bottom := s.sel.Right(), s.sel.Bottom()
	maxRight, maxBottom := s.bounds.Right(), s.bounds.Bottom()

	left := func() {
		x := min(max(p.X, s.bounds.X), right-MinSize)
		s.sel.X, s.sel.Width = x, right-x
	}
	top := func() {
		y := min(max(p.Y, s.bounds.Y), bottom-MinSize)
		s.sel.Y, s.sel.Height = y, bottom-y
	}
	rightEdge := func() {
		r := max(min(p.X, maxRight), s.sel.X+MinSize)
		s.sel.Width = r - s.sel.X
	}
	bottomEdge := func() {
		b := max(min(p.Y, maxBottom), s.sel.Y+MinSize)
		s.sel.Height = b - s.sel.Y
	}

	switch c {
	case TopLeft:
		left()
		top()
	case TopRight:
		rightEdge()
		top()
	case BottomLeft:
		left()
		bottomEdge()
	default:
		rightEdge()
		bottomEdge()
	}
}
