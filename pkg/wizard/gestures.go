package wizard

import (
	"math"

	"github.com/goliatone/go-formwizard/pkg/form"
)

// DefaultSwipeDistance is the minimum horizontal travel, in pixels, for a
// swipe to count.
const DefaultSwipeDistance = 50.0

// Key names understood by HandleKey.
const (
	KeyEnter      = "Enter"
	KeyEscape     = "Escape"
	KeyArrowLeft  = "ArrowLeft"
	KeyArrowRight = "ArrowRight"
)

// KeyEvent is a key press. Target is the focused input, if any.
type KeyEvent struct {
	Key    string
	Ctrl   bool
	Meta   bool
	Target *form.Input
}

// HandleKey applies the keyboard contract and reports whether the key was
// consumed:
//
//	Enter           next, except in a textarea or on the last question
//	Escape          previous, unless a modal dialog is open
//	Ctrl/Cmd+Arrow  next or previous wherever focus is
func (n *Navigator) HandleKey(e KeyEvent) bool {
	if e.Ctrl || e.Meta {
		switch e.Key {
		case KeyArrowRight:
			n.Next()
			return true
		case KeyArrowLeft:
			n.Previous()
			return true
		}
		return false
	}

	switch e.Key {
	case KeyEnter:
		if e.Target != nil && e.Target.Kind == form.KindTextArea {
			return false
		}
		if n.Index() == len(n.questions)-1 {
			return false
		}
		n.Next()
		return true
	case KeyEscape:
		if n.modalOpen != nil && n.modalOpen() {
			return false
		}
		n.Previous()
		return true
	}
	return false
}

type touchPoint struct {
	x, y     float64
	suppress bool
}

// TouchStart records the start of a gesture. focus is the input holding
// focus when the gesture began.
func (n *Navigator) TouchStart(x, y float64, focus *form.Input) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.touch = &touchPoint{
		x:        x,
		y:        y,
		suppress: focus != nil && focus.Kind.Textual(),
	}
}

// TouchEnd completes a gesture. A mostly horizontal swipe longer than the
// minimum distance moves forward (leftwards swipe) or back (rightwards).
// It reports whether a navigation was attempted.
func (n *Navigator) TouchEnd(x, y float64) bool {
	n.mu.Lock()
	start := n.touch
	n.touch = nil
	n.mu.Unlock()

	if start == nil || start.suppress {
		return false
	}
	dx := x - start.x
	dy := y - start.y
	if math.Abs(dx) < n.swipeMin || math.Abs(dx) <= math.Abs(dy) {
		return false
	}
	if dx < 0 {
		n.Next()
	} else {
		n.Previous()
	}
	return true
}
