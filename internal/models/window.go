package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Window is an inclusive range of UTC days.
type Window struct {
	From time.Time
	To   time.Time
}

var ErrEmptyWindow = errors.New("window ends before it starts")

// ParseWindow parses two YYYY-MM-DD dates into a Window.
func ParseWindow(from, to string) (Window, error) {
	f, err := time.Parse(DateLayout, strings.TrimSpace(from))
	if err != nil {
		return Window{}, fmt.Errorf("invalid window start: %w", err)
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(to))
	if err != nil {
		return Window{}, fmt.Errorf("invalid window end: %w", err)
	}
	w := Window{From: f, To: t}
	return w, w.Validate()
}

// MustWindow is ParseWindow for literals.
func MustWindow(from, to string) Window {
	w, err := ParseWindow(from, to)
	if err != nil {
		panic(err)
	}
	return w
}

func (w Window) IsZero() bool { return w.From.IsZero() && w.To.IsZero() }

func (w Window) Validate() error {
	if w.To.Before(w.From) {
		return fmt.Errorf("%w: %s", ErrEmptyWindow, w)
	}
	return nil
}

// Bounds returns the half-open timestamp range [start, end) covered by the window.
func (w Window) Bounds() (time.Time, time.Time) {
	start := truncateDay(w.From)
	end := truncateDay(w.To).AddDate(0, 0, 1)
	return start, end
}

// Contains reports whether t falls on one of the window's days.
func (w Window) Contains(t time.Time) bool {
	start, end := w.Bounds()
	u := t.UTC()
	return !u.Before(start) && u.Before(end)
}

func (w Window) String() string {
	return w.From.Format(DateLayout) + ".." + w.To.Format(DateLayout)
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
