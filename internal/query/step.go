package query

import (
	"errors"
	"fmt"

	"github.com/rajindersingh041/sidebar-qa/internal/models"
)

// Step is one report step: a filtered count grouped by Dimensions, displayed with Index
// as row keys and Column spread across columns.
type Step struct {
	ID          string
	Title       string
	Description string
	Window      models.Window
	NamePrefix  string
	Name        string
	Dimensions  []models.Dimension
	Index       []models.Dimension
	Column      models.Dimension
	FillZero    bool
}

var (
	ErrNoDimensions = errors.New("step has no dimensions")
	ErrBadLayout    = errors.New("index and column must cover the step dimensions exactly")
)

// Validate checks the step can be built and pivoted.
func (s Step) Validate() error {
	if s.ID == "" {
		return errors.New("step has no id")
	}
	if len(s.Dimensions) == 0 {
		return fmt.Errorf("step %s: %w", s.ID, ErrNoDimensions)
	}
	seen := make(map[models.Dimension]bool, len(s.Dimensions))
	for _, d := range s.Dimensions {
		if !d.Valid() {
			return fmt.Errorf("step %s: %w: %q", s.ID, models.ErrUnknownDimension, d)
		}
		if seen[d] {
			return fmt.Errorf("step %s: duplicate dimension %q", s.ID, d)
		}
		seen[d] = true
	}

	layout := append([]models.Dimension{}, s.Index...)
	if s.Column != "" {
		layout = append(layout, s.Column)
	}
	if len(layout) != len(s.Dimensions) {
		return fmt.Errorf("step %s: %w", s.ID, ErrBadLayout)
	}
	used := make(map[models.Dimension]bool, len(layout))
	for _, d := range layout {
		if !seen[d] || used[d] {
			return fmt.Errorf("step %s: %w", s.ID, ErrBadLayout)
		}
		used[d] = true
	}
	if s.Window.IsZero() {
		return fmt.Errorf("step %s: no window", s.ID)
	}
	if err := s.Window.Validate(); err != nil {
		return fmt.Errorf("step %s: %w", s.ID, err)
	}
	return nil
}

// Filter returns the record filter equivalent to the step's WHERE clause.
func (s Step) Filter(wikis []string) models.Filter {
	return models.Filter{
		Window:     s.Window,
		NamePrefix: s.NamePrefix,
		Name:       s.Name,
		Wikis:      wikis,
	}
}

// WithWindow returns a copy of s covering w.
func (s Step) WithWindow(w models.Window) Step {
	s.Window = w
	return s
}
