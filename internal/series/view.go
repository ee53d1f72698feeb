// internal/series/view.go
package series

import "fmt"

// View returns the visible sub-range [start, end] in unix milliseconds.
func (s *Store) View() (start, end int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.start, s.view.end
}

// Following reports whether the view tracks the newest sample.
func (s *Store) Following() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.follow
}

// Visible returns a copy of the samples inside the view.
func (s *Store) Visible() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSamples(s.rangeLocked(s.view.start, s.view.end))
}

// ScrollView pans the view by delta milliseconds (negative = back in time).
// The view is kept inside the retained span. Panning back onto the newest
// sample of an unpinned store resumes tail following.
func (s *Store) ScrollView(delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lo, hi, ok := s.spanLocked()
	if !ok {
		return
	}

	s.view.follow = false
	s.view.start += delta
	s.view.end += delta
	s.clampLocked(lo, hi)

	if !s.pinned && s.view.end >= hi {
		s.view.follow = true
	}
}

// ZoomView scales the view around focus. factor > 1 zooms in.
// The focus keeps its relative position inside the view.
func (s *Store) ZoomView(focus int64, factor float64) error {
	if !(factor > 0) {
		return fmt.Errorf("series: zoom factor must be > 0 (got %v)", factor)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lo, hi, ok := s.spanLocked()
	if !ok {
		return nil
	}

	width := s.view.end - s.view.start
	if width <= 0 {
		width = s.cfg.ViewSpan.Milliseconds()
		s.view.start = s.view.end - width
	}

	if focus < s.view.start {
		focus = s.view.start
	}
	if focus > s.view.end {
		focus = s.view.end
	}
	ratio := float64(focus-s.view.start) / float64(width)

	maxWidth := hi - lo
	if span := s.cfg.ViewSpan.Milliseconds(); span > maxWidth {
		maxWidth = span
	}
	next := int64(float64(width) / factor)
	if next < minViewSpan.Milliseconds() {
		next = minViewSpan.Milliseconds()
	}
	if next > maxWidth {
		next = maxWidth
	}

	s.view.follow = false
	s.view.start = focus - int64(ratio*float64(next))
	s.view.end = s.view.start + next
	s.clampLocked(lo, hi)
	return nil
}

// spanLocked is the interval the view may move within.
func (s *Store) spanLocked() (lo, hi int64, ok bool) {
	if s.pinned {
		return s.pinStart, s.pinEnd, true
	}
	n := len(s.samples)
	if n == 0 {
		return 0, 0, false
	}
	return s.samples[0].At, s.samples[n-1].At, true
}

// clampLocked shifts the view into [lo, hi] without changing its width,
// unless the view is wider than the span, in which case it starts at lo.
func (s *Store) clampLocked(lo, hi int64) {
	w := s.view.end - s.view.start
	if s.view.end > hi {
		s.view.end = hi
		s.view.start = hi - w
	}
	if s.view.start < lo {
		s.view.start = lo
		s.view.end = lo + w
	}
}

func (s *Store) followLocked() {
	n := len(s.samples)
	if n == 0 {
		return
	}
	w := s.view.end - s.view.start
	if w <= 0 {
		w = s.cfg.ViewSpan.Milliseconds()
	}
	s.view.end = s.samples[n-1].At
	s.view.start = s.view.end - w
}
