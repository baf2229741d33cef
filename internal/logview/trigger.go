package logview

// DefaultThreshold is how many viewport heights from the bottom the next
// page is requested.
const DefaultThreshold = 1.5

// ScrollMetrics describes the scroll container.
type ScrollMetrics struct {
	ScrollTop    int
	ClientHeight int
	ScrollHeight int
}

// NextPager is the part of a paged source the trigger drives.
type NextPager interface {
	HasNextPage() bool
	IsFetchingNextPage() bool
	RequestNextPage()
}

// ScrollTrigger requests the next page when the viewport nears the bottom of
// the loaded content.
type ScrollTrigger struct {
	Threshold float64
}

// NearBottom reports whether m is within Threshold viewport heights of the end.
func (t ScrollTrigger) NearBottom(m ScrollMetrics) bool {
	threshold := t.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return float64(m.ScrollTop+m.ClientHeight) >= float64(m.ScrollHeight)-float64(m.ClientHeight)*threshold
}

// OnScroll requests the next page when near the bottom, more pages exist and
// no load is in flight. It reports whether a request was issued.
func (t ScrollTrigger) OnScroll(m ScrollMetrics, pager NextPager) bool {
	if !t.NearBottom(m) {
		return false
	}
	if !pager.HasNextPage() || pager.IsFetchingNextPage() {
		return false
	}
	pager.RequestNextPage()
	return true
}
