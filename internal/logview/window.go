package logview

// DefaultOverscan is the number of rows rendered beyond each viewport edge.
const DefaultOverscan = 6

// Window is the slice of rows to render and where to place it.
type Window struct {
	Start       int
	End         int
	OffsetY     int
	TotalHeight int
}

// Len is the number of rows in the window.
func (w Window) Len() int {
	return w.End - w.Start
}

// ComputeVisibleWindow returns the half-open row range [Start, End) that
// intersects the viewport, padded by overscan rows on each side and clamped
// to [0, count]. TotalHeight is the height of every row so the scroll extent
// matches the full list.
func ComputeVisibleWindow(scrollTop, viewportHeight, rowHeight, overscan, count int) Window {
	if rowHeight <= 0 {
		rowHeight = 1
	}
	if count <= 0 {
		return Window{}
	}
	if scrollTop < 0 {
		scrollTop = 0
	}
	if viewportHeight < 0 {
		viewportHeight = 0
	}
	if overscan < 0 {
		overscan = 0
	}
	start := scrollTop/rowHeight - overscan
	if start < 0 {
		start = 0
	}
	end := ceilDiv(scrollTop+viewportHeight, rowHeight) + overscan
	if end > count {
		end = count
	}
	if start > end {
		start = end
	}
	return Window{
		Start:       start,
		End:         end,
		OffsetY:     start * rowHeight,
		TotalHeight: count * rowHeight,
	}
}

// MaxWindowRows bounds Window.Len for any count and scroll position.
func MaxWindowRows(viewportHeight, rowHeight, overscan int) int {
	if rowHeight <= 0 {
		rowHeight = 1
	}
	// An unaligned scroll offset exposes a partial row at both edges.
	return ceilDiv(viewportHeight, rowHeight) + 1 + 2*overscan
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
