package app

// Navigator tracks the current question index with bounded movement.
// Out-of-range requests are no-ops rather than errors; the UI treats the ends
// as walls, not failures.
type Navigator struct {
	index int
	total int
}

func NewNavigator(total int) *Navigator {
	return &Navigator{total: total}
}

// Current returns the active question index.
func (n *Navigator) Current() int {
	return n.index
}

// Total returns the question count.
func (n *Navigator) Total() int {
	return n.total
}

// GoTo jumps to index if it is in range; otherwise the position is unchanged.
func (n *Navigator) GoTo(index int) {
	if index < 0 || index >= n.total {
		return
	}
	n.index = index
}

// Next advances one question unless already at the end.
func (n *Navigator) Next() {
	n.GoTo(n.index + 1)
}

// Previous steps back one question unless already at the start.
func (n *Navigator) Previous() {
	n.GoTo(n.index - 1)
}
