package rangequeue

import "parcelscraper/internal/dates"

// Deque is a double ended queue of pending ranges. The controller is its
// only user, it is not safe for concurrent use.
type Deque struct {
	items []dates.Range
}

func NewDeque(initial ...dates.Range) *Deque {
	items := make([]dates.Range, len(initial))
	copy(items, initial)
	return &Deque{items: items}
}

func (d *Deque) Len() int {
	return len(d.items)
}

// Front returns the range at the front without removing it.
func (d *Deque) Front() (dates.Range, bool) {
	if len(d.items) == 0 {
		return dates.Range{}, false
	}
	return d.items[0], true
}

func (d *Deque) PopFront() (dates.Range, bool) {
	if len(d.items) == 0 {
		return dates.Range{}, false
	}
	r := d.items[0]
	d.items = d.items[1:]
	return r, true
}

func (d *Deque) PushFront(r dates.Range) {
	d.items = append(d.items, dates.Range{})
	copy(d.items[1:], d.items)
	d.items[0] = r
}

func (d *Deque) PushBack(r dates.Range) {
	d.items = append(d.items, r)
}

// Ranges returns a copy of the pending ranges, front first.
func (d *Deque) Ranges() []dates.Range {
	out := make([]dates.Range, len(d.items))
	copy(out, d.items)
	return out
}
