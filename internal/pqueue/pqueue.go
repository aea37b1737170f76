// Package pqueue provides the priority queue behind the timer queues of
// the reactors.
package pqueue

// Lesser is the element constraint of [Queue].
type Lesser[E any] interface {
	Less(v E) bool
}

// Queue is a binary min-heap. Elements that compare equal are popped in
// arrival order (FIFO), so timers due at the same instant run in the
// order they were scheduled.
//
// The zero value is an empty queue ready for use.
type Queue[E Lesser[E]] struct {
	heap []entry[E]
	seq  uint64
}

type entry[E Lesser[E]] struct {
	v   E
	seq uint64
}

func (x entry[E]) before(y entry[E]) bool {
	if x.v.Less(y.v) {
		return true
	}
	return !y.v.Less(x.v) && x.seq < y.seq
}

// Empty reports whether q has no elements.
func (q *Queue[E]) Empty() bool { return len(q.heap) == 0 }

// Len returns the number of elements in q.
func (q *Queue[E]) Len() int { return len(q.heap) }

// Push adds v to q.
func (q *Queue[E]) Push(v E) {
	q.heap = append(q.heap, entry[E]{v, q.seq})
	q.seq++
	q.up(len(q.heap) - 1)
}

// Peek returns the least element without removing it.
// It panics if q is empty.
func (q *Queue[E]) Peek() E { return q.heap[0].v }

// Pop removes and returns the least element.
// It panics if q is empty.
func (q *Queue[E]) Pop() E {
	v := q.heap[0].v
	n := len(q.heap) - 1
	q.heap[0] = q.heap[n]
	q.heap[n] = entry[E]{}
	q.heap = q.heap[:n]
	if n > 0 {
		q.down(0)
	} else {
		q.seq = 0
	}
	return v
}

func (q *Queue[E]) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !q.heap[i].before(q.heap[parent]) {
			return
		}
		q.heap[i], q.heap[parent] = q.heap[parent], q.heap[i]
		i = parent
	}
}

func (q *Queue[E]) down(i int) {
	n := len(q.heap)
	for {
		least := i
		if l := 2*i + 1; l < n && q.heap[l].before(q.heap[least]) {
			least = l
		}
		if r := 2*i + 2; r < n && q.heap[r].before(q.heap[least]) {
			least = r
		}
		if least == i {
			return
		}
		q.heap[i], q.heap[least] = q.heap[least], q.heap[i]
		i = least
	}
}
