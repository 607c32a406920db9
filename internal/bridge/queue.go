package bridge

import "sync"

type node struct {
	item Item
	next *node
}

// Queue is an unbounded FIFO safe for concurrent Put. Get never blocks.
// The lock covers only the link update.
type Queue struct {
	mu   sync.Mutex
	head *node
	tail *node
	n    int
}

// Put appends item to the back of the queue.
func (q *Queue) Put(item Item) {
	nd := &node{item: item}
	q.mu.Lock()
	if q.tail == nil {
		q.head = nd
	} else {
		q.tail.next = nd
	}
	q.tail = nd
	q.n++
	q.mu.Unlock()
}

// Get removes and returns the front item. ok is false when the queue is empty.
func (q *Queue) Get() (item Item, ok bool) {
	q.mu.Lock()
	nd := q.head
	if nd == nil {
		q.mu.Unlock()
		return Item{}, false
	}
	q.head = nd.next
	if q.head == nil {
		q.tail = nil
	}
	q.n--
	q.mu.Unlock()
	return nd.item, true
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}
