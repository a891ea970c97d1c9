package utils

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer. When full, Append overwrites the
// oldest element. It is not safe for concurrent use; owners lock around it.
// -----------------------------------------------------------------------------

type RingBuffer[T any] struct {
	data     []T
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}

	return &RingBuffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// -----------------------------------------------------------------------------

// Append adds an element. When the buffer is full the oldest element is
// overwritten and returned with evicted=true.
func (rb *RingBuffer[T]) Append(item T) (old T, evicted bool) {
	if rb.size == rb.capacity {
		old = rb.data[rb.index]
		evicted = true
	}

	rb.data[rb.index] = item
	rb.index = (rb.index + 1) % rb.capacity

	// Update size (never exceeds capacity)
	if rb.size < rb.capacity {
		rb.size++
	}
	return old, evicted
}

// -----------------------------------------------------------------------------

// GetLatest returns the n newest elements, oldest first.
func (rb *RingBuffer[T]) GetLatest(n int) []T {
	if rb.size == 0 || n <= 0 {
		return []T{}
	}

	count := n
	if n > rb.size {
		count = rb.size
	}

	result := make([]T, count)

	// Latest data is at index-1
	startIdx := (rb.index - count + rb.capacity) % rb.capacity
	for i := 0; i < count; i++ {
		result[i] = rb.data[(startIdx+i)%rb.capacity]
	}

	return result
}

// -----------------------------------------------------------------------------

// GetAll returns all data in insertion order (oldest to newest)
func (rb *RingBuffer[T]) GetAll() []T {
	return rb.GetLatest(rb.size)
}

// -----------------------------------------------------------------------------

// Last returns the newest element.
func (rb *RingBuffer[T]) Last() (T, bool) {
	var zero T
	if rb.size == 0 {
		return zero, false
	}
	return rb.data[(rb.index-1+rb.capacity)%rb.capacity], true
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (rb *RingBuffer[T]) Size() int {
	return rb.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity
func (rb *RingBuffer[T]) Capacity() int {
	return rb.capacity
}

// -----------------------------------------------------------------------------

// Resize changes the capacity of the buffer.
// If newCapacity < size, the oldest elements are dropped.
func (rb *RingBuffer[T]) Resize(newCapacity int) {
	if newCapacity <= 0 || newCapacity == rb.capacity {
		return
	}

	count := rb.size
	if count > newCapacity {
		count = newCapacity
	}

	newData := make([]T, newCapacity)
	copy(newData, rb.GetLatest(count))

	rb.data = newData
	rb.capacity = newCapacity
	rb.size = count
	rb.index = count % newCapacity
}

// -----------------------------------------------------------------------------

// Clear resets the buffer and drops references held by old elements.
func (rb *RingBuffer[T]) Clear() {
	clear(rb.data)
	rb.index = 0
	rb.size = 0
}
