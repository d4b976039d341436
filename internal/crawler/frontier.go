package crawler

// Frontier is the transient breadth-first crawl state: the visited set and
// the bounded FIFO queue of paths waiting to be fetched.
//
// Every path is marked visited before it can be enqueued, so no path is
// ever queued twice. The queue never grows beyond its capacity; Push on a
// saturated queue leaves the path visited but unqueued.
type Frontier struct {
	visited  map[string]struct{}
	queue    []string
	maxQueue int
	peak     int
}

// NewFrontier creates an empty frontier whose queue holds at most maxQueue
// paths. A non-positive maxQueue is treated as 1.
func NewFrontier(maxQueue int) *Frontier {
	if maxQueue < 1 {
		maxQueue = 1
	}
	return &Frontier{
		visited:  make(map[string]struct{}),
		queue:    make([]string, 0, min(maxQueue, 64)),
		maxQueue: maxQueue,
	}
}

// Visited reports whether path was already marked.
func (f *Frontier) Visited(path string) bool {
	_, ok := f.visited[path]
	return ok
}

// Visit marks path as visited. It returns false if it already was.
func (f *Frontier) Visit(path string) bool {
	if f.Visited(path) {
		return false
	}
	f.visited[path] = struct{}{}
	return true
}

// Push enqueues a visited path if the queue has room.
// It returns false when the queue is saturated or path was never visited.
func (f *Frontier) Push(path string) bool {
	if !f.Visited(path) || len(f.queue) >= f.maxQueue {
		return false
	}
	f.queue = append(f.queue, path)
	f.peak = max(f.peak, len(f.queue))
	return true
}

// Pop removes and returns the oldest queued path.
func (f *Frontier) Pop() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	path := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]
	return path, true
}

// Len returns the current queue length.
func (f *Frontier) Len() int {
	return len(f.queue)
}

// Peak returns the largest queue length observed.
func (f *Frontier) Peak() int {
	return f.peak
}

// VisitedCount returns the number of distinct paths marked visited.
func (f *Frontier) VisitedCount() int {
	return len(f.visited)
}
