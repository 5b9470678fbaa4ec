package pathfind

// node is an entry in the A* open set
type node struct {
	ID  string  // waypoint id
	G   float64 // Cost from start to this node
	F   float64 // Total estimate (G + H)
	seq uint64  // push order, breaks ties on F
}

// priorityQueue implements heap.Interface for A*. Entries are never updated
// in place: a cheaper path pushes a new entry and the old one is skipped when
// popped.
type priorityQueue []*node

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].F != pq[j].F {
		return pq[i].F < pq[j].F
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *priorityQueue) Push(x any) {
	*pq = append(*pq, x.(*node))
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[0 : n-1]
	return item
}
