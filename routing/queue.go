package routing

import "kuanb/gosm-transport/network"

type pqItem struct {
	edge network.DirectedEdgeID
	cost float64
	seq  int
	// index into the goal targets, or -1 for the end of a fully traversed edge
	target int
	// edge the goal was reached from; empty when start and goal share an edge
	via network.DirectedEdgeID
	// seed the goal was reached from directly
	seed int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].cost != pq[j].cost {
		return pq[i].cost < pq[j].cost
	}
	return pq[i].seq < pq[j].seq
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*pqItem)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[0 : n-1]
	return item
}
