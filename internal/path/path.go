// Package path computes movement over the board: the reachable-tile set
// bounded by a move-point budget, and the tile-by-tile traversal of a chosen
// destination with its probabilistic ice hazard.
package path

import (
	"container/heap"

	"gridrush/server/internal/grid"
	"gridrush/server/internal/rng"
)

// FallChance is the independent per-ice-tile probability that a traversal
// stops early.
const FallChance = 0.10

// Route is the cheapest path to one reachable tile. Path starts at the
// origin and ends at the tile itself.
type Route struct {
	Path   []grid.Coord `json:"path"`
	Weight int          `json:"weight"`
}

// ReachSet maps canonical coordinate keys to their cheapest route.
type ReachSet map[string]Route

// Contains reports whether the coordinate is reachable.
func (r ReachSet) Contains(c grid.Coord) bool {
	_, ok := r[c.Key()]
	return ok
}

// Route looks up the cheapest route to a coordinate.
func (r ReachSet) Route(c grid.Coord) (Route, bool) {
	route, ok := r[c.Key()]
	return route, ok
}

type searchNode struct {
	coord  grid.Coord
	weight int
	seq    int
	index  int
	parent *searchNode
}

// searchQueue orders nodes by cumulative weight, breaking ties by discovery
// order so results are deterministic for a single-threaded expansion.
type searchQueue []*searchNode

func (q searchQueue) Len() int { return len(q) }

func (q searchQueue) Less(i, j int) bool {
	if q[i].weight != q[j].weight {
		return q[i].weight < q[j].weight
	}
	return q[i].seq < q[j].seq
}

func (q searchQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *searchQueue) Push(x any) {
	n := len(*q)
	node := x.(*searchNode)
	node.index = n
	*q = append(*q, node)
}

func (q *searchQueue) Pop() any {
	old := *q
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*q = old[:n-1]
	return node
}

func reconstruct(end *searchNode) []grid.Coord {
	if end == nil {
		return nil
	}
	route := make([]grid.Coord, 0)
	for node := end; node != nil; node = node.parent {
		route = append(route, node.coord)
	}
	for i := 0; i < len(route)/2; i++ {
		j := len(route) - 1 - i
		route[i], route[j] = route[j], route[i]
	}
	return route
}

// Reachable expands outward from origin and returns every tile whose cheapest
// cumulative entry cost fits the budget. Walls, closed doors, and occupied
// tiles are excluded as neighbors. The origin itself is always present with
// weight 0 so a caller with no budget left can still elect to stay put.
//
// Ice costs 0 and water costs 2, so cost is not proportional to hop count; a
// weighted expansion (lowest known cumulative cost first) is required rather
// than plain BFS.
func Reachable(m *grid.Map, origin grid.Coord, budget int, occupied func(grid.Coord) bool) ReachSet {
	result := make(ReachSet)
	if m == nil {
		return result
	}

	open := &searchQueue{}
	heap.Init(open)
	seq := 0
	start := &searchNode{coord: origin, weight: 0, seq: seq}
	heap.Push(open, start)

	best := map[grid.Coord]int{origin: 0}

	for open.Len() > 0 {
		current := heap.Pop(open).(*searchNode)
		if settled, ok := best[current.coord]; ok && current.weight > settled {
			continue
		}
		if _, done := result[current.coord.Key()]; done {
			continue
		}
		result[current.coord.Key()] = Route{
			Path:   reconstruct(current),
			Weight: current.weight,
		}

		for _, neighbor := range current.coord.Neighbors() {
			cost, ok := m.StepCost(neighbor, occupied)
			if !ok {
				continue
			}
			weight := current.weight + cost
			if weight > budget {
				continue
			}
			if prev, seen := best[neighbor]; seen && weight >= prev {
				continue
			}
			best[neighbor] = weight
			seq++
			heap.Push(open, &searchNode{
				coord:  neighbor,
				weight: weight,
				seq:    seq,
				parent: current,
			})
		}
	}

	return result
}

// Traversal is the outcome of walking a chosen destination.
type Traversal struct {
	// Steps are the tiles actually entered, origin excluded. Shorter than
	// the planned path when a fall cut the walk short.
	Steps []grid.Coord `json:"steps"`
	// Cost is the move points consumed by the traversed prefix.
	Cost int `json:"cost"`
	// Fell reports a failed ice check; the remainder of the plan was
	// discarded and the caller must end the actor's turn.
	Fell bool `json:"fell"`
}

// End returns the tile the actor finished on, or the origin when no step was
// taken.
func (t Traversal) End(origin grid.Coord) grid.Coord {
	if len(t.Steps) == 0 {
		return origin
	}
	return t.Steps[len(t.Steps)-1]
}

// Traverse walks the cheapest path from origin to dest tile by tile. Each ice
// tile entered triggers an independent fall draw at FallChance unless the
// actor has traction; a fall keeps the actor on that tile and discards the
// rest of the plan. An unreachable destination yields an empty traversal.
func Traverse(m *grid.Map, origin, dest grid.Coord, budget int, occupied func(grid.Coord) bool, roller rng.Roller, traction bool) (Traversal, bool) {
	reach := Reachable(m, origin, budget, occupied)
	route, ok := reach.Route(dest)
	if !ok {
		return Traversal{}, false
	}

	result := Traversal{}
	// route.Path[0] is the origin.
	for i := 1; i < len(route.Path); i++ {
		tile := route.Path[i]
		cost, ok := m.StepCost(tile, occupied)
		if !ok {
			// Grid changed under us; stop at the last legal tile.
			break
		}
		result.Steps = append(result.Steps, tile)
		result.Cost += cost
		if m.TerrainAt(tile) == grid.TerrainIce && !traction {
			if roller != nil && roller.Chance(FallChance) {
				result.Fell = true
				break
			}
		}
	}
	return result, true
}
