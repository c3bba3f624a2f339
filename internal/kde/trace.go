package kde

// Boundary tracing over a boolean cell mask. Every included cell
// contributes one directed unit edge per side that faces a non-included
// cell (or the grid edge), oriented so the included cell lies on the left.
// Following edges head to tail yields closed rings: counter-clockwise
// around regions and clockwise around holes. Where two included cells
// touch only at a corner, the walk turns left, so diagonal neighbours
// stay separate regions (4-connectivity).

type direction uint8

const (
	east direction = iota
	north
	west
	south
)

func (d direction) left() direction  { return (d + 1) % 4 }
func (d direction) right() direction { return (d + 3) % 4 }

type vertex struct{ x, y int }

type boundaryEdge struct {
	from vertex
	dir  direction
}

func (e boundaryEdge) to() vertex {
	switch e.dir {
	case east:
		return vertex{e.from.x + 1, e.from.y}
	case north:
		return vertex{e.from.x, e.from.y + 1}
	case west:
		return vertex{e.from.x - 1, e.from.y}
	default:
		return vertex{e.from.x, e.from.y - 1}
	}
}

// outsideCell returns the cell on the right of the edge, which is never
// part of the region the edge bounds.
func (e boundaryEdge) outsideCell() (i, j int) {
	switch e.dir {
	case east:
		return e.from.x, e.from.y - 1
	case north:
		return e.from.x, e.from.y
	case west:
		return e.from.x - 1, e.from.y
	default:
		return e.from.x - 1, e.from.y - 1
	}
}

// tracedRing is a closed lattice ring. vertices[0] == vertices[len-1].
type tracedRing struct {
	vertices []vertex
	// area2 is twice the signed area in cell units: positive for
	// counter-clockwise (outer) rings, negative for holes.
	area2 int
	// probe is a cell just outside the ring's region, across its first edge.
	probeI, probeJ int
}

func (r tracedRing) isHole() bool { return r.area2 < 0 }

func traceRings(mask []bool, nx, ny int) []tracedRing {
	in := func(i, j int) bool {
		return i >= 0 && j >= 0 && i < nx && j < ny && mask[j*nx+i]
	}

	var edges []boundaryEdge
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			if !mask[j*nx+i] {
				continue
			}
			if !in(i, j-1) {
				edges = append(edges, boundaryEdge{vertex{i, j}, east})
			}
			if !in(i+1, j) {
				edges = append(edges, boundaryEdge{vertex{i + 1, j}, north})
			}
			if !in(i, j+1) {
				edges = append(edges, boundaryEdge{vertex{i + 1, j + 1}, west})
			}
			if !in(i-1, j) {
				edges = append(edges, boundaryEdge{vertex{i, j + 1}, south})
			}
		}
	}

	// A lattice vertex starts at most two boundary edges.
	outgoing := make(map[vertex][]int, len(edges))
	for k, e := range edges {
		outgoing[e.from] = append(outgoing[e.from], k)
	}

	next := func(v vertex, incoming direction) int {
		cands := outgoing[v]
		for _, want := range [...]direction{incoming.left(), incoming, incoming.right()} {
			for _, k := range cands {
				if edges[k].dir == want {
					return k
				}
			}
		}
		return -1
	}

	used := make([]bool, len(edges))
	var rings []tracedRing
	for start := range edges {
		if used[start] {
			continue
		}
		used[start] = true
		ring := tracedRing{vertices: []vertex{edges[start].from}}
		ring.probeI, ring.probeJ = edges[start].outsideCell()

		cur := start
		for {
			v := edges[cur].to()
			ring.vertices = append(ring.vertices, v)
			k := next(v, edges[cur].dir)
			if k < 0 || k == start {
				break
			}
			used[k] = true
			cur = k
		}

		for k := 0; k+1 < len(ring.vertices); k++ {
			a, b := ring.vertices[k], ring.vertices[k+1]
			ring.area2 += a.x*b.y - b.x*a.y
		}
		tracef("traced ring: %d vertices, area2=%d", len(ring.vertices), ring.area2)
		rings = append(rings, ring)
	}
	return rings
}
