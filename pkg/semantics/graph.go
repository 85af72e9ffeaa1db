package semantics

// JoinGraph is a directed graph of join-path edges between tables. Edges
// are directed: a missing reverse edge means no reverse join path exists,
// and path search never assumes symmetry.
type JoinGraph struct {
	edges map[string][]Edge
}

// NewJoinGraph creates an empty graph.
func NewJoinGraph() *JoinGraph {
	return &JoinGraph{edges: make(map[string][]Edge)}
}

// AddEdge adds a directed edge.
func (g *JoinGraph) AddEdge(e Edge) {
	g.edges[e.From] = append(g.edges[e.From], e)
}

// DirectEdge returns the edge from one table to another, if present.
func (g *JoinGraph) DirectEdge(from, to string) (Edge, bool) {
	for _, e := range g.edges[from] {
		if e.To == to {
			return e, true
		}
	}
	return Edge{}, false
}

// JoinPath returns the sequence of edges joining from to to. A direct edge
// wins; otherwise BFS finds the shortest multi-hop path. An empty path with
// nil error means no path exists, which is itself meaningful signal to the
// SQL generator.
func (g *JoinGraph) JoinPath(from, to string) []Edge {
	if from == to {
		return nil
	}

	if e, ok := g.DirectEdge(from, to); ok {
		return []Edge{e}
	}

	// BFS over directed edges.
	type node struct {
		table string
		path  []Edge
	}

	visited := map[string]bool{from: true}
	queue := []node{{table: from}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, e := range g.edges[cur.table] {
			if visited[e.To] {
				continue
			}
			path := make([]Edge, len(cur.path), len(cur.path)+1)
			copy(path, cur.path)
			path = append(path, e)

			if e.To == to {
				return path
			}

			visited[e.To] = true
			queue = append(queue, node{table: e.To, path: path})
		}
	}

	return nil
}

// Tables returns every table that appears as an edge source.
func (g *JoinGraph) Tables() []string {
	out := make([]string, 0, len(g.edges))
	for t := range g.edges {
		out = append(out, t)
	}
	return out
}
