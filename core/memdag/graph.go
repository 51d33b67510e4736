package memdag

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/gammazero/deque"
	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/util"
	"github.com/lunfardo314/tangle/util/set"
)

var (
	fontsizeAttribute    = graph.VertexAttribute("fontsize", "10")
	simpleNodeAttributes = []func(*graph.VertexProperties){
		fontsizeAttribute,
		graph.VertexAttribute("colorscheme", "blues3"),
		graph.VertexAttribute("style", "filled"),
		graph.VertexAttribute("color", "2"),
		graph.VertexAttribute("fillcolor", "1"),
	}
	milestoneNodeAttributes = []func(*graph.VertexProperties){
		fontsizeAttribute,
		graph.VertexAttribute("colorscheme", "paired9"),
		graph.VertexAttribute("style", "filled"),
		graph.VertexAttribute("color", "9"),
		graph.VertexAttribute("fillcolor", "7"),
		graph.VertexAttribute("shape", "box"),
	}
	confirmedNodeAttributes = []func(*graph.VertexProperties){
		fontsizeAttribute,
		graph.VertexAttribute("colorscheme", "bugn9"),
		graph.VertexAttribute("style", "filled"),
		graph.VertexAttribute("color", "9"),
		graph.VertexAttribute("fillcolor", "3"),
	}
	sepNodeAttributes = []func(*graph.VertexProperties){
		fontsizeAttribute,
		graph.VertexAttribute("shape", "doublecircle"),
	}
)

func graphID(h ledger.Hash) string {
	return h.StringShort()
}

func makeGraphNode(vid *vertex.WrappedTx, gr graph.Graph[string, string]) {
	md := vid.Metadata()

	var attr []func(*graph.VertexProperties)
	switch {
	case md.Milestone:
		attr = append(attr, milestoneNodeAttributes...)
		attr = append(attr, graph.VertexAttribute("xlabel", fmt.Sprintf("#%d", md.MilestoneIndex)))
	case md.ConfirmedBy != 0:
		attr = append(attr, confirmedNodeAttributes...)
	default:
		attr = append(attr, simpleNodeAttributes...)
	}
	switch {
	case md.Conflict == vertex.ConflictExcluded:
		attr = append(attr, graph.VertexAttribute("shape", "invtriangle"))
	case !md.Solid:
		attr = append(attr, graph.VertexAttribute("shape", "diamond"))
	}
	_ = gr.AddVertex(graphID(vid.ID), attr...)
}

// makeGraphEdges parents not present in the graph are drawn as boundary nodes
func makeGraphEdges(vid *vertex.WrappedTx, gr graph.Graph[string, string]) {
	id := graphID(vid.ID)
	trunk, branch := vid.Trunk(), vid.Branch()
	for i, p := range []ledger.Hash{trunk, branch} {
		if i == 1 && branch == trunk {
			break
		}
		pid := graphID(p)
		if _, err := gr.Vertex(pid); err != nil {
			_ = gr.AddVertex(pid, sepNodeAttributes...)
		}
		style := "solid"
		if i == 1 {
			style = "dashed"
		}
		_ = gr.AddEdge(id, pid, graph.EdgeAttribute("style", style))
	}
}

// MakeGraph the whole tangle. Edges point from approver to parent
func (d *MemDAG) MakeGraph() graph.Graph[string, string] {
	ret := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic())

	vertices := d.Vertices()
	for _, vid := range vertices {
		makeGraphNode(vid, ret)
	}
	for _, vid := range vertices {
		makeGraphEdges(vid, ret)
	}
	return ret
}

// MakeGraphPastCone graph of the past cone of the vertex, at most maxVertices.
// Traversal is breadth first with explicit worklist
func (d *MemDAG) MakeGraphPastCone(vid *vertex.WrappedTx, maxVertices ...int) graph.Graph[string, string] {
	ret := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic())

	maxx := math.MaxUint16
	if len(maxVertices) > 0 && maxVertices[0] < math.MaxUint16 {
		maxx = maxVertices[0]
	}

	visited := set.New[ledger.Hash](vid.ID)
	cone := make([]*vertex.WrappedTx, 0)
	var worklist deque.Deque[*vertex.WrappedTx]
	worklist.PushBack(vid)

	for worklist.Len() > 0 && len(cone) < maxx {
		cur := worklist.PopFront()
		cone = append(cone, cur)
		makeGraphNode(cur, ret)

		for _, p := range cur.Parents() {
			if visited.Contains(p) {
				continue
			}
			visited.Insert(p)
			if pv := d.Get(p); pv != nil {
				worklist.PushBack(pv)
			}
		}
	}
	for _, v := range cone {
		makeGraphEdges(v, ret)
	}
	return ret
}

func WriteDOT(gr graph.Graph[string, string], w io.Writer) error {
	return draw.DOT(gr, w)
}

func saveGraph(gr graph.Graph[string, string], fname string) {
	dotFile, err := os.Create(fname + ".gv")
	util.AssertNoError(err)
	err = WriteDOT(gr, dotFile)
	util.AssertNoError(err)
	_ = dotFile.Close()
}

func (d *MemDAG) SaveGraph(fname string) {
	saveGraph(d.MakeGraph(), fname)
}

func (d *MemDAG) SaveGraphPastCone(vid *vertex.WrappedTx, fname string) {
	saveGraph(d.MakeGraphPastCone(vid, 500), fname)
}
