package memdag

import (
	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/util/lines"
)

func (d *MemDAG) Info(verbose ...bool) string {
	return d.InfoLines(verbose...).String()
}

func (d *MemDAG) InfoLines(verbose ...bool) *lines.Lines {
	ln := lines.New()

	vertices := d.Vertices()
	var solid, pending, milestones, confirmed int
	for _, vid := range vertices {
		md := vid.Metadata()
		switch {
		case md.Solid:
			solid++
		case md.Pending:
			pending++
		}
		if md.Milestone {
			milestones++
		}
		if md.ConfirmedBy != 0 {
			confirmed++
		}
	}
	ln.Add("MemDAG:: vertices: %d, solid: %d, pending: %d, milestones: %d, confirmed: %d",
		len(vertices), solid, pending, milestones, confirmed)

	if len(verbose) > 0 && verbose[0] {
		ln.Add("---- all vertices (verbose)")
		for _, vid := range d.VerticesDescending() {
			ln.Add("    %s, approved by: %d", vid.String(), d.NumApprovers(vid.ID))
		}
	}
	return ln
}

// PendingVertices vertices which wait for missing parents
func (d *MemDAG) PendingVertices() []*vertex.WrappedTx {
	return d.Vertices(func(vid *vertex.WrappedTx) bool {
		return vid.Status() == vertex.Pending
	})
}

// Milestones returns all milestone vertices by index
func (d *MemDAG) Milestones() map[ledger.MilestoneIndex]*vertex.WrappedTx {
	ret := make(map[ledger.MilestoneIndex]*vertex.WrappedTx)
	for _, vid := range d.Vertices(func(vid *vertex.WrappedTx) bool { return vid.IsMilestone() }) {
		idx, _ := vid.MilestoneIndex()
		ret[idx] = vid
	}
	return ret
}
