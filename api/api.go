package api

import (
	"time"
)

const (
	PrefixAPIV1 = "/api/v1"

	PathGetInfo      = PrefixAPIV1 + "/info"
	PathGetVertex    = PrefixAPIV1 + "/vertex"
	PathGetBalance   = PrefixAPIV1 + "/balance"
	PathGetMilestone = PrefixAPIV1 + "/milestone"
	PathGetTips      = PrefixAPIV1 + "/tips"
	PathSubmit       = PrefixAPIV1 + "/submit"
	PathGetDOT       = PrefixAPIV1 + "/dot"
)

type (
	Error struct {
		// empty string when no error
		Error string `json:"error,omitempty"`
	}

	NodeInfo struct {
		Error
		Name                      string    `json:"name"`
		Version                   string    `json:"version"`
		LatestSolidMilestoneIndex uint32    `json:"latest_solid_milestone_index"`
		LatestKnownMilestoneIndex uint32    `json:"latest_known_milestone_index"`
		LedgerIndex               uint32    `json:"ledger_index"`
		SnapshotIndex             uint32    `json:"snapshot_index"`
		NumVertices               int       `json:"num_vertices"`
		NumPending                int       `json:"num_pending"`
		NumTipsNonLazy            int       `json:"num_tips_non_lazy"`
		NumTipsSemiLazy           int       `json:"num_tips_semi_lazy"`
		NumPulling                int       `json:"num_pulling"`
		TotalSupply               uint64    `json:"total_supply"`
		NumAddresses              int       `json:"num_addresses"`
		Degraded                  bool      `json:"degraded"`
		Time                      time.Time `json:"time"`
	}

	// Vertex is returned by 'vertex/{hash}'
	Vertex struct {
		Error
		// hex-encoded transaction id
		ID     string `json:"id"`
		Trunk  string `json:"trunk"`
		Branch string `json:"branch"`
		// payload type name: data, transfer or milestone
		PayloadType       string    `json:"payload_type"`
		Timestamp         time.Time `json:"timestamp"`
		Status            string    `json:"status"`
		Milestone         bool      `json:"milestone"`
		MilestoneIndex    uint32    `json:"milestone_index,omitempty"`
		ConfirmedBy       uint32    `json:"confirmed_by,omitempty"`
		Conflicting       bool      `json:"conflicting"`
		YoungestMilestone uint32    `json:"youngest_milestone"`
		// hex-encoded raw transaction bytes
		TxBytes string `json:"tx_bytes,omitempty"`
	}

	Balance struct {
		Error
		Address     string `json:"address"`
		Balance     uint64 `json:"balance"`
		LedgerIndex uint32 `json:"ledger_index"`
	}

	// Milestone is the record written when the milestone was applied to the ledger
	Milestone struct {
		Error
		Index               uint32    `json:"index"`
		ID                  string    `json:"id"`
		Timestamp           time.Time `json:"timestamp"`
		ConfirmedMerkleRoot string    `json:"confirmed_merkle_root"`
		AppliedMerkleRoot   string    `json:"applied_merkle_root"`
		NumReferenced       uint32    `json:"num_referenced"`
		NumApplied          uint32    `json:"num_applied"`
		NumConflicting      uint32    `json:"num_conflicting"`
	}

	Tips struct {
		Error
		// hex-encoded ids
		Tips []string `json:"tips"`
	}

	// Submitted is returned by 'submit'. Request body is hex-encoded transaction bytes
	Submitted struct {
		Error
		ID     string `json:"id,omitempty"`
		Status string `json:"status,omitempty"`
	}
)
