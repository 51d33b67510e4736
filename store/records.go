package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/util/lines"
)

const (
	PartitionVertex = byte(iota + 1)
	PartitionVertexMetadata
	PartitionBalance
	PartitionLedgerIndex
	PartitionDiff
	PartitionMilestone
	PartitionSolidEntryPoint
	PartitionIdentity
)

type (
	// VertexMetadataRecord is the persisted part of the vertex metadata
	VertexMetadataRecord struct {
		Conflicting    bool
		MilestoneIndex ledger.MilestoneIndex // 0 if not a milestone
		ConfirmedBy    ledger.MilestoneIndex // 0 if not confirmed
	}

	// MilestoneRecord is written together with the ledger diff of the milestone
	MilestoneRecord struct {
		Index               ledger.MilestoneIndex
		ID                  ledger.Hash
		Timestamp           time.Time
		ConfirmedMerkleRoot ledger.Hash
		AppliedMerkleRoot   ledger.Hash
		NumReferenced       uint32
		NumApplied          uint32
		NumConflicting      uint32
	}

	// Identity of the ledger, written once at genesis
	Identity struct {
		TotalSupply    uint64
		SnapshotIndex  ledger.MilestoneIndex
		CoordinatorKey []byte
	}
)

var (
	VertexBytes = &Record[ledger.Hash, []byte]{
		Partition: PartitionVertex,
		KeyBytes:  hashKey,
		KeyFrom:   ledger.HashFromBytes,
		Encode:    func(v []byte) []byte { return v },
		Decode:    func(data []byte) ([]byte, error) { return data, nil },
	}

	VertexMetadata = &Record[ledger.Hash, *VertexMetadataRecord]{
		Partition: PartitionVertexMetadata,
		KeyBytes:  hashKey,
		KeyFrom:   ledger.HashFromBytes,
		Encode:    (*VertexMetadataRecord).Bytes,
		Decode:    VertexMetadataRecordFromBytes,
	}

	Balances = &Record[ledger.Address, uint64]{
		Partition: PartitionBalance,
		KeyBytes:  func(k ledger.Address) []byte { return k[:] },
		KeyFrom:   ledger.AddressFromBytes,
		Encode:    uint64Bytes,
		Decode:    uint64FromBytes,
	}

	LedgerIndexMarker = &Record[struct{}, ledger.MilestoneIndex]{
		Partition: PartitionLedgerIndex,
		KeyBytes:  func(_ struct{}) []byte { return nil },
		KeyFrom:   func(_ []byte) (struct{}, error) { return struct{}{}, nil },
		Encode:    indexBytes,
		Decode:    indexFromBytes,
	}

	Diffs = &Record[ledger.MilestoneIndex, ledger.Diff]{
		Partition: PartitionDiff,
		KeyBytes:  indexBytes,
		KeyFrom:   indexFromBytes,
		Encode:    ledger.Diff.Bytes,
		Decode:    ledger.DiffFromBytes,
	}

	Milestones = &Record[ledger.MilestoneIndex, *MilestoneRecord]{
		Partition: PartitionMilestone,
		KeyBytes:  indexBytes,
		KeyFrom:   indexFromBytes,
		Encode:    (*MilestoneRecord).Bytes,
		Decode:    MilestoneRecordFromBytes,
	}

	SolidEntryPoints = &Record[ledger.Hash, ledger.MilestoneIndex]{
		Partition: PartitionSolidEntryPoint,
		KeyBytes:  hashKey,
		KeyFrom:   ledger.HashFromBytes,
		Encode:    indexBytes,
		Decode:    indexFromBytes,
	}

	LedgerIdentity = &Record[struct{}, *Identity]{
		Partition: PartitionIdentity,
		KeyBytes:  func(_ struct{}) []byte { return nil },
		KeyFrom:   func(_ []byte) (struct{}, error) { return struct{}{}, nil },
		Encode:    (*Identity).Bytes,
		Decode:    IdentityFromBytes,
	}
)

func hashKey(h ledger.Hash) []byte {
	return h[:]
}

func uint64Bytes(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func uint64FromBytes(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("wrong uint64 data length %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// indexBytes big-endian, so iteration by key is ordered by index
func indexBytes(idx ledger.MilestoneIndex) []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(idx))
}

func indexFromBytes(data []byte) (ledger.MilestoneIndex, error) {
	if len(data) != 4 {
		return 0, fmt.Errorf("wrong milestone index data length %d", len(data))
	}
	return ledger.MilestoneIndex(binary.BigEndian.Uint32(data)), nil
}

func (r *VertexMetadataRecord) Bytes() []byte {
	ret := make([]byte, 0, 9)
	var fl byte
	if r.Conflicting {
		fl = 1
	}
	ret = append(ret, fl)
	ret = binary.BigEndian.AppendUint32(ret, uint32(r.MilestoneIndex))
	return binary.BigEndian.AppendUint32(ret, uint32(r.ConfirmedBy))
}

func VertexMetadataRecordFromBytes(data []byte) (*VertexMetadataRecord, error) {
	if len(data) != 9 {
		return nil, fmt.Errorf("wrong vertex metadata length %d", len(data))
	}
	return &VertexMetadataRecord{
		Conflicting:    data[0] != 0,
		MilestoneIndex: ledger.MilestoneIndex(binary.BigEndian.Uint32(data[1:5])),
		ConfirmedBy:    ledger.MilestoneIndex(binary.BigEndian.Uint32(data[5:9])),
	}, nil
}

const milestoneRecordSize = 4 + ledger.HashSize + 8 + 2*ledger.HashSize + 3*4

func (r *MilestoneRecord) Bytes() []byte {
	ret := make([]byte, 0, milestoneRecordSize)
	ret = binary.BigEndian.AppendUint32(ret, uint32(r.Index))
	ret = append(ret, r.ID[:]...)
	ret = binary.BigEndian.AppendUint64(ret, uint64(r.Timestamp.UnixNano()))
	ret = append(ret, r.ConfirmedMerkleRoot[:]...)
	ret = append(ret, r.AppliedMerkleRoot[:]...)
	ret = binary.BigEndian.AppendUint32(ret, r.NumReferenced)
	ret = binary.BigEndian.AppendUint32(ret, r.NumApplied)
	return binary.BigEndian.AppendUint32(ret, r.NumConflicting)
}

func MilestoneRecordFromBytes(data []byte) (*MilestoneRecord, error) {
	if len(data) != milestoneRecordSize {
		return nil, fmt.Errorf("wrong milestone record length %d", len(data))
	}
	ret := &MilestoneRecord{}
	ret.Index = ledger.MilestoneIndex(binary.BigEndian.Uint32(data[:4]))
	data = data[4:]
	copy(ret.ID[:], data[:ledger.HashSize])
	data = data[ledger.HashSize:]
	ret.Timestamp = time.Unix(0, int64(binary.BigEndian.Uint64(data[:8])))
	data = data[8:]
	copy(ret.ConfirmedMerkleRoot[:], data[:ledger.HashSize])
	data = data[ledger.HashSize:]
	copy(ret.AppliedMerkleRoot[:], data[:ledger.HashSize])
	data = data[ledger.HashSize:]
	ret.NumReferenced = binary.BigEndian.Uint32(data[:4])
	ret.NumApplied = binary.BigEndian.Uint32(data[4:8])
	ret.NumConflicting = binary.BigEndian.Uint32(data[8:12])
	return ret, nil
}

func (r *MilestoneRecord) Lines(prefix ...string) *lines.Lines {
	ret := lines.New(prefix...)
	ret.Add("milestone #%d %s", r.Index, r.ID.String()).
		Add("timestamp: %s", r.Timestamp.Format(time.RFC3339)).
		Add("confirmed merkle root: %s", r.ConfirmedMerkleRoot.String()).
		Add("applied merkle root: %s", r.AppliedMerkleRoot.String()).
		Add("referenced: %d, applied: %d, conflicting: %d", r.NumReferenced, r.NumApplied, r.NumConflicting)
	return ret
}

func (id *Identity) Bytes() []byte {
	ret := make([]byte, 0, 12+len(id.CoordinatorKey))
	ret = binary.BigEndian.AppendUint64(ret, id.TotalSupply)
	ret = binary.BigEndian.AppendUint32(ret, uint32(id.SnapshotIndex))
	return append(ret, id.CoordinatorKey...)
}

func IdentityFromBytes(data []byte) (*Identity, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("wrong ledger identity length %d", len(data))
	}
	ret := &Identity{
		TotalSupply:   binary.BigEndian.Uint64(data[:8]),
		SnapshotIndex: ledger.MilestoneIndex(binary.BigEndian.Uint32(data[8:12])),
	}
	if len(data) > 12 {
		ret.CoordinatorKey = make([]byte, len(data)-12)
		copy(ret.CoordinatorKey, data[12:])
	}
	return ret, nil
}
