package ledger

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"time"
)

// MilestonePayload is a coordinator-signed confirmation checkpoint
type MilestonePayload struct {
	Index     MilestoneIndex
	Signature [ed25519.SignatureSize]byte
}

const milestonePayloadSize = 4 + ed25519.SignatureSize

func (p *MilestonePayload) Type() PayloadType {
	return PayloadMilestone
}

func (p *MilestonePayload) Bytes() []byte {
	ret := make([]byte, 0, milestonePayloadSize)
	ret = binary.BigEndian.AppendUint32(ret, uint32(p.Index))
	return append(ret, p.Signature[:]...)
}

func MilestonePayloadFromBytes(data []byte) (*MilestonePayload, error) {
	if len(data) != milestonePayloadSize {
		return nil, fmt.Errorf("%w: wrong milestone payload size %d", ErrMalformedPayload, len(data))
	}
	ret := &MilestonePayload{
		Index: MilestoneIndex(binary.BigEndian.Uint32(data[:4])),
	}
	if ret.Index == 0 {
		return nil, fmt.Errorf("%w: milestone index must be positive", ErrMalformedPayload)
	}
	copy(ret.Signature[:], data[4:])
	return ret, nil
}

// MilestoneEssence is the message signed by the coordinator. Nonce is not part of it
func MilestoneEssence(trunk, branch Hash, ts time.Time, index MilestoneIndex) Hash {
	var buf [12]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(ts.UnixNano()))
	binary.BigEndian.PutUint32(buf[8:], uint32(index))
	return HashData(trunk[:], branch[:], buf[:])
}

// VerifyMilestoneSignature checks the milestone is signed by one of the coordinator keys
func VerifyMilestoneSignature(tx *Transaction, coordinatorKeys ...ed25519.PublicKey) (MilestoneIndex, error) {
	ms, ok := tx.Milestone()
	if !ok {
		return 0, fmt.Errorf("%w: not a milestone payload", ErrMalformedPayload)
	}
	essence := MilestoneEssence(tx.Trunk(), tx.Branch(), tx.Timestamp(), ms.Index)
	for _, pk := range coordinatorKeys {
		if len(pk) == ed25519.PublicKeySize && ed25519.Verify(pk, essence[:], ms.Signature[:]) {
			return ms.Index, nil
		}
	}
	return 0, fmt.Errorf("%w: milestone #%d %s", ErrBadSignature, ms.Index, tx.ID().StringShort())
}

// MilestoneSigner issues milestones on behalf of the coordinator
type MilestoneSigner struct {
	privateKey ed25519.PrivateKey
}

func NewMilestoneSigner(privateKey ed25519.PrivateKey) *MilestoneSigner {
	return &MilestoneSigner{privateKey: privateKey}
}

func (s *MilestoneSigner) PublicKey() ed25519.PublicKey {
	return s.privateKey.Public().(ed25519.PublicKey)
}

func (s *MilestoneSigner) NewMilestone(trunk, branch Hash, index MilestoneIndex, ts ...time.Time) *Transaction {
	t := time.Now()
	if len(ts) > 0 {
		t = ts[0]
	}
	t = time.Unix(0, t.UnixNano())
	essence := MilestoneEssence(trunk, branch, t, index)
	payload := &MilestonePayload{Index: index}
	copy(payload.Signature[:], ed25519.Sign(s.privateKey, essence[:]))
	return MustNewTransaction(trunk, branch, t, payload)
}
