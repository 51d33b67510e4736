package ledger

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/lunfardo314/tangle/util/lines"
)

type (
	PayloadType byte

	// Payload is one of the closed set: DataPayload, *TransferPayload, *MilestonePayload
	Payload interface {
		Type() PayloadType
		Bytes() []byte
	}

	// Transaction is immutable. Use NewTransaction or TransactionFromBytes to create it
	Transaction struct {
		trunk     Hash
		branch    Hash
		timestamp time.Time
		payload   Payload
		nonce     uint64
		bytes     []byte
		id        Hash
	}
)

const (
	PayloadData = PayloadType(iota)
	PayloadTransfer
	PayloadMilestone
)

const (
	TransactionVersion = byte(0)
	MaxPayloadSize     = 32 * 1024

	headerSize = 1 + HashSize + HashSize + 8 + 1 + 4
	nonceSize  = 8
)

func (t PayloadType) String() string {
	switch t {
	case PayloadData:
		return "data"
	case PayloadTransfer:
		return "transfer"
	case PayloadMilestone:
		return "milestone"
	}
	return fmt.Sprintf("unknown(%d)", byte(t))
}

func NewTransaction(trunk, branch Hash, ts time.Time, payload Payload, nonce ...uint64) (*Transaction, error) {
	if payload == nil {
		payload = DataPayload(nil)
	}
	n := uint64(0)
	if len(nonce) > 0 {
		n = nonce[0]
	}
	if tr, isTransfer := payload.(*TransferPayload); isTransfer {
		if err := tr.checkEncodable(); err != nil {
			return nil, err
		}
	}
	payloadBytes := payload.Bytes()
	if len(payloadBytes) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: payload size %d exceeds maximum %d", ErrMalformedPayload, len(payloadBytes), MaxPayloadSize)
	}
	ret := &Transaction{
		trunk:     trunk,
		branch:    branch,
		timestamp: time.Unix(0, ts.UnixNano()),
		payload:   payload,
		nonce:     n,
	}
	ret.bytes = ret.encode(payloadBytes)
	ret.id = HashData(ret.bytes)
	return ret, nil
}

func MustNewTransaction(trunk, branch Hash, ts time.Time, payload Payload, nonce ...uint64) *Transaction {
	ret, err := NewTransaction(trunk, branch, ts, payload, nonce...)
	if err != nil {
		panic(err)
	}
	return ret
}

func (tx *Transaction) encode(payloadBytes []byte) []byte {
	ret := make([]byte, 0, headerSize+len(payloadBytes)+nonceSize)
	ret = append(ret, TransactionVersion)
	ret = append(ret, tx.trunk[:]...)
	ret = append(ret, tx.branch[:]...)
	ret = binary.BigEndian.AppendUint64(ret, uint64(tx.timestamp.UnixNano()))
	ret = append(ret, byte(tx.payload.Type()))
	ret = binary.BigEndian.AppendUint32(ret, uint32(len(payloadBytes)))
	ret = append(ret, payloadBytes...)
	ret = binary.BigEndian.AppendUint64(ret, tx.nonce)
	return ret
}

func TransactionFromBytes(data []byte) (*Transaction, error) {
	if len(data) < headerSize+nonceSize {
		return nil, fmt.Errorf("%w: transaction too short (%d bytes)", ErrMalformedPayload, len(data))
	}
	if data[0] != TransactionVersion {
		return nil, fmt.Errorf("%w: unsupported transaction version %d", ErrMalformedPayload, data[0])
	}
	ret := &Transaction{}
	copy(ret.trunk[:], data[1:1+HashSize])
	copy(ret.branch[:], data[1+HashSize:1+2*HashSize])
	ts := binary.BigEndian.Uint64(data[1+2*HashSize : 1+2*HashSize+8])
	if ts > math.MaxInt64 {
		return nil, fmt.Errorf("%w: wrong timestamp", ErrMalformedPayload)
	}
	ret.timestamp = time.Unix(0, int64(ts))
	pType := PayloadType(data[headerSize-5])
	pLen := int(binary.BigEndian.Uint32(data[headerSize-4 : headerSize]))
	if pLen > MaxPayloadSize || len(data) != headerSize+pLen+nonceSize {
		return nil, fmt.Errorf("%w: wrong payload length %d", ErrMalformedPayload, pLen)
	}
	var err error
	if ret.payload, err = PayloadFromBytes(pType, data[headerSize:headerSize+pLen]); err != nil {
		return nil, err
	}
	ret.nonce = binary.BigEndian.Uint64(data[headerSize+pLen:])
	ret.bytes = make([]byte, len(data))
	copy(ret.bytes, data)
	ret.id = HashData(ret.bytes)
	return ret, nil
}

func PayloadFromBytes(t PayloadType, data []byte) (Payload, error) {
	switch t {
	case PayloadData:
		ret := make([]byte, len(data))
		copy(ret, data)
		return DataPayload(ret), nil
	case PayloadTransfer:
		return TransferPayloadFromBytes(data)
	case PayloadMilestone:
		return MilestonePayloadFromBytes(data)
	}
	return nil, fmt.Errorf("%w: unknown payload type %d", ErrMalformedPayload, byte(t))
}

func (tx *Transaction) ID() Hash {
	return tx.id
}

func (tx *Transaction) Trunk() Hash {
	return tx.trunk
}

func (tx *Transaction) Branch() Hash {
	return tx.branch
}

func (tx *Transaction) Parents() [2]Hash {
	return [2]Hash{tx.trunk, tx.branch}
}

func (tx *Transaction) Timestamp() time.Time {
	return tx.timestamp
}

func (tx *Transaction) Payload() Payload {
	return tx.payload
}

func (tx *Transaction) Nonce() uint64 {
	return tx.nonce
}

// Bytes canonical bytes. Must not be modified
func (tx *Transaction) Bytes() []byte {
	return tx.bytes
}

// WithNonce returns copy of the transaction with another nonce
func (tx *Transaction) WithNonce(nonce uint64) *Transaction {
	ret := *tx
	ret.nonce = nonce
	ret.bytes = make([]byte, len(tx.bytes))
	copy(ret.bytes, tx.bytes)
	PutNonce(ret.bytes, nonce)
	ret.id = HashData(ret.bytes)
	return &ret
}

// PutNonce overwrites nonce in the canonical transaction bytes
func PutNonce(txBytes []byte, nonce uint64) {
	binary.BigEndian.PutUint64(txBytes[len(txBytes)-nonceSize:], nonce)
}

func (tx *Transaction) Transfer() (*TransferPayload, bool) {
	ret, ok := tx.payload.(*TransferPayload)
	return ret, ok
}

func (tx *Transaction) Milestone() (*MilestonePayload, bool) {
	ret, ok := tx.payload.(*MilestonePayload)
	return ret, ok
}

func (tx *Transaction) IsMilestone() bool {
	return tx.payload.Type() == PayloadMilestone
}

func (tx *Transaction) String() string {
	return fmt.Sprintf("%s(%s)", tx.id.StringShort(), tx.payload.Type())
}

func (tx *Transaction) Lines(prefix ...string) *lines.Lines {
	ret := lines.New(prefix...)
	ret.Add("id: %s", tx.id.String()).
		Add("trunk: %s", tx.trunk.String()).
		Add("branch: %s", tx.branch.String()).
		Add("timestamp: %s", tx.timestamp.Format(time.RFC3339Nano)).
		Add("nonce: %d", tx.nonce).
		Add("payload type: %s, size: %d", tx.payload.Type(), len(tx.bytes)-headerSize-nonceSize)
	switch p := tx.payload.(type) {
	case *TransferPayload:
		ret.Append(p.Lines(prefix...))
	case *MilestonePayload:
		ret.Add("milestone index: %d", p.Index)
	}
	return ret
}

// DataPayload is opaque to the core
type DataPayload []byte

func (p DataPayload) Type() PayloadType {
	return PayloadData
}

func (p DataPayload) Bytes() []byte {
	return p
}
