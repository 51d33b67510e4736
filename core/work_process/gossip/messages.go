package gossip

import (
	"encoding/binary"
	"fmt"

	"github.com/lunfardo314/tangle/ledger"
)

// Message is one of the closed set of protocol messages. The set is sealed by the unexported method
type (
	Message interface {
		Kind() MessageKind
		Bytes() []byte
		sealed()
	}

	MessageKind byte

	MsgTransaction struct {
		TxBytes []byte
	}

	MsgTransactionRequest struct {
		ID ledger.Hash
	}

	MsgHeartbeat struct {
		FirstSolid ledger.MilestoneIndex
		LastSolid  ledger.MilestoneIndex
	}
)

const (
	KindTransaction = MessageKind(iota + 1)
	KindTransactionRequest
	KindHeartbeat
)

func (k MessageKind) String() string {
	switch k {
	case KindTransaction:
		return "tx"
	case KindTransactionRequest:
		return "txRequest"
	case KindHeartbeat:
		return "heartbeat"
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

func (m *MsgTransaction) Kind() MessageKind        { return KindTransaction }
func (m *MsgTransactionRequest) Kind() MessageKind { return KindTransactionRequest }
func (m *MsgHeartbeat) Kind() MessageKind          { return KindHeartbeat }

func (m *MsgTransaction) sealed()        {}
func (m *MsgTransactionRequest) sealed() {}
func (m *MsgHeartbeat) sealed()          {}

func (m *MsgTransaction) Bytes() []byte {
	ret := make([]byte, 0, 1+len(m.TxBytes))
	ret = append(ret, byte(KindTransaction))
	return append(ret, m.TxBytes...)
}

func (m *MsgTransactionRequest) Bytes() []byte {
	ret := make([]byte, 0, 1+ledger.HashSize)
	ret = append(ret, byte(KindTransactionRequest))
	return append(ret, m.ID[:]...)
}

func (m *MsgHeartbeat) Bytes() []byte {
	var ret [9]byte
	ret[0] = byte(KindHeartbeat)
	binary.BigEndian.PutUint32(ret[1:5], uint32(m.FirstSolid))
	binary.BigEndian.PutUint32(ret[5:9], uint32(m.LastSolid))
	return ret[:]
}

// MessageFromBytes parses message with the leading kind byte
func MessageFromBytes(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("MessageFromBytes: empty message: %w", ledger.ErrMalformedPayload)
	}
	switch MessageKind(data[0]) {
	case KindTransaction:
		if len(data) == 1 {
			return nil, fmt.Errorf("MessageFromBytes: empty transaction: %w", ledger.ErrMalformedPayload)
		}
		return &MsgTransaction{TxBytes: data[1:]}, nil
	case KindTransactionRequest:
		id, err := ledger.HashFromBytes(data[1:])
		if err != nil {
			return nil, fmt.Errorf("MessageFromBytes: %w", ledger.ErrMalformedPayload)
		}
		return &MsgTransactionRequest{ID: id}, nil
	case KindHeartbeat:
		if len(data) != 9 {
			return nil, fmt.Errorf("MessageFromBytes: wrong heartbeat size: %w", ledger.ErrMalformedPayload)
		}
		return &MsgHeartbeat{
			FirstSolid: ledger.MilestoneIndex(binary.BigEndian.Uint32(data[1:5])),
			LastSolid:  ledger.MilestoneIndex(binary.BigEndian.Uint32(data[5:9])),
		}, nil
	}
	return nil, fmt.Errorf("MessageFromBytes: unknown message kind %d: %w", data[0], ledger.ErrMalformedPayload)
}
