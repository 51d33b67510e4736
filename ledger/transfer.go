package ledger

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lunfardo314/tangle/util"
	"github.com/lunfardo314/tangle/util/lines"
	"github.com/lunfardo314/tangle/util/set"
)

type (
	Entry struct {
		Address Address
		Amount  uint64
	}

	// TransferPayload moves balance from input addresses to output addresses
	TransferPayload struct {
		Inputs  []Entry
		Outputs []Entry
	}
)

const (
	MaxTransferEntries = 127
	entrySize          = AddressSize + 8
)

func NewTransfer(inputs, outputs []Entry) *TransferPayload {
	return &TransferPayload{Inputs: inputs, Outputs: outputs}
}

// SimpleTransfer moves amount from one address to another
func SimpleTransfer(from, to Address, amount uint64) *TransferPayload {
	return NewTransfer([]Entry{{Address: from, Amount: amount}}, []Entry{{Address: to, Amount: amount}})
}

func (p *TransferPayload) Type() PayloadType {
	return PayloadTransfer
}

func (p *TransferPayload) Bytes() []byte {
	ret := make([]byte, 0, 2+entrySize*(len(p.Inputs)+len(p.Outputs)))
	ret = appendEntries(ret, p.Inputs)
	ret = appendEntries(ret, p.Outputs)
	return ret
}

func appendEntries(buf []byte, entries []Entry) []byte {
	util.Assertf(len(entries) <= math.MaxUint8, "too many entries")
	buf = append(buf, byte(len(entries)))
	for _, e := range entries {
		buf = append(buf, e.Address[:]...)
		buf = binary.BigEndian.AppendUint64(buf, e.Amount)
	}
	return buf
}

func readEntries(data []byte) ([]Entry, []byte, error) {
	if len(data) < 1 {
		return nil, nil, fmt.Errorf("%w: unexpected end of transfer payload", ErrMalformedPayload)
	}
	n := int(data[0])
	data = data[1:]
	if len(data) < n*entrySize {
		return nil, nil, fmt.Errorf("%w: unexpected end of transfer payload", ErrMalformedPayload)
	}
	ret := make([]Entry, n)
	for i := range ret {
		copy(ret[i].Address[:], data[:AddressSize])
		ret[i].Amount = binary.BigEndian.Uint64(data[AddressSize:entrySize])
		data = data[entrySize:]
	}
	return ret, data, nil
}

// TransferPayloadFromBytes parses transfer payload and checks if it is well-formed
func TransferPayloadFromBytes(data []byte) (*TransferPayload, error) {
	inputs, rest, err := readEntries(data)
	if err != nil {
		return nil, err
	}
	outputs, rest, err := readEntries(rest)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d extra bytes in transfer payload", ErrMalformedPayload, len(rest))
	}
	ret := &TransferPayload{Inputs: inputs, Outputs: outputs}
	if err = ret.CheckWellFormed(); err != nil {
		return nil, err
	}
	return ret, nil
}

// checkEncodable rejects transfers which would not parse back because of the number of entries
func (p *TransferPayload) checkEncodable() error {
	if len(p.Inputs) > MaxTransferEntries || len(p.Outputs) > MaxTransferEntries {
		return fmt.Errorf("%w: too many transfer entries: %d inputs, %d outputs, maximum %d",
			ErrMalformedPayload, len(p.Inputs), len(p.Outputs), MaxTransferEntries)
	}
	return nil
}

// CheckWellFormed checks the transfer is internally consistent: non-empty sides, positive amounts,
// no duplicate inputs and exact equality of input and output sums
func (p *TransferPayload) CheckWellFormed() error {
	if len(p.Inputs) == 0 || len(p.Outputs) == 0 {
		return fmt.Errorf("%w: transfer must have inputs and outputs", ErrMalformedPayload)
	}
	if err := p.checkEncodable(); err != nil {
		return err
	}
	sumIn, err := sumEntries(p.Inputs)
	if err != nil {
		return err
	}
	sumOut, err := sumEntries(p.Outputs)
	if err != nil {
		return err
	}
	if sumIn != sumOut {
		return fmt.Errorf("%w: sum of inputs %d != sum of outputs %d", ErrMalformedPayload, sumIn, sumOut)
	}
	seen := set.New[Address]()
	for _, e := range p.Inputs {
		if seen.Contains(e.Address) {
			return fmt.Errorf("%w: duplicate input address %s", ErrMalformedPayload, e.Address.StringShort())
		}
		seen.Insert(e.Address)
	}
	return nil
}

func sumEntries(entries []Entry) (uint64, error) {
	var ret uint64
	for _, e := range entries {
		if e.Amount == 0 {
			return 0, fmt.Errorf("%w: zero amount", ErrMalformedPayload)
		}
		if e.Amount > math.MaxInt64 || ret > math.MaxInt64-e.Amount {
			return 0, fmt.Errorf("%w: amount overflow", ErrMalformedPayload)
		}
		ret += e.Amount
	}
	return ret, nil
}

// Deltas net balance change per address
func (p *TransferPayload) Deltas() map[Address]int64 {
	ret := make(map[Address]int64)
	for _, e := range p.Inputs {
		ret[e.Address] -= int64(e.Amount)
	}
	for _, e := range p.Outputs {
		ret[e.Address] += int64(e.Amount)
	}
	return ret
}

func (p *TransferPayload) Lines(prefix ...string) *lines.Lines {
	ret := lines.New(prefix...)
	for _, e := range p.Inputs {
		ret.Add("  in:  %s %s", e.Address.StringShort(), util.Th(e.Amount))
	}
	for _, e := range p.Outputs {
		ret.Add("  out: %s %s", e.Address.StringShort(), util.Th(e.Amount))
	}
	return ret
}
