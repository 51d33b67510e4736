package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/lunfardo314/tangle/util"
	"github.com/lunfardo314/tangle/util/lines"
)

// Diff net balance change per address produced by one milestone
type Diff map[Address]int64

func (d Diff) Add(addr Address, delta int64) {
	if v := d[addr] + delta; v != 0 {
		d[addr] = v
	} else {
		delete(d, addr)
	}
}

func (d Diff) AddAll(another Diff) {
	for addr, delta := range another {
		d.Add(addr, delta)
	}
}

// Sum must be 0 for every valid diff
func (d Diff) Sum() int64 {
	var ret int64
	for _, delta := range d {
		ret += delta
	}
	return ret
}

func (d Diff) SortedAddresses() []Address {
	return util.SortKeys(d, LessAddress)
}

func (d Diff) Bytes() []byte {
	ret := make([]byte, 0, 4+len(d)*(AddressSize+8))
	ret = binary.BigEndian.AppendUint32(ret, uint32(len(d)))
	for _, addr := range d.SortedAddresses() {
		ret = append(ret, addr[:]...)
		ret = binary.BigEndian.AppendUint64(ret, uint64(d[addr]))
	}
	return ret
}

func DiffFromBytes(data []byte) (Diff, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("DiffFromBytes: wrong data length")
	}
	n := int(binary.BigEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) != n*(AddressSize+8) {
		return nil, fmt.Errorf("DiffFromBytes: wrong data length")
	}
	ret := make(Diff, n)
	for i := 0; i < n; i++ {
		var addr Address
		copy(addr[:], data[:AddressSize])
		ret[addr] = int64(binary.BigEndian.Uint64(data[AddressSize : AddressSize+8]))
		data = data[AddressSize+8:]
	}
	return ret, nil
}

func (d Diff) Lines(prefix ...string) *lines.Lines {
	ret := lines.New(prefix...)
	for _, addr := range d.SortedAddresses() {
		ret.Add("%s: %+d", addr.StringShort(), d[addr])
	}
	return ret
}
