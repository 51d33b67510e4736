package util

import (
	"sort"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SortKeys returns keys of the map in the order defined by less
func SortKeys[K comparable, V any](m map[K]V, less func(k1, k2 K) bool) []K {
	ret := maps.Keys(m)
	sort.Slice(ret, func(i, j int) bool {
		return less(ret[i], ret[j])
	})
	return ret
}

func FindFirst[T any](slice []T, cond func(el T) bool) (T, bool) {
	for _, el := range slice {
		if cond(el) {
			return el, true
		}
	}
	var nilElem T
	return nilElem, false
}

type Integer interface {
	int | uint8 | uint16 | uint32 | uint64 | int8 | int16 | int32 | int64
}

var prn = message.NewPrinter(language.English)

// Th formats integer with '_' as thousands separator, the way amounts are shown in logs and reports
func Th[T Integer](v T) string {
	return strings.ReplaceAll(prn.Sprintf("%d", v), ",", "_")
}
