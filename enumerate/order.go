package enumerate

import (
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/maruel/natural"

	"github.com/grokify/omnibatch"
)

// Compare orders two paths component by component, comparing each pair
// of components naturally: runs of digits compare by numeric value.
// A path sorts before any path it is a prefix of.
func Compare(a, b string) int {
	ac := strings.Split(a, "/")
	bc := strings.Split(b, "/")

	for i := 0; i < len(ac) && i < len(bc); i++ {
		if ac[i] == bc[i] {
			continue
		}
		if natural.Less(ac[i], bc[i]) {
			return -1
		}
		if natural.Less(bc[i], ac[i]) {
			return 1
		}
		// Naturally equal ("01" and "1"); fall back to bytes for a total order.
		return strings.Compare(ac[i], bc[i])
	}

	switch {
	case len(ac) < len(bc):
		return -1
	case len(ac) > len(bc):
		return 1
	}
	return 0
}

// Fingerprint hashes the ordered source IDs. Workers that enumerated the
// same dataset report the same fingerprint; a mismatch means their shard
// assignments disagree.
func Fingerprint(sources []omnibatch.Source) uint64 {
	d := xxhash.New()
	for _, src := range sources {
		_, _ = d.WriteString(src.ID())
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}
