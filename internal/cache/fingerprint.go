package cache

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"

	"indicadores/internal/core"
)

// Fingerprint hashes the content of a table. Record order does not matter;
// any change to a value, dimension or period does.
func Fingerprint(t core.Table) uint64 {
	hashes := make([]uint64, len(t.Records))
	d := xxhash.New()
	var buf [8]byte
	for i, r := range t.Records {
		d.Reset()
		binary.LittleEndian.PutUint64(buf[:], uint64(r.Year)<<8|uint64(r.Month))
		_, _ = d.Write(buf[:])
		for _, k := range sortedKeys(r.Dims) {
			_, _ = d.WriteString(k)
			_, _ = d.WriteString("=")
			_, _ = d.WriteString(r.Dims[k])
			_, _ = d.WriteString(";")
		}
		for _, k := range sortedKeys(r.Values) {
			_, _ = d.WriteString(k)
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(r.Values[k]))
			_, _ = d.Write(buf[:])
		}
		hashes[i] = d.Sum64()
	}
	slices.Sort(hashes)

	d.Reset()
	_, _ = d.WriteString(t.Schema.Dataset)
	for _, h := range hashes {
		binary.LittleEndian.PutUint64(buf[:], h)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Key builds a memo key from a function name, input fingerprints and parameters.
func Key(fn string, fingerprints []uint64, params ...any) string {
	var b strings.Builder
	b.WriteString(fn)
	for _, fp := range fingerprints {
		fmt.Fprintf(&b, ":%016x", fp)
	}
	for _, p := range params {
		fmt.Fprintf(&b, ":%v", p)
	}
	return b.String()
}
