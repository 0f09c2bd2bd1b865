// Package featurize converts file content into compact MinHash sketches for
// approximate textual similarity comparison.
package featurize

import (
	"bytes"
	"encoding/binary"

	"lukechampine.com/blake3"
)

// Options controls sketch computation
type Options struct {
	// ShingleSize is the number of consecutive tokens per shingle
	ShingleSize int
	// NumHashes is the MinHash signature width
	NumHashes int
	// MaxFileSizeBytes marks larger files unsketchable (0 = no limit)
	MaxFileSizeBytes int64
}

// Sketch is a fixed-size summary of file content. Two sketches from the same
// Featurizer estimate the Jaccard similarity of the underlying shingle sets.
type Sketch struct {
	Values       []uint64 `json:"values"`
	Unsketchable bool     `json:"unsketchable"`
}

// Featurizer computes sketches. It is stateless and safe for concurrent use.
type Featurizer struct {
	shingleSize int
	numHashes   int
	maxSize     int64
}

// New creates a Featurizer.
func New(opts Options) *Featurizer {
	if opts.ShingleSize < 1 {
		opts.ShingleSize = 4
	}
	if opts.NumHashes < 1 {
		opts.NumHashes = 64
	}
	return &Featurizer{
		shingleSize: opts.ShingleSize,
		numHashes:   opts.NumHashes,
		maxSize:     opts.MaxFileSizeBytes,
	}
}

// NumHashes returns the signature width this featurizer produces.
func (f *Featurizer) NumHashes() int {
	return f.numHashes
}

// Sketch computes the MinHash sketch of content. Binary, empty, and oversized
// content yields an unsketchable marker rather than an error, so such files
// participate in similarity only through co-change edges.
func (f *Featurizer) Sketch(content []byte) Sketch {
	if len(content) == 0 || isBinary(content) {
		return Sketch{Unsketchable: true}
	}
	if f.maxSize > 0 && int64(len(content)) > f.maxSize {
		return Sketch{Unsketchable: true}
	}

	tokens := tokenize(content)
	shingles := shingleHashes(tokens, f.shingleSize)
	if len(shingles) == 0 {
		return Sketch{Unsketchable: true}
	}

	values := make([]uint64, f.numHashes)
	for i := range values {
		values[i] = ^uint64(0)
	}
	for shingle := range shingles {
		for i := 0; i < f.numHashes; i++ {
			if h := mix(shingle, uint64(i)); h < values[i] {
				values[i] = h
			}
		}
	}

	return Sketch{Values: values}
}

// Similarity estimates the Jaccard similarity of the content behind two
// sketches. It is symmetric and deterministic; any unsketchable side yields 0.
func Similarity(a, b Sketch) float64 {
	if a.Unsketchable || b.Unsketchable {
		return 0
	}
	if len(a.Values) == 0 || len(a.Values) != len(b.Values) {
		return 0
	}

	matches := 0
	for i := range a.Values {
		if a.Values[i] == b.Values[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a.Values))
}

// BandKey hashes one LSH band of the signature. Sketches agreeing on any
// band are similarity candidates. band is in [0, totalBands).
func (s Sketch) BandKey(band, totalBands int) (uint64, bool) {
	if s.Unsketchable || totalBands < 1 || band < 0 || band >= totalBands {
		return 0, false
	}

	rows := len(s.Values) / totalBands
	if rows == 0 {
		return 0, false
	}
	start := band * rows

	h := uint64(band) + 1
	for _, v := range s.Values[start : start+rows] {
		h = mix(h, v)
	}
	return h, true
}

// ContentHash returns a stable hash of raw content, used to detect staleness
// of cached sketches.
func ContentHash(content []byte) string {
	sum := blake3.Sum256(content)
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(sum)*2)
	for i, b := range sum {
		out[i*2] = hexdigits[b>>4]
		out[i*2+1] = hexdigits[b&0xf]
	}
	return string(out)
}

// Marshal encodes the sketch values little-endian for storage.
func (s Sketch) Marshal() []byte {
	if s.Unsketchable {
		return nil
	}
	out := make([]byte, 8*len(s.Values))
	for i, v := range s.Values {
		binary.LittleEndian.PutUint64(out[i*8:], v)
	}
	return out
}

// UnmarshalSketch decodes a sketch produced by Marshal. A nil or empty blob
// decodes to the unsketchable marker.
func UnmarshalSketch(data []byte) Sketch {
	if len(data) == 0 || len(data)%8 != 0 {
		return Sketch{Unsketchable: true}
	}
	values := make([]uint64, len(data)/8)
	for i := range values {
		values[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return Sketch{Values: values}
}

// shingleHashes hashes every run of k consecutive tokens with blake3.
func shingleHashes(tokens []string, k int) map[uint64]struct{} {
	if len(tokens) == 0 {
		return nil
	}

	hasher := blake3.New(32, nil)
	set := make(map[uint64]struct{})

	if len(tokens) < k {
		for _, t := range tokens {
			hasher.Write([]byte(t))
			hasher.Write([]byte{0})
		}
		sum := hasher.Sum(nil)
		set[binary.LittleEndian.Uint64(sum[:8])] = struct{}{}
		return set
	}

	for i := 0; i <= len(tokens)-k; i++ {
		hasher.Reset()
		for j := i; j < i+k; j++ {
			hasher.Write([]byte(tokens[j]))
			hasher.Write([]byte{0})
		}
		sum := hasher.Sum(nil)
		set[binary.LittleEndian.Uint64(sum[:8])] = struct{}{}
	}
	return set
}

// mix combines a value and seed with murmur-style bit mixing, avoiding a
// hasher allocation per slot.
func mix(value, seed uint64) uint64 {
	h := value ^ seed
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// isBinary applies the git heuristic: a NUL byte in the first 8000 bytes.
func isBinary(content []byte) bool {
	probe := content
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	return bytes.IndexByte(probe, 0) >= 0
}
