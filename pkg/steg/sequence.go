package steg

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
)

// seedContext separates the position sequence seed from any other use of
// the payload salt.
const seedContext = "stegvault.sequence.v1"

// SeedFromSalt maps a payload salt to the sequencer seed. The salt is a
// public field, so the sequence carries no secrecy; it only spreads bit
// changes across the carrier instead of clustering them at the start.
func SeedFromSalt(salt []byte) int64 {
	mac := hmac.New(sha256.New, []byte(seedContext))
	mac.Write(salt)
	sum := mac.Sum(nil)
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// Sequence deterministically emits a permutation of 0..n-1 one index at a
// time. It runs a lazily evaluated Fisher-Yates shuffle backed by math/rand
// with a fixed seed, so the same seed and unit count reproduce the same
// order on every platform, and only the positions actually drawn cost
// memory. Embedder and extractor must construct it with the same unit
// count, the full carrier geometry, or their sequences diverge.
type Sequence struct {
	rng   *rand.Rand
	n     int
	next  int
	moved map[int]int
}

// NewSequence returns a sequence over unit indices 0..unitCount-1.
func NewSequence(seed int64, unitCount int) *Sequence {
	return &Sequence{
		rng:   rand.New(rand.NewSource(seed)),
		n:     unitCount,
		moved: make(map[int]int),
	}
}

// Next returns the next index of the permutation. It panics when called
// more than unitCount times; engines bound their draws by the capacity
// check before iterating.
func (s *Sequence) Next() int {
	if s.next >= s.n {
		panic("steg: position sequence exhausted")
	}
	j := s.next + s.rng.Intn(s.n-s.next)
	out := s.valueAt(j)
	s.moved[j] = s.valueAt(s.next)
	delete(s.moved, s.next)
	s.next++
	return out
}

// Remaining returns how many indices have not been drawn yet.
func (s *Sequence) Remaining() int {
	return s.n - s.next
}

func (s *Sequence) valueAt(i int) int {
	if v, ok := s.moved[i]; ok {
		return v
	}
	return i
}

// Permutation materializes the full position permutation for the given
// seed and unit count.
func Permutation(seed int64, unitCount int) []int {
	seq := NewSequence(seed, unitCount)
	out := make([]int, unitCount)
	for i := range out {
		out[i] = seq.Next()
	}
	return out
}
