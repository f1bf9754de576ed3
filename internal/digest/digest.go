// Package digest implements the hash primitive shared by the NAR
// serializer, the meta record emitter, and the publisher: SHA3-256 under a
// fixed 64-symbol alphabet, rendered as the two-segment path-safe form
// "aa/bbbb…" used throughout the store.
package digest

import (
	"encoding/base64"
	"hash"

	"golang.org/x/crypto/sha3"
)

// alphabet is the 64-symbol encoding table, one symbol per 6 bits, selected
// at build time by alphabet_default.go or alphabet_legacy.go (see the
// "legacy" build tag). 32 SHA3-256 bytes map onto exactly 43 characters
// under either alphabet, with no padding. The two variants MUST NOT be
// mixed within a single store.
var encoding = base64.NewEncoding(alphabet).WithPadding(base64.NoPadding)

// encodedLen is the textual length of an encoded 32-byte SHA3-256 sum.
const encodedLen = 43

// Digest is the rendered "aa/bbbb…" string: two alphabet characters, a
// literal "/", then the remaining 41 characters. It is always exactly 44
// bytes long.
type Digest string

// Hasher accumulates bytes and produces a Digest. It satisfies io.Writer so
// it can sit at the end of an io.Copy pipeline (the NAR serializer and the
// meta emitter both write directly into one), and it is cloneable so that
// fix-meta can fork a hasher mid-stream to derive multiple output ids from
// a shared prefix without re-reading the original input.
type Hasher struct {
	h hash.Hash
	// written mirrors everything passed to Write so far. sha3's fixed-output
	// hash.Hash implementation doesn't expose a public Clone, so Clone()
	// below rebuilds state by replaying this buffer into a fresh hash
	// rather than copying sponge state directly.
	written []byte
}

// New returns a fresh incremental hasher.
func New() *Hasher {
	return &Hasher{h: sha3.New256()}
}

// Write implements io.Writer, accumulating data into the running hash.
func (hh *Hasher) Write(p []byte) (int, error) {
	hh.written = append(hh.written, p...)
	return hh.h.Write(p)
}

// Clone returns an independent copy of the hasher with the same
// accumulated state, so that further writes to one do not affect the
// other.
func (hh *Hasher) Clone() *Hasher {
	clone := &Hasher{h: sha3.New256(), written: append([]byte(nil), hh.written...)}
	_, _ = clone.h.Write(clone.written)
	return clone
}

// Finalize consumes the hasher, producing the 32-byte SHA3-256 sum encoded
// under the fixed alphabet and returned in the two-segment "aa/bbbb…" form.
func (hh *Hasher) Finalize() Digest {
	sum := hh.h.Sum(nil)
	return encode(sum)
}

// encode renders raw as the alphabet-encoded, slash-split Digest string.
func encode(raw []byte) Digest {
	text := encoding.EncodeToString(raw)
	if len(text) < encodedLen {
		panic("digest: encoded length shorter than expected")
	}
	text = text[:encodedLen]
	return Digest(text[:2] + "/" + text[2:])
}

// Sum hashes p directly and returns its Digest, without requiring callers
// to drive a Hasher by hand.
func Sum(p []byte) Digest {
	hh := New()
	_, _ = hh.Write(p)
	return hh.Finalize()
}
