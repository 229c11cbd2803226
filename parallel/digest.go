package parallel

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"sync"
)

// Digest hashes a sequence of 32 byte values that may be submitted out of
// order. Values are fed to sha256 strictly by position, so the sum only depends
// on what was put where, never on completion order.
type Digest struct {
	mut     sync.Mutex
	sha     hash.Hash
	next    int
	pending map[int][32]byte
}

func NewDigest() *Digest {
	return &Digest{
		sha:     sha256.New(),
		pending: make(map[int][32]byte),
	}
}

// Put records value at position n.
func (d *Digest) Put(n int, value [32]byte) error {
	d.mut.Lock()
	defer d.mut.Unlock()

	if n < d.next {
		return fmt.Errorf("digest: position %d already consumed", n)
	}
	if _, dup := d.pending[n]; dup {
		return fmt.Errorf("digest: duplicate write at position %d", n)
	}
	d.pending[n] = value

	for {
		v, ok := d.pending[d.next]
		if !ok {
			break
		}
		d.sha.Write(v[:])
		delete(d.pending, d.next)
		d.next++
	}
	return nil
}

// MustPut is Put that panics on misuse.
func (d *Digest) MustPut(n int, value [32]byte) {
	if err := d.Put(n, value); err != nil {
		panic(err.Error())
	}
}

// Sum returns the digest of all consumed values. It fails while a gap leaves
// later positions pending.
func (d *Digest) Sum() (ret [32]byte, err error) {
	d.mut.Lock()
	defer d.mut.Unlock()

	if len(d.pending) != 0 {
		return ret, fmt.Errorf("digest: position %d missing, %d values pending", d.next, len(d.pending))
	}
	copy(ret[:], d.sha.Sum(nil))
	return ret, nil
}

// Len reports how many positions have been consumed.
func (d *Digest) Len() int {
	d.mut.Lock()
	defer d.mut.Unlock()
	return d.next
}
