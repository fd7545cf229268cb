// Completion: 100% - Compile cache complete
package cache

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"
	"golang.org/x/crypto/blake2b"
)

var log = commonlog.GetLogger("bfjit.cache")

// keyPrefix namespaces compiled code inside the store.
var keyPrefix = []byte("code:")

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cache: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Entry is one compiled program.
type Entry struct {
	Version      string `cbor:"1,keyasint"`
	Platform     string `cbor:"2,keyasint"`
	Code         []byte `cbor:"3,keyasint"`
	Instructions int    `cbor:"4,keyasint"`
	Loops        int    `cbor:"5,keyasint"`
	MaxDepth     int    `cbor:"6,keyasint"`
	Pairs        []Pair `cbor:"7,keyasint,omitempty"`
}

// Pair is a resolved loop, kept so that a cache hit can still list loops.
type Pair struct {
	ID    int `cbor:"1,keyasint"`
	Start int `cbor:"2,keyasint"`
	End   int `cbor:"3,keyasint"`
}

// Key identifies compiled code by compiler version, target platform and
// source text.
type Key [blake2b.Size256]byte

// NewKey hashes the inputs that determine the generated code.
func NewKey(version, platform string, source []byte) Key {
	h, _ := blake2b.New256(nil) // only fails for oversized keys
	for _, part := range [][]byte{[]byte(version), []byte(platform)} {
		var n [8]byte
		for i := range n {
			n[i] = byte(len(part) >> (8 * i))
		}
		h.Write(n[:])
		h.Write(part)
	}
	h.Write(source)
	var k Key
	h.Sum(k[:0])
	return k
}

func (k Key) bytes() []byte {
	return append(append([]byte(nil), keyPrefix...), k[:]...)
}

// Store is a pebble database of compiled programs.
type Store struct {
	db  *pebble.DB
	dir string
}

// Open opens or creates the store in dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", dir, err)
	}
	log.Debugf("opened cache %s", dir)
	return &Store{db: db, dir: dir}, nil
}

// Get returns the entry for k. The boolean is false on a miss.
func (s *Store) Get(k Key) (*Entry, bool, error) {
	value, closer, err := s.db.Get(k.bytes())
	if errors.Is(err, pebble.ErrNotFound) {
		log.Debugf("cache miss %x", k[:8])
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	defer closer.Close()

	var e Entry
	if err := cbor.Unmarshal(value, &e); err != nil {
		return nil, false, fmt.Errorf("cache: unmarshal entry: %w", err)
	}
	log.Debugf("cache hit %x, %d bytes", k[:8], len(e.Code))
	return &e, true, nil
}

// Put stores e under k.
func (s *Store) Put(k Key, e *Entry) error {
	data, err := encMode.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache: marshal entry: %w", err)
	}
	if err := s.db.Set(k.bytes(), data, pebble.Sync); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
