package bytecode

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}

// Marshal serializes Code to canonical CBOR, grounded on the teacher's
// vm/dist/wire.go chunk-sync wire format.
func Marshal(c *Code) ([]byte, error) {
	return encMode.Marshal(c)
}

func Unmarshal(data []byte) (*Code, error) {
	var c Code
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// CacheKey hashes the Code's constants, instructions, and captures
// together (not just the instruction bytes), so that two functions with
// identical bytecode but different capture wiring never collide — this
// mirrors the original engine's method digest, which folds in the
// captured-variable descriptor rather than hashing bytecode alone.
func CacheKey(c *Code) [32]byte {
	h := sha256.New()
	binary.Write(h, binary.BigEndian, c.Version)
	h.Write(c.Instructions)
	for _, lit := range c.Constants {
		binary.Write(h, binary.BigEndian, int32(lit.Kind))
		binary.Write(h, binary.BigEndian, lit.Num)
		io.WriteString(h, lit.Str)
		binary.Write(h, binary.BigEndian, int32(lit.Idx))
	}
	for _, cap := range c.Captures {
		io.WriteString(h, cap.Name)
		binary.Write(h, binary.BigEndian, int32(cap.Index))
		binary.Write(h, binary.BigEndian, cap.FromEnclosingCapture)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Store is a SHA-256 content-addressed cache of compiled Code, persisted
// as zstd-compressed CBOR blobs under dir. Grounded on the teacher's
// vm/content_store.go in-memory ContentStore design, extended here with
// on-disk persistence since this repo's cache must survive process
// restarts (the teacher's is process-lifetime only).
type Store struct {
	mu      sync.RWMutex
	dir     string
	hot     map[[32]byte]*Code
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, hot: make(map[[32]byte]*Code), encoder: enc, decoder: dec}, nil
}

func (s *Store) path(key [32]byte) string {
	return filepath.Join(s.dir, fmt.Sprintf("%x.sapfc", key))
}

// Get returns a cached Code by content key, checking the in-memory hot
// map before falling back to disk.
func (s *Store) Get(key [32]byte) (*Code, bool) {
	s.mu.RLock()
	if c, ok := s.hot[key]; ok {
		s.mu.RUnlock()
		return c, true
	}
	s.mu.RUnlock()

	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, false
	}
	decoded, err := s.decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, false
	}
	c, err := Unmarshal(decoded)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	s.hot[key] = c
	s.mu.Unlock()
	return c, true
}

// Put stores c under its content key, writing through to disk.
func (s *Store) Put(c *Code) ([32]byte, error) {
	key := CacheKey(c)
	s.mu.Lock()
	s.hot[key] = c
	s.mu.Unlock()

	raw, err := Marshal(c)
	if err != nil {
		return key, err
	}
	compressed := s.encoder.EncodeAll(raw, nil)
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return key, err
	}
	return key, os.Rename(tmp, s.path(key))
}

// GetOrCompile returns the cached Code for the digest of compile()'s
// eventual result if present; otherwise it compiles, stores, and returns
// the fresh result. compile is invoked on every call, hit or miss, since
// the key isn't known until it runs — callers with a precomputed key
// (e.g. from a prior session) should call Get directly instead.
func (s *Store) GetOrCompile(compile func() (*Code, error)) (*Code, error) {
	c, err := compile()
	if err != nil {
		return nil, err
	}
	key := CacheKey(c)
	if cached, ok := s.Get(key); ok {
		return cached, nil
	}
	if _, err := s.Put(c); err != nil {
		return nil, err
	}
	return c, nil
}
