package cache

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKeyDependsOnEveryInput(t *testing.T) {
	base := NewKey("1.0", "arm64-linux", []byte("+."))
	others := []Key{
		NewKey("1.1", "arm64-linux", []byte("+.")),
		NewKey("1.0", "arm64-darwin", []byte("+.")),
		NewKey("1.0", "arm64-linux", []byte("-.")),
		// Field boundaries are length-prefixed
		NewKey("1.0a", "rm64-linux", []byte("+.")),
	}
	for i, k := range others {
		if k == base {
			t.Errorf("key %d collides with the base key", i)
		}
	}
	if NewKey("1.0", "arm64-linux", []byte("+.")) != base {
		t.Error("key is not deterministic")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	k := NewKey("test", "arm64-linux", []byte("+++."))
	if _, ok, err := s.Get(k); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	want := &Entry{
		Version:      "test",
		Platform:     "arm64-linux",
		Code:         []byte{0xea, 0x03, 0x00, 0xaa, 0xc0, 0x03, 0x5f, 0xd6},
		Instructions: 2,
		Loops:        2,
		MaxDepth:     2,
		Pairs:        []Pair{{ID: 1, Start: 6, End: 11}, {ID: 0, Start: 2, End: 16}},
	}
	if err := s.Put(k, want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Get(k)
	if err != nil || !ok {
		t.Fatalf("after put: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestStorePersists(t *testing.T) {
	dir := t.TempDir()
	k := NewKey("test", "arm64-linux", []byte(","))
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(k, &Entry{Code: []byte{1, 2, 3, 4}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	s, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if e, ok, _ := s.Get(k); !ok || len(e.Code) != 4 {
		t.Errorf("entry lost across reopen: %v %+v", ok, e)
	}
}
