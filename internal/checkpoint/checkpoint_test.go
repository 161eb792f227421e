package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "ckpt"))
	checksum := [32]byte{1, 2, 3}
	st := &State{Header: Header{ScenarioChecksum: checksum, Step: 42}, Payload: []byte("hello")}
	if err := store.Save(st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(checksum)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Header.Step != 42 || string(got.Payload) != "hello" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestLoadRejectsChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "ckpt"))
	st := &State{Header: Header{ScenarioChecksum: [32]byte{1}}, Payload: []byte("x")}
	store.Save(st)
	if _, err := store.Load([32]byte{2}); err == nil {
		t.Errorf("Load() with mismatched checksum succeeded, want error")
	}
}

func TestSaveAlternatesSlots(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "ckpt"))
	checksum := [32]byte{9}
	store.Save(&State{Header: Header{ScenarioChecksum: checksum, Step: 1}})
	marker1, _ := os.ReadFile(store.markerPath())
	store.Save(&State{Header: Header{ScenarioChecksum: checksum, Step: 2}})
	marker2, _ := os.ReadFile(store.markerPath())
	if marker1[0] == marker2[0] {
		t.Errorf("consecutive saves used the same slot: %v, %v", marker1, marker2)
	}
}
