package audiostore

import (
	"bytes"
	"io"
	"os"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	payload := []byte("horn-honk-bytes")
	name, err := store.Put("Horn.mp3", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	rc, err := store.Get(name)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestGeneratedNamePreservesExtension(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	name, err := store.Put("Doorbell Chime.mp3", bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := name[len(name)-4:]; got != ".mp3" {
		t.Fatalf("generated name %q lost its extension", name)
	}
}

func TestGetMissingReturnsErrBlobMissing(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Get("does-not-exist.mp3"); err != ErrBlobMissing {
		t.Fatalf("Get(missing) = %v, want ErrBlobMissing", err)
	}
}

func TestDeleteRemovesBlob(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	name, err := store.Put("a.mp3", bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete(name); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(name); err != ErrBlobMissing {
		t.Fatalf("Get after delete = %v, want ErrBlobMissing", err)
	}
	if err := store.Delete(name); err != ErrBlobMissing {
		t.Fatalf("Delete again = %v, want ErrBlobMissing", err)
	}
}

func TestPutRejectsPathTraversalInBaseName(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	name, err := store.Put("../../etc/passwd", bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, statErr := os.Stat(name); statErr == nil {
		t.Fatalf("blob escaped the store directory: %s", name)
	}
}
