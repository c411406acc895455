package session

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestStreamWriter_WriteAndVerify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "raw_flash.bbl")

	w := NewStreamWriter(path)
	if err := w.Open(); err != nil {
		t.Fatalf("Open error = %v", err)
	}

	chunks := [][]byte{[]byte("hello "), []byte("world"), {}}
	var want bytes.Buffer
	for _, c := range chunks {
		if err := w.Write(c); err != nil {
			t.Fatalf("Write error = %v", err)
		}
		want.Write(c)
	}

	if w.BytesWritten() != int64(want.Len()) {
		t.Errorf("BytesWritten = %d, want %d", w.BytesWritten(), want.Len())
	}

	wantHash := sha256.Sum256(want.Bytes())
	if w.SHA256Hex() != hex.EncodeToString(wantHash[:]) {
		t.Errorf("SHA256Hex = %s, want %s", w.SHA256Hex(), hex.EncodeToString(wantHash[:]))
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	match, diskHash, err := w.VerifyAgainstFile()
	if err != nil {
		t.Fatalf("VerifyAgainstFile error = %v", err)
	}
	if !match {
		t.Errorf("VerifyAgainstFile: match = false, disk hash = %s", diskHash)
	}

	onDisk, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error = %v", err)
	}
	if !bytes.Equal(onDisk, want.Bytes()) {
		t.Errorf("on-disk content = %q, want %q", onDisk, want.Bytes())
	}
}

func TestStreamWriter_CloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bbl")
	w := NewStreamWriter(path)
	if err := w.Open(); err != nil {
		t.Fatalf("Open error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first Close error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close error = %v", err)
	}
}

func TestStreamWriter_Abort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bbl")
	w := NewStreamWriter(path)
	if err := w.Open(); err != nil {
		t.Fatalf("Open error = %v", err)
	}
	if err := w.Write([]byte("partial")); err != nil {
		t.Fatalf("Write error = %v", err)
	}
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still exists after Abort: err = %v", err)
	}
}

func TestStreamWriter_VerifyDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bbl")
	w := NewStreamWriter(path)
	if err := w.Open(); err != nil {
		t.Fatalf("Open error = %v", err)
	}
	if err := w.Write([]byte("original data")); err != nil {
		t.Fatalf("Write error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	if err := os.WriteFile(path, []byte("corrupted!!!!"), 0o644); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}

	match, _, err := w.VerifyAgainstFile()
	if err != nil {
		t.Fatalf("VerifyAgainstFile error = %v", err)
	}
	if match {
		t.Error("VerifyAgainstFile: match = true for corrupted file, want false")
	}
}
