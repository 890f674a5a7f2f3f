package box

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCreate_singleShortFile(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	writeFile(t, filepath.Join(dir, "a.bin"), data)

	b, err := Create("box", dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if len(b.Metadata.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(b.Metadata.Files))
	}
	if len(b.Metadata.Files[0].Pieces) != 1 {
		t.Fatalf("expected 1 piece, got %d", len(b.Metadata.Files[0].Pieces))
	}

	b2, err := Create("box", dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b2.Close()
	if b.Hash != b2.Hash {
		t.Fatalf("hash is not stable across runs: %x != %x", b.Hash, b2.Hash)
	}
}

func TestCreate_emptyDirectory(t *testing.T) {
	dir := t.TempDir()

	b, err := Create("empty", dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if len(b.Metadata.Files) != 0 {
		t.Fatalf("expected 0 files, got %d", len(b.Metadata.Files))
	}

	b2, err := Create("empty", dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b2.Close()
	if b.Hash != b2.Hash {
		t.Fatalf("empty-box hash is not deterministic")
	}
}

func TestCreate_differentNameDifferentHash(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.bin"), []byte("hello"))

	b1, err := Create("first", dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b1.Close()

	b2, err := Create("second", dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b2.Close()

	if b1.Hash == b2.Hash {
		t.Fatal("changing the box name should change the hash")
	}
}

func TestCreate_shortFinalPiece(t *testing.T) {
	dir := t.TempDir()
	data := bytes.Repeat([]byte{0xAA}, PieceSize+100)
	writeFile(t, filepath.Join(dir, "a.bin"), data)

	b, err := Create("box", dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	pieces := b.Files[0].Pieces()
	if len(pieces) != 2 {
		t.Fatalf("expected 2 pieces, got %d", len(pieces))
	}
	if pieces[1].Size() != 100 {
		t.Fatalf("expected final piece size 100, got %d", pieces[1].Size())
	}
	if want := chunksFor(100); want != 1 {
		t.Fatalf("ceil(100/256) should be 1, got %d", want)
	}
}

// TestTwoPeerFreshDownload simulates scenario 2 from spec §8: a fresh receiver
// materializes a box from metadata and pulls every piece from pieces
// already sealed on the host's copy.
func TestTwoPeerFreshDownload(t *testing.T) {
	hostDir := t.TempDir()
	writeFile(t, filepath.Join(hostDir, "a.bin"), bytes.Repeat([]byte{0xAA}, PieceSize))
	writeFile(t, filepath.Join(hostDir, "b.bin"), []byte{0xBB})

	host, err := Create("box", hostDir)
	if err != nil {
		t.Fatal(err)
	}
	defer host.Close()

	recvDir := t.TempDir()
	recv, err := FromMetadata(recvDir, host.Hash, host.Metadata)
	if err != nil {
		t.Fatal(err)
	}
	defer recv.Close()

	for fi, f := range recv.Files {
		hostFile := host.Files[fi]
		for _, pi := range f.NeededPieces() {
			hostPiece, ok := hostFile.ReadPiece(pi)
			if !ok {
				t.Fatalf("host missing piece %d of file %d", pi, fi)
			}
			total := chunksFor(len(hostPiece))
			for c := 0; c < total; c++ {
				start := c * ChunkSize
				end := start + ChunkSize
				if end > len(hostPiece) {
					end = len(hostPiece)
				}
				if !f.WriteChunk(pi, c, hostPiece[start:end]) {
					t.Fatalf("write_chunk rejected chunk %d of piece %d", c, pi)
				}
			}
			if !f.HasPiece(pi) {
				t.Fatalf("piece %d of file %d did not seal", pi, fi)
			}
		}
	}

	for fi := range recv.Files {
		recvPath := filepath.Join(recvDir, host.Metadata.Files[fi].Path)
		hostPath := filepath.Join(hostDir, host.Metadata.Files[fi].Path)
		recvBytes, err := os.ReadFile(recvPath)
		if err != nil {
			t.Fatal(err)
		}
		hostBytes, err := os.ReadFile(hostPath)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(recvBytes, hostBytes) {
			t.Fatalf("file %d mismatch after transfer", fi)
		}
	}

	if err := recv.VerifyComplete(); err != nil {
		t.Fatalf("VerifyComplete: %v", err)
	}
}

// TestResume exercises scenario 3: a.bin is already correct on disk,
// b.bin is missing, so only b.bin's piece should need downloading.
func TestResume(t *testing.T) {
	hostDir := t.TempDir()
	writeFile(t, filepath.Join(hostDir, "a.bin"), bytes.Repeat([]byte{0xAA}, PieceSize))
	writeFile(t, filepath.Join(hostDir, "b.bin"), []byte{0xBB})
	host, err := Create("box", hostDir)
	if err != nil {
		t.Fatal(err)
	}
	defer host.Close()

	recvDir := t.TempDir()
	writeFile(t, filepath.Join(recvDir, "a.bin"), bytes.Repeat([]byte{0xAA}, PieceSize))

	recv, err := FromMetadata(recvDir, host.Hash, host.Metadata)
	if err != nil {
		t.Fatal(err)
	}
	defer recv.Close()

	needed := recv.NeededPieces()
	if len(needed) != 1 {
		t.Fatalf("expected exactly one file with outstanding pieces, got %d", len(needed))
	}
	if host.Metadata.Files[needed[0].FileIndex].Path != "b.bin" {
		t.Fatalf("expected b.bin to need downloading, got %s", host.Metadata.Files[needed[0].FileIndex].Path)
	}
}
