package box

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func emptyMappedFile(t *testing.T, size int, hashes []PieceHash) (*MappedFile, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f.bin")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		t.Fatal(err)
	}
	mf, err := FromFileEmpty(f, hashes)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}
	return mf, path
}

func TestWriteChunk_idempotent(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 300)
	hash := sumPiece(data)
	mf, _ := emptyMappedFile(t, 300, []PieceHash{hash})

	chunk0 := data[:ChunkSize]
	chunk1 := data[ChunkSize:]

	if !mf.WriteChunk(0, 0, chunk0) {
		t.Fatal("first write of chunk 0 rejected")
	}
	if !mf.WriteChunk(0, 0, chunk0) {
		t.Fatal("second write of chunk 0 rejected")
	}
	if mf.HasPiece(0) {
		t.Fatal("piece sealed before all chunks arrived")
	}
	if !mf.WriteChunk(0, 1, chunk1) {
		t.Fatal("write of chunk 1 rejected")
	}
	if !mf.HasPiece(0) {
		t.Fatal("piece did not seal once all chunks matched")
	}

	got, ok := mf.ReadPiece(0)
	if !ok || !bytes.Equal(got, data) {
		t.Fatalf("sealed piece bytes do not match: ok=%v got=%v", ok, got)
	}
}

func TestWriteChunk_badChunkIndexRejected(t *testing.T) {
	hash := sumPiece(make([]byte, 10))
	mf, _ := emptyMappedFile(t, 10, []PieceHash{hash})

	if mf.WriteChunk(0, 5, []byte{1}) {
		t.Fatal("chunk index beyond total_chunks should be rejected")
	}
}

func TestWriteChunk_chunkIndexEqualToTotalChunksRejected(t *testing.T) {
	// 10 bytes is one short chunk: totalChunks == 1, so index 1 is already
	// out of range even though it is not greater than totalChunks.
	hash := sumPiece(make([]byte, 10))
	mf, _ := emptyMappedFile(t, 10, []PieceHash{hash})

	if mf.WriteChunk(0, 1, []byte{1}) {
		t.Fatal("chunk index equal to totalChunks should be rejected")
	}
}

func TestWriteChunk_corruptionClearsAccountingAndAllowsRetry(t *testing.T) {
	data := bytes.Repeat([]byte{0x7}, 300)
	hash := sumPiece(data)
	mf, _ := emptyMappedFile(t, 300, []PieceHash{hash})

	bad := bytes.Repeat([]byte{0xFF}, ChunkSize)
	mf.WriteChunk(0, 0, bad)
	mf.WriteChunk(0, 1, data[ChunkSize:])

	if mf.HasPiece(0) {
		t.Fatal("piece should not seal with corrupted data")
	}

	// A matching sender now overwrites the bad bytes.
	mf.WriteChunk(0, 0, data[:ChunkSize])
	mf.WriteChunk(0, 1, data[ChunkSize:])

	if !mf.HasPiece(0) {
		t.Fatal("piece should seal once correct data has been rewritten")
	}
}

func TestFromFileVerified_countMismatchIsInvalidInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.bin")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := f.Truncate(PieceSize + 1); err != nil {
		t.Fatal(err)
	}

	_, err = FromFileVerified(f, []PieceHash{{}}) // 2 windows expected, 1 hash given
	if err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFromFileVerified_marksMatchingPiecesDownloaded(t *testing.T) {
	data := bytes.Repeat([]byte{0x9}, 500)
	hash := sumPiece(data)

	path := filepath.Join(t.TempDir(), "f.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	mf, err := FromFileVerified(f, []PieceHash{hash})
	if err != nil {
		t.Fatal(err)
	}
	if !mf.HasPiece(0) {
		t.Fatal("piece with matching on-disk content should already be Downloaded")
	}
}

func TestNeededPieces_orderedAndExcludesDownloaded(t *testing.T) {
	size := PieceSize*2 + 10
	hashes := []PieceHash{{1}, {2}, {3}}
	mf, _ := emptyMappedFile(t, size, hashes)

	mf.pieces[1].state = downloadedState{}

	needed := mf.NeededPieces()
	if len(needed) != 2 || needed[0] != 0 || needed[1] != 2 {
		t.Fatalf("unexpected needed pieces: %v", needed)
	}
}
