package box

import (
	"errors"
	"os"

	"github.com/edsrzf/mmap-go"
)

// ErrInvalidInput is returned when a receiver's expected piece hash count
// does not match the number of PieceSize windows a file actually has.
var ErrInvalidInput = errors.New("box: piece count does not match file length")

// MappedFile is a memory-mapped view of a single on-disk file, split into
// an ordered sequence of PieceSize-byte windows. Writes during download go
// straight into the mapped page; a piece seals (Downloaded) once every
// chunk has arrived and the window's digest matches its expected hash.
type MappedFile struct {
	mapping mmap.MMap
	size    int
	pieces  []*Piece
}

// windows splits data into PieceSize-length slices, the last possibly
// shorter, sharing the backing array (so writes to a window mutate the
// mapping in place).
func windows(data []byte) [][]byte {
	if len(data) == 0 {
		return [][]byte{data[:0]}
	}
	var out [][]byte
	for start := 0; start < len(data); start += PieceSize {
		end := start + PieceSize
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[start:end])
	}
	return out
}

// FromWholeFile maps an existing, fully-populated file read/write and
// hashes every piece, returning both the per-file hash (folded into a
// box's hash) and the resulting MappedFile with every piece Downloaded.
// This is the seeder-side constructor.
func FromWholeFile(f *os.File) (FileHash, *MappedFile, error) {
	info, err := f.Stat()
	if err != nil {
		return FileHash{}, nil, err
	}
	size := int(info.Size())

	mapping, err := mmapFile(f, size)
	if err != nil {
		return FileHash{}, nil, err
	}

	fileHasher := newBoxHasher()
	pieces := make([]*Piece, 0, len(windows(mapping)))
	for _, window := range windows([]byte(mapping)) {
		fileHasher.Write(window)
		pieces = append(pieces, newDownloadedPiece(sumPiece(window), window))
	}

	var fileHash FileHash
	copy(fileHash[:], fileHasher.Sum(nil))

	return fileHash, &MappedFile{mapping: mapping, size: size, pieces: pieces}, nil
}

// FromFileVerified maps an existing file whose contents are not yet
// trusted and checks each window against its expected piece hash: windows
// whose digest already matches start Downloaded, the rest start
// Incomplete. This is the receiver "re-open" constructor. f must already
// be truncated/extended to the declared length.
func FromFileVerified(f *os.File, pieceHashes []PieceHash) (*MappedFile, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := int(info.Size())

	mapping, err := mmapFile(f, size)
	if err != nil {
		return nil, err
	}

	windowed := windows([]byte(mapping))
	if len(windowed) != len(pieceHashes) {
		mapping.Unmap()
		return nil, ErrInvalidInput
	}

	pieces := make([]*Piece, len(windowed))
	for i, window := range windowed {
		if sumPiece(window) == pieceHashes[i] {
			pieces[i] = newDownloadedPiece(pieceHashes[i], window)
		} else {
			pieces[i] = newIncompletePiece(pieceHashes[i], window)
		}
	}

	return &MappedFile{mapping: mapping, size: size, pieces: pieces}, nil
}

// FromFileEmpty maps a freshly created or truncated file of the declared
// length and builds every piece Incomplete. This is the receiver "fresh
// download" constructor. f must already be extended to the declared
// length.
func FromFileEmpty(f *os.File, pieceHashes []PieceHash) (*MappedFile, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := int(info.Size())

	mapping, err := mmapFile(f, size)
	if err != nil {
		return nil, err
	}

	windowed := windows([]byte(mapping))
	if len(windowed) != len(pieceHashes) {
		mapping.Unmap()
		return nil, ErrInvalidInput
	}

	pieces := make([]*Piece, len(windowed))
	for i, window := range windowed {
		pieces[i] = newIncompletePiece(pieceHashes[i], window)
	}

	return &MappedFile{mapping: mapping, size: size, pieces: pieces}, nil
}

func mmapFile(f *os.File, size int) (mmap.MMap, error) {
	if size == 0 {
		// mmap refuses to map a zero-length file; there is nothing to
		// verify or write for an empty file anyway.
		return mmap.MMap{}, nil
	}
	return mmap.MapRegion(f, size, mmap.RDWR, 0, 0)
}

// Size returns the on-disk length of the mapped file.
func (mf *MappedFile) Size() int {
	return mf.size
}

// Pieces returns the ordered pieces of the file.
func (mf *MappedFile) Pieces() []*Piece {
	return mf.pieces
}

// HasPiece reports whether piece i exists and has sealed.
func (mf *MappedFile) HasPiece(i int) bool {
	if i < 0 || i >= len(mf.pieces) {
		return false
	}
	return mf.pieces[i].Downloaded()
}

// ReadPiece returns a view of piece i's bytes if it has sealed.
func (mf *MappedFile) ReadPiece(i int) ([]byte, bool) {
	if i < 0 || i >= len(mf.pieces) {
		return nil, false
	}
	p := mf.pieces[i]
	if !p.Downloaded() {
		return nil, false
	}
	return p.data, true
}

// WriteChunk writes one chunk's worth of bytes into piece pieceIndex at
// chunkIndex. It is a no-op returning false if the piece does not exist or
// has already sealed, or if chunkIndex is out of range. Writing an
// already-acquired chunk again is idempotent and reports success without
// rewriting. Once every chunk has arrived, the piece is flushed and
// verified: on a hash match it seals to Downloaded; on a mismatch the
// chunk accounting is cleared (bytes already written are left in place,
// to be overwritten by whichever peer eventually sends a matching chunk).
func (mf *MappedFile) WriteChunk(pieceIndex, chunkIndex int, data []byte) bool {
	if pieceIndex < 0 || pieceIndex >= len(mf.pieces) {
		return false
	}
	p := mf.pieces[pieceIndex]
	incomplete, ok := p.state.(incompleteState)
	if !ok {
		return false
	}
	if chunkIndex < 0 || chunkIndex >= incomplete.totalChunks {
		return false
	}

	if !incomplete.acquired.has(chunkIndex) {
		offset := chunkIndex * ChunkSize
		copy(p.data[offset:], data)
		incomplete.acquired.set(chunkIndex)
	}

	if incomplete.acquired.count(incomplete.totalChunks) == incomplete.totalChunks {
		if len(mf.mapping) > 0 {
			mf.mapping.Flush()
		}
		if sumPiece(p.data) == p.hash {
			p.state = downloadedState{}
		} else {
			incomplete.acquired.clear()
		}
	}

	return true
}

// NeededPieces returns the indices of pieces that have not sealed, in
// increasing order.
func (mf *MappedFile) NeededPieces() []int {
	var out []int
	for i, p := range mf.pieces {
		if !p.Downloaded() {
			out = append(out, i)
		}
	}
	return out
}

// Close unmaps the file. It should be called once the MappedFile is no
// longer needed.
func (mf *MappedFile) Close() error {
	if len(mf.mapping) == 0 {
		return nil
	}
	return mf.mapping.Unmap()
}
