package box

// pieceState is a closed sum type for a piece's verification status. Go has
// no enum-with-payload, so it is modelled as a small interface with two
// unexported implementations, mirroring the PieceState::Downloaded /
// PieceState::Incomplete(total, acquired) split from the source this
// package is a rewrite of: a switch on the interface replaces a match.
type pieceState interface {
	pieceState()
}

// downloadedState is a sealed piece: its bytes already satisfy the hash.
type downloadedState struct{}

func (downloadedState) pieceState() {}

// incompleteState is a piece still being assembled from chunks.
type incompleteState struct {
	totalChunks int
	acquired    chunkSet
}

func (incompleteState) pieceState() {}

// Piece is one PieceSize-byte window of a file (the last piece of a file
// may be shorter), the unit of verification and of peer request/response.
type Piece struct {
	hash  PieceHash
	size  int
	data  []byte // view into the file's mmap
	state pieceState
}

// Hash returns the piece's expected content digest.
func (p *Piece) Hash() PieceHash {
	return p.hash
}

// Size returns the declared byte length of the piece.
func (p *Piece) Size() int {
	return p.size
}

// Downloaded reports whether the piece has sealed.
func (p *Piece) Downloaded() bool {
	_, ok := p.state.(downloadedState)
	return ok
}

func newIncompletePiece(hash PieceHash, data []byte) *Piece {
	total := chunksFor(len(data))
	return &Piece{
		hash: hash,
		size: len(data),
		data: data,
		state: incompleteState{
			totalChunks: total,
			acquired:    newChunkSet(total),
		},
	}
}

func newDownloadedPiece(hash PieceHash, data []byte) *Piece {
	return &Piece{
		hash:  hash,
		size:  len(data),
		data:  data,
		state: downloadedState{},
	}
}

// chunksFor returns the number of ChunkSize-byte chunks a window of the
// given length splits into, i.e. ceil(windowLen/ChunkSize).
func chunksFor(windowLen int) int {
	return (windowLen + ChunkSize - 1) / ChunkSize
}
