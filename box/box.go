package box

import (
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/karrick/godirwalk"
)

// Box is an immutable, content-addressed bundle of one or more files plus
// a name (the "CardboardBox" of the data model this package implements).
// Its hash is derived from every file's contents and from the metadata
// that tells a receiver how to re-materialize it: changing any byte, the
// file set, the file order, or the declared name changes the hash.
type Box struct {
	Hash     BoxHash
	Metadata Metadata
	BasePath string
	Files    []*MappedFile
}

// Create walks dir, maps and hashes every regular file it contains (in
// lexicographic path order; symlinks to files are followed, symlinked
// directories are not descended into), and derives the box's hash from
// the resulting file hashes plus the encoded metadata.
//
// The walk itself uses github.com/karrick/godirwalk rather than stdlib
// filepath.WalkDir, grounded on other_examples/manifests/beam-cloud-clip
// (a tool that walks a source tree to build a filesystem image, a
// direct analogue of walking a directory to build a box), mirroring
// the original Rust's use of the walkdir crate.
func Create(name string, dir string) (*Box, error) {
	paths, err := collectFiles(dir)
	if err != nil {
		return nil, err
	}

	hasher := newBoxHasher()
	files := make([]*MappedFile, 0, len(paths))
	fileMetas := make([]FileMeta, 0, len(paths))

	for _, relPath := range paths {
		f, err := os.OpenFile(filepath.Join(dir, relPath), os.O_RDWR, 0)
		if err != nil {
			return nil, err
		}

		fileHash, mapped, err := FromWholeFile(f)
		f.Close()
		if err != nil {
			return nil, err
		}

		hasher.Write(fileHash[:])

		pieceHashes := make([]PieceHash, len(mapped.pieces))
		for i, p := range mapped.pieces {
			pieceHashes[i] = p.Hash()
		}

		files = append(files, mapped)
		fileMetas = append(fileMetas, FileMeta{
			Path:   relPath,
			Size:   mapped.Size(),
			Pieces: pieceHashes,
		})
	}

	metadata := Metadata{Name: name, Files: fileMetas}
	hasher.Write(metadata.Encode())

	var hash BoxHash
	copy(hash[:], hasher.Sum(nil))

	return &Box{
		Hash:     hash,
		Metadata: metadata,
		BasePath: dir,
		Files:    files,
	}, nil
}

// collectFiles returns every regular file under dir (symlinks resolved,
// symlinked directories not descended into, matching godirwalk's
// default non-follow behavior), as paths relative to dir. godirwalk
// already yields entries in sorted order by default; the explicit sort
// below is kept as a guarantee independent of that default.
func collectFiles(dir string) ([]string, error) {
	var rel []string
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			info, err := os.Stat(osPathname) // follows symlinks
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			r, err := filepath.Rel(dir, osPathname)
			if err != nil {
				return err
			}
			rel = append(rel, r)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(rel)
	return rel, nil
}

// FromMetadata materializes a box at dir from metadata received over the
// wire, trusting hash as the identity the caller asked for (the receiver
// does not re-derive it from the metadata). For each file, an existing
// regular file is opened, truncated/extended to the declared size and
// re-verified piece-by-piece; a missing file is created fresh at the
// declared size with every piece Incomplete.
func FromMetadata(dir string, hash BoxHash, metadata Metadata) (*Box, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	files := make([]*MappedFile, 0, len(metadata.Files))
	for _, entry := range metadata.Files {
		fpath := filepath.Join(dir, entry.Path)
		if parent := filepath.Dir(fpath); parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}

		var mapped *MappedFile
		if info, err := os.Stat(fpath); err == nil && info.Mode().IsRegular() {
			f, err := os.OpenFile(fpath, os.O_RDWR, 0)
			if err != nil {
				return nil, err
			}
			if err := f.Truncate(int64(entry.Size)); err != nil {
				f.Close()
				return nil, err
			}
			mapped, err = FromFileVerified(f, entry.Pieces)
			f.Close()
			if err != nil {
				return nil, err
			}
		} else {
			f, err := os.OpenFile(fpath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				return nil, err
			}
			if err := f.Truncate(int64(entry.Size)); err != nil {
				f.Close()
				return nil, err
			}
			mapped, err = FromFileEmpty(f, entry.Pieces)
			f.Close()
			if err != nil {
				return nil, err
			}
		}

		files = append(files, mapped)
	}

	return &Box{
		Hash:     hash,
		Metadata: metadata,
		BasePath: dir,
		Files:    files,
	}, nil
}

// FileNeeded pairs a file's index within Box.Files with the ordered list
// of its not-yet-downloaded piece indices.
type FileNeeded struct {
	FileIndex int
	Pieces    []int
}

// NeededPieces returns one FileNeeded per file that has outstanding
// pieces, omitting files with nothing left to download.
func (b *Box) NeededPieces() []FileNeeded {
	var out []FileNeeded
	for i, f := range b.Files {
		if pieces := f.NeededPieces(); len(pieces) > 0 {
			out = append(out, FileNeeded{FileIndex: i, Pieces: pieces})
		}
	}
	return out
}

// ErrHashMismatch is returned by VerifyComplete when a fully-downloaded
// box's re-derived hash does not match the hash it was requested under.
var ErrHashMismatch = errors.New("box: re-derived hash does not match requested hash")

// Complete reports whether every piece of every file has sealed.
func (b *Box) Complete() bool {
	for _, f := range b.Files {
		if len(f.NeededPieces()) > 0 {
			return false
		}
	}
	return true
}

// VerifyComplete re-derives the box hash from its (now fully downloaded)
// files and metadata and checks it against the hash the box was
// requested under. This is not done by the original this package is
// modelled on; it resolves spec's open question of whether a receiver
// should ever double-check that what it assembled is what it asked for.
// It only produces a meaningful answer once Complete reports true.
func (b *Box) VerifyComplete() error {
	hasher := newBoxHasher()
	for _, f := range b.Files {
		fileHasher := newBoxHasher()
		for _, p := range f.Pieces() {
			fileHasher.Write(p.data)
		}
		hasher.Write(fileHasher.Sum(nil))
	}
	hasher.Write(b.Metadata.Encode())

	var derived BoxHash
	copy(derived[:], hasher.Sum(nil))
	if derived != b.Hash {
		return ErrHashMismatch
	}
	return nil
}

// Close unmaps every file in the box.
func (b *Box) Close() error {
	var firstErr error
	for _, f := range b.Files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
