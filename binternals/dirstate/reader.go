package dirstate

import (
	"errors"
	"strconv"

	"github.com/bazaar-community/bzr-go/internal/readutil"
	"golang.org/x/xerrors"
)

var (
	// ErrMalformedRecord is returned when a field or row boundary is
	// not where the format says it must be. There is no partial result:
	// the whole buffer has to be treated as corrupt and rebuilt.
	ErrMalformedRecord = errors.New("malformed dirstate record")

	// ErrCountMismatch is returned when the number of rows found in the
	// buffer differs from the count the header declared. Either the
	// file is truncated or the framing is broken; both mean corruption.
	ErrCountMismatch = errors.New("entry count mismatch")
)

// Minikind values, one byte per tree column, encoding what kind of entry
// the path is in that tree.
const (
	MinikindAbsent    byte = 'a'
	MinikindFile      byte = 'f'
	MinikindDirectory byte = 'd'
	MinikindSymlink   byte = 'l'
	MinikindRelocated byte = 'r'
	MinikindTreeRef   byte = 't'
)

// EntryKey identifies one row: the directory the entry lives in, its
// name within that directory, and its file id. All rows of one dirblock
// share a single Dirname string.
type EntryKey struct {
	Dirname  string
	Basename string
	FileID   string
}

// TreeData holds the five per-tree columns of a row.
type TreeData struct {
	// Minikind is the kind tag of the entry in this tree, one of the
	// Minikind constants.
	Minikind byte
	// Fingerprint identifies the content: a hash for files, the target
	// for symlinks, the referenced revision for tree references. Its
	// format is owned by the layers producing it.
	Fingerprint string
	// Size of the content in bytes.
	Size uint64
	// Executable tells whether the entry carries the executable bit.
	Executable bool
	// Info holds the packed stat for the working tree column and the
	// revision id for parent tree columns. Opaque at this layer.
	Info string
}

// Entry is one parsed row: its key plus one TreeData per tree, working
// tree first, then each present parent in order. Entries are never
// modified after parsing.
type Entry struct {
	Key   EntryKey
	Trees []TreeData
}

// Dirblock groups the entries that live directly in one directory.
// Blocks are sorted by CompareByDirs on their dirname.
type Dirblock struct {
	Dirname string
	Entries []Entry
}

// reader walks the row region of a dirstate file. Fields are separated
// by NUL bytes; every row ends with a field holding a single LF. The
// reader is one-shot: a single forward pass over buf, no rewinding.
type reader struct {
	buf []byte
	off int
}

// nextField returns the bytes up to the next NUL and moves the cursor
// past it. The returned slice aliases buf and is only valid until buf
// goes away; callers copy what they keep.
func (r *reader) nextField() ([]byte, error) {
	field := readutil.ReadTo(r.buf[r.off:], 0)
	if field == nil {
		return nil, xerrors.Errorf("no field terminator after offset %d: %w", r.off, ErrMalformedRecord)
	}
	r.off += len(field) + 1
	return field, nil
}

// nextFieldString is nextField with the copy made.
func (r *reader) nextFieldString() (string, error) {
	field, err := r.nextField()
	if err != nil {
		return "", err
	}
	return string(field), nil
}

// init consumes the empty field at the start of the row region. The
// region starts with the NUL that terminated the header section, so the
// first field must be empty; anything else means the caller handed us a
// buffer that doesn't start at a row boundary.
func (r *reader) init() error {
	field, err := r.nextField()
	if err != nil {
		return err
	}
	if len(field) != 0 {
		return xerrors.Errorf("row region starts with %q instead of an empty field: %w", field, ErrMalformedRecord)
	}
	return nil
}

// getEntry extracts one row. curDirname is the dirname shared by the
// rows of the currently open block: when the row's dirname field matches
// it the returned entry reuses that exact string, otherwise a new string
// is materialized and newBlock is true so the caller can open a fresh
// block. numTrees is the number of per-tree column sets to read, working
// tree included.
func (r *reader) getEntry(numTrees int, curDirname string) (entry Entry, newBlock bool, err error) {
	dirnameField, err := r.nextField()
	if err != nil {
		return entry, false, err
	}
	dirname := curDirname
	if string(dirnameField) != curDirname {
		dirname = string(dirnameField)
		newBlock = true
	}

	basename, err := r.nextFieldString()
	if err != nil {
		return entry, false, err
	}
	fileID, err := r.nextFieldString()
	if err != nil {
		return entry, false, err
	}
	entry.Key = EntryKey{
		Dirname:  dirname,
		Basename: basename,
		FileID:   fileID,
	}

	entry.Trees = make([]TreeData, numTrees)
	for i := 0; i < numTrees; i++ {
		tree := &entry.Trees[i]

		minikind, err := r.nextField()
		if err != nil {
			return entry, false, err
		}
		if len(minikind) != 1 {
			return entry, false, xerrors.Errorf("minikind %q is not a single byte: %w", minikind, ErrMalformedRecord)
		}
		tree.Minikind = minikind[0]

		tree.Fingerprint, err = r.nextFieldString()
		if err != nil {
			return entry, false, err
		}

		size, err := r.nextField()
		if err != nil {
			return entry, false, err
		}
		tree.Size, err = strconv.ParseUint(string(size), 10, 64)
		if err != nil {
			return entry, false, xerrors.Errorf("invalid size field %q: %w", size, ErrMalformedRecord)
		}

		executable, err := r.nextField()
		if err != nil {
			return entry, false, err
		}
		tree.Executable = len(executable) == 1 && executable[0] == 'y'

		tree.Info, err = r.nextFieldString()
		if err != nil {
			return entry, false, err
		}
	}

	// The final field of every row holds exactly one LF. Anything else
	// means the fields above were read off a desynchronized boundary.
	trailing, err := r.nextField()
	if err != nil {
		return entry, false, err
	}
	if len(trailing) != 1 || trailing[0] != '\n' {
		return entry, false, xerrors.Errorf("row terminator is %q instead of a single LF: %w", trailing, ErrMalformedRecord)
	}
	return entry, newBlock, nil
}

// ParseDirblocks parses the row region of a dirstate file into dirblocks.
//
// buf must start right after the header section, at the NUL that
// terminated it. numPresentParents is the number of parent trees with
// stored column data, so each row carries numPresentParents+1 column
// sets. expectedEntries is the row count the header declared; parsing
// any other number of rows returns ErrCountMismatch.
//
// Block 0 always exists and always has an empty dirname. It holds the
// root entry together with the entries living directly in the root;
// splitting those apart is the caller's job.
func ParseDirblocks(buf []byte, numPresentParents, expectedEntries int) ([]Dirblock, error) {
	r := &reader{buf: buf}
	if err := r.init(); err != nil {
		return nil, err
	}

	numTrees := numPresentParents + 1
	blocks := []Dirblock{{Dirname: ""}}
	cur := 0
	entries := 0
	for r.off < len(r.buf) {
		entry, newBlock, err := r.getEntry(numTrees, blocks[cur].Dirname)
		if err != nil {
			return nil, err
		}
		if newBlock {
			// Blocks are stored in dirblock order. An out-of-order
			// dirname cannot come from a writer that sorted its rows.
			if CompareByDirs(blocks[cur].Dirname, entry.Key.Dirname) >= 0 {
				return nil, xerrors.Errorf("dirblock %q follows %q: %w", entry.Key.Dirname, blocks[cur].Dirname, ErrMalformedRecord)
			}
			blocks = append(blocks, Dirblock{Dirname: entry.Key.Dirname})
			cur++
		}
		blocks[cur].Entries = append(blocks[cur].Entries, entry)
		entries++
	}
	if entries != expectedEntries {
		return nil, xerrors.Errorf("parsed %d entries, header declared %d: %w", entries, expectedEntries, ErrCountMismatch)
	}
	return blocks, nil
}
