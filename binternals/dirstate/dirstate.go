package dirstate

import (
	"errors"
	"hash/crc32"
	"strconv"
	"strings"

	"github.com/bazaar-community/bzr-go/internal/readutil"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"
)

var (
	// ErrInvalidSignature is returned when the file doesn't start with
	// the dirstate format 3 signature line.
	ErrInvalidSignature = errors.New("invalid dirstate signature")
	// ErrInvalidHeader is returned when one of the header lines is
	// missing or doesn't parse.
	ErrInvalidHeader = errors.New("invalid dirstate header")
	// ErrChecksumMismatch is returned when the stored crc32 doesn't
	// match the body of the file.
	ErrChecksumMismatch = errors.New("dirstate checksum mismatch")
	// ErrBadEntry is returned by Serialize when an entry cannot be
	// represented in the format, for instance a field containing a NUL.
	ErrBadEntry = errors.New("entry not serializable")
)

// signature is the first line of a dirstate file.
// The file has the following format:
//
//	signature        := "#bazaar dirstate flat format 3" NL
//	checksum         := "crc32: " ["-"] DIGITS NL
//	row count        := "num_entries: " DIGITS NL
//	body             := parents-line SEP ghosts-line SEP row* ""
//	SEP              := NULL NL NULL
//	parents-line     := number-of-parents (NULL parent-revid)*
//	ghosts-line      := number-of-ghosts (NULL ghost-revid)*
//	row              := NULL-joined fields, see ParseDirblocks
//
// The checksum covers the body. The SEP between the last row and the
// trailing empty element is what makes every row end with a lone-LF
// field and the row region start with an empty one.
const signature = "#bazaar dirstate flat format 3\n"

const (
	crc32Prefix      = "crc32: "
	numEntriesPrefix = "num_entries: "
)

// DirState is a fully loaded dirstate file.
type DirState struct {
	// Parents holds the revision ids of all parent trees, ghosts
	// included, in order.
	Parents []string
	// Ghosts holds the revision ids of the parents that are not
	// present in the repository. Ghost parents carry no column data in
	// the rows.
	Ghosts []string
	// Blocks holds the parsed rows grouped by directory. Block 0 has
	// an empty dirname and contains both the root entry and the
	// entries living directly in the root.
	Blocks []Dirblock
}

// NumPresentParents returns the number of parent trees that have column
// data stored for every row.
func (s *DirState) NumPresentParents() int {
	return len(s.Parents) - len(s.Ghosts)
}

// NumEntries returns the number of rows across all blocks.
func (s *DirState) NumEntries() int {
	n := 0
	for i := range s.Blocks {
		n += len(s.Blocks[i].Entries)
	}
	return n
}

// Load reads and parses the dirstate file at path.
func Load(fs afero.Fs, path string) (*DirState, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, xerrors.Errorf("could not read %s: %w", path, err)
	}
	state, err := Parse(data)
	if err != nil {
		return nil, xerrors.Errorf("could not parse %s: %w", path, err)
	}
	return state, nil
}

// Parse parses a whole dirstate file: signature, checksum line, entry
// count line, parent and ghost lists, then the row region.
func Parse(data []byte) (*DirState, error) {
	if len(data) < len(signature) || string(data[:len(signature)]) != signature {
		return nil, xerrors.Errorf("not a dirstate format 3 file: %w", ErrInvalidSignature)
	}
	rest := data[len(signature):]

	crcLine, rest, ok := readutil.ReadLine(rest)
	if !ok || !strings.HasPrefix(string(crcLine), crc32Prefix) {
		return nil, xerrors.Errorf("missing crc32 line: %w", ErrInvalidHeader)
	}
	// Writers using a signed 32-bit crc are valid per the format, so a
	// leading '-' has to be accepted.
	crcValue, err := strconv.ParseInt(string(crcLine[len(crc32Prefix):]), 10, 64)
	if err != nil {
		return nil, xerrors.Errorf("invalid crc32 value: %s: %w", err.Error(), ErrInvalidHeader)
	}

	countLine, rest, ok := readutil.ReadLine(rest)
	if !ok || !strings.HasPrefix(string(countLine), numEntriesPrefix) {
		return nil, xerrors.Errorf("missing num_entries line: %w", ErrInvalidHeader)
	}
	numEntries, err := strconv.Atoi(string(countLine[len(numEntriesPrefix):]))
	if err != nil || numEntries < 0 {
		return nil, xerrors.Errorf("invalid num_entries value %q: %w", countLine[len(numEntriesPrefix):], ErrInvalidHeader)
	}

	// Everything after the num_entries line is covered by the crc.
	if crc32.ChecksumIEEE(rest) != uint32(crcValue) {
		return nil, xerrors.Errorf("crc32 of body is %d, header declared %d: %w", crc32.ChecksumIEEE(rest), uint32(crcValue), ErrChecksumMismatch)
	}

	parents, rest, err := parseIDLine(rest, 0)
	if err != nil {
		return nil, xerrors.Errorf("could not parse parents line: %w", err)
	}
	ghosts, rest, err := parseIDLine(rest, 1)
	if err != nil {
		return nil, xerrors.Errorf("could not parse ghosts line: %w", err)
	}

	state := &DirState{
		Parents: parents,
		Ghosts:  ghosts,
	}
	state.Blocks, err = ParseDirblocks(rest, state.NumPresentParents(), numEntries)
	if err != nil {
		return nil, err
	}
	return state, nil
}

// parseIDLine parses one NUL-joined revision id list line of the body:
// a count, then the ids. skip is the number of leading empty fields to
// drop; the ghosts line has one because the separator between body lines
// puts a NUL before it.
func parseIDLine(data []byte, skip int) (ids []string, rest []byte, err error) {
	line, rest, ok := readutil.ReadLine(data)
	if !ok {
		return nil, nil, xerrors.Errorf("line not terminated: %w", ErrInvalidHeader)
	}
	fields := strings.Split(string(line), "\x00")
	for i := 0; i < skip; i++ {
		if len(fields) == 0 || fields[0] != "" {
			return nil, nil, xerrors.Errorf("line not aligned on a field boundary: %w", ErrInvalidHeader)
		}
		fields = fields[1:]
	}
	// The NUL right before the LF leaves a trailing empty field.
	if len(fields) < 2 || fields[len(fields)-1] != "" {
		return nil, nil, xerrors.Errorf("line not aligned on a field boundary: %w", ErrInvalidHeader)
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, nil, xerrors.Errorf("invalid id count %q: %w", fields[0], ErrInvalidHeader)
	}
	ids = fields[1 : len(fields)-1]
	if count != len(ids) {
		return nil, nil, xerrors.Errorf("line declares %d ids but holds %d: %w", count, len(ids), ErrInvalidHeader)
	}
	return ids, rest, nil
}

// Serialize writes the state back out in the exact on-disk layout Parse
// reads. The blocks must be sorted and every entry must carry one column
// set per present parent plus one for the working tree.
func (s *DirState) Serialize() ([]byte, error) {
	numTrees := s.NumPresentParents() + 1
	if numTrees <= 0 {
		return nil, xerrors.Errorf("more ghosts than parents: %w", ErrBadEntry)
	}

	lines := make([]string, 0, s.NumEntries()+3)
	lines = append(lines, joinIDLine(s.Parents), joinIDLine(s.Ghosts))
	for i := range s.Blocks {
		block := &s.Blocks[i]
		for j := range block.Entries {
			line, err := entryLine(&block.Entries[j], block.Dirname, numTrees)
			if err != nil {
				return nil, err
			}
			lines = append(lines, line)
		}
	}
	// The trailing empty element gives the last row its terminator.
	lines = append(lines, "")
	body := strings.Join(lines, "\x00\n\x00")

	var out strings.Builder
	out.Grow(len(signature) + len(body) + 64)
	out.WriteString(signature)
	out.WriteString(crc32Prefix)
	out.WriteString(strconv.FormatUint(uint64(crc32.ChecksumIEEE([]byte(body))), 10))
	out.WriteByte('\n')
	out.WriteString(numEntriesPrefix)
	out.WriteString(strconv.Itoa(s.NumEntries()))
	out.WriteByte('\n')
	out.WriteString(body)
	return []byte(out.String()), nil
}

func joinIDLine(ids []string) string {
	fields := make([]string, 0, len(ids)+1)
	fields = append(fields, strconv.Itoa(len(ids)))
	fields = append(fields, ids...)
	return strings.Join(fields, "\x00")
}

func entryLine(entry *Entry, dirname string, numTrees int) (string, error) {
	if len(entry.Trees) != numTrees {
		return "", xerrors.Errorf("entry %q has %d tree columns, want %d: %w", entry.Key.Basename, len(entry.Trees), numTrees, ErrBadEntry)
	}
	if entry.Key.Dirname != dirname {
		return "", xerrors.Errorf("entry %q carries dirname %q inside block %q: %w", entry.Key.Basename, entry.Key.Dirname, dirname, ErrBadEntry)
	}

	fields := make([]string, 0, 3+5*numTrees)
	fields = append(fields, entry.Key.Dirname, entry.Key.Basename, entry.Key.FileID)
	for i := range entry.Trees {
		tree := &entry.Trees[i]
		executable := "n"
		if tree.Executable {
			executable = "y"
		}
		fields = append(fields,
			string([]byte{tree.Minikind}),
			tree.Fingerprint,
			strconv.FormatUint(tree.Size, 10),
			executable,
			tree.Info,
		)
	}
	for _, f := range fields {
		if strings.ContainsAny(f, "\x00\n") {
			return "", xerrors.Errorf("field %q contains a delimiter byte: %w", f, ErrBadEntry)
		}
	}
	return strings.Join(fields, "\x00"), nil
}
