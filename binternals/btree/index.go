package btree

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bazaar-community/bzr-go/internal/readutil"
	"golang.org/x/xerrors"
)

var (
	// ErrInvalidSignature is returned when a file doesn't start with
	// the B+Tree index signature line.
	ErrInvalidSignature = errors.New("invalid index signature")
	// ErrInvalidHeader is returned when one of the option lines is
	// missing or doesn't parse.
	ErrInvalidHeader = errors.New("invalid index header")
)

// indexSignature is the first line of a B+Tree graph index file. The
// header is plain text and never compressed:
//
//	signature  := "B+Tree Graph Index 2" NL
//	options    := "node_ref_lists=" DIGITS NL
//	              "key_elements=" DIGITS NL
//	              "len=" DIGITS NL
//	              "row_lengths=" [DIGITS ("," DIGITS)*] NL
//
// The compressed node pages start right after the row_lengths line.
const indexSignature = "B+Tree Graph Index 2\n"

const (
	optionNodeRefLists = "node_ref_lists="
	optionKeyElements  = "key_elements="
	optionLen          = "len="
	optionRowLengths   = "row_lengths="
)

// Options is the per-index configuration both sides of the codec need to
// agree on. It is carried by the index header, never by the records.
type Options struct {
	// KeyElements is the number of segments in every key.
	KeyElements int
	// RefLists is the number of reference lists every record carries.
	// 0 means records hold no reference data at all.
	RefLists int
}

// Header is the decoded meta header of an index file.
type Header struct {
	Options
	// NumNodes is the total number of records in the index.
	NumNodes int
	// RowLengths holds the number of pages in each B+Tree row, root
	// row first. Empty for an empty index.
	RowLengths []int
}

// ParseHeader decodes the meta header of an index file and returns it
// along with the remaining bytes, which hold the node pages.
func ParseHeader(data []byte) (*Header, []byte, error) {
	if len(data) < len(indexSignature) || string(data[:len(indexSignature)]) != indexSignature {
		return nil, nil, xerrors.Errorf("not a B+Tree graph index 2 file: %w", ErrInvalidSignature)
	}
	rest := data[len(indexSignature):]

	h := &Header{}
	var err error
	if h.RefLists, rest, err = intOptionLine(rest, optionNodeRefLists); err != nil {
		return nil, nil, err
	}
	if h.KeyElements, rest, err = intOptionLine(rest, optionKeyElements); err != nil {
		return nil, nil, err
	}
	if h.KeyElements < 1 {
		return nil, nil, xerrors.Errorf("key_elements must be at least 1: %w", ErrInvalidHeader)
	}
	if h.NumNodes, rest, err = intOptionLine(rest, optionLen); err != nil {
		return nil, nil, err
	}

	line, rest, ok := readutil.ReadLine(rest)
	if !ok || !strings.HasPrefix(string(line), optionRowLengths) {
		return nil, nil, xerrors.Errorf("missing %s line: %w", strings.TrimSuffix(optionRowLengths, "="), ErrInvalidHeader)
	}
	value := string(line[len(optionRowLengths):])
	if value != "" {
		for _, raw := range strings.Split(value, ",") {
			length, err := strconv.Atoi(raw)
			if err != nil || length < 1 {
				return nil, nil, xerrors.Errorf("invalid row length %q: %w", raw, ErrInvalidHeader)
			}
			h.RowLengths = append(h.RowLengths, length)
		}
	}
	return h, rest, nil
}

func intOptionLine(data []byte, prefix string) (int, []byte, error) {
	line, rest, ok := readutil.ReadLine(data)
	if !ok || !strings.HasPrefix(string(line), prefix) {
		return 0, nil, xerrors.Errorf("missing %s line: %w", strings.TrimSuffix(prefix, "="), ErrInvalidHeader)
	}
	value, err := strconv.Atoi(string(line[len(prefix):]))
	if err != nil || value < 0 {
		return 0, nil, xerrors.Errorf("invalid %s value %q: %w", strings.TrimSuffix(prefix, "="), line[len(prefix):], ErrInvalidHeader)
	}
	return value, rest, nil
}

// Encode writes the header back out in the exact layout ParseHeader
// reads.
func (h *Header) Encode() []byte {
	var out strings.Builder
	out.WriteString(indexSignature)
	out.WriteString(optionNodeRefLists)
	out.WriteString(strconv.Itoa(h.RefLists))
	out.WriteByte('\n')
	out.WriteString(optionKeyElements)
	out.WriteString(strconv.Itoa(h.KeyElements))
	out.WriteByte('\n')
	out.WriteString(optionLen)
	out.WriteString(strconv.Itoa(h.NumNodes))
	out.WriteByte('\n')
	out.WriteString(optionRowLengths)
	lengths := make([]string, len(h.RowLengths))
	for i, l := range h.RowLengths {
		lengths[i] = strconv.Itoa(l)
	}
	out.WriteString(strings.Join(lengths, ","))
	out.WriteByte('\n')
	return []byte(out.String())
}
