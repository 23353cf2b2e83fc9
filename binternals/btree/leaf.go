// Package btree implements the serialized form of B+Tree graph index
// nodes: the uncompressed meta header carrying the index configuration
// (index.go) and the leaf page codec (leaf.go).
//
// A leaf page holds sorted (key, value, reference lists) records. How
// many segments a key has and how many reference lists each record
// carries is fixed per index and known to both sides out of band; it is
// not repeated per record.
package btree

import (
	"bytes"
	"errors"
	"sort"
	"strings"

	"github.com/bazaar-community/bzr-go/internal/cache"
	"golang.org/x/xerrors"
)

var (
	// ErrNotALeaf is returned when a page doesn't start with the leaf
	// header line.
	ErrNotALeaf = errors.New("not a leaf node")
	// ErrMalformedLine is returned when a record line cannot be split
	// into key, references and value. The page is corrupt; there is no
	// partial result.
	ErrMalformedLine = errors.New("malformed leaf line")
	// ErrUnexpectedReferences is returned when a record carries
	// reference data but the index is configured with no reference
	// lists.
	ErrUnexpectedReferences = errors.New("unexpected reference data")
	// ErrBadKey is returned when a key has the wrong number of
	// segments, an empty segment, or a segment containing whitespace
	// or NUL bytes.
	ErrBadKey = errors.New("invalid index key")
	// ErrBadValue is returned when a value contains a LF or NUL byte.
	ErrBadValue = errors.New("invalid index value")
)

const leafHeader = "type=leaf\n"

// interned strings are shared across leaf parses. Large indices repeat
// the same key segments and values across thousands of pages, and one
// instance per distinct string is a big memory win. Sharing is capped so
// a pathological index cannot pin unbounded memory.
var interned = newInterned()

func newInterned() *cache.Intern {
	c, err := cache.NewIntern(1 << 16)
	if err != nil {
		// only reachable with a non-positive size
		panic(err)
	}
	return c
}

// Key is one index key: a fixed number of byte-string segments. The
// segment count is the index's key_elements setting.
type Key []string

// Compare compares two keys segment by segment.
func (k Key) Compare(other Key) int {
	n := len(k)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if c := strings.Compare(k[i], other[i]); c != 0 {
			return c
		}
	}
	return len(k) - len(other)
}

// String returns the NUL-joined form of the key, the exact bytes the key
// occupies inside a page.
func (k Key) String() string {
	return strings.Join(k, "\x00")
}

// RefList is one ordered list of keys referenced by a record.
type RefList []Key

// LeafEntry is one record of a leaf page.
type LeafEntry struct {
	Key   Key
	Value string
	// Refs has exactly one list per configured reference list, or nil
	// when the index is configured with none.
	Refs []RefList
}

// ParseLeafLines parses one decompressed leaf page into its records, in
// page order. The page must start with the "type=leaf" header line.
func (o Options) ParseLeafLines(data []byte) ([]LeafEntry, error) {
	if !bytes.HasPrefix(data, []byte(leafHeader)) {
		return nil, xerrors.Errorf("page does not start with %q: %w", strings.TrimSuffix(leafHeader, "\n"), ErrNotALeaf)
	}
	rest := string(data[len(leafHeader):])

	var entries []LeafEntry
	for rest != "" {
		var line string
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			line, rest = rest[:i], rest[i+1:]
		} else {
			line, rest = rest, ""
		}
		// the empty line left by the final LF ends the records
		if line == "" {
			break
		}
		entry, err := o.parseLeafLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (o Options) parseLeafLine(line string) (entry LeafEntry, err error) {
	elements := strings.SplitN(line, "\x00", o.KeyElements+1)
	if len(elements) != o.KeyElements+1 {
		return entry, xerrors.Errorf("line %q has %d key segments, want %d: %w", line, len(elements)-1, o.KeyElements, ErrMalformedLine)
	}
	entry.Key = make(Key, o.KeyElements)
	for i, segment := range elements[:o.KeyElements] {
		entry.Key[i] = internKeySegment(segment)
	}

	// Everything after the last NUL of the line is the value; whatever
	// sits between key and value is the reference data.
	tail := elements[o.KeyElements]
	sep := strings.LastIndexByte(tail, 0)
	if sep < 0 {
		return entry, xerrors.Errorf("line %q has no value separator: %w", line, ErrMalformedLine)
	}
	refData := tail[:sep]
	entry.Value = internValue(tail[sep+1:])

	if o.RefLists == 0 {
		if refData != "" {
			return entry, xerrors.Errorf("line %q carries %d bytes of references in a reference-less index: %w", line, len(refData), ErrUnexpectedReferences)
		}
		return entry, nil
	}

	groups := strings.Split(refData, "\t")
	if len(groups) != o.RefLists {
		return entry, xerrors.Errorf("line %q has %d reference lists, want %d: %w", line, len(groups), o.RefLists, ErrMalformedLine)
	}
	entry.Refs = make([]RefList, o.RefLists)
	for i, group := range groups {
		if group == "" {
			continue
		}
		for _, ref := range strings.Split(group, "\r") {
			if ref == "" {
				continue
			}
			segments := strings.Split(ref, "\x00")
			if len(segments) != o.KeyElements {
				return entry, xerrors.Errorf("reference %q has %d segments, want %d: %w", ref, len(segments), o.KeyElements, ErrMalformedLine)
			}
			key := make(Key, o.KeyElements)
			for j, segment := range segments {
				key[j] = internKeySegment(segment)
			}
			entry.Refs[i] = append(entry.Refs[i], key)
		}
	}
	return entry, nil
}

// internKeySegment shares key segments across records and pages, except
// for sha1 content fingerprints: those are nearly all unique, so putting
// them through the table would only churn it.
func internKeySegment(segment string) string {
	if len(segment) == 45 && strings.HasPrefix(segment, "sha1:") {
		return segment
	}
	return interned.Str(segment)
}

// internValue shares values ending in " 0 0": a large fraction of graph
// index records store exactly "<offset> <length> 0 0" style values where
// the shared suffix dominates, and in knit-style indices the literal
// value repeats wholesale. Purely a memory optimization.
func internValue(value string) string {
	if strings.HasSuffix(value, " 0 0") {
		return interned.Str(value)
	}
	return value
}

// FlattenNode serializes one record to its line form. It returns the
// NUL-joined key alongside the full line, trailing LF included.
//
// refs must hold exactly one list per configured reference list; a
// reference-less index takes nil.
func (o Options) FlattenNode(key Key, value string, refs []RefList) (string, []byte, error) {
	if err := o.CheckKey(key); err != nil {
		return "", nil, err
	}
	if strings.ContainsAny(value, "\n\x00") {
		return "", nil, xerrors.Errorf("value %q contains a delimiter byte: %w", value, ErrBadValue)
	}

	flatRefs := ""
	if o.RefLists == 0 {
		if len(refs) != 0 {
			return "", nil, xerrors.Errorf("%d reference lists in a reference-less index: %w", len(refs), ErrUnexpectedReferences)
		}
	} else {
		if len(refs) != o.RefLists {
			return "", nil, xerrors.Errorf("node has %d reference lists, want %d: %w", len(refs), o.RefLists, ErrMalformedLine)
		}
		groups := make([]string, len(refs))
		for i, list := range refs {
			flatKeys := make([]string, len(list))
			for j, ref := range list {
				if err := o.CheckKey(ref); err != nil {
					return "", nil, err
				}
				flatKeys[j] = ref.String()
			}
			groups[i] = strings.Join(flatKeys, "\r")
		}
		flatRefs = strings.Join(groups, "\t")
	}

	flatKey := key.String()
	// The line length is known exactly, so it is written in one
	// allocation: key NUL references NUL value LF.
	line := make([]byte, 0, len(flatKey)+1+len(flatRefs)+1+len(value)+1)
	line = append(line, flatKey...)
	line = append(line, 0)
	line = append(line, flatRefs...)
	line = append(line, 0)
	line = append(line, value...)
	line = append(line, '\n')
	return flatKey, line, nil
}

// CheckKey returns ErrBadKey if key is not a valid key for this index:
// wrong segment count, an empty segment, or a segment containing bytes
// the format uses as delimiters (whitespace or NUL).
func (o Options) CheckKey(key Key) error {
	if len(key) != o.KeyElements {
		return xerrors.Errorf("key %v has %d segments, want %d: %w", key, len(key), o.KeyElements, ErrBadKey)
	}
	for _, segment := range key {
		if segment == "" {
			return xerrors.Errorf("key %v has an empty segment: %w", key, ErrBadKey)
		}
		if strings.ContainsAny(segment, "\t\n\x0b\x0c\r\x00 ") {
			return xerrors.Errorf("key segment %q contains a delimiter byte: %w", segment, ErrBadKey)
		}
	}
	return nil
}

// SerializeLeaf writes a whole leaf page: the header line followed by
// the records in key order. The entries may be passed in any order.
func (o Options) SerializeLeaf(entries []LeafEntry) ([]byte, error) {
	type flatNode struct {
		key  string
		line []byte
	}
	nodes := make([]flatNode, len(entries))
	size := len(leafHeader)
	for i := range entries {
		flatKey, line, err := o.FlattenNode(entries[i].Key, entries[i].Value, entries[i].Refs)
		if err != nil {
			return nil, err
		}
		nodes[i] = flatNode{key: flatKey, line: line}
		size += len(line)
	}
	// NUL-joined keys sort the same way as segment-wise comparison:
	// NUL is lower than any byte a segment may contain.
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].key < nodes[j].key })

	page := make([]byte, 0, size)
	page = append(page, leafHeader...)
	for _, node := range nodes {
		page = append(page, node.line...)
	}
	return page, nil
}
