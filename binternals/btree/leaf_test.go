package btree_test

import (
	"testing"

	"github.com/bazaar-community/bzr-go/binternals/btree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLeafLines(t *testing.T) {
	t.Parallel()

	t.Run("single segment keys without references", func(t *testing.T) {
		t.Parallel()

		opts := btree.Options{KeyElements: 1, RefLists: 0}
		page := []byte("type=leaf\n" +
			"alpha\x00\x00value one\n" +
			"beta\x00\x00value two\n")
		entries, err := opts.ParseLeafLines(page)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, btree.Key{"alpha"}, entries[0].Key)
		assert.Equal(t, "value one", entries[0].Value)
		assert.Nil(t, entries[0].Refs)
		assert.Equal(t, btree.Key{"beta"}, entries[1].Key)
		assert.Equal(t, "value two", entries[1].Value)
	})

	t.Run("two segment keys with two reference lists", func(t *testing.T) {
		t.Parallel()

		opts := btree.Options{KeyElements: 2, RefLists: 2}
		page := []byte("type=leaf\n" +
			"file-id\x00rev-a\x00" +
			"file-id\x00rev-0\rfile-id\x00rev-1" + "\t" + "other\x00rev-2" +
			"\x00100 200 1 4\n")
		entries, err := opts.ParseLeafLines(page)
		require.NoError(t, err)
		require.Len(t, entries, 1)

		entry := entries[0]
		assert.Equal(t, btree.Key{"file-id", "rev-a"}, entry.Key)
		assert.Equal(t, "100 200 1 4", entry.Value)
		require.Len(t, entry.Refs, 2)
		assert.Equal(t, btree.RefList{
			{"file-id", "rev-0"},
			{"file-id", "rev-1"},
		}, entry.Refs[0])
		assert.Equal(t, btree.RefList{{"other", "rev-2"}}, entry.Refs[1])
	})

	t.Run("empty reference list groups", func(t *testing.T) {
		t.Parallel()

		opts := btree.Options{KeyElements: 1, RefLists: 2}
		page := []byte("type=leaf\n" + "k\x00\t\x00v\n")
		entries, err := opts.ParseLeafLines(page)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Len(t, entries[0].Refs, 2)
		assert.Empty(t, entries[0].Refs[0])
		assert.Empty(t, entries[0].Refs[1])
	})

	t.Run("interned values compare equal", func(t *testing.T) {
		t.Parallel()

		opts := btree.Options{KeyElements: 1, RefLists: 0}
		page := []byte("type=leaf\n" +
			"a\x00\x0012 34 0 0\n" +
			"b\x00\x0012 34 0 0\n" +
			"c\x00\x00sha1:0123456789012345678901234567890123456789\n")
		entries, err := opts.ParseLeafLines(page)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, entries[0].Value, entries[1].Value)
		assert.Equal(t, "sha1:0123456789012345678901234567890123456789", entries[2].Value)
	})

	t.Run("empty page", func(t *testing.T) {
		t.Parallel()

		opts := btree.Options{KeyElements: 1, RefLists: 0}
		entries, err := opts.ParseLeafLines([]byte("type=leaf\n"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestParseLeafLinesErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc        string
		opts        btree.Options
		page        string
		expectedErr error
	}{
		{
			desc:        "missing header",
			opts:        btree.Options{KeyElements: 1},
			page:        "type=internal\noffset=1\n",
			expectedErr: btree.ErrNotALeaf,
		},
		{
			desc:        "empty buffer",
			opts:        btree.Options{KeyElements: 1},
			page:        "",
			expectedErr: btree.ErrNotALeaf,
		},
		{
			desc:        "too few key segments",
			opts:        btree.Options{KeyElements: 2},
			page:        "type=leaf\nonly-one\x00value\n",
			expectedErr: btree.ErrMalformedLine,
		},
		{
			desc:        "missing value separator",
			opts:        btree.Options{KeyElements: 1},
			page:        "type=leaf\nkey\x00tail-without-a-nul\n",
			expectedErr: btree.ErrMalformedLine,
		},
		{
			desc:        "reference data in a reference-less index",
			opts:        btree.Options{KeyElements: 1, RefLists: 0},
			page:        "type=leaf\nk\x00ref\x00v\n",
			expectedErr: btree.ErrUnexpectedReferences,
		},
		{
			desc:        "one group where two are configured",
			opts:        btree.Options{KeyElements: 1, RefLists: 2},
			page:        "type=leaf\nk\x00r1\x00v\n",
			expectedErr: btree.ErrMalformedLine,
		},
		{
			desc:        "three groups where two are configured",
			opts:        btree.Options{KeyElements: 1, RefLists: 2},
			page:        "type=leaf\nk\x00a\ta\ta\x00v\n",
			expectedErr: btree.ErrMalformedLine,
		},
		{
			desc:        "reference key with wrong arity",
			opts:        btree.Options{KeyElements: 2, RefLists: 1},
			page:        "type=leaf\nk1\x00k2\x00short-ref\x00v\n",
			expectedErr: btree.ErrMalformedLine,
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			entries, err := tc.opts.ParseLeafLines([]byte(tc.page))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.expectedErr)
			assert.Nil(t, entries)
		})
	}
}

func TestFlattenNode(t *testing.T) {
	t.Parallel()

	t.Run("without references", func(t *testing.T) {
		t.Parallel()

		opts := btree.Options{KeyElements: 2, RefLists: 0}
		flatKey, line, err := opts.FlattenNode(btree.Key{"a", "b"}, "the value", nil)
		require.NoError(t, err)
		assert.Equal(t, "a\x00b", flatKey)
		assert.Equal(t, "a\x00b\x00\x00the value\n", string(line))
	})

	t.Run("with references", func(t *testing.T) {
		t.Parallel()

		opts := btree.Options{KeyElements: 1, RefLists: 2}
		refs := []btree.RefList{
			{btree.Key{"r1"}, btree.Key{"r2"}},
			{},
		}
		flatKey, line, err := opts.FlattenNode(btree.Key{"k"}, "v", refs)
		require.NoError(t, err)
		assert.Equal(t, "k", flatKey)
		assert.Equal(t, "k\x00r1\rr2\t\x00v\n", string(line))
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		testCases := []struct {
			desc        string
			opts        btree.Options
			key         btree.Key
			value       string
			refs        []btree.RefList
			expectedErr error
		}{
			{
				desc:        "wrong key arity",
				opts:        btree.Options{KeyElements: 2},
				key:         btree.Key{"only"},
				expectedErr: btree.ErrBadKey,
			},
			{
				desc:        "empty key segment",
				opts:        btree.Options{KeyElements: 2},
				key:         btree.Key{"a", ""},
				expectedErr: btree.ErrBadKey,
			},
			{
				desc:        "whitespace in key segment",
				opts:        btree.Options{KeyElements: 1},
				key:         btree.Key{"a b"},
				expectedErr: btree.ErrBadKey,
			},
			{
				desc:        "newline in value",
				opts:        btree.Options{KeyElements: 1},
				key:         btree.Key{"a"},
				value:       "bad\nvalue",
				expectedErr: btree.ErrBadValue,
			},
			{
				desc:        "references in a reference-less index",
				opts:        btree.Options{KeyElements: 1},
				key:         btree.Key{"a"},
				refs:        []btree.RefList{{}},
				expectedErr: btree.ErrUnexpectedReferences,
			},
			{
				desc:        "missing reference list",
				opts:        btree.Options{KeyElements: 1, RefLists: 2},
				key:         btree.Key{"a"},
				refs:        []btree.RefList{{}},
				expectedErr: btree.ErrMalformedLine,
			},
			{
				desc:        "bad reference key",
				opts:        btree.Options{KeyElements: 1, RefLists: 1},
				key:         btree.Key{"a"},
				refs:        []btree.RefList{{btree.Key{"x", "y"}}},
				expectedErr: btree.ErrBadKey,
			},
		}
		for _, tc := range testCases {
			tc := tc
			t.Run(tc.desc, func(t *testing.T) {
				t.Parallel()

				_, _, err := tc.opts.FlattenNode(tc.key, tc.value, tc.refs)
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.expectedErr)
			})
		}
	})
}

func TestLeafRoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("with references", func(t *testing.T) {
		t.Parallel()

		opts := btree.Options{KeyElements: 2, RefLists: 1}
		entries := []btree.LeafEntry{
			{
				Key:   btree.Key{"file-a", "rev-2"},
				Value: "10 20 0 0",
				Refs:  []btree.RefList{{{"file-a", "rev-1"}}},
			},
			{
				Key:   btree.Key{"file-a", "rev-1"},
				Value: "0 10 0 0",
				Refs:  []btree.RefList{{}},
			},
			{
				Key:   btree.Key{"file-b", "rev-1"},
				Value: "30 4 1 2",
				Refs:  []btree.RefList{{{"file-a", "rev-1"}, {"file-a", "rev-2"}}},
			},
		}
		page, err := opts.SerializeLeaf(entries)
		require.NoError(t, err)

		parsed, err := opts.ParseLeafLines(page)
		require.NoError(t, err)
		require.Len(t, parsed, 3)
		// pages are written in key order
		assert.Equal(t, btree.Key{"file-a", "rev-1"}, parsed[0].Key)
		assert.Equal(t, btree.Key{"file-a", "rev-2"}, parsed[1].Key)
		assert.Equal(t, btree.Key{"file-b", "rev-1"}, parsed[2].Key)
		assert.Equal(t, entries[0].Value, parsed[1].Value)
		assert.Equal(t, entries[0].Refs, parsed[1].Refs)
		assert.Equal(t, entries[2].Refs, parsed[2].Refs)
	})

	t.Run("without references", func(t *testing.T) {
		t.Parallel()

		opts := btree.Options{KeyElements: 1, RefLists: 0}
		entries := []btree.LeafEntry{
			{Key: btree.Key{"z"}, Value: "last"},
			{Key: btree.Key{"a"}, Value: "first"},
		}
		page, err := opts.SerializeLeaf(entries)
		require.NoError(t, err)

		parsed, err := opts.ParseLeafLines(page)
		require.NoError(t, err)
		require.Len(t, parsed, 2)
		assert.Equal(t, btree.Key{"a"}, parsed[0].Key)
		assert.Equal(t, "first", parsed[0].Value)
		assert.Equal(t, btree.Key{"z"}, parsed[1].Key)
		assert.Nil(t, parsed[1].Refs)
	})
}

func TestKeyCompare(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc     string
		a, b     btree.Key
		expected int
	}{
		{desc: "equal", a: btree.Key{"a", "b"}, b: btree.Key{"a", "b"}, expected: 0},
		{desc: "first segment decides", a: btree.Key{"a", "z"}, b: btree.Key{"b", "a"}, expected: -1},
		{desc: "second segment decides", a: btree.Key{"a", "b"}, b: btree.Key{"a", "a"}, expected: 1},
		{desc: "prefix sorts first", a: btree.Key{"a"}, b: btree.Key{"a", "a"}, expected: -1},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			got := tc.a.Compare(tc.b)
			switch {
			case tc.expected == 0:
				assert.Zero(t, got)
			case tc.expected < 0:
				assert.Negative(t, got)
				assert.Positive(t, tc.b.Compare(tc.a))
			default:
				assert.Positive(t, got)
				assert.Negative(t, tc.b.Compare(tc.a))
			}
		})
	}
}
