package dirstate

// BisectPathLeft returns the leftmost index at which path could be
// inserted into paths while keeping the sequence sorted. paths must
// already be sorted in dirblock order (see ComparePathByDirblock); if
// path is already present the returned index is left of all its
// occurrences.
func BisectPathLeft(paths []string, path string) int {
	lo := 0
	hi := len(paths)
	for lo < hi {
		mid := (lo + hi) / 2
		if ComparePathByDirblock(paths[mid], path) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// BisectPathRight is like BisectPathLeft but returns the index right of
// all occurrences of path already in the sequence.
func BisectPathRight(paths []string, path string) int {
	lo := 0
	hi := len(paths)
	for lo < hi {
		mid := (lo + hi) / 2
		if ComparePathByDirblock(path, paths[mid]) < 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// BisectDirblock returns the index where to insert a block named dirname
// into blocks, which must be sorted in CompareByDirs order. All blocks in
// blocks[:idx] have names < dirname and all blocks in blocks[idx:] have
// names >= dirname.
//
// lo and hi bound the searched slice. Passing a negative hi searches to
// the end of blocks.
func BisectDirblock(blocks []Dirblock, dirname string, lo, hi int) int {
	if hi < 0 {
		hi = len(blocks)
	}
	for lo < hi {
		mid := (lo + hi) / 2
		if CompareByDirs(blocks[mid].Dirname, dirname) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
