// Package readutil contains helpers to extract delimited data out of
// byte buffers
package readutil

// ReadTo reads from b until to is seen and returns the bytes between the
// start and to, exclusive of to. Returns nil if it's not found
func ReadTo(b []byte, to byte) []byte {
	var i int
	for ; i < len(b) && b[i] != to; i++ {
		// the conditions handle it all!
	}

	if i == len(b) {
		return nil
	}

	return b[0:i]
}

// ReadLine reads from b until a LF is seen and returns the bytes before
// the LF and the bytes after it. ok is false if b contains no LF
func ReadLine(b []byte) (line, rest []byte, ok bool) {
	line = ReadTo(b, '\n')
	if line == nil {
		return nil, nil, false
	}
	return line, b[len(line)+1:], true
}
