package huffman

import "errors"

// ErrTruncated is returned when the bitstream runs out before char_count
// output bytes (or the EOF symbol) were produced.
var ErrTruncated = errors.New("huffman: truncated bitstream")

// ErrInvalidCode is returned when a bit sequence does not match any code
// in the table — the trie walk fell off a nil branch.
var ErrInvalidCode = errors.New("huffman: invalid code in bitstream")
