// Package hexdump renders buffers for debug logs: 16 bytes per row as two
// groups of eight hex pairs followed by a printable-ASCII gutter.
package hexdump

import (
	"fmt"
	"strings"
)

const rowWidth = 16

// Dump formats buf. Every row, including the last, ends with a newline.
func Dump(buf []byte) string {
	var sb strings.Builder
	for i := 0; i < len(buf); i += rowWidth {
		end := i + rowWidth
		if end > len(buf) {
			end = len(buf)
		}
		row := buf[i:end]
		left, right := row, []byte(nil)
		if len(row) > 8 {
			left, right = row[:8], row[8:]
		}
		fmt.Fprintf(&sb, "%-23s  %-23s  |%-16s|\n", hexGroup(left), hexGroup(right), gutter(row))
	}
	return sb.String()
}

func hexGroup(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02x", c)
	}
	return strings.Join(parts, " ")
}

func gutter(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 32 && c < 127 {
			out[i] = c
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
