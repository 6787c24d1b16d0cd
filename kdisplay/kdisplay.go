// Package kdisplay implements component O: hexdump rendering for the
// shell's `hexdump` command. The ASCII gutter renders each byte through
// golang.org/x/text/encoding/charmap's IBM codepage 437, matching what
// the out-of-scope VGA text-mode console would actually display for that
// byte value — a plain `isPrint(b)` gutter would instead imply an
// ASCII-only terminal this kernel was never designed to target.
package kdisplay

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const bytesPerLine = 16

// gutterTable is a precomputed byte->rune mapping through codepage 437's
// decoder, built once rather than round-tripped through the
// transform.Transformer machinery on every rendered byte.
var gutterTable = buildGutterTable()

func buildGutterTable() [256]rune {
	var tbl [256]rune
	dec := charmap.CodePage437.NewDecoder()
	for i := 0; i < 256; i++ {
		out, err := dec.Bytes([]byte{byte(i)})
		if err != nil || len(out) == 0 {
			tbl[i] = '.'
			continue
		}
		r, _ := utf8.DecodeRune(out)
		tbl[i] = r
	}
	return tbl
}

// gutterRune returns the printable rune codepage 437 maps b to, or '.'
// when the result is a non-printing control character (CP437 maps every
// byte to something, including control pictures in 0x00-0x1F that render
// as graphical glyphs on real VGA text mode but have no sensible
// single-rune ASCII-adjacent rendering here).
func gutterRune(b byte) rune {
	r := gutterTable[b]
	if r < 0x20 || r == 0x7f {
		return '.'
	}
	return r
}

// Hexdump renders data 16 bytes per line: an offset column, hex byte
// columns, and a codepage-437 ASCII gutter, per §4.O.
func Hexdump(data []byte) string {
	var b strings.Builder
	for off := 0; off < len(data); off += bytesPerLine {
		end := off + bytesPerLine
		if end > len(data) {
			end = len(data)
		}
		line := data[off:end]

		fmt.Fprintf(&b, "%08x  ", off)
		for i := 0; i < bytesPerLine; i++ {
			if i < len(line) {
				fmt.Fprintf(&b, "%02x ", line[i])
			} else {
				b.WriteString("   ")
			}
			if i == 7 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(" |")
		for _, c := range line {
			b.WriteRune(gutterRune(c))
		}
		b.WriteString("|\n")
	}
	return b.String()
}
