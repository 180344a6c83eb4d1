// Package pattern generates and parses the lines written by the demo writers.
//
// A line has the form "<id> <seq> <body>" where body repeats the writer's glyph.
// Any byte of another writer that lands inside a line breaks the body, which is
// what makes interleaving detectable.
package pattern

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is a parsed line.
type Record struct {
	ID   int
	Seq  int
	Body string
}

// Glyph returns the body character of writer id.
func Glyph(id int) byte {
	return byte('a' + id%26)
}

// Format builds the line (without the trailing newline) for writer id.
func Format(id, seq, width int) string {
	return strconv.Itoa(id) + " " + strconv.Itoa(seq) + " " + strings.Repeat(string(Glyph(id)), width)
}

// Parse parses a line produced by Format. It fails when the line is malformed
// or its body contains anything but the writer's glyph.
func Parse(line string) (Record, error) {
	fields := strings.Split(line, " ")
	if len(fields) != 3 {
		return Record{}, fmt.Errorf("malformed line %q: want 3 fields, got %d", line, len(fields))
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil || id < 0 {
		return Record{}, fmt.Errorf("malformed line %q: bad writer id", line)
	}
	seq, err := strconv.Atoi(fields[1])
	if err != nil || seq < 0 {
		return Record{}, fmt.Errorf("malformed line %q: bad sequence", line)
	}
	body := fields[2]
	if body == "" || strings.Trim(body, string(Glyph(id))) != "" {
		return Record{}, fmt.Errorf("interleaved line %q: body is not writer %d's glyph", line, id)
	}
	return Record{ID: id, Seq: seq, Body: body}, nil
}

// Chunks splits s into pieces of at most size bytes. A size below 1 returns s
// as a single piece.
func Chunks(s string, size int) []string {
	if size < 1 || len(s) <= size {
		return []string{s}
	}
	out := make([]string, 0, (len(s)+size-1)/size)
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	return append(out, s)
}
