package jsonl

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedInChunks(b *Buffer, input string, sizes []int) []Line {
	var out []Line
	data := []byte(input)
	i := 0
	for len(data) > 0 {
		size := 1
		if len(sizes) > 0 {
			size = sizes[i%len(sizes)]
			i++
		}
		if size > len(data) {
			size = len(data)
		}
		out = append(out, b.Feed(data[:size])...)
		data = data[size:]
	}
	if line, ok := b.Flush(); ok {
		out = append(out, line)
	}
	return out
}

func texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = line.Text
	}
	return out
}

func TestBufferFramingIsChunkingIndependent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("lines survive arbitrary chunking", prop.ForAll(
		func(lines []string, sizes []int, trailing string) bool {
			input := ""
			if len(lines) > 0 {
				input = strings.Join(lines, "\n") + "\n"
			}
			input += trailing

			want := append([]string{}, lines...)
			if trailing != "" {
				want = append(want, trailing)
			}

			got := texts(feedInChunks(NewBuffer(1<<20), input, sizes))
			if len(got) != len(want) {
				return false
			}
			for i := range want {
				if got[i] != want[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOfN(8, gen.IntRange(1, 17)),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestBufferOverflowIsContained(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	const limit = 32
	properties.Property("oversized lines are cut at the cap and framing recovers", prop.ForAll(
		func(overflow int, size int) bool {
			long := strings.Repeat("x", limit+overflow)
			input := long + "\n" + `{"ok":true}` + "\n"

			b := NewBuffer(limit)
			var lines []Line
			data := []byte(input)
			for len(data) > 0 {
				n := min(size, len(data))
				lines = append(lines, b.Feed(data[:n])...)
				data = data[n:]
				if b.Pending() > limit {
					return false
				}
			}
			if len(lines) != 2 {
				return false
			}
			return lines[0].Oversized &&
				len(lines[0].Text) == limit &&
				!lines[1].Oversized &&
				lines[1].Text == `{"ok":true}`
		},
		gen.IntRange(1, 200),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

func TestBufferLineAtExactCapIsNotOversized(t *testing.T) {
	b := NewBuffer(4)
	lines := b.Feed([]byte("abcd"))
	assert.Empty(t, lines)
	lines = b.Feed([]byte("\nef\n"))
	require.Len(t, lines, 2)
	assert.Equal(t, Line{Text: "abcd"}, lines[0])
	assert.Equal(t, Line{Text: "ef"}, lines[1])
}

func TestBufferOversizedDiscardsUntilTerminator(t *testing.T) {
	b := NewBuffer(4)
	lines := b.Feed([]byte("abcdefgh"))
	require.Len(t, lines, 1)
	assert.True(t, lines[0].Oversized)
	assert.Equal(t, "abcd", lines[0].Text)
	assert.Zero(t, b.Pending())

	assert.Empty(t, b.Feed([]byte("ijklmnop")))
	lines = b.Feed([]byte("qr\nok\n"))
	require.Len(t, lines, 1)
	assert.Equal(t, Line{Text: "ok"}, lines[0])
}

func TestBufferStripsCarriageReturn(t *testing.T) {
	b := NewBuffer(0)
	lines := b.Feed([]byte("one\r\ntwo\r\n"))
	assert.Equal(t, []string{"one", "two"}, texts(lines))
	assert.Equal(t, DefaultMaxLineBytes, b.Max())
}

func TestBufferReplacesInvalidUTF8(t *testing.T) {
	b := NewBuffer(0)
	lines := b.Feed([]byte("bad \xff byte\n"))
	require.Len(t, lines, 1)
	assert.Equal(t, "bad \uFFFD byte", lines[0].Text)
}

func TestBufferFlush(t *testing.T) {
	b := NewBuffer(0)
	_, ok := b.Flush()
	assert.False(t, ok)

	assert.Empty(t, b.Feed([]byte(`{"partial"`)))
	line, ok := b.Flush()
	require.True(t, ok)
	assert.Equal(t, `{"partial"`, line.Text)

	_, ok = b.Flush()
	assert.False(t, ok)
}

func TestBufferYieldsEmptyLines(t *testing.T) {
	b := NewBuffer(0)
	lines := b.Feed([]byte("\n\nx\n"))
	assert.Equal(t, []string{"", "", "x"}, texts(lines))
}
