package astm

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResults = "H|\\^&||c111^Roche^c111^4.2.2.1730^1^12345|||||||RSUPL^BATCH|P|1|20210930102739\r" +
	"P|1||||||||||||||\r" +
	"O|1|84509300023||^^^767|R|20210930123346|||||X||||||||||||||F\r" +
	"R|1|^^^767|95.4|mg/dL|70-110|N||^|cobas||20210930102739||tech1|\r" +
	"C|1|I|Sample OK|\r" +
	"R|2|^^^687\x0f|68.6|U/L||A||^|cobas||20210930102812||tech1|\r" +
	"L|1|N\r"

func frameBytes(payload string) []byte {
	return []byte("\x02" + payload + "\x03")
}

func TestAssemblerSingleFrame(t *testing.T) {
	var a Assembler
	frames := a.Write(frameBytes(sampleResults))
	require.Len(t, frames, 1)
	assert.Equal(t, sampleResults, string(frames[0]))
	assert.False(t, a.Collecting())
}

func TestAssemblerChunking(t *testing.T) {
	stream := append([]byte("noise\x03"), frameBytes("H|1\r\nL|1|N\r\n")...)
	stream = append(stream, "trailing"...)

	for size := 1; size <= len(stream); size++ {
		var a Assembler
		var frames [][]byte
		for i := 0; i < len(stream); i += size {
			end := min(i+size, len(stream))
			frames = append(frames, a.Write(stream[i:end])...)
		}
		require.Len(t, frames, 1, "chunk size %d", size)
		assert.Equal(t, "H|1\r\nL|1|N\r\n", string(frames[0]), "chunk size %d", size)
	}
}

func TestAssemblerRestartOnSecondSTX(t *testing.T) {
	var a Assembler
	frames := a.Write([]byte("\x02H|partial\r\x02H|second\rL|1\r\x03"))
	require.Len(t, frames, 1)
	assert.Equal(t, "H|second\rL|1\r", string(frames[0]))
}

func TestAssemblerDropsBlankFrames(t *testing.T) {
	var a Assembler
	assert.Empty(t, a.Write([]byte("\x02\x03\x02 \r\n\t\x03")))
	assert.False(t, a.Collecting())
}

func TestAssemblerIgnoresIdleBytes(t *testing.T) {
	var a Assembler
	for _, b := range []byte("abc\x03\r\n") {
		_, ok := a.Feed(b)
		assert.False(t, ok)
	}
	assert.False(t, a.Collecting())

	_, ok := a.Feed(STX)
	assert.False(t, ok)
	assert.True(t, a.Collecting())
}

func TestAssemblerFrameIsCopied(t *testing.T) {
	var a Assembler
	first := a.Write(frameBytes("AAAA"))
	a.Write(frameBytes("BBBB"))
	require.Len(t, first, 1)
	assert.Equal(t, "AAAA", string(first[0]))
}

func TestFramerRead(t *testing.T) {
	stream := string(frameBytes(sampleResults)) + "\x05\x04" + string(frameBytes("H|\rL|1\r")) + "\x02unfinished"
	f := NewFramer(strings.NewReader(stream))

	text, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, sampleResults, text)

	text, err = f.Read()
	require.NoError(t, err)
	assert.Equal(t, "H|\rL|1\r", text)

	_, err = f.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeTextLatin1(t *testing.T) {
	assert.Equal(t, "Albúmina", DecodeText([]byte("Alb\xfamina")))
}
