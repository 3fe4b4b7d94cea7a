package s3

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewlineCodec_SplitsOnNewlines(t *testing.T) {
	c := newlineCodec{}
	lines, err := c.decode(strings.NewReader("a\nb\nc"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lines)
}

func TestCSVCodec_FlattensRowsToCommaJoinedStrings(t *testing.T) {
	c := csvCodec{}
	lines, err := c.decode(strings.NewReader("a,b,c\n1,2,3\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a,b,c", "1,2,3"}, lines)
}

func TestCodecFor_UnknownNameFails(t *testing.T) {
	_, err := codecFor("xml")
	assert.Error(t, err)
}

func TestCodecFor_EmptyNameDefaultsToNewline(t *testing.T) {
	c, err := codecFor("")
	require.NoError(t, err)
	_, ok := c.(newlineCodec)
	assert.True(t, ok)
}
