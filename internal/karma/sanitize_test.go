package karma

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_InlineCode(t *testing.T) {
	assert.Equal(t, "before  after", Sanitize("before `thing++` after"))
}

func TestSanitize_FencedBlock(t *testing.T) {
	assert.Equal(t, "a  b", Sanitize("a ```\nthing++\nother--\n``` b"))
}

func TestSanitize_FencedBlockThenInline(t *testing.T) {
	assert.Equal(t, "x  y  z", Sanitize("x ```code++``` y `more++` z"))
}

func TestSanitize_UnterminatedFenceRetained(t *testing.T) {
	// Three backticks with no closing fence: the inline pass strips one
	// backtick pair, the rest of the text survives.
	out := Sanitize("start ``` thing++ unfinished")
	assert.Contains(t, out, "thing++")
}

func TestSanitize_NoCode(t *testing.T) {
	assert.Equal(t, "plain thing++ text", Sanitize("plain thing++ text"))
}

func TestSanitize_Empty(t *testing.T) {
	assert.Equal(t, "", Sanitize(""))
}
