package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeIdentity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"  bob  ", "bob"},
		{"", ""},
		{"<script>x</script>", ""},
		{"<i>carol</i>", "carol"},
		{"tom &amp; jerry", "tom & jerry"},
		{"a\x00b\x1bc", "abc"},
		{"지민", "지민"},
		{strings.Repeat("x", 40), strings.Repeat("x", maxIdentityLen)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeIdentity(tt.in), "input %q", tt.in)
	}
}
