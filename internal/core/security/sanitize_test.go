package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizerText(t *testing.T) {
	s := NewSanitizer()
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"  merhaba  ", "merhaba"},
		{"<b>bisiklet</b> & kask", "bisiklet & kask"},
		{`<script>alert(1)</script>takas`, "takas"},
		{`<img src=x onerror="alert(1)">`, ""},
		{"çay bardağı", "çay bardağı"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, s.Text(c.in), c.in)
	}
}

func TestLenCountsRunes(t *testing.T) {
	assert.Equal(t, 4, Len("ğüşö"))
}
