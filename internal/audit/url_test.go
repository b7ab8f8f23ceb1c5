package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare host", "example.com", "https://example.com"},
		{"https kept", "https://example.com", "https://example.com"},
		{"http kept", "http://example.com/path?q=1", "http://example.com/path?q=1"},
		{"mixed case scheme", "HTTPS://Example.com", "https://Example.com"},
		{"whitespace", "  example.com/landing  ", "https://example.com/landing"},
		{"port", "localhost:8080", "https://localhost:8080"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeURL(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeURLRejectsInvalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "ftp://example.com", "https://", "exa mple.com", "https://%zz"} {
		_, err := NormalizeURL(in)
		require.ErrorIs(t, err, ErrInvalidInput, "input %q", in)
		require.Equal(t, "Invalid URL format", Message(err))
	}
}

func TestNormalizeURLSchemelessMatchesPrefixed(t *testing.T) {
	t.Parallel()

	bare, err := NormalizeURL("example.com/pricing")
	require.NoError(t, err)
	prefixed, err := NormalizeURL("https://example.com/pricing")
	require.NoError(t, err)
	require.Equal(t, prefixed, bare)
}
