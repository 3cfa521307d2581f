package checker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"strips default http port", "http://example.com:80/a", "http://example.com/a"},
		{"strips default https port", "https://example.com:443/a", "https://example.com/a"},
		{"keeps custom port", "http://example.com:8080/a", "http://example.com:8080/a"},
		{"drops fragment", "https://example.com/a#section", "https://example.com/a"},
		{"trims trailing slash", "https://example.com/a/", "https://example.com/a"},
		{"keeps root slash", "https://example.com/", "https://example.com/"},
		{"adds root slash to empty path", "https://example.com", "https://example.com/"},
		{"sorts query params", "https://example.com/a?b=2&a=1", "https://example.com/a?a=1&b=2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Normalize(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeEquivalentFormsCollide(t *testing.T) {
	t.Parallel()

	a, err := Normalize("HTTPS://example.com/docs/")
	require.NoError(t, err)
	b, err := Normalize("https://EXAMPLE.com/docs#intro")
	require.NoError(t, err)
	require.Equal(t, a, b)

	root, err := Normalize("https://example.com")
	require.NoError(t, err)
	rootSlash, err := Normalize("https://example.com/")
	require.NoError(t, err)
	require.Equal(t, root, rootSlash)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want LinkKind
	}{
		{"https://example.com", KindHTTP},
		{"http://example.com/a", KindHTTP},
		{"mailto:someone@example.com", KindMailto},
		{"MAILTO:someone@example.com", KindMailto},
		{"file:///Users/me/doc.html", KindLocal},
		{"ftp://example.com/file", KindUnsupported},
		{"example.com/no-scheme", KindInvalid},
		{"", KindInvalid},
		{"   ", KindInvalid},
		{"http://", KindInvalid},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(tc.in), "input %q", tc.in)
	}
}
