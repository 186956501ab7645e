package urlset

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameOrigin(t *testing.T) {
	in := []string{
		"https://a.com/x",
		"https://b.com/y",
		"http://a.com/z",
		"https://A.com/upper",
		"::bad",
	}
	got := SameOrigin(in, "https://a.com/")
	assert.Equal(t, []string{"https://a.com/x", "https://A.com/upper"}, got)
}

func TestSameOriginKeepsOnlyMatchingHostAndScheme(t *testing.T) {
	ref := "https://cpclube.cpc.com.tw/C_Products.aspx"
	in := []string{
		"https://cpclube.cpc.com.tw/upload/a.jpg",
		"https://cdn.example.com/a.jpg",
		"https://cpclube.cpc.com.tw:8443/a.jpg",
		"http://cpclube.cpc.com.tw/a.jpg",
	}
	for _, u := range SameOrigin(in, ref) {
		parsed, err := url.Parse(u)
		require.NoError(t, err)
		assert.Equal(t, "https", parsed.Scheme)
		assert.Equal(t, "cpclube.cpc.com.tw", parsed.Host)
	}
	assert.Len(t, SameOrigin(in, ref), 1)
}

func TestDedupeStableFirstWins(t *testing.T) {
	type item struct {
		url string
		alt string
	}
	in := []item{{"a", "first"}, {"b", ""}, {"a", "second"}, {"c", ""}, {"b", "x"}}
	got := Dedupe(in, func(i item) string { return i.url })
	assert.Equal(t, []item{{"a", "first"}, {"b", ""}, {"c", ""}}, got)
}

func TestDedupeIdempotent(t *testing.T) {
	inputs := [][]string{
		nil,
		{},
		{"x"},
		{"x", "x", "x"},
		{"b", "a", "b", "c", "a"},
	}
	for _, in := range inputs {
		once := Strings(in)
		assert.Equal(t, once, Strings(once))
		for i := range once {
			for j := i + 1; j < len(once); j++ {
				assert.NotEqual(t, once[i], once[j])
			}
		}
	}
}

func TestResolve(t *testing.T) {
	base, _ := url.Parse("https://cpclube.cpc.com.tw/C_Products.aspx?n=7464")
	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{"C_Products_Detail.aspx?id=1", "https://cpclube.cpc.com.tw/C_Products_Detail.aspx?id=1", true},
		{"/upload/p.jpg#zoom", "https://cpclube.cpc.com.tw/upload/p.jpg", true},
		{"//cdn.example.com/a.png", "https://cdn.example.com/a.png", true},
		{"  https://x.org/a  ", "https://x.org/a", true},
		{"#top", "", false},
		{"", "", false},
		{"javascript:void(0)", "", false},
		{"JavaScript:alert(1)", "", false},
		{"mailto:a@b.c", "", false},
		{"data:image/png;base64,AAAA", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			got, ok := Resolve(base, tt.href)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathOf(t *testing.T) {
	assert.Equal(t, "/upload/a.jpg", PathOf("https://x.org/upload/a.jpg?w=1"))
}
