package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesBaseURL(t *testing.T) {
	t.Parallel()

	for _, base := range []string{"/relative", "ftp://a.test", "http://%zz", "https://"} {
		_, err := New(Rules{BaseURL: base})
		assert.Error(t, err, base)
	}
	_, err := New(Rules{})
	require.NoError(t, err)
}

func TestApply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		rules Rules
		in    []string
		want  []string
	}{
		{
			name:  "relative links resolved against base",
			rules: Rules{BaseURL: "https://finance.yahoo.com"},
			in:    []string{"/news/a.html", "news/b.html", "https://finance.yahoo.com/news/c.html"},
			want: []string{
				"https://finance.yahoo.com/news/a.html",
				"https://finance.yahoo.com/news/b.html",
				"https://finance.yahoo.com/news/c.html",
			},
		},
		{
			name: "relative links dropped without base",
			in:   []string{"/news/a.html", "https://a.test/x"},
			want: []string{"https://a.test/x"},
		},
		{
			name:  "block list compared on raw link",
			rules: Rules{BaseURL: "https://finance.yahoo.com", BlockList: []string{"/news/", "https://finance.yahoo.com/videos/"}},
			in:    []string{"/news/", "https://finance.yahoo.com/videos/", "/news/story-1.html"},
			want:  []string{"https://finance.yahoo.com/news/story-1.html"},
		},
		{
			name:  "allow prefixes keep matching links only",
			rules: Rules{AllowPrefixes: []string{"https://www.marketwatch.com/story"}},
			in: []string{
				"https://www.marketwatch.com/story/stocks-rally-1",
				"https://www.marketwatch.com/markets",
				"https://www.marketwatch.com/story/bonds-slip-2?mod=latest",
			},
			want: []string{
				"https://www.marketwatch.com/story/stocks-rally-1",
				"https://www.marketwatch.com/story/bonds-slip-2?mod=latest",
			},
		},
		{
			name:  "non navigational links dropped",
			rules: Rules{BaseURL: "https://a.test"},
			in:    []string{"", "   ", "#top", "javascript:void(0)", "mailto:desk@a.test", "tel:+15555550100", "/ok"},
			want:  []string{"https://a.test/ok"},
		},
		{
			name:  "fragments stripped before dedupe",
			rules: Rules{BaseURL: "https://a.test"},
			in:    []string{"/story#comments", "/story", "https://A.TEST:443/story#top", "/other"},
			want:  []string{"https://a.test/story", "https://a.test/other"},
		},
		{
			name:  "blocked domains",
			rules: Rules{BlockedDomains: []string{"*.ads.test", "tracker.test"}},
			in:    []string{"https://x.ads.test/a", "https://ads.test/b", "https://tracker.test/c", "https://news.test/d"},
			want:  []string{"https://news.test/d"},
		},
		{
			name: "empty input",
			in:   nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := New(tt.rules)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Apply(tt.in))
		})
	}
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	t.Parallel()

	f, err := New(Rules{BaseURL: "https://a.test"})
	require.NoError(t, err)
	in := []string{"/a", "/a", "#x"}
	_ = f.Apply(in)
	assert.Equal(t, []string{"/a", "/a", "#x"}, in)
}

func TestApplyMatchesEngineBoundary(t *testing.T) {
	t.Parallel()

	f, err := New(Rules{})
	require.NoError(t, err)
	var fn Func = f.Apply
	assert.Equal(t, []string{"https://a.test/"}, fn([]string{"https://a.test/"}))
}

func TestHostMatcher(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		m := newHostMatcher([]string{"example.org"})
		require.NotNil(t, m)
		assert.True(t, m.Match("example.org"))
		assert.False(t, m.Match("sub.example.org"))
	})

	t.Run("wildcard suffix", func(t *testing.T) {
		m := newHostMatcher([]string{"*.ru", ".example.com"})
		require.NotNil(t, m)
		cases := []struct {
			host    string
			blocked bool
		}{
			{"example.ru", true},
			{"sub.domain.ru", true},
			{"ru", true},
			{"www.example.com", true},
			{"WWW.Example.COM.", true},
			{"example.org", false},
		}
		for _, tc := range cases {
			assert.Equal(t, tc.blocked, m.Match(tc.host), tc.host)
		}
	})

	t.Run("empty patterns", func(t *testing.T) {
		assert.Nil(t, newHostMatcher([]string{"", " ", "*."}))
	})

	t.Run("nil matcher", func(t *testing.T) {
		var m *hostMatcher
		assert.False(t, m.Match("anything"))
	})
}
