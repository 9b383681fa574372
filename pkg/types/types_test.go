package types_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shouni/go-site-crawler/pkg/query"
	"github.com/shouni/go-site-crawler/pkg/types"
)

func TestURLSet(t *testing.T) {
	s := types.NewURLSet("/b", "/a", "", "/b")

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains("/a"))
	assert.False(t, s.Contains(""))
	assert.Equal(t, []string{"/a", "/b"}, s.Items())

	assert.True(t, s.Add("/c"))
	assert.False(t, s.Add("/c"))

	other := types.NewURLSet("/c", "/d")
	s.Union(other)
	assert.Equal(t, []string{"/a", "/b", "/c", "/d"}, s.Items())
}

func TestURLSet_ZeroValue(t *testing.T) {
	var s types.URLSet
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Items())
	assert.True(t, s.Add("/x"))
	assert.Equal(t, []string{"/x"}, s.Items())
}

func TestChannelSet_Names(t *testing.T) {
	cs := types.ChannelSet{
		{Name: "allText", Query: query.MustParse("div")},
		{Name: "html", Query: query.MustParse("div :: html")},
	}
	assert.Equal(t, []string{"allText", "html"}, cs.Names())
}

func TestResultTable(t *testing.T) {
	table := types.NewResultTable(types.ChannelSet{{Name: "t", Query: query.MustParse("p")}})

	assert.Equal(t, 0, table.Len("t"))
	assert.True(t, table.Record("t", "/a", []string{"hello"}))
	assert.False(t, table.Record("t", "/a", []string{"again"}), "既存の行は上書きされない")

	row, ok := table.Row("t", "/a")
	assert.True(t, ok)
	assert.Equal(t, []string{"hello"}, row)

	_, ok = table.Row("t", "/b")
	assert.False(t, ok)
	assert.Equal(t, map[string][]string{"/a": {"hello"}}, table.Rows("t"))
}

func TestFailureSet(t *testing.T) {
	f := types.NewFailureSet()
	first := errors.New("first")

	f.Add("https://x.test/a", first)
	f.Add("https://x.test/a", errors.New("second"))
	f.Add("https://x.test/b", nil)

	assert.Equal(t, 2, f.Len())
	assert.Equal(t, first, f.Cause("https://x.test/a"))
	assert.Equal(t, []string{"https://x.test/a", "https://x.test/b"}, f.URLs().Items())

	f.Clear()
	assert.Equal(t, 0, f.Len())
	assert.Nil(t, f.Cause("https://x.test/a"))
}
