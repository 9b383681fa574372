package extract_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-site-crawler/pkg/extract"
	"github.com/shouni/go-site-crawler/pkg/query"
	"github.com/shouni/go-site-crawler/pkg/types"
)

// ======================================================================
// モック (Mock) の定義
// ======================================================================

// MockFetcher はテスト用の extract.Fetcher インターフェースの実装です。
type MockFetcher struct {
	htmlContent string
	fetchError  error
	calls       []string
}

// FetchBytes はモックされたHTMLをバイト配列として返すか、エラーを返します。
func (m *MockFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	m.calls = append(m.calls, url)
	if m.fetchError != nil {
		return nil, m.fetchError
	}
	return []byte(m.htmlContent), nil
}

const pageHTML = `<html><head><title>Obor</title></head><body>
<div id="skoolList"><h3><a href="/a">A</a></h3><h3><a href="https://other.example/b">B</a></h3></div>
<div class="oborList"><p>hello   <b>world</b></p></div>
</body></html>`

// ======================================================================
// テスト関数
// ======================================================================

func TestNewExtractor(t *testing.T) {
	t.Run("success_with_valid_fetcher", func(t *testing.T) {
		extractor, err := extract.NewExtractor(&MockFetcher{})
		assert.NoError(t, err)
		assert.NotNil(t, extractor)
	})

	t.Run("error_with_nil_fetcher", func(t *testing.T) {
		extractor, err := extract.NewExtractor(nil)
		assert.Error(t, err)
		assert.Nil(t, extractor)
		assert.Contains(t, err.Error(), "Fetcher cannot be nil")
	})
}

func TestLinks(t *testing.T) {
	ctx := context.Background()

	t.Run("matches_in_document_order", func(t *testing.T) {
		extractor, err := extract.NewExtractor(&MockFetcher{htmlContent: pageHTML})
		require.NoError(t, err)

		links, err := extractor.Links(ctx, "https://example.com/list", query.MustParse("//div[@id='skoolList']//h3/a/@href"))
		require.NoError(t, err)
		assert.Equal(t, []string{"/a", "https://other.example/b"}, links)
	})

	t.Run("no_match_is_empty_not_error", func(t *testing.T) {
		extractor, err := extract.NewExtractor(&MockFetcher{htmlContent: pageHTML})
		require.NoError(t, err)

		links, err := extractor.Links(ctx, "https://example.com/list", query.MustParse("#nothing a :: attr(href)"))
		require.NoError(t, err)
		assert.Empty(t, links)
	})

	t.Run("fetch_error_is_typed", func(t *testing.T) {
		cause := errors.New("network timeout")
		extractor, err := extract.NewExtractor(&MockFetcher{fetchError: cause})
		require.NoError(t, err)

		_, err = extractor.Links(ctx, "https://example.com/list", query.MustParse("a"))
		var fetchErr *extract.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, "https://example.com/list", fetchErr.URL)
		assert.ErrorIs(t, err, cause)
	})
}

func TestProcess(t *testing.T) {
	ctx := context.Background()
	channels := types.ChannelSet{
		{Name: "text", Query: query.MustParse("//div[@class='oborList']/allText()")},
		{Name: "tidy", Query: query.MustParse("div.oborList :: tidy")},
		{Name: "missing", Query: query.MustParse("#missing")},
	}

	t.Run("fetches_once_and_omits_empty_channels", func(t *testing.T) {
		fetcher := &MockFetcher{htmlContent: pageHTML}
		extractor, err := extract.NewExtractor(fetcher)
		require.NoError(t, err)

		extraction, err := extractor.Process(ctx, "https://example.com/a", channels)
		require.NoError(t, err)

		assert.Equal(t, []string{"hello   world"}, extraction["text"])
		require.Len(t, extraction["tidy"], 1)
		assert.Contains(t, extraction["tidy"][0], "world")
		_, present := extraction["missing"]
		assert.False(t, present)
		assert.Equal(t, []string{"https://example.com/a"}, fetcher.calls)
	})

	t.Run("fetch_error", func(t *testing.T) {
		extractor, err := extract.NewExtractor(&MockFetcher{fetchError: errors.New("boom")})
		require.NoError(t, err)

		extraction, err := extractor.Process(ctx, "https://example.com/a", channels)
		assert.Nil(t, extraction)
		var fetchErr *extract.FetchError
		assert.ErrorAs(t, err, &fetchErr)
	})
}

func TestFeedLinks(t *testing.T) {
	const rss = `<?xml version="1.0"?><rss version="2.0"><channel><title>T</title>
<item><link>https://example.com/1</link></item><item><link>https://example.com/2</link></item>
</channel></rss>`

	t.Run("lists_item_links", func(t *testing.T) {
		extractor, err := extract.NewExtractor(&MockFetcher{htmlContent: rss})
		require.NoError(t, err)

		links, err := extractor.FeedLinks(context.Background(), "https://example.com/feed")
		require.NoError(t, err)
		assert.Equal(t, []string{"https://example.com/1", "https://example.com/2"}, links)
	})

	t.Run("invalid_feed", func(t *testing.T) {
		extractor, err := extract.NewExtractor(&MockFetcher{htmlContent: "<nope"})
		require.NoError(t, err)

		_, err = extractor.FeedLinks(context.Background(), "https://example.com/feed")
		var fetchErr *extract.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Contains(t, err.Error(), "RSSフィードのパース失敗")
	})
}

// TestFetchAndExtractText は本文抽出の主要なケースをテストします。
func TestFetchAndExtractText(t *testing.T) {
	const (
		titlePrefix = "【記事タイトル】 "
	)

	// 本文として抽出されるための十分な長さを持つパラグラフ
	longParagraph := "This is a long paragraph with more than twenty characters and it should be extracted as body content."

	testCases := []struct {
		name              string
		html              string
		fetchErr          error
		expectedText      string
		expectedBodyFound bool
		expectedError     error
	}{
		{
			name:          "fetch_error",
			fetchErr:      errors.New("network timeout"),
			expectedError: errors.New("network timeout"),
		},
		{
			name:              "document_with_title_only",
			html:              `<html><head><title>Test Title</title></head><body><p>Short text</p></body></html>`,
			expectedText:      titlePrefix + "Test Title",
			expectedBodyFound: false, // 短い段落は本文と見なされない
		},
		{
			name:              "document_with_main_content_and_title",
			html:              fmt.Sprintf(`<html><head><title>Title</title></head><body><main><p>%s</p></main></body></html>`, longParagraph),
			expectedText:      titlePrefix + "Title" + "\n\n" + longParagraph,
			expectedBodyFound: true,
		},
		{
			name: "document_with_headings_and_paragraphs",
			html: fmt.Sprintf(`<html><head><title>Test Page</title></head><body><article>
                <h1>Heading 1 Long Enough Title</h1>
                <p>Short</p>
                <h2>H2 Long Enough</h2>
                <p>%s</p>
               </article></body></html>`, longParagraph),
			expectedText: titlePrefix + "Test Page" + "\n\n" +
				"## Heading 1 Long Enough Title" + "\n\n" +
				"## H2 Long Enough" + "\n\n" +
				longParagraph,
			expectedBodyFound: true,
		},
		{
			name: "document_with_table_and_pre",
			html: `<html><head><title>Code Table</title></head><body><main>
                   <article>
                      <p>Intro text</p>
                      <table><caption>Data Table</caption><tr><td>Col1</td><td>Val1</td></tr></table>
                      <pre>func hello() {}</pre>
                   </article>
                   </main></body></html>`,
			// "Intro text" は MinParagraphLength より短いため無視される
			expectedText:      "【記事タイトル】 Code Table\n\n【表題】 Data Table\nCol1 | Val1\n\n```\nfunc hello() {}\n```",
			expectedBodyFound: true,
		},
		{
			name: "document_with_list_items",
			html: `<html><head><title>List Test</title></head><body><main><ul><li>Item 1</li><li>Item 2</li></ul></main></body></html>`,
			expectedText: titlePrefix + "List Test" + "\n\n" +
				"Item 1" + "\n\n" +
				"Item 2",
			expectedBodyFound: true,
		},
		{
			name:          "empty_document_error",
			html:          `<html><head><title></title></head><body></body></html>`,
			expectedError: extract.ErrNoContent,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			extractor, err := extract.NewExtractor(&MockFetcher{
				htmlContent: tc.html,
				fetchError:  tc.fetchErr,
			})
			require.NoError(t, err)

			actualText, actualBodyFound, err := extractor.FetchAndExtractText(context.Background(), "https://example.com/"+tc.name)

			// 1. エラーチェック
			if tc.expectedError != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedError.Error())
				return
			}
			require.NoError(t, err, "予期せぬエラーが発生しました")

			// 2. 本文抽出フラグチェック
			assert.Equal(t, tc.expectedBodyFound, actualBodyFound, "hasBodyFoundが期待値と異なります")

			// 3. 抽出テキストチェック
			assert.Equal(t, tc.expectedText, actualText, "抽出されたテキストが期待値と異なります")
		})
	}
}
