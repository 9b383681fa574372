package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-site-crawler/internal/config"
	"github.com/shouni/go-site-crawler/internal/pipeline"
	"github.com/shouni/go-site-crawler/pkg/extract"
	"github.com/shouni/go-site-crawler/pkg/frontier"
	"github.com/shouni/go-site-crawler/pkg/site"
	"github.com/shouni/go-site-crawler/pkg/types"
)

// ======================================================================
// モック
// ======================================================================

type MockResolver struct{ mock.Mock }

func (m *MockResolver) Resolve(ctx context.Context, failures *types.FailureSet) (types.URLSet, error) {
	args := m.Called(ctx, failures)
	return args.Get(0).(types.URLSet), args.Error(1)
}

type MockCrawler struct{ mock.Mock }

func (m *MockCrawler) Run(ctx context.Context, urls types.URLSet, failures *types.FailureSet) (*types.ResultTable, error) {
	args := m.Called(ctx, urls.Items(), failures)
	table, _ := args.Get(0).(*types.ResultTable)
	return table, args.Error(1)
}

type MockReporter struct{ mock.Mock }

func (m *MockReporter) Report(failures *types.FailureSet) (string, error) {
	args := m.Called(failures)
	return args.String(0), args.Error(1)
}

// ======================================================================
// Run
// ======================================================================

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		failures := types.NewFailureSet()
		table := types.NewResultTable(nil)
		resolver, crawler, reporter := new(MockResolver), new(MockCrawler), new(MockReporter)
		resolver.On("Resolve", ctx, failures).Return(types.NewURLSet("/a", "/b"), nil)
		crawler.On("Run", ctx, []string{"/a", "/b"}, failures).Return(table, nil).Run(func(args mock.Arguments) {
			args.Get(2).(*types.FailureSet).Add("https://x.test/b", errors.New("404"))
		})
		reporter.On("Report", failures).Return("stamp_failed_links_size_1.txt", nil)

		summary, err := pipeline.Run(ctx, pipeline.Deps{Resolver: resolver, Crawler: crawler, Reporter: reporter, Failures: failures})

		require.NoError(t, err)
		assert.Equal(t, 2, summary.Frontier)
		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, "stamp_failed_links_size_1.txt", summary.FailedSlot)
		assert.Same(t, table, summary.Results)
	})

	t.Run("discovery_error_skips_crawl", func(t *testing.T) {
		resolver, crawler, reporter := new(MockResolver), new(MockCrawler), new(MockReporter)
		resolver.On("Resolve", ctx, mock.Anything).Return(types.URLSet{}, frontier.ErrDiscovery)
		reporter.On("Report", mock.Anything).Return("", nil)

		_, err := pipeline.Run(ctx, pipeline.Deps{Resolver: resolver, Crawler: crawler, Reporter: reporter})

		assert.ErrorIs(t, err, frontier.ErrDiscovery)
		crawler.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("aborted_crawl_still_reports", func(t *testing.T) {
		resolver, crawler, reporter := new(MockResolver), new(MockCrawler), new(MockReporter)
		resolver.On("Resolve", ctx, mock.Anything).Return(types.NewURLSet("/a"), nil)
		crawler.On("Run", ctx, []string{"/a"}, mock.Anything).Return(nil, context.Canceled)
		reporter.On("Report", mock.Anything).Return("", nil)

		_, err := pipeline.Run(ctx, pipeline.Deps{Resolver: resolver, Crawler: crawler, Reporter: reporter})

		assert.ErrorIs(t, err, context.Canceled)
		reporter.AssertCalled(t, "Report", mock.Anything)
	})

	t.Run("missing_deps", func(t *testing.T) {
		_, err := pipeline.Run(ctx, pipeline.Deps{})
		assert.Error(t, err)
	})
}

// ======================================================================
// Wire (エンドツーエンド)
// ======================================================================

// pageFetcher はURLごとに固定のHTMLを返します。未登録のURLはエラーになります。
type pageFetcher struct {
	pages map[string]string
	calls []string
}

func (f *pageFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("404: %s", url)
	}
	return []byte(body), nil
}

const sitesYAML = `
sites:
  demo:
    base_url: https://x.test
    storage: /data/demo
    politeness: 1ms
    paginated:
      listing: /list/
      param: page
      page_size: 10
      max: 20
      links: "//div[@id='skoolList']//h3/a/@href"
    channels:
      t: "//div[@class='oborList']/allText()"
`

func listing(links ...string) string {
	body := `<html><body><div id="skoolList">`
	for _, l := range links {
		body += `<h3><a href="` + l + `">x</a></h3>`
	}
	return body + `</div></body></html>`
}

func TestWire_EndToEnd(t *testing.T) {
	fs := afero.NewMemMapFs()
	fetcher := &pageFetcher{pages: map[string]string{
		"https://x.test/list/?page=0":  listing("/a", "/b"),
		"https://x.test/list/?page=10": listing("/b", "/missing"),
		"https://x.test/a":             `<html><body><div class="oborList">hello</div></body></html>`,
		"https://x.test/b":             `<html><body><p>nothing here</p></body></html>`,
	}}

	file, err := site.Parse([]byte(sitesYAML))
	require.NoError(t, err)
	s, err := file.Site("demo")
	require.NoError(t, err)
	cfg, err := config.Load(config.NewViper())
	require.NoError(t, err)

	components, err := pipeline.Wire(cfg, s, fs, fetcher, nil)
	require.NoError(t, err)
	assert.Equal(t, "/data/demo", components.Store.Root())

	summary, err := pipeline.Run(context.Background(), components.Deps(nil))
	require.NoError(t, err)

	// 1. フロンティアはクロール前に保存される
	cached, err := afero.ReadFile(fs, "/data/demo/_urls.txt")
	require.NoError(t, err)
	assert.Equal(t, "/a\n/b\n/missing\n", string(cached))
	assert.Equal(t, 3, summary.Frontier)

	// 2. チャネルの出力
	outputs, err := afero.Glob(fs, "/data/demo/*_t.txt")
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	content, err := afero.ReadFile(fs, outputs[0])
	require.NoError(t, err)
	assert.Equal(t, "/a\thello\n", string(content))

	// 3. 失敗URL
	assert.Equal(t, 1, summary.Failed)
	require.NotEmpty(t, summary.FailedSlot)
	failed, err := afero.ReadFile(fs, filepath.Join("/data/demo", summary.FailedSlot))
	require.NoError(t, err)
	assert.Equal(t, "https://x.test/missing\n", string(failed))

	// 4. 2回目はキャッシュを使い、探索しない
	fetcher.calls = nil
	_, err = pipeline.Run(context.Background(), components.Deps(nil))
	require.NoError(t, err)
	assert.NotContains(t, fetcher.calls, "https://x.test/list/?page=0")
	assert.Len(t, fetcher.calls, 3)
}

func TestWire_InvalidPoliteness(t *testing.T) {
	file, err := site.Parse([]byte(sitesYAML))
	require.NoError(t, err)
	s, err := file.Site("demo")
	require.NoError(t, err)
	s.Politeness = 0

	_, err = pipeline.Wire(config.Config{Timeout: 1}, s, afero.NewMemMapFs(), &pageFetcher{}, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewFetcher(t *testing.T) {
	var agents []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	cfg, err := config.Load(config.NewViper())
	require.NoError(t, err)

	const interval = 30 * time.Millisecond
	var fetcher extract.Fetcher = pipeline.NewFetcher(cfg, interval, nil)

	start := time.Now()
	for i := 0; i < 2; i++ {
		body, err := fetcher.FetchBytes(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "<html><body>ok</body></html>", string(body))
	}
	assert.GreaterOrEqual(t, time.Since(start), interval-5*time.Millisecond, "2回目のリクエストは間隔を空けること")
	assert.Len(t, agents, 2)
}
