package pipeline

import (
	"fmt"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/spf13/afero"

	"github.com/shouni/go-site-crawler/internal/config"
	"github.com/shouni/go-site-crawler/internal/logger"
	"github.com/shouni/go-site-crawler/pkg/extract"
	"github.com/shouni/go-site-crawler/pkg/frontier"
	"github.com/shouni/go-site-crawler/pkg/httpclient"
	"github.com/shouni/go-site-crawler/pkg/scraper"
	"github.com/shouni/go-site-crawler/pkg/site"
	"github.com/shouni/go-site-crawler/pkg/storage"
)

// Components は1サイト分に組み立てられた具象の構成要素です。
type Components struct {
	Site      *site.Site
	Store     *storage.Store
	Extractor *extract.Extractor
	Resolver  *frontier.Resolver
	Scraper   *scraper.Scraper
	Reporter  *scraper.Reporter
	Interval  time.Duration
}

// Deps は Run に渡す依存関係を返します。
func (c *Components) Deps(log logger.Interface) Deps {
	return Deps{Resolver: c.Resolver, Crawler: c.Scraper, Reporter: c.Reporter, Log: log}
}

// NewFetcher は設定に従って HTTP クライアントを作成します。
// リトライは httpkit が行い、全リクエストの間隔は interval 以上に制限されます。
func NewFetcher(cfg config.Config, interval time.Duration, log logger.Interface) *httpkit.Client {
	doer := httpclient.New(cfg.Timeout, interval, httpclient.WithLogger(log))
	return httpkit.New(
		cfg.Timeout,
		httpkit.WithMaxRetries(uint64(cfg.MaxRetries)),
		httpkit.WithHTTPClient(doer),
	)
}

// Wire はサイト定義と設定から構成要素を組み立てます。fetcher が nil の場合は NewFetcher を使います。
func Wire(cfg config.Config, s *site.Site, fs afero.Fs, fetcher extract.Fetcher, log logger.Interface) (*Components, error) {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("site", s.Name)

	// 1. 待機間隔と保存先
	interval, err := cfg.PolitenessFor(s.Politeness)
	if err != nil {
		return nil, err
	}
	store, err := storage.New(fs, cfg.StorageFor(s.Name, s.Storage))
	if err != nil {
		return nil, err
	}
	if err := store.EnsureStorage(); err != nil {
		return nil, err
	}

	// 2. 取得と抽出
	if fetcher == nil {
		fetcher = NewFetcher(cfg, interval, log)
	}
	extractor, err := extract.NewExtractor(fetcher)
	if err != nil {
		return nil, err
	}

	// 3. サイト定義の展開
	strategy, err := s.Strategy()
	if err != nil {
		return nil, err
	}
	channels, err := s.Channels()
	if err != nil {
		return nil, err
	}

	// 4. エンジンの組み立て
	resolver, err := frontier.NewResolver(store, extractor, strategy,
		frontier.WithSlot(s.FrontierSlot),
		frontier.WithBaseURL(s.BaseURL),
		frontier.WithLogger(log.With("component", "frontier")),
	)
	if err != nil {
		return nil, fmt.Errorf("フロンティアの初期化エラー: %w", err)
	}
	crawler, err := scraper.New(extractor, store, channels, s.BaseURL, interval,
		scraper.WithProgressEvery(cfg.ProgressEvery),
		scraper.WithLogger(log.With("component", "scraper")),
	)
	if err != nil {
		return nil, fmt.Errorf("スクレイパーの初期化エラー: %w", err)
	}

	return &Components{
		Site:      s,
		Store:     store,
		Extractor: extractor,
		Resolver:  resolver,
		Scraper:   crawler,
		Reporter:  scraper.NewReporter(store, log.With("component", "reporter")),
		Interval:  interval,
	}, nil
}
