package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/shouni/go-site-crawler/pkg/feed"
	"github.com/shouni/go-site-crawler/pkg/query"
	"github.com/shouni/go-site-crawler/pkg/types"
)

// ErrNoContent はページから本文もタイトルも抽出できなかった場合のエラーです。
var ErrNoContent = errors.New("webページから何も抽出できませんでした")

// FetchError はページの取得または解析に失敗したことを示します。
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("ページの取得に失敗しました (URL: %s): %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Extractor は、Fetcher を使ってコンテンツ抽出プロセスを管理します。
type Extractor struct {
	fetcher Fetcher
	feeds   *feed.Parser
}

// NewExtractor は、新しいExtractorのインスタンスを生成します。
func NewExtractor(fetcher Fetcher) (*Extractor, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("extract.NewExtractor: Fetcher cannot be nil")
	}
	return &Extractor{
		fetcher: fetcher,
		feeds:   feed.NewParser(fetcher),
	}, nil
}

// Document はページを取得し、HTMLとして解析したルートノードを返します。
func (e *Extractor) Document(ctx context.Context, address string) (*html.Node, error) {
	// 1. Fetcherから生のバイト配列を取得 (通信の責務)
	htmlBytes, err := e.fetcher.FetchBytes(ctx, address)
	if err != nil {
		return nil, &FetchError{URL: address, Err: err}
	}

	// 2. ノードツリーに変換 (解析の責務)
	root, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return nil, &FetchError{URL: address, Err: fmt.Errorf("HTML解析に失敗しました: %w", err)}
	}
	return root, nil
}

// Links はページを取得し、クエリにマッチした値をドキュメント順に返します。
func (e *Extractor) Links(ctx context.Context, address string, q query.Query) ([]string, error) {
	root, err := e.Document(ctx, address)
	if err != nil {
		return nil, err
	}
	return q.Evaluate(root), nil
}

// Process はページを一度だけ取得し、各チャネルのクエリを評価します。
// 断片が1つもないチャネルは結果に含まれません。
func (e *Extractor) Process(ctx context.Context, address string, channels types.ChannelSet) (types.Extraction, error) {
	root, err := e.Document(ctx, address)
	if err != nil {
		return nil, err
	}

	extraction := make(types.Extraction, len(channels))
	for _, c := range channels {
		if fragments := c.Query.Evaluate(root); len(fragments) > 0 {
			extraction[c.Name] = fragments
		}
	}
	return extraction, nil
}

// FeedLinks はフィードを取得し、記事リンクを返します。
func (e *Extractor) FeedLinks(ctx context.Context, address string) ([]string, error) {
	links, err := e.feeds.FetchLinks(ctx, address)
	if err != nil {
		return nil, &FetchError{URL: address, Err: err}
	}
	return links, nil
}

// FetchAndExtractText は指定されたURLからコンテンツを取得し、整形された本文テキストを抽出します。
// hasBodyFound はタイトル以外の本文が見つかったかどうかを示します。
func (e *Extractor) FetchAndExtractText(ctx context.Context, address string) (text string, hasBodyFound bool, err error) {
	root, err := e.Document(ctx, address)
	if err != nil {
		return "", false, err
	}

	text, hasBodyFound = query.Readable(goquery.NewDocumentFromNode(root).Selection)
	if text == "" {
		return "", false, ErrNoContent
	}
	return text, hasBodyFound, nil
}
