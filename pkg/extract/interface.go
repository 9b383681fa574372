package extract

import (
	"context"

	"golang.org/x/net/html"

	"github.com/shouni/go-site-crawler/pkg/query"
	"github.com/shouni/go-site-crawler/pkg/types"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// Fetcher は、HTMLドキュメントの生バイト配列を取得する機能のインターフェースを定義します。
// Extractor は、この抽象に依存します。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Provider はクロールエンジンが利用する取得・抽出機能の集合です。
// 失敗は戻り値として返され、集約は呼び出し側の責務です。
type Provider interface {
	// Document はページを取得してパースします。同じページに複数のクエリを評価する場合に使います。
	Document(ctx context.Context, address string) (*html.Node, error)
	// Links はページ上でクエリにマッチした値を返します。マッチしない場合は空スライスです。
	Links(ctx context.Context, address string, q query.Query) ([]string, error)
	// Process はページを一度だけ取得し、全チャネルを評価します。
	Process(ctx context.Context, address string, channels types.ChannelSet) (types.Extraction, error)
	// FeedLinks は RSS/Atom フィードの記事リンクを返します。
	FeedLinks(ctx context.Context, address string) ([]string, error)
}

var _ Provider = (*Extractor)(nil)
