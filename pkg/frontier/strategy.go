package frontier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/shouni/go-site-crawler/internal/logger"
	"github.com/shouni/go-site-crawler/pkg/query"
	"github.com/shouni/go-site-crawler/pkg/types"
)

// ErrInvalidStrategy は探索戦略の設定が不完全な場合のエラーです。
var ErrInvalidStrategy = errors.New("frontier: 探索戦略の設定が不正です")

// Strategy はサイトごとのURL探索方法です。
// 実装はこのパッケージの PaginatedListing, NavMenuWalk, MixedSectionListing, FeedListing に限られます。
type Strategy interface {
	// Validate は戦略の設定を検証します。
	Validate() error
	// Name はログ用の戦略名を返します。
	Name() string

	discover(ctx context.Context, w *walker) (types.URLSet, error)
}

// walker は探索中のリンク取得を仲介し、失敗を FailureSet に記録します。
type walker struct {
	source   LinkSource
	failures *types.FailureSet
	base     string
	log      logger.Interface
}

// links はクエリを評価します。取得に失敗したアドレスは記録され、空の結果として扱われます。
func (w *walker) links(ctx context.Context, address string, q query.Query) []string {
	found, err := w.source.Links(ctx, address, q)
	if err != nil {
		w.failures.Add(address, err)
		w.log.Warn("リンクの取得に失敗しました", "url", address, "error", err)
		return nil
	}
	w.log.Debug("リンクを取得しました", "url", address, "count", len(found))
	return found
}

// document はページを1回取得します。失敗したアドレスは記録され、ok は false になります。
func (w *walker) document(ctx context.Context, address string) (*html.Node, bool) {
	root, err := w.source.Document(ctx, address)
	if err != nil {
		w.failures.Add(address, err)
		w.log.Warn("ページの取得に失敗しました", "url", address, "error", err)
		return nil, false
	}
	return root, true
}

func (w *walker) feedLinks(ctx context.Context, address string) []string {
	found, err := w.source.FeedLinks(ctx, address)
	if err != nil {
		w.failures.Add(address, err)
		w.log.Warn("フィードの取得に失敗しました", "url", address, "error", err)
		return nil
	}
	return found
}

// ----------------------------------------------------------------------
// PaginatedListing
// ----------------------------------------------------------------------

// PaginatedListing はページ番号パラメータを PageSize ずつ進めた一覧ページを順に評価します。
// アドレスは Listing?Param=i (i = 0, PageSize, ... < Max) です。
type PaginatedListing struct {
	Listing  string
	Param    string
	PageSize int
	Max      int
	Links    query.Query
}

func (p PaginatedListing) Name() string { return "paginated" }

func (p PaginatedListing) Validate() error {
	switch {
	case strings.TrimSpace(p.Listing) == "":
		return fmt.Errorf("%w: paginated: listing が空です", ErrInvalidStrategy)
	case strings.TrimSpace(p.Param) == "":
		return fmt.Errorf("%w: paginated: param が空です", ErrInvalidStrategy)
	case p.PageSize <= 0 || p.Max <= 0:
		return fmt.Errorf("%w: paginated: page_size と max は正の値が必要です (page_size=%d, max=%d)", ErrInvalidStrategy, p.PageSize, p.Max)
	case p.Links.IsZero():
		return fmt.Errorf("%w: paginated: links クエリが空です", ErrInvalidStrategy)
	}
	return nil
}

// Pages は評価する一覧ページのアドレスを順に返します。
func (p PaginatedListing) Pages(base string) []string {
	listing := Absolute(base, p.Listing)
	sep := "?"
	if strings.Contains(listing, "?") {
		sep = "&"
	}

	var pages []string
	for i := 0; i < p.Max; i += p.PageSize {
		pages = append(pages, listing+sep+p.Param+"="+strconv.Itoa(i))
	}
	return pages
}

func (p PaginatedListing) discover(ctx context.Context, w *walker) (types.URLSet, error) {
	set := types.NewURLSet()
	for _, page := range p.Pages(w.base) {
		if err := ctx.Err(); err != nil {
			return set, err
		}
		set.AddAll(w.links(ctx, page, p.Links))
	}
	return set, nil
}

// ----------------------------------------------------------------------
// NavMenuWalk
// ----------------------------------------------------------------------

// NavMenuWalk はナビゲーションメニューを2階層たどります。
// Toggle がページ上で見つかった場合 (折りたたみメニュー) は MobileLinks の1階層のみを使います。
type NavMenuWalk struct {
	Address     string
	TopLinks    query.Query
	Toggle      query.Query
	MobileLinks query.Query
	SubLinks    query.Query
}

func (n NavMenuWalk) Name() string { return "nav_menu" }

func (n NavMenuWalk) Validate() error {
	switch {
	case strings.TrimSpace(n.Address) == "":
		return fmt.Errorf("%w: nav_menu: address が空です", ErrInvalidStrategy)
	case n.TopLinks.IsZero():
		return fmt.Errorf("%w: nav_menu: top_links クエリが空です", ErrInvalidStrategy)
	case !n.Toggle.IsZero() && n.MobileLinks.IsZero():
		return fmt.Errorf("%w: nav_menu: toggle を使う場合は mobile_links が必要です", ErrInvalidStrategy)
	}
	return nil
}

func (n NavMenuWalk) discover(ctx context.Context, w *walker) (types.URLSet, error) {
	address := Absolute(w.base, n.Address)
	set := types.NewURLSet()

	// メニューのページは1回だけ取得し、以降のクエリはすべて同じドキュメントに対して評価する
	root, ok := w.document(ctx, address)
	if !ok {
		return set, nil
	}

	// 1. 折りたたみメニューの検出 (アイコンのみのボタンも要素の有無で判定する)
	if n.Toggle.Matches(root) > 0 {
		w.log.Debug("折りたたみメニューを検出しました", "url", address)
		set.AddAll(n.MobileLinks.Evaluate(root))
		return set, nil
	}

	// 2. 第1階層
	top := n.TopLinks.Evaluate(root)
	set.AddAll(top)
	if n.SubLinks.IsZero() {
		return set, nil
	}

	// 3. 第2階層
	for _, link := range top {
		if err := ctx.Err(); err != nil {
			return set, err
		}
		set.AddAll(w.links(ctx, Absolute(w.base, link), n.SubLinks))
	}
	return set, nil
}

// ----------------------------------------------------------------------
// MixedSectionListing
// ----------------------------------------------------------------------

// MixedSectionListing は1つのページの2つのセクションをそれぞれ評価し、和集合を返します。
type MixedSectionListing struct {
	Address   string
	Primary   query.Query
	Secondary query.Query
}

func (m MixedSectionListing) Name() string { return "mixed_sections" }

func (m MixedSectionListing) Validate() error {
	switch {
	case strings.TrimSpace(m.Address) == "":
		return fmt.Errorf("%w: mixed_sections: address が空です", ErrInvalidStrategy)
	case m.Primary.IsZero() || m.Secondary.IsZero():
		return fmt.Errorf("%w: mixed_sections: primary と secondary の両方が必要です", ErrInvalidStrategy)
	}
	return nil
}

func (m MixedSectionListing) discover(ctx context.Context, w *walker) (types.URLSet, error) {
	address := Absolute(w.base, m.Address)
	root, ok := w.document(ctx, address)
	if !ok {
		return types.NewURLSet(), nil
	}
	set := types.NewURLSet(m.Primary.Evaluate(root)...)
	set.AddAll(m.Secondary.Evaluate(root))
	return set, nil
}

// ----------------------------------------------------------------------
// FeedListing
// ----------------------------------------------------------------------

// FeedListing は RSS/Atom フィードの記事リンクの和集合を返します。
type FeedListing struct {
	Feeds []string
}

func (f FeedListing) Name() string { return "feed" }

func (f FeedListing) Validate() error {
	if len(f.Feeds) == 0 {
		return fmt.Errorf("%w: feed: feeds が空です", ErrInvalidStrategy)
	}
	for _, feed := range f.Feeds {
		if strings.TrimSpace(feed) == "" {
			return fmt.Errorf("%w: feed: 空のフィードURLがあります", ErrInvalidStrategy)
		}
	}
	return nil
}

func (f FeedListing) discover(ctx context.Context, w *walker) (types.URLSet, error) {
	set := types.NewURLSet()
	for _, feed := range f.Feeds {
		if err := ctx.Err(); err != nil {
			return set, err
		}
		set.AddAll(w.feedLinks(ctx, Absolute(w.base, feed)))
	}
	return set, nil
}
