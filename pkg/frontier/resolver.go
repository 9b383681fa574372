// Package frontier はクロール対象URL集合 (フロンティア) の取得と、サイトごとの探索戦略を提供します。
package frontier

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/net/html"

	"github.com/shouni/go-site-crawler/internal/logger"
	"github.com/shouni/go-site-crawler/pkg/query"
	"github.com/shouni/go-site-crawler/pkg/types"
)

// DefaultSlot はフロンティアを保存するスロット名です。
const DefaultSlot = "_urls.txt"

// ErrDiscovery はキャッシュがなく、探索でも1件もURLが得られなかったことを示します。
var ErrDiscovery = errors.New("frontier: URLを1件も取得できませんでした")

// Store はフロンティアのキャッシュに使う永続化層です。
type Store interface {
	LoadSet(slot string) (types.URLSet, bool, error)
	SaveSet(set types.URLSet, slot string) error
}

// LinkSource は探索戦略が使うリンク取得機能です。
type LinkSource interface {
	Document(ctx context.Context, address string) (*html.Node, error)
	Links(ctx context.Context, address string, q query.Query) ([]string, error)
	FeedLinks(ctx context.Context, address string) ([]string, error)
}

// Resolver はキャッシュ済みのフロンティアを読み込むか、探索戦略を実行してフロンティアを作成します。
type Resolver struct {
	store    Store
	source   LinkSource
	strategy Strategy
	slot     string
	base     string
	log      logger.Interface
}

// Option は Resolver の設定を変更します。
type Option func(*Resolver)

// WithSlot はキャッシュのスロット名を変更します。空文字列は無視されます。
func WithSlot(slot string) Option {
	return func(r *Resolver) {
		if slot != "" {
			r.slot = slot
		}
	}
}

// WithBaseURL は相対リンクの解決に使うサイトのベースアドレスを設定します。
func WithBaseURL(base string) Option {
	return func(r *Resolver) { r.base = base }
}

func WithLogger(log logger.Interface) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver は Resolver を作成します。戦略の設定はここで検証されます。
func NewResolver(store Store, source LinkSource, strategy Strategy, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("frontier.NewResolver: Store cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("frontier.NewResolver: LinkSource cannot be nil")
	}
	if strategy == nil {
		return nil, fmt.Errorf("frontier.NewResolver: Strategy cannot be nil")
	}
	if err := strategy.Validate(); err != nil {
		return nil, err
	}

	r := &Resolver{
		store:    store,
		source:   source,
		strategy: strategy,
		slot:     DefaultSlot,
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Slot はキャッシュのスロット名を返します。
func (r *Resolver) Slot() string { return r.slot }

// Resolve はフロンティアを返します。
//
// キャッシュが存在する場合はその内容をそのまま返し、探索も再保存も行いません。
// キャッシュがない場合は探索戦略を実行し、結果を直ちにスロットへ保存します。
// 探索中のリンク取得の失敗は failures に記録され、空の結果として扱われます。
func (r *Resolver) Resolve(ctx context.Context, failures *types.FailureSet) (types.URLSet, error) {
	if failures == nil {
		failures = types.NewFailureSet()
	}

	// 1. キャッシュの読み込み
	cached, ok, err := r.store.LoadSet(r.slot)
	if err != nil {
		return types.URLSet{}, fmt.Errorf("フロンティアの読み込みに失敗しました: %w", err)
	}
	if ok {
		if cached.Len() == 0 {
			r.log.Warn("キャッシュされたフロンティアが空です", "slot", r.slot)
		}
		r.log.Info("キャッシュからフロンティアを読み込みました", "slot", r.slot, "count", cached.Len())
		return cached, nil
	}

	// 2. 探索の実行
	r.log.Info("フロンティアを探索します", "strategy", r.strategy.Name())
	w := &walker{source: r.source, failures: failures, base: r.base, log: r.log}
	discovered, err := r.strategy.discover(ctx, w)
	if err != nil {
		return types.URLSet{}, fmt.Errorf("フロンティアの探索が中断されました: %w", err)
	}

	// 3. 結果の検証
	if discovered.Len() == 0 {
		return types.URLSet{}, fmt.Errorf("%w (strategy: %s, 失敗: %d件)", ErrDiscovery, r.strategy.Name(), failures.Len())
	}

	// 4. 直ちに保存
	if err := r.store.SaveSet(discovered, r.slot); err != nil {
		return types.URLSet{}, fmt.Errorf("フロンティアの保存に失敗しました: %w", err)
	}
	r.log.Info("フロンティアを保存しました", "slot", r.slot, "count", discovered.Len())
	return discovered, nil
}
