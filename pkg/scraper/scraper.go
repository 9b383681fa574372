// Package scraper はフロンティアを順に処理するクロールループと、失敗URLのレポーターを提供します。
package scraper

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shouni/go-site-crawler/internal/logger"
	"github.com/shouni/go-site-crawler/pkg/frontier"
	"github.com/shouni/go-site-crawler/pkg/storage"
	"github.com/shouni/go-site-crawler/pkg/types"
)

const (
	// TimestampLayout は出力ファイル名に埋め込む時刻の書式です (ミリ秒まで)。
	TimestampLayout = "2006-01-02_15-04-05.000"
	// DefaultProgressEvery は進捗ログを出力する間隔 (URL数) です。
	DefaultProgressEvery = 100
)

// Processor は1つのページから全チャネルの断片を抽出します。
type Processor interface {
	Process(ctx context.Context, address string, channels types.ChannelSet) (types.Extraction, error)
}

// OutputStore はチャネルごとの出力ファイルを作成します。
type OutputStore interface {
	CreateOutput(name string) (io.WriteCloser, error)
}

// lineBreaks は断片内の改行を空白に置き換え、1行1断片の形式を保ちます。
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Scraper はフロンティアを1件ずつ処理し、結果をチャネルごとのファイルに書き出します。
type Scraper struct {
	processor     Processor
	store         OutputStore
	channels      types.ChannelSet
	base          string
	pacer         Pacer
	progressEvery int
	now           func() time.Time
	log           logger.Interface
}

// Option は Scraper の設定を変更します。
type Option func(*Scraper)

// WithPacer は待機処理を差し替えます。
func WithPacer(p Pacer) Option {
	return func(s *Scraper) {
		if p != nil {
			s.pacer = p
		}
	}
}

// WithProgressEvery は進捗ログの間隔を変更します。0以下は無視されます。
func WithProgressEvery(n int) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.progressEvery = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scraper) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(log logger.Interface) Option {
	return func(s *Scraper) {
		if log != nil {
			s.log = log
		}
	}
}

// New は Scraper を初期化します。interval は各URLの処理後に待機する時間で、正の値が必要です。
func New(processor Processor, store OutputStore, channels types.ChannelSet, base string, interval time.Duration, opts ...Option) (*Scraper, error) {
	if processor == nil {
		return nil, fmt.Errorf("scraper.New: Processor cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("scraper.New: OutputStore cannot be nil")
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("scraper.New: チャネルが1つもありません")
	}
	pacer, err := NewSleepPacer(interval)
	if err != nil {
		return nil, err
	}

	s := &Scraper{
		processor:     processor,
		store:         store,
		channels:      channels,
		base:          base,
		pacer:         pacer,
		progressEvery: DefaultProgressEvery,
		now:           time.Now,
		log:           logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OutputName はチャネルの出力ファイル名を返します。
func OutputName(stamp, channel string) string {
	return stamp + "_" + channel + ".txt"
}

// output はチャネル1つ分の出力先です。
type output struct {
	name   string
	w      *bufio.Writer
	closer io.Closer
}

func (o *output) writeLine(url, fragment string) error {
	if _, err := o.w.WriteString(url + "\t" + lineBreaks.Replace(fragment) + "\n"); err != nil {
		return fmt.Errorf("%w: 書き込みに失敗しました (%s): %w", storage.ErrPersistence, o.name, err)
	}
	return nil
}

func (o *output) close() error {
	flushErr := o.w.Flush()
	closeErr := o.closer.Close()
	if err := errors.Join(flushErr, closeErr); err != nil {
		return fmt.Errorf("%w: 出力ファイルを閉じられませんでした (%s): %w", storage.ErrPersistence, o.name, err)
	}
	return nil
}

// Run はフロンティアの各URLを処理し、結果テーブルを返します。
//
// 取得・抽出の失敗は failures に記録され、処理は次のURLへ進みます。
// 出力ファイルの作成・書き込みの失敗と ctx の終了はクロールを中断します。
// いずれの場合も出力ファイルは必ず閉じられます。
func (s *Scraper) Run(ctx context.Context, urls types.URLSet, failures *types.FailureSet) (table *types.ResultTable, err error) {
	if failures == nil {
		failures = types.NewFailureSet()
	}
	table = types.NewResultTable(s.channels)

	// 1. チャネルごとの出力ファイルを開く
	outputs, err := s.openOutputs(s.now().Format(TimestampLayout))
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, o := range outputs {
			if closeErr := o.close(); closeErr != nil {
				err = errors.Join(err, closeErr)
			}
		}
	}()

	items := urls.Items()
	total := len(items)
	s.log.Info("クロールを開始します", "total", total, "channels", s.channels.Names())

	// 2. URLを順に処理
	for i, url := range items {
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.log.Warn("クロールを中断しました", "index", i, "total", total, "error", ctxErr)
			return table, fmt.Errorf("クロールが中断されました (%d/%d): %w", i, total, ctxErr)
		}

		if err := s.processURL(ctx, i, total, url, outputs, table, failures); err != nil {
			return table, err
		}

		if pauseErr := s.pacer.Pause(ctx); pauseErr != nil {
			s.log.Warn("待機中にエラーが発生しました", "url", url, "error", pauseErr)
		}
	}

	s.log.Info("クロールが完了しました", "total", total, "failed", failures.Len())
	return table, nil
}

func (s *Scraper) processURL(ctx context.Context, index, total int, url string, outputs []*output, table *types.ResultTable, failures *types.FailureSet) error {
	// 1. 絶対URLに変換して抽出
	address := frontier.Absolute(s.base, url)
	extraction, err := s.processor.Process(ctx, address, s.channels)
	if err != nil {
		failures.Add(address, err)
		s.log.Warn("ページの処理に失敗しました", "url", address, "error", err)
	}

	// 2. 進捗
	if index%s.progressEvery == 0 {
		s.log.Info("進捗", "index", index, "total", total, "fraction", float64(index)/float64(total))
	}

	// 3. チャネルごとに記録と書き出し (行のキーは元のURL)
	for i, c := range s.channels {
		fragments, ok := extraction[c.Name]
		if !ok || fragments == nil {
			continue
		}
		table.Record(c.Name, url, fragments)
		s.log.Debug("断片を抽出しました", "url", url, "channel", c.Name, "count", len(fragments))

		for _, fragment := range fragments {
			if err := outputs[i].writeLine(url, fragment); err != nil {
				return err
			}
		}
	}
	return nil
}

// openOutputs は全チャネルの出力ファイルを開きます。1つでも失敗した場合は開いたものを閉じて返します。
func (s *Scraper) openOutputs(stamp string) ([]*output, error) {
	outputs := make([]*output, 0, len(s.channels))
	for _, c := range s.channels {
		name := OutputName(stamp, c.Name)
		w, err := s.store.CreateOutput(name)
		if err != nil {
			for _, o := range outputs {
				if closeErr := o.close(); closeErr != nil {
					s.log.Error("出力ファイルを閉じられませんでした", "name", o.name, "error", closeErr)
				}
			}
			if errors.Is(err, storage.ErrPersistence) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: 出力ファイルを開けませんでした (%s): %w", storage.ErrPersistence, name, err)
		}
		outputs = append(outputs, &output{name: name, w: bufio.NewWriter(w), closer: w})
	}
	return outputs, nil
}
