package types

import (
	"sort"

	"github.com/shouni/go-site-crawler/pkg/query"
)

// ----------------------------------------------------------------------
// URL集合 (フロンティア)
// ----------------------------------------------------------------------

// URLSet は重複のないURLの集合です。
// Items は辞書順に整列した結果を返すため、同じ集合からは常に同じ走査順が得られます。
type URLSet struct {
	members map[string]struct{}
}

// NewURLSet は与えられたURLから集合を作成します。空文字列は無視されます。
func NewURLSet(urls ...string) URLSet {
	s := URLSet{members: make(map[string]struct{}, len(urls))}
	s.AddAll(urls)
	return s
}

// Add はURLを追加し、新規に追加された場合に true を返します。
func (s *URLSet) Add(url string) bool {
	if url == "" {
		return false
	}
	if s.members == nil {
		s.members = make(map[string]struct{})
	}
	if _, exists := s.members[url]; exists {
		return false
	}
	s.members[url] = struct{}{}
	return true
}

// AddAll は複数のURLを追加します。
func (s *URLSet) AddAll(urls []string) {
	for _, u := range urls {
		s.Add(u)
	}
}

// Union は other の全要素を追加します。
func (s *URLSet) Union(other URLSet) {
	for u := range other.members {
		s.Add(u)
	}
}

func (s URLSet) Contains(url string) bool {
	_, ok := s.members[url]
	return ok
}

func (s URLSet) Len() int { return len(s.members) }

// Items は要素を辞書順に並べたスライスを返します。
func (s URLSet) Items() []string {
	items := make([]string, 0, len(s.members))
	for u := range s.members {
		items = append(items, u)
	}
	sort.Strings(items)
	return items
}

// ----------------------------------------------------------------------
// 抽出チャネル
// ----------------------------------------------------------------------

// Channel は名前付きの構造クエリです。チャネルごとに結果が別々に保存されます。
type Channel struct {
	Name  string
	Query query.Query
}

// ChannelSet はクロール対象ごとに固定されたチャネルの集合です。
type ChannelSet []Channel

// Names はチャネル名を定義順に返します。
func (cs ChannelSet) Names() []string {
	names := make([]string, 0, len(cs))
	for _, c := range cs {
		names = append(names, c.Name)
	}
	return names
}

// Extraction は1つのURLに対する抽出結果です (チャネル名 → ドキュメント順の断片)。
// 何もマッチしなかったチャネルのキーは存在しません。
type Extraction map[string][]string

// ----------------------------------------------------------------------
// 結果テーブル
// ----------------------------------------------------------------------

// ResultTable は実行全体の結果 (チャネル名 → URL → 断片) です。
// 一度記録された (チャネル, URL) の組は上書きされません。
type ResultTable struct {
	rows map[string]map[string][]string
}

// NewResultTable はチャネルごとに空の行集合を持つテーブルを作成します。
func NewResultTable(channels ChannelSet) *ResultTable {
	t := &ResultTable{rows: make(map[string]map[string][]string, len(channels))}
	for _, c := range channels {
		t.rows[c.Name] = make(map[string][]string)
	}
	return t
}

// Record は (チャネル, URL) の行を作成し、作成された場合に true を返します。
func (t *ResultTable) Record(channel, url string, fragments []string) bool {
	rows, ok := t.rows[channel]
	if !ok {
		rows = make(map[string][]string)
		t.rows[channel] = rows
	}
	if _, exists := rows[url]; exists {
		return false
	}
	rows[url] = fragments
	return true
}

// Row は (チャネル, URL) の断片を返します。
func (t *ResultTable) Row(channel, url string) ([]string, bool) {
	fragments, ok := t.rows[channel][url]
	return fragments, ok
}

// Rows はチャネルの全行 (URL → 断片) を返します。
func (t *ResultTable) Rows(channel string) map[string][]string {
	return t.rows[channel]
}

// Len はチャネルの行数を返します。
func (t *ResultTable) Len(channel string) int {
	return len(t.rows[channel])
}

// ----------------------------------------------------------------------
// 失敗集合
// ----------------------------------------------------------------------

// FailureSet は実行中に取得・抽出に失敗したURLを保持します。
// 実行ごとに呼び出し側が所有し、レポーターが最後に一度だけ読み出して空にします。
type FailureSet struct {
	errs map[string]error
}

// NewFailureSet は空の失敗集合を作成します。
func NewFailureSet() *FailureSet {
	return &FailureSet{errs: make(map[string]error)}
}

// Add は失敗したURLとその原因を記録します。同じURLの最初の原因が保持されます。
func (f *FailureSet) Add(url string, err error) {
	if f.errs == nil {
		f.errs = make(map[string]error)
	}
	if _, exists := f.errs[url]; exists {
		return
	}
	f.errs[url] = err
}

func (f *FailureSet) Len() int { return len(f.errs) }

// Cause は記録された原因を返します。記録がない場合は nil です。
func (f *FailureSet) Cause(url string) error {
	return f.errs[url]
}

// URLs は失敗したURLの集合を返します。
func (f *FailureSet) URLs() URLSet {
	s := NewURLSet()
	for u := range f.errs {
		s.Add(u)
	}
	return s
}

// Clear は記録をすべて破棄します。
func (f *FailureSet) Clear() {
	f.errs = make(map[string]error)
}
