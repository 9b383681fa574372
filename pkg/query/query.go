package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	textUtils "github.com/shouni/go-utils/text"
	"golang.org/x/net/html"
)

// ----------------------------------------------------------------------
// 定数と型定義
// ----------------------------------------------------------------------

// Kind はセレクターの種類 (CSS または XPath) を表します。
type Kind int

const (
	CSS Kind = iota
	XPath
)

func (k Kind) String() string {
	if k == XPath {
		return "xpath"
	}
	return "css"
}

// Mode はマッチしたノードから文字列を取り出す方法を表します。
type Mode string

const (
	ModeText     Mode = "text"     // 前後の空白を除いたテキスト
	ModeTidy     Mode = "tidy"     // 空白を正規化したテキスト
	ModeHTML     Mode = "html"     // 内側のHTML
	ModeOuter    Mode = "outer"    // 要素自身を含むHTML
	ModeReadable Mode = "readable" // 本文抽出ヒューリスティックによるテキスト
	ModeAttr     Mode = "attr"     // 属性値
)

const (
	cssPrefix     = "css:"
	xpathPrefix   = "xpath:"
	modeSeparator = " :: "
)

// xpathPseudoFunctions は、既存のセレクターセットで使われている末尾の疑似関数と出力モードの対応です。
var xpathPseudoFunctions = []struct {
	suffix string
	mode   Mode
}{
	{"/allText()", ModeText},
	{"/tidyText()", ModeTidy},
	{"/html()", ModeHTML},
	{"/outerHtml()", ModeOuter},
}

var (
	// ErrEmptyQuery は空のクエリ式が渡された場合のエラーです。
	ErrEmptyQuery = errors.New("query: 空のクエリ式です")
	// ErrInvalidQuery はクエリ式の構文エラーを示します。
	ErrInvalidQuery = errors.New("query: 無効なクエリ式です")
)

// Query は、コンパイル済みの構造クエリです。ゼロ値は何にもマッチしません。
type Query struct {
	raw      string
	kind     Kind
	selector string
	mode     Mode
	attr     string
	expr     *xpath.Expr
}

// ----------------------------------------------------------------------
// パース
// ----------------------------------------------------------------------

// Parse はクエリ式を解析し、セレクターを検証した Query を返します。
//
// 書式: [css:|xpath:]<selector>[ :: text|tidy|html|outer|readable|attr(<name>)]
func Parse(expr string) (Query, error) {
	raw := strings.TrimSpace(expr)
	if raw == "" {
		return Query{}, ErrEmptyQuery
	}

	q := Query{raw: raw, mode: ModeText}

	// 1. 出力モードの分離
	body := raw
	explicitMode := false
	if i := strings.LastIndex(body, modeSeparator); i >= 0 {
		mode, attr, err := parseMode(strings.TrimSpace(body[i+len(modeSeparator):]))
		if err != nil {
			return Query{}, fmt.Errorf("%w (%s): %w", ErrInvalidQuery, raw, err)
		}
		q.mode, q.attr = mode, attr
		explicitMode = true
		body = strings.TrimSpace(body[:i])
	}

	// 2. セレクター種別の判定
	q.kind, q.selector = detectKind(body)
	if q.selector == "" {
		return Query{}, fmt.Errorf("%w (%s): セレクターがありません", ErrInvalidQuery, raw)
	}

	// 3. セレクターのコンパイル
	switch q.kind {
	case XPath:
		selector, mode, ok := stripPseudoFunction(q.selector)
		if ok {
			q.selector = selector
			if !explicitMode {
				q.mode = mode
			}
		}
		compiled, err := xpath.Compile(q.selector)
		if err != nil {
			return Query{}, fmt.Errorf("%w (%s): %w", ErrInvalidQuery, raw, err)
		}
		q.expr = compiled
	default:
		if _, err := cascadia.Compile(q.selector); err != nil {
			return Query{}, fmt.Errorf("%w (%s): %w", ErrInvalidQuery, raw, err)
		}
	}

	return q, nil
}

// MustParse は Parse と同じですが、エラー時に panic します。テストや固定定義向けです。
func MustParse(expr string) Query {
	q, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return q
}

func parseMode(s string) (Mode, string, error) {
	if strings.HasPrefix(s, "attr(") && strings.HasSuffix(s, ")") {
		name := strings.TrimSpace(s[len("attr(") : len(s)-1])
		if name == "" {
			return "", "", errors.New("属性名が空です")
		}
		return ModeAttr, name, nil
	}
	switch Mode(s) {
	case ModeText, ModeTidy, ModeHTML, ModeOuter, ModeReadable:
		return Mode(s), "", nil
	}
	return "", "", fmt.Errorf("未知の出力モードです: %q", s)
}

func detectKind(body string) (Kind, string) {
	switch {
	case strings.HasPrefix(body, xpathPrefix):
		return XPath, strings.TrimSpace(strings.TrimPrefix(body, xpathPrefix))
	case strings.HasPrefix(body, cssPrefix):
		return CSS, strings.TrimSpace(strings.TrimPrefix(body, cssPrefix))
	case strings.HasPrefix(body, "/"), strings.HasPrefix(body, "./"), strings.HasPrefix(body, "("):
		return XPath, body
	}
	return CSS, body
}

func stripPseudoFunction(selector string) (string, Mode, bool) {
	for _, pf := range xpathPseudoFunctions {
		if strings.HasSuffix(selector, pf.suffix) {
			return strings.TrimSuffix(selector, pf.suffix), pf.mode, true
		}
	}
	return selector, "", false
}

// ----------------------------------------------------------------------
// アクセサ
// ----------------------------------------------------------------------

// String は元のクエリ式を返します。
func (q Query) String() string { return q.raw }

// IsZero はクエリが未設定かどうかを返します。
func (q Query) IsZero() bool { return q.raw == "" }

func (q Query) Kind() Kind { return q.kind }

func (q Query) Mode() Mode { return q.mode }

func (q Query) Selector() string { return q.selector }

// Attribute は attr モードで取り出す属性名を返します。
func (q Query) Attribute() string { return q.attr }

// ----------------------------------------------------------------------
// 評価
// ----------------------------------------------------------------------

// Evaluate はパース済みドキュメントに対してクエリを評価し、
// ドキュメント順にマッチした空でない文字列を返します。マッチしない場合は空スライスです。
func (q Query) Evaluate(root *html.Node) []string {
	results := []string{}
	if q.IsZero() || root == nil {
		return results
	}

	for _, s := range q.selections(root) {
		if v, ok := q.render(s); ok {
			results = append(results, v)
		}
	}
	return results
}

// Matches はマッチしたノード数を返します。Evaluate と異なり、中身が空のノードも数えます。
func (q Query) Matches(root *html.Node) int {
	if q.IsZero() || root == nil {
		return 0
	}
	return len(q.selections(root))
}

// selections はマッチしたノードを goquery.Selection として列挙します。
func (q Query) selections(root *html.Node) []*goquery.Selection {
	var selections []*goquery.Selection

	if q.kind == XPath {
		for _, n := range htmlquery.QuerySelectorAll(root, q.expr) {
			selections = append(selections, goquery.NewDocumentFromNode(n).Selection)
		}
		return selections
	}

	goquery.NewDocumentFromNode(root).Find(q.selector).Each(func(_ int, s *goquery.Selection) {
		selections = append(selections, s)
	})
	return selections
}

// render は出力モードに従って1つのノードを文字列化します。
func (q Query) render(s *goquery.Selection) (string, bool) {
	var value string

	switch q.mode {
	case ModeTidy:
		value = textUtils.NormalizeText(s.Text())
	case ModeHTML:
		h, err := s.Html()
		if err != nil {
			return "", false
		}
		value = h
	case ModeOuter:
		h, err := goquery.OuterHtml(s)
		if err != nil {
			return "", false
		}
		value = h
	case ModeAttr:
		v, exists := s.Attr(q.attr)
		if !exists {
			return "", false
		}
		value = v
	case ModeReadable:
		text, found := Readable(s)
		if !found {
			return "", false
		}
		value = text
	default:
		value = s.Text()
	}

	value = strings.TrimSpace(value)
	return value, value != ""
}
