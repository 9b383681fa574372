package query

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"
)

// ----------------------------------------------------------------------
// 定数定義 (本文抽出関連のみ)
// ----------------------------------------------------------------------
const (
	MinParagraphLength   = 20
	MinHeadingLength     = 3
	mainContentSelectors = "article, main, div[role='main'], #main, #content, .post-content, .article-body, .entry-content, .markdown-body, .readme"
	noiseSelectors       = ".related-posts, .social-share, .comments, .ad-banner, .advertisement, script, style"

	// textExtractionTags は本文抽出に使用するHTMLタグを定義します。
	textExtractionTags = "p, h1, h2, h3, h4, h5, h6, li, blockquote"

	titlePrefix        = "【記事タイトル】 "
	tableCaptionPrefix = "【表題】 "
)

// Readable は選択範囲から本文とタイトルを抽出し、整形したテキストを返します。
// 元のDOMは変更しません (複製に対してノイズ除去を行います)。
// 本文が見つからない場合 (タイトルのみも含む) は found が false になります。
func Readable(s *goquery.Selection) (text string, found bool) {
	scope := s.Clone()

	var parts []string
	// 1. ページタイトルを抽出
	pageTitle := strings.TrimSpace(scope.Find("title").First().Text())
	if pageTitle != "" {
		parts = append(parts, titlePrefix+pageTitle)
	}

	// 2. メインコンテンツの特定
	mainContent := findMainContent(scope)

	// 3. ノイズ要素の除去
	mainContent.Find(noiseSelectors).Remove()

	// 4. テキスト要素・テーブル・pre をDOMの出現順に走査
	contentSelectors := textExtractionTags + ", table, pre"

	mainContent.Find(contentSelectors).Each(func(i int, s *goquery.Selection) {
		var content string

		switch {
		case s.Is("table"):
			content = processTable(s)
		case s.Is("pre"):
			preText := strings.TrimSpace(s.Text())
			if preText != "" {
				content = "```\n" + preText + "\n```"
			}
		default:
			content = processGeneralElement(s)
		}

		if content != "" {
			parts = append(parts, content)
		}
	})

	// 5. 抽出結果の検証
	if len(parts) == 0 {
		return "", false
	}
	if len(parts) == 1 && strings.HasPrefix(parts[0], titlePrefix) {
		return parts[0], false
	}
	return strings.Join(parts, "\n\n"), true
}

// findMainContent は範囲内のメインコンテンツを取得します。見つからない場合は範囲全体を使います。
func findMainContent(scope *goquery.Selection) *goquery.Selection {
	if scope.Is(mainContentSelectors) {
		return scope
	}
	mainContent := scope.Find(mainContentSelectors).First()
	if mainContent.Length() == 0 {
		scope.Find("header, footer, nav, aside, .sidebar, form").Remove()
		return scope
	}
	return mainContent
}

// processGeneralElement は p, h*, li, blockquote を整形します。
func processGeneralElement(s *goquery.Selection) string {
	tempSelection := s.Clone()
	tempSelection.Find("pre, table").Remove() // 子孫の pre, table を除去

	text := textUtils.NormalizeText(tempSelection.Text())
	if text == "" {
		return ""
	}

	if s.Is("h1, h2, h3, h4, h5, h6") {
		if len(text) > MinHeadingLength {
			return "## " + text
		}
		return ""
	}
	if s.Is("li") || len(text) > MinParagraphLength {
		return text
	}
	return ""
}

// processTable は goquery.Selection からテーブルの内容を抽出し、整形します。
func processTable(s *goquery.Selection) string {
	var tableContent []string
	captionText := strings.TrimSpace(s.Find("caption").First().Text())
	if captionText != "" {
		tableContent = append(tableContent, tableCaptionPrefix+captionText)
	}
	s.Find("tr").Each(func(rowIndex int, row *goquery.Selection) {
		var rowTexts []string
		row.Find("th, td").Each(func(cellIndex int, cell *goquery.Selection) {
			rowTexts = append(rowTexts, textUtils.NormalizeText(cell.Text()))
		})
		tableContent = append(tableContent, strings.Join(rowTexts, " | "))
	})
	if len(tableContent) > 0 {
		return strings.Join(tableContent, "\n")
	}
	return ""
}
