package cmd

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"
	"github.com/spf13/cobra"

	"github.com/shouni/go-site-crawler/internal/pipeline"
	"github.com/shouni/go-site-crawler/pkg/feed"
)

// runParse は、フィードの取得とパースを実行します。
func runParse(ctx context.Context, url string, parser *feed.Parser) (*gofeed.Feed, error) {
	parsedFeed, err := parser.FetchAndParse(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得およびパースエラー (URL: %s): %w", url, err)
	}
	return parsedFeed, nil
}

func newParseCmd(a *app) *cobra.Command {
	var feedURL string

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "RSS/Atomフィードを取得・解析し、タイトルと記事を一覧表示します",
		Long:  `指定されたURLからRSSまたはAtomフィードを取得し、その内容（フィードタイトル、記事タイトル、URL）を整形して表示します。フィード型サイトの定義確認に使います。`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			processedURL, err := ensureScheme(feedURL)
			if err != nil {
				return fmt.Errorf("URLスキームの処理エラー: %w", err)
			}
			timeout := overallTimeout(a.cfg.Timeout, a.cfg.MaxRetries)
			a.log.Info("フィードを取得します", "url", processedURL, "timeout", timeout)

			// 1. 依存性の初期化
			fetcher := a.fetcher
			if fetcher == nil {
				fetcher = pipeline.NewFetcher(a.cfg, 0, a.log)
			}
			parser := feed.NewParser(fetcher)

			// 2. メインロジックの実行
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			parsedFeed, err := runParse(ctx, processedURL, parser)
			if err != nil {
				return fmt.Errorf("フィード解析の実行エラー: %w", err)
			}

			// 3. 結果の出力
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "--- フィード解析結果 ---\n")
			fmt.Fprintf(out, "フィードタイトル: %s\n", parsedFeed.Title)
			if parsedFeed.Link != "" {
				fmt.Fprintf(out, "リンク: %s\n", parsedFeed.Link)
			}
			fmt.Fprintf(out, "合計記事数: %d\n", len(parsedFeed.Items))
			fmt.Fprintln(out, "-----------------------")

			for i, item := range parsedFeed.Items {
				fmt.Fprintf(out, "[%d] %s\n", i+1, item.Title)
				fmt.Fprintf(out, "    URL: %s\n", item.Link)
				if item.PublishedParsed != nil {
					fmt.Fprintf(out, "    公開日: %s\n", item.PublishedParsed.Local().Format("2006-01-02 15:04:05"))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&feedURL, "url", "u", "", "解析対象のフィード (RSS/Atom) URL")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
