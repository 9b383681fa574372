package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shouni/go-site-crawler/internal/pipeline"
)

func newCrawlCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "フロンティアの取得、全ページのクロール、失敗URLの保存を続けて実行します",
		Long: `保存先に _urls.txt (フロンティア) があればそれを使い、なければサイト定義の探索方法でURLを収集して保存します。
その後、各URLを待機時間を挟みながら順に取得し、チャネルごとに <時刻>_<チャネル>.txt へ書き出します。
取得に失敗したURLは <時刻>_failed_links_size_<件数>.txt に保存されます。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.currentSite()
			if err != nil {
				return err
			}

			// 1. 依存性の初期化
			components, err := pipeline.Wire(a.cfg, s, a.fs, a.fetcher, a.log)
			if err != nil {
				return err
			}
			a.log.Info("クロールを開始します", "site", s.Name, "storage", components.Store.Root(), "politeness", components.Interval)

			// 2. 実行 (Ctrl+C で中断しても出力と失敗URLは保存される)
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			summary, err := pipeline.Run(ctx, components.Deps(a.log))

			// 3. 結果の出力
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "フロンティア: %d件\n", summary.Frontier)
			if summary.Results != nil {
				channels, _ := s.Channels()
				for _, name := range channels.Names() {
					fmt.Fprintf(out, "  %s: %d件\n", name, summary.Results.Len(name))
				}
			}
			fmt.Fprintf(out, "失敗: %d件\n", summary.Failed)
			if summary.FailedSlot != "" {
				fmt.Fprintf(out, "失敗URL: %s\n", filepath.Join(components.Store.Root(), summary.FailedSlot))
			}
			return err
		},
	}
}
