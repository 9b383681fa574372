package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shouni/go-site-crawler/internal/pipeline"
	"github.com/shouni/go-site-crawler/pkg/types"
)

func newFrontierCmd(a *app) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "frontier",
		Short: "フロンティア (クロール対象URL集合) のみを取得・保存します",
		Long:  `キャッシュ済みのフロンティアがなければ探索を実行して保存します。ページ本体の取得は行いません。`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.currentSite()
			if err != nil {
				return err
			}
			components, err := pipeline.Wire(a.cfg, s, a.fs, a.fetcher, a.log)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			failures := types.NewFailureSet()
			urls, resolveErr := components.Resolver.Resolve(ctx, failures)

			// 探索中に失敗した一覧ページも保存する
			if _, err := components.Reporter.Report(failures); err != nil {
				a.log.Error("失敗URLを保存できませんでした", "error", err)
			}
			if resolveErr != nil {
				return resolveErr
			}

			out := cmd.OutOrStdout()
			if list {
				for _, u := range urls.Items() {
					fmt.Fprintln(out, u)
				}
				return nil
			}
			fmt.Fprintf(out, "%d件 (%s)\n", urls.Len(), filepath.Join(components.Store.Root(), components.Resolver.Slot()))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "URLを1行ずつ出力する")
	return cmd
}
