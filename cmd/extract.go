package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/go-site-crawler/internal/pipeline"
	"github.com/shouni/go-site-crawler/pkg/extract"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		rawURL   string
		readable bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "1つのページにサイトのチャネル定義を適用し、抽出結果を表示します",
		Long: `指定されたURL (未指定の場合は標準入力) のページを取得し、選択中のサイトの各チャネルのクエリを評価して
"<チャネル>\t<断片>" の形式で表示します。--readable を指定すると本文抽出の結果を表示します。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 1. 処理対象URLの決定 (フラグ優先)
			urlToProcess := rawURL
			if urlToProcess == "" {
				var err error
				if urlToProcess, err = readURL(cmd); err != nil {
					return err
				}
			}
			processedURL, err := ensureScheme(urlToProcess)
			if err != nil {
				return fmt.Errorf("URLスキームの処理エラー: %w", err)
			}

			// 2. 依存性の初期化
			fetcher := a.fetcher
			if fetcher == nil {
				fetcher = pipeline.NewFetcher(a.cfg, 0, a.log)
			}
			extractor, err := extract.NewExtractor(fetcher)
			if err != nil {
				return fmt.Errorf("Extractorの初期化エラー: %w", err)
			}

			// 3. 全体処理のタイムアウト (リトライ回数分を上乗せ)
			ctx, cancel := context.WithTimeout(cmd.Context(), overallTimeout(a.cfg.Timeout, a.cfg.MaxRetries))
			defer cancel()

			out := cmd.OutOrStdout()
			if readable {
				text, hasBody, err := extractor.FetchAndExtractText(ctx, processedURL)
				if err != nil {
					return fmt.Errorf("コンテンツ抽出エラー (URL: %s): %w", processedURL, err)
				}
				if !hasBody {
					fmt.Fprintf(out, "本文は見つかりませんでしたが、タイトルを取得しました:\n%s\n", text)
					return nil
				}
				fmt.Fprintln(out, "--- 抽出された本文 ---")
				fmt.Fprintln(out, text)
				fmt.Fprintln(out, "-----------------------")
				return nil
			}

			s, err := a.currentSite()
			if err != nil {
				return err
			}
			channels, err := s.Channels()
			if err != nil {
				return err
			}
			extraction, err := extractor.Process(ctx, processedURL, channels)
			if err != nil {
				return fmt.Errorf("コンテンツ抽出エラー (URL: %s): %w", processedURL, err)
			}
			for _, name := range channels.Names() {
				for _, fragment := range extraction[name] {
					fmt.Fprintf(out, "%s\t%s\n", name, strings.ReplaceAll(fragment, "\n", " "))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&rawURL, "url", "u", "", "抽出対象のURL")
	cmd.Flags().BoolVar(&readable, "readable", false, "チャネルの代わりに本文抽出の結果を表示する")
	return cmd
}

// overallTimeout は1回の取得とリトライ全体に許す時間を返します。
func overallTimeout(timeout time.Duration, maxRetries int) time.Duration {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return timeout * time.Duration(maxRetries+2)
}

// readURL は標準入力から1行読み込みます。
func readURL(cmd *cobra.Command) (string, error) {
	fmt.Fprint(os.Stderr, "処理するURLを入力してください: ")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("標準入力の読み取りエラー: %w", err)
		}
		return "", fmt.Errorf("URLが入力されていません")
	}
	return scanner.Text(), nil
}
