package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shouni/go-site-crawler/internal/config"
	"github.com/shouni/go-site-crawler/internal/logger"
	"github.com/shouni/go-site-crawler/pkg/extract"
	"github.com/shouni/go-site-crawler/pkg/site"
)

const appName = "site-crawler"

// app はコマンド間で共有する実行時の状態です。
type app struct {
	v       *viper.Viper
	cfg     config.Config
	log     logger.Interface
	fs      afero.Fs
	// fetcher が nil の場合は設定に従って HTTP クライアントを作成します。
	fetcher extract.Fetcher
}

func newApp() *app {
	return &app{
		v:   config.NewViper(),
		fs:  afero.NewOsFs(),
		log: logger.NewNop(),
	}
}

// NewRootCmd はルートコマンドとサブコマンドを組み立てます。
func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp())
}

func newRootCmd(a *app) *cobra.Command {
	// clibase が --config と --verbose を定義し、PersistentPreRunE から a.preRun を呼び出す
	rootCmd := clibase.NewRootCmd(appName, a.addPersistentFlags, a.preRun)
	rootCmd.Short = "サイト定義に従ってページを収集し、チャネルごとに抽出結果を保存するクローラー"
	rootCmd.Long = `サイト定義 (YAML) に従ってクロール対象URLを探索・キャッシュし、
各ページから構造クエリで断片を抽出してチャネルごとのファイルに保存します。
取得に失敗したURLは実行の最後に別ファイルへ保存されます。`
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(
		newCrawlCmd(a),
		newFrontierCmd(a),
		newExtractCmd(a),
		newParseCmd(a),
		newSitesCmd(a),
	)
	return rootCmd
}

// addPersistentFlags は、アプリケーション固有の永続フラグを追加し、viper にバインドします。
func (a *app) addPersistentFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.String("site", config.DefaultSite, "クロール対象のサイト名")
	flags.String("sites-file", "", "サイト定義ファイル (空の場合は組み込みの定義)")
	flags.String("storage", "", "保存先ディレクトリ (デフォルト: ./storage/<site>)")
	flags.String("politeness", "", "リクエスト間の待機時間 (例: 1200ms、整数はミリ秒)")
	flags.String("timeout", config.DefaultTimeout.String(), "HTTPリクエストのタイムアウト時間 (例: 30s、整数は秒)")
	flags.Int("max-retries", config.DefaultMaxRetries, "HTTPリクエストのリトライ最大回数")
	flags.Int("progress-every", config.DefaultProgressEvery, "進捗ログを出力する間隔 (URL数)")
	flags.String("log-level", "info", "ログレベル (debug, info, warn, error)")
	flags.String("log-encoding", "console", "ログ形式 (console, json)")

	for key, name := range map[string]string{
		config.KeySite:          "site",
		config.KeySitesFile:     "sites-file",
		config.KeyStorage:       "storage",
		config.KeyPoliteness:    "politeness",
		config.KeyTimeout:       "timeout",
		config.KeyMaxRetries:    "max-retries",
		config.KeyProgressEvery: "progress-every",
		config.KeyLogLevel:      "log-level",
		config.KeyLogEncoding:   "log-encoding",
	} {
		// フラグ名は上で定義済みのため、エラーになることはない
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}
}

// preRun は clibase 共通処理の後に実行され、設定ファイル・環境変数・フラグを読み込みロガーを初期化します。
// --verbose は log-level より優先されます。
func (a *app) preRun(cmd *cobra.Command, args []string) error {
	if err := config.ReadConfigFile(a.v, stringFlag(cmd, "config")); err != nil {
		return err
	}
	if boolFlag(cmd, "verbose") {
		a.v.Set(config.KeyLogLevel, "debug")
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("ロガーの初期化エラー: %w", err)
	}

	a.cfg = cfg
	a.log = log
	a.log.Debug("設定を読み込みました", "site", cfg.Site, "config_file", a.v.ConfigFileUsed())
	return nil
}

// stringFlag は継承されたフラグを含めて値を取得します。未定義の場合は空文字です。
func stringFlag(cmd *cobra.Command, name string) string {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}

func boolFlag(cmd *cobra.Command, name string) bool {
	if f := cmd.Flags().Lookup(name); f != nil {
		v, err := strconv.ParseBool(f.Value.String())
		return err == nil && v
	}
	return false
}

// loadSites はサイト定義ファイル (未指定の場合は組み込み定義) を読み込みます。
func (a *app) loadSites() (*site.File, error) {
	if a.cfg.SitesFile == "" {
		return site.Default()
	}
	return site.Load(a.fs, a.cfg.SitesFile)
}

// currentSite は設定で選択されたサイト定義を返します。
func (a *app) currentSite() (*site.Site, error) {
	sites, err := a.loadSites()
	if err != nil {
		return nil, err
	}
	return sites.Site(a.cfg.Site)
}

// signalContext は SIGINT/SIGTERM で終了するコンテキストを返します。
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Execute は、ルートコマンドを実行するメイン関数です。
func Execute() error {
	return NewRootCmd().Execute()
}
