// Package httpclient は httpkit.Client に渡す Doer として、リクエスト間隔の上限を提供します。
package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/shouni/go-site-crawler/internal/logger"
)

const (
	// DefaultHTTPTimeout は内部の *http.Client のデフォルトタイムアウトです。
	DefaultHTTPTimeout = 30 * time.Second

	// サイトからのブロックを避けるためのUser-Agent
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"
)

// Doer は、標準の *http.Client.Do() と互換性のあるHTTPクライアントのインターフェースです。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client は全リクエスト (httpkit によるリトライを含む) の間隔を interval 以上に保つ Doer です。
type Client struct {
	doer      Doer
	limiter   *rate.Limiter
	userAgent string
	log       logger.Interface
}

// Option は Client の設定を行うための関数型です。
type Option func(*Client)

// WithHTTPClient は実際にリクエストを送る Doer を設定します。
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		if doer != nil {
			c.doer = doer
		}
	}
}

// WithUserAgent は User-Agent ヘッダーを上書きします。
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func WithLogger(log logger.Interface) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New は Client を生成します。timeout は内部の *http.Client に、interval はリクエスト間隔に使われます。
// interval が0以下の場合は間隔を制限しません。
func New(timeout, interval time.Duration, options ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	c := &Client{
		doer:      &http.Client{Timeout: timeout},
		userAgent: UserAgent,
		log:       logger.NewNop(),
	}
	if interval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Do はリクエスト間隔の上限に従って待機してから、リクエストを送信します。
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	// 1. 間隔の待機 (リクエストのコンテキストで中断可能)
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("リクエスト間隔の待機に失敗しました: %w", err)
		}
	}

	// 2. 送信
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.doer.Do(req)
	if err != nil {
		c.log.Warn("HTTPリクエストに失敗しました", "url", req.URL.String(), "error", err)
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		c.log.Warn("サーバーエラーを受信しました", "url", req.URL.String(), "status", resp.StatusCode)
	} else {
		c.log.Debug("レスポンスを受信しました", "url", req.URL.String(), "status", resp.StatusCode)
	}
	return resp, nil
}
