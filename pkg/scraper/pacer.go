package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInterval は待機間隔が正の値でない場合のエラーです。
var ErrInvalidInterval = errors.New("scraper: 待機間隔は正の値である必要があります")

// Pacer はリクエスト間の待機を行います。
// エラーは待機が完了しなかったことを示しますが、クロールを中断する理由にはなりません。
type Pacer interface {
	Pause(ctx context.Context) error
}

// SleepPacer は毎回一定時間待機する Pacer です。
type SleepPacer struct {
	interval time.Duration
}

// NewSleepPacer は SleepPacer を作成します。
func NewSleepPacer(interval time.Duration) (*SleepPacer, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	return &SleepPacer{interval: interval}, nil
}

func (p *SleepPacer) Interval() time.Duration { return p.interval }

// Pause は interval が経過するか ctx が終了するまで待機します。
func (p *SleepPacer) Pause(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("待機が中断されました: %w", ctx.Err())
	}
}
