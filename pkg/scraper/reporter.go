package scraper

import (
	"fmt"
	"time"

	"github.com/shouni/go-site-crawler/internal/logger"
	"github.com/shouni/go-site-crawler/pkg/types"
)

// SetStore は失敗URLの保存先です。
type SetStore interface {
	SaveSet(set types.URLSet, slot string) error
}

// FailedSlotName は失敗URLを保存するスロット名を返します。
func FailedSlotName(stamp string, size int) string {
	return fmt.Sprintf("%s_failed_links_size_%d.txt", stamp, size)
}

// Reporter は実行中に失敗したURLをまとめて保存します。
type Reporter struct {
	store SetStore
	now   func() time.Time
	log   logger.Interface
}

// NewReporter は Reporter を作成します。log が nil の場合は何も出力しません。
func NewReporter(store SetStore, log logger.Interface) *Reporter {
	if log == nil {
		log = logger.NewNop()
	}
	return &Reporter{store: store, now: time.Now, log: log}
}

// WithClock はスロット名に使う時刻の取得元を差し替えた Reporter を返します。
func (r *Reporter) WithClock(now func() time.Time) *Reporter {
	if now != nil {
		r.now = now
	}
	return r
}

// Report は失敗URLを保存し、保存したスロット名を返します。失敗がない場合は何もせず空文字列を返します。
// 保存に成功すると failures は空になります。保存に失敗した場合は failures をそのまま残します。
func (r *Reporter) Report(failures *types.FailureSet) (string, error) {
	if failures == nil || failures.Len() == 0 {
		return "", nil
	}

	urls := failures.URLs()
	slot := FailedSlotName(r.now().Format(TimestampLayout), urls.Len())
	if err := r.store.SaveSet(urls, slot); err != nil {
		return "", fmt.Errorf("失敗URLの保存に失敗しました (%s): %w", slot, err)
	}

	for _, u := range urls.Items() {
		r.log.Debug("失敗URL", "url", u, "error", failures.Cause(u))
	}
	failures.Clear()
	r.log.Info("失敗したURLを保存しました", "count", urls.Len(), "slot", slot)
	return slot, nil
}
