// Package pipeline はフロンティアの取得、クロール、失敗URLの報告を1回の実行として束ねます。
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/shouni/go-site-crawler/internal/logger"
	"github.com/shouni/go-site-crawler/pkg/types"
)

// FrontierResolver はクロール対象のURL集合を返します。
type FrontierResolver interface {
	Resolve(ctx context.Context, failures *types.FailureSet) (types.URLSet, error)
}

// Crawler はURL集合を順に処理します。
type Crawler interface {
	Run(ctx context.Context, urls types.URLSet, failures *types.FailureSet) (*types.ResultTable, error)
}

// FailureReporter は失敗URLを保存し、集合を空にします。
type FailureReporter interface {
	Report(failures *types.FailureSet) (string, error)
}

// Deps は Run が使う構成要素です。
type Deps struct {
	Resolver FrontierResolver
	Crawler  Crawler
	Reporter FailureReporter
	// Failures が nil の場合は実行ごとに新しい集合を使います。
	Failures *types.FailureSet
	Log      logger.Interface
}

// Summary は1回の実行結果の要約です。
type Summary struct {
	Frontier   int
	Failed     int
	FailedSlot string
	Results    *types.ResultTable
}

// Run はフロンティアを取得してクロールし、最後に失敗URLを報告します。
//
// フロンティアの取得に失敗した場合はページを1件も取得せずに終了します。
// クロールが中断された場合も、それまでの失敗URLは報告されます。
func Run(ctx context.Context, deps Deps) (Summary, error) {
	if deps.Resolver == nil || deps.Crawler == nil || deps.Reporter == nil {
		return Summary{}, fmt.Errorf("pipeline.Run: Resolver, Crawler, Reporter は必須です")
	}
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	failures := deps.Failures
	if failures == nil {
		failures = types.NewFailureSet()
	}

	var summary Summary

	// 1. フロンティアの取得
	urls, err := deps.Resolver.Resolve(ctx, failures)
	if err != nil {
		summary.Failed = failures.Len()
		slot, reportErr := deps.Reporter.Report(failures)
		summary.FailedSlot = slot
		return summary, errors.Join(fmt.Errorf("フロンティアの取得に失敗しました: %w", err), reportErr)
	}
	summary.Frontier = urls.Len()

	// 2. クロール
	table, runErr := deps.Crawler.Run(ctx, urls, failures)
	summary.Results = table
	if runErr != nil {
		log.Error("クロールが異常終了しました", "error", runErr)
	}

	// 3. 失敗URLの報告
	summary.Failed = failures.Len()
	slot, reportErr := deps.Reporter.Report(failures)
	summary.FailedSlot = slot
	if reportErr != nil {
		log.Error("失敗URLを保存できませんでした", "error", reportErr)
	}

	log.Info("実行が完了しました", "frontier", summary.Frontier, "failed", summary.Failed, "failed_slot", summary.FailedSlot)
	return summary, errors.Join(runErr, reportErr)
}
