// Package core は、カタログアダプタを組み合わせたホスト側の処理（全ページ解決・メタデータ同期）を実装します。
package core

import (
	"context"
	"fmt"
	"log"

	"GoGalleryCatalog/internal/adapter"
	"GoGalleryCatalog/internal/model"

	"golang.org/x/sync/errgroup"
)

const defaultMaxConcurrentPages = 4

// ChapterPages は、1チャプター分の画像一覧です。
type ChapterPages struct {
	Chapter model.ChapterRef `json:"chapter"`
	Pages   []model.ImageRef `json:"pages"`
}

// Resolution は、1つのコンテンツについて詳細・チャプター・画像をすべて解決した結果です。
type Resolution struct {
	Detail   model.ContentDetail `json:"detail"`
	Chapters []ChapterPages      `json:"chapters"`
}

// ResolveAllPages は、詳細 → チャプター → 各チャプターの画像の順に解決します。
// チャプターの解決は詳細の取得後に逐次で行い、画像の取得のみ最大 limit 並列で実行します。
// いずれかのチャプターで失敗した場合は、残りの取得をキャンセルして最初のエラーを返します。
func ResolveAllPages(ctx context.Context, src adapter.CatalogSource, ref model.Reference, limit int, logger *log.Logger) (*Resolution, error) {
	if logger == nil {
		logger = log.Default()
	}
	if limit <= 0 {
		limit = defaultMaxConcurrentPages
	}

	detail, err := src.FetchDetail(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("詳細の取得に失敗しました (site=%s, ref=%s): %w", src.ID(), ref.Path, err)
	}

	chapters, err := src.FetchChapters(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("チャプターの取得に失敗しました (site=%s, ref=%s): %w", src.ID(), ref.Path, err)
	}
	logger.Printf("INFO: '%s' のチャプター %d 件の画像を解決します (並列数: %d)", detail.Title, len(chapters), limit)

	results := make([]ChapterPages, len(chapters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, ch := range chapters {
		g.Go(func() error {
			pages, err := src.FetchPages(gctx, ch)
			if err != nil {
				return fmt.Errorf("画像一覧の取得に失敗しました (chapter=%s): %w", ch.Reference.Path, err)
			}
			results[i] = ChapterPages{Chapter: ch, Pages: pages}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r.Pages)
	}
	logger.Printf("INFO: '%s' の解決が完了しました (チャプター: %d, 画像: %d)", detail.Title, len(results), total)
	return &Resolution{Detail: detail, Chapters: results}, nil
}
