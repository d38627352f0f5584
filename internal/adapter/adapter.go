// Package adapter は、Masonry系ギャラリーサイトを統一的な「一覧 / 検索 / 詳細 / チャプター / ページ」
// インターフェースに変換するカタログアダプタを提供します。サイトごとの差異はセレクタと機能フラグの
// 設定（config.Site）として注入され、解析アルゴリズムは全サイトで共通です。
package adapter

import (
	"bytes"
	"context"

	"GoGalleryCatalog/internal/model"
	"GoGalleryCatalog/internal/network"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher は、トランスポート層への依存を抽象化します。network.Client が実装します。
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (*network.Response, error)
}

// Preferences は、ホスト側に永続化された設定の読み取り口です。config.Preferences が実装します。
type Preferences interface {
	Bool(key string, def bool) bool
}

// CatalogSource は、ホストアプリケーションから呼び出されるカタログ操作の集合です。
type CatalogSource interface {
	// ID は設定ファイル上のサイトIDです。
	ID() string
	// Name は表示用のサイト名です。
	Name() string
	ListPopular(ctx context.Context, page int) (model.ListingPage, error)
	ListLatest(ctx context.Context, page int) (model.ListingPage, error)
	Search(ctx context.Context, page int, facets model.SearchFacets) (model.ListingPage, error)
	FetchDetail(ctx context.Context, ref model.Reference) (model.ContentDetail, error)
	FetchChapters(ctx context.Context, ref model.Reference) ([]model.ChapterRef, error)
	FetchPages(ctx context.Context, chapter model.ChapterRef) ([]model.ImageRef, error)
	// FilterList は、現在の語彙キャッシュからフィルタ一覧を毎回組み立て直します。
	FilterList(ctx context.Context, current model.SearchFacets) []model.FilterGroup
}

// NewDocumentFromBytes は、[]byteからgoquery.Documentを生成するヘルパー関数です。
func NewDocumentFromBytes(htmlBody []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(htmlBody))
}
