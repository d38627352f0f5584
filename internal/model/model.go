// Package model は、カタログアダプタが返すデータ構造を定義します。
package model

// ContentKind は、コンテンツの種類（ギャラリー / モデル）を表します。
type ContentKind int

const (
	KindGallery ContentKind = iota // 単一のギャラリー（終端）
	KindModel                      // モデルのプロフィール（配下のギャラリーが増え続ける）
)

// String は ContentKind を文字列に変換します。
func (k ContentKind) String() string {
	switch k {
	case KindGallery:
		return "gallery"
	case KindModel:
		return "model"
	default:
		return "unknown"
	}
}

// ParseContentKind は文字列から ContentKind を解決します。未知の値はギャラリーとして扱います。
func ParseContentKind(s string) ContentKind {
	switch s {
	case "model", "models":
		return KindModel
	default:
		return KindGallery
	}
}

// Reference は、コンテンツ種別を明示的に持つ参照です。
// Path はドメイン相対のパス（先頭は "/"）です。
type Reference struct {
	Path string      `json:"path"`
	Kind ContentKind `json:"kind"`
}

// ContentSummary は、一覧ページから抽出されたコンテンツの概要です。同一性は Reference で決まります。
type ContentSummary struct {
	Reference    Reference `json:"reference"`
	Title        string    `json:"title"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Tagline      string    `json:"tagline,omitempty"`
}

// ListingPage は、一覧ページ1枚分の解析結果です。
type ListingPage struct {
	Items   []ContentSummary `json:"items"`
	HasMore bool             `json:"has_more"`
}

// Status は、コンテンツの連載状態です。
type Status int

const (
	StatusCompleted Status = iota
	StatusOngoing
)

func (s Status) String() string {
	if s == StatusOngoing {
		return "ongoing"
	}
	return "completed"
}

// UpdatePolicy は、同期時に再取得が必要かどうかを表します。
type UpdatePolicy int

const (
	FetchOnce     UpdatePolicy = iota // 一度同期したら再取得しない
	AlwaysRefresh                     // 同期のたびに再取得する
)

func (p UpdatePolicy) String() string {
	if p == AlwaysRefresh {
		return "always_refresh"
	}
	return "fetch_once"
}

// ContentDetail は、詳細ページから得られる情報です。
type ContentDetail struct {
	Reference    Reference    `json:"reference"`
	Title        string       `json:"title"`
	Artist       string       `json:"artist,omitempty"`
	Genre        string       `json:"genre,omitempty"`
	Description  string       `json:"description,omitempty"`
	ThumbnailURL string       `json:"thumbnail_url,omitempty"`
	Status       Status       `json:"status"`
	UpdatePolicy UpdatePolicy `json:"update_policy"`
}

// ChapterRef は、チャプター（ギャラリー単位）への参照です。
type ChapterRef struct {
	Reference Reference `json:"reference"`
	Name      string    `json:"name"`
	Order     float64   `json:"order"`
}

// ImageRef は、チャプター内の1枚の画像です。Index は文書内の出現順です。
type ImageRef struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}
