package core

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"GoGalleryCatalog/internal/adapter"
	"GoGalleryCatalog/internal/model"
)

const snapshotDirName = ".sync"

// Snapshot は、前回同期時のコンテンツのメタデータです。画像そのものは保存しません。
type Snapshot struct {
	SiteID       string             `json:"site_id"`
	Reference    model.Reference    `json:"reference"`
	Title        string             `json:"title"`
	Status       model.Status       `json:"status"`
	UpdatePolicy model.UpdatePolicy `json:"update_policy"`
	Chapters     []model.ChapterRef `json:"chapters"`
	LastChecked  time.Time          `json:"last_checked"`
}

// SyncResult は、1回の同期の結果です。
type SyncResult struct {
	Reference     model.Reference      `json:"reference"`
	Skipped       bool                 `json:"skipped"`
	Detail        *model.ContentDetail `json:"detail,omitempty"`
	NewChapters   []model.ChapterRef   `json:"new_chapters,omitempty"`
	TotalChapters int                  `json:"total_chapters"`
}

// snapshotPath は、サイトと参照からスナップショットファイルのパスを決定します。
func snapshotPath(stateDir, siteID string, ref model.Reference) string {
	sum := sha1.Sum([]byte(siteID + "|" + ref.Kind.String() + "|" + ref.Path))
	return filepath.Join(stateDir, snapshotDirName, hex.EncodeToString(sum[:])+".json")
}

// LoadSnapshot は、既存のスナップショットを読み込みます。存在しない場合は nil, nil を返します。
func LoadSnapshot(stateDir, siteID string, ref model.Reference) (*Snapshot, error) {
	path := snapshotPath(stateDir, siteID, ref)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil // 初回同期
		}
		return nil, fmt.Errorf("スナップショットファイルの読み込みに失敗しました (path=%s): %w", path, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("スナップショットのパースに失敗しました (path=%s): %w", path, err)
	}
	return &snapshot, nil
}

// SaveSnapshot は、スナップショットを一時ファイル経由で保存します。
func SaveSnapshot(stateDir string, snapshot *Snapshot) error {
	path := snapshotPath(stateDir, snapshot.SiteID, snapshot.Reference)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("状態ディレクトリの作成に失敗しました (path=%s): %w", filepath.Dir(path), err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("スナップショットのシリアライズに失敗しました: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("スナップショットファイルの書き込みに失敗しました (path=%s): %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("スナップショットファイルの置き換えに失敗しました (path=%s): %w", path, err)
	}
	return nil
}

// NeedsSync は、スナップショットの更新ポリシーから再取得が必要かどうかを判定します。
func NeedsSync(snapshot *Snapshot) bool {
	if snapshot == nil {
		return true // 初回同期
	}
	return snapshot.UpdatePolicy == model.AlwaysRefresh
}

// newChapters は、前回のスナップショットに存在しなかったチャプターを返します。
func newChapters(previous *Snapshot, current []model.ChapterRef) []model.ChapterRef {
	if previous == nil {
		return current
	}
	known := make(map[model.Reference]bool, len(previous.Chapters))
	for _, ch := range previous.Chapters {
		known[ch.Reference] = true
	}
	var added []model.ChapterRef
	for _, ch := range current {
		if !known[ch.Reference] {
			added = append(added, ch)
		}
	}
	return added
}

// Sync は、コンテンツのメタデータを同期します。
// FetchOnce のコンテンツは一度同期すると再取得せず、AlwaysRefresh のコンテンツは毎回再取得して
// 新たに現れたチャプターを報告します。
func Sync(ctx context.Context, src adapter.CatalogSource, ref model.Reference, stateDir string, logger *log.Logger) (*SyncResult, error) {
	if logger == nil {
		logger = log.Default()
	}

	previous, err := LoadSnapshot(stateDir, src.ID(), ref)
	if err != nil {
		return nil, err
	}
	if !NeedsSync(previous) {
		logger.Printf("INFO: '%s' は同期済みのためスキップします (policy=%s)", previous.Title, previous.UpdatePolicy)
		return &SyncResult{Reference: ref, Skipped: true, TotalChapters: len(previous.Chapters)}, nil
	}

	detail, err := src.FetchDetail(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("詳細の取得に失敗しました (site=%s, ref=%s): %w", src.ID(), ref.Path, err)
	}
	// モデルのチャプターは種別が確定してから取得する
	chapters, err := src.FetchChapters(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("チャプターの取得に失敗しました (site=%s, ref=%s): %w", src.ID(), ref.Path, err)
	}

	added := newChapters(previous, chapters)
	if previous != nil && len(added) > 0 {
		logger.Printf("INFO: '%s' に新しいチャプターが %d 件見つかりました", detail.Title, len(added))
	}

	snapshot := &Snapshot{
		SiteID:       src.ID(),
		Reference:    ref,
		Title:        detail.Title,
		Status:       detail.Status,
		UpdatePolicy: detail.UpdatePolicy,
		Chapters:     chapters,
		LastChecked:  time.Now(),
	}
	if err := SaveSnapshot(stateDir, snapshot); err != nil {
		return nil, err
	}

	return &SyncResult{
		Reference:     ref,
		Detail:        &detail,
		NewChapters:   added,
		TotalChapters: len(chapters),
	}, nil
}
