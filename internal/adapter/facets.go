package adapter

import (
	"context"
	"log"
	"sync"

	"GoGalleryCatalog/internal/model"
)

// maxFacetAttempts は、語彙ごとの取得試行回数の上限です。上限に達するとプロセス再起動まで再試行しません。
const maxFacetAttempts = 3

// VocabularyFetcher は、語彙ページを1回取得して解析する関数です。
type VocabularyFetcher func(ctx context.Context, kind model.FacetKind) ([]model.FacetOption, error)

// vocabulary は、1種類の語彙とその取得状態です。
type vocabulary struct {
	options   []model.FacetOption
	populated bool // 一度trueになったら二度とfalseに戻らない
	attempts  int
	inFlight  bool
}

// FacetCache は、タグ / モデルタグの語彙を遅延取得してキャッシュします。
// 取得はバックグラウンドで行われ、呼び出し元をブロックしません。
type FacetCache struct {
	fetch  VocabularyFetcher
	logger *log.Logger

	mu     sync.Mutex
	vocabs map[model.FacetKind]*vocabulary
	wg     sync.WaitGroup
}

// NewFacetCache は、空の語彙を持つFacetCacheを生成します。
func NewFacetCache(fetch VocabularyFetcher, logger *log.Logger) *FacetCache {
	if logger == nil {
		logger = log.Default()
	}
	return &FacetCache{
		fetch:  fetch,
		logger: logger,
		vocabs: map[model.FacetKind]*vocabulary{
			model.FacetTags:      {},
			model.FacetModelTags: {},
		},
	}
}

// Ensure は、現在キャッシュされている語彙のコピーを即座に返します（空の場合もあります）。
// 未取得・取得中でなく、試行回数が上限未満であれば、バックグラウンドで1回だけ取得を開始します。
func (c *FacetCache) Ensure(ctx context.Context, kind model.FacetKind) []model.FacetOption {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.vocab(kind)
	out := append([]model.FacetOption(nil), v.options...)
	if v.populated || v.inFlight || v.attempts >= maxFacetAttempts {
		return out
	}

	v.inFlight = true
	v.attempts++
	attempt := v.attempts
	c.wg.Add(1)
	go c.refresh(context.WithoutCancel(ctx), kind, attempt)
	return out
}

func (c *FacetCache) refresh(ctx context.Context, kind model.FacetKind, attempt int) {
	defer c.wg.Done()

	options, err := c.fetch(ctx, kind)

	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.vocab(kind)
	v.inFlight = false

	if err != nil {
		c.logger.Printf("WARNING: 語彙 '%s' の取得に失敗しました (試行 %d/%d): %v", kind, attempt, maxFacetAttempts, err)
		return
	}
	if len(options) == 0 {
		c.logger.Printf("WARNING: 語彙 '%s' が空でした (試行 %d/%d)", kind, attempt, maxFacetAttempts)
		return
	}
	v.options = options
	v.populated = true
	c.logger.Printf("DEBUG: 語彙 '%s' を %d 件取得しました", kind, len(options))
}

// vocab はロックを保持した状態で呼び出す必要があります。
func (c *FacetCache) vocab(kind model.FacetKind) *vocabulary {
	v, ok := c.vocabs[kind]
	if !ok {
		v = &vocabulary{}
		c.vocabs[kind] = v
	}
	return v
}

// Options は、取得を開始せずに現在の語彙のコピーを返します。
func (c *FacetCache) Options(kind model.FacetKind) []model.FacetOption {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.FacetOption(nil), c.vocab(kind).options...)
}

// Attempts は、これまでに実際に開始された取得の回数です。
func (c *FacetCache) Attempts(kind model.FacetKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vocab(kind).attempts
}

// Populated は、語彙が一度でも取得に成功したかどうかを返します。
func (c *FacetCache) Populated(kind model.FacetKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vocab(kind).populated
}

// Wait は、実行中のバックグラウンド取得がすべて終わるまで待機します。
func (c *FacetCache) Wait() {
	c.wg.Wait()
}
