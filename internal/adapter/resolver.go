package adapter

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"GoGalleryCatalog/internal/config"
	"GoGalleryCatalog/internal/model"
)

// チャンネル（サイトのトップレベルの一覧名前空間）
const (
	channelRoot     = "root"
	channelSearch   = "search"
	channelTag      = "tag"
	channelModelTag = "model-tag"
	channelUpdates  = "updates"
	channelModels   = "models"
	channelArchive  = "archive"
)

// popularFilterPath は、2ページ目以降の人気順をまとめて受けるフィルタ付きエンドポイントです。
// 人気順にはネイティブのページ番号がないため、3ページ目以降は mpage/1 から始まります。
const popularFilterPath = "/updates/sort/filter/ord/popular/content/0/quality/0/tags/0/mpage/%d/"

// RequestSpec は、1回の一覧リクエストを表します。
type RequestSpec struct {
	Method  string
	Path    string
	URL     string
	Channel string
	// Kind は、このURLが返す一覧のコンテンツ種別です。
	Kind model.ContentKind
}

// Resolver は、ページ番号と検索条件から唯一のリクエストURLを組み立てます。
// 副作用はなく、同じ入力には常に同じ RequestSpec を返します。
type Resolver struct {
	baseURL string
	caps    config.Capabilities
	// paged は、チャンネルごとに sort/{sort}/mpage/N/ 形式のURLが存在する並び順です。
	paged map[string]map[model.SortMode]bool
}

// NewResolver は、サイトの機能フラグからチャンネルごとのページング表を構築します。
func NewResolver(baseURL string, caps config.Capabilities) *Resolver {
	allSorts := func() map[model.SortMode]bool {
		m := make(map[model.SortMode]bool)
		for _, s := range model.SortModes() {
			m[s] = true
		}
		return m
	}

	updates := allSorts()
	updates[model.SortPopular] = caps.NativePopularPaging

	// タグ系の一覧は新着順が既定の並びで、page/N/ でのみページングできます。
	tag := allSorts()
	tag[model.SortNewest] = false
	tag[model.SortTrending] = caps.TagTrendingPaging

	modelTag := allSorts()
	modelTag[model.SortNewest] = false

	return &Resolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		caps:    caps,
		paged: map[string]map[model.SortMode]bool{
			channelUpdates:  updates,
			channelModels:   allSorts(),
			channelTag:      tag,
			channelModelTag: modelTag,
		},
	}
}

// Resolve は検索条件を優先順位に従って評価し、RequestSpec を返します。
// 1未満のページ番号は1として扱います。
func (r *Resolver) Resolve(page int, facets model.SearchFacets) RequestSpec {
	if page < 1 {
		page = 1
	}

	if query := strings.TrimSpace(facets.Query); query != "" {
		path := fmt.Sprintf("/search/%s/%s/mpage/%d/", kindSegment(facets.Kind), escapeSegment(query), page)
		return r.spec(channelSearch, path, facets.Kind)
	}

	// タグが選択されている場合、モデルタグは無視されます。
	if tags := normalizeValues(facets.Tags); len(tags) > 0 {
		return r.facetListing(channelTag, strings.Join(tags, "+"), facets.Sort, page, model.KindGallery)
	}

	// モデルタグは結合できないため、ちょうど1つ選択されている場合のみ有効です。
	if modelTags := normalizeValues(facets.ModelTags); len(modelTags) == 1 {
		return r.facetListing(channelModelTag, modelTags[0], facets.Sort, page, model.KindModel)
	}

	return r.browse(page, facets)
}

// browse は、絞り込みのない一覧を並び順とページ番号で振り分けます。
func (r *Resolver) browse(page int, facets model.SearchFacets) RequestSpec {
	switch {
	case facets.Kind == model.KindModel:
		return r.sortedChannel(channelModels, facets.Sort, page, model.KindModel)
	case facets.Sort == model.SortTrending:
		return r.sortedChannel(channelUpdates, model.SortTrending, page, model.KindGallery)
	case facets.Sort == model.SortPopular:
		return r.popular(page)
	case facets.Sort == model.SortNewest:
		if r.caps.ArchivePaging {
			return r.spec(channelArchive, fmt.Sprintf("/archive/page/%d/", page), model.KindGallery)
		}
		return r.sortedChannel(channelUpdates, model.SortNewest, page, model.KindGallery)
	default:
		return r.sortedChannel(channelUpdates, facets.Sort, page, model.KindGallery)
	}
}

func (r *Resolver) popular(page int) RequestSpec {
	if r.caps.NativePopularPaging {
		return r.sortedChannel(channelUpdates, model.SortPopular, page, model.KindGallery)
	}
	switch page {
	case 1:
		return r.spec(channelRoot, "/", model.KindGallery)
	case 2:
		return r.spec(channelUpdates, "/updates/sort/popular/", model.KindGallery)
	default:
		return r.spec(channelUpdates, fmt.Sprintf(popularFilterPath, page-2), model.KindGallery)
	}
}

// sortedChannel は /{channel}/sort/{sort}/mpage/N/ を組み立てます。
// その並び順にページ付きURLがない場合は、最も近い page/N/ 形式に置き換えます。
func (r *Resolver) sortedChannel(channel string, sortMode model.SortMode, page int, kind model.ContentKind) RequestSpec {
	if r.isPaged(channel, sortMode) {
		return r.spec(channel, fmt.Sprintf("/%s/sort/%s/mpage/%d/", channel, sortMode.PathValue(), page), kind)
	}
	return r.spec(channel, fmt.Sprintf("/%s/page/%d/", channel, page), kind)
}

func (r *Resolver) facetListing(channel, value string, sortMode model.SortMode, page int, kind model.ContentKind) RequestSpec {
	base := fmt.Sprintf("/%s/%s/", channel, value)
	if r.isPaged(channel, sortMode) {
		return r.spec(channel, base+fmt.Sprintf("sort/%s/mpage/%d/", sortMode.PathValue(), page), kind)
	}
	return r.spec(channel, base+fmt.Sprintf("page/%d/", page), kind)
}

func (r *Resolver) isPaged(channel string, sortMode model.SortMode) bool {
	return r.paged[channel][sortMode]
}

func (r *Resolver) spec(channel, path string, kind model.ContentKind) RequestSpec {
	return RequestSpec{
		Method:  "GET",
		Path:    path,
		URL:     r.baseURL + path,
		Channel: channel,
		Kind:    kind,
	}
}

func kindSegment(kind model.ContentKind) string {
	if kind == model.KindModel {
		return "models"
	}
	return "galleries"
}

// normalizeValues は、選択値を重複排除・ソートし、パスセグメントとしてエスケープします。
func normalizeValues(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, escapeSegment(v))
	}
	sort.Strings(out)
	return out
}

// escapeSegment は、値をパスセグメントとしてエスケープします。
// "+" はタグの区切りに使われるため、値の中の "+" は %2B にします。
func escapeSegment(v string) string {
	return strings.ReplaceAll(url.PathEscape(v), "+", "%2B")
}
