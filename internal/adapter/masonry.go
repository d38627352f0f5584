package adapter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path"
	"strings"

	"GoGalleryCatalog/internal/config"
	"GoGalleryCatalog/internal/model"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// noPreferences は、設定コラボレータが注入されなかった場合に常に既定値を返します。
type noPreferences struct{}

func (noPreferences) Bool(_ string, def bool) bool { return def }

// MasonryAdapter は、Masonry系レイアウトのサイト群に共通するカタログ操作を実装します。
// サイトごとの差異は config.Site のセレクタと機能フラグのみで表現されます。
type MasonryAdapter struct {
	site    config.Site
	fetcher Fetcher
	prefs   Preferences
	logger  *log.Logger

	primary *Resolver
	mirror  *Resolver // mirror_base_url が未設定の場合は nil

	listing *ListingParser
	pages   *PageExtractor
	facets  *FacetCache
}

// NewMasonryAdapter は、サイト設定と依存関係からMasonryAdapterを生成します。
func NewMasonryAdapter(site config.Site, deps Dependencies) (*MasonryAdapter, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("Fetcherが指定されていません")
	}
	if site.BaseURL == "" {
		return nil, fmt.Errorf("サイト '%s' の base_url が空です", site.ID)
	}

	listing, err := NewListingParser(site.Name, site.Selectors)
	if err != nil {
		return nil, fmt.Errorf("サイト '%s' の一覧パーサー初期化に失敗しました: %w", site.ID, err)
	}

	a := &MasonryAdapter{
		site:    site,
		fetcher: deps.Fetcher,
		prefs:   deps.Preferences,
		logger:  deps.Logger,
		primary: NewResolver(site.BaseURL, site.Capabilities),
		listing: listing,
		pages:   NewPageExtractor(site.Selectors.PageItem, site.Selectors.PageAttr),
	}
	if a.prefs == nil {
		a.prefs = noPreferences{}
	}
	if a.logger == nil {
		a.logger = log.New(os.Stdout, "["+site.ID+"] ", log.LstdFlags)
	}
	if site.MirrorBaseURL != "" {
		a.mirror = NewResolver(site.MirrorBaseURL, site.Capabilities)
	}
	a.facets = NewFacetCache(a.fetchVocabulary, a.logger)
	return a, nil
}

// ID はサイトIDを返します。
func (a *MasonryAdapter) ID() string { return a.site.ID }

// Name は表示用のサイト名を返します。
func (a *MasonryAdapter) Name() string { return a.site.Name }

// Facets は、このサイトの語彙キャッシュを返します。
func (a *MasonryAdapter) Facets() *FacetCache { return a.facets }

// useMirror は、地域別ミラーを使う設定かどうかを返します。
func (a *MasonryAdapter) useMirror() bool {
	return a.mirror != nil && a.prefs.Bool(a.site.ID+".use_mirror", false)
}

func (a *MasonryAdapter) resolver() *Resolver {
	if a.useMirror() {
		return a.mirror
	}
	return a.primary
}

func (a *MasonryAdapter) baseURL() string {
	return a.resolver().baseURL
}

// ListPopular は人気順の一覧を返します。
func (a *MasonryAdapter) ListPopular(ctx context.Context, page int) (model.ListingPage, error) {
	return a.list(ctx, page, model.SearchFacets{Kind: model.KindGallery, Sort: model.SortPopular})
}

// ListLatest は新着順の一覧を返します。
func (a *MasonryAdapter) ListLatest(ctx context.Context, page int) (model.ListingPage, error) {
	return a.list(ctx, page, model.SearchFacets{Kind: model.KindGallery, Sort: model.SortNewest})
}

// Search は、検索語と絞り込み条件に応じた一覧を返します。
func (a *MasonryAdapter) Search(ctx context.Context, page int, facets model.SearchFacets) (model.ListingPage, error) {
	return a.list(ctx, page, facets)
}

func (a *MasonryAdapter) list(ctx context.Context, page int, facets model.SearchFacets) (model.ListingPage, error) {
	// 語彙の先読みは一覧の結果を待たせない
	a.prefetchFacets(ctx)

	req := a.resolver().Resolve(page, facets)
	a.logger.Printf("DEBUG: 一覧を取得します (channel=%s, kind=%s): %s", req.Channel, req.Kind, req.URL)

	doc, finalURL, err := a.fetchDocument(ctx, req.URL)
	if err != nil {
		return model.ListingPage{}, err
	}
	return a.listing.ParseListing(doc, finalURL, req.Kind)
}

func (a *MasonryAdapter) prefetchFacets(ctx context.Context) {
	a.facets.Ensure(ctx, model.FacetTags)
	a.facets.Ensure(ctx, model.FacetModelTags)
}

// FetchPages は、ギャラリー（終端チャプター）の画像一覧を返します。
func (a *MasonryAdapter) FetchPages(ctx context.Context, chapter model.ChapterRef) ([]model.ImageRef, error) {
	if chapter.Reference.Kind == model.KindModel {
		return nil, fmt.Errorf("モデル参照 '%s' から画像は抽出できません。先にチャプターを解決してください: %w", chapter.Reference.Path, ErrUnsupported)
	}
	doc, finalURL, err := a.fetchDocument(ctx, a.absoluteURL(chapter.Reference.Path))
	if err != nil {
		return nil, err
	}
	return a.pages.ExtractPages(doc, finalURL)
}

// FilterList は、現在の語彙キャッシュの状態からフィルタ一覧を組み立てます。
// 未取得の語彙はここで再取得が試みられ、次回の呼び出しで反映されます。
func (a *MasonryAdapter) FilterList(ctx context.Context, current model.SearchFacets) []model.FilterGroup {
	tags := a.facets.Ensure(ctx, model.FacetTags)
	modelTags := a.facets.Ensure(ctx, model.FacetModelTags)

	kindGroup := model.FilterGroup{
		Key:    "kind",
		Header: "検索対象",
		Options: []model.FacetOption{
			{Label: "Galleries", Value: model.KindGallery.String()},
			{Label: "Models", Value: model.KindModel.String()},
		},
		Selected: []string{current.Kind.String()},
	}

	sortGroup := model.FilterGroup{
		Key:      "sort",
		Header:   "並び順",
		Selected: []string{current.Sort.PathValue()},
	}
	for _, s := range model.SortModes() {
		sortGroup.Options = append(sortGroup.Options, model.FacetOption{Label: s.Label(), Value: s.PathValue()})
	}

	tagGroup := model.FilterGroup{
		Key:      "tags",
		Header:   "タグ",
		Multi:    true,
		Options:  append([]model.FacetOption{}, tags...),
		Selected: current.Tags,
	}
	if len(tags) == 0 {
		tagGroup.Note = "タグ一覧を取得中です。しばらくしてからフィルタを開き直してください"
	}

	modelTagGroup := model.FilterGroup{
		Key:      "model_tags",
		Header:   "モデルタグ",
		Options:  append([]model.FacetOption{}, modelTags...),
		Selected: current.ModelTags,
	}
	switch {
	case len(current.Tags) > 0:
		modelTagGroup.Note = "タグが選択されている間、モデルタグは無視されます"
	case len(modelTags) == 0:
		modelTagGroup.Note = "モデルタグ一覧を取得中です。しばらくしてからフィルタを開き直してください"
	}

	return []model.FilterGroup{kindGroup, sortGroup, tagGroup, modelTagGroup}
}

// fetchVocabulary は、語彙ページを1回取得し、ラベルと値の組を抽出します。
// エラーは FacetCache によって吸収され、試行回数に数えられます。
func (a *MasonryAdapter) fetchVocabulary(ctx context.Context, kind model.FacetKind) ([]model.FacetOption, error) {
	vocabPath, selector := a.site.Capabilities.TagsPath, a.site.Selectors.TagItem
	if kind == model.FacetModelTags {
		vocabPath, selector = a.site.Capabilities.ModelTagsPath, a.site.Selectors.ModelTagItem
	}
	if vocabPath == "" || selector == "" {
		return nil, fmt.Errorf("語彙 '%s' のパスまたはセレクタが設定されていません: %w", kind, ErrUnsupported)
	}

	pageURL := a.absoluteURL(vocabPath)
	doc, _, err := a.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	caser := cases.Title(language.English)
	seen := make(map[string]bool)
	var options []model.FacetOption
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		value := lastPathSegment(href)
		if value == "" || seen[value] {
			return
		}
		seen[value] = true

		label := strings.Join(strings.Fields(s.Text()), " ")
		if label == "" {
			label = caser.String(strings.ReplaceAll(value, "-", " "))
		}
		options = append(options, model.FacetOption{Label: label, Value: value})
	})

	if len(options) == 0 {
		return nil, &ParseError{Op: "語彙", URL: pageURL, Selector: selector}
	}
	return options, nil
}

// fetchDocument は、サイト固有ヘッダーとRefererを付けて文書を取得し、解析します。
// 返されるURLはリダイレクト後の最終URLです。
func (a *MasonryAdapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, string, error) {
	headers := make(map[string]string, len(a.site.Headers)+1)
	for k, v := range a.site.Headers {
		headers[k] = v
	}
	if _, ok := headers["Referer"]; !ok {
		headers["Referer"] = a.baseURL() + "/"
	}

	resp, err := a.fetcher.Fetch(ctx, pageURL, headers)
	if err != nil {
		return nil, "", fmt.Errorf("文書の取得に失敗しました (URL: %s): %w", pageURL, err)
	}
	doc, err := NewDocumentFromBytes(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("HTMLの解析に失敗しました (URL: %s): %w", pageURL, err)
	}

	finalURL := resp.FinalURL
	if finalURL == "" {
		finalURL = pageURL
	}
	return doc, finalURL, nil
}

// absoluteURL は、ドメイン相対パスを現在のベースURLで絶対URLにします。
func (a *MasonryAdapter) absoluteURL(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return a.baseURL() + p
}

// lastPathSegment は、URLパスの最後の空でないセグメントを返します。
func lastPathSegment(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "." || seg == "/" {
		return ""
	}
	return seg
}
