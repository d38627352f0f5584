package adapter

import (
	"strings"
	"testing"

	"GoGalleryCatalog/internal/config"
	"GoGalleryCatalog/internal/model"

	"github.com/stretchr/testify/assert"
)

func defaultCaps() config.Capabilities {
	return config.Capabilities{ArchivePaging: true}
}

func TestResolver_Resolve(t *testing.T) {
	testCases := []struct {
		name    string
		caps    config.Capabilities
		page    int
		facets  model.SearchFacets
		path    string
		channel string
		kind    model.ContentKind
	}{
		{"人気順1ページ目はサイトルート", defaultCaps(), 1, model.SearchFacets{Sort: model.SortPopular}, "/", channelRoot, model.KindGallery},
		{"人気順2ページ目", defaultCaps(), 2, model.SearchFacets{Sort: model.SortPopular}, "/updates/sort/popular/", channelUpdates, model.KindGallery},
		{"人気順5ページ目はフィルタURLのmpage/3", defaultCaps(), 5, model.SearchFacets{Sort: model.SortPopular},
			"/updates/sort/filter/ord/popular/content/0/quality/0/tags/0/mpage/3/", channelUpdates, model.KindGallery},
		{"人気順3ページ目はmpage/1から", defaultCaps(), 3, model.SearchFacets{Sort: model.SortPopular},
			"/updates/sort/filter/ord/popular/content/0/quality/0/tags/0/mpage/1/", channelUpdates, model.KindGallery},
		{"ネイティブの人気順ページング", config.Capabilities{ArchivePaging: true, NativePopularPaging: true}, 5,
			model.SearchFacets{Sort: model.SortPopular}, "/updates/sort/popular/mpage/5/", channelUpdates, model.KindGallery},
		{"新着順はアーカイブ", defaultCaps(), 3, model.SearchFacets{Sort: model.SortNewest}, "/archive/page/3/", channelArchive, model.KindGallery},
		{"アーカイブのないサイトの新着順", config.Capabilities{}, 3, model.SearchFacets{Sort: model.SortNewest},
			"/updates/sort/newest/mpage/3/", channelUpdates, model.KindGallery},
		{"トレンド順", defaultCaps(), 2, model.SearchFacets{Sort: model.SortTrending}, "/updates/sort/trending/mpage/2/", channelUpdates, model.KindGallery},
		{"おすすめ順", defaultCaps(), 2, model.SearchFacets{Sort: model.SortRecommended}, "/updates/sort/recommended/mpage/2/", channelUpdates, model.KindGallery},
		{"モデル一覧", defaultCaps(), 4, model.SearchFacets{Kind: model.KindModel, Sort: model.SortBest}, "/models/sort/best/mpage/4/", channelModels, model.KindModel},
		{"モデル一覧の人気順", defaultCaps(), 1, model.SearchFacets{Kind: model.KindModel, Sort: model.SortPopular}, "/models/sort/popular/mpage/1/", channelModels, model.KindModel},
		{"ギャラリー検索", defaultCaps(), 1, model.SearchFacets{Query: " anna s "}, "/search/galleries/anna%20s/mpage/1/", channelSearch, model.KindGallery},
		{"モデル検索", defaultCaps(), 2, model.SearchFacets{Query: "anna", Kind: model.KindModel}, "/search/models/anna/mpage/2/", channelSearch, model.KindModel},
		{"検索語はタグより優先", defaultCaps(), 1, model.SearchFacets{Query: "anna", Tags: []string{"blonde"}}, "/search/galleries/anna/mpage/1/", channelSearch, model.KindGallery},
		{"複数タグは重複排除・ソートして結合", defaultCaps(), 2, model.SearchFacets{Tags: []string{"outdoor", "blonde", "outdoor"}},
			"/tag/blonde+outdoor/page/2/", channelTag, model.KindGallery},
		{"タグ値の+は区切りと区別する", defaultCaps(), 1, model.SearchFacets{Tags: []string{"a+b"}},
			"/tag/a%2Bb/page/1/", channelTag, model.KindGallery},
		{"2つのタグはそのまま+で結合", defaultCaps(), 1, model.SearchFacets{Tags: []string{"b", "a"}},
			"/tag/a+b/page/1/", channelTag, model.KindGallery},
		{"タグの人気順", defaultCaps(), 3, model.SearchFacets{Tags: []string{"blonde"}, Sort: model.SortPopular},
			"/tag/blonde/sort/popular/mpage/3/", channelTag, model.KindGallery},
		{"タグのトレンド順は機能フラグなしではpage/N", defaultCaps(), 2, model.SearchFacets{Tags: []string{"blonde"}, Sort: model.SortTrending},
			"/tag/blonde/page/2/", channelTag, model.KindGallery},
		{"タグのトレンド順（機能フラグあり）", config.Capabilities{ArchivePaging: true, TagTrendingPaging: true}, 2,
			model.SearchFacets{Tags: []string{"blonde"}, Sort: model.SortTrending}, "/tag/blonde/sort/trending/mpage/2/", channelTag, model.KindGallery},
		{"モデルタグ1つ", defaultCaps(), 1, model.SearchFacets{ModelTags: []string{"petite"}}, "/model-tag/petite/page/1/", channelModelTag, model.KindModel},
		{"モデルタグのトレンド順", defaultCaps(), 1, model.SearchFacets{ModelTags: []string{"petite"}, Sort: model.SortTrending},
			"/model-tag/petite/sort/trending/mpage/1/", channelModelTag, model.KindModel},
		{"タグ選択中はモデルタグを無視", defaultCaps(), 1, model.SearchFacets{Tags: []string{"blonde"}, ModelTags: []string{"petite"}},
			"/tag/blonde/page/1/", channelTag, model.KindGallery},
		{"モデルタグ2つ以上は絞り込みなし", defaultCaps(), 1, model.SearchFacets{ModelTags: []string{"petite", "tall"}},
			"/archive/page/1/", channelArchive, model.KindGallery},
		{"1未満のページは1に丸める", defaultCaps(), 0, model.SearchFacets{Sort: model.SortNewest}, "/archive/page/1/", channelArchive, model.KindGallery},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			r := NewResolver(testBaseURL+"/", tc.caps)

			// Act
			spec := r.Resolve(tc.page, tc.facets)

			// Assert
			assert.Equal(t, "GET", spec.Method)
			assert.Equal(t, tc.path, spec.Path)
			assert.Equal(t, testBaseURL+tc.path, spec.URL)
			assert.Equal(t, tc.channel, spec.Channel)
			assert.Equal(t, tc.kind, spec.Kind)
		})
	}
}

func TestResolver_DeterministicAndTotal(t *testing.T) {
	capsList := []config.Capabilities{
		{},
		defaultCaps(),
		{ArchivePaging: true, NativePopularPaging: true, TagTrendingPaging: true},
	}
	facetList := []model.SearchFacets{
		{},
		{Kind: model.KindModel},
		{Tags: []string{"b", "a"}},
		{ModelTags: []string{"petite"}},
		{ModelTags: []string{"petite", "tall"}},
		{Query: "anna"},
	}

	for _, caps := range capsList {
		r := NewResolver(testBaseURL, caps)
		for _, base := range facetList {
			for _, sortMode := range model.SortModes() {
				for page := -1; page <= 8; page++ {
					facets := base
					facets.Sort = sortMode

					first := r.Resolve(page, facets)
					second := r.Resolve(page, facets)

					assert.Equal(t, first, second, "同じ入力に対して同じRequestSpecを返すべきです")
					assert.True(t, strings.HasPrefix(first.Path, "/"), "パスは / で始まるべきです: %s", first.Path)
					assert.True(t, strings.HasSuffix(first.Path, "/"), "パスは / で終わるべきです: %s", first.Path)
					assert.NotContains(t, first.Path, "//")
					assert.NotEmpty(t, first.Channel)
				}
			}
		}
	}
}
