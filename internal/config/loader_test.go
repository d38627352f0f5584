package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLoadingWithSiteTemplates(t *testing.T) {
	// 1. Arrange (準備)
	testConfigPath := filepath.Join("testdata", "test_config.json")
	data, err := os.ReadFile(testConfigPath)
	require.NoError(t, err, "テスト設定ファイル '%s' の読み込みに失敗しました", testConfigPath)

	// 2. Act (実行)
	cfg, err := ParseAndResolve(data)

	// 3. Assert (検証)
	require.NoError(t, err, "ParseAndResolveで予期せぬエラーが発生しました")
	require.Len(t, cfg.Sites, 3, "サイトの総数が期待値と異なります")

	// --- 'alpha' の検証 (テンプレートの継承) ---
	alpha := cfg.Sites[0]
	assert.Equal(t, "alpha", alpha.ID)
	assert.Equal(t, "https://alpha.example", alpha.BaseURL, "末尾のスラッシュは除去されるべきです")
	assert.Equal(t, "ul.gallery-a > li", alpha.Selectors.GalleryItem)
	assert.Equal(t, "href", alpha.Selectors.PageAttr)
	assert.True(t, alpha.Capabilities.ArchivePaging)
	assert.Equal(t, "/tags/", alpha.Capabilities.TagsPath, "デフォルト値が適用されるべきです")
	assert.Equal(t, "sort/latest/", alpha.Capabilities.ModelLatestSuffix)

	// --- 'beta' の検証 (テンプレートなし) ---
	beta := cfg.Sites[1]
	assert.Equal(t, "masonry", beta.Adapter, "アダプタ未指定時は masonry になるべきです")
	assert.Equal(t, "beta", beta.Name, "名前未指定時はIDが使われるべきです")
	assert.False(t, beta.Capabilities.ArchivePaging)

	// --- 'gamma' の検証 (上書き) ---
	gamma := cfg.Sites[2]
	assert.Equal(t, "src", gamma.Selectors.PageAttr)
	assert.Equal(t, "ul.list-gallery a", gamma.Selectors.PageItem, "上書きしないセレクタはテンプレートの値を保持するべきです")
	assert.False(t, gamma.Capabilities.ArchivePaging)
	assert.True(t, gamma.Capabilities.TagTrendingPaging)
	assert.Equal(t, "1", gamma.Headers["X-Extra"])
	assert.Equal(t, "https://template.example/", gamma.Headers["Referer"])

	// テンプレートのヘッダーが汚染されていないこと
	_, polluted := cfg.SiteTemplates["masonry"].Headers["X-Extra"]
	assert.False(t, polluted, "テンプレートのヘッダーが書き換えられてはいけません")

	assert.True(t, cfg.Preferences.Bool("alpha.use_mirror", false))
	assert.False(t, cfg.Preferences.Bool("unknown", false))
}

func TestLoadAndResolve_YAML(t *testing.T) {
	// Act
	cfg, err := LoadAndResolve(filepath.Join("testdata", "test_config.yaml"))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "yaml-agent", cfg.Network.UserAgent)
	assert.Equal(t, 250, cfg.Network.PerDomainIntervalMillis["alpha.example"])
	require.Len(t, cfg.Sites, 1)
	assert.Equal(t, "ul.gallery-a > li", cfg.Sites[0].Selectors.GalleryItem)
	assert.True(t, cfg.Sites[0].Capabilities.ArchivePaging)
}

func TestParseAndResolve_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"構文エラー", `{"config_version": "1.0",`},
		{"バージョン不一致", `{"config_version": "0.9"}`},
		{"未定義テンプレート", `{"config_version": "1.0", "sites": [{"use_template": "nope", "id": "a", "base_url": "https://a.example"}]}`},
		{"base_url不正", `{"config_version": "1.0", "sites": [{"id": "a", "base_url": "not a url"}]}`},
		{"ID重複", `{"config_version": "1.0", "sites": [{"id": "a", "base_url": "https://a.example"}, {"id": "A", "base_url": "https://b.example"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAndResolve([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err, "埋め込みのデフォルト設定が解析できるべきです")
	require.NotEmpty(t, cfg.Sites)

	site, ok := cfg.FindSite("EliteBabes")
	require.True(t, ok)
	assert.True(t, site.Capabilities.TagTrendingPaging)
	assert.NotEmpty(t, site.Selectors.PageItem)

	joymii, ok := cfg.FindSite("joymiihub")
	require.True(t, ok)
	assert.False(t, joymii.Capabilities.ArchivePaging)
}
