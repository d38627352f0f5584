package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.json
var defaultsJSON []byte

// サイト設定のデフォルト値
const (
	defaultAdapter           = "masonry"
	defaultTagsPath          = "/tags/"
	defaultModelTagsPath     = "/model-tags/"
	defaultModelLatestSuffix = "sort/latest/"
)

// sitePatch は、サイト設定をデコードするための中間ヘルパー構造体です。
// nil でないフィールドだけがテンプレートの値を上書きします。
type sitePatch struct {
	ID            *string            `json:"id,omitempty"`
	Name          *string            `json:"name,omitempty"`
	Adapter       *string            `json:"adapter,omitempty"`
	UseTemplate   string             `json:"use_template,omitempty"`
	BaseURL       *string            `json:"base_url,omitempty"`
	MirrorBaseURL *string            `json:"mirror_base_url,omitempty"`
	Lang          *string            `json:"lang,omitempty"`
	Headers       *map[string]string `json:"headers,omitempty"`
	Selectors     *Selectors         `json:"selectors,omitempty"`
	Capabilities  *capabilitiesPatch `json:"capabilities,omitempty"`
}

// capabilitiesPatch は Capabilities の部分上書き用です。
type capabilitiesPatch struct {
	ArchivePaging       *bool   `json:"archive_paging,omitempty"`
	NativePopularPaging *bool   `json:"native_popular_paging,omitempty"`
	TagTrendingPaging   *bool   `json:"tag_trending_paging,omitempty"`
	TagsPath            *string `json:"tags_path,omitempty"`
	ModelTagsPath       *string `json:"model_tags_path,omitempty"`
	ModelLatestSuffix   *string `json:"model_latest_suffix,omitempty"`
}

// rawConfig は、設定ファイルをデコードするための中間構造体です。
type rawConfig struct {
	ConfigVersion      string          `json:"config_version"`
	Network            NetworkSettings `json:"network"`
	MaxConcurrentPages int             `json:"max_concurrent_pages"`
	StateDirectory     string          `json:"state_directory"`
	APIListenAddress   string          `json:"api_listen_address"`
	EnableLogFile      bool            `json:"enable_log_file"`
	LogFilePath        string          `json:"log_file_path"`
	Preferences        Preferences     `json:"preferences"`
	SiteTemplates      map[string]Site `json:"site_templates"`
	Sites              []sitePatch     `json:"sites"`
}

// Default は、埋め込みのデフォルト設定（Masonry系サイトの組み込みプロファイル）を返します。
func Default() (*Config, error) {
	return ParseAndResolve(defaultsJSON)
}

// LoadAndResolve は、指定されたパスから設定ファイルを読み込み、解析と解決を行います。
// 拡張子が .yaml / .yml の場合は YAML として読み込みます。
func LoadAndResolve(path string) (*Config, error) {
	absPath, _ := filepath.Abs(path)
	cwd, _ := os.Getwd()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイル '%s' の読み込みに失敗しました (Abs: '%s', Cwd: '%s'): %w", path, absPath, cwd, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("YAML設定ファイル '%s' の変換に失敗しました: %w", path, err)
		}
	}
	return ParseAndResolve(data)
}

// yamlToJSON は、YAML文書を同じ構造のJSONに変換します。
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// ParseAndResolve は、設定データのバイトスライスを解析し、テンプレートを解決して最終的な設定を返します。
// この関数はテストのために分離されています。
func ParseAndResolve(data []byte) (*Config, error) {
	var rawCfg rawConfig
	if err := json.Unmarshal(data, &rawCfg); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError

		if errors.As(err, &syntaxErr) {
			line, col := computeLineAndColumn(data, syntaxErr.Offset)
			return nil, fmt.Errorf("設定ファイルのJSON構文エラー (行 %d, 列 %d): %w", line, col, err)
		}
		if errors.As(err, &typeErr) {
			line, col := computeLineAndColumn(data, typeErr.Offset)
			return nil, fmt.Errorf("設定ファイルの型エラー (行 %d, 列 %d, フィールド '%s'): 期待値 %v, 実際 %v - %w",
				line, col, typeErr.Field, typeErr.Type, typeErr.Value, err)
		}
		return nil, fmt.Errorf("設定ファイルの解析に失敗しました: %w", err)
	}

	const compatibleVersion = "1.0"
	if rawCfg.ConfigVersion != compatibleVersion {
		return nil, fmt.Errorf("サポートされていない設定バージョン '%s' です。'%s' が必要です。", rawCfg.ConfigVersion, compatibleVersion)
	}

	resolvedConfig := &Config{
		ConfigVersion:      rawCfg.ConfigVersion,
		Network:            rawCfg.Network,
		MaxConcurrentPages: rawCfg.MaxConcurrentPages,
		StateDirectory:     rawCfg.StateDirectory,
		APIListenAddress:   rawCfg.APIListenAddress,
		EnableLogFile:      rawCfg.EnableLogFile,
		LogFilePath:        rawCfg.LogFilePath,
		Preferences:        rawCfg.Preferences,
		SiteTemplates:      rawCfg.SiteTemplates,
		Sites:              make([]Site, 0, len(rawCfg.Sites)),
	}
	if resolvedConfig.Preferences == nil {
		resolvedConfig.Preferences = Preferences{}
	}

	seen := make(map[string]bool)
	for _, patch := range rawCfg.Sites {
		var resolvedSite Site
		if patch.UseTemplate != "" {
			template, ok := rawCfg.SiteTemplates[patch.UseTemplate]
			if !ok {
				siteID := "unknown"
				if patch.ID != nil {
					siteID = *patch.ID
				}
				return nil, fmt.Errorf("サイト '%s' が未定義のテンプレート '%s' を使用しています", siteID, patch.UseTemplate)
			}
			resolvedSite = cloneSite(template)
		}
		applyPatch(&resolvedSite, &patch)
		applySiteDefaults(&resolvedSite)

		if err := validateSite(resolvedSite); err != nil {
			return nil, err
		}
		key := strings.ToLower(resolvedSite.ID)
		if seen[key] {
			return nil, fmt.Errorf("サイトID '%s' が重複しています", resolvedSite.ID)
		}
		seen[key] = true
		resolvedConfig.Sites = append(resolvedConfig.Sites, resolvedSite)
	}

	return resolvedConfig, nil
}

// cloneSite は、テンプレートのマップを共有しないようにコピーします。
func cloneSite(s Site) Site {
	if s.Headers != nil {
		headers := make(map[string]string, len(s.Headers))
		for k, v := range s.Headers {
			headers[k] = v
		}
		s.Headers = headers
	}
	return s
}

// applyPatch は、patchの非nilフィールドをtargetに上書きします。
func applyPatch(target *Site, patch *sitePatch) {
	target.UseTemplate = patch.UseTemplate
	if patch.ID != nil {
		target.ID = *patch.ID
	}
	if patch.Name != nil {
		target.Name = *patch.Name
	}
	if patch.Adapter != nil {
		target.Adapter = *patch.Adapter
	}
	if patch.BaseURL != nil {
		target.BaseURL = *patch.BaseURL
	}
	if patch.MirrorBaseURL != nil {
		target.MirrorBaseURL = *patch.MirrorBaseURL
	}
	if patch.Lang != nil {
		target.Lang = *patch.Lang
	}
	if patch.Headers != nil {
		if target.Headers == nil {
			target.Headers = make(map[string]string, len(*patch.Headers))
		}
		for k, v := range *patch.Headers {
			target.Headers[k] = v
		}
	}
	if patch.Selectors != nil {
		mergeSelectors(&target.Selectors, *patch.Selectors)
	}
	if patch.Capabilities != nil {
		applyCapabilities(&target.Capabilities, patch.Capabilities)
	}
}

// mergeSelectors は、空でないセレクタだけを上書きします。
func mergeSelectors(target *Selectors, patch Selectors) {
	set := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	set(&target.ListContainer, patch.ListContainer)
	set(&target.GalleryItem, patch.GalleryItem)
	set(&target.ModelItem, patch.ModelItem)
	set(&target.ItemLabel, patch.ItemLabel)
	set(&target.NextPage, patch.NextPage)
	set(&target.VideoHrefPattern, patch.VideoHrefPattern)
	set(&target.DetailTitle, patch.DetailTitle)
	set(&target.DetailArtist, patch.DetailArtist)
	set(&target.DetailGenre, patch.DetailGenre)
	set(&target.DetailDescription, patch.DetailDescription)
	set(&target.DetailThumbnail, patch.DetailThumbnail)
	set(&target.ModelName, patch.ModelName)
	set(&target.ModelBio, patch.ModelBio)
	set(&target.ModelThumbnail, patch.ModelThumbnail)
	set(&target.ModelGalleryItem, patch.ModelGalleryItem)
	set(&target.ChapterCaption, patch.ChapterCaption)
	set(&target.PageItem, patch.PageItem)
	set(&target.PageAttr, patch.PageAttr)
	set(&target.TagItem, patch.TagItem)
	set(&target.ModelTagItem, patch.ModelTagItem)
}

func applyCapabilities(target *Capabilities, patch *capabilitiesPatch) {
	if patch.ArchivePaging != nil {
		target.ArchivePaging = *patch.ArchivePaging
	}
	if patch.NativePopularPaging != nil {
		target.NativePopularPaging = *patch.NativePopularPaging
	}
	if patch.TagTrendingPaging != nil {
		target.TagTrendingPaging = *patch.TagTrendingPaging
	}
	if patch.TagsPath != nil {
		target.TagsPath = *patch.TagsPath
	}
	if patch.ModelTagsPath != nil {
		target.ModelTagsPath = *patch.ModelTagsPath
	}
	if patch.ModelLatestSuffix != nil {
		target.ModelLatestSuffix = *patch.ModelLatestSuffix
	}
}

func applySiteDefaults(s *Site) {
	if s.Adapter == "" {
		s.Adapter = defaultAdapter
	}
	if s.Name == "" {
		s.Name = s.ID
	}
	if s.Capabilities.TagsPath == "" {
		s.Capabilities.TagsPath = defaultTagsPath
	}
	if s.Capabilities.ModelTagsPath == "" {
		s.Capabilities.ModelTagsPath = defaultModelTagsPath
	}
	if s.Capabilities.ModelLatestSuffix == "" {
		s.Capabilities.ModelLatestSuffix = defaultModelLatestSuffix
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	s.MirrorBaseURL = strings.TrimRight(s.MirrorBaseURL, "/")
}

func validateSite(s Site) error {
	if s.ID == "" {
		return fmt.Errorf("サイトIDが設定されていません (name=%s)", s.Name)
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("サイト '%s' のbase_urlが不正です: '%s'", s.ID, s.BaseURL)
	}
	return nil
}

// computeLineAndColumn は、バイトオフセットから行番号と列番号（1始まり）を計算します。
func computeLineAndColumn(data []byte, offset int64) (int, int) {
	if offset < 0 || int(offset) > len(data) {
		return 0, 0
	}
	line := 1
	lastLineStart := 0
	for i, b := range data {
		if int64(i) == offset {
			return line, i - lastLineStart + 1
		}
		if b == '\n' {
			line++
			lastLineStart = i + 1
		}
	}
	return line, int(offset) - lastLineStart + 1
}
