// Package config は、アプリケーションの設定ファイル(config.json / config.yaml)の構造定義と、
// その読み込み、解決（サイトテンプレートのマージなど）に関する機能を提供します。
package config

import (
	"strconv"
	"strings"
)

// Config は設定ファイル全体を表すルート構造体です。
type Config struct {
	ConfigVersion      string          `json:"config_version"`
	Network            NetworkSettings `json:"network"`
	MaxConcurrentPages int             `json:"max_concurrent_pages"`
	StateDirectory     string          `json:"state_directory,omitempty"`
	APIListenAddress   string          `json:"api_listen_address,omitempty"`
	EnableLogFile      bool            `json:"enable_log_file"`
	LogFilePath        string          `json:"log_file_path,omitempty"`
	Preferences        Preferences     `json:"preferences,omitempty"`
	SiteTemplates      map[string]Site `json:"site_templates"`
	Sites              []Site          `json:"sites"`
}

// NetworkSettings は、HTTPリクエストに関するグローバルな設定を保持します。
type NetworkSettings struct {
	UserAgent               string            `json:"user_agent"`
	DefaultHeaders          map[string]string `json:"default_headers"`
	PerDomainIntervalMillis map[string]int    `json:"per_domain_interval_ms"`
	RequestTimeoutMillis    int               `json:"request_timeout_ms"`
	ProxyURL                string            `json:"proxy_url,omitempty"`
	MaxBodyBytes            int64             `json:"max_body_bytes,omitempty"`
}

// Site は、カタログ対象の単一サイトを定義します。
// セレクタと機能フラグはサイトごとの「設定」であり、解析アルゴリズム自体は共通です。
type Site struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Adapter       string            `json:"adapter,omitempty"`
	UseTemplate   string            `json:"use_template,omitempty"`
	BaseURL       string            `json:"base_url"`
	MirrorBaseURL string            `json:"mirror_base_url,omitempty"`
	Lang          string            `json:"lang,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Selectors     Selectors         `json:"selectors"`
	Capabilities  Capabilities      `json:"capabilities"`
}

// Selectors は、サイトのHTML構造に依存するCSSセレクタ群です。
type Selectors struct {
	ListContainer     string `json:"list_container,omitempty"`
	GalleryItem       string `json:"gallery_item,omitempty"`
	ModelItem         string `json:"model_item,omitempty"`
	ItemLabel         string `json:"item_label,omitempty"`
	NextPage          string `json:"next_page,omitempty"`
	VideoHrefPattern  string `json:"video_href_pattern,omitempty"`
	DetailTitle       string `json:"detail_title,omitempty"`
	DetailArtist      string `json:"detail_artist,omitempty"`
	DetailGenre       string `json:"detail_genre,omitempty"`
	DetailDescription string `json:"detail_description,omitempty"`
	DetailThumbnail   string `json:"detail_thumbnail,omitempty"`
	ModelName         string `json:"model_name,omitempty"`
	ModelBio          string `json:"model_bio,omitempty"`
	ModelThumbnail    string `json:"model_thumbnail,omitempty"`
	ModelGalleryItem  string `json:"model_gallery_item,omitempty"`
	ChapterCaption    string `json:"chapter_caption,omitempty"`
	PageItem          string `json:"page_item,omitempty"`
	PageAttr          string `json:"page_attr,omitempty"`
	TagItem           string `json:"tag_item,omitempty"`
	ModelTagItem      string `json:"model_tag_item,omitempty"`
}

// Capabilities は、サイトごとに経験的に判明しているURL体系の差異を表します。
type Capabilities struct {
	// ArchivePaging は /archive/page/N/ が一貫した新着順を返すかどうかです。
	ArchivePaging bool `json:"archive_paging"`
	// NativePopularPaging は /updates/sort/popular/mpage/N/ が使えるかどうかです。
	NativePopularPaging bool `json:"native_popular_paging"`
	// TagTrendingPaging は /tag/X/sort/trending/mpage/N/ が使えるかどうかです。
	TagTrendingPaging bool   `json:"tag_trending_paging"`
	TagsPath          string `json:"tags_path,omitempty"`
	ModelTagsPath     string `json:"model_tags_path,omitempty"`
	ModelLatestSuffix string `json:"model_latest_suffix,omitempty"`
}

// Preferences は、ホスト側で永続化されたキー・バリュー形式の設定です。
type Preferences map[string]string

// String は key の値を返します。未設定の場合は def を返します。
func (p Preferences) String(key, def string) string {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Bool は key の値を真偽値として返します。未設定または解釈できない場合は def を返します。
func (p Preferences) Bool(key string, def bool) bool {
	v, ok := p[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// FindSite は ID（大文字小文字を区別しない）でサイトを検索します。
func (c *Config) FindSite(id string) (Site, bool) {
	for _, s := range c.Sites {
		if strings.EqualFold(s.ID, id) {
			return s, true
		}
	}
	return Site{}, false
}
