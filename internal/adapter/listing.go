package adapter

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"GoGalleryCatalog/internal/config"
	"GoGalleryCatalog/internal/model"

	"github.com/PuerkitoBio/goquery"
)

const defaultVideoHrefPattern = `/videos?/`

// ListingParser は、一覧文書を ContentSummary のページに変換します。
type ListingParser struct {
	siteName     string
	sel          config.Selectors
	videoPattern *regexp.Regexp
}

// NewListingParser は、サイト名とセレクタからListingParserを生成します。
func NewListingParser(siteName string, sel config.Selectors) (*ListingParser, error) {
	pattern := sel.VideoHrefPattern
	if pattern == "" {
		pattern = defaultVideoHrefPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("video_href_pattern '%s' のコンパイルに失敗しました: %w", pattern, err)
	}
	return &ListingParser{siteName: siteName, sel: sel, videoPattern: re}, nil
}

// ParseListing は、contentKind に応じてギャラリー一覧またはモデル一覧として文書を解析します。
// 項目が0件で、かつ一覧コンテナ自体が存在しない場合はマークアップ変更とみなし ParseError を返します。
// list_container が未設定のサイトでは、項目セレクタに一致する要素が1つもない場合に ParseError になります。
func (p *ListingParser) ParseListing(doc *goquery.Document, pageURL string, kind model.ContentKind) (model.ListingPage, error) {
	var items []model.ContentSummary
	if kind == model.KindModel {
		items = p.parseModels(doc, pageURL)
	} else {
		items = p.parseGalleries(doc, pageURL)
	}

	if len(items) == 0 {
		itemSel := p.sel.GalleryItem
		if kind == model.KindModel {
			itemSel = p.sel.ModelItem
		}
		if container := p.containerSelector(itemSel); doc.Find(container).Length() == 0 {
			return model.ListingPage{}, &ParseError{Op: "一覧", URL: pageURL, Selector: container}
		}
	}

	return model.ListingPage{Items: items, HasMore: p.hasNext(doc)}, nil
}

func (p *ListingParser) parseGalleries(doc *goquery.Document, pageURL string) []model.ContentSummary {
	var items []model.ContentSummary
	p.eachGallery(doc, pageURL, p.sel.GalleryItem, func(_ *goquery.Selection, item model.ContentSummary) {
		items = append(items, item)
	})
	return items
}

// ParseChapters は、モデルの最新順一覧をギャラリーとして解析し、サブギャラリーごとのChapterRefを返します。
// 先頭（最新）のギャラリーほど大きな Order を持ちます。
func (p *ListingParser) ParseChapters(doc *goquery.Document, pageURL string) ([]model.ChapterRef, error) {
	itemSel := p.sel.ModelGalleryItem
	if itemSel == "" {
		itemSel = p.sel.GalleryItem
	}

	var chapters []model.ChapterRef
	p.eachGallery(doc, pageURL, itemSel, func(s *goquery.Selection, item model.ContentSummary) {
		// モデル名の重複を避けるため、オーバーレイのキャプションを名前に使う
		name := ""
		if p.sel.ChapterCaption != "" {
			name = strings.TrimSpace(s.Find(p.sel.ChapterCaption).First().Text())
		}
		if name == "" {
			name = item.Title
		}
		chapters = append(chapters, model.ChapterRef{Reference: item.Reference, Name: name})
	})

	if len(chapters) == 0 {
		if container := p.containerSelector(itemSel); doc.Find(container).Length() == 0 {
			return nil, &ParseError{Op: "チャプター一覧", URL: pageURL, Selector: container}
		}
	}

	n := len(chapters)
	for i := range chapters {
		chapters[i].Order = float64(n - i)
	}
	return chapters, nil
}

// eachGallery は、itemSel に一致する要素をギャラリー項目として解析し、動画以外を fn に渡します。
func (p *ListingParser) eachGallery(doc *goquery.Document, pageURL, itemSel string, fn func(*goquery.Selection, model.ContentSummary)) {
	base, _ := url.Parse(pageURL)
	doc.Find(itemSel).Each(func(_ int, s *goquery.Selection) {
		a := s.Find("a[href]").First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		path := domainRelative(base, href)
		if path == "" || p.videoPattern.MatchString(path) {
			return
		}

		title := strings.TrimSpace(a.AttrOr("title", ""))
		if title == "" {
			title = strings.TrimSpace(s.Find("img").First().AttrOr("alt", ""))
		}
		var tagline string
		if p.sel.ItemLabel != "" {
			tagline = strings.TrimSpace(s.Find(p.sel.ItemLabel).First().Text())
		}
		thumb := imageSource(a)
		if thumb != "" {
			thumb = resolveURL(base, thumb)
		}

		fn(s, model.ContentSummary{
			Reference:    model.Reference{Path: path, Kind: model.KindGallery},
			Title:        title,
			ThumbnailURL: thumb,
			Tagline:      tagline,
		})
	})
}

func (p *ListingParser) parseModels(doc *goquery.Document, pageURL string) []model.ContentSummary {
	base, _ := url.Parse(pageURL)
	var items []model.ContentSummary
	doc.Find(p.sel.ModelItem).Each(func(_ int, s *goquery.Selection) {
		a := s.Find("a[href]").First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		path := domainRelative(base, href)
		if path == "" {
			return
		}
		img := a.Find("img").First()
		name := strings.TrimSpace(img.AttrOr("alt", ""))
		if name == "" {
			name = strings.TrimSpace(a.AttrOr("title", ""))
		}
		thumb := imageSource(img)
		if thumb != "" {
			thumb = resolveURL(base, thumb)
		}

		items = append(items, model.ContentSummary{
			// 同名のモデルをサイト間で区別するため、サイト名を付与する
			Reference:    model.Reference{Path: path, Kind: model.KindModel},
			Title:        fmt.Sprintf("%s @%s", name, p.siteName),
			ThumbnailURL: thumb,
		})
	})
	return items
}

// containerSelector は、空ページとマークアップ変更を区別するためのセレクタを返します。
func (p *ListingParser) containerSelector(itemSel string) string {
	if p.sel.ListContainer != "" {
		return p.sel.ListContainer
	}
	return itemSel
}

// hasNext は、有効な「次へ」リンクが存在するかどうかを返します。
// href を持つ要素か、href を持つアンカーを含む要素だけを有効とみなします。
func (p *ListingParser) hasNext(doc *goquery.Document) bool {
	if p.sel.NextPage == "" {
		return false
	}
	enabled := false
	doc.Find(p.sel.NextPage).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("disabled") || s.Parent().HasClass("disabled") {
			return true
		}
		if _, ok := s.Attr("href"); ok || s.Find("a[href]").Length() > 0 {
			enabled = true
			return false
		}
		return true
	})
	return enabled
}

// domainRelative は、href をドメイン相対パスに変換します。別ホストへのリンクは空文字を返します。
func domainRelative(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
		if !sameHost(u.Hostname(), base.Hostname()) {
			return ""
		}
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}

func sameHost(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "www."), strings.TrimPrefix(b, "www."))
}
