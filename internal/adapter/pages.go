package adapter

import (
	"net/url"
	"strings"

	"GoGalleryCatalog/internal/model"

	"github.com/PuerkitoBio/goquery"
)

// imageSourceAttrs は、画像URLを探す属性の優先順位です。
// 遅延読み込みのマークアップでは src がプレースホルダーで上書きされるため、data-* を先に見ます。
var imageSourceAttrs = []string{"srcset", "data-cfsrc", "data-src", "data-lazy-src", "src"}

// imageSource は、要素自身、なければ最初の子孫imgから、優先順位に従って画像URLを取り出します。
func imageSource(s *goquery.Selection) string {
	if !s.Is("img") {
		if img := s.Find("img").First(); img.Length() > 0 {
			s = img
		}
	}
	for _, attr := range imageSourceAttrs {
		v, ok := s.Attr(attr)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if attr == "srcset" {
			v = firstSrcsetCandidate(v)
		}
		// data:URIのプレースホルダーは実画像ではない
		if v == "" || strings.HasPrefix(v, "data:") {
			continue
		}
		return v
	}
	return ""
}

// firstSrcsetCandidate は、srcsetの最初の候補のURL部分（最初の空白まで）を返します。
func firstSrcsetCandidate(srcset string) string {
	fields := strings.Fields(srcset)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimSuffix(fields[0], ",")
}

// resolveURL は、ref を base に対して絶対URLに解決します。解決できない場合は ref をそのまま返します。
func resolveURL(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// PageExtractor は、ギャラリー文書から画像の並びを抽出します。
type PageExtractor struct {
	itemSelector string
	attr         string
}

// NewPageExtractor は、page_item / page_attr セレクタからPageExtractorを生成します。
// attr が空の場合は画像属性のフォールバック順で探します。
func NewPageExtractor(itemSelector, attr string) *PageExtractor {
	return &PageExtractor{itemSelector: itemSelector, attr: attr}
}

// ExtractPages は、文書順に ImageRef を返します。画像が1枚も見つからない場合は ParseError です。
func (p *PageExtractor) ExtractPages(doc *goquery.Document, pageURL string) ([]model.ImageRef, error) {
	base, _ := url.Parse(pageURL)

	var images []model.ImageRef
	doc.Find(p.itemSelector).Each(func(_ int, s *goquery.Selection) {
		var src string
		if p.attr != "" {
			src = strings.TrimSpace(s.AttrOr(p.attr, ""))
			if p.attr == "srcset" {
				src = firstSrcsetCandidate(src)
			}
		}
		if src == "" {
			src = imageSource(s)
		}
		if src == "" {
			return
		}
		images = append(images, model.ImageRef{Index: len(images), URL: resolveURL(base, src)})
	})

	if len(images) == 0 {
		return nil, &ParseError{Op: "ページ一覧", URL: pageURL, Selector: p.itemSelector}
	}
	return images, nil
}
