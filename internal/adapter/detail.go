package adapter

import (
	"context"
	"net/url"
	"strings"

	"GoGalleryCatalog/internal/model"

	"github.com/PuerkitoBio/goquery"
)

const (
	galleryChapterName       = "Gallery"
	defaultModelLatestSuffix = "sort/latest/"
)

// FetchDetail は、参照の種別に応じてギャラリーまたはモデルの詳細を取得します。
// 取得や解析に失敗しても内部でリトライはしません。
func (a *MasonryAdapter) FetchDetail(ctx context.Context, ref model.Reference) (model.ContentDetail, error) {
	doc, finalURL, err := a.fetchDocument(ctx, a.absoluteURL(ref.Path))
	if err != nil {
		return model.ContentDetail{}, err
	}
	if ref.Kind == model.KindModel {
		return a.parseModelDetail(doc, finalURL, ref)
	}
	return a.parseGalleryDetail(doc, finalURL, ref)
}

func (a *MasonryAdapter) parseGalleryDetail(doc *goquery.Document, pageURL string, ref model.Reference) (model.ContentDetail, error) {
	sel := a.site.Selectors
	title := firstValue(doc, sel.DetailTitle)
	if title == "" {
		return model.ContentDetail{}, &ParseError{Op: "ギャラリー詳細", URL: pageURL, Selector: sel.DetailTitle}
	}

	return model.ContentDetail{
		Reference:    ref,
		Title:        title,
		Artist:       strings.Join(allValues(doc, sel.DetailArtist), ", "),
		Genre:        strings.Join(allValues(doc, sel.DetailGenre), ", "),
		Description:  firstValue(doc, sel.DetailDescription),
		ThumbnailURL: a.absoluteImage(pageURL, firstValue(doc, sel.DetailThumbnail)),
		Status:       model.StatusCompleted,
		UpdatePolicy: model.FetchOnce,
	}, nil
}

func (a *MasonryAdapter) parseModelDetail(doc *goquery.Document, pageURL string, ref model.Reference) (model.ContentDetail, error) {
	sel := a.site.Selectors
	name := firstValue(doc, sel.ModelName)
	if name == "" {
		return model.ContentDetail{}, &ParseError{Op: "モデル詳細", URL: pageURL, Selector: sel.ModelName}
	}

	// 配下のギャラリーは増え続けるため、同期のたびに再取得が必要
	return model.ContentDetail{
		Reference:    ref,
		Title:        name,
		Artist:       name,
		Description:  strings.Join(allValues(doc, sel.ModelBio), "\n"),
		ThumbnailURL: a.absoluteImage(pageURL, firstValue(doc, sel.ModelThumbnail)),
		Status:       model.StatusOngoing,
		UpdatePolicy: model.AlwaysRefresh,
	}, nil
}

// FetchChapters は、ギャラリーなら自身を指す1件の合成チャプターを、
// モデルなら最新順のギャラリー一覧を別途取得してサブギャラリーごとのチャプターを返します。
func (a *MasonryAdapter) FetchChapters(ctx context.Context, ref model.Reference) ([]model.ChapterRef, error) {
	if ref.Kind != model.KindModel {
		return []model.ChapterRef{{Reference: ref, Name: galleryChapterName, Order: 1}}, nil
	}

	suffix := a.site.Capabilities.ModelLatestSuffix
	if suffix == "" {
		suffix = defaultModelLatestSuffix
	}
	p := ref.Path
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	listURL := a.absoluteURL(p + strings.TrimPrefix(suffix, "/"))

	doc, finalURL, err := a.fetchDocument(ctx, listURL)
	if err != nil {
		return nil, err
	}
	chapters, err := a.listing.ParseChapters(doc, finalURL)
	if err != nil {
		return nil, err
	}
	a.logger.Printf("DEBUG: モデル '%s' のチャプターを %d 件検出しました", ref.Path, len(chapters))
	return chapters, nil
}

// ParseChapterList は、チャプター一覧HTMLの直接解析です。
// チャプターは FetchChapters が種別ごとの経路で解決するため、この経路は実装していません。
func (a *MasonryAdapter) ParseChapterList(_ *goquery.Document) ([]model.ChapterRef, error) {
	return nil, ErrUnsupported
}

func (a *MasonryAdapter) absoluteImage(pageURL, src string) string {
	if src == "" {
		return ""
	}
	base, _ := url.Parse(pageURL)
	return resolveURL(base, src)
}

// elementValue は、要素の種類に応じた値を返します。
// metaは content 属性、imgは画像属性のフォールバック、それ以外は空白を正規化したテキストです。
func elementValue(s *goquery.Selection) string {
	switch {
	case s.Is("meta"):
		return strings.TrimSpace(s.AttrOr("content", ""))
	case s.Is("img"):
		return imageSource(s)
	default:
		return strings.Join(strings.Fields(s.Text()), " ")
	}
}

func firstValue(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	v := ""
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v = elementValue(s)
		return v == ""
	})
	return v
}

// allValues は、selector に一致する全要素の空でない値を重複なく文書順で返します。
func allValues(doc *goquery.Document, selector string) []string {
	if selector == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		v := elementValue(s)
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	})
	return out
}
