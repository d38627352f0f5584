package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"GoGalleryCatalog/internal/adapter"
	"GoGalleryCatalog/internal/config"
	"GoGalleryCatalog/internal/core"
	"GoGalleryCatalog/internal/model"
)

// cliRequest は、フラグから組み立てた1回分の操作です。
type cliRequest struct {
	SiteID string
	Op     string
	Page   int
	Facets model.SearchFacets
	Ref    model.Reference
}

func requestFromFlags() cliRequest {
	return cliRequest{
		SiteID: *siteID,
		Op:     *operation,
		Page:   *pageNumber,
		Facets: model.SearchFacets{
			Query:     *query,
			Kind:      model.ParseContentKind(*kind),
			Sort:      model.ParseSortMode(*sortMode),
			Tags:      splitFlag(*tags),
			ModelTags: splitFlag(*modelTags),
		},
		Ref: model.Reference{Path: *refPath, Kind: model.ParseContentKind(*kind)},
	}
}

// runCliModeは、フラグで指定された操作を一度だけ実行し、結果をJSONで out に書き出します。
func runCliMode(ctx context.Context, cfg *config.Config, sources []adapter.CatalogSource, out io.Writer) error {
	result, err := execute(ctx, cfg, sources, requestFromFlags())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}

// execute は、操作名に応じてCatalogSourceまたはcoreの処理を呼び出します。
func execute(ctx context.Context, cfg *config.Config, sources []adapter.CatalogSource, req cliRequest) (any, error) {
	if req.Op == "sites" {
		type site struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		list := make([]site, 0, len(sources))
		for _, src := range sources {
			list = append(list, site{ID: src.ID(), Name: src.Name()})
		}
		return list, nil
	}

	src, err := findSource(sources, req.SiteID)
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: サイト '%s' で操作 '%s' を実行します", src.ID(), req.Op)

	switch req.Op {
	case "popular":
		return src.ListPopular(ctx, req.Page)
	case "latest":
		return src.ListLatest(ctx, req.Page)
	case "search":
		return src.Search(ctx, req.Page, req.Facets)
	case "filters":
		// 語彙は非同期に取得されるため、初回は空のグループが返ることがあります。
		return src.FilterList(ctx, req.Facets), nil
	}

	if req.Ref.Path == "" {
		return nil, fmt.Errorf("操作 '%s' には -ref が必要です", req.Op)
	}
	if !strings.HasPrefix(req.Ref.Path, "/") {
		req.Ref.Path = "/" + req.Ref.Path
	}

	switch req.Op {
	case "detail":
		return src.FetchDetail(ctx, req.Ref)
	case "chapters":
		return src.FetchChapters(ctx, req.Ref)
	case "pages":
		return src.FetchPages(ctx, model.ChapterRef{Reference: req.Ref})
	case "all-pages":
		return core.ResolveAllPages(ctx, src, req.Ref, cfg.MaxConcurrentPages, log.Default())
	case "sync":
		return core.Sync(ctx, src, req.Ref, cfg.StateDirectory, log.Default())
	default:
		return nil, fmt.Errorf("未知の操作です: '%s'", req.Op)
	}
}

// findSource は、サイトIDに一致するCatalogSourceを返します。サイトが1つだけの場合はID省略を許します。
func findSource(sources []adapter.CatalogSource, id string) (adapter.CatalogSource, error) {
	if id == "" {
		if len(sources) == 1 {
			return sources[0], nil
		}
		return nil, fmt.Errorf("-site を指定してください (設定済みサイト: %d 件)", len(sources))
	}
	for _, src := range sources {
		if strings.EqualFold(src.ID(), id) {
			return src, nil
		}
	}
	return nil, fmt.Errorf("サイト '%s' は設定されていません", id)
}

func splitFlag(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
