package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"GoGalleryCatalog/internal/adapter"
	"GoGalleryCatalog/internal/core"
	"GoGalleryCatalog/internal/model"
	"GoGalleryCatalog/internal/network"

	"github.com/go-chi/chi/v5"
)

type sourceKey struct{}

// siteInfo は /api/sites の1要素です。
type siteInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// errorBody はエラーレスポンスの本文です。
type errorBody struct {
	Error          string `json:"error"`
	Kind           string `json:"kind,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// ヘッダー送信後なのでステータスは変更できない
		w.Write([]byte(`{"error": "レスポンスのエンコードに失敗しました"}`))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeOperationError は、カタログ操作のエラーを種類に応じたステータスコードに変換します。
func (s *Server) writeOperationError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	status := http.StatusBadGateway

	var httpErr *network.HTTPError
	var parseErr *adapter.ParseError
	switch {
	case errors.Is(err, adapter.ErrUnsupported):
		status = http.StatusNotImplemented
		body.Kind = "unsupported"
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		body.Kind = "timeout"
	case errors.As(err, &parseErr):
		body.Kind = "parse"
	case errors.As(err, &httpErr):
		body.Kind = "transport"
		body.UpstreamStatus = httpErr.StatusCode
	default:
		body.Kind = "transport"
	}
	s.logger.Printf("WARNING: カタログ操作に失敗しました (status=%d): %v", status, err)
	writeJSON(w, status, body)
}

// withSource は、URLの {site} からCatalogSourceを解決してコンテキストに格納します。
func (s *Server) withSource(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "site")
		src, ok := s.byID[id]
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("サイト '%s' は設定されていません", id))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sourceKey{}, src)))
	})
}

func sourceFrom(r *http.Request) adapter.CatalogSource {
	return r.Context().Value(sourceKey{}).(adapter.CatalogSource)
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	sites := make([]siteInfo, 0, len(s.sources))
	for _, src := range s.sources {
		sites = append(sites, siteInfo{ID: src.ID(), Name: src.Name()})
	}
	writeJSON(w, http.StatusOK, sites)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *Server) handlePopular(w http.ResponseWriter, r *http.Request) {
	s.handleListing(w, r, "popular", func(ctx context.Context, src adapter.CatalogSource, page int) (model.ListingPage, error) {
		return src.ListPopular(ctx, page)
	})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	s.handleListing(w, r, "latest", func(ctx context.Context, src adapter.CatalogSource, page int) (model.ListingPage, error) {
		return src.ListLatest(ctx, page)
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	facets := ParseFacets(r.URL.Query())
	s.handleListing(w, r, "search", func(ctx context.Context, src adapter.CatalogSource, page int) (model.ListingPage, error) {
		return src.Search(ctx, page, facets)
	})
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request, op string, list func(context.Context, adapter.CatalogSource, int) (model.ListingPage, error)) {
	page, err := parsePage(r.URL.Query().Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := list(r.Context(), sourceFrom(r), page)
	s.stats.Record(op, err)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	groups := sourceFrom(r).FilterList(r.Context(), ParseFacets(r.URL.Query()))
	s.stats.Record("filters", nil)
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	ref, err := parseReference(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	detail, err := sourceFrom(r).FetchDetail(r.Context(), ref)
	s.stats.Record("detail", err)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	ref, err := parseReference(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	chapters, err := sourceFrom(r).FetchChapters(r.Context(), ref)
	s.stats.Record("chapters", err)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chapters)
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	ref, err := parseReference(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pages, err := sourceFrom(r).FetchPages(r.Context(), model.ChapterRef{Reference: ref})
	s.stats.Record("pages", err)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ref, err := parseReference(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := core.ResolveAllPages(r.Context(), sourceFrom(r), ref, s.opts.MaxConcurrentPages, s.logger)
	s.stats.Record("resolve", err)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ref, err := parseReference(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.opts.StateDirectory == "" {
		writeError(w, http.StatusServiceUnavailable, "state_directory が設定されていないため同期できません")
		return
	}
	res, err := core.Sync(r.Context(), sourceFrom(r), ref, s.opts.StateDirectory, s.logger)
	s.stats.Record("sync", err)
	if err != nil {
		s.writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parsePage は page パラメータを解釈します。未指定の場合は1です。
func parsePage(v string) (int, error) {
	if v == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(v)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("page は1以上の整数で指定してください: '%s'", v)
	}
	return page, nil
}

// parseReference は path / kind パラメータから参照を組み立てます。
func parseReference(q url.Values) (model.Reference, error) {
	path := strings.TrimSpace(q.Get("path"))
	if path == "" {
		return model.Reference{}, errors.New("path パラメータは必須です")
	}
	if !strings.HasPrefix(path, "/") {
		return model.Reference{}, fmt.Errorf("path はドメイン相対パス（/で始まる）で指定してください: '%s'", path)
	}
	return model.Reference{Path: path, Kind: model.ParseContentKind(q.Get("kind"))}, nil
}

// ParseFacets は、クエリパラメータ（q, kind, sort, tags, model_tags）から検索条件を組み立てます。
// tags と model_tags はカンマ区切りと繰り返し指定の両方を受け付けます。
func ParseFacets(q url.Values) model.SearchFacets {
	return model.SearchFacets{
		Query:     q.Get("q"),
		Kind:      model.ParseContentKind(q.Get("kind")),
		Sort:      model.ParseSortMode(q.Get("sort")),
		Tags:      splitList(q["tags"]),
		ModelTags: splitList(q["model_tags"]),
	}
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
