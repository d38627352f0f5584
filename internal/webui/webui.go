// Package webui は、カタログ操作をホストUIへ公開するローカルJSON APIサーバーを提供します。
package webui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"GoGalleryCatalog/internal/adapter"
	"GoGalleryCatalog/internal/core"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 2 * time.Minute

// Options は、サーバーの動作設定です。
type Options struct {
	StateDirectory     string
	MaxConcurrentPages int
	Logger             *log.Logger
}

// Server は、chiルーターとhttp.Serverを保持します。
type Server struct {
	sources []adapter.CatalogSource
	byID    map[string]adapter.CatalogSource
	opts    Options
	logger  *log.Logger
	stats   *core.SessionStats
	router  *chi.Mux

	mu       sync.Mutex // httpServer / listener への同時アクセスを保護します。
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewServer は、全サイトのCatalogSourceを受け取り、ルーティングを構成したServerを返します。
func NewServer(sources []adapter.CatalogSource, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[webui] ", log.LstdFlags)
	}
	s := &Server{
		sources: sources,
		byID:    make(map[string]adapter.CatalogSource, len(sources)),
		opts:    opts,
		logger:  opts.Logger,
		stats:   core.NewSessionStats(),
		done:    make(chan struct{}),
	}
	for _, src := range sources {
		s.byID[src.ID()] = src
	}
	s.router = s.routes()
	return s
}

// Handler は、テストや他のサーバーへの組み込み用にルーターを返します。
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RequestLogger(&chimw.DefaultLogFormatter{Logger: s.logger, NoColor: true}))
	r.Use(chimw.Recoverer)
	r.Use(chimw.CleanPath)
	r.Use(chimw.Timeout(requestTimeout))

	r.Route("/api", func(api chi.Router) {
		api.Get("/sites", s.handleSites)
		api.Get("/status", s.handleStatus)
		api.Post("/shutdown", s.handleShutdown)

		api.Route("/sites/{site}", func(site chi.Router) {
			site.Use(s.withSource)
			site.Get("/popular", s.handlePopular)
			site.Get("/latest", s.handleLatest)
			site.Get("/search", s.handleSearch)
			site.Get("/filters", s.handleFilters)
			site.Get("/detail", s.handleDetail)
			site.Get("/chapters", s.handleChapters)
			site.Get("/pages", s.handlePages)
			site.Get("/resolve", s.handleResolve)
			site.Post("/sync", s.handleSync)
		})
	})
	return r
}

// Start は、addr でリッスンを開始し、サーバーをGoroutineで起動します。
// 実際にリッスンしているURLを返します（ポート0を指定した場合はOSが選んだポート）。
func (s *Server) Start(addr string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return "", errors.New("APIサーバーはすでに起動しています")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("APIサーバーのリッスンに失敗しました (addr=%s): %w", addr, err)
	}

	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      requestTimeout + 10*time.Second,
		IdleTimeout:       10 * time.Minute,
	}
	server.RegisterOnShutdown(func() {
		s.logger.Println("INFO: APIサーバーがシャットダウンしました。")
	})
	s.server = server
	s.listener = listener

	url := "http://" + listener.Addr().String()
	go func() {
		defer close(s.done)
		s.logger.Printf("INFO: APIサーバーを %s で起動します。", url)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("ERROR: APIサーバーが異常終了しました: %v", err)
		}
	}()
	return url, nil
}

// Done は、サーバーが停止すると閉じられるチャネルを返します。
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Shutdown は、処理中のリクエストの完了を待ってサーバーを停止します。
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	s.logger.Println("INFO: APIサーバーのシャットダウンを開始します...")
	return server.Shutdown(ctx)
}

// handleShutdown はサーバーを安全にシャットダウンします。
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "サーバーをシャットダウンします"})

	// シャットダウンは非同期で行い、クライアントへのレスポンスをブロックしません。
	go func() {
		time.Sleep(500 * time.Millisecond) // レスポンスを返すための猶予
		if err := s.Shutdown(context.Background()); err != nil {
			s.logger.Printf("ERROR: APIサーバーのシャットダウンに失敗しました: %v", err)
		}
	}()
}

// OpenBrowser はOSのデフォルトブラウザでURLを開きます。
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default: // Linux, BSDなど
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ブラウザの起動コマンドの実行に失敗しました: %w", err)
	}
	return nil
}
