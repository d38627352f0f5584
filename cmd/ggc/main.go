package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"GoGalleryCatalog/internal/adapter"
	"GoGalleryCatalog/internal/config"
	"GoGalleryCatalog/internal/network"
	"GoGalleryCatalog/internal/webui"
)

// グローバル変数
var (
	// ログファイル管理用
	logFile   *os.File
	logBase   io.Writer = os.Stdout // CLIモードではJSON出力と混ざらないよう標準エラー出力
	logOutput io.Writer = os.Stdout

	// コマンドラインフラグ
	configFile  *string
	serveMode   *bool
	openBrowser *bool
	listenAddr  *string
	siteID      *string
	operation   *string
	pageNumber  *int
	query       *string
	kind        *string
	sortMode    *string
	tags        *string
	modelTags   *string
	refPath     *string
)

func init() {
	configFile = flag.String("config", "config.json", "設定ファイルのパス (.json / .yaml)")
	serveMode = flag.Bool("serve", false, "ローカルAPIサーバーとして起動します。")
	openBrowser = flag.Bool("open", false, "APIサーバー起動後にブラウザで /api/sites を開きます。")
	listenAddr = flag.String("addr", "", "APIサーバーのリッスンアドレス (未指定時は設定ファイルの api_listen_address)")
	siteID = flag.String("site", "", "対象サイトのID")
	operation = flag.String("op", "latest", "実行する操作: sites|popular|latest|search|filters|detail|chapters|pages|all-pages|sync")
	pageNumber = flag.Int("page", 1, "一覧のページ番号")
	query = flag.String("query", "", "検索語")
	kind = flag.String("kind", "gallery", "コンテンツ種別: gallery|model")
	sortMode = flag.String("sort", "newest", "並び順: trending|newest|popular|recommended|best")
	tags = flag.String("tags", "", "タグ (カンマ区切り)")
	modelTags = flag.String("model-tags", "", "モデルタグ (カンマ区切り)")
	refPath = flag.String("ref", "", "詳細・チャプター・ページ操作の対象パス (例: /model/anna/)")
}

// main関数はGGCアプリケーションのエントリーポイントです。
func main() {
	flag.Parse()
	if !*serveMode {
		logBase = os.Stderr
	}
	log.SetOutput(logBase)

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("FATAL: 設定ファイルの読み込みに失敗しました: %v", err)
	}
	setupLogger(cfg)
	defer func() {
		if logFile != nil {
			logFile.Close()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("INFO: 終了シグナルを受信しました。シャットダウンを開始します...")
		cancel()
	}()

	client, err := network.NewClient(cfg.Network)
	if err != nil {
		log.Fatalf("FATAL: ネットワーククライアントの初期化に失敗しました: %v", err)
	}
	sources, err := buildSources(cfg, client)
	if err != nil {
		log.Fatalf("FATAL: サイトアダプタの初期化に失敗しました: %v", err)
	}

	if *serveMode {
		runServeMode(ctx, cfg, sources)
	} else if err := runCliMode(ctx, cfg, sources, os.Stdout); err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}
}

// loadConfig は設定ファイルを読み込みます。ファイルが存在しない場合は組み込みの既定設定を使います。
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Printf("INFO: 設定ファイル '%s' が見つからないため、組み込みの既定設定を使用します", path)
		return config.Default()
	}
	return config.LoadAndResolve(path)
}

// buildSources は、全サイトのCatalogSourceをサイトごとのロガー付きで生成します。
func buildSources(cfg *config.Config, client *network.Client) ([]adapter.CatalogSource, error) {
	sources := make([]adapter.CatalogSource, 0, len(cfg.Sites))
	for _, site := range cfg.Sites {
		src, err := adapter.GetAdapter(site, adapter.Dependencies{
			Fetcher:     client,
			Preferences: cfg.Preferences,
			Logger:      log.New(logOutput, fmt.Sprintf("[%s] ", site.ID), log.LstdFlags),
		})
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func runServeMode(ctx context.Context, cfg *config.Config, sources []adapter.CatalogSource) {
	addr := *listenAddr
	if addr == "" {
		addr = cfg.APIListenAddress
	}

	server := webui.NewServer(sources, webui.Options{
		StateDirectory:     cfg.StateDirectory,
		MaxConcurrentPages: cfg.MaxConcurrentPages,
		Logger:             log.New(logOutput, "[webui] ", log.LstdFlags),
	})
	baseURL, err := server.Start(addr)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	if *openBrowser {
		if err := webui.OpenBrowser(baseURL + "/api/sites"); err != nil {
			log.Printf("WARNING: ブラウザの起動に失敗しました: %v。手動でURLを開いてください: %s", err, baseURL)
		}
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("ERROR: APIサーバーのシャットダウンに失敗しました: %v", err)
		}
		<-server.Done()
	case <-server.Done():
	}
	log.Println("INFO: アプリケーションが正常にシャットダウンしました。")
}

// setupLogger はログ出力先を設定します。
// config.EnableLogFile が true の場合、ファイルにも出力します。
func setupLogger(cfg *config.Config) {
	toggleLogger(cfg.EnableLogFile, cfg.LogFilePath)
}

// toggleLogger はログ出力のファイル書き込みを切り替えます。
func toggleLogger(enable bool, path string) error {
	// 既存のログファイルがあれば閉じる
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	if !enable {
		logOutput = logBase
		log.SetOutput(logOutput)
		return nil
	}

	if path == "" {
		// デフォルトは日付形式
		path = fmt.Sprintf("ggc_%s.log", time.Now().Format("2006-01-02"))
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("WARNING: ログファイルを開けませんでした: %v", err)
		return err
	}
	logFile = f
	// 標準出力とファイルの両方に出力
	logOutput = io.MultiWriter(logBase, f)
	log.SetOutput(logOutput)
	log.Printf("INFO: ログ出力をファイル '%s' に開始しました", path)
	return nil
}
