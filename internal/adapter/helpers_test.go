package adapter

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"GoGalleryCatalog/internal/config"
	"GoGalleryCatalog/internal/network"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://www.site.example"

// fakeFetcher は、URLごとにtestdata内のHTMLを返すテスト用のFetcherです。
// 未登録のURLには404を返します。errs に登録したURLはそのエラーを返し、
// block で指定したURLは解放されるまで応答を保留します。
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	errs    map[string]error
	calls   []string
	headers map[string]string
	gate    chan struct{}
	gated   map[string]bool
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages, errs: map[string]error{}, gated: map[string]bool{}}
}

// block は、指定したURLへの応答を release が呼ばれるまで保留します。
// release は何度呼んでも安全です。
func (f *fakeFetcher) block(urls ...string) (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	for _, u := range urls {
		f.gated[u] = true
	}
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, headers map[string]string) (*network.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.headers = headers
	var gate chan struct{}
	if f.gated[url] {
		gate = f.gate
	}
	err, failed := f.errs[url]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if failed {
		return nil, err
	}
	name, ok := f.pages[url]
	if !ok {
		return nil, &network.HTTPError{StatusCode: 404, URL: url, Message: "Not Found"}
	}
	body, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		return nil, err
	}
	return &network.Response{URL: url, FinalURL: url, StatusCode: 200, ContentType: "text/html; charset=utf-8", Body: body}, nil
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == url {
			n++
		}
	}
	return n
}

func (f *fakeFetcher) lastHeaders() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headers
}

// testSite は、組み込みのMasonryテンプレートを継承したテスト用サイト設定を返します。
func testSite(t *testing.T) config.Site {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err, "組み込み設定の読み込みに失敗しました")
	site, ok := cfg.FindSite("metarthunter")
	require.True(t, ok)

	site.ID = "test"
	site.Name = "Test Site"
	site.BaseURL = testBaseURL
	return site
}

func newTestAdapter(t *testing.T, site config.Site, fetcher Fetcher, prefs Preferences) *MasonryAdapter {
	t.Helper()
	a, err := NewMasonryAdapter(site, Dependencies{
		Fetcher:     fetcher,
		Preferences: prefs,
		Logger:      log.New(io.Discard, "", 0),
	})
	require.NoError(t, err, "NewMasonryAdapterの作成に失敗しました")
	t.Cleanup(a.Facets().Wait)
	return a
}

func loadDocument(t *testing.T, name string) *goquery.Document {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err, "テスト用のHTMLファイル '%s' の読み込みに失敗しました", name)
	doc, err := NewDocumentFromBytes(body)
	require.NoError(t, err)
	return doc
}
