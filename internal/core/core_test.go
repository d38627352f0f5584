package core

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"GoGalleryCatalog/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource は、メモリ上のデータを返すテスト用のCatalogSourceです。
type fakeSource struct {
	mu          sync.Mutex
	details     map[string]model.ContentDetail
	chapters    map[string][]model.ChapterRef
	pages       map[string][]model.ImageRef
	pageErr     error
	detailCalls int
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeSource) ID() string   { return "fake" }
func (f *fakeSource) Name() string { return "Fake Site" }

func (f *fakeSource) ListPopular(ctx context.Context, page int) (model.ListingPage, error) {
	return model.ListingPage{}, nil
}

func (f *fakeSource) ListLatest(ctx context.Context, page int) (model.ListingPage, error) {
	return model.ListingPage{}, nil
}

func (f *fakeSource) Search(ctx context.Context, page int, facets model.SearchFacets) (model.ListingPage, error) {
	return model.ListingPage{}, nil
}

func (f *fakeSource) FetchDetail(ctx context.Context, ref model.Reference) (model.ContentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	d, ok := f.details[ref.Path]
	if !ok {
		return model.ContentDetail{}, errors.New("not found")
	}
	return d, nil
}

func (f *fakeSource) FetchChapters(ctx context.Context, ref model.Reference) ([]model.ChapterRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ref.Kind == model.KindGallery {
		return []model.ChapterRef{{Reference: ref, Name: "Gallery", Order: 1}}, nil
	}
	return append([]model.ChapterRef(nil), f.chapters[ref.Path]...), nil
}

func (f *fakeSource) FetchPages(ctx context.Context, chapter model.ChapterRef) ([]model.ImageRef, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	if f.pageErr != nil {
		return nil, f.pageErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[chapter.Reference.Path], nil
}

func (f *fakeSource) FilterList(ctx context.Context, current model.SearchFacets) []model.FilterGroup {
	return nil
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func modelSource() *fakeSource {
	chapters := []model.ChapterRef{
		{Reference: model.Reference{Path: "/g3/"}, Name: "Third", Order: 3},
		{Reference: model.Reference{Path: "/g2/"}, Name: "Second", Order: 2},
		{Reference: model.Reference{Path: "/g1/"}, Name: "First", Order: 1},
	}
	return &fakeSource{
		details: map[string]model.ContentDetail{
			"/model/anna/": {Title: "Anna", Status: model.StatusOngoing, UpdatePolicy: model.AlwaysRefresh},
			"/g1/":         {Title: "First", Status: model.StatusCompleted, UpdatePolicy: model.FetchOnce},
		},
		chapters: map[string][]model.ChapterRef{"/model/anna/": chapters},
		pages: map[string][]model.ImageRef{
			"/g1/": {{Index: 0, URL: "https://cdn.example/g1/1.jpg"}},
			"/g2/": {{Index: 0, URL: "https://cdn.example/g2/1.jpg"}, {Index: 1, URL: "https://cdn.example/g2/2.jpg"}},
			"/g3/": {{Index: 0, URL: "https://cdn.example/g3/1.jpg"}},
		},
	}
}

func TestResolveAllPages(t *testing.T) {
	// Arrange
	src := modelSource()
	ref := model.Reference{Path: "/model/anna/", Kind: model.KindModel}

	// Act
	res, err := ResolveAllPages(context.Background(), src, ref, 2, quietLogger())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Anna", res.Detail.Title)
	require.Len(t, res.Chapters, 3)
	assert.Equal(t, "Third", res.Chapters[0].Chapter.Name, "チャプターの順序は維持されるべきです")
	assert.Len(t, res.Chapters[1].Pages, 2)
	assert.LessOrEqual(t, src.maxInFlight.Load(), int32(2), "並列数の上限を超えてはいけません")
}

func TestResolveAllPages_PageErrorStops(t *testing.T) {
	src := modelSource()
	src.pageErr = errors.New("503 Service Unavailable")

	_, err := ResolveAllPages(context.Background(), src, model.Reference{Path: "/model/anna/", Kind: model.KindModel}, 0, quietLogger())

	require.Error(t, err)
	assert.ErrorIs(t, err, src.pageErr)
}

func TestResolveAllPages_DetailError(t *testing.T) {
	src := modelSource()

	_, err := ResolveAllPages(context.Background(), src, model.Reference{Path: "/missing/"}, 1, quietLogger())

	assert.Error(t, err)
}

func TestSync_FetchOnceIsSkipped(t *testing.T) {
	// Arrange
	stateDir := t.TempDir()
	src := modelSource()
	ref := model.Reference{Path: "/g1/", Kind: model.KindGallery}

	// Act
	first, err := Sync(context.Background(), src, ref, stateDir, quietLogger())
	require.NoError(t, err)
	second, err := Sync(context.Background(), src, ref, stateDir, quietLogger())
	require.NoError(t, err)

	// Assert
	assert.False(t, first.Skipped)
	assert.Equal(t, 1, first.TotalChapters)
	assert.True(t, second.Skipped, "FetchOnceのコンテンツは再取得しないべきです")
	assert.Equal(t, 1, src.calls())

	snap, err := LoadSnapshot(stateDir, "fake", ref)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, model.FetchOnce, snap.UpdatePolicy)
}

func TestSync_AlwaysRefreshReportsNewChapters(t *testing.T) {
	stateDir := t.TempDir()
	src := modelSource()
	ref := model.Reference{Path: "/model/anna/", Kind: model.KindModel}

	first, err := Sync(context.Background(), src, ref, stateDir, quietLogger())
	require.NoError(t, err)
	assert.Len(t, first.NewChapters, 3, "初回は全チャプターが新規です")

	// 新しいギャラリーが追加される
	src.mu.Lock()
	src.chapters["/model/anna/"] = append([]model.ChapterRef{{Reference: model.Reference{Path: "/g4/"}, Name: "Fourth", Order: 4}}, src.chapters["/model/anna/"]...)
	src.mu.Unlock()

	second, err := Sync(context.Background(), src, ref, stateDir, quietLogger())
	require.NoError(t, err)

	assert.False(t, second.Skipped, "AlwaysRefreshのコンテンツは毎回再取得するべきです")
	require.Len(t, second.NewChapters, 1)
	assert.Equal(t, "/g4/", second.NewChapters[0].Reference.Path)
	assert.Equal(t, 4, second.TotalChapters)
	assert.Equal(t, 2, src.calls())
}

func TestLoadSnapshot_Missing(t *testing.T) {
	snap, err := LoadSnapshot(t.TempDir(), "fake", model.Reference{Path: "/nothing/"})

	assert.NoError(t, err)
	assert.Nil(t, snap)
	assert.True(t, NeedsSync(snap))
}

func TestSessionStats(t *testing.T) {
	stats := NewSessionStats()
	stats.Record("popular", nil)
	stats.Record("popular", nil)
	stats.Record("detail", errors.New("HTTP 404"))

	snap := stats.Snapshot()

	assert.Equal(t, 2, snap.Requests["popular"])
	assert.Equal(t, 1, snap.Failures)
	assert.Equal(t, "HTTP 404", snap.LastError)
	assert.Contains(t, snap.Summary, "リクエスト: 3")
}
