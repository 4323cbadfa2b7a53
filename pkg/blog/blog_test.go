package blog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"blog/pkg/datefmt"
	"blog/pkg/models"
)

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

// fakeSource serves pre-built pages. The first page is returned by ByType,
// others by URL.
type fakeSource struct {
	mu      sync.Mutex
	first   models.PostPagination
	pages   map[string]models.PostPagination
	err     error
	calls   []string
	release chan struct{}
}

func (s *fakeSource) ByType(ctx context.Context, docType string, pageSize int) (models.PostPagination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf("type:%s:%d", docType, pageSize))
	if s.err != nil {
		return models.PostPagination{}, s.err
	}
	return s.first, nil
}

func (s *fakeSource) Page(ctx context.Context, url string) (models.PostPagination, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return models.PostPagination{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, url)
	if s.err != nil {
		return models.PostPagination{}, s.err
	}
	p, ok := s.pages[url]
	if !ok {
		return models.PostPagination{}, fmt.Errorf("unknown page %s", url)
	}
	return p, nil
}

func (s *fakeSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func strPtr(s string) *string { return &s }

func rawPosts(prefix string, n int) []models.RawPost {
	posts := make([]models.RawPost, n)
	for i := range posts {
		posts[i] = models.RawPost{
			UID:                  fmt.Sprintf("%s-%d", prefix, i),
			FirstPublicationDate: strPtr(fmt.Sprintf("2023-04-%02dT10:00:00+0000", i%28+1)),
			Data: models.PostData{
				Title:    fmt.Sprintf("Title %s %d", prefix, i),
				Subtitle: "Subtitle",
				Author:   "Author",
			},
		}
	}
	return posts
}

func newNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	f, err := datefmt.New("pt-BR", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error creating formatter: %v", err)
	}
	n, err := NewNormalizer(f)
	if err != nil {
		t.Fatalf("unexpected error creating normalizer: %v", err)
	}
	return n
}

func newTestSource() *fakeSource {
	return &fakeSource{
		first: models.PostPagination{Page: 1, NextPage: "https://x/page2", Results: rawPosts("p1", 20)},
		pages: map[string]models.PostPagination{
			"https://x/page2": {Page: 2, NextPage: "https://x/page3", Results: rawPosts("p2", 20)},
			"https://x/page3": {Page: 3, NextPage: "", Results: rawPosts("p3", 5)},
		},
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	n := newNormalizer(t)

	raw := models.RawPost{
		UID:                  "a",
		FirstPublicationDate: strPtr("2023-04-05T00:00:00Z"),
		Data:                 models.PostData{Title: "T", Subtitle: "S", Author: "Au"},
	}

	got, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := models.DisplayPost{UID: "a", Title: "T", Subtitle: "S", Author: "Au", PublicationDate: "05 abr 2023"}
	if got != want {
		t.Errorf("want post\n%+v\ngot post\n%+v\n", want, got)
	}
}

func TestNormalizer_NormalizeDates(t *testing.T) {
	n := newNormalizer(t)

	tests := []struct {
		name    string
		date    *string
		want    string
		wantErr error
	}{
		{name: "content service layout", date: strPtr("2021-03-25T19:25:28+0000"), want: "25 mar 2021"},
		{name: "null date", date: nil, want: ""},
		{name: "blank date", date: strPtr(""), want: ""},
		{name: "unparseable date", date: strPtr("25/03/2021"), wantErr: ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(models.RawPost{UID: "x", FirstPublicationDate: tt.date})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("want error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.PublicationDate != tt.want {
				t.Errorf("want date %q, got %q", tt.want, got.PublicationDate)
			}
		})
	}
}

func TestNormalizer_NormalizeAllFailsWhole(t *testing.T) {
	n := newNormalizer(t)

	raws := rawPosts("p", 3)
	raws[1].FirstPublicationDate = strPtr("not a date")

	posts, err := n.NormalizeAll(raws)
	if !errors.Is(err, ErrInvalidDate) {
		t.Errorf("want error %v, got %v", ErrInvalidDate, err)
	}
	if posts != nil {
		t.Errorf("want no posts, got %d", len(posts))
	}
}

func TestToPost(t *testing.T) {
	raw := models.RawPost{
		UID:                  "a",
		FirstPublicationDate: strPtr("2023-04-05T13:14:15+0000"),
		Data:                 models.PostData{Title: "T", Subtitle: "S", Author: "Au"},
	}

	got, err := ToPost(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantDate := time.Date(2023, 4, 5, 13, 14, 15, 0, time.UTC)
	if got.PublicationDate == nil || !got.PublicationDate.Equal(wantDate) {
		t.Errorf("want publication date %v, got %v", wantDate, got.PublicationDate)
	}
	if got.UID != "a" || got.Title != "T" || got.Subtitle != "S" || got.Author != "Au" {
		t.Errorf("unexpected post fields: %+v", got)
	}
}

func TestLoader_Load(t *testing.T) {
	src := newTestSource()
	n := newNormalizer(t)

	l, err := NewLoader(src, n, "", 0)
	if err != nil {
		t.Fatalf("unexpected error creating loader: %v", err)
	}

	page, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(page.Posts) != 20 {
		t.Errorf("want 20 posts, got %d", len(page.Posts))
	}
	if page.Cursor != "https://x/page2" {
		t.Errorf("want cursor %q, got %q", "https://x/page2", page.Cursor)
	}
	if !page.HasMore() {
		t.Error("want more pages")
	}

	wantCalls := []string{"type:posts:20"}
	if !reflect.DeepEqual(src.calls, wantCalls) {
		t.Errorf("want calls %v, got %v", wantCalls, src.calls)
	}
}

func TestLoader_LoadError(t *testing.T) {
	src := newTestSource()
	srcErr := errors.New("boom")
	src.setErr(srcErr)

	l, err := NewLoader(src, newNormalizer(t), "posts", 20)
	if err != nil {
		t.Fatalf("unexpected error creating loader: %v", err)
	}

	_, err = l.Load(context.Background())
	if !errors.Is(err, srcErr) {
		t.Errorf("want error %v, got %v", srcErr, err)
	}
}

func TestNewLoader_NilArgs(t *testing.T) {
	if _, err := NewLoader(nil, newNormalizer(t), "", 0); !errors.Is(err, ErrNilSource) {
		t.Errorf("want error %v, got %v", ErrNilSource, err)
	}
	if _, err := NewLoader(newTestSource(), nil, "", 0); !errors.Is(err, ErrNilNormalizer) {
		t.Errorf("want error %v, got %v", ErrNilNormalizer, err)
	}
	if _, err := NewFetcher(nil, newNormalizer(t)); !errors.Is(err, ErrNilSource) {
		t.Errorf("want error %v, got %v", ErrNilSource, err)
	}
	if _, err := NewNormalizer(nil); !errors.Is(err, ErrNilFormatter) {
		t.Errorf("want error %v, got %v", ErrNilFormatter, err)
	}
}

func newSession(t *testing.T, src *fakeSource) (*Session, *Fetcher) {
	t.Helper()
	n := newNormalizer(t)

	l, err := NewLoader(src, n, "posts", 20)
	if err != nil {
		t.Fatalf("unexpected error creating loader: %v", err)
	}
	first, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error loading first page: %v", err)
	}
	f, err := NewFetcher(src, n)
	if err != nil {
		t.Fatalf("unexpected error creating fetcher: %v", err)
	}

	return NewSession(uuid.Must(uuid.NewV4()), first), f
}

func TestSession_LoadMoreAppendsInOrder(t *testing.T) {
	src := newTestSource()
	s, f := newSession(t, src)

	if s.State() != StateIdleWithMore {
		t.Fatalf("want state %v, got %v", StateIdleWithMore, s.State())
	}

	before := s.Posts()

	batch, err := s.LoadMore(context.Background(), f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Posts) != 20 {
		t.Errorf("want batch of 20, got %d", len(batch.Posts))
	}
	if batch.Cursor != "https://x/page3" {
		t.Errorf("want batch cursor %q, got %q", "https://x/page3", batch.Cursor)
	}

	after := s.Posts()
	if len(after) != 40 {
		t.Fatalf("want 40 posts, got %d", len(after))
	}
	if !reflect.DeepEqual(after[:len(before)], before) {
		t.Error("want existing posts unchanged after append")
	}

	wantSuffix, err := newNormalizer(t).NormalizeAll(src.pages["https://x/page2"].Results)
	if err != nil {
		t.Fatalf("unexpected error normalizing: %v", err)
	}
	if !reflect.DeepEqual(after[len(before):], wantSuffix) {
		t.Error("want appended posts to equal the normalized next page in order")
	}
	if s.Cursor() != "https://x/page3" {
		t.Errorf("want cursor %q, got %q", "https://x/page3", s.Cursor())
	}
}

func TestSession_Exhaustion(t *testing.T) {
	src := newTestSource()
	src.first.NextPage = "https://x/page3"
	s, f := newSession(t, src)

	if s.Len() != 20 || !s.HasMore() {
		t.Fatalf("want 20 posts with more available, got %d posts, more: %v", s.Len(), s.HasMore())
	}

	batch, err := s.LoadMore(context.Background(), f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Posts) != 5 {
		t.Errorf("want batch of 5, got %d", len(batch.Posts))
	}
	if batch.HasMore() {
		t.Error("want exhausted batch cursor")
	}
	if s.Len() != 25 {
		t.Errorf("want 25 posts, got %d", s.Len())
	}
	if s.HasMore() {
		t.Error("want no more pages")
	}
	if s.State() != StateIdleExhausted {
		t.Errorf("want state %v, got %v", StateIdleExhausted, s.State())
	}

	callsBefore := len(src.calls)
	_, err = s.LoadMore(context.Background(), f)
	if !errors.Is(err, ErrNoMorePages) {
		t.Errorf("want error %v, got %v", ErrNoMorePages, err)
	}
	if len(src.calls) != callsBefore {
		t.Error("want no request to the source once exhausted")
	}
	if s.Len() != 25 {
		t.Errorf("want 25 posts, got %d", s.Len())
	}
}

func TestSession_FailureLeavesStateAndRetries(t *testing.T) {
	src := newTestSource()
	s, f := newSession(t, src)

	wantPage := s.Page()
	srcErr := errors.New("network down")
	src.setErr(srcErr)

	_, err := s.LoadMore(context.Background(), f)
	if !errors.Is(err, srcErr) {
		t.Fatalf("want error %v, got %v", srcErr, err)
	}
	if !reflect.DeepEqual(s.Page(), wantPage) {
		t.Error("want list and cursor unchanged after failure")
	}
	if !errors.Is(s.LastError(), srcErr) {
		t.Errorf("want last error %v, got %v", srcErr, s.LastError())
	}
	if s.State() != StateIdleWithMore {
		t.Errorf("want state %v, got %v", StateIdleWithMore, s.State())
	}

	src.setErr(nil)
	if _, err := s.LoadMore(context.Background(), f); err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if s.LastError() != nil {
		t.Errorf("want last error cleared, got %v", s.LastError())
	}
	if s.Len() != 40 {
		t.Errorf("want 40 posts, got %d", s.Len())
	}
}

func TestSession_InvalidDateInBatch(t *testing.T) {
	src := newTestSource()
	bad := src.pages["https://x/page2"]
	bad.Results = rawPosts("bad", 2)
	bad.Results[1].FirstPublicationDate = strPtr("???")
	src.pages["https://x/page2"] = bad

	s, f := newSession(t, src)
	_, err := s.LoadMore(context.Background(), f)
	if !errors.Is(err, ErrInvalidDate) {
		t.Errorf("want error %v, got %v", ErrInvalidDate, err)
	}
	if s.Len() != 20 || s.Cursor() != "https://x/page2" {
		t.Errorf("want state unchanged, got %d posts and cursor %q", s.Len(), s.Cursor())
	}
}

func TestSession_ConcurrentLoadMoreSerialized(t *testing.T) {
	src := newTestSource()
	s, f := newSession(t, src)
	src.release = make(chan struct{})

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.LoadMore(context.Background(), f)
			errs <- err
		}()
	}

	// One fetch is in flight, the other is waiting for the slot.
	deadline := time.Now().Add(2 * time.Second)
	for s.State() != StateFetching {
		if time.Now().After(deadline) {
			t.Fatal("want session to enter fetching state")
		}
		time.Sleep(time.Millisecond)
	}

	src.release <- struct{}{}
	src.release <- struct{}{}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	wantCalls := []string{"type:posts:20", "https://x/page2", "https://x/page3"}
	if !reflect.DeepEqual(src.calls, wantCalls) {
		t.Errorf("want calls %v, got %v", wantCalls, src.calls)
	}

	posts := s.Posts()
	if len(posts) != 45 {
		t.Fatalf("want 45 posts, got %d", len(posts))
	}
	if posts[20].UID != "p2-0" || posts[40].UID != "p3-0" {
		t.Errorf("want pages appended in request order, got %q at 20 and %q at 40", posts[20].UID, posts[40].UID)
	}
	if s.State() != StateIdleExhausted {
		t.Errorf("want state %v, got %v", StateIdleExhausted, s.State())
	}
}

func TestSession_LoadMoreCanceledWhileWaiting(t *testing.T) {
	src := newTestSource()
	s, f := newSession(t, src)
	src.release = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.LoadMore(context.Background(), f)
	}()

	for s.State() != StateFetching {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.LoadMore(ctx, f)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("want error %v, got %v", context.DeadlineExceeded, err)
	}

	src.release <- struct{}{}
	<-done
	if s.Len() != 40 {
		t.Errorf("want 40 posts, got %d", s.Len())
	}
}

func TestSession_PostsIsCopy(t *testing.T) {
	s := NewSession(uuid.Must(uuid.NewV4()), Page{Posts: []models.DisplayPost{{UID: "a"}}})
	posts := s.Posts()
	posts[0].UID = "changed"
	if s.Posts()[0].UID != "a" {
		t.Error("want Posts to return a copy")
	}
}

func TestSnapshot_Regenerate(t *testing.T) {
	src := newTestSource()
	l, err := NewLoader(src, newNormalizer(t), "posts", 20)
	if err != nil {
		t.Fatalf("unexpected error creating loader: %v", err)
	}
	snap := NewSnapshot(l)

	if _, err := snap.Current(); !errors.Is(err, ErrNotPrepared) {
		t.Errorf("want error %v, got %v", ErrNotPrepared, err)
	}

	if err := snap.Regenerate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	page, err := snap.Current()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Posts) != 20 {
		t.Errorf("want 20 posts, got %d", len(page.Posts))
	}
	generated := snap.GeneratedAt()
	if generated.IsZero() {
		t.Error("want non-zero generation time")
	}

	// A failed regeneration keeps the previous page.
	src.setErr(errors.New("unavailable"))
	if err := snap.Regenerate(context.Background()); err == nil {
		t.Error("want regeneration error")
	}
	again, err := snap.Current()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(page, again) {
		t.Error("want previous page after failed regeneration")
	}
	if !snap.GeneratedAt().Equal(generated) {
		t.Error("want generation time unchanged after failed regeneration")
	}
}
