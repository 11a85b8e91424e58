package digest_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"digest-feed/internal/cache"
	"digest-feed/internal/domain/entity"
	"digest-feed/internal/usecase/digest"
)

type fakeFetcher struct {
	mu    sync.Mutex
	feeds map[string][]entity.Entry
	errs  map[string]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		feeds: make(map[string][]entity.Entry),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, src entity.Source) ([]entity.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[src.Endpoint]++
	if err := f.errs[src.Endpoint]; err != nil {
		return nil, err
	}
	return f.feeds[src.Endpoint], nil
}

func (f *fakeFetcher) fetchCount(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[endpoint]
}

// fakeExtractor fetches when the feed body is shorter than fetchBelow runes.
// The zero value never fetches, so entries are summarized from their body.
type fakeExtractor struct {
	mu         sync.Mutex
	fetchBelow int
	extraction *digest.Extraction
	err        error
	extracts   int
}

func (f *fakeExtractor) ShouldFetch(feedBody string) bool {
	return len([]rune(feedBody)) < f.fetchBelow
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) (*digest.Extraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extracts++
	if f.err != nil {
		return nil, f.err
	}
	return f.extraction, nil
}

func (f *fakeExtractor) extractCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.extracts
}

type fakeSummarizer struct {
	mu     sync.Mutex
	err    error
	inputs []digest.SummarizeInput
}

func (s *fakeSummarizer) Summarize(_ context.Context, in digest.SummarizeInput) (entity.DigestLayers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, in)
	if s.err != nil {
		return entity.DigestLayers{}, s.err
	}
	return entity.DigestLayers{
		Section: "Section summary of " + in.Title,
		Overall: "Overall summary of " + in.Title,
		OneLine: in.Title + " in one line",
	}, nil
}

func (s *fakeSummarizer) summarizeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

func (s *fakeSummarizer) lastInput() digest.SummarizeInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inputs) == 0 {
		return digest.SummarizeInput{}
	}
	return s.inputs[len(s.inputs)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSource(name string) entity.Source {
	return entity.Source{
		Name:     name,
		Endpoint: fmt.Sprintf("https://%s.example.com/feed.xml", name),
	}
}

func testEntry(source, slug string, published time.Time) entity.Entry {
	return entity.Entry{
		SourceName:  source,
		Title:       "Post " + slug,
		Link:        "https://example.com/posts/" + slug,
		RawBody:     "Body of post " + slug + " with enough words to summarize on its own.",
		PublishedAt: published,
	}
}

func testOptions() digest.Options {
	return digest.Options{
		SourceConcurrency: 2,
		ItemConcurrency:   2,
	}
}

// newTestService wires a Service over a real cache store in a temp directory.
func newTestService(
	t *testing.T,
	fetcher digest.FeedFetcher,
	extractor digest.ContentExtractor,
	summarizer digest.Summarizer,
	sources []entity.Source,
	opts digest.Options,
) *digest.Service {
	t.Helper()
	store := cache.NewStore(t.TempDir(), time.Hour, time.Hour, discardLogger())
	loader := func() ([]entity.Source, error) { return sources, nil }
	return digest.NewService(fetcher, extractor, summarizer, store, loader, opts, discardLogger())
}

var baseTime = time.Date(2026, 1, 16, 6, 0, 0, 0, time.UTC)

func TestService_Run_HappyPath(t *testing.T) {
	blog := testSource("go-blog")
	releases := testSource("releases")

	fetcher := newFakeFetcher()
	fetcher.feeds[blog.Endpoint] = []entity.Entry{
		testEntry(blog.Name, "generics-update", baseTime.Add(1*time.Hour)),
		testEntry(blog.Name, "gc-tuning", baseTime.Add(3*time.Hour)),
	}
	fetcher.feeds[releases.Endpoint] = []entity.Entry{
		testEntry(releases.Name, "v2-1-0", baseTime.Add(2*time.Hour)),
	}

	summarizer := &fakeSummarizer{}
	svc := newTestService(t, fetcher, &fakeExtractor{}, summarizer,
		[]entity.Source{blog, releases}, testOptions())

	digests, summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(digests) != 3 {
		t.Fatalf("digests = %d, want 3", len(digests))
	}
	if summary.Feeds.Total != 2 || summary.Feeds.Successful != 2 || summary.Feeds.Failed != 0 {
		t.Errorf("feeds = %+v, want 2 total, 2 successful", summary.Feeds)
	}
	if summary.Items.Total != 3 || summary.Items.Successful != 3 {
		t.Errorf("items = %+v, want 3 total, 3 successful", summary.Items)
	}
	if summary.Failed() {
		t.Error("summary.Failed() = true for a clean run")
	}

	// Newest first regardless of fetch or completion order.
	wantTitles := []string{"Post gc-tuning", "Post v2-1-0", "Post generics-update"}
	for i, want := range wantTitles {
		if digests[i].Title != want {
			t.Errorf("digests[%d].Title = %q, want %q", i, digests[i].Title, want)
		}
	}

	for _, d := range digests {
		if d.Fingerprint == "" {
			t.Errorf("digest %q has empty fingerprint", d.Title)
		}
		if d.Layers.Overall == "" {
			t.Errorf("digest %q has empty overall layer", d.Title)
		}
		if d.Layers.Degraded() {
			t.Errorf("digest %q degraded on the happy path", d.Title)
		}
		if d.ContentMeta.WordCount == 0 {
			t.Errorf("digest %q has zero word count", d.Title)
		}
	}
}

func TestService_Run_NoSources(t *testing.T) {
	svc := newTestService(t, newFakeFetcher(), &fakeExtractor{}, &fakeSummarizer{},
		nil, testOptions())

	digests, _, err := svc.Run(context.Background())
	if !errors.Is(err, digest.ErrNoSources) {
		t.Fatalf("Run() error = %v, want ErrNoSources", err)
	}
	if len(digests) != 0 {
		t.Errorf("digests = %d, want none", len(digests))
	}
}

func TestService_Run_SourceLoadError(t *testing.T) {
	store := cache.NewStore(t.TempDir(), time.Hour, time.Hour, discardLogger())
	loader := func() ([]entity.Source, error) { return nil, errors.New("sources.yaml: permission denied") }
	svc := digest.NewService(newFakeFetcher(), &fakeExtractor{}, &fakeSummarizer{},
		store, loader, testOptions(), discardLogger())

	_, _, err := svc.Run(context.Background())
	if err == nil {
		t.Fatal("Run() error = nil, want load failure")
	}
	if errors.Is(err, digest.ErrNoSources) {
		t.Errorf("Run() error = %v, want a distinct load error", err)
	}
	if !strings.Contains(err.Error(), "load sources") {
		t.Errorf("Run() error = %q, want load sources context", err)
	}
}

func TestService_Run_SourceFailureDoesNotAbortSiblings(t *testing.T) {
	good := testSource("healthy")
	bad := testSource("broken")

	fetcher := newFakeFetcher()
	fetcher.feeds[good.Endpoint] = []entity.Entry{
		testEntry(good.Name, "still-here", baseTime),
	}
	fetcher.errs[bad.Endpoint] = errors.New("connection refused")

	svc := newTestService(t, fetcher, &fakeExtractor{}, &fakeSummarizer{},
		[]entity.Source{bad, good}, testOptions())

	digests, summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want nil despite one failing source", err)
	}

	if len(digests) != 1 || digests[0].SourceName != good.Name {
		t.Fatalf("digests = %+v, want the healthy source's single digest", digests)
	}
	if summary.Feeds.Successful != 1 || summary.Feeds.Failed != 1 {
		t.Errorf("feeds = %+v, want 1 successful, 1 failed", summary.Feeds)
	}
	if len(summary.Feeds.Errors) != 1 {
		t.Fatalf("feed errors = %v, want exactly one", summary.Feeds.Errors)
	}
	if got := summary.Feeds.Errors[0]; !strings.Contains(got, bad.Name) || !strings.Contains(got, "fetch feed") {
		t.Errorf("feed error = %q, want source name and fetch context", got)
	}
}

func TestService_Run_EmptyFeed(t *testing.T) {
	src := testSource("quiet")
	fetcher := newFakeFetcher()
	fetcher.feeds[src.Endpoint] = nil

	svc := newTestService(t, fetcher, &fakeExtractor{}, &fakeSummarizer{},
		[]entity.Source{src}, testOptions())

	digests, summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(digests) != 0 {
		t.Errorf("digests = %d, want none", len(digests))
	}
	if summary.Feeds.Successful != 1 {
		t.Errorf("feeds = %+v, want the empty feed counted successful", summary.Feeds)
	}
	if summary.Items.Total != 0 {
		t.Errorf("items = %+v, want no items", summary.Items)
	}
}

func TestService_Run_SecondRunServedFromCache(t *testing.T) {
	src := testSource("go-blog")
	fetcher := newFakeFetcher()
	fetcher.feeds[src.Endpoint] = []entity.Entry{
		testEntry(src.Name, "one", baseTime),
		testEntry(src.Name, "two", baseTime.Add(time.Hour)),
	}
	summarizer := &fakeSummarizer{}

	store := cache.NewStore(t.TempDir(), time.Hour, time.Hour, discardLogger())
	loader := func() ([]entity.Source, error) { return []entity.Source{src}, nil }
	svc := digest.NewService(fetcher, &fakeExtractor{}, summarizer,
		store, loader, testOptions(), discardLogger())

	first, _, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if got := fetcher.fetchCount(src.Endpoint); got != 1 {
		t.Fatalf("fetch count after first run = %d, want 1", got)
	}
	if got := summarizer.summarizeCount(); got != 2 {
		t.Fatalf("summarize count after first run = %d, want 2", got)
	}

	second, summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	// Both the raw feed and every digest come from cache.
	if got := fetcher.fetchCount(src.Endpoint); got != 1 {
		t.Errorf("fetch count after second run = %d, want still 1", got)
	}
	if got := summarizer.summarizeCount(); got != 2 {
		t.Errorf("summarize count after second run = %d, want still 2", got)
	}
	if summary.Items.Cached != 2 {
		t.Errorf("items = %+v, want 2 cached", summary.Items)
	}

	if len(second) != len(first) {
		t.Fatalf("second run digests = %d, want %d", len(second), len(first))
	}
	for i := range first {
		if second[i].Fingerprint != first[i].Fingerprint {
			t.Errorf("digest[%d] fingerprint changed across runs: %q vs %q",
				i, first[i].Fingerprint, second[i].Fingerprint)
		}
	}
}

func TestService_Run_DisabledDigestCacheRegenerates(t *testing.T) {
	src := testSource("go-blog")
	fetcher := newFakeFetcher()
	fetcher.feeds[src.Endpoint] = []entity.Entry{
		testEntry(src.Name, "one", baseTime),
	}
	summarizer := &fakeSummarizer{}

	store := cache.NewStore(t.TempDir(), time.Hour, 0, discardLogger())
	loader := func() ([]entity.Source, error) { return []entity.Source{src}, nil }
	svc := digest.NewService(fetcher, &fakeExtractor{}, summarizer,
		store, loader, testOptions(), discardLogger())

	for run := 1; run <= 2; run++ {
		if _, _, err := svc.Run(context.Background()); err != nil {
			t.Fatalf("run %d error = %v", run, err)
		}
	}

	if got := fetcher.fetchCount(src.Endpoint); got != 1 {
		t.Errorf("fetch count = %d, want 1 (feed cache still on)", got)
	}
	if got := summarizer.summarizeCount(); got != 2 {
		t.Errorf("summarize count = %d, want 2 (digest cache off)", got)
	}
}

func TestService_Run_DuplicateFingerprintSkipped(t *testing.T) {
	// The same item syndicated by two sources shares a fingerprint, so only
	// one of them is processed.
	a := testSource("origin")
	b := testSource("mirror")
	shared := testEntry("ignored", "syndicated", baseTime)

	fetcher := newFakeFetcher()
	fetcher.feeds[a.Endpoint] = []entity.Entry{shared}
	fetcher.feeds[b.Endpoint] = []entity.Entry{shared}

	svc := newTestService(t, fetcher, &fakeExtractor{}, &fakeSummarizer{},
		[]entity.Source{a, b}, testOptions())

	digests, summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(digests) != 1 {
		t.Fatalf("digests = %d, want the duplicate collapsed to 1", len(digests))
	}
	if summary.Items.Total != 2 || summary.Items.Successful != 1 || summary.Items.Skipped != 1 {
		t.Errorf("items = %+v, want 1 successful, 1 skipped", summary.Items)
	}
}

func TestService_Run_CapsEntriesPerSourceNewestFirst(t *testing.T) {
	src := testSource("firehose")
	fetcher := newFakeFetcher()
	// Oldest first in the feed; the cap must keep the newest two anyway.
	for i := 0; i < 5; i++ {
		fetcher.feeds[src.Endpoint] = append(fetcher.feeds[src.Endpoint],
			testEntry(src.Name, fmt.Sprintf("n%d", i), baseTime.Add(time.Duration(i)*time.Hour)))
	}

	opts := testOptions()
	opts.MaxEntriesPerSource = 2
	svc := newTestService(t, fetcher, &fakeExtractor{}, &fakeSummarizer{},
		[]entity.Source{src}, opts)

	digests, summary, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(digests) != 2 {
		t.Fatalf("digests = %d, want 2", len(digests))
	}
	if digests[0].Title != "Post n4" || digests[1].Title != "Post n3" {
		t.Errorf("kept %q and %q, want the two newest posts", digests[0].Title, digests[1].Title)
	}
	if summary.Items.Total != 5 || summary.Items.Skipped != 3 {
		t.Errorf("items = %+v, want 3 of 5 skipped", summary.Items)
	}
}

func TestService_Run_ItemPauseAndSingleWorker(t *testing.T) {
	src := testSource("paced")
	fetcher := newFakeFetcher()
	fetcher.feeds[src.Endpoint] = []entity.Entry{
		testEntry(src.Name, "one", baseTime),
		testEntry(src.Name, "two", baseTime.Add(time.Hour)),
		testEntry(src.Name, "three", baseTime.Add(2*time.Hour)),
	}

	opts := digest.Options{SourceConcurrency: 1, ItemConcurrency: 1, ItemPause: 10 * time.Millisecond}
	svc := newTestService(t, fetcher, &fakeExtractor{}, &fakeSummarizer{},
		[]entity.Source{src}, opts)

	start := time.Now()
	digests, _, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(digests) != 3 {
		t.Fatalf("digests = %d, want 3", len(digests))
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("run took %v, want at least 3 item pauses of 10ms", elapsed)
	}
}
