package feedwatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"healthbrief/types"
)

// fakeClassifier marks any candidate containing duplicateMarker as covered.
type fakeClassifier struct {
	duplicateMarker string
	matchID         string
	err             error
}

func (f *fakeClassifier) Classify(ctx context.Context, candidateText string) (*types.SimilarityResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := &types.SimilarityResult{
		Classification: types.ClassificationUnique,
		Score:          0.2,
		CheckedAt:      time.Now(),
	}
	if f.duplicateMarker != "" && strings.Contains(candidateText, f.duplicateMarker) {
		result.Classification = types.ClassificationDuplicate
		result.MatchedArticleID = f.matchID
		result.Score = 0.93
	}
	return result, nil
}

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Example Health News</title>
<link>https://health.example.com</link>
<description>Guidance updates</description>
<item>
<title>New Guidance on Blood Pressure</title>
<link>https://health.example.com/bp</link>
<guid>bp-001</guid>
<pubDate>Mon, 18 Aug 2025 10:00:00 GMT</pubDate>
<description>Updated targets for adults.</description>
</item>
<item>
<title>Community Garden Opens</title>
<link>https://health.example.com/garden</link>
<pubDate>Tue, 19 Aug 2025 09:00:00 GMT</pubDate>
<description>A new garden for the neighborhood.</description>
</item>
</channel>
</rss>`

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
}

func newTestWatcher(feedURL string, classifier Classifier) *Watcher {
	w := NewWatcher([]FeedConfig{{Name: "Test Feed", URL: feedURL}}, classifier)
	w.extract = func(pageURL string) (string, error) {
		if strings.HasSuffix(pageURL, "/bp") {
			return "Blood pressure targets changed for adults over sixty.", nil
		}
		return "", fmt.Errorf("page not available")
	}
	return w
}

func TestScanClassifiesItems(t *testing.T) {
	srv := serveFeed(t, feedXML)
	defer srv.Close()

	classifier := &fakeClassifier{duplicateMarker: "Blood Pressure", matchID: "art-9"}
	w := newTestWatcher(srv.URL, classifier)

	report, err := w.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(report.Items) != 2 {
		t.Fatalf("items = %d; want 2", len(report.Items))
	}
	if report.Covered != 1 || report.Novel != 1 || report.Failed != 0 {
		t.Errorf("covered/novel/failed = %d/%d/%d; want 1/1/0",
			report.Covered, report.Novel, report.Failed)
	}

	bp := report.Items[0]
	if bp.ID != "bp-001" {
		t.Errorf("ID = %q; want feed GUID bp-001", bp.ID)
	}
	if !bp.Covered || bp.MatchedArticleID != "art-9" || bp.Score != 0.93 {
		t.Errorf("covered item = %+v", bp)
	}
	want := time.Date(2025, 8, 18, 10, 0, 0, 0, time.UTC)
	if !bp.PublishedAt.Equal(want) {
		t.Errorf("published = %v; want %v", bp.PublishedAt, want)
	}

	garden := report.Items[1]
	if garden.Covered {
		t.Errorf("garden item flagged as covered: %+v", garden)
	}
	if len(garden.ID) != 16 {
		t.Errorf("generated ID = %q; want 16 hex chars", garden.ID)
	}
	// Extraction failed for this URL; classification fell back to the summary.
	if garden.ExtractionError == "" {
		t.Error("extraction error was not recorded")
	}
}

func TestScanRecordsFeedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := newTestWatcher(srv.URL, &fakeClassifier{})
	report, err := w.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("errors = %v; want one feed error", report.Errors)
	}
	if len(report.Items) != 0 {
		t.Errorf("items = %d; want 0", len(report.Items))
	}
}

func TestScanCountsClassifierFailures(t *testing.T) {
	srv := serveFeed(t, feedXML)
	defer srv.Close()

	w := newTestWatcher(srv.URL, &fakeClassifier{err: errors.New("embeddings unavailable")})
	report, err := w.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if report.Failed != 2 {
		t.Errorf("failed = %d; want 2", report.Failed)
	}
	if report.Novel != 0 || report.Covered != 0 {
		t.Errorf("novel/covered = %d/%d; want 0/0", report.Novel, report.Covered)
	}
	if len(report.Errors) != 2 {
		t.Errorf("errors = %v; want one per item", report.Errors)
	}
}

func TestScanFailsItemsWithNoText(t *testing.T) {
	bare := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Bare</title><link>https://x.example.com</link><description>d</description>
<item><title>Untitled Notice</title><link>https://x.example.com/notice</link></item>
</channel></rss>`
	srv := serveFeed(t, bare)
	defer srv.Close()

	w := newTestWatcher(srv.URL, &fakeClassifier{})
	report, err := w.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("failed = %d; want 1 for item with no text", report.Failed)
	}
}

func TestFetchFeedLimitsItemCount(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Big</title><link>https://big.example.com</link><description>d</description>`)
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&sb, `<item><title>Item %d</title><link>https://big.example.com/%d</link><description>text</description></item>`, i, i)
	}
	sb.WriteString(`</channel></rss>`)

	srv := serveFeed(t, sb.String())
	defer srv.Close()

	w := NewWatcher(nil, &fakeClassifier{})
	items, err := w.fetchFeed(context.Background(), FeedConfig{Name: "Big", URL: srv.URL})
	if err != nil {
		t.Fatalf("fetchFeed failed: %v", err)
	}
	if len(items) != DefaultCount {
		t.Errorf("items = %d; want %d", len(items), DefaultCount)
	}
}

func TestResolveFeed(t *testing.T) {
	if got := ResolveFeed("cdc"); got.Name != "CDC Newsroom" {
		t.Errorf("preset cdc resolved to %+v", got)
	}
	direct := ResolveFeed("https://health.example.com/rss")
	if direct.URL != "https://health.example.com/rss" || direct.Name != direct.URL {
		t.Errorf("direct URL resolved to %+v", direct)
	}
}

func TestGenerateID(t *testing.T) {
	a := generateID("https://health.example.com/bp")
	b := generateID("https://health.example.com/bp")
	c := generateID("https://health.example.com/garden")
	if a != b {
		t.Errorf("same input produced %q and %q", a, b)
	}
	if a == c {
		t.Error("different inputs produced the same ID")
	}
	if len(a) != 16 {
		t.Errorf("ID length = %d; want 16", len(a))
	}
}
