package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mediadrop/internal/domain"
)

func newTestClient(r Runner) *Client {
	c := NewClient(r, time.Second, zerolog.Nop())
	c.backoff = time.Millisecond
	return c
}

func TestExtractParsesMetadata(t *testing.T) {
	doc := `{"id":"abc","title":"A Video","thumbnail":"https://cdn/t.jpg","duration":120.0,` +
		`"uploader":"someone","view_count":42,` +
		`"formats":[{"format_id":"22","ext":"mp4","vcodec":"avc1","acodec":"mp4a","height":720,"filesize":1048576}]}`
	runner := &fakeRunner{runs: []fakeRun{{out: []byte(doc)}}}

	meta, err := newTestClient(runner).Extract(context.Background(), testRef, domain.PlatformProfile{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if meta.Title != "A Video" || meta.Duration != 120 || len(meta.Formats) != 1 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if !meta.Formats[0].HasVideo() || !meta.Formats[0].HasAudio() {
		t.Fatal("format track detection wrong")
	}
}

func TestExtractRetriesTransientFailure(t *testing.T) {
	runner := &fakeRunner{runs: []fakeRun{
		{err: errors.New("yt-dlp: exit status 1: ERROR: unable to download webpage")},
		{err: errors.New("yt-dlp: exit status 1: ERROR: unable to download webpage")},
		{out: []byte(`{"title":"third time lucky","duration":10}`)},
	}}

	meta, err := newTestClient(runner).Extract(context.Background(), testRef, domain.PlatformProfile{})
	if err != nil {
		t.Fatalf("Extract after retries: %v", err)
	}
	if meta.Title != "third time lucky" {
		t.Fatalf("Title = %q", meta.Title)
	}
	if runner.calls != 3 {
		t.Fatalf("runner invoked %d times, want 3", runner.calls)
	}
}

func TestExtractExhaustedRetriesSurfacePreviewFailed(t *testing.T) {
	upstream := errors.New("ERROR: Unsupported URL: https://example.com")
	runner := &fakeRunner{runs: []fakeRun{{err: upstream}, {err: upstream}, {err: upstream}}}

	_, err := newTestClient(runner).Extract(context.Background(), testRef, domain.PlatformProfile{})
	if !errors.Is(err, domain.ErrPreviewFailed) {
		t.Fatalf("err = %v, want ErrPreviewFailed", err)
	}
	if runner.calls != 3 {
		t.Fatalf("runner invoked %d times, want 3", runner.calls)
	}
}

func TestExtractAuthFailureIsNotRetried(t *testing.T) {
	runner := &fakeRunner{runs: []fakeRun{
		{err: errors.New("ERROR: Login required to access this content")},
		{out: []byte(`{"title":"should never get here"}`)},
	}}

	_, err := newTestClient(runner).Extract(context.Background(), testRef, domain.PlatformProfile{})
	if !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("err = %v, want ErrAuthRequired", err)
	}
	if runner.calls != 1 {
		t.Fatalf("runner invoked %d times, want 1 (no retry on auth)", runner.calls)
	}
}

func TestExtractMalformedJSON(t *testing.T) {
	runner := &fakeRunner{runs: []fakeRun{{out: []byte("not json")}}}
	_, err := newTestClient(runner).Extract(context.Background(), testRef, domain.PlatformProfile{})
	if !errors.Is(err, domain.ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
}

func TestBuildPreviewSentinels(t *testing.T) {
	meta := &Metadata{Duration: 33, ViewCount: domain.UnknownCount}
	p := BuildPreview(meta, 0)
	if p.Title != domain.UnknownField || p.ThumbnailURL != domain.UnknownField || p.Uploader != domain.UnknownField {
		t.Fatalf("missing fields not degraded to sentinels: %+v", p)
	}
	if p.ViewCount != domain.UnknownCount {
		t.Fatalf("ViewCount = %d", p.ViewCount)
	}
	if p.DurationSeconds != 33 {
		t.Fatalf("DurationSeconds = %d", p.DurationSeconds)
	}
}

func TestBuildPreviewChannelFallsBackForUploader(t *testing.T) {
	p := BuildPreview(&Metadata{Title: "t", Channel: "chan"}, 2048)
	if p.Uploader != "chan" {
		t.Fatalf("Uploader = %q, want channel fallback", p.Uploader)
	}
	if p.TotalSize != 2048 {
		t.Fatalf("TotalSize = %d", p.TotalSize)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"login required", errors.New("ERROR: Login required"), domain.ErrAuthRequired},
		{"sign in wall", errors.New("ERROR: Sign in to confirm you're not a bot"), domain.ErrAuthRequired},
		{"http 403", errors.New("HTTP Error 403: Forbidden"), domain.ErrAuthRequired},
		{"deadline", context.DeadlineExceeded, domain.ErrTimeout},
		{"generic", errors.New("ERROR: Unsupported URL"), domain.ErrExtractionFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("Classify(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
