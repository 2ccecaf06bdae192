package format

import (
	"testing"

	"mediadrop/internal/domain"
	"mediadrop/internal/extractor"
)

func TestNormalizeExactSizeWinsUnchanged(t *testing.T) {
	raw := []extractor.RawFormat{
		{FormatID: "22", Ext: "mp4", Vcodec: "avc1", Acodec: "mp4a", Height: 720, Filesize: 123456789, TBR: 9999},
	}
	out := Normalize(raw, 120, domain.PlatformProfile{})
	if len(out) != 1 {
		t.Fatalf("got %d descriptors", len(out))
	}
	if out[0].Size != 123456789 || out[0].Provenance != domain.SizeExact {
		t.Fatalf("exact size not preserved: %+v", out[0])
	}
}

func TestNormalizeApproximateBeforeEstimate(t *testing.T) {
	raw := []extractor.RawFormat{
		{FormatID: "18", Ext: "mp4", Vcodec: "avc1", Acodec: "mp4a", Height: 360, FilesizeApprox: 5000000, TBR: 700},
	}
	out := Normalize(raw, 60, domain.PlatformProfile{})
	if out[0].Size != 5000000 || out[0].Provenance != domain.SizeApproximate {
		t.Fatalf("approximate size not used: %+v", out[0])
	}
}

func TestNormalizeBitrateTimesDuration(t *testing.T) {
	raw := []extractor.RawFormat{
		{FormatID: "hls-1", Ext: "mp4", Vcodec: "avc1", Acodec: "mp4a", Height: 480, VBR: 900, ABR: 100},
	}
	out := Normalize(raw, 100, domain.PlatformProfile{})
	// (900+100) kbps * 100s / 8 = 12_500_000 bytes
	if out[0].Size != 12500000 || out[0].Provenance != domain.SizeEstimated {
		t.Fatalf("bitrate estimation wrong: %+v", out[0])
	}
}

func TestNormalizeHeuristicTiers(t *testing.T) {
	tests := []struct {
		height int
		kbps   int
	}{
		{2160, 5000},
		{1080, 5000},
		{720, 2500},
		{480, 1000},
		{240, 500},
	}
	for _, tc := range tests {
		raw := []extractor.RawFormat{
			{FormatID: "x", Ext: "mp4", Vcodec: "avc1", Acodec: "mp4a", Height: tc.height},
		}
		out := Normalize(raw, 8, domain.PlatformProfile{})
		want := int64((tc.kbps + 128) * 1000) // (tier + audio default) kbps * 8s / 8
		if out[0].Size != want {
			t.Fatalf("height %d: size = %d, want %d", tc.height, out[0].Size, want)
		}
		if out[0].Provenance != domain.SizeEstimated {
			t.Fatalf("height %d: provenance = %s", tc.height, out[0].Provenance)
		}
	}
}

func TestNormalizeUnknownDurationLeavesSizeUnknown(t *testing.T) {
	raw := []extractor.RawFormat{
		{FormatID: "live", Ext: "mp4", Vcodec: "avc1", Acodec: "mp4a", Height: 720},
	}
	out := Normalize(raw, 0, domain.PlatformProfile{})
	if out[0].Size != 0 || out[0].Provenance != domain.SizeUnknown {
		t.Fatalf("unknown duration must not fabricate a size: %+v", out[0])
	}
}

func TestNormalizeSynthesizesComponentPair(t *testing.T) {
	// The adaptive-only scenario: 1080p video-only with no size info plus a
	// 128kbps audio-only track, duration 120s.
	raw := []extractor.RawFormat{
		{FormatID: "137", Ext: "mp4", Vcodec: "avc1", Acodec: "none", Height: 1080},
		{FormatID: "140", Ext: "m4a", Vcodec: "none", Acodec: "mp4a", ABR: 128},
	}
	out := Normalize(raw, 120, domain.PlatformProfile{})
	if len(out) != 1 {
		t.Fatalf("got %d descriptors, want 1 synthesized pair", len(out))
	}
	d := out[0]
	if d.Selector != "137+140" {
		t.Fatalf("Selector = %q, want 137+140", d.Selector)
	}
	if !d.HasVideo || !d.HasAudio {
		t.Fatalf("pair must carry both tracks: %+v", d)
	}
	// (5000 video tier + 128 audio) kbps * 120s / 8
	want := int64(5000*1000/8*120) + int64(128*1000/8*120)
	if d.Size != want {
		t.Fatalf("Size = %d, want %d", d.Size, want)
	}
	if d.Provenance != domain.SizeEstimated {
		t.Fatalf("Provenance = %s", d.Provenance)
	}
}

func TestNormalizePrefersProgressiveOverComponents(t *testing.T) {
	raw := []extractor.RawFormat{
		{FormatID: "137", Ext: "mp4", Vcodec: "avc1", Acodec: "none", Height: 1080, Filesize: 900},
		{FormatID: "22", Ext: "mp4", Vcodec: "avc1", Acodec: "mp4a", Height: 720, Filesize: 500},
	}
	out := Normalize(raw, 60, domain.PlatformProfile{})
	if len(out) != 1 || out[0].ID != "22" {
		t.Fatalf("progressive format should win: %+v", out)
	}
}

func TestNormalizeAudioOnlyPlatform(t *testing.T) {
	raw := []extractor.RawFormat{
		{FormatID: "http_mp3", Ext: "mp3", Vcodec: "none", Acodec: "mp3", ABR: 128},
		{FormatID: "22", Ext: "mp4", Vcodec: "avc1", Acodec: "mp4a", Height: 720, Filesize: 500},
	}
	out := Normalize(raw, 200, domain.PlatformProfile{AudioOnly: true})
	if len(out) != 1 || out[0].ID != "http_mp3" {
		t.Fatalf("audio platform must select audio tracks: %+v", out)
	}
	if out[0].HasVideo {
		t.Fatal("audio descriptor claims video")
	}
}

func TestNormalizeRankingProvenanceThenSize(t *testing.T) {
	raw := []extractor.RawFormat{
		{FormatID: "est-big", Ext: "mp4", Vcodec: "avc1", Acodec: "mp4a", Height: 1080},                      // estimated, large
		{FormatID: "exact-small", Ext: "mp4", Vcodec: "avc1", Acodec: "mp4a", Height: 360, Filesize: 100},   // exact, tiny
		{FormatID: "exact-big", Ext: "mp4", Vcodec: "avc1", Acodec: "mp4a", Height: 720, Filesize: 900_000}, // exact, large
	}
	out := Normalize(raw, 60, domain.PlatformProfile{})
	got := []string{out[0].ID, out[1].ID, out[2].ID}
	want := []string{"exact-big", "exact-small", "est-big"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ranking = %v, want %v", got, want)
		}
	}
}

func TestNormalizeEveryDescriptorSizedWhenDurationKnown(t *testing.T) {
	raw := []extractor.RawFormat{
		{FormatID: "a", Ext: "mp4", Vcodec: "avc1", Acodec: "mp4a", Height: 1080, Filesize: 1},
		{FormatID: "b", Ext: "mp4", Vcodec: "avc1", Acodec: "mp4a", Height: 720, FilesizeApprox: 2},
		{FormatID: "c", Ext: "mp4", Vcodec: "avc1", Acodec: "mp4a", Height: 480, TBR: 800},
		{FormatID: "d", Ext: "mp4", Vcodec: "avc1", Acodec: "mp4a", Height: 144},
	}
	out := Normalize(raw, 90, domain.PlatformProfile{})
	for _, d := range out {
		if d.Size <= 0 {
			t.Fatalf("descriptor %s has no size despite known duration", d.ID)
		}
		if d.Provenance == domain.SizeUnknown {
			t.Fatalf("descriptor %s has unknown provenance despite known duration", d.ID)
		}
	}
}

func TestNormalizeNoFormats(t *testing.T) {
	if out := Normalize(nil, 60, domain.PlatformProfile{}); len(out) != 0 {
		t.Fatalf("no raw formats must yield no descriptors, got %+v", out)
	}
}

func TestFind(t *testing.T) {
	list := []domain.EncodingDescriptor{{ID: "137+140", Selector: "137+140"}, {ID: "22", Selector: "22"}}
	if _, ok := Find(list, "22"); !ok {
		t.Fatal("Find missed an existing selector")
	}
	if _, ok := Find(list, "999"); ok {
		t.Fatal("Find matched a selector that does not exist")
	}
}
