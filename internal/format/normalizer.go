// Package format turns the extractor's wildly inconsistent per-platform
// format lists into a consistent, ranked set of deliverable encodings with
// best-effort size estimation.
package format

import (
	"fmt"
	"sort"

	"mediadrop/internal/domain"
	"mediadrop/internal/extractor"
)

// Resolution-tier bitrate heuristics, used only when the extractor reports
// neither a size nor a bitrate. Values are kbps.
const (
	tier1080Kbps     = 5000
	tier720Kbps      = 2500
	tier480Kbps      = 1000
	tierFallbackKbps = 500
	audioDefaultKbps = 128
)

// Normalize converts raw extractor formats into ranked encoding descriptors.
// Every descriptor gets a size whenever the duration is known: exact and
// approximate reported sizes win, then bitrate times duration, then the
// resolution-tier table. When a platform only exposes split video and audio
// tracks, a single paired descriptor is synthesized from the best of each.
func Normalize(raw []extractor.RawFormat, durationSeconds float64, profile domain.PlatformProfile) []domain.EncodingDescriptor {
	var progressive, videoOnly, audioOnly []extractor.RawFormat
	for _, f := range raw {
		switch {
		case f.HasVideo() && f.HasAudio():
			progressive = append(progressive, f)
		case f.HasVideo():
			videoOnly = append(videoOnly, f)
		case f.HasAudio():
			audioOnly = append(audioOnly, f)
		}
	}

	var out []domain.EncodingDescriptor
	if profile.AudioOnly {
		for _, f := range audioOnly {
			out = append(out, describe(f, durationSeconds))
		}
		if len(out) == 0 {
			for _, f := range progressive {
				out = append(out, describe(f, durationSeconds))
			}
		}
	} else {
		for _, f := range progressive {
			out = append(out, describe(f, durationSeconds))
		}
		if len(out) == 0 {
			if paired, ok := synthesizePair(videoOnly, audioOnly, durationSeconds); ok {
				out = append(out, paired)
			}
		}
	}

	rank(out)
	return out
}

// describe builds one descriptor, resolving its size through the provenance
// ladder.
func describe(f extractor.RawFormat, duration float64) domain.EncodingDescriptor {
	d := domain.EncodingDescriptor{
		ID:       f.FormatID,
		Selector: f.FormatID,
		Ext:      f.Ext,
		Label:    label(f),
		HasVideo: f.HasVideo(),
		HasAudio: f.HasAudio(),
		Height:   f.Height,
	}
	d.Size, d.Provenance = resolveSize(f, duration)
	return d
}

// resolveSize walks the priority ladder: exact -> approximate -> declared
// bitrate x duration -> resolution-tier heuristic. Unknown duration with no
// reported size leaves the size unknown.
func resolveSize(f extractor.RawFormat, duration float64) (int64, domain.SizeProvenance) {
	if f.Filesize > 0 {
		return f.Filesize, domain.SizeExact
	}
	if f.FilesizeApprox > 0 {
		return f.FilesizeApprox, domain.SizeApproximate
	}
	if duration <= 0 {
		return 0, domain.SizeUnknown
	}
	if kbps := declaredKbps(f); kbps > 0 {
		return bitrateSize(kbps, duration), domain.SizeEstimated
	}
	return bitrateSize(heuristicKbps(f), duration), domain.SizeEstimated
}

// declaredKbps sums the separately reported video and audio bitrates, falling
// back to the total bitrate when components are not broken out.
func declaredKbps(f extractor.RawFormat) float64 {
	if f.VBR > 0 || f.ABR > 0 {
		return f.VBR + f.ABR
	}
	return f.TBR
}

// heuristicKbps picks the documented tier value for a format with no bitrate
// information at all.
func heuristicKbps(f extractor.RawFormat) float64 {
	if !f.HasVideo() {
		return audioDefaultKbps
	}
	kbps := float64(videoTierKbps(f.Height))
	if f.HasAudio() {
		kbps += audioDefaultKbps
	}
	return kbps
}

func videoTierKbps(height int) int {
	switch {
	case height >= 1080:
		return tier1080Kbps
	case height >= 720:
		return tier720Kbps
	case height >= 480:
		return tier480Kbps
	default:
		return tierFallbackKbps
	}
}

// bitrateSize converts kbps over a duration into bytes.
func bitrateSize(kbps, duration float64) int64 {
	return int64(kbps * 1000 / 8 * duration)
}

// synthesizePair combines the best video-only and best audio-only tracks into
// one component-pair descriptor for platforms that expose no progressive
// format. The selector names both components for the extractor to merge.
func synthesizePair(videoOnly, audioOnly []extractor.RawFormat, duration float64) (domain.EncodingDescriptor, bool) {
	if len(videoOnly) == 0 {
		return domain.EncodingDescriptor{}, false
	}
	video := bestOf(videoOnly, duration)

	d := domain.EncodingDescriptor{
		ID:       video.FormatID,
		Selector: video.FormatID,
		Ext:      video.Ext,
		Label:    label(video),
		HasVideo: true,
		Height:   video.Height,
	}
	videoSize, videoProv := resolveSize(video, duration)
	d.Size, d.Provenance = videoSize, videoProv

	if len(audioOnly) > 0 {
		audio := bestOf(audioOnly, duration)
		d.ID = video.FormatID + "+" + audio.FormatID
		d.Selector = d.ID
		d.HasAudio = true
		audioSize, audioProv := resolveSize(audio, duration)
		switch {
		case videoSize > 0 && audioSize > 0:
			d.Size = videoSize + audioSize
			d.Provenance = weakerProvenance(videoProv, audioProv)
		case videoSize+audioSize > 0:
			// One component sized, the other not: the combined figure is
			// still a usable lower bound.
			d.Size = videoSize + audioSize
			d.Provenance = domain.SizeEstimated
		default:
			d.Size, d.Provenance = 0, domain.SizeUnknown
		}
	}
	return d, true
}

// weakerProvenance demotes a combined size to the less trustworthy of its
// component provenances.
func weakerProvenance(a, b domain.SizeProvenance) domain.SizeProvenance {
	if provenanceScore(a) <= provenanceScore(b) {
		return a
	}
	return b
}

// bestOf returns the track with the largest resolved size, preferring height
// on ties so 1080p beats a smaller but equally sized track.
func bestOf(formats []extractor.RawFormat, duration float64) extractor.RawFormat {
	best := formats[0]
	bestSize, _ := resolveSize(best, duration)
	for _, f := range formats[1:] {
		size, _ := resolveSize(f, duration)
		if size > bestSize || (size == bestSize && f.Height > best.Height) {
			best, bestSize = f, size
		}
	}
	return best
}

// rank orders descriptors so reported sizes outrank estimates, and within
// equal provenance larger size (then height) comes first.
func rank(descriptors []domain.EncodingDescriptor) {
	sort.SliceStable(descriptors, func(i, j int) bool {
		a, b := descriptors[i], descriptors[j]
		sa, sb := provenanceScore(a.Provenance), provenanceScore(b.Provenance)
		if sa != sb {
			return sa > sb
		}
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		return a.Height > b.Height
	})
}

func provenanceScore(p domain.SizeProvenance) int {
	switch p {
	case domain.SizeExact, domain.SizeApproximate:
		return 2
	case domain.SizeEstimated:
		return 1
	default:
		return 0
	}
}

func label(f extractor.RawFormat) string {
	switch {
	case f.Height > 0:
		return fmt.Sprintf("%dp", f.Height)
	case f.FormatNote != "":
		return f.FormatNote
	case f.ABR > 0:
		return fmt.Sprintf("%.0fkbps", f.ABR)
	default:
		return f.Ext
	}
}

// BestSize reports the size of the top-ranked descriptor, zero when the list
// is empty or the winner's size is unknown. Used for the preview's
// best-effort total size.
func BestSize(descriptors []domain.EncodingDescriptor) int64 {
	if len(descriptors) == 0 {
		return 0
	}
	return descriptors[0].Size
}

// Find locates the descriptor whose ID or selector matches, for validating a
// requested selector against the normalized list.
func Find(descriptors []domain.EncodingDescriptor, selector string) (domain.EncodingDescriptor, bool) {
	for _, d := range descriptors {
		if d.ID == selector || d.Selector == selector {
			return d, true
		}
	}
	return domain.EncodingDescriptor{}, false
}
