package domain

// MediaReference is a user-supplied URL together with its resolved canonical
// form and the platform tag that matched it. It is built once at the request
// boundary and never mutated afterwards.
type MediaReference struct {
	InputURL     string `json:"input_url"`
	CanonicalURL string `json:"canonical_url"`
	PlatformTag  string `json:"platform"`
}

// PlatformProfile is the named configuration bundle used to parameterize
// every extractor invocation for a given platform.
type PlatformProfile struct {
	Tag           string
	UserAgent     string
	Referer       string
	Proxy         string
	CookiesFile   string
	CookieHeader  string
	ExtractorArgs []string
	AudioOnly     bool
}

// SizeProvenance records how the byte size of an encoding was obtained.
type SizeProvenance string

const (
	SizeExact       SizeProvenance = "exact"
	SizeApproximate SizeProvenance = "approximate"
	SizeEstimated   SizeProvenance = "estimated"
	SizeUnknown     SizeProvenance = "unknown"
)

// EncodingDescriptor is one deliverable variant of a media item. Selector is
// the opaque string the extractor understands; for synthesized pairs it names
// both components ("137+140").
type EncodingDescriptor struct {
	ID         string         `json:"id"`
	Selector   string         `json:"selector"`
	Ext        string         `json:"ext"`
	Label      string         `json:"label"`
	HasVideo   bool           `json:"has_video"`
	HasAudio   bool           `json:"has_audio"`
	Height     int            `json:"height,omitempty"`
	Size       int64          `json:"size,omitempty"`
	Provenance SizeProvenance `json:"size_provenance"`
}

// UnknownField is the sentinel for preview fields the extractor did not
// report. Missing numeric fields use UnknownCount.
const (
	UnknownField = "unknown"
	UnknownCount = int64(-1)
)

// MediaPreview is the read-only metadata summary returned before a download
// is started. It is derived per request and never persisted.
type MediaPreview struct {
	Title           string `json:"title"`
	ThumbnailURL    string `json:"thumbnail_url"`
	DurationSeconds int    `json:"duration_seconds"`
	Uploader        string `json:"uploader"`
	ViewCount       int64  `json:"view_count"`
	TotalSize       int64  `json:"total_size,omitempty"`
}
