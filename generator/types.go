package generator

// Request is the input for one content generation run.
type Request struct {
	// Title is the original video title from the queue.
	Title string
	// Context is the transcript or fallback description text.
	Context string
}

// Content is the structured model output published as a post.
type Content struct {
	SEOTitle string `json:"seo_title"`
	HTMLBody string `json:"html_body"`
}

// Tier records which parsing strategy produced a Content.
type Tier int

const (
	// TierJSON means the whole response was a JSON object.
	TierJSON Tier = iota + 1
	// TierEmbedded means a JSON object was found inside surrounding text.
	TierEmbedded
	// TierRaw means the response was used verbatim as the body.
	TierRaw
)

func (t Tier) String() string {
	switch t {
	case TierJSON:
		return "json"
	case TierEmbedded:
		return "embedded-json"
	case TierRaw:
		return "raw"
	default:
		return "unknown"
	}
}
