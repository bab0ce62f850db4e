package source

import "context"

// Rendered is the outcome of a headless-browser fetch. Navigation
// failures come back as an empty Text with Err set, never as a Go
// error, so adapters can choose their own fallback (e.g. an archival
// mirror) without special-casing.
type Rendered struct {
	Text       string  // extracted main content
	HTML       string  // raw markup at settle time
	FinalURL   string
	SolverCost float64 // CAPTCHA solver spend on this fetch
	Err        string
}

// RenderedFetcher is the browser subsystem capability consumed by
// adapters that face bot detection or paywalls.
type RenderedFetcher interface {
	FetchRendered(ctx context.Context, url string) (*Rendered, error)
}
