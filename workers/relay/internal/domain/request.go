package domain

import "strings"

// InfoRequest is the body of POST /info.
type InfoRequest struct {
	URL     string  `json:"url"`
	Cookies *string `json:"cookies,omitempty"`
}

// Validate checks that a URL was supplied.
func (r InfoRequest) Validate() error {
	return validateURL(r.URL)
}

// DownloadRequest is the body of POST /download. FormatID may also arrive
// as the format_id query parameter.
type DownloadRequest struct {
	URL      string  `json:"url"`
	Cookies  *string `json:"cookies,omitempty"`
	FormatID string  `json:"format_id,omitempty"`
}

// Validate checks that a URL was supplied.
func (r DownloadRequest) Validate() error {
	return validateURL(r.URL)
}

// Selector returns the format selector to hand to the downloader, or
// fallback when none was requested.
func (r DownloadRequest) Selector(fallback string) string {
	if id := strings.TrimSpace(r.FormatID); id != "" {
		return id
	}
	return fallback
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrInvalidURL
	}
	return nil
}
