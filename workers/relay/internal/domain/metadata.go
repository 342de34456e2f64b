package domain

import "io"

// MediaMetadata is what /info returns. Optional fields encode as null when
// the extractor did not report them.
type MediaMetadata struct {
	Title     *string            `json:"title"`
	Thumbnail *string            `json:"thumbnail"`
	Duration  *float64           `json:"duration"`
	Formats   []FormatDescriptor `json:"formats"`
}

// FormatDescriptor describes one rendition that carries both video and audio.
type FormatDescriptor struct {
	FormatID   string  `json:"format_id"`
	Ext        string  `json:"ext"`
	Resolution string  `json:"resolution"`
	Filesize   *int64  `json:"filesize"`
	Note       *string `json:"note"`
}

// MediaStream is the byte stream of a running download. WriteTo copies it
// to the client; Close must always be called and tears down the child.
type MediaStream interface {
	io.WriterTo
	io.Closer
}
