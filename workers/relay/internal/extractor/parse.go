package extractor

import (
	"encoding/json"
	"fmt"

	"mediarelay/workers/relay/internal/domain"
)

const (
	codecNone         = "none"
	unknownResolution = "unknown"
)

// rawInfo is the subset of yt-dlp's info dict the relay reads.
type rawInfo struct {
	Title     *string     `json:"title"`
	Thumbnail *string     `json:"thumbnail"`
	Duration  *float64    `json:"duration"`
	Formats   []RawFormat `json:"formats"`
}

// RawFormat is one entry of the info dict's "formats" list.
type RawFormat struct {
	FormatID   string   `json:"format_id"`
	Ext        string   `json:"ext"`
	Resolution *string  `json:"resolution"`
	Filesize   *float64 `json:"filesize"`
	FormatNote *string  `json:"format_note"`
	VCodec     *string  `json:"vcodec"`
	ACodec     *string  `json:"acodec"`
}

// Combined reports whether f carries both video and audio. Only an explicit
// "none" rules a stream out; a missing codec field does not.
func (f RawFormat) Combined() bool {
	return !isNone(f.VCodec) && !isNone(f.ACodec)
}

func isNone(codec *string) bool {
	return codec != nil && *codec == codecNone
}

// Parse decodes a --dump-single-json document.
func Parse(data []byte) (*domain.MediaMetadata, error) {
	var info rawInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode info json: %w", err)
	}

	return &domain.MediaMetadata{
		Title:     info.Title,
		Thumbnail: info.Thumbnail,
		Duration:  info.Duration,
		Formats:   CombinedFormats(info.Formats),
	}, nil
}

// CombinedFormats keeps the combined entries in the extractor's own order.
// The result is never nil.
func CombinedFormats(formats []RawFormat) []domain.FormatDescriptor {
	out := make([]domain.FormatDescriptor, 0, len(formats))
	for _, f := range formats {
		if !f.Combined() {
			continue
		}

		resolution := unknownResolution
		if f.Resolution != nil && *f.Resolution != "" {
			resolution = *f.Resolution
		}

		var size *int64
		if f.Filesize != nil {
			n := int64(*f.Filesize)
			size = &n
		}

		out = append(out, domain.FormatDescriptor{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			Resolution: resolution,
			Filesize:   size,
			Note:       f.FormatNote,
		})
	}
	return out
}
