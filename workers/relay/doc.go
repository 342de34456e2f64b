/*
Package relay is the YouTube downloader backend: a small HTTP service that
fronts yt-dlp for a browser client.

The service is responsible for:
  - Probing a video URL for its title, thumbnail, duration and the formats
    that carry both audio and video
  - Streaming the chosen rendition straight from yt-dlp's stdout to the client
  - Turning optional cookie jars into short-lived files for sign-in gated videos
  - Killing the downloader's process tree when the client goes away

Architecture

	├── cmd/                    # Application entry point
	├── internal/
	│   ├── app/               # Route and dependency assembly
	│   ├── worker/            # handler.Worker implementations per route
	│   ├── service/           # Request orchestration
	│   ├── domain/            # Requests, metadata and error codes
	│   ├── credentials/       # Cookie artifact lifecycle
	│   ├── extractor/         # yt-dlp metadata probe and format filter
	│   ├── relay/             # yt-dlp download child and its stream
	│   ├── process/           # Process tree control and stderr capture
	│   └── stubbin/           # Fake yt-dlp scripts for tests
	└── mocks/                 # testify mocks of the services

Usage

	POST /info
	Content-Type: application/json

	{"url": "https://www.youtube.com/watch?v=abc", "cookies": null}

returns

	{
	    "title": "...",
	    "thumbnail": "https://...",
	    "duration": 213,
	    "formats": [
	        {"format_id": "18", "ext": "mp4", "resolution": "640x360", "filesize": 1048576, "note": "360p"}
	    ]
	}

A download is either a POST with the same body plus an optional format_id,
or a GET carrying url and format_id in the query string:

	GET /download?url=https://www.youtube.com/watch?v=abc&format_id=18

The response is the raw media as video/mp4 with an attachment disposition.
Errors are JSON objects with a single "detail" field.

Configuration

Settings come from the environment, optionally seeded by .env files in the
working directory. The most relevant are PORT, YTDLP_PATH, RELAY_TIMEOUT,
RELAY_MAX_CONCURRENT, RATE_LIMIT_RPS and CREDENTIALS_DIR.
*/
package relay
