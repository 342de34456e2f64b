// Package stubbin writes throwaway shell scripts that stand in for yt-dlp in tests.
package stubbin

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// RequirePOSIX skips t on platforms without /bin/sh.
func RequirePOSIX(t testing.TB) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub binaries are POSIX shell scripts")
	}
}

// Write creates an executable script named yt-dlp in a fresh temp dir and
// returns its path. body runs under /bin/sh with the arguments yt-dlp would get.
func Write(t testing.TB, body string) string {
	t.Helper()
	RequirePOSIX(t)

	path := filepath.Join(t.TempDir(), "yt-dlp")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub binary: %v", err)
	}
	return path
}

// RecordArgs is a script fragment that writes one argument per line to file.
func RecordArgs(file string) string {
	return `printf '%s\n' "$@" > '` + file + `'`
}

// CopyCookies is a script fragment that copies the file passed with
// --cookies to dest, so tests can inspect it after the artifact is gone.
func CopyCookies(dest string) string {
	return `prev=""
for a in "$@"; do
  if [ "$prev" = "--cookies" ]; then cp "$a" '` + dest + `'; fi
  prev="$a"
done`
}
