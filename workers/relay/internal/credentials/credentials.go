// Package credentials turns cookie blobs into request-scoped temp files.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"mediarelay/shared/observability/types"
)

const maxIDInName = 36

// Materializer writes cookie blobs under dir. An empty dir means os.TempDir().
type Materializer struct {
	dir     string
	logger  types.Logger
	metrics types.Metrics
}

// NewMaterializer creates a Materializer.
func NewMaterializer(dir string, logger types.Logger, metrics types.Metrics) *Materializer {
	return &Materializer{
		dir:     dir,
		logger:  logger,
		metrics: metrics,
	}
}

// Materialize writes blob verbatim to a uniquely named file. It returns nil
// when blob is absent or empty, and also when the file cannot be written:
// the request then proceeds without credentials. A nil *Artifact is safe to
// use.
func (m *Materializer) Materialize(ctx context.Context, requestID string, blob *string) *Artifact {
	if blob == nil {
		return nil
	}
	if strings.TrimSpace(*blob) == "" {
		m.logger.Warn(ctx, "Empty cookies supplied, proceeding without credentials", types.Fields{
			"request_id": requestID,
		})
		return nil
	}

	path, err := m.write(requestID, *blob)
	if err != nil {
		m.metrics.RecordError("credentials_write", "write_failed")
		m.logger.Error(ctx, "Failed to write cookie file, proceeding without credentials", err, types.Fields{
			"request_id": requestID,
			"dir":        m.dir,
		})
		return nil
	}

	m.metrics.RecordSuccess("credentials_write")
	m.metrics.RecordFileSize("cookies", int64(len(*blob)))
	m.logger.Debug(ctx, "Cookie file written", types.Fields{
		"request_id": requestID,
		"path":       path,
	})

	return &Artifact{
		path:    path,
		ctx:     context.WithoutCancel(ctx),
		logger:  m.logger,
		metrics: m.metrics,
	}
}

func (m *Materializer) write(requestID, blob string) (string, error) {
	f, err := os.CreateTemp(m.dir, fmt.Sprintf("cookies-%s-*.txt", safeID(requestID)))
	if err != nil {
		return "", fmt.Errorf("create cookie file: %w", err)
	}

	if _, err := f.WriteString(blob); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write cookie file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close cookie file: %w", err)
	}

	return f.Name(), nil
}

// safeID keeps request IDs (which clients may choose) out of path syntax.
func safeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if b.Len() >= maxIDInName {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "req"
	}
	return b.String()
}

// Artifact is one cookie file owned by one request.
type Artifact struct {
	path    string
	ctx     context.Context
	logger  types.Logger
	metrics types.Metrics

	once sync.Once
}

// Path returns the file path, or "" for a nil Artifact.
func (a *Artifact) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}

// Release deletes the file. Only the first call does any work; failures are
// logged and swallowed.
func (a *Artifact) Release() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		if err := Remove(a.path); err != nil {
			a.metrics.RecordError("credentials_remove", "remove_failed")
			a.logger.Warn(a.ctx, "Failed to remove cookie file", types.Fields{
				"path":  a.path,
				"error": err.Error(),
			})
			return
		}
		a.logger.Debug(a.ctx, "Cookie file removed", types.Fields{
			"path": a.path,
		})
	})
}

// Remove deletes path. A path that is already gone is not an error.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
