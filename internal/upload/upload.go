// Package upload mirrors compiled artifacts to a destination. Uploads are
// idempotent and retried with bounded backoff; exhausted retries surface as
// an UploadError that callers downgrade to a warning.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/metrics"
	"git.home.luguber.info/inful/texbuilder/internal/retry"
)

// Uploader transfers one file. name is the slash-separated destination
// path relative to the uploader's root.
type Uploader interface {
	Upload(ctx context.Context, local, name string) error
}

// DirUploader copies artifacts into a mirror directory.
type DirUploader struct {
	Root string
}

// Upload copies local to Root/name atomically.
func (d DirUploader) Upload(ctx context.Context, local, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest := filepath.Join(d.Root, filepath.FromSlash(name))
	if !strings.HasPrefix(dest, filepath.Clean(d.Root)+string(filepath.Separator)) {
		return errors.ValidationError("destination escapes the upload directory").
			WithContext("name", name).
			WithContext("root", d.Root).
			Build()
	}
	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	return atomic.WriteFile(dest, f)
}

// Publisher uploads artifacts under a retry policy.
type Publisher struct {
	uploader Uploader
	policy   retry.Policy
	base     string
	recorder metrics.Recorder
}

// NewPublisher returns a publisher. Artifacts under base keep their relative
// path at the destination; others are uploaded by file name.
func NewPublisher(u Uploader, policy retry.Policy, base string, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Publisher{uploader: u, policy: policy, base: base, recorder: recorder}
}

// FromConfig returns a directory publisher, or nil when uploads are disabled.
func FromConfig(cfg config.UploadConfig, base string, recorder metrics.Recorder) *Publisher {
	if cfg.Dir == "" {
		return nil
	}
	return NewPublisher(DirUploader{Root: cfg.Dir}, retry.FromConfig(cfg.Retry), base, recorder)
}

// Name returns the destination name of artifact.
func (p *Publisher) Name(artifact string) string {
	if p.base != "" {
		if rel, err := filepath.Rel(p.base, artifact); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(artifact)
}

// Publish uploads artifact, retrying transient failures.
func (p *Publisher) Publish(ctx context.Context, artifact string) error {
	name := p.Name(artifact)
	attempts := 0
	err := p.policy.Do(ctx, func(attempt int) error {
		attempts = attempt + 1
		if attempt > 0 {
			p.recorder.IncUploadRetry()
			slog.Debug("Retrying upload", logfields.File(name), logfields.Attempt(attempt))
		}
		return p.uploader.Upload(ctx, artifact, name)
	})
	if err == nil {
		return nil
	}
	p.recorder.IncUploadRetryExhausted()
	slog.Warn("Upload failed", logfields.File(name), logfields.Error(err))
	return errors.WrapError(err, errors.CategoryUpload,
		fmt.Sprintf("upload of %s failed after %d attempts", name, attempts)).
		WithContext("artifact", artifact).
		Build()
}
