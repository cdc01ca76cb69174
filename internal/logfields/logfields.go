package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyPath       = "path"
	KeyFile       = "file"
	KeyVariant    = "variant"
	KeyVersion    = "format_version"
	KeyKey        = "key"
	KeyZone       = "zone"
	KeyManifest   = "manifest"
	KeyEngine     = "engine"
	KeyWorker     = "worker"
	KeyAttempt    = "attempt"
	KeyStatus     = "status"
	KeyCount      = "count"
	KeySubject    = "subject"
	KeyTarget     = "target"
	KeySchedule   = "schedule_name"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
	KeyMethod     = "method"
	KeyRemoteAddr = "remote_addr"
	KeyReason     = "reason"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Variant(v string) slog.Attr      { return slog.String(KeyVariant, v) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Key(k string) slog.Attr          { return slog.String(KeyKey, k) }
func Zone(z string) slog.Attr         { return slog.String(KeyZone, z) }
func Manifest(m string) slog.Attr     { return slog.String(KeyManifest, m) }
func Engine(e string) slog.Attr       { return slog.String(KeyEngine, e) }
func Worker(id int) slog.Attr         { return slog.Int(KeyWorker, id) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Status(s string) slog.Attr       { return slog.String(KeyStatus, s) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func Target(t string) slog.Attr       { return slog.String(KeyTarget, t) }
func ScheduleName(n string) slog.Attr { return slog.String(KeySchedule, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemoteAddr, a) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }

// Duration records d in milliseconds under KeyDurationMS.
func Duration(d time.Duration) slog.Attr {
	return DurationMS(float64(d) / float64(time.Millisecond))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
