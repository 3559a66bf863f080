package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// envelopeSchemaVersion identifies the on-disk cache format.
const envelopeSchemaVersion = 1

// lockRetryInterval is how often we re-attempt the exclusive-create lock.
const lockRetryInterval = 100 * time.Millisecond

// DefaultLockTimeout bounds how long we wait on another process's refresh.
const DefaultLockTimeout = 30 * time.Second

// Envelope is the persisted remote-cache artifact.
type Envelope struct {
	SchemaVersion int             `json:"schema_version"`
	SourceURL     string          `json:"source_url"`
	FetchedAt     time.Time       `json:"fetched_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	Payload       json.RawMessage `json:"payload"`
}

// FetchFunc retrieves the raw catalog body from a URL. Swappable in tests.
type FetchFunc func(url string, timeout time.Duration) ([]byte, error)

// RemoteOptions configures the remote pricing fetch.
type RemoteOptions struct {
	URL         string
	Timeout     time.Duration
	CachePath   string
	TTL         time.Duration
	AllowStale  bool
	LockTimeout time.Duration
	Fetch       FetchFunc // defaults to an HTTP GET
	Now         func() time.Time
}

func (o *RemoteOptions) defaults() {
	if o.LockTimeout <= 0 {
		o.LockTimeout = DefaultLockTimeout
	}
	if o.Fetch == nil {
		o.Fetch = httpFetch
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

func httpFetch(url string, timeout time.Duration) ([]byte, error) {
	client := &http.Client{Timeout: timeout}
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "ocmon/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// GetRemotePayload returns the remote pricing catalog, served from the cache
// when fresh. On a stale or missing cache it takes a cross-process file lock,
// re-checks freshness, fetches, and rewrites the cache atomically. Every
// failure degrades: to the stale cache when allowed, otherwise to nil. It
// never returns an error to the caller beyond the nil payload.
func GetRemotePayload(opts RemoteOptions) []byte {
	opts.defaults()
	now := opts.Now().UTC()

	envelope := loadEnvelope(opts.CachePath)
	if envelope != nil && now.Before(envelope.ExpiresAt) {
		return envelope.Payload
	}

	lockPath := opts.CachePath + ".lock"
	if !acquireLock(lockPath, opts.LockTimeout) {
		if envelope != nil && opts.AllowStale {
			return envelope.Payload
		}
		return nil
	}
	defer releaseLock(lockPath)

	// Another process may have refreshed the cache while we waited.
	envelope = loadEnvelope(opts.CachePath)
	if envelope != nil && now.Before(envelope.ExpiresAt) {
		return envelope.Payload
	}

	payload, err := opts.Fetch(opts.URL, opts.Timeout)
	if err == nil && json.Valid(payload) {
		fresh := Envelope{
			SchemaVersion: envelopeSchemaVersion,
			SourceURL:     opts.URL,
			FetchedAt:     now,
			ExpiresAt:     now.Add(opts.TTL),
			Payload:       payload,
		}
		_ = saveEnvelopeAtomic(opts.CachePath, fresh)
		return payload
	}

	if envelope != nil && opts.AllowStale {
		return envelope.Payload
	}
	return nil
}

// loadEnvelope reads the cache file, returning nil for missing or malformed
// envelopes.
func loadEnvelope(path string) *Envelope {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil
	}
	if env.Payload == nil {
		return nil
	}
	return &env
}

// saveEnvelopeAtomic writes the envelope to a temp file in the cache
// directory and renames it into place.
func saveEnvelopeAtomic(path string, env Envelope) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// acquireLock takes an advisory cross-process lock via exclusive file
// creation, polling until timeout.
func acquireLock(path string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_ = f.Close()
			return true
		}
		if !errors.Is(err, os.ErrExist) && !os.IsPermission(err) {
			// Unexpected error: still retry until the deadline, the lock
			// directory may be appearing concurrently.
			_ = os.MkdirAll(filepath.Dir(path), 0o755)
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(lockRetryInterval)
	}
}

func releaseLock(path string) {
	_ = os.Remove(path)
}
