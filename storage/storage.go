// Package storage persists the whole application state as a single versioned
// JSON document. Reads always come back in the current schema: older
// envelopes are run through the migration chain, unreadable ones fall back to
// the caller's default instead of failing the boot.
package storage

import (
	"context"
	"encoding/json"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

const (
	// CurrentVersion tags every envelope written by this build.
	CurrentVersion = "3.0"
	// DocumentKey is the fixed logical key the state document lives under.
	DocumentKey = "taskboard-state"
)

// Backend moves the raw document bytes in and out of a durable medium.
// Read reports found=false when no document exists yet.
type Backend interface {
	Read(ctx context.Context) (data []byte, found bool, err error)
	Write(ctx context.Context, data []byte) error
	Delete(ctx context.Context) error
}

// Envelope is the persisted wrapper around the state payload.
type Envelope struct {
	Version   string          `json:"version"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// ErrorFunc receives persistence failures that were swallowed at the store
// boundary, keyed by the operation that hit them.
type ErrorFunc func(operation string, err error)

// Store is the versioned document store.
type Store struct {
	backend Backend
	logger  *log.Logger
	onError ErrorFunc
}

// New creates a Store over the given backend.
func New(backend Backend, logger *log.Logger) *Store {
	if backend == nil {
		panic("storage.New: backend is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Store{backend: backend, logger: logger}
}

// SetErrorFunc installs the callback invoked for swallowed persistence
// failures. Passing nil disables reporting.
func (s *Store) SetErrorFunc(fn ErrorFunc) { s.onError = fn }

func (s *Store) report(operation string, err error) {
	s.logger.WithError(err).WithField("operation", operation).Warn("storage.operation.failed")
	if s.onError != nil {
		s.onError(operation, err)
	}
}

// Save writes the state under the current schema version. It never fails
// loudly: serialization and backend errors are reported through the error
// callback and turn into a false return.
func (s *Store) Save(ctx context.Context, state domain.AppState) bool {
	data, err := sonic.ConfigStd.Marshal(state)
	if err != nil {
		s.report("save", err)
		return false
	}
	payload, err := sonic.ConfigStd.Marshal(Envelope{
		Version:   CurrentVersion,
		Data:      data,
		Timestamp: domain.NowMillis(),
	})
	if err != nil {
		s.report("save", err)
		return false
	}
	if err := s.backend.Write(ctx, payload); err != nil {
		s.report("save", err)
		return false
	}
	return true
}

// Load reads the document and returns it in the current schema. Absent,
// corrupt or unrecognizable documents yield def. A document behind on the
// schema version is migrated in ascending order and the migrated envelope is
// written back so the stored version tag advances.
func (s *Store) Load(ctx context.Context, def domain.AppState) domain.AppState {
	payload, found, err := s.backend.Read(ctx)
	if err != nil {
		s.report("load", err)
		return def
	}
	if !found {
		return def
	}

	version, data, enveloped, ok := decodeEnvelope(payload)
	if !ok {
		s.logger.Warn("storage.load.unrecognized")
		return def
	}
	if version == CurrentVersion {
		state := decodeState(data, def)
		if !enveloped {
			// Bare current-shape document: write it back enveloped so the
			// stored version tag exists for external readers.
			if s.Save(ctx, state) {
				s.logger.WithField("version", CurrentVersion).Info("storage.envelope.tagged")
			}
		}
		return state
	}

	migrated, err := runMigrations(version, data)
	if err != nil {
		s.logger.WithError(err).WithField("version", version).Error("storage.migration.failed")
		return def
	}
	state := decodeState(migrated, def)
	state = state.Normalize()
	if s.Save(ctx, state) {
		s.logger.WithFields(log.Fields{"from": version, "to": CurrentVersion}).Info("storage.migration.completed")
	}
	return state
}

// PeekVersion reports the stored schema version without migrating. Legacy
// version-less documents report the version their shape maps to, with
// tagged=false so callers can tell an inferred version from a stored tag.
// found is false when no document or an unrecognizable one is stored.
func (s *Store) PeekVersion(ctx context.Context) (version string, tagged, found bool) {
	payload, found, err := s.backend.Read(ctx)
	if err != nil || !found {
		return "", false, false
	}
	version, _, enveloped, ok := decodeEnvelope(payload)
	if !ok {
		return "", false, false
	}
	return version, enveloped, true
}

// decodeEnvelope extracts (version, generic data) from the raw document.
// Version-less legacy shapes are mapped onto the version their layout belongs
// to and report enveloped=false. ok is false for unparsable or unrecognizable
// payloads.
func decodeEnvelope(payload []byte) (string, any, bool, bool) {
	var env Envelope
	if err := sonic.ConfigStd.Unmarshal(payload, &env); err == nil && env.Version != "" {
		if !knownVersion(env.Version) {
			return "", nil, false, false
		}
		var data any
		if err := sonic.ConfigStd.Unmarshal(env.Data, &data); err != nil {
			return "", nil, false, false
		}
		return env.Version, data, true, true
	}

	// No envelope: the very first releases wrote the payload bare.
	var data any
	if err := sonic.ConfigStd.Unmarshal(payload, &data); err != nil {
		return "", nil, false, false
	}
	version := detectLegacyVersion(data)
	if version == "" {
		return "", nil, false, false
	}
	return version, data, false, true
}

// decodeState converts the generic current-schema payload into AppState,
// normalized so the structural invariants hold. def wins when the payload
// does not decode.
func decodeState(data any, def domain.AppState) domain.AppState {
	raw, err := sonic.ConfigStd.Marshal(data)
	if err != nil {
		return def
	}
	var state domain.AppState
	if err := sonic.ConfigStd.Unmarshal(raw, &state); err != nil {
		return def
	}
	return state.Normalize()
}
