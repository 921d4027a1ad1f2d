package state

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Standard bucket names
const (
	BucketDaemon     = "daemon"
	BucketPrefixPool = "prefix-pool"
)

const keyInstanceID = "uuid"

// InstanceID returns the daemon's persistent instance identifier, generating
// and saving one on first use. generated reports whether it was just created.
func InstanceID(s Store) (id uuid.UUID, generated bool, err error) {
	if err := EnsureBucket(s, BucketDaemon); err != nil {
		return uuid.Nil, false, err
	}

	raw, err := s.Get(BucketDaemon, keyInstanceID)
	switch {
	case err == nil:
		id, perr := uuid.ParseBytes(raw)
		if perr == nil {
			return id, false, nil
		}
		// Corrupt value: fall through and replace it.
	case !errors.Is(err, ErrNotFound):
		return uuid.Nil, false, fmt.Errorf("failed to read instance id: %w", err)
	}

	id = uuid.New()
	if err := s.Set(BucketDaemon, keyInstanceID, []byte(id.String())); err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to save instance id: %w", err)
	}
	return id, true, nil
}
