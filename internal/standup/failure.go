package standup

import (
	"errors"

	"github.com/chasedowdell/SprintSwarm/internal/codestore"
	"github.com/chasedowdell/SprintSwarm/internal/developer"
	"github.com/chasedowdell/SprintSwarm/internal/index"
	"github.com/chasedowdell/SprintSwarm/internal/llm"
)

// FailureKind classifies why an item or task failed.
type FailureKind string

const (
	FailureOracleUnavailable    FailureKind = "oracle_unavailable"
	FailureIndexUnavailable     FailureKind = "index_unavailable"
	FailureStoreUnavailable     FailureKind = "store_unavailable"
	FailureMalformedArtifactKey FailureKind = "malformed_artifact_key"
	FailureUnroutableTask       FailureKind = "unroutable_task"
	FailureOther                FailureKind = "other"
)

// Classify maps err to its failure kind. Routing errors take precedence over
// the collaborator errors they may wrap.
func Classify(err error) FailureKind {
	switch {
	case errors.Is(err, developer.ErrMalformedArtifactKey):
		return FailureMalformedArtifactKey
	case errors.Is(err, developer.ErrUnroutableTask):
		return FailureUnroutableTask
	case errors.Is(err, llm.ErrOracleUnavailable):
		return FailureOracleUnavailable
	case errors.Is(err, index.ErrIndexUnavailable):
		return FailureIndexUnavailable
	case errors.Is(err, codestore.ErrStoreUnavailable):
		return FailureStoreUnavailable
	default:
		return FailureOther
	}
}

// Transient reports whether a failure of this kind may succeed on retry.
func (k FailureKind) Transient() bool {
	switch k {
	case FailureOracleUnavailable, FailureIndexUnavailable, FailureStoreUnavailable:
		return true
	default:
		return false
	}
}
