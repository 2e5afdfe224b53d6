// Package sync defines the vocabulary shared by every part of collection
// synchronization: the immutable Request a caller submits, the Outcome taxonomy
// a job terminates with, and the contracts of the phase drivers.
//
// # Core Interfaces
//
//   - Authenticator: exchanges credentials for a session key
//   - IncrementalSyncer: two-way diff-and-merge against the remote
//   - FullSyncer: whole-collection upload or download
//   - MediaSyncer: media directory reconciliation
//   - AutomaticSyncChecker: interval-based automatic sync decisions
//
// # Subpackages
//
// The orchestrator subpackage owns the single in-flight job and drives the
// pipeline Authenticate → Incremental (→ Full) → Media. The auth, incremental,
// full and media subpackages hold the reference drivers, and remote holds the
// typed client they share.
//
// # Outcomes
//
// Every job ends with exactly one Outcome. Drivers report structural results
// through their result types and failures through errors; Classify maps any
// error onto the taxonomy:
//
//   - *Error carries an explicit outcome kind and reason
//   - transient transport failures become OutcomeNetworkError
//   - HTTP rejections become OutcomeServerRejected
//   - an unusable custom endpoint becomes OutcomeCustomServerURLRejected
//   - resource exhaustion becomes OutcomeOutOfMemory
//   - ErrUserCancelled becomes OutcomeUserCancelled
//   - anything else becomes OutcomeUnknownFailure
package sync
