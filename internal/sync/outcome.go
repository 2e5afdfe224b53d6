package sync

import (
	"fmt"
	"strings"
)

// OutcomeKind is the variant of an Outcome
type OutcomeKind int

const (
	// OutcomeUnknownFailure is the catch-all failure
	OutcomeUnknownFailure OutcomeKind = iota
	// OutcomeSuccess means changes were exchanged, or the login succeeded
	OutcomeSuccess
	// OutcomeNoChanges means both sides already agreed
	OutcomeNoChanges
	// OutcomeConflictRequiresFullSync means incremental sync is impossible and the user must pick a direction
	OutcomeConflictRequiresFullSync
	// OutcomeSchemaInvalidated means the remote reported a sanity failure; a full sync is now mandatory
	OutcomeSchemaInvalidated
	// OutcomeNetworkError is a transient transport failure
	OutcomeNetworkError
	// OutcomeServerRejected means the remote refused the request
	OutcomeServerRejected
	// OutcomeOutOfMemory means memory or storage ran out during a full sync
	OutcomeOutOfMemory
	// OutcomeUserCancelled means the user cancelled the job
	OutcomeUserCancelled
	// OutcomeCustomServerURLRejected means the configured custom endpoint is unusable
	OutcomeCustomServerURLRejected
)

var outcomeNames = map[OutcomeKind]string{
	OutcomeUnknownFailure:           "unknown-failure",
	OutcomeSuccess:                  "success",
	OutcomeNoChanges:                "no-changes",
	OutcomeConflictRequiresFullSync: "conflict-requires-full-sync",
	OutcomeSchemaInvalidated:        "schema-invalidated",
	OutcomeNetworkError:             "network-error",
	OutcomeServerRejected:           "server-rejected",
	OutcomeOutOfMemory:              "out-of-memory",
	OutcomeUserCancelled:            "user-cancelled",
	OutcomeCustomServerURLRejected:  "custom-server-url-rejected",
}

// String returns the stable name of the kind
func (k OutcomeKind) String() string {
	if name, ok := outcomeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

// Reasons attached to rejections and network errors
const (
	ReasonBadAuth          = "badAuth"
	ReasonServerAbort      = "serverAbort"
	ReasonClockOff         = "clockOff"
	ReasonFinishError      = "finishError"
	ReasonInvalidHostKey   = "invalidHostKey"
	ReasonHTTPStatus       = "httpStatus"
	ReasonUploadRejected   = "uploadRejected"
	ReasonRemoteCorrupt    = "remoteCorrupt"
	ReasonMediaServerError = "mediaServerError"
	ReasonUpgradeRequired  = "upgradeRequired"
	ReasonNoNetwork        = "noNetwork"
	ReasonCollectionClosed = "collectionUnavailable"
)

// MediaOutcome is the result of the media phase
type MediaOutcome int

const (
	// MediaSuccess means files were transferred
	MediaSuccess MediaOutcome = iota
	// MediaNoChanges means the media directory already matched the remote
	MediaNoChanges
	// MediaSanityCheckFailed means the file counts disagreed after sync
	MediaSanityCheckFailed
	// MediaCorrupt means the local media database could not be read
	MediaCorrupt
	// MediaNetworkError means a transport failure interrupted media sync
	MediaNetworkError
)

// String returns the stable name of the media outcome
func (m MediaOutcome) String() string {
	switch m {
	case MediaSuccess:
		return "success"
	case MediaNoChanges:
		return "no-changes"
	case MediaSanityCheckFailed:
		return "sanity-check-failed"
	case MediaCorrupt:
		return "corrupt"
	case MediaNetworkError:
		return "network-error"
	default:
		return fmt.Sprintf("media(%d)", int(m))
	}
}

// MediaSummary reports the media phase separately from the collection outcome
type MediaSummary struct {
	Uploaded   int
	Downloaded int
	Outcome    MediaOutcome
}

// Outcome is the single terminal result of a job
type Outcome struct {
	Kind OutcomeKind

	// ChangedCollection is true when the local collection changed
	ChangedCollection bool
	// Resolution is the full sync direction that ran, if any
	Resolution ConflictResolution
	// Media is set when the media phase ran
	Media *MediaSummary
	// MediaWarning is a soft media failure to show alongside a successful outcome
	MediaWarning string
	// ServerMessage is a message the remote asked to show the user
	ServerMessage string

	// SessionKey and Username are set by a successful login
	SessionKey string
	Username   string

	// Code, Reason and Detail describe failures
	Code   int
	Reason string
	Detail string
	Err    error
}

// Succeeded reports whether the job completed without failure
func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeNoChanges
}

// Reportable reports whether the outcome must be forwarded to crash reporting
func (o Outcome) Reportable() bool {
	switch o.Kind {
	case OutcomeUnknownFailure, OutcomeOutOfMemory:
		return !IsTransient(o.Err)
	case OutcomeServerRejected:
		return o.Reason == ReasonMediaServerError
	default:
		return false
	}
}

// String returns a compact description for logs
func (o Outcome) String() string {
	var b strings.Builder
	b.WriteString(o.Kind.String())
	if o.Reason != "" {
		fmt.Fprintf(&b, " reason=%s", o.Reason)
	}
	if o.Code != 0 {
		fmt.Fprintf(&b, " code=%d", o.Code)
	}
	if o.Detail != "" {
		fmt.Fprintf(&b, " detail=%q", o.Detail)
	}
	if o.Media != nil {
		fmt.Fprintf(&b, " media=%s up=%d down=%d", o.Media.Outcome, o.Media.Uploaded, o.Media.Downloaded)
	}
	return b.String()
}

// UserMessage is the one message shown to the user for this job
func (o Outcome) UserMessage() string {
	msg := o.baseMessage()
	if o.MediaWarning != "" {
		msg += " Warning: " + o.MediaWarning
	}
	if o.ServerMessage != "" {
		msg += " Server: " + o.ServerMessage
	}
	return msg
}

func (o Outcome) baseMessage() string {
	switch o.Kind {
	case OutcomeSuccess:
		if o.SessionKey != "" {
			return fmt.Sprintf("Logged in as %s.", o.Username)
		}
		if o.Media != nil && (o.Media.Uploaded > 0 || o.Media.Downloaded > 0) {
			return fmt.Sprintf("Sync complete. Media: %d uploaded, %d downloaded.", o.Media.Uploaded, o.Media.Downloaded)
		}
		return "Sync complete."
	case OutcomeNoChanges:
		return "Already up to date."
	case OutcomeConflictRequiresFullSync:
		return "Your collection and the server's cannot be merged. Choose whether to upload or download the whole collection."
	case OutcomeSchemaInvalidated:
		return "The server found an inconsistency. The next sync will replace one side entirely."
	case OutcomeNetworkError:
		msg := "Network problem; please try again."
		if o.Media != nil {
			msg += fmt.Sprintf(" Media transferred before the failure: %d uploaded, %d downloaded.",
				o.Media.Uploaded, o.Media.Downloaded)
		}
		return msg
	case OutcomeServerRejected:
		return fmt.Sprintf("The server rejected the request (%s).", o.rejection())
	case OutcomeOutOfMemory:
		return "Ran out of memory or storage. Free some space and retry later."
	case OutcomeUserCancelled:
		return "Sync cancelled."
	case OutcomeCustomServerURLRejected:
		return "The custom sync server address is invalid."
	default:
		if o.Detail != "" {
			return "Sync failed: " + o.Detail
		}
		return "Sync failed."
	}
}

func (o Outcome) rejection() string {
	parts := make([]string, 0, 3)
	if o.Code != 0 {
		parts = append(parts, fmt.Sprintf("%d", o.Code))
	}
	if o.Reason != "" {
		parts = append(parts, o.Reason)
	}
	if o.Detail != "" {
		parts = append(parts, o.Detail)
	}
	return strings.Join(parts, ": ")
}

// NoChanges returns the no-op outcome
func NoChanges() Outcome {
	return Outcome{Kind: OutcomeNoChanges}
}

// Success returns a successful sync outcome
func Success(changed bool) Outcome {
	return Outcome{Kind: OutcomeSuccess, ChangedCollection: changed}
}

// UserCancelled returns the cancellation outcome
func UserCancelled() Outcome {
	return Outcome{Kind: OutcomeUserCancelled, Err: ErrUserCancelled}
}

// UnknownFailure returns a catch-all failure outcome
func UnknownFailure(detail string, err error) Outcome {
	return Outcome{Kind: OutcomeUnknownFailure, Detail: detail, Err: err}
}

// ServerRejected returns a rejection outcome
func ServerRejected(code int, reason, detail string) Outcome {
	return Outcome{Kind: OutcomeServerRejected, Code: code, Reason: reason, Detail: detail}
}
