package state

import "taskboard/domain"

// Kind names one notification variant. The set is closed: subscribers switch
// on it without a default arm for unknown values.
type Kind string

const (
	// KindStateChanged fires on every non-silent mutation.
	KindStateChanged Kind = "state-changed"
	// KindBoardsChanged fires when the board list was part of the mutation.
	KindBoardsChanged Kind = "boards-changed"
	// KindCurrentBoardChanged fires when the selected board moved.
	KindCurrentBoardChanged Kind = "current-board-changed"
	// KindFilterChanged fires when the display filter moved.
	KindFilterChanged Kind = "filter-changed"
	// KindSaved fires once a state snapshot has been durably written.
	KindSaved Kind = "saved"
	// KindImported fires after a successful bulk import replaced the state.
	KindImported Kind = "imported"
	// KindStorageError carries a failed storage operation.
	KindStorageError Kind = "storage-error"
)

// Notification is what subscribers receive. State is a snapshot shared by
// every subscriber of one delivery; treat it as read-only. Operation and Err
// are set only on KindStorageError.
type Notification struct {
	Kind      Kind
	State     domain.AppState
	Operation string
	Err       error
	Timestamp int64
}

// Subscriber receives notifications synchronously on the caller's goroutine.
// A subscriber must not mutate the container from inside the callback.
type Subscriber func(Notification)
