package workflow

import (
	"fmt"
	"time"

	"github.com/schaermu/p4vhelper/internal/parse"
)

// Op names a workflow. At most one run per Op is allowed at a time.
type Op string

const (
	OpSync     Op = "sync"
	OpSubmit   Op = "submit"
	OpMove     Op = "move"
	OpSearch   Op = "search"
	OpHistory  Op = "history"
	OpDescribe Op = "describe"
	OpConnect  Op = "connect"
	OpCreate   Op = "create"
	OpClear    Op = "clear"
	OpFiles    Op = "files"
)

// State is a step of a workflow.
type State string

const (
	StateCountingFiles      State = "CountingFiles"
	StateSyncing            State = "Syncing"
	StateReconciling        State = "Reconciling"
	StateAwaitingReason     State = "AwaitingUserReason"
	StateCreatingChangelist State = "CreatingChangelist"
	StateEditingForOpen     State = "EditingForOpen"
	StateOpeningForEdit     State = "OpeningForEdit"
	StateMoving             State = "Moving"
	StateSubmitting         State = "Submitting"
	StateQuerying           State = "Querying"
	StateProbing            State = "Probing"
	StateCheckingLogin      State = "CheckingLogin"
	StateLoggingIn          State = "LoggingIn"
	StateReadingClient      State = "ReadingClient"
	StateWriting            State = "Writing"
	StateDone               State = "Done"
	StateNoOp               State = "NoOp"
	StateFailed             State = "Failed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateNoOp || s == StateFailed
}

// Progress is the position of a streamed sync or submit.
type Progress struct {
	Processed int
	Total     int
	Item      string
	Elapsed   time.Duration
}

// Percent returns processed/total as a percentage capped at 100.
func (p Progress) Percent() float64 {
	total := p.Total
	if total < 1 {
		total = 1
	}
	pct := float64(p.Processed) / float64(total) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// FormatElapsed renders d as "Xm Ys".
func FormatElapsed(d time.Duration) string {
	s := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%dm %ds", s/60, s%60)
}

type tracker struct {
	total     int
	processed int
	start     time.Time
	now       func() time.Time
}

func newTracker(total int, now func() time.Time) *tracker {
	return &tracker{total: total, start: now(), now: now}
}

func (t *tracker) advance(item string) Progress {
	t.processed++
	return Progress{Processed: t.processed, Total: t.total, Item: item, Elapsed: t.now().Sub(t.start)}
}

func (t *tracker) elapsed() time.Duration {
	return t.now().Sub(t.start)
}

// SyncResult describes a finished sync.
type SyncResult struct {
	Depot      string
	Local      string
	Total      int
	Synced     int
	LocalFiles int
	Elapsed    time.Duration
}

// Outcome distinguishes a submitted changelist from a run with nothing to do.
type Outcome string

const (
	OutcomeSubmitted Outcome = "submitted"
	OutcomeNoOp      Outcome = "noop"
)

// SubmitResult describes a finished reconcile and submit.
type SubmitResult struct {
	Outcome     Outcome
	Change      int
	Description string
	Files       parse.ReconcileSet
	Submitted   int
	Elapsed     time.Duration
}

// MoveResult describes a finished rename or move.
type MoveResult struct {
	Change int
	From   string
	To     string
	Moved  int
}

// ConnectResult describes the server connection after a successful connect.
type ConnectResult struct {
	Info     parse.ConnectionInfo
	LoggedIn bool
}

// ClearResult counts what a workspace clear removed.
type ClearResult struct {
	Removed  int
	Kept     int
	Failures []error
}
