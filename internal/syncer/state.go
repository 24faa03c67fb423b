// Package syncer drives periodic ledger synchronization for one account:
// a reachability-aware timer, a single-flight sync loop and the observable
// sync state.
package syncer

import (
	"errors"
	"fmt"
)

// ErrNotStarted is the initial sync error before the first attempt runs.
var ErrNotStarted = errors.New("sync not started")

// ErrNoNetworkConnection reports that the sync timer is parked because the
// network probe sees no connectivity.
var ErrNoNetworkConnection = errors.New("no network connection")

// StateKind discriminates the sync state union.
type StateKind int

const (
	KindNotSynced StateKind = iota
	KindSyncing
	KindSynced
)

// State is the sync status of an account. Progress is only meaningful for
// KindSyncing and may be nil when the attempt cannot estimate it; Err is only
// set for KindNotSynced.
type State struct {
	Kind     StateKind
	Progress *float64
	Err      error
}

func Synced() State                   { return State{Kind: KindSynced} }
func Syncing(progress *float64) State { return State{Kind: KindSyncing, Progress: progress} }
func NotSynced(err error) State       { return State{Kind: KindNotSynced, Err: err} }

// Equal compares by kind and, for failures, by error text. Progress changes
// within KindSyncing are significant and compare unequal.
func (s State) Equal(other State) bool {
	if s.Kind != other.Kind {
		return false
	}
	switch s.Kind {
	case KindNotSynced:
		return errText(s.Err) == errText(other.Err)
	case KindSyncing:
		if (s.Progress == nil) != (other.Progress == nil) {
			return false
		}
		return s.Progress == nil || *s.Progress == *other.Progress
	default:
		return true
	}
}

func (s State) String() string {
	switch s.Kind {
	case KindSynced:
		return "synced"
	case KindSyncing:
		if s.Progress != nil {
			return fmt.Sprintf("syncing (%.0f%%)", *s.Progress*100)
		}
		return "syncing"
	default:
		return fmt.Sprintf("not synced: %s", errText(s.Err))
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
