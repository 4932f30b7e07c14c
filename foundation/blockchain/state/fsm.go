package state

import (
	"context"

	"github.com/looplab/fsm"
)

// Set of states the node moves through.
const (
	StatusStopped        = "STOPPED"
	StatusRunning        = "RUNNING"
	StatusMining         = "MINING"
	StatusCatchingBlocks = "CATCHINGBLOCKS"
)

// Set of events that move the node between states.
const (
	eventStart    = "start"
	eventMine     = "mine"
	eventIdle     = "idle"
	eventCatchUp  = "catchup"
	eventCaughtUp = "caughtup"
	eventStop     = "stop"
)

// status tracks what the node is currently doing.
type status struct {
	machine *fsm.FSM
	ev      EventHandler
}

func newStatus(ev EventHandler) *status {
	machine := fsm.NewFSM(
		StatusStopped,
		fsm.Events{
			{Name: eventStart, Src: []string{StatusStopped}, Dst: StatusRunning},
			{Name: eventMine, Src: []string{StatusRunning, StatusCatchingBlocks}, Dst: StatusMining},
			{Name: eventIdle, Src: []string{StatusMining}, Dst: StatusRunning},
			{Name: eventCatchUp, Src: []string{StatusRunning, StatusMining}, Dst: StatusCatchingBlocks},
			{Name: eventCaughtUp, Src: []string{StatusCatchingBlocks}, Dst: StatusRunning},
			{Name: eventStop, Src: []string{StatusRunning, StatusMining, StatusCatchingBlocks}, Dst: StatusStopped},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				ev("state: status: %s -> %s", e.Src, e.Dst)
			},
		},
	)

	return &status{
		machine: machine,
		ev:      ev,
	}
}

// transition applies the event when the current state allows it. Events that
// don't apply to the current state are ignored.
func (st *status) transition(event string) {
	if !st.machine.Can(event) {
		return
	}

	if err := st.machine.Event(context.Background(), event); err != nil {
		st.ev("state: status: %s: ERROR: %s", event, err)
	}
}

func (st *status) current() string {
	return st.machine.Current()
}
