package terminal

import "hearing-go/internal/procedure"

type actionKind int

const (
	actNone actionKind = iota
	actQuit
	actRespond
	actSkip
	actProbe
	actConfirm
	actDontKnow
	actAnswer
	actReplay
)

type action struct {
	kind  actionKind
	index int
}

const (
	keyCtrlC = 3
	keyEsc   = 27
)

// confirmKeys pick tiles 1-3 in the game.
var confirmKeys = map[byte]int{'q': 0, 'w': 1, 'e': 2}

// dispatch maps a key to an action for the running procedure.
func dispatch(proc string, key byte) action {
	if key == keyEsc || key == keyCtrlC {
		return action{kind: actQuit}
	}
	switch proc {
	case procedure.ProcedurePureTone, procedure.ProcedureTutorial:
		switch key {
		case ' ', '\r', '\n':
			return action{kind: actRespond}
		case 's', 'S':
			if proc == procedure.ProcedurePureTone {
				return action{kind: actSkip}
			}
		}
	case procedure.ProcedureGame:
		switch {
		case key >= '1' && key <= '3':
			return action{kind: actProbe, index: int(key - '1')}
		case key == '?':
			return action{kind: actDontKnow}
		}
		if i, ok := confirmKeys[key]; ok {
			return action{kind: actConfirm, index: i}
		}
	case procedure.ProcedureSpeech:
		switch {
		case key >= '1' && key <= '4':
			return action{kind: actAnswer, index: int(key - '1')}
		case key == 'r' || key == 'R':
			return action{kind: actReplay}
		}
	}
	return action{kind: actNone}
}

func apply(r Runner, a action) error {
	switch a.kind {
	case actRespond:
		return r.Respond()
	case actSkip:
		return r.Skip()
	case actProbe:
		return r.Probe(a.index)
	case actConfirm:
		return r.Confirm(a.index)
	case actDontKnow:
		return r.DontKnow()
	case actAnswer:
		return r.Answer(a.index)
	case actReplay:
		return r.Replay()
	}
	return nil
}
