// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package p2p

import "fmt"

// State is a connection's place in the per-peer synchronization state
// machine, driven by handshake and chain-comparison outcomes.
type State int

const (
	StateBeforeHandshake State = iota
	StateSynchronizing
	StateIdle
	StateSyncRequired
	StatePoolSyncRequired
	StateNormal
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateBeforeHandshake:
		return "beforeHandshake"
	case StateSynchronizing:
		return "synchronizing"
	case StateIdle:
		return "idle"
	case StateSyncRequired:
		return "syncRequired"
	case StatePoolSyncRequired:
		return "poolSyncRequired"
	case StateNormal:
		return "normal"
	case StateShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// transitions enumerates the legal moves out of each state. A command
// handled while the connection is in a state not listed here for that
// command is protocol-level misbehavior (ErrUnexpectedInState).
var transitions = map[State]map[Command]State{
	StateBeforeHandshake: {
		CmdHandshake: StateSynchronizing,
	},
	StateSynchronizing: {
		CmdResponseChainEntry: StateSynchronizing, // still walking the supplement
		CmdResponseGetObjects: StateIdle,
	},
	StateIdle: {
		CmdRequestChain:          StateIdle,
		CmdNotifyNewBlock:        StateSyncRequired,
		CmdNotifyNewLiteBlock:    StateSyncRequired,
		CmdNotifyNewTransactions: StatePoolSyncRequired,
		CmdTimedSync:             StateIdle,
		CmdPing:                  StateIdle,
	},
	StateSyncRequired: {
		CmdRequestChain: StateSynchronizing,
	},
	StatePoolSyncRequired: {
		CmdRequestTxPool: StateIdle,
	},
	StateNormal: {
		CmdTimedSync:             StateNormal,
		CmdPing:                  StateNormal,
		CmdNotifyNewBlock:        StateSyncRequired,
		CmdNotifyNewLiteBlock:    StateSyncRequired,
		CmdNotifyNewTransactions: StateNormal,
		CmdNotifyMissingTxs:      StateNormal,
		CmdRequestChain:          StateNormal,
		CmdRequestGetObjects:     StateNormal,
		CmdRequestTxPool:         StateNormal,
	},
}

// next validates and applies a command's transition from cur. The
// StateShutdown sink accepts nothing and rejects everything, per a
// connection's final state before its goroutines tear down.
func next(cur State, cmd Command) (State, error) {
	if cur == StateShutdown {
		return cur, fmt.Errorf("p2p: connection is shutting down, command %s rejected", cmd)
	}
	if row, ok := transitions[cur]; ok {
		if to, ok := row[cmd]; ok {
			return to, nil
		}
	}
	return cur, fmt.Errorf("p2p: command %s not valid in state %s", cmd, cur)
}
