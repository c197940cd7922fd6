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

import (
	metrics "github.com/rcrowley/go-metrics"
	"go.uber.org/atomic"
)

// dispatchMetrics counts messages handled per command and tracks live
// connection counts, registered under the default go-metrics registry the
// way the teacher's chaindatafetcher already does for its own counters.
type dispatchMetrics struct {
	received  map[Command]metrics.Counter
	peersUp   metrics.Counter
	bansTotal metrics.Counter
}

func newDispatchMetrics() *dispatchMetrics {
	m := &dispatchMetrics{
		received:  make(map[Command]metrics.Counter),
		peersUp:   metrics.NewRegisteredCounter("p2p/peers", metrics.DefaultRegistry),
		bansTotal: metrics.NewRegisteredCounter("p2p/bans", metrics.DefaultRegistry),
	}
	for cmd := range commandNames {
		m.received[cmd] = metrics.NewRegisteredCounter("p2p/cmd/"+cmd.String(), metrics.DefaultRegistry)
	}
	return m
}

func (m *dispatchMetrics) recordReceived(cmd Command) {
	if c, ok := m.received[cmd]; ok {
		c.Inc(1)
	}
}

func (m *dispatchMetrics) peerConnected()    { m.peersUp.Inc(1) }
func (m *dispatchMetrics) peerDisconnected() { m.peersUp.Dec(1) }
func (m *dispatchMetrics) banned()           { m.bansTotal.Inc(1) }

// shuttingDown is an atomic.Bool so Server.Shutdown and the per-connection
// accept loop can race-free agree the server is going down without taking
// a lock on every accept.
type shuttingDown struct {
	flag atomic.Bool
}

func (s *shuttingDown) set()      { s.flag.Store(true) }
func (s *shuttingDown) get() bool { return s.flag.Load() }
