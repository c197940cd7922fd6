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
//
// Package eventbus replaces the observer-callback pattern (Design Note
// "Observer pattern") with a small channel broadcast: subscribers get a
// bounded, non-blocking delivery channel and must tolerate a dropped event
// by resyncing from a snapshot query, rather than the bus blocking a slow
// subscriber or growing an unbounded backlog.
package eventbus

import "sync"

// Bus broadcasts values of any type (the engine publishes both BlockAdded
// and ChainReorg on one Bus) to any number of subscribers.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan interface{}
	next int
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan interface{})}
}

// Subscription is a handle returned by Subscribe; Unsubscribe must be
// called when the subscriber is done listening.
type Subscription struct {
	bus *Bus
	id  int
	ch  chan interface{}
}

// C returns the channel events are delivered on.
func (s *Subscription) C() <-chan interface{} { return s.ch }

// Unsubscribe removes the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subs[s.id]; ok {
		delete(s.bus.subs, s.id)
		close(s.ch)
	}
}

// Subscribe registers a new subscriber with the given buffer depth. A
// buffer of 0 is rejected in favor of 1, so Publish never has to choose
// between blocking and dropping on an unready subscriber.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan interface{}, buffer)
	b.subs[id] = ch
	return &Subscription{bus: b, id: id, ch: ch}
}

// Publish delivers event to every current subscriber. A subscriber whose
// buffer is full has the event dropped for it rather than blocking the
// publisher or the other subscribers; it is expected to notice the gap via
// a subsequent snapshot query.
func (b *Bus) Publish(event interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
