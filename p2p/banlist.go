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
// BanList tracks addresses the dispatcher should refuse, either because a
// peer misbehaved (the server bans a peer on any message dispatch error; a
// read failure such as an oversize message only drops the connection) or
// because an operator edited the ban file directly while the node kept
// running. The file is watched with rjeczalik/notify so such direct edits
// take effect without a restart; the "ban" CLI command updates the
// in-memory list directly.
package p2p

import (
	"bufio"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

// BanList is safe for concurrent use.
type BanList struct {
	mu   sync.RWMutex
	path string
	set  map[string]time.Time

	events chan notify.EventInfo
	done   chan struct{}
}

// NewBanList loads path (one address per line, '#' comments ignored; a
// missing file starts empty) and begins watching it for changes.
func NewBanList(path string) (*BanList, error) {
	b := &BanList{path: path, set: make(map[string]time.Time), done: make(chan struct{})}
	if err := b.reload(); err != nil {
		return nil, err
	}
	if path != "" {
		b.events = make(chan notify.EventInfo, 8)
		if err := notify.Watch(path, b.events, notify.Write, notify.Create, notify.Remove, notify.Rename); err != nil {
			plLogger.Warn("banlist: not watching for live edits", "path", path, "err", err)
			b.events = nil
		} else {
			go b.watch()
		}
	}
	return b, nil
}

func (b *BanList) watch() {
	for {
		select {
		case <-b.done:
			return
		case <-b.events:
			if err := b.reload(); err != nil {
				plLogger.Warn("banlist: reload failed", "path", b.path, "err", err)
			} else {
				plLogger.Info("banlist: reloaded", "path", b.path, "entries", b.Size())
			}
		}
	}
}

func (b *BanList) reload() error {
	f, err := os.Open(b.path)
	if os.IsNotExist(err) {
		b.mu.Lock()
		b.set = make(map[string]time.Time)
		b.mu.Unlock()
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	fresh := make(map[string]time.Time)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fresh[line] = time.Now()
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	b.set = fresh
	b.mu.Unlock()
	return nil
}

// IsBanned reports whether host (an IP or host:port, checked as given) is
// on the list.
func (b *BanList) IsBanned(host string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, banned := b.set[host]
	return banned
}

// Ban adds host in memory and appends it to the backing file, so a
// concurrently running "unban"/"ban" CLI invocation sees the same state.
func (b *BanList) Ban(host string) error {
	b.mu.Lock()
	b.set[host] = time.Now()
	b.mu.Unlock()
	if b.path == "" {
		return nil
	}
	f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(host + "\n")
	return err
}

// Unban removes host from the in-memory set and rewrites the backing file
// to match.
func (b *BanList) Unban(host string) error {
	b.mu.Lock()
	delete(b.set, host)
	remaining := make([]string, 0, len(b.set))
	for h := range b.set {
		remaining = append(remaining, h)
	}
	b.mu.Unlock()

	if b.path == "" {
		return nil
	}
	f, err := os.OpenFile(b.path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, h := range remaining {
		if _, err := f.WriteString(h + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func (b *BanList) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.set)
}

// Close stops the file watch goroutine.
func (b *BanList) Close() {
	close(b.done)
	if b.events != nil {
		notify.Stop(b.events)
	}
}
