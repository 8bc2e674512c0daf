// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package monitor // import "github.com/researchops/opsmon/monitor"

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Subscriber receives every published batch. A returned error is logged.
type Subscriber func(batch Batch, ts time.Time) error

// Token identifies a subscription. Tokens are never reused.
type Token int

// Publisher distributes batches to subscribers. The zero value is ready to use.
//
// Removed subscribers leave an inert slot behind, so a token stays valid for
// the lifetime of the Publisher and a Publish in progress never sees the slot
// list shrink.
type Publisher struct {
	mu    sync.Mutex
	slots []Subscriber
	live  int

	// owner is only used for log messages.
	owner string
}

// Subscribe registers fn and returns the token to remove it again.
func (p *Publisher) Subscribe(fn Subscriber) Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots = append(p.slots, fn)
	if fn != nil {
		p.live++
	}
	return Token(len(p.slots) - 1)
}

// Unsubscribe removes the subscriber behind tok. It returns false if tok is
// unknown or was already removed.
func (p *Publisher) Unsubscribe(tok Token) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok < 0 || int(tok) >= len(p.slots) || p.slots[tok] == nil {
		return false
	}
	p.slots[tok] = nil
	p.live--
	return true
}

// Len returns the number of live subscribers.
func (p *Publisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Publish calls every live subscriber with batch and ts, in subscription order.
// Subscribers are called without holding the lock and may (un)subscribe from
// within the callback. Subscribers added during a Publish are first called by
// the next Publish. An error or panic in one subscriber is logged and does not
// affect the others.
func (p *Publisher) Publish(batch Batch, ts time.Time) {
	p.mu.Lock()
	n := len(p.slots)
	p.mu.Unlock()

	for i := range n {
		p.mu.Lock()
		fn := p.slots[i]
		p.mu.Unlock()
		if fn == nil {
			continue
		}
		if err := p.deliver(fn, batch, ts); err != nil {
			log.WithField("monitor", p.owner).Warnf("Subscriber %d failed: %v", i, err)
		}
	}
}

func (p *Publisher) deliver(fn Subscriber, batch Batch, ts time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	return fn(batch, ts)
}
