package redux

import "sync"

type snapshot struct {
	seq   uint64
	value any
}

// publisher is a single-slot replaying fan-out. It keeps the latest
// snapshot, hands it to every new subscriber and forwards each later
// publish in sequence order.
type publisher struct {
	mu     sync.Mutex
	seq    uint64
	latest snapshot
	has    bool
	subs   []*subscriber
}

func newPublisher() *publisher {
	return &publisher{}
}

func (p *publisher) publish(value any) {
	p.mu.Lock()
	current, subs := p.storeLocked(value)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.offer(current)
	}
}

// seed publishes value only when nothing has been published yet. The check
// and the store happen under one lock so a racing publish always wins.
func (p *publisher) seed(value any) {
	p.mu.Lock()
	if p.has {
		p.mu.Unlock()
		return
	}
	current, subs := p.storeLocked(value)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.offer(current)
	}
}

func (p *publisher) storeLocked(value any) (snapshot, []*subscriber) {
	p.seq++
	p.latest = snapshot{seq: p.seq, value: value}
	p.has = true
	return p.latest, append([]*subscriber(nil), p.subs...)
}

func (p *publisher) attach(sub *subscriber) {
	p.mu.Lock()
	p.subs = append(p.subs, sub)
	current, has := p.latest, p.has
	p.mu.Unlock()

	if has {
		sub.offer(current)
	}
}

func (p *publisher) detach(sub *subscriber) {
	sub.close()
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, candidate := range p.subs {
		if candidate == sub {
			p.subs = append(p.subs[:i], p.subs[i+1:]...)
			return
		}
	}
}

func (p *publisher) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// subscriber serializes deliveries for one subscription. A value offered
// while the subscriber is already delivering is queued and delivered by
// the active call once the current delivery returns.
type subscriber struct {
	deliver func(value any)

	mu       sync.Mutex
	lastSeq  uint64
	pending  []snapshot
	draining bool
	closed   bool
}

func (s *subscriber) offer(snap snapshot) {
	s.mu.Lock()
	if s.closed || snap.seq <= s.lastSeq {
		s.mu.Unlock()
		return
	}
	s.lastSeq = snap.seq
	s.pending = append(s.pending, snap)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	s.drain()
}

func (s *subscriber) drain() {
	finished := false
	defer func() {
		if finished {
			return
		}
		s.mu.Lock()
		s.draining = false
		s.pending = nil
		s.mu.Unlock()
	}()
	for {
		s.mu.Lock()
		if s.closed || len(s.pending) == 0 {
			s.draining = false
			s.pending = nil
			s.mu.Unlock()
			finished = true
			return
		}
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.deliver(next.value)
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.pending = nil
	s.mu.Unlock()
}
