package browser

import (
	"context"
	"sync"
	"time"
)

// pump drains one connection's event stream. It is owned by the session:
// stop cancels it, and it also exits on its own when the stream ends.
type pump struct {
	h       *Handle
	events  <-chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	metrics *Metrics
	// onStreamEnd runs when the connection's stream ends before stop was
	// called.
	onStreamEnd func(*Handle)

	subMu    sync.Mutex
	subs     map[int]chan Event
	nextSub  int
	finished bool
}

// newPump attaches a pump to h. It does not drain anything until start.
func newPump(h *Handle, metrics *Metrics, onStreamEnd func(*Handle)) *pump {
	ctx, cancel := context.WithCancel(context.Background())
	p := &pump{
		ctx:         ctx,
		h:           h,
		events:      h.conn.Events(),
		cancel:      cancel,
		done:        make(chan struct{}),
		metrics:     metrics,
		onStreamEnd: onStreamEnd,
		subs:        make(map[int]chan Event),
	}
	h.pump = p
	return p
}

func (p *pump) start() {
	go p.run(p.ctx)
}

func (p *pump) run(ctx context.Context) {
	defer close(p.done)
	defer p.closeSubscribers()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.events:
			if !ok {
				if ctx.Err() == nil && p.onStreamEnd != nil {
					p.onStreamEnd(p.h)
				}
				return
			}
			p.handle(ev)
		}
	}
}

func (p *pump) handle(ev Event) {
	h := p.h
	ev.SessionID = h.id
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	switch ev.Type {
	case EventPageCreated:
		if ev.Page != nil {
			ev.PageID = h.adopt(ev.Page)
			ev.URL = ev.Page.URL()
		}
	case EventPageClosed:
		if ev.Page != nil {
			ev.PageID = h.forget(ev.Page)
		}
	case EventPageLoaded:
		if ev.Page != nil {
			ev.PageID = h.adopt(ev.Page)
			ev.URL = ev.Page.URL()
		}
	case EventPageCrashed:
		if ev.Page != nil {
			ev.PageID = h.adopt(ev.Page)
		}
		h.logger.Warnf("session %s: page %d crashed", h.id, ev.PageID)
	case EventConsole:
		h.logger.Debugf("session %s: console.%s: %s", h.id, ev.Level, ev.Text)
	case EventDisconnected:
		h.logger.Infof("session %s: browser disconnected", h.id)
	}

	p.metrics.recordEvent(ev.Type)
	p.broadcast(ev)
}

// subscribe registers a listener for pump events. Slow listeners lose
// events rather than stall the pump. The channel is closed when the pump
// exits or the returned cancel func is called.
func (p *pump) subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	p.subMu.Lock()
	if p.finished {
		p.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.subMu.Lock()
			if sub, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(sub)
			}
			p.subMu.Unlock()
		})
	}
}

func (p *pump) broadcast(ev Event) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
			p.metrics.recordDroppedEvent()
		}
	}
}

func (p *pump) closeSubscribers() {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	p.finished = true
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
}

func (p *pump) stop() {
	p.cancel()
}

// wait blocks until the pump goroutine has exited or ctx is done.
func (p *pump) wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
