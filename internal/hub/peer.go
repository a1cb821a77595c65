package hub

import "sync"

// Peer is one connected push channel with its outbound queue.
type Peer struct {
	id   string
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newPeer(id string, queueSize int) *Peer {
	return &Peer{
		id:   id,
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
}

func (p *Peer) ID() string { return p.id }

// Frames is the peer's outbound queue, for writers other than the websocket
// handler.
func (p *Peer) Frames() <-chan []byte { return p.send }

// Done is closed when the peer is unregistered.
func (p *Peer) Done() <-chan struct{} { return p.done }

func (p *Peer) offer(frame []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- frame:
		return true
	default:
		return false
	}
}

func (p *Peer) close() {
	p.once.Do(func() { close(p.done) })
}
