package server

import (
	"encoding/json"
	"log"
	"sync"
)

// outboundBuffer bounds the frames queued for one connection. A peer that
// stops draining its socket loses frames instead of stalling fan-out to
// the rest of the room.
const outboundBuffer = 64

// wsPeer is the outbound side of one connection. All writes to the socket
// go through the send channel and are performed by a single writer
// goroutine, so frame order is preserved per connection.
type wsPeer struct {
	id        string
	send      chan wsFrame
	done      chan struct{}
	closeOnce sync.Once
}

func newWSPeer(id string) *wsPeer {
	return &wsPeer{
		id:   id,
		send: make(chan wsFrame, outboundBuffer),
		done: make(chan struct{}),
	}
}

// enqueue queues a frame for delivery without blocking. It reports false
// when the peer is closed or its buffer is full.
func (p *wsPeer) enqueue(frame wsFrame) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- frame:
		return true
	case <-p.done:
		return false
	default:
		return false
	}
}

// writePump drains queued frames onto the connection until the peer closes.
func (p *wsPeer) writePump(encoder *json.Encoder) {
	for {
		select {
		case frame := <-p.send:
			if err := encoder.Encode(frame); err != nil {
				log.Printf("relay: write to conn %s failed: %v", p.id, err)
				p.close()
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *wsPeer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}
