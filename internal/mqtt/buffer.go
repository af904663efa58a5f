package mqtt

import "log"

// message is a serialized MQTT message waiting for a connection.
type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a bounded FIFO that holds messages while the broker is
// unreachable. When full the oldest message is dropped.
// Not safe for concurrent use; RealPublisher holds its lock.
type outbox struct {
	buf     []message
	size    int
	head    int // index of the oldest message
	count   int
	dropped int // since the last drain
}

func newOutbox(size int) *outbox {
	return &outbox{
		buf:  make([]message, size),
		size: size,
	}
}

func (o *outbox) push(m message) {
	if o.count == o.size {
		if o.dropped == 0 {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", o.size)
		}
		o.dropped++
		o.buf[o.head] = m
		o.head = (o.head + 1) % o.size
		return
	}
	o.buf[(o.head+o.count)%o.size] = m
	o.count++
}

// drain removes and returns every queued message, oldest first.
func (o *outbox) drain() []message {
	if o.count == 0 {
		return nil
	}

	out := make([]message, o.count)
	for i := range out {
		out[i] = o.buf[(o.head+i)%o.size]
		o.buf[(o.head+i)%o.size] = message{}
	}
	if o.dropped > 0 {
		log.Printf("mqtt: %d queued messages were dropped while disconnected", o.dropped)
	}

	o.head = 0
	o.count = 0
	o.dropped = 0
	return out
}

func (o *outbox) len() int {
	return o.count
}
