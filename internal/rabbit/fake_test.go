package rabbit

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// session is what one accepted dial delivers. When dropAfter > 0 the
// connection is closed by the broker once that many deliveries were settled.
type session struct {
	bodies    []string
	dropAfter int
}

type publishing struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type settlement struct {
	body    string
	acked   bool
	requeue bool
}

type fakeBroker struct {
	mu sync.Mutex

	sessions   []session
	failDials  int
	dials      int
	exchanges  int
	queues     []string
	bindings   []string
	qos        []int
	published  []publishing
	publishErr error
	settled    []settlement
	closedConn int
}

func (b *fakeBroker) dial(string) (Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dials++
	if b.failDials > 0 {
		b.failDials--
		return nil, errors.New("dial tcp: connection refused")
	}
	var s session
	if len(b.sessions) > 0 {
		s, b.sessions = b.sessions[0], b.sessions[1:]
	}
	return &fakeConn{broker: b, session: s}, nil
}

func (b *fakeBroker) snapshot() []settlement {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]settlement(nil), b.settled...)
}

type fakeConn struct {
	broker  *fakeBroker
	session session

	mu       sync.Mutex
	notify   []chan *amqp.Error
	closed   bool
	settled  int
	channels []*fakeChannel
}

func (c *fakeConn) Channel() (Channel, error) {
	ch := &fakeChannel{conn: c}
	c.mu.Lock()
	c.channels = append(c.channels, ch)
	c.mu.Unlock()
	return ch, nil
}

func (c *fakeConn) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(receiver)
		return receiver
	}
	c.notify = append(c.notify, receiver)
	return receiver
}

func (c *fakeConn) Close() error {
	c.shutdown(nil)
	c.broker.mu.Lock()
	c.broker.closedConn++
	c.broker.mu.Unlock()
	return nil
}

func (c *fakeConn) shutdown(reason *amqp.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, n := range c.notify {
		if reason != nil {
			n <- reason
		}
		close(n)
	}
	c.notify = nil
	for _, ch := range c.channels {
		ch.shutdown(reason)
	}
}

func (c *fakeConn) settle(s settlement) {
	b := c.broker
	b.mu.Lock()
	b.settled = append(b.settled, s)
	b.mu.Unlock()

	c.mu.Lock()
	c.settled++
	drop := c.session.dropAfter > 0 && c.settled == c.session.dropAfter
	c.mu.Unlock()

	if drop {
		c.shutdown(&amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED"})
	}
}

type fakeChannel struct {
	conn *fakeConn

	mu     sync.Mutex
	notify []chan *amqp.Error
	closed bool
}

func (ch *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	b := ch.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exchanges++
	return nil
}

func (ch *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	b := ch.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues = append(b.queues, name)
	return amqp.Queue{Name: name}, nil
}

func (ch *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	b := ch.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindings = append(b.bindings, name+"<-"+key)
	return nil
}

func (ch *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	b := ch.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	b.qos = append(b.qos, prefetchCount)
	return nil
}

func (ch *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	bodies := ch.conn.session.bodies
	out := make(chan amqp.Delivery, len(bodies))
	for i, body := range bodies {
		out <- amqp.Delivery{
			Acknowledger: &fakeAcker{conn: ch.conn, body: body},
			DeliveryTag:  uint64(i + 1),
			MessageId:    body,
			Body:         []byte(body),
		}
	}
	return out, nil
}

func (ch *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if ch.IsClosed() {
		return amqp.ErrClosed
	}
	b := ch.conn.broker
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		err := b.publishErr
		b.publishErr = nil
		return err
	}
	b.published = append(b.published, publishing{exchange: exchange, key: key, msg: msg})
	return nil
}

func (ch *fakeChannel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		close(receiver)
		return receiver
	}
	ch.notify = append(ch.notify, receiver)
	return receiver
}

func (ch *fakeChannel) IsClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

func (ch *fakeChannel) Close() error {
	ch.shutdown(nil)
	return nil
}

func (ch *fakeChannel) shutdown(reason *amqp.Error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return
	}
	ch.closed = true
	for _, n := range ch.notify {
		if reason != nil {
			n <- reason
		}
		close(n)
	}
	ch.notify = nil
}

type fakeAcker struct {
	conn *fakeConn
	body string
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.conn.settle(settlement{body: a.body, acked: true})
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.conn.settle(settlement{body: a.body, requeue: requeue})
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}
