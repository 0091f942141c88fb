package mailer

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

type message struct {
	to      string
	subject string
	body    string
}

// Dispatcher forwards messages to a Sender on a background goroutine.
type Dispatcher struct {
	sender    Sender
	logger    *slog.Logger
	ch        chan message
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts a Dispatcher with the given queue capacity.
func NewDispatcher(sender Sender, logger *slog.Logger, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		sender: sender,
		logger: logger,
		ch:     make(chan message, buffer),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case m := <-d.ch:
			d.deliver(m)
		case <-d.done:
			for {
				select {
				case m := <-d.ch:
					d.deliver(m)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(m message) {
	err := d.sender.Send(m.to, m.subject, m.body)
	if err == nil {
		return
	}

	// Bad addresses are user input, not operational trouble.
	if errors.Is(err, ErrInvalidAddress) {
		d.logger.Debug("mail rejected", "error", err)
		return
	}
	d.logger.Warn("mail delivery failed", "error", err)
}

// SendCode queues a one-time code message for email. It never blocks: when
// the queue is full the message is dropped and counted.
func (d *Dispatcher) SendCode(email, code string) {
	if d == nil || d.closed.Load() {
		return
	}

	m := message{
		to:      email,
		subject: "BoilerSwap Code",
		body:    "Your code is " + code,
	}

	select {
	case d.ch <- m:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
}

// Dropped returns how many messages were discarded because the queue was
// full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close drains the queue and stops the worker.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
