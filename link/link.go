// Package link is the command channel: one attached connection at a time,
// a reader goroutine feeding a lock-free byte queue, and out-of-band
// control characters routed to signal callbacks.
package link

import (
	"errors"
	"io"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
	"github.com/rs/zerolog"

	"g2go/core"
)

var (
	// ErrLineOverflow is returned by ReadLine when a line does not fit the
	// caller's buffer. The partial line and the rest of the line are dropped.
	ErrLineOverflow = errors.New("link: line exceeds buffer")
	// ErrAlreadyAttached is returned by Attach while a connection is active.
	ErrAlreadyAttached = errors.New("link: connection already attached")
	// ErrNotConnected is returned by ReadLine with no connection attached.
	ErrNotConnected = errors.New("link: not connected")
)

// Out-of-band characters. They act immediately and never reach the line
// buffer.
const (
	CharReset      = 0x18 // ctrl-x
	CharFeedhold   = '!'
	CharCycleStart = '~'
	CharQueueFlush = '%'
)

// queueCapacity is the receive queue size per connection.
const queueCapacity = 1024

// Signals receives out-of-band characters. Callbacks run on the reader
// goroutine and must be safe for concurrent use.
type Signals struct {
	Reset      func()
	Feedhold   func()
	CycleStart func()
	QueueFlush func()
}

// session is one attached connection.
type session struct {
	conn   io.ReadWriteCloser
	q      lfq.SPSC[byte]
	wmu    sync.Mutex
	closed atomix.Uint32
	done   chan struct{}
}

func (s *session) close() {
	if s.closed.Add(1) == 1 {
		_ = s.conn.Close()
	}
}

func (s *session) isClosed() bool {
	return s.closed.Load() != 0
}

// Link is the controller's connection. Connected and Write may be called
// from any goroutine; ReadLine belongs to the controller loop.
type Link struct {
	signals Signals
	log     zerolog.Logger

	mu   sync.Mutex
	cur  *session
	last *session

	// odd while a connection is attached
	epoch atomix.Uint32

	// consumer-side line state
	reading *session
	skip    bool
	lastCR  bool
}

// New creates a link with no connection attached.
func New(signals Signals) *Link {
	return &Link{
		signals: signals,
		log:     core.Component("link"),
	}
}

// Connected reports whether a connection is attached.
func (l *Link) Connected() bool {
	return l.epoch.Load()%2 == 1
}

// Attach makes conn the active connection and starts its reader.
func (l *Link) Attach(conn io.ReadWriteCloser) error {
	l.mu.Lock()
	if l.cur != nil {
		l.mu.Unlock()
		return ErrAlreadyAttached
	}
	prev := l.last
	l.mu.Unlock()

	// the previous reader must be gone before a new producer starts
	if prev != nil {
		<-prev.done
	}

	s := &session{conn: conn, done: make(chan struct{})}
	s.q.Init(queueCapacity)

	l.mu.Lock()
	if l.cur != nil {
		l.mu.Unlock()
		return ErrAlreadyAttached
	}
	l.cur = s
	l.last = s
	l.epoch.Add(1)
	l.mu.Unlock()

	l.log.Info().Msg("connected")
	go l.readLoop(s)
	return nil
}

// Detach closes the active connection, if any.
func (l *Link) Detach() {
	l.mu.Lock()
	s := l.cur
	if s != nil {
		l.cur = nil
		l.epoch.Add(1)
	}
	l.mu.Unlock()
	if s != nil {
		s.close()
		l.log.Info().Msg("detached")
	}
}

func (l *Link) drop(s *session, err error) {
	l.mu.Lock()
	active := l.cur == s
	if active {
		l.cur = nil
		l.epoch.Add(1)
	}
	l.mu.Unlock()
	s.close()
	if active {
		ev := l.log.Info()
		if err != nil && !errors.Is(err, io.EOF) {
			ev = l.log.Warn().Err(err)
		}
		ev.Msg("disconnected")
	}
}

func (l *Link) readLoop(s *session) {
	defer close(s.done)
	buf := make([]byte, 256)
	var bo iox.Backoff
	for {
		n, err := s.conn.Read(buf)
		for _, b := range buf[:n] {
			if l.signal(b) {
				continue
			}
			for s.q.Enqueue(&b) != nil {
				if s.isClosed() {
					return
				}
				bo.Wait()
			}
			bo.Reset()
		}
		if err != nil {
			l.drop(s, err)
			return
		}
	}
}

func (l *Link) signal(b byte) bool {
	var fn func()
	switch b {
	case CharReset:
		fn = l.signals.Reset
	case CharFeedhold:
		fn = l.signals.Feedhold
	case CharCycleStart:
		fn = l.signals.CycleStart
	case CharQueueFlush:
		fn = l.signals.QueueFlush
	default:
		return false
	}
	l.log.Debug().Uint8("char", b).Msg("signal")
	if fn != nil {
		fn()
	}
	return true
}

// ReadLine appends received bytes to buf[*n:] until a CR or LF. On a
// complete line it returns nil with the line in buf[:*n], terminator
// excluded. It returns iox.ErrWouldBlock when the line is still incomplete,
// leaving *n as progress for the next call.
func (l *Link) ReadLine(buf []byte, n *int) error {
	l.mu.Lock()
	s := l.cur
	l.mu.Unlock()
	if s == nil {
		return ErrNotConnected
	}
	if s != l.reading {
		l.reading = s
		l.skip = false
		l.lastCR = false
	}

	for {
		b, err := s.q.Dequeue()
		if err != nil {
			return iox.ErrWouldBlock
		}
		cr := b == '\r'
		if b == '\n' && l.lastCR {
			l.lastCR = false
			continue
		}
		l.lastCR = cr
		if cr || b == '\n' {
			if l.skip {
				l.skip = false
				*n = 0
				continue
			}
			return nil
		}
		if l.skip {
			continue
		}
		if *n >= len(buf) {
			*n = 0
			l.skip = true
			return ErrLineOverflow
		}
		buf[*n] = b
		*n++
	}
}

// Write sends p on the active connection. Output is discarded while no
// connection is attached.
func (l *Link) Write(p []byte) (int, error) {
	l.mu.Lock()
	s := l.cur
	l.mu.Unlock()
	if s == nil {
		return len(p), nil
	}
	s.wmu.Lock()
	n, err := s.conn.Write(p)
	s.wmu.Unlock()
	if err != nil {
		l.drop(s, err)
		return n, err
	}
	return n, nil
}
