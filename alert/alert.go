// Package alert sends reports about corrupt record files and failed
// writes to an HTTP endpoint.
//
// Sending never blocks the caller: reports are queued and POSTed as json
// by a background worker. After a failed POST the notifier stops sending
// for a while.
package alert

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/carlmjohnson/requests"

	"github.com/kjk/recstore/log"
	"github.com/kjk/recstore/recstore"
)

const (
	// how long to wait before we resume sending after a failure
	DefaultThrottle = time.Second * 15
	DefaultTimeout  = time.Second * 10

	queueSize = 256

	KindCorrupt    = "corrupt"
	KindWriteError = "write_error"
)

type Config struct {
	// URL to which reports are POSTed
	URL string
	// if set, sent as X-Api-Key header
	ApiKey   string
	Throttle time.Duration
	Timeout  time.Duration
}

type Report struct {
	Kind        string    `json:"kind"`
	Path        string    `json:"path"`
	Host        string    `json:"host,omitempty"`
	Time        time.Time `json:"time"`
	RecordCount uint64    `json:"record_count,omitempty"`
	Remainder   int64     `json:"remainder,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Notifier implements recstore.Observer
type Notifier struct {
	recstore.NopObserver

	config Config
	host   string
	ch     chan *Report
	done   chan struct{}

	mu            sync.Mutex
	throttleUntil time.Time
	stopped       bool
	// number of reports dropped because of throttling or full queue
	nDropped int
	nSent    int
}

var _ recstore.Observer = (*Notifier)(nil)

func New(config *Config) (*Notifier, error) {
	if config == nil || config.URL == "" {
		return nil, errors.New("must provide URL in config")
	}
	n := &Notifier{
		config: *config,
		ch:     make(chan *Report, queueSize),
		done:   make(chan struct{}),
	}
	if n.config.Throttle == 0 {
		n.config.Throttle = DefaultThrottle
	}
	if n.config.Timeout == 0 {
		n.config.Timeout = DefaultTimeout
	}
	n.host, _ = os.Hostname()
	go n.worker()
	return n, nil
}

func (n *Notifier) post(r *Report) error {
	d, err := json.Marshal(r)
	if err != nil {
		return err
	}
	rb := requests.
		URL(n.config.URL).
		BodyBytes(d).
		ContentType("application/json")
	if n.config.ApiKey != "" {
		rb = rb.Header("X-Api-Key", n.config.ApiKey)
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.config.Timeout)
	defer cancel()
	return rb.Fetch(ctx)
}

func (n *Notifier) worker() {
	defer close(n.done)
	for r := range n.ch {
		err := n.post(r)
		n.mu.Lock()
		if err != nil {
			n.throttleUntil = time.Now().Add(n.config.Throttle)
		} else {
			n.nSent++
		}
		n.mu.Unlock()
		if err != nil {
			log.Logf("alert: POST %s failed: %v, will throttle for %s\n", n.config.URL, err, n.config.Throttle)
		}
	}
}

// Send queues r for sending. Returns false if r was dropped.
func (n *Notifier) Send(r *Report) bool {
	if r.Time.IsZero() {
		r.Time = time.Now()
	}
	if r.Host == "" {
		r.Host = n.host
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return false
	}
	if left := time.Until(n.throttleUntil); left > 0 {
		n.nDropped++
		log.Verbosef("alert: skipping '%s' because throttling for %s\n", r.Kind, left)
		return false
	}
	select {
	case n.ch <- r:
		return true
	default:
		n.nDropped++
		log.Logf("alert: dropping '%s' report for '%s': queue full\n", r.Kind, r.Path)
		return false
	}
}

// Stop sends queued reports and stops the worker. Safe to call many times.
func (n *Notifier) Stop() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	close(n.ch)
	n.mu.Unlock()
	<-n.done
}

// Stats returns number of reports sent and dropped so far
func (n *Notifier) Stats() (sent int, dropped int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nSent, n.nDropped
}

func (n *Notifier) Opened(path string, recordCount uint64, state recstore.LoadState, remainder int64) {
	if state != recstore.LoadCorrupt {
		return
	}
	n.Send(&Report{
		Kind:        KindCorrupt,
		Path:        path,
		RecordCount: recordCount,
		Remainder:   remainder,
	})
}

func (n *Notifier) Wrote(path string, dur time.Duration, err error) {
	if err == nil {
		return
	}
	n.Send(&Report{
		Kind:  KindWriteError,
		Path:  path,
		Error: err.Error(),
	})
}
