package syncer

import (
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/stellar/go/support/log"
)

const (
	probeInterval = 10 * time.Second
	probeTimeout  = 5 * time.Second
)

// Reachability reports whether the ledger endpoint is reachable and notifies
// subscribers when that answer flips.
type Reachability interface {
	Reachable() bool
	Subscribe() (<-chan bool, func())
}

// DialProbe is a Reachability that periodically dials the endpoint's TCP
// address. It starts optimistic so the first sync attempt is not gated on
// the first probe completing.
type DialProbe struct {
	address string
	log     *log.Entry

	mu        sync.Mutex
	reachable bool
	subs      map[int]chan bool
	nextSubID int
	done      chan struct{}
	closeOnce sync.Once
}

func NewDialProbe(endpointURL string, logger *log.Entry) (*DialProbe, error) {
	parsed, err := url.Parse(endpointURL)
	if err != nil {
		return nil, err
	}
	host := parsed.Host
	if parsed.Port() == "" {
		port := "443"
		if parsed.Scheme == "http" {
			port = "80"
		}
		host = net.JoinHostPort(parsed.Hostname(), port)
	}
	p := &DialProbe{
		address:   host,
		log:       logger.WithField("subservice", "reachability"),
		reachable: true,
		subs:      map[int]chan bool{},
		done:      make(chan struct{}),
	}
	go p.loop()
	return p, nil
}

func (p *DialProbe) loop() {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()
	for {
		p.update(p.probe())
		select {
		case <-ticker.C:
		case <-p.done:
			return
		}
	}
}

func (p *DialProbe) probe() bool {
	conn, err := net.DialTimeout("tcp", p.address, probeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (p *DialProbe) update(reachable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if reachable == p.reachable {
		return
	}
	p.reachable = reachable
	p.log.WithField("reachable", reachable).Info("network reachability changed")
	for _, ch := range p.subs {
		select {
		case ch <- reachable:
		default:
		}
	}
}

func (p *DialProbe) Reachable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reachable
}

func (p *DialProbe) Subscribe() (<-chan bool, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSubID
	p.nextSubID++
	ch := make(chan bool, 1)
	p.subs[id] = ch
	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (p *DialProbe) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}
