package backend

import (
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"
)

const ewmaAlpha = 0.2

// Instance is an upstream server reachable through a reverse proxy.
type Instance struct {
	url          *url.URL
	address      string
	proxy        *httputil.ReverseProxy
	mutex        sync.Mutex
	inFlight     int
	served       int64
	ewmaResponse time.Duration
	hasEWMA      bool
}

// New creates an Instance for rawURL.
func New(rawURL string) (*Instance, error) {
	address := strings.TrimRight(rawURL, "/")

	u, err := url.Parse(address)
	if err != nil {
		return nil, err
	}

	return &Instance{
		url:     u,
		address: address,
		proxy:   httputil.NewSingleHostReverseProxy(u),
	}, nil
}

// Address is the instance URL as configured, without a trailing slash.
func (i *Instance) Address() string {
	return i.address
}

func (i *Instance) URL() *url.URL {
	return i.url
}

func (i *Instance) ReverseProxy() *httputil.ReverseProxy {
	return i.proxy
}

// Begin marks a request as in flight.
func (i *Instance) Begin() {
	i.mutex.Lock()
	i.inFlight++
	i.mutex.Unlock()
}

// Done ends an in-flight request and folds its duration into the average.
func (i *Instance) Done(duration time.Duration) {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if i.inFlight > 0 {
		i.inFlight--
	}
	i.served++

	if !i.hasEWMA {
		i.ewmaResponse = duration
		i.hasEWMA = true
		return
	}
	// ewma = (1 - α) * ewma + α * latest
	i.ewmaResponse = time.Duration((1-ewmaAlpha)*float64(i.ewmaResponse) + ewmaAlpha*float64(duration))
}

func (i *Instance) InFlight() int {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.inFlight
}

func (i *Instance) Served() int64 {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.served
}

// EWMATime returns 0 until the first request completes.
func (i *Instance) EWMATime() time.Duration {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	return i.ewmaResponse
}
