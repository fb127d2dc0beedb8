// Package discovery advertises hubs on the local network over mDNS and
// finds the ones other machines advertise.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"

	"github.com/dshills/collabedit/internal/logging"
)

const (
	// Service is the DNS-SD service type hubs register under.
	Service = "_collabedit._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// ProtocolVersion is advertised in the TXT record.
	ProtocolVersion = "1"
)

// ErrNoHubs is returned by First when browsing found nothing.
var ErrNoHubs = errors.New("no hubs found")

// Hub is an advertised hub.
type Hub struct {
	Instance string
	Host     string
	Port     int
	Addrs    []net.IP
	Version  string
}

// Addr returns host:port, preferring the first advertised address.
func (h Hub) Addr() string {
	host := strings.TrimSuffix(h.Host, ".")
	if len(h.Addrs) > 0 {
		host = h.Addrs[0].String()
	}
	return net.JoinHostPort(host, strconv.Itoa(h.Port))
}

// URL returns the websocket URL of document doc on the hub.
func (h Hub) URL(doc string) string {
	u := url.URL{Scheme: "ws", Host: h.Addr(), Path: "/docs/" + url.PathEscape(doc)}
	return u.String()
}

func (h Hub) String() string {
	return fmt.Sprintf("%s (%s)", h.Instance, h.Addr())
}

// Advertiser keeps a hub registered until Shutdown.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers a hub listening on port under instance.
func Advertise(instance string, port int) (*Advertiser, error) {
	server, err := zeroconf.Register(instance, Service, Domain, port,
		[]string{"version=" + ProtocolVersion}, nil)
	if err != nil {
		return nil, fmt.Errorf("registering %s: %w", Service, err)
	}
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertiser) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// Browse collects hubs until ctx is done. Callers bound it with a timeout.
func Browse(ctx context.Context, logger *logging.Logger) ([]Hub, error) {
	if logger == nil {
		logger = logging.Null()
	}
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("creating resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, Service, Domain, entries); err != nil {
		return nil, fmt.Errorf("browsing %s: %w", Service, err)
	}

	seen := map[string]Hub{}
	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return collect(seen), nil
			}
			if e == nil || e.Port == 0 {
				continue
			}
			h := fromEntry(e)
			logger.Debug("discovered %s", h)
			seen[h.Instance] = h
		case <-ctx.Done():
			return collect(seen), nil
		}
	}
}

// First browses until one hub answers or ctx is done.
func First(ctx context.Context, logger *logging.Logger) (Hub, error) {
	if logger == nil {
		logger = logging.Null()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return Hub{}, fmt.Errorf("creating resolver: %w", err)
	}
	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, Service, Domain, entries); err != nil {
		return Hub{}, fmt.Errorf("browsing %s: %w", Service, err)
	}
	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return Hub{}, ErrNoHubs
			}
			if e == nil || e.Port == 0 {
				continue
			}
			h := fromEntry(e)
			logger.Debug("using %s", h)
			return h, nil
		case <-ctx.Done():
			return Hub{}, ErrNoHubs
		}
	}
}

func fromEntry(e *zeroconf.ServiceEntry) Hub {
	h := Hub{
		Instance: e.Instance,
		Host:     e.HostName,
		Port:     e.Port,
	}
	h.Addrs = append(h.Addrs, e.AddrIPv4...)
	h.Addrs = append(h.Addrs, e.AddrIPv6...)
	for _, kv := range e.Text {
		if v, ok := strings.CutPrefix(kv, "version="); ok {
			h.Version = v
		}
	}
	return h
}

func collect(seen map[string]Hub) []Hub {
	hubs := make([]Hub, 0, len(seen))
	for _, h := range seen {
		hubs = append(hubs, h)
	}
	sort.Slice(hubs, func(i, j int) bool { return hubs[i].Instance < hubs[j].Instance })
	return hubs
}
