package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestFromEntry(t *testing.T) {
	e := zeroconf.NewServiceEntry("hub-a", Service, Domain)
	e.HostName = "box.local."
	e.Port = 8080
	e.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}
	e.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}
	e.Text = []string{"version=1", "other=x"}

	h := fromEntry(e)
	if h.Instance != "hub-a" || h.Port != 8080 || h.Version != "1" {
		t.Errorf("fromEntry() = %+v", h)
	}
	if len(h.Addrs) != 2 {
		t.Fatalf("Addrs = %v", h.Addrs)
	}
	if got := h.Addr(); got != "192.168.1.20:8080" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestHub_URL(t *testing.T) {
	tests := []struct {
		name     string
		hub      Hub
		doc      string
		expected string
	}{
		{"ipv4", Hub{Port: 80, Addrs: []net.IP{net.ParseIP("10.0.0.1")}}, "notes", "ws://10.0.0.1:80/docs/notes"},
		{"ipv6", Hub{Port: 9000, Addrs: []net.IP{net.ParseIP("::1")}}, "a.txt", "ws://[::1]:9000/docs/a.txt"},
		{"host only", Hub{Host: "box.local.", Port: 8080}, "notes", "ws://box.local:8080/docs/notes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.hub.URL(tt.doc); got != tt.expected {
				t.Errorf("URL(%q) = %q, expected %q", tt.doc, got, tt.expected)
			}
		})
	}
}

func TestCollect_SortsByInstance(t *testing.T) {
	hubs := collect(map[string]Hub{
		"b": {Instance: "b"},
		"a": {Instance: "a"},
		"c": {Instance: "c"},
	})
	for i, want := range []string{"a", "b", "c"} {
		if hubs[i].Instance != want {
			t.Errorf("hubs[%d] = %s, expected %s", i, hubs[i].Instance, want)
		}
	}
}
