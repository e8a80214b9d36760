// Package discoverysvc announces board servers on the local network and finds them.
package discoverysvc

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/pkg/errors"
)

const ServiceType = "_masomo-board._tcp"

// Server is a board API found on the LAN.
type Server struct {
	Instance string
	Addr     string // host:port
	Info     []string
}

func (s Server) URL() string { return "http://" + s.Addr }

// Advertiser answers mDNS queries for one board server until shut down.
type Advertiser struct {
	server *mdns.Server
}

func (a *Advertiser) Shutdown() error {
	return errors.Wrap(a.server.Shutdown(), "mdns.Shutdown")
}

// Advertise announces a board server listening on port. info ends up in the TXT record.
func Advertise(appName string, port int, info ...string) (*Advertiser, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, errors.Wrap(err, "os.Hostname")
	}
	service, err := newService(host, "", port, nil, append([]string{appName}, info...))
	if err != nil {
		return nil, err
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, errors.Wrap(err, "mdns.NewServer")
	}
	return &Advertiser{server: server}, nil
}

// newService builds the zone; empty hostName and nil ips are auto-detected.
func newService(instance, hostName string, port int, ips []net.IP, txt []string) (*mdns.MDNSService, error) {
	service, err := mdns.NewMDNSService(instance, ServiceType, "", hostName, port, ips, txt)
	if err != nil {
		return nil, errors.Wrap(err, "mdns.NewMDNSService")
	}
	return service, nil
}

// Browse collects the board servers answering within timeout.
func Browse(ctx context.Context, timeout time.Duration) ([]Server, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	found := make(map[string]Server)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if srv, ok := entryToServer(e); ok {
				found[srv.Addr] = srv
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	errc := make(chan error, 1)
	go func() { errc <- mdns.Query(params) }()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
		<-errc // Query returns after its timeout
	}
	close(entries)
	<-done
	if err != nil {
		return nil, errors.Wrap(err, "mdns.Query")
	}

	servers := make([]Server, 0, len(found))
	for _, srv := range found {
		servers = append(servers, srv)
	}
	return servers, nil
}

func entryToServer(e *mdns.ServiceEntry) (Server, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Server{}, false
	}
	if !strings.Contains(e.Name, ServiceType) {
		return Server{}, false
	}
	instance := strings.SplitN(e.Name, ".", 2)[0]
	return Server{
		Instance: instance,
		Addr:     fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port),
		Info:     e.InfoFields,
	}, true
}
