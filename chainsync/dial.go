// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chainsync

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	ouroboros "github.com/blinklabs-io/gouroboros"
)

const DefaultDialTimeout = 10 * time.Second

// Dialer opens the transport connection to a node
type Dialer interface {
	Dial(ctx context.Context) (net.Conn, error)
}

// NodeDialer dials a node over TCP, optionally wrapped in TLS
type NodeDialer struct {
	Host    string
	Port    uint
	TLS     bool
	Timeout time.Duration
}

func (d NodeDialer) Address() string {
	return net.JoinHostPort(d.Host, strconv.FormatUint(uint64(d.Port), 10))
}

func (d NodeDialer) Dial(ctx context.Context) (net.Conn, error) {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}
	netDialer := &net.Dialer{Timeout: timeout}
	if !d.TLS {
		conn, err := netDialer.DialContext(ctx, "tcp", d.Address())
		if err != nil {
			return nil, fmt.Errorf("connect to %s: %w", d.Address(), err)
		}
		return conn, nil
	}
	tlsDialer := &tls.Dialer{
		NetDialer: netDialer,
		Config: &tls.Config{
			ServerName: d.Host,
			MinVersion: tls.VersionTLS12,
		},
	}
	conn, err := tlsDialer.DialContext(ctx, "tcp", d.Address())
	if err != nil {
		return nil, fmt.Errorf("connect to %s over TLS: %w", d.Address(), err)
	}
	return conn, nil
}

// Tip is the remote chain tip reported by a probe
type Tip struct {
	Hash   []byte
	Slot   uint64
	Height uint64
}

// Probe opens a short lived compact connection, without keep-alive, and
// queries the chain tip. The handshake fails when the node runs a different
// network magic.
func Probe(
	ctx context.Context,
	dialer Dialer,
	networkMagic uint32,
	nodeToNode bool,
) (Tip, error) {
	conn, err := dialer.Dial(ctx)
	if err != nil {
		return Tip{}, err
	}
	oConn, err := ouroboros.NewConnection(
		ouroboros.WithConnection(conn),
		ouroboros.WithNetworkMagic(networkMagic),
		ouroboros.WithNodeToNode(nodeToNode),
		ouroboros.WithKeepAlive(false),
	)
	if err != nil {
		conn.Close()
		return Tip{}, fmt.Errorf("handshake: %w", err)
	}
	defer oConn.Close()
	tip, err := oConn.ChainSync().Client.GetCurrentTip()
	if err != nil {
		return Tip{}, fmt.Errorf("query chain tip: %w", err)
	}
	return Tip{
		Hash:   tip.Point.Hash,
		Slot:   tip.Point.Slot,
		Height: tip.BlockNumber,
	}, nil
}
