// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package goplugin

import (
	"errors"
	"net/rpc"

	hashiplug "github.com/hashicorp/go-plugin"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// HandshakeConfig is shared by the host and the sandbox child. The child is
// the same frei0rhost binary, so drift is impossible as long as both sides
// read it from here.
var HandshakeConfig = hashiplug.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "FREI0RHOST_SANDBOX",
	MagicCookieValue: "frei0r-1",
}

// pluginName is the single plugin dispensed over the connection.
const pluginName = "frei0r"

// PluginMap is the map of plugins the host can dispense.
var PluginMap = hashiplug.PluginSet{
	pluginName: &LibraryPlugin{},
}

// OpenFunc loads a plugin library inside the sandbox child.
type OpenFunc func(path string) (frei0r.Library, error)

// LibraryPlugin implements go-plugin's net/rpc Plugin interface for one
// frei0r library.
type LibraryPlugin struct {
	// Open is used by the child side (not used by host).
	Open OpenFunc
}

// Server returns the RPC receiver (called by the sandbox child).
func (p *LibraryPlugin) Server(_ *hashiplug.MuxBroker) (interface{}, error) {
	if p.Open == nil {
		return nil, errors.New("goplugin: open function is nil")
	}
	return &RPCServer{open: p.Open}, nil
}

// Client returns a frei0r.Library backed by the connection (called by host).
func (p *LibraryPlugin) Client(_ *hashiplug.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &RPCClient{client: c}, nil
}

// Serve runs the child side of the sandbox until the host disconnects.
func Serve(open OpenFunc) {
	hashiplug.Serve(&hashiplug.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins: hashiplug.PluginSet{
			pluginName: &LibraryPlugin{Open: open},
		},
	})
}
