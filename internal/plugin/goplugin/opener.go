// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

// Package goplugin runs frei0r plugin libraries in a child process using
// HashiCorp's go-plugin over net/rpc, so a crashing plugin takes down the
// child instead of the host.
package goplugin

import (
	"os"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
)

// PluginClient wraps go-plugin client for testability.
type PluginClient interface {
	// Client returns the RPC client protocol.
	Client() (hashiplug.ClientProtocol, error)
	// Kill terminates the sandbox process.
	Kill()
}

// ClientFactory creates plugin clients.
type ClientFactory interface {
	// NewClient creates a client that will host the library at pluginPath.
	NewClient(pluginPath string) PluginClient
}

// DefaultClientFactory starts "<Executable> sandbox <path>" children.
type DefaultClientFactory struct {
	// Executable is the frei0rhost binary, usually os.Executable().
	Executable string
	Logger     hclog.Logger
}

// NewClient creates a real go-plugin client.
func (f *DefaultClientFactory) NewClient(pluginPath string) PluginClient {
	logger := f.Logger
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{
			Name:   "sandbox",
			Level:  hclog.Warn,
			Output: os.Stderr,
		})
	}
	return hashiplug.NewClient(&hashiplug.ClientConfig{
		HandshakeConfig:  HandshakeConfig,
		Plugins:          PluginMap,
		Cmd:              exec.Command(f.Executable, "sandbox", pluginPath), // #nosec G204 -- executable is our own binary; path is a scanned plugin candidate
		AllowedProtocols: []hashiplug.Protocol{hashiplug.ProtocolNetRPC},
		Logger:           logger.With("plugin", pluginPath),
	})
}

// Opener loads each library in its own sandbox process.
type Opener struct {
	clientFactory ClientFactory
}

// NewOpener creates an opener that re-executes executable as the sandbox.
func NewOpener(executable string) *Opener {
	return &Opener{clientFactory: &DefaultClientFactory{Executable: executable}}
}

// NewOpenerWithFactory creates an opener with a custom client factory (for testing).
// Panics if factory is nil.
func NewOpenerWithFactory(factory ClientFactory) *Opener {
	if factory == nil {
		panic("goplugin: factory cannot be nil")
	}
	return &Opener{clientFactory: factory}
}

// Open starts a sandbox, loads path in it and returns the remote library.
// Load failures in the child keep their error code.
func (o *Opener) Open(path string) (frei0r.Library, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, oops.Code(frei0r.CodeLoad).With("path", path).Wrap(err)
	}

	client := o.clientFactory.NewClient(path)

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, oops.Code(frei0r.CodeLoad).With("path", path).Wrapf(err, "start sandbox")
	}

	raw, err := rpcClient.Dispense(pluginName)
	if err != nil {
		client.Kill()
		return nil, oops.Code(frei0r.CodeLoad).With("path", path).Wrapf(err, "dispense sandbox plugin")
	}

	lib, ok := raw.(*RPCClient)
	if !ok {
		client.Kill()
		return nil, oops.Code(frei0r.CodeLoad).With("path", path).Errorf("sandbox returned %T", raw)
	}
	lib.kill = client.Kill

	if err := lib.open(path); err != nil {
		client.Kill()
		return nil, err
	}
	return lib, nil
}
