// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package goplugin

import (
	"errors"
	"net/rpc"
	"sync"

	"github.com/samber/oops"

	"github.com/frei0rhost/frei0rhost/internal/frei0r"
	"github.com/frei0rhost/frei0rhost/pkg/errutil"
)

// errNotOpen is returned by the child when a call arrives before Open.
var errNotOpen = errors.New("sandbox: no library open")

// OpenReply carries the child's load result. Failures travel as code and
// message because net/rpc only transports error strings.
type OpenReply struct {
	Code       string
	Message    string
	HasUpdate  bool
	HasUpdate2 bool
}

// ConstructArgs are the arguments of f0r_construct.
type ConstructArgs struct {
	Width  int
	Height int
}

// ParamArgs address one parameter of one instance.
type ParamArgs struct {
	Handle frei0r.Handle
	Index  int
	Kind   frei0r.ParamKind
	Value  frei0r.Value
}

// UpdateArgs carry the input frames of one update. Output is returned.
type UpdateArgs struct {
	Handle  frei0r.Handle
	Time    float64
	Update2 bool
	Inputs  [][]uint32
	OutLen  int
}

// RPCServer exposes a frei0r.Library over net/rpc inside the sandbox child.
// Method signatures follow net/rpc conventions.
type RPCServer struct {
	open OpenFunc

	mu  sync.Mutex
	lib frei0r.Library
}

func (s *RPCServer) library() (frei0r.Library, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lib == nil {
		return nil, errNotOpen
	}
	return s.lib, nil
}

// Open loads the library at path.
func (s *RPCServer) Open(path string, reply *OpenReply) error {
	lib, err := s.open(path)
	if err != nil {
		reply.Code = errutil.Code(err)
		reply.Message = err.Error()
		return nil
	}
	s.mu.Lock()
	s.lib = lib
	s.mu.Unlock()
	reply.HasUpdate = lib.HasUpdate()
	reply.HasUpdate2 = lib.HasUpdate2()
	return nil
}

// Init calls f0r_init.
func (s *RPCServer) Init(_ any, reply *int) error {
	lib, err := s.library()
	if err != nil {
		return err
	}
	*reply = lib.Init()
	return nil
}

// Deinit calls f0r_deinit.
func (s *RPCServer) Deinit(_ any, reply *bool) error {
	lib, err := s.library()
	if err != nil {
		return err
	}
	lib.Deinit()
	*reply = true
	return nil
}

// PluginInfo calls f0r_get_plugin_info.
func (s *RPCServer) PluginInfo(_ any, reply *frei0r.PluginInfo) error {
	lib, err := s.library()
	if err != nil {
		return err
	}
	*reply = lib.PluginInfo()
	return nil
}

// ParamInfo calls f0r_get_param_info.
func (s *RPCServer) ParamInfo(index int, reply *frei0r.ParamInfo) error {
	lib, err := s.library()
	if err != nil {
		return err
	}
	*reply = lib.ParamInfo(index)
	return nil
}

// Construct calls f0r_construct.
func (s *RPCServer) Construct(args ConstructArgs, reply *frei0r.Handle) error {
	lib, err := s.library()
	if err != nil {
		return err
	}
	*reply = lib.Construct(args.Width, args.Height)
	return nil
}

// Destruct calls f0r_destruct.
func (s *RPCServer) Destruct(h frei0r.Handle, reply *bool) error {
	lib, err := s.library()
	if err != nil {
		return err
	}
	lib.Destruct(h)
	*reply = true
	return nil
}

// SetParam calls f0r_set_param_value.
func (s *RPCServer) SetParam(args ParamArgs, reply *bool) error {
	lib, err := s.library()
	if err != nil {
		return err
	}
	lib.SetParam(args.Handle, args.Index, args.Value)
	*reply = true
	return nil
}

// GetParam calls f0r_get_param_value.
func (s *RPCServer) GetParam(args ParamArgs, reply *frei0r.Value) error {
	lib, err := s.library()
	if err != nil {
		return err
	}
	*reply = lib.GetParam(args.Handle, args.Index, args.Kind)
	return nil
}

// Update calls f0r_update or f0r_update2 and returns the output frame.
func (s *RPCServer) Update(args UpdateArgs, reply *[]uint32) error {
	lib, err := s.library()
	if err != nil {
		return err
	}
	var in [3][]uint32
	for i := 0; i < len(args.Inputs) && i < len(in); i++ {
		// gob turns nil slices into empty ones.
		if len(args.Inputs[i]) > 0 {
			in[i] = args.Inputs[i]
		}
	}
	out := make([]uint32, args.OutLen)
	if args.Update2 {
		lib.Update2(args.Handle, args.Time, in[0], in[1], in[2], out)
	} else {
		lib.Update(args.Handle, args.Time, in[0], out)
	}
	*reply = out
	return nil
}

// Close unloads the library in the child.
func (s *RPCServer) Close(_ any, reply *bool) error {
	s.mu.Lock()
	lib := s.lib
	s.lib = nil
	s.mu.Unlock()
	if lib == nil {
		*reply = true
		return nil
	}
	if err := lib.Close(); err != nil {
		return err
	}
	*reply = true
	return nil
}

// RPCClient is the host side of the sandbox. It implements frei0r.Library;
// the first transport failure is kept as the fault and turns every later
// call into a no-op returning zero values.
type RPCClient struct {
	client *rpc.Client
	kill   func()

	mu         sync.Mutex
	fault      error
	hasUpdate  bool
	hasUpdate2 bool
	closed     bool
}

// Compile-time interface checks.
var (
	_ frei0r.Library = (*RPCClient)(nil)
	_ frei0r.Faulter = (*RPCClient)(nil)
)

func (c *RPCClient) call(method string, args, reply any) bool {
	c.mu.Lock()
	if c.fault != nil {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	if err := c.client.Call("Plugin."+method, args, reply); err != nil {
		c.mu.Lock()
		if c.fault == nil {
			c.fault = oops.Code(frei0r.CodeFault).With("call", method).Wrap(err)
		}
		c.mu.Unlock()
		return false
	}
	return true
}

// open asks the child to load path.
func (c *RPCClient) open(path string) error {
	var reply OpenReply
	if !c.call("Open", path, &reply) {
		return c.Fault()
	}
	if reply.Message != "" {
		code := reply.Code
		if code == "" {
			code = frei0r.CodeLoad
		}
		return oops.Code(code).With("path", path).With("sandbox", true).Errorf("%s", reply.Message)
	}
	c.mu.Lock()
	c.hasUpdate = reply.HasUpdate
	c.hasUpdate2 = reply.HasUpdate2
	c.mu.Unlock()
	return nil
}

// Fault implements frei0r.Faulter.
func (c *RPCClient) Fault() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fault
}

// Init implements frei0r.Library. A transport failure reads as a rejected
// init.
func (c *RPCClient) Init() int {
	var reply int
	if !c.call("Init", new(any), &reply) {
		return 0
	}
	return reply
}

// Deinit implements frei0r.Library.
func (c *RPCClient) Deinit() {
	var ack bool
	c.call("Deinit", new(any), &ack)
}

// PluginInfo implements frei0r.Library.
func (c *RPCClient) PluginInfo() frei0r.PluginInfo {
	var reply frei0r.PluginInfo
	c.call("PluginInfo", new(any), &reply)
	return reply
}

// ParamInfo implements frei0r.Library.
func (c *RPCClient) ParamInfo(index int) frei0r.ParamInfo {
	var reply frei0r.ParamInfo
	c.call("ParamInfo", index, &reply)
	return reply
}

// Construct implements frei0r.Library.
func (c *RPCClient) Construct(width, height int) frei0r.Handle {
	var reply frei0r.Handle
	c.call("Construct", ConstructArgs{Width: width, Height: height}, &reply)
	return reply
}

// Destruct implements frei0r.Library.
func (c *RPCClient) Destruct(h frei0r.Handle) {
	var ack bool
	c.call("Destruct", h, &ack)
}

// SetParam implements frei0r.Library.
func (c *RPCClient) SetParam(h frei0r.Handle, index int, v frei0r.Value) {
	var ack bool
	c.call("SetParam", ParamArgs{Handle: h, Index: index, Kind: v.Kind, Value: v}, &ack)
}

// GetParam implements frei0r.Library.
func (c *RPCClient) GetParam(h frei0r.Handle, index int, kind frei0r.ParamKind) frei0r.Value {
	reply := frei0r.Value{Kind: kind}
	c.call("GetParam", ParamArgs{Handle: h, Index: index, Kind: kind}, &reply)
	return reply
}

// HasUpdate implements frei0r.Library.
func (c *RPCClient) HasUpdate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasUpdate
}

// HasUpdate2 implements frei0r.Library.
func (c *RPCClient) HasUpdate2() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasUpdate2
}

// Update implements frei0r.Library.
func (c *RPCClient) Update(h frei0r.Handle, time float64, in, out []uint32) {
	c.update(UpdateArgs{Handle: h, Time: time, Inputs: [][]uint32{in}, OutLen: len(out)}, out)
}

// Update2 implements frei0r.Library.
func (c *RPCClient) Update2(h frei0r.Handle, time float64, in1, in2, in3, out []uint32) {
	c.update(UpdateArgs{
		Handle:  h,
		Time:    time,
		Update2: true,
		Inputs:  [][]uint32{in1, in2, in3},
		OutLen:  len(out),
	}, out)
}

func (c *RPCClient) update(args UpdateArgs, out []uint32) {
	var reply []uint32
	if c.call("Update", args, &reply) {
		copy(out, reply)
	}
}

// Close implements frei0r.Library. It unloads the library in the child and
// then stops the child process.
func (c *RPCClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var ack bool
	c.call("Close", new(any), &ack)
	if c.kill != nil {
		c.kill()
	}
	return nil
}
