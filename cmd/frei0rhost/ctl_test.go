// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package main

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frei0rhost/frei0rhost/internal/control"
)

type recordingHost struct {
	mu       sync.Mutex
	selected []string
	size     [2]int
}

func (h *recordingHost) Select(_ context.Context, ref string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.selected = append(h.selected, ref)
	return nil
}

func (h *recordingHost) Resize(width, height int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.size = [2]int{width, height}
}

func (h *recordingHost) Plugin() control.PluginStatus {
	return control.PluginStatus{Requested: "/plugins/plasma.lua", Active: "/plugins/plasma.lua", Name: "plasma", Width: 64, Height: 48}
}

// startControl isolates the test and serves h on the control socket
// "ctltest".
func startControl(t *testing.T, h control.Host, shutdown control.ShutdownFunc) {
	t.Helper()
	isolate(t)
	s := control.NewServer("ctltest", h, shutdown)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
}

func TestCtlCommand_Status(t *testing.T) {
	startControl(t, &recordingHost{}, nil)

	output, err := runRoot("ctl", "--name", "ctltest", "status")
	require.NoError(t, err)
	assert.Contains(t, output, "plasma")
	assert.Contains(t, output, "64x48")

	output, err = runRoot("ctl", "--name", "ctltest", "status", "--json")
	require.NoError(t, err)
	var st control.StatusResponse
	require.NoError(t, json.Unmarshal([]byte(output), &st))
	assert.Equal(t, "ctltest", st.Name)
	assert.Equal(t, "/plugins/plasma.lua", st.Plugin.Active)
}

func TestCtlCommand_SelectAndResize(t *testing.T) {
	h := &recordingHost{}
	startControl(t, h, nil)

	_, err := runRoot("ctl", "--name", "ctltest", "select", "invert")
	require.NoError(t, err)
	_, err = runRoot("ctl", "--name", "ctltest", "resize", "320", "240")
	require.NoError(t, err)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []string{"invert"}, h.selected)
	assert.Equal(t, [2]int{320, 240}, h.size)
}

func TestCtlCommand_ResizeRejectsNonNumbers(t *testing.T) {
	_, err := execute(t, "ctl", "resize", "wide", "240")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid width")
}

func TestCtlCommand_Stop(t *testing.T) {
	stopped := make(chan struct{})
	startControl(t, &recordingHost{}, func() { close(stopped) })

	output, err := runRoot("ctl", "--name", "ctltest", "stop")
	require.NoError(t, err)
	assert.Contains(t, output, "shutdown initiated")
	<-stopped
}

func TestCtlCommand_NoHost(t *testing.T) {
	_, err := execute(t, "ctl", "--name", "absent", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "42s", formatUptime(42))
	assert.Equal(t, "2m 5s", formatUptime(125))
	assert.Equal(t, "1h 1m", formatUptime(3660))
}
