package main

import (
	"path/filepath"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/itohio/godaq/pkg/record"
	"github.com/itohio/godaq/pkg/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T) *appState {
	t.Helper()
	a := test.NewTempApp(t)

	cfg := mockConfig(t)
	cfg.Device.ResetSettle = 300 * time.Millisecond
	state := &appState{
		cfg:        cfg,
		configPath: filepath.Join(t.TempDir(), "config.yaml"),
		window:     a.NewWindow("test"),
		scope:      scope.New(&cfg.Live, channelNames(cfg)),
	}
	createToolbar(state)
	return state
}

func TestStartSession_DoesNotBlockOnDeviceReset(t *testing.T) {
	state := newTestState(t)

	start := time.Now()
	state.startSession()
	assert.Less(t, time.Since(start), 100*time.Millisecond, "device reset must not run on the UI goroutine")
	assert.True(t, state.startBtn.Disabled())
	assert.False(t, state.stopBtn.Disabled())

	// Let the session acquire a few cycles after the reset settles
	time.Sleep(500 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		state.stopSession()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}

	state.mu.Lock()
	assert.Nil(t, state.cancel)
	state.mu.Unlock()

	rows, err := record.ReadCSV(filepath.Join(state.cfg.Output.Dir, "session.csv"))
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
}

func TestStartSession_OpenFailureKeepsUIUsable(t *testing.T) {
	state := newTestState(t)
	state.cfg.Device.Driver = "serial"
	state.cfg.Serial.Port = filepath.Join(t.TempDir(), "missing")

	state.startSession()

	require.Eventually(t, func() bool {
		state.mu.Lock()
		defer state.mu.Unlock()
		return state.cancel == nil
	}, 5*time.Second, 10*time.Millisecond)
}
