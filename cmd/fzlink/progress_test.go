package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressPrinter_SilentWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressPrinter(&buf, "Scanning", "Scanning", "Processing results")

	p.Start()
	p.Callback()("Processing results")
	p.Stop()

	assert.Empty(t, buf.String(), "non-terminal output MUST stay clean")
	assert.Equal(t, "Processing results", p.Phase(), "phase MUST be tracked even when silent")
}

func TestProgressPrinter_StartTwicePanics(t *testing.T) {
	p := NewProgressPrinter(&bytes.Buffer{}, "x", "y")
	p.Start()
	assert.Panics(t, p.Start)
}

func TestProgressPrinter_StopPhaseEndsDisplay(t *testing.T) {
	// GOAL: Verify a stop phase reported through the callback clears the line
	//
	// TEST SCENARIO: enabled printer, callback reports the stop phase → line cleared once

	buf := new(syncBuffer)
	p := NewProgressPrinter(buf, "Looking for AA:01", "Scanning", "Processing results")
	p.enabled = true

	p.Start()
	p.Callback()("Processing results")
	p.Stop()

	out := buf.String()
	require.Contains(t, out, "Looking for AA:01 (Scanning...)")
	assert.Equal(t, 1, bytes.Count([]byte(out), []byte(clearLineSequence)), "Stop after a stop phase MUST be a no-op")
}

func TestProgressPrinter_Seconds(t *testing.T) {
	up := NewProgressPrinter(&bytes.Buffer{}, "x", "y")
	up.startTime = time.Now().Add(-2500 * time.Millisecond)
	assert.Equal(t, 2, up.seconds())

	down := NewCountdownProgressPrinter(&bytes.Buffer{}, "x", "y", 15*time.Second)
	down.startTime = time.Now().Add(-5 * time.Second)
	assert.Equal(t, 10, down.seconds())

	down.startTime = time.Now().Add(-time.Minute)
	assert.Equal(t, 0, down.seconds(), "countdown MUST not go negative")
}
