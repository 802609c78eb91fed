// Package timeouts defines shared timeout constants used across the vine
// race binaries.
package timeouts

import "time"

// Tick is the server scheduling interval. Pending transport events are
// drained once per tick.
const Tick = time.Second / 30

// Frame is the client step interval for renderers without their own clock.
const Frame = time.Second / 60

// GRPCDial caps the wait time when dialing the server.
const GRPCDial = 2 * time.Second

// JournalWrite caps a single match journal write.
const JournalWrite = 2 * time.Second

// Shutdown limits how long a server waits for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second
