// Package timeouts defines shared timeout constants used across roster
// processes.
package timeouts

import "time"

// StorageOperation caps a single store call issued by the domain service.
const StorageOperation = 5 * time.Second

// StorageOpen caps connecting to and migrating a store at startup.
const StorageOpen = 30 * time.Second

// SQLiteBusy is how long a SQLite connection waits on a held write lock.
const SQLiteBusy = 5 * time.Second

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second
