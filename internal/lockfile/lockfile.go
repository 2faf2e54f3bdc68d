// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

// Package lockfile implements the cross-process lock discipline over the
// environment's store.lock file: exclusive for writers, shared for readers,
// bounded retry before giving up.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// ErrBusy is returned when the lock cannot be acquired within the timeout.
var ErrBusy = errors.New("store is locked by another process")

// Mode selects shared (reader) or exclusive (writer) acquisition.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

func (m Mode) String() string {
	if m == Exclusive {
		return "exclusive"
	}
	return "shared"
}

// DefaultTimeout bounds how long Acquire retries before failing with ErrBusy.
const DefaultTimeout = 10 * time.Second

const retryDelay = 50 * time.Millisecond

// Lock is a held advisory lock.
type Lock struct {
	fl   *flock.Flock
	mode Mode
}

// Acquire takes the advisory lock at path. It tries once, then retries with
// a short delay until the timeout elapses.
func Acquire(path string, mode Mode, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	fl := flock.New(path)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var ok bool
	var err error
	switch mode {
	case Exclusive:
		ok, err = fl.TryLockContext(ctx, retryDelay)
	default:
		ok, err = fl.TryRLockContext(ctx, retryDelay)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w (%s, waited %s)", ErrBusy, mode, timeout)
		}
		return nil, fmt.Errorf("acquiring %s lock on %s: %w", mode, path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s, waited %s)", ErrBusy, mode, timeout)
	}
	return &Lock{fl: fl, mode: mode}, nil
}

// Mode returns how the lock was acquired.
func (l *Lock) Mode() Mode { return l.mode }

// Release drops the lock. Safe to call on a nil lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
