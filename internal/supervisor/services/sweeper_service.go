// Roomcast - Durable Real-Time Room Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roomcast

package services

import (
	"context"
	"time"
)

// Sweeper matches *longpoll.Manager's RunSweeper method.
type Sweeper interface {
	RunSweeper(ctx context.Context, interval time.Duration) error
}

// SweeperService runs the long-poll TTL sweeper under supervision.
type SweeperService struct {
	sweeper  Sweeper
	interval time.Duration
	name     string
}

// NewSweeperService creates the sweeper wrapper. An interval <= 0 falls
// back to 10 seconds.
func NewSweeperService(sweeper Sweeper, interval time.Duration) *SweeperService {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &SweeperService{
		sweeper:  sweeper,
		interval: interval,
		name:     "longpoll-sweeper",
	}
}

// Serve implements suture.Service. Blocks sweeping expired mailboxes until
// the context is canceled.
func (s *SweeperService) Serve(ctx context.Context) error {
	return s.sweeper.RunSweeper(ctx, s.interval)
}

// String implements fmt.Stringer for suture's log messages.
func (s *SweeperService) String() string {
	return s.name
}
