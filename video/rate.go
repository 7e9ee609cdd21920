/*
NAME
  rate.go

DESCRIPTION
  rate.go provides RateMeter, a bitrate measurement over a minimum window.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package video

import (
	"sync"
	"time"

	"github.com/ausocean/utils/bitrate"
)

// MinRateWindow is the shortest period a RateMeter measures over.
const MinRateWindow = 100 * time.Millisecond

// RateMeter measures a bitrate using a bitrate.Calculator. Each measurement
// covers at least MinRateWindow; Bitrate called sooner returns the previous
// measurement.
type RateMeter struct {
	calc *bitrate.Calculator

	mu   sync.Mutex
	last int
	at   time.Time
}

// NewRateMeter returns a RateMeter whose first window starts now.
func NewRateMeter() *RateMeter {
	return &RateMeter{calc: bitrate.NewCalculator(), at: time.Now()}
}

// Report records n bytes.
func (m *RateMeter) Report(n int) { m.calc.Report(n) }

// Bitrate returns the bitrate in bits per second over the window ending now,
// and starts a new window, or returns the previous bitrate if the current
// window is shorter than MinRateWindow.
func (m *RateMeter) Bitrate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if time.Since(m.at) < MinRateWindow {
		return m.last
	}
	m.last = m.calc.Bitrate()
	m.at = time.Now()
	return m.last
}
