// Package scheduler runs the background workers: the notification
// dispatcher draining the notification_jobs table and the waitlist sweeper
// expiring stale offers.
package scheduler

import "time"

type Config struct {
	PollInterval  time.Duration
	SweepInterval time.Duration
	BatchSize     int
	LockTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 25
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = 5 * time.Minute
	}
	return c
}
