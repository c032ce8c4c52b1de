// Package process stops and relaunches the Steam client.
package process

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"steamswitch/internal/logging"
)

var (
	ErrStopTimeout = errors.New("steam did not exit in time")
	ErrStartFailed = errors.New("failed to start steam")
	ErrProcessList = errors.New("failed to read process list")
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultStopTimeout  = 5 * time.Second
)

// Table is the slice of the OS process table the controller needs.
type Table interface {
	Running(name string) (bool, error)
	Kill(name string) error
}

// Launcher spawns an executable and returns without waiting for it.
type Launcher interface {
	Launch(path string, args []string, elevated bool) error
}

type Controller struct {
	table        Table
	launcher     Launcher
	processName  string
	pollInterval time.Duration
	stopTimeout  time.Duration
	now          func() time.Time
	sleep        func(time.Duration)
}

type Option func(*Controller)

// WithClock replaces the wall clock used by Stop.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(c *Controller) {
		c.now = now
		c.sleep = sleep
	}
}

func WithTimings(pollInterval, stopTimeout time.Duration) Option {
	return func(c *Controller) {
		c.pollInterval = pollInterval
		c.stopTimeout = stopTimeout
	}
}

func NewController(table Table, launcher Launcher, processName string, opts ...Option) *Controller {
	c := &Controller{
		table:        table,
		launcher:     launcher,
		processName:  processName,
		pollInterval: DefaultPollInterval,
		stopTimeout:  DefaultStopTimeout,
		now:          time.Now,
		sleep:        time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDefaultController drives the local Steam client.
func NewDefaultController() *Controller {
	return NewController(SystemTable{}, SystemLauncher{}, ClientProcessName())
}

// IsRunning reports whether a client process is alive. An unreadable
// process table counts as not running.
func (c *Controller) IsRunning() bool {
	running, err := c.table.Running(c.processName)
	if err != nil {
		logging.ErrorLogger.Printf("list processes: %v", err)
		return false
	}
	return running
}

// Stop kills the client and waits for it to disappear. It returns
// ErrStopTimeout once the stop timeout has fully elapsed with the client
// still alive, and ErrProcessList when the process table cannot be read
// at all; callers must not touch shared files after either.
func (c *Controller) Stop() error {
	running, err := c.table.Running(c.processName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProcessList, err)
	}
	if !running {
		return nil
	}

	logging.InfoLogger.Printf("stopping %s", c.processName)
	if err := c.table.Kill(c.processName); err != nil {
		logging.ErrorLogger.Printf("kill %s: %v", c.processName, err)
	}

	deadline := c.now().Add(c.stopTimeout)
	for {
		running, err := c.table.Running(c.processName)
		if err != nil {
			logging.ErrorLogger.Printf("list processes: %v", err)
		} else if !running {
			return nil
		}
		remaining := deadline.Sub(c.now())
		if remaining <= 0 {
			return fmt.Errorf("%w: still running after %s", ErrStopTimeout, c.stopTimeout)
		}
		c.sleep(min(c.pollInterval, remaining))
	}
}

// Start launches the executable at path with the whitespace-separated
// arguments in launchOptions.
func (c *Controller) Start(path string, elevated bool, launchOptions string) error {
	args := SplitArgs(launchOptions)
	logging.InfoLogger.Printf("starting %s (elevated=%t, args=%q)", path, elevated, args)
	if err := c.launcher.Launch(path, args, elevated); err != nil {
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	return nil
}

// SplitArgs tokenizes launch options on runs of whitespace.
func SplitArgs(s string) []string {
	return strings.Fields(s)
}
