// Package lifecycle carries process lifecycle plumbing: stop reasons for
// shutdown logging and sd_notify integration for running under systemd.
package lifecycle

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "telebio/pkg/logx"
)

type StopReason string

const (
	StopUnknown    StopReason = "unknown"
	StopSIGINT     StopReason = "sigint"
	StopSIGTERM    StopReason = "sigterm"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)

// Notifier forwards service state to systemd when the process runs under it
// (Type=notify units). Outside systemd every call is a cheap no-op because
// NOTIFY_SOCKET is unset.
type Notifier struct {
	log logx.Logger
}

func NewNotifier(log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{log: log}
}

func (n *Notifier) Ready() {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		n.log.Warn("sd_notify READY failed", logx.Err(err))
		return
	}
	if sent {
		n.log.Debug("sd_notify READY sent")
	}
}

func (n *Notifier) Stopping() {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		n.log.Warn("sd_notify STOPPING failed", logx.Err(err))
	}
}

// WatchdogLoop pings the systemd watchdog at half its configured interval.
// Returns immediately when the unit has no WatchdogSec set.
func (n *Notifier) WatchdogLoop(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.log.Warn("sd_watchdog probe failed", logx.Err(err))
		return
	}
	if interval == 0 {
		return
	}

	tick := time.NewTicker(interval / 2)
	defer tick.Stop()
	n.log.Debug("sd_watchdog enabled", logx.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				n.log.Warn("sd_notify WATCHDOG failed", logx.Err(err))
			}
		}
	}
}
