package worker

import (
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"
)

var sdNotify = daemon.SdNotify

// NotifySystemd sends state (daemon.SdNotifyReady, daemon.SdNotifyStopping) to the
// service manager. Outside systemd it does nothing.
func NotifySystemd(logger *slog.Logger, state string) {
	sent, err := sdNotify(false, state)
	switch {
	case err != nil:
		logger.Warn("systemd notification failed", slog.String("state", state), slog.Any("error", err))
	case sent:
		logger.Debug("systemd notified", slog.String("state", state))
	}
}
