package telegram

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Registrar is the part of *tele.Bot used to install handlers.
type Registrar interface {
	Handle(endpoint interface{}, h tele.HandlerFunc, m ...tele.MiddlewareFunc)
}

var replyOptions = &tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true}

// Register installs one handler per command on r.
func (c *Commands) Register(r Registrar) {
	for _, cmd := range c.commands {
		r.Handle("/"+cmd.name, c.handler(cmd))
	}
}

func (c *Commands) handler(cmd command) tele.HandlerFunc {
	return func(tc tele.Context) error {
		sender := tc.Sender()
		msg := tc.Message()
		if sender == nil || msg == nil {
			return nil
		}
		if cmd.ack != "" && c.IsAdmin(sender.ID) {
			if err := tc.Send(cmd.ack, replyOptions); err != nil {
				c.logger.Warn("failed to send acknowledgement", slog.String("command", cmd.name), slog.Any("error", err))
			}
		}
		reply := c.Run(context.Background(), sender.ID, cmd.name, msg.Payload)
		return tc.Send(reply, replyOptions)
	}
}

// Poller is the part of *tele.Bot that long-polls for updates.
type Poller interface {
	Start()
	Stop()
}

// Serve polls for updates until ctx is done.
func Serve(ctx context.Context, bot Poller, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("telegram polling started")
		bot.Start()
	}()

	<-ctx.Done()
	bot.Stop()
	<-done
	logger.Info("telegram polling stopped")
	return nil
}
