// Package telegram exposes the operator command surface over a Telegram bot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/repository"
	"relayfeed/internal/usecase/dispatch"
)

// Pipeline is the part of *dispatch.Pipeline the commands drive.
type Pipeline interface {
	Start(ctx context.Context) dispatch.StartResult
	Stop(ctx context.Context) dispatch.StopResult
	Status() dispatch.Status
	ListDispatchRecords(ctx context.Context, filter repository.ListFilter) ([]*entity.DispatchRecord, error)
	CountDispatchRecords(ctx context.Context) (int64, error)
	Submit(ctx context.Context, title, link string) (*entity.DispatchRecord, error)
}

// WatchList is the part of *watchlist.Service the commands drive.
type WatchList interface {
	Add(ctx context.Context, raw string) (string, bool, error)
	Remove(ctx context.Context, raw string) (bool, error)
	List(ctx context.Context) ([]*entity.WatchTitle, error)
}

const (
	defaultDispatchListLimit = 10
	maxDispatchListLimit     = 50
)

type command struct {
	name    string
	usage   string
	ack     string // sent before run when the command may take long
	timeout time.Duration
	run     func(ctx context.Context, args string) string
}

// Commands implements the operator commands. Each command returns its HTML reply.
type Commands struct {
	pipeline      Pipeline
	watches       WatchList
	admins        map[int64]struct{}
	submitTimeout time.Duration
	logger        *slog.Logger
	commands      []command
}

// NewCommands builds the command set. Only senders listed in admins may run commands;
// an empty admins list denies everyone. submitTimeout bounds /torrent.
func NewCommands(p Pipeline, w WatchList, admins []int64, submitTimeout time.Duration, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	if submitTimeout <= 0 {
		submitTimeout = time.Hour
	}
	c := &Commands{
		pipeline:      p,
		watches:       w,
		admins:        make(map[int64]struct{}, len(admins)),
		submitTimeout: submitTimeout,
		logger:        logger,
	}
	for _, id := range admins {
		c.admins[id] = struct{}{}
	}

	short := 30 * time.Second
	c.commands = []command{
		{name: "taskon", usage: "/taskon", timeout: short, run: c.taskOn},
		{name: "taskoff", usage: "/taskoff", timeout: short, run: c.taskOff},
		{name: "status", usage: "/status", timeout: short, run: c.status},
		{name: "addtask", usage: "/addtask <title>", timeout: short, run: c.addTask},
		{name: "deltask", usage: "/deltask <title>", timeout: short, run: c.delTask},
		{name: "listtask", usage: "/listtask", timeout: short, run: c.listTasks},
		{name: "dispatches", usage: "/dispatches [n] [success|failed]", timeout: short, run: c.dispatches},
		{name: "torrent", usage: "/torrent <link> [title]", ack: "⏳ Submitting torrent...", timeout: submitTimeout, run: c.torrent},
		{name: "help", usage: "/help", timeout: short, run: c.help},
	}
	return c
}

// IsAdmin reports whether userID may run commands.
func (c *Commands) IsAdmin(userID int64) bool {
	_, ok := c.admins[userID]
	return ok
}

// Run executes the named command (without the leading slash) for senderID.
func (c *Commands) Run(ctx context.Context, senderID int64, name, args string) string {
	if !c.IsAdmin(senderID) {
		c.logger.Warn("rejected command from non-admin",
			slog.Int64("user_id", senderID),
			slog.String("command", name))
		return "⛔ You are not allowed to use this bot."
	}
	cmd, ok := c.lookup(name)
	if !ok {
		return "❓ Unknown command. Send /help for the list of commands."
	}

	c.logger.Info("command received",
		slog.Int64("user_id", senderID),
		slog.String("command", name))

	ctx, cancel := context.WithTimeout(ctx, cmd.timeout)
	defer cancel()
	return cmd.run(ctx, strings.TrimSpace(args))
}

func (c *Commands) lookup(name string) (command, bool) {
	name = strings.TrimPrefix(strings.ToLower(name), "/")
	for _, cmd := range c.commands {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func (c *Commands) taskOn(ctx context.Context, _ string) string {
	switch c.pipeline.Start(ctx) {
	case dispatch.StartResultAlreadyRunning:
		return "ℹ️ RSS checker is already running.\nRSS AutoFeed: ✅ <b>Enabled</b>"
	case dispatch.StartResultStopping:
		return "⏳ The previous RSS checker is still finishing. Try /taskon again shortly."
	}
	return "✅ RSS checker task started successfully!\nRSS AutoFeed: ✅ <b>Enabled</b>"
}

func (c *Commands) taskOff(ctx context.Context, _ string) string {
	switch c.pipeline.Stop(ctx) {
	case dispatch.StopResultNotRunning:
		return "ℹ️ RSS checker is not running.\nRSS AutoFeed: ❌ <b>Disabled</b>"
	case dispatch.StopResultStopping:
		return "⏳ RSS checker is stopping after its current submission.\nRSS AutoFeed: ❌ <b>Disabled</b>"
	}
	return "✅ RSS checker task stopped successfully!\nRSS AutoFeed: ❌ <b>Disabled</b>"
}

func (c *Commands) status(ctx context.Context, _ string) string {
	st := c.pipeline.Status()

	var b strings.Builder
	b.WriteString("<b>RSS checker</b>\n")
	fmt.Fprintf(&b, "Running: %s\n", yesNo(st.Running))
	fmt.Fprintf(&b, "AutoFeed: %s\n", enabledLabel(st.Enabled))
	fmt.Fprintf(&b, "State: %s\n", st.State)

	if titles, err := c.watches.List(ctx); err == nil {
		fmt.Fprintf(&b, "Tracked titles: %d\n", len(titles))
	}
	if n, err := c.pipeline.CountDispatchRecords(ctx); err == nil {
		fmt.Fprintf(&b, "Dispatched entries: %d\n", n)
	}
	if lp := st.LastPass; lp != nil {
		fmt.Fprintf(&b, "Last pass: %s (%d entries, %d matched, %d dispatched, %d deferred)\n",
			lp.StartedAt.UTC().Format("2006-01-02 15:04:05 UTC"), lp.Entries, lp.Matched, lp.Dispatched, lp.Deferred)
	}
	if st.LastPassError != "" {
		fmt.Fprintf(&b, "Last error: %s\n", html.EscapeString(st.LastPassError))
	}
	if st.NextTick != nil {
		fmt.Fprintf(&b, "Next check: %s\n", st.NextTick.UTC().Format("15:04:05 UTC"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Commands) addTask(ctx context.Context, args string) string {
	if args == "" {
		return "❌ Please provide a title to track!\n\nUsage: /addtask &lt;title&gt;"
	}
	title, added, err := c.watches.Add(ctx, args)
	if err != nil {
		var ve *entity.ValidationError
		if errors.As(err, &ve) {
			return "❌ " + html.EscapeString(ve.Message)
		}
		c.logger.Error("addtask failed", slog.Any("error", err))
		return "❌ Failed to add task! Something went wrong."
	}
	if !added {
		return fmt.Sprintf("ℹ️ Already tracking: <code>%s</code>", html.EscapeString(title))
	}
	return fmt.Sprintf("✅ Successfully added task to track: <code>%s</code>", html.EscapeString(title))
}

func (c *Commands) delTask(ctx context.Context, args string) string {
	if args == "" {
		return "❌ Please provide a title to remove!\n\nUsage: /deltask &lt;title&gt;"
	}
	removed, err := c.watches.Remove(ctx, args)
	if err != nil {
		var ve *entity.ValidationError
		if errors.As(err, &ve) {
			return "❌ " + html.EscapeString(ve.Message)
		}
		c.logger.Error("deltask failed", slog.Any("error", err))
		return "❌ Failed to remove task! Something went wrong."
	}
	if !removed {
		return fmt.Sprintf("❌ Task not found: <code>%s</code>", html.EscapeString(args))
	}
	return fmt.Sprintf("✅ Successfully removed task: <code>%s</code>", html.EscapeString(args))
}

func (c *Commands) listTasks(ctx context.Context, _ string) string {
	titles, err := c.watches.List(ctx)
	if err != nil {
		c.logger.Error("listtask failed", slog.Any("error", err))
		return "❌ Failed to list tasks! Something went wrong."
	}
	if len(titles) == 0 {
		return "📝 No titles are currently being tracked."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📝 Currently tracking %d titles:\n", len(titles))
	for _, t := range titles {
		fmt.Fprintf(&b, "\n• <code>%s</code>", html.EscapeString(t.Title))
	}
	return b.String()
}

func (c *Commands) dispatches(ctx context.Context, args string) string {
	filter := repository.ListFilter{Limit: defaultDispatchListLimit}
	for _, f := range strings.Fields(args) {
		if n, err := strconv.Atoi(f); err == nil {
			if n < 1 || n > maxDispatchListLimit {
				return fmt.Sprintf("❌ Count must be between 1 and %d.", maxDispatchListLimit)
			}
			filter.Limit = n
			continue
		}
		status, err := entity.ParseOutcomeStatus(f)
		if err != nil {
			return "❌ Usage: /dispatches [n] [success|failed]"
		}
		filter.Outcome = status
	}

	recs, err := c.pipeline.ListDispatchRecords(ctx, filter)
	if err != nil {
		c.logger.Error("dispatches failed", slog.Any("error", err))
		return "❌ Failed to list dispatches! Something went wrong."
	}
	if len(recs) == 0 {
		return "📭 No dispatches recorded yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📦 Last %d dispatches:\n", len(recs))
	for _, r := range recs {
		b.WriteString("\n")
		b.WriteString(formatRecordLine(r))
	}
	return b.String()
}

func (c *Commands) torrent(ctx context.Context, args string) string {
	link, title, _ := strings.Cut(args, " ")
	if link == "" {
		return "❌ Please provide a torrent link!\nUsage: /torrent &lt;link&gt; [title]"
	}

	rec, err := c.pipeline.Submit(ctx, strings.TrimSpace(title), link)
	switch {
	case errors.Is(err, entity.ErrAlreadyDispatched):
		return "ℹ️ This release was already dispatched:\n" + formatRecordLine(rec)
	case errors.Is(err, dispatch.ErrDispatchDeferred):
		return "⏸ Transcode service is unavailable; nothing was recorded. Try again later."
	case err != nil:
		var ve *entity.ValidationError
		if errors.As(err, &ve) {
			return "❌ " + html.EscapeString(ve.Message)
		}
		c.logger.Error("torrent failed", slog.Any("error", err))
		return "❌ Failed to process torrent!"
	case rec.Outcome == entity.OutcomeSuccess:
		msg := "✅ Successfully sent torrent for transcoding!"
		if rec.ShareableLink != "" {
			msg += fmt.Sprintf("\n<a href=\"%s\">📥 Download</a>", html.EscapeString(rec.ShareableLink))
		}
		return msg
	default:
		return "❌ Failed to send torrent: " + html.EscapeString(rec.FailureReason)
	}
}

func (c *Commands) help(_ context.Context, _ string) string {
	var b strings.Builder
	b.WriteString("<b>Commands</b>\n")
	for _, cmd := range c.commands {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(cmd.usage))
	}
	return b.String()
}

func formatRecordLine(r *entity.DispatchRecord) string {
	if r == nil {
		return ""
	}
	icon := "✅"
	detail := ""
	if r.Outcome == entity.OutcomeFailed {
		icon = "❌"
		detail = " (" + html.EscapeString(r.FailureReason) + ")"
	}
	title := html.EscapeString(r.Title)
	if r.ShareableLink != "" {
		title = fmt.Sprintf("<a href=\"%s\">%s</a>", html.EscapeString(r.ShareableLink), title)
	}
	return fmt.Sprintf("%s %s %s%s", icon, r.SubmittedAt.UTC().Format("01-02 15:04"), title, detail)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func enabledLabel(b bool) string {
	if b {
		return "✅ <b>Enabled</b>"
	}
	return "❌ <b>Disabled</b>"
}
