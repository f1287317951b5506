package client

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sync"

	"github.com/hitoshi/socialhub/internal/notifypanel"
)

// notificationsOptions は notifications サブコマンドの引数。
type notificationsOptions struct {
	filter  string
	markAll bool
	watch   bool
}

// parseNotificationsArgs は notifications サブコマンドの引数を解析する。
//
//	socialhubctl notifications [-filter f] [-mark-all-read] [-watch]
func parseNotificationsArgs(args []string, stderr io.Writer) (*notificationsOptions, error) {
	fs := flag.NewFlagSet("notifications", flag.ContinueOnError)
	fs.SetOutput(stderr)
	filter := fs.String("filter", "all", "all, unread, likes, replies, follows or mentions")
	markAll := fs.Bool("mark-all-read", false, "mark every notification as read")
	watch := fs.Bool("watch", false, "keep the list updated until interrupted")
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q", ErrUsage, fs.Arg(0))
	}
	return &notificationsOptions{filter: *filter, markAll: *markAll, watch: *watch}, nil
}

// runNotifications は通知一覧を表示する。失敗の通知文も一覧と同じ経路で表示する。
func runNotifications(ctx context.Context, conn *Conn, out io.Writer, opts *notificationsOptions) error {
	var mu sync.Mutex
	panel := notifypanel.New(conn.RPC, nil)
	panel.OnChange(func(v notifypanel.View) {
		mu.Lock()
		defer mu.Unlock()
		printView(out, v)
	})

	if _, err := panel.ListFiltered(ctx, opts.filter); err != nil {
		return err
	}
	if opts.markAll {
		if err := panel.MarkAllAsRead(ctx); err != nil {
			return err
		}
	}
	if opts.watch {
		return panel.Watch(ctx, conn.StreamURL(), conn.Header)
	}
	return nil
}

func printView(w io.Writer, v notifypanel.View) {
	if v.Notice != "" {
		fmt.Fprintln(w, "error:", v.Notice)
	}
	fmt.Fprintf(w, "notifications (filter=%s, unread=%d)\n", v.Filter, v.UnreadCount)
	if len(v.Notifications) == 0 {
		fmt.Fprintln(w, "  no notifications")
		return
	}
	for _, n := range v.Notifications {
		mark := " "
		if !n.IsRead {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %-8s %s  %s\n", mark, n.Category, n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Message)
	}
}
