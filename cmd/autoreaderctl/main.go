package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/matheus3301/autoreader/internal/api"
	"github.com/matheus3301/autoreader/internal/config"
	"github.com/matheus3301/autoreader/internal/datadir"
	"github.com/matheus3301/autoreader/internal/identity"
	"github.com/matheus3301/autoreader/internal/lock"
	"github.com/matheus3301/autoreader/internal/query"
	"github.com/matheus3301/autoreader/internal/store"
	"github.com/matheus3301/autoreader/internal/watch"
)

func main() {
	dataDirFlag := flag.String("data-dir", "", "data directory (default $AUTOREADER_DATA_DIR or ~/.autoreader)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	layout := datadir.New(*dataDirFlag)
	f := query.New(store.Open(layout.Documents()), nil)

	switch args[0] {
	case "messages":
		cmdMessages(f, args[1:], *jsonFlag)
	case "chats":
		cmdChats(f, *jsonFlag)
	case "chat":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: autoreaderctl chat <id>")
			os.Exit(1)
		}
		printMessages(f.ChatMessages(args[1]), *jsonFlag)
	case "contacts":
		cmdContacts(f, *jsonFlag)
	case "contact":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: autoreaderctl contact <id>")
			os.Exit(1)
		}
		cmdContact(f, args[1])
	case "image":
		cmdImage(f, args[1:])
	case "clear":
		cmdClear(layout, f)
	case "tail":
		cmdTail(layout, *jsonFlag)
	case "token":
		cmdToken(layout, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: autoreaderctl [--data-dir <dir>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  messages [--since <ts>]    List captured messages")
	fmt.Fprintln(os.Stderr, "  chats                      List chats in first-seen order")
	fmt.Fprintln(os.Stderr, "  chat <id>                  Show the messages of one chat")
	fmt.Fprintln(os.Stderr, "  contacts                   List known contacts")
	fmt.Fprintln(os.Stderr, "  contact <id>               Show one contact")
	fmt.Fprintln(os.Stderr, "  image <id> [-o <file>]     Export a stored image")
	fmt.Fprintln(os.Stderr, "  clear                      Delete messages and images, keep contacts")
	fmt.Fprintln(os.Stderr, "  tail                       Follow new messages")
	fmt.Fprintln(os.Stderr, "  token [--ttl <dur>]        Issue an API token")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdMessages(f *query.Facade, args []string, jsonOut bool) {
	fs := flag.NewFlagSet("messages", flag.ExitOnError)
	since := fs.String("since", "", "only messages received at or after this RFC3339 timestamp")
	_ = fs.Parse(args)

	if *since != "" {
		printMessages(f.SessionMessages(*since), jsonOut)
		return
	}
	printMessages(f.AllMessages(), jsonOut)
}

func printMessages(msgs []store.Message, jsonOut bool) {
	if jsonOut {
		outputJSON(msgs)
		return
	}
	if len(msgs) == 0 {
		fmt.Println("No messages.")
		return
	}
	for _, m := range msgs {
		printMessage(m)
	}
}

func printMessage(m store.Message) {
	fmt.Println(formatMessage(m))
}

func formatMessage(m store.Message) string {
	line := fmt.Sprintf("[%s] %s: %s", m.Date, query.DisplayName(m), m.Text)
	if m.ImageID != nil {
		line += fmt.Sprintf(" (image %s)", *m.ImageID)
	}
	return line
}

// writeTailLine writes m as one line, JSON or human readable.
func writeTailLine(w io.Writer, m store.Message, jsonOut bool) error {
	if jsonOut {
		if err := json.NewEncoder(w).Encode(m); err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
		return nil
	}
	_, err := fmt.Fprintln(w, formatMessage(m))
	return err
}

func cmdChats(f *query.Facade, jsonOut bool) {
	chats := f.Chats()
	if jsonOut {
		outputJSON(chats)
		return
	}
	if len(chats) == 0 {
		fmt.Println("No chats.")
		return
	}
	for _, c := range chats {
		fmt.Printf("%-24s %s\n", c.ID, c.Title)
	}
}

func cmdContacts(f *query.Facade, jsonOut bool) {
	contacts := f.Contacts()
	if jsonOut {
		outputJSON(contacts)
		return
	}
	ids := make([]string, 0, len(contacts))
	for id := range contacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("%-24s %s\n", id, contactLabel(contacts[id]))
	}
}

func contactLabel(c identity.Identity) string {
	switch {
	case identity.Value(c.Title) != "":
		return identity.Value(c.Title)
	case identity.Value(c.Username) != "":
		return "@" + identity.Value(c.Username)
	default:
		return c.FullName()
	}
}

func cmdContact(f *query.Facade, id string) {
	c, ok := f.Contact(id)
	if !ok {
		fmt.Fprintf(os.Stderr, "error: contact %q not found\n", id)
		os.Exit(1)
	}
	outputJSON(c)
}

func cmdImage(f *query.Facade, args []string) {
	fs := flag.NewFlagSet("image", flag.ExitOnError)
	out := fs.String("o", "", "write the decoded image to this file")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: autoreaderctl image <id> [-o <file>]")
		os.Exit(1)
	}

	rec, ok := f.Attachment(fs.Arg(0))
	if !ok {
		fmt.Fprintf(os.Stderr, "error: image %q not found\n", fs.Arg(0))
		os.Exit(1)
	}
	if *out == "" {
		outputJSON(api.AttachmentResponse{ID: rec.ID, Base64: rec.Base64, Date: rec.Date, Sender: rec.Sender, Chat: rec.Chat})
		return
	}
	data, err := rec.Decode()
	if err != nil {
		fail(err)
	}
	if err := os.WriteFile(*out, data, 0600); err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %d bytes to %s\n", len(data), *out)
}

func cmdClear(layout datadir.Layout, f *query.Facade) {
	lk, err := lock.Acquire(layout.Root, "autoreaderctl")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		fmt.Fprintln(os.Stderr, "stop the daemon or use DELETE /history on its API")
		os.Exit(1)
	}
	defer func() { _ = lk.Release() }()

	if err := f.ClearHistory(); err != nil {
		fail(err)
	}
	fmt.Println("History cleared. Contacts kept.")
}

func cmdTail(layout datadir.Layout, jsonOut bool) {
	follower, err := watch.NewFollower(layout.Documents().Messages)
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = follower.Run(ctx, func(m store.Message) {
		if err := writeTailLine(os.Stdout, m, jsonOut); err != nil {
			fail(err)
		}
	})
	if err != nil && ctx.Err() == nil {
		fail(err)
	}
}

func cmdToken(layout datadir.Layout, args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	subject := fs.String("sub", "autoreaderctl", "token subject")
	_ = fs.Parse(args)

	cfg, err := config.Resolve(layout.ConfigPath(), layout.EnvPath())
	if err != nil {
		fail(err)
	}
	if cfg.HTTP.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "error: http.jwt_secret is not set, the API is unauthenticated")
		os.Exit(1)
	}
	tok, err := api.NewToken(cfg.HTTP.JWTSecret, *subject, *ttl)
	if err != nil {
		fail(err)
	}
	fmt.Println(tok)
}

func outputJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
