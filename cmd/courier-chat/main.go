// ABOUTME: Terminal chat client for courier-gateway
// ABOUTME: Line-oriented REPL over client.Transport with markdown-rendered replies

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/courier-gateway/internal/chat"
	"github.com/2389/courier-gateway/internal/client"
	"github.com/2389/courier-gateway/internal/conversation"
	"github.com/2389/courier-gateway/internal/markdown"
	"github.com/2389/courier-gateway/internal/session"
)

func main() {
	configPath := flag.String("config", getConfigPath(), "Path to chat config file")
	server := flag.String("server", "", "Gateway server URL (overrides config)")
	token := flag.String("token", "", "Session token (overrides config)")
	flag.Parse()

	cfg, err := Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *server != "" {
		cfg.Gateway.URL = *server
	}
	if *token != "" {
		cfg.Session.Token = *token
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

// repl holds the state of one interactive session.
type repl struct {
	transport *client.Transport
	notes     <-chan conversation.Notification
	out       io.Writer
	render    markdown.Options
}

func run(ctx context.Context, cfg *Config, in io.Reader, out io.Writer) error {
	var state *session.ClientState
	if cfg.Session.Token != "" {
		state = &session.ClientState{
			CookieName: cfg.Session.CookieName,
			Token:      cfg.Session.Token,
		}
	}

	// Diagnostics stay off the chat output unless something goes wrong.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	tr, err := client.New(client.Options{
		GatewayURL: cfg.Gateway.URL,
		State:      state,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer tr.Close()

	r := &repl{
		transport: tr,
		notes:     tr.Notifications(ctx),
		out:       out,
		render: markdown.Options{
			Width: cfg.Render.Width,
			Color: cfg.Render.Color && !color.NoColor,
		},
	}

	fmt.Fprintf(out, "courier-chat connected to %s\n", cfg.Gateway.URL)
	if state != nil {
		fmt.Fprintln(out, "Auth: session token configured")
	} else {
		fmt.Fprintln(out, "Auth: none (set COURIER_SESSION_TOKEN to sign in)")
	}
	fmt.Fprintln(out, "Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Fprintln(out)

	lines := readLines(in)
	for {
		fmt.Fprint(out, "> ")

		var input string
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			input = strings.TrimSpace(line)
		}

		if input == "" {
			continue
		}
		if done := r.handle(ctx, input); done {
			return nil
		}
		fmt.Fprintln(out)
	}
}

// readLines feeds stdin lines to a channel so the loop can also watch ctx.
func readLines(in io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			ch <- scanner.Text()
		}
	}()
	return ch
}

// handle runs one line of input. It reports whether the session should end.
func (r *repl) handle(ctx context.Context, input string) bool {
	switch input {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		r.printHelp()
		return false
	case "/log":
		r.printLog()
		return false
	case "/whoami":
		r.printWhoami(ctx)
		return false
	}

	if strings.HasPrefix(input, "/") {
		fmt.Fprintf(r.out, "Unknown command: %s (try /help)\n", input)
		return false
	}

	resp := r.transport.Send(ctx, input)
	if resp.Outcome == chat.OutcomeOK {
		fmt.Fprintln(r.out, markdown.Render(resp.Content, r.render))
	}
	r.drainNotifications()
	return false
}

// drainNotifications prints every notification already queued. Send
// publishes before it returns, so nothing from this turn is missed.
func (r *repl) drainNotifications() {
	for {
		select {
		case n, ok := <-r.notes:
			if !ok {
				return
			}
			r.printNotification(n)
		default:
			return
		}
	}
}

func (r *repl) printNotification(n conversation.Notification) {
	c := color.New(color.FgCyan)
	switch n.Level {
	case conversation.LevelWarning:
		c = color.New(color.FgYellow)
	case conversation.LevelError:
		c = color.New(color.FgRed, color.Bold)
	}
	c.Fprintf(r.out, "[%s] %s\n", n.Level, n.Text)
}

// printHelp displays available commands.
func (r *repl) printHelp() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  /log           Show the conversation so far")
	fmt.Fprintln(r.out, "  /whoami        Show the signed-in user")
	fmt.Fprintln(r.out, "  /help          Show this help")
	fmt.Fprintln(r.out, "  /quit          Exit the chat")
}

func (r *repl) printLog() {
	turns := r.transport.Log().Turns()
	if len(turns) == 0 {
		fmt.Fprintln(r.out, "(no messages yet)")
		return
	}
	for _, t := range turns {
		label := color.New(color.FgGreen).Sprint("you")
		if t.Role == chat.RoleAssistant {
			label = color.New(color.FgCyan).Sprint("assistant")
		}
		fmt.Fprintf(r.out, "%s: %s\n", label, t.Content)
	}
}

func (r *repl) printWhoami(ctx context.Context) {
	s, err := r.transport.Session(ctx)
	if err != nil {
		fmt.Fprintf(r.out, "[error] %v\n", err)
		return
	}
	if s == nil {
		fmt.Fprintln(r.out, "anonymous")
		return
	}

	name := s.User.Email
	if name == "" {
		name = s.User.ID
	}
	if s.User.Name != "" {
		name = fmt.Sprintf("%s <%s>", s.User.Name, name)
	}
	tokenState := "no access token"
	if s.HasAccessToken() {
		tokenState = "access token present"
	}
	fmt.Fprintf(r.out, "%s (%s)\n", name, tokenState)
}
