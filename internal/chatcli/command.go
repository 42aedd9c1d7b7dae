package chatcli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vbonduro/ilmigreen/internal/upstream"
)

const chatLongDesc string = `Chat with the IlmiGreen assistant from the terminal.

With a question argument the reply is printed and the command exits.
Without one, questions are read from stdin, one per line, until EOF or /exit.

Examples:
  ilmigreen-chat "Bagaimana cara membuang baterai bekas?"
  ilmigreen-chat --server http://localhost:8080
  ilmigreen-chat --conversation 3f1c1c52-5c55-4b8e-9d52-8d1f0f3f9b10`

const chatShortDesc string = "Chat with the IlmiGreen assistant"

func NewChatCmd() *cobra.Command {
	var serverURL string
	var conversationID string
	var render bool
	var verbose bool

	cmd := &cobra.Command{
		Use:          "ilmigreen-chat [question]",
		Short:        chatShortDesc,
		Long:         chatLongDesc,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelError
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			session := NewSession(serverURL, http.DefaultClient, logger)
			if conversationID != "" {
				if err := session.Resume(cmd.Context(), conversationID); err != nil {
					return err
				}
			}

			p := &printer{out: cmd.OutOrStdout(), render: render}
			if len(args) > 0 {
				return ask(cmd.Context(), session, p, strings.Join(args, " "))
			}
			return repl(cmd.Context(), session, p, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", envOr("ILMIGREEN_SERVER", "http://localhost:8080"), "IlmiGreen server URL")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Resume a stored conversation")
	cmd.Flags().BoolVar(&render, "render", isTerminal(os.Stdout), "Render the finished reply as markdown instead of streaming raw text")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log stream diagnostics to stderr")

	return cmd
}

func repl(ctx context.Context, session *Session, p *printer, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(p.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(p.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}
		if err := ask(ctx, session, p, line); err != nil {
			if ctx.Err() != nil {
				return err
			}
			fmt.Fprintf(p.out, "error: %v\n", err)
		}
	}
}

func ask(ctx context.Context, session *Session, p *printer, question string) error {
	p.start()
	reply, err := session.Ask(ctx, question, p.update)
	p.finish(reply)

	switch {
	case errors.Is(err, upstream.ErrRateLimited):
		return fmt.Errorf("server is busy, try again later: %w", err)
	case errors.Is(err, upstream.ErrCreditsExhausted):
		return fmt.Errorf("assistant is unavailable, contact the administrator: %w", err)
	}
	return err
}

// printer writes a reply either as it streams or, when rendering, once it
// is complete.
type printer struct {
	out     io.Writer
	render  bool
	written int
}

func (p *printer) start() {
	p.written = 0
}

func (p *printer) update(content string) {
	if p.render || len(content) <= p.written {
		return
	}
	fmt.Fprint(p.out, content[p.written:])
	p.written = len(content)
}

func (p *printer) finish(content string) {
	if !p.render {
		if p.written > 0 {
			fmt.Fprintln(p.out)
		}
		return
	}
	if content == "" {
		return
	}
	rendered, err := renderMarkdown(content)
	if err != nil {
		rendered = content + "\n"
	}
	fmt.Fprint(p.out, rendered)
}

// renderMarkdown renders a reply for terminal display using glamour.
func renderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}
	return r.Render(content)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
