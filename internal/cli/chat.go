package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/chatflow"
	"github.com/aretw0/chatflow/internal/presentation/graph"
	"github.com/aretw0/chatflow/internal/presentation/tui"
	"golang.org/x/term"
)

// ChatOptions configures a chat session.
type ChatOptions struct {
	UserID  string
	Channel string
	Plain   bool // disable banner and markdown rendering
	Verbose bool // print a status line after every reply
}

// Chat runs an interactive conversation against the engine until the input
// ends, the user types /quit or ctx is done.
type Chat struct {
	engine   *chatflow.Engine
	opts     ChatOptions
	reader   *bufio.Reader
	writer   io.Writer
	renderer func(string) (string, error)

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// NewChat creates a chat session reading from r and writing to w.
// Markdown rendering is enabled only when r is a terminal.
func NewChat(engine *chatflow.Engine, r io.Reader, w io.Writer, opts ChatOptions) *Chat {
	if opts.UserID == "" {
		opts.UserID = "local"
	}
	if opts.Channel == "" {
		opts.Channel = "cli"
	}
	if !isTerminal(r) {
		opts.Plain = true
	}

	c := &Chat{
		engine: engine,
		opts:   opts,
		reader: bufio.NewReader(r),
		writer: w,
	}
	if !opts.Plain {
		c.renderer = tui.NewRenderer()
	}
	return c
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *Chat) initPump() {
	c.startOnce.Do(func() {
		c.inputChan = make(chan inputResult)
		go c.pump()
	})
}

func (c *Chat) pump() {
	defer close(c.inputChan)
	for {
		text, err := c.reader.ReadString('\n')
		if text != "" {
			c.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.inputChan <- inputResult{err: err}
			}
			return
		}
	}
}

// input prompts and waits for the next non-empty line.
func (c *Chat) input(ctx context.Context) (string, error) {
	c.initPump()
	for {
		fmt.Fprint(c.writer, "> ")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-c.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			if text := strings.TrimSpace(res.text); text != "" {
				return text, nil
			}
		}
	}
}

// Run is the read-eval-print loop.
func (c *Chat) Run(ctx context.Context) error {
	if !c.opts.Plain {
		tui.PrintBanner(c.writer, chatflow.Version)
	}
	c.system("Chatting as %q. Type /help for commands.", c.opts.UserID)

	for {
		line, err := c.input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				fmt.Fprintln(c.writer)
				return nil
			}
			return err
		}

		if strings.HasPrefix(line, "/") {
			quit, err := c.command(ctx, line)
			if err != nil {
				c.system("Error: %v", err)
			}
			if quit {
				return nil
			}
			continue
		}

		result, err := c.engine.ProcessMessage(ctx, c.opts.UserID, line, c.opts.Channel)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.system("Error: %v. Please try again.", err)
			continue
		}
		c.print(tui.ResponseMarkdown(result.Response))
		if c.opts.Verbose {
			c.system("%s", tui.StatusLine(result))
		}
	}
}

func (c *Chat) print(markdown string) {
	out := markdown
	if c.renderer != nil {
		if rendered, err := c.renderer(markdown); err == nil {
			out = rendered
		}
	}
	fmt.Fprintln(c.writer, strings.TrimSpace(out))
}

func (c *Chat) system(format string, args ...any) {
	fmt.Fprintf(c.writer, ">>> %s\n", fmt.Sprintf(format, args...))
}

const chatHelp = `/context           show the stored context
/flow              show the states visited so far
/quality           show the average quality score
/name <name>       remember your name
/lang <tag>        answer in another language (e.g. es, fr)
/graph             print the transition graph with your path
/reset             forget this conversation
/quit              leave`

// command runs a slash command and reports whether the chat should end.
func (c *Chat) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)
	user := c.opts.UserID

	switch name {
	case "quit", "exit":
		c.system("Bye!")
		return true, nil
	case "help":
		fmt.Fprintln(c.writer, chatHelp)
	case "context":
		uc, ok := c.engine.GetUserContext(ctx, user)
		if !ok {
			c.system("No conversation yet.")
			return false, nil
		}
		c.system("state=%s language=%s turns=%d preferences=%v", uc.CurrentState, uc.Language, uc.TurnCount(), uc.Preferences)
	case "flow":
		c.system("%v", c.engine.GetConversationFlow(ctx, user))
	case "quality":
		c.system("average quality %.1f over %d turns",
			c.engine.GetAverageQualityScore(ctx, user), len(c.engine.GetQualityMetrics(ctx, user)))
	case "name":
		if arg == "" {
			return false, errors.New("usage: /name <name>")
		}
		if _, err := c.engine.SetPreferences(ctx, user, map[string]any{"name": arg}); err != nil {
			return false, err
		}
		c.system("Nice to meet you, %s.", arg)
	case "lang":
		uc, err := c.engine.SetLanguage(ctx, user, arg)
		if err != nil {
			return false, err
		}
		c.system("Language set to %s.", uc.Language)
	case "graph":
		overlay := &graph.Overlay{Visited: c.engine.GetConversationFlow(ctx, user)}
		if uc, ok := c.engine.GetUserContext(ctx, user); ok {
			overlay.Current = uc.CurrentState
		}
		fmt.Fprint(c.writer, graph.GenerateMermaid(c.engine.Table().Edges(), overlay))
	case "reset":
		if err := c.engine.Evict(ctx, user); err != nil {
			return false, err
		}
		c.system("Conversation forgotten.")
	default:
		return false, fmt.Errorf("unknown command /%s", name)
	}
	return false, nil
}
