// Command execution for CLI commands.
//
// Information Hiding:
// - Agent, permission and storage wiring hidden
// - Output formatting hidden

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/richinex/smith/agent"
	"github.com/richinex/smith/config"
	"github.com/richinex/smith/internal/logging"
	"github.com/richinex/smith/llm"
	"github.com/richinex/smith/permission"
	"github.com/richinex/smith/storage"
	"github.com/richinex/smith/tools"
)

// Options holds CLI execution options.
type Options struct {
	Provider string
	Model    string
	MaxIter  int
	// Mode overrides SMITH_PERMISSION_MODE when set.
	Mode    string
	WorkDir string
	// Web registers the fetch tool.
	Web     bool
	Verbose bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		Provider: llm.ProviderAnthropic.String(),
	}
}

// IO groups the streams a command talks to.
type IO struct {
	In          *LineReader
	Out         io.Writer
	Err         io.Writer
	Interactive bool
	Width       int
}

// StdIO returns the process streams.
func StdIO() IO {
	return IO{
		In:          NewLineReader(os.Stdin),
		Out:         os.Stdout,
		Err:         os.Stderr,
		Interactive: logging.IsTerminal(os.Stdin),
		Width:       TerminalWidth(os.Stdout),
	}
}

// session bundles what one command needs to drive an agent.
type session struct {
	settings config.Settings
	agent    *agent.Agent
	perms    *permission.Manager
}

// newSession wires settings, model, tools and permissions into an agent.
// A nil model is built from the settings.
func newSession(opts Options, model llm.Model, stdio IO) (*session, error) {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return nil, err
	}
	if opts.Model != "" {
		settings.LLM.Model = opts.Model
	}
	if opts.MaxIter > 0 {
		settings.Agent.MaxIterations = opts.MaxIter
	}
	if opts.Mode != "" {
		mode, err := permission.ParseMode(opts.Mode)
		if err != nil {
			return nil, err
		}
		settings.Permissions.Mode = mode
	}

	level := settings.LogLevel
	if opts.Verbose {
		level = logging.DebugLevel
	}
	logging.Init(logging.Config{Level: level, Output: stdio.Err, Pretty: stdio.Interactive})

	workDir := opts.WorkDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
	}

	if model == nil {
		if model, err = settings.BuildModel(); err != nil {
			return nil, err
		}
	}

	permConfig, err := permission.LoadConfig(settings.Permissions.File)
	if err != nil {
		return nil, err
	}
	validator, err := permission.NewSecurityValidator(workDir)
	if err != nil {
		return nil, err
	}
	perms := permission.NewManager(
		NewTerminalApprover(stdio.In, stdio.Err, stdio.Interactive),
		permission.WithMode(settings.Permissions.Mode),
		permission.WithConfig(permConfig),
		permission.WithValidator(validator),
	)

	registry := tools.WithDefaults(workDir)
	if opts.Web {
		registry.Register(tools.NewFetchTool(settings.Tools.Timeout))
	}

	a := agent.New(settings.AgentConfig(workDir), model, registry, perms)
	a.Subscribe(NewPrinter(stdio.Err, stdio.Width, opts.Verbose))
	a.OnText(func(text string) { fmt.Fprint(stdio.Out, text) })

	return &session{settings: settings, agent: a, perms: perms}, nil
}

// Run executes a single task. A nil model is built from the environment.
func Run(ctx context.Context, task string, opts Options, model llm.Model, stdio IO) error {
	s, err := newSession(opts, model, stdio)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	res, err := s.agent.Run(runCtx, task)
	fmt.Fprintln(stdio.Out)
	if err != nil {
		return describeRunError(err)
	}
	printUsage(stdio.Err, res)
	return nil
}

// Chat starts an interactive session. With a session ID the conversation
// is stored in the SQLite database at dbPath and resumed on the next start.
func Chat(ctx context.Context, sessionID, dbPath string, opts Options, model llm.Model, stdio IO) error {
	s, err := newSession(opts, model, stdio)
	if err != nil {
		return err
	}

	if sessionID != "" {
		if dbPath == "" {
			dbPath = s.settings.Storage.DBPath
		}
		store, err := storage.OpenSqlite(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()

		s.agent.WithStorage(store, sessionID)
		if err := s.agent.Resume(ctx); err != nil {
			return err
		}
		if n := len(s.agent.Messages()); n > 0 {
			fmt.Fprintf(stdio.Out, "Resuming session '%s' (%d messages)\n", sessionID, n)
		}
	}

	fmt.Fprintf(stdio.Out, "Chat with %s (%s). Type 'exit' to quit.\n\n", s.settings.LLM.Provider, s.settings.LLM.Model)

	for {
		fmt.Fprint(stdio.Out, "> ")
		input, err := stdio.In.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(stdio.Out)
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		switch input {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/reset":
			s.perms.Reset()
			fmt.Fprintln(stdio.Out, "Session permissions cleared.")
			continue
		}

		runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		res, err := s.agent.Run(runCtx, input)
		stop()

		fmt.Fprintln(stdio.Out)
		if err != nil {
			fmt.Fprintf(stdio.Err, "Error: %v\n\n", describeRunError(err))
			continue
		}
		printUsage(stdio.Err, res)
		fmt.Fprintln(stdio.Out)
	}
}

func describeRunError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("interrupted")
	case agent.IsMaxIterations(err):
		return fmt.Errorf("%w (raise --max-iter or AGENT_MAX_ITERATIONS)", err)
	default:
		return err
	}
}

func printUsage(w io.Writer, res agent.RunResult) {
	fmt.Fprintf(w, "(%d turns, %d input / %d output tokens)\n",
		res.Iterations, res.Usage.InputTokens, res.Usage.OutputTokens)
}

// ListTools prints the built-in tools.
func ListTools(w io.Writer, verbose bool) {
	registry := tools.WithDefaults(".")

	fmt.Fprintln(w, "Available tools:")
	fmt.Fprintln(w)

	for _, meta := range registry.List() {
		access := "writes"
		if meta.ReadOnly {
			access = "read-only"
		}
		fmt.Fprintf(w, "  %s (%s)\n", meta.Name, access)
		fmt.Fprintf(w, "    %s\n", meta.Description)

		if verbose && len(meta.Parameters) > 0 {
			fmt.Fprintln(w, "    Parameters:")
			for _, param := range meta.Parameters {
				req := ""
				if param.Required {
					req = "*"
				}
				fmt.Fprintf(w, "      %s%s: %s - %s\n", param.Name, req, param.ParamType, param.Description)
			}
		}
		fmt.Fprintln(w)
	}
}

// ListSessions prints stored sessions, most recent first.
func ListSessions(ctx context.Context, store storage.ConversationStorage, w io.Writer) error {
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  %4d messages  %s\n", s.ID, s.MessageCount, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// ShowSession prints the messages of a stored session.
func ShowSession(ctx context.Context, store storage.ConversationStorage, id string, w io.Writer, width int) error {
	exists, err := store.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("session %q not found", id)
	}

	snap, err := store.Load(ctx, id)
	if err != nil {
		return err
	}
	for _, msg := range snap.Messages {
		if text := msg.Text(); text != "" {
			fmt.Fprintf(w, "[%s] %s\n", msg.Role, text)
		}
		for _, use := range msg.ToolUses() {
			fmt.Fprintln(w, truncate(fmt.Sprintf("[%s] call %s %s", msg.Role, use.Name, oneLine(string(use.Input))), width))
		}
		for _, res := range msg.ToolResults() {
			status := "ok"
			if res.IsError {
				status = "error"
			}
			fmt.Fprintln(w, truncate(fmt.Sprintf("[%s] %s: %s", msg.Role, status, oneLine(res.Content)), width))
		}
	}
	return nil
}

// DeleteSession removes a stored session.
func DeleteSession(ctx context.Context, store storage.ConversationStorage, id string, w io.Writer) error {
	exists, err := store.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("session %q not found", id)
	}
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(w, "Deleted session %s\n", id)
	return nil
}
