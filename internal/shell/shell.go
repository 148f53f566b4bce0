// Package shell implements the interactive Promptree command loop.
//
// The shell is a thin surface: it parses command lines and delegates to the
// tree engine, chat manager, search engine and exporter. It tracks one piece
// of state: the current parent node that follow-up questions attach to.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/promptree/promptree/internal/chat"
	"github.com/promptree/promptree/internal/export"
	"github.com/promptree/promptree/internal/search"
	"github.com/promptree/promptree/internal/tree"
)

// Shell is the interactive command loop.
type Shell struct {
	store    tree.Store
	engine   *tree.Engine
	manager  *chat.Manager
	searcher *search.Engine
	exporter *export.Exporter
	model    string
	log      *zap.Logger

	in  *bufio.Scanner
	out io.Writer

	// current is the node new "ask" commands attach under; nil means new
	// questions start root conversations.
	current *int64
}

// Options holds the shell's collaborators.
type Options struct {
	Store    tree.Store
	Engine   *tree.Engine
	Manager  *chat.Manager
	Searcher *search.Engine
	Exporter *export.Exporter
	Model    string
	In       io.Reader
	Out      io.Writer
	Log      *zap.Logger
}

// New creates a Shell. In/Out default to stdin/stdout.
func New(opts Options) *Shell {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	sc := bufio.NewScanner(opts.In)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Shell{
		store:    opts.Store,
		engine:   opts.Engine,
		manager:  opts.Manager,
		searcher: opts.Searcher,
		exporter: opts.Exporter,
		model:    opts.Model,
		log:      opts.Log,
		in:       sc,
		out:      opts.Out,
	}
}

// Run reads and dispatches commands until quit, EOF or context cancel.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintf(s.out, "Welcome to Promptree! Using model: %s\n", s.model)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fmt.Fprintf(s.out, "\nPromptree|%s|Parent:%s> ", s.model, s.currentLabel())
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}

		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}

		cmd, arg := splitCommand(line)
		if s.dispatch(ctx, cmd, arg) {
			return nil
		}
	}
}

// dispatch runs one command; returns true when the shell should exit.
func (s *Shell) dispatch(ctx context.Context, cmd, arg string) bool {
	switch cmd {
	case "quit", "exit":
		fmt.Fprintln(s.out, "Goodbye!")
		return true
	case "ask":
		s.cmdAsk(ctx, arg)
	case "list":
		s.cmdList()
	case "open":
		s.cmdOpen(arg)
	case "close":
		s.current = nil
		fmt.Fprintln(s.out, "Conversation context closed. New questions start root conversations.")
	case "up":
		s.cmdUp()
	case "edit":
		s.cmdEdit(arg)
	case "rm":
		s.cmdRemove(arg)
	case "search":
		s.cmdSearch(arg)
	case "export":
		s.cmdExport(arg)
	case "summarize":
		s.cmdSummarize(ctx, arg)
	case "help":
		s.printHelp()
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (try 'help')\n", cmd)
	}
	return false
}

// Current returns the current parent context (nil when closed).
func (s *Shell) Current() *int64 {
	return s.current
}

// SetCurrent sets the current parent context.
func (s *Shell) SetCurrent(id *int64) {
	s.current = id
}

// ─── Commands ────────────────────────────────────────────────────────────────

// cmdAsk handles: ask [@<id>] <prompt>
func (s *Shell) cmdAsk(ctx context.Context, arg string) {
	if arg == "" {
		fmt.Fprintln(s.out, "Usage: ask [@<id>] <prompt>")
		return
	}

	parent := s.current
	prompt := arg
	if strings.HasPrefix(arg, "@") {
		rest := strings.SplitN(arg[1:], " ", 2)
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil || len(rest) < 2 || strings.TrimSpace(rest[1]) == "" {
			fmt.Fprintln(s.out, "Usage: ask @<id> <prompt>")
			return
		}
		parent = &id
		prompt = strings.TrimSpace(rest[1])
	}

	id, err := s.manager.Ask(ctx, prompt, parent, func(chunk string) {
		fmt.Fprint(s.out, chunk)
	})
	fmt.Fprintln(s.out)

	if err != nil {
		if id != 0 {
			// Partial response was kept.
			fmt.Fprintf(s.out, "Error during generation (partial response saved as %d): %v\n", id, err)
			s.current = &id
			return
		}
		s.printError(err)
		return
	}

	node, getErr := s.store.Get(id)
	if getErr != nil {
		s.printError(getErr)
		return
	}
	fmt.Fprintf(s.out, "\nSaved conversation %d - %s\n", id, node.Subject)
	s.current = &id
}

func (s *Shell) cmdList() {
	roots, err := s.store.Roots()
	if err != nil {
		s.printError(err)
		return
	}
	if len(roots) == 0 {
		fmt.Fprintln(s.out, "No top-level conversations found.")
		return
	}
	fmt.Fprintln(s.out, "\nTop-level conversations:")
	for _, n := range roots {
		fmt.Fprintf(s.out, "- %s (id: %d, created on: %s)\n", n.Subject, n.ID, n.PromptAt)
	}
}

// cmdOpen shows a conversation with its subtree and makes it the current
// parent for follow-up questions.
func (s *Shell) cmdOpen(arg string) {
	id, ok := s.parseID(arg, "Usage: open <id>")
	if !ok {
		return
	}

	node, err := s.store.Get(id)
	if err != nil {
		s.printError(err)
		return
	}

	if node.ParentID != nil {
		if parent, err := s.store.Get(*node.ParentID); err == nil {
			fmt.Fprintf(s.out, "%s (id: %d, created on: %s) [parent]\n",
				parent.Subject, parent.ID, parent.PromptAt)
		}
	}

	fmt.Fprintf(s.out, "└─ %s (id: %d, created on: %s)\n", node.Subject, node.ID, node.PromptAt)
	fmt.Fprintf(s.out, "     Prompt:\n     %s\n", node.Prompt)
	if node.Response != "" {
		fmt.Fprintf(s.out, "     Response:\n     %s\n", node.Response)
	}
	if len(node.Links) > 0 {
		fmt.Fprintln(s.out, "     Linked conversations:")
		for _, linkID := range node.Links {
			if linked, err := s.store.Get(linkID); err == nil {
				fmt.Fprintf(s.out, "       • %s (id: %d, created on: %s)\n",
					linked.Subject, linked.ID, linked.PromptAt)
			}
		}
	}

	children, err := s.store.Children(id)
	if err != nil {
		s.printError(err)
		return
	}
	for i := range children {
		if err := s.exporter.WriteTree(indentWriter{w: s.out, prefix: "     "}, children[i].ID); err != nil {
			s.printError(err)
			return
		}
	}

	s.current = &id
}

// cmdUp moves the current context to its parent; at a root it closes the
// context instead.
func (s *Shell) cmdUp() {
	if s.current == nil {
		fmt.Fprintln(s.out, "No conversation context is open.")
		return
	}
	node, err := s.store.Get(*s.current)
	if err != nil {
		// Stale context (node deleted out from under us): drop it.
		s.current = nil
		s.printError(err)
		return
	}
	if node.ParentID == nil {
		s.current = nil
		fmt.Fprintln(s.out, "At a root conversation; context closed.")
		return
	}
	s.current = node.ParentID
	parent, err := s.store.Get(*node.ParentID)
	if err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintf(s.out, "Moved up to %s (id: %d)\n", parent.Subject, parent.ID)
}

// cmdRemove handles: rm <id>[,<id>...] with a confirmation prompt.
func (s *Shell) cmdRemove(arg string) {
	ids, err := parseIDList(arg)
	if err != nil {
		fmt.Fprintln(s.out, "Usage: rm <id>[,<id>,...]")
		return
	}

	fmt.Fprintf(s.out, "About to delete conversations %v and all their descendants.\n", ids)
	fmt.Fprint(s.out, "Are you sure? (yes/no): ")
	if !s.in.Scan() {
		return
	}
	answer := strings.ToLower(strings.TrimSpace(s.in.Text()))
	if answer != "yes" && answer != "y" {
		fmt.Fprintln(s.out, "Deletion canceled.")
		return
	}

	for _, id := range ids {
		deleted, err := s.engine.DeleteSubtree(id)
		if err != nil {
			s.printError(err)
			continue
		}
		fmt.Fprintf(s.out, "Deleted conversation %d and its subtree (%d nodes).\n", id, len(deleted))
		if s.current != nil && contains(deleted, *s.current) {
			s.current = nil
		}
	}
}

// cmdEdit handles:
//
//	edit <id> [-subject "<text>"] [-parent <id|none>]
//	          [-link <id>[,<id>...]|none] [-unlink <id>[,<id>...]]
func (s *Shell) cmdEdit(arg string) {
	const usage = `Usage: edit <id> [-subject "<text>"] [-parent <id|none>] [-link <ids|none>] [-unlink <ids>]`

	tokens, err := splitArgs(arg)
	if err != nil || len(tokens) < 2 {
		fmt.Fprintln(s.out, usage)
		return
	}

	id, err := strconv.ParseInt(tokens[0], 10, 64)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid conversation ID: %s\n", tokens[0])
		return
	}
	if _, err := s.store.Get(id); err != nil {
		s.printError(err)
		return
	}

	edits, err := parseEdits(tokens[1:])
	if err != nil {
		fmt.Fprintln(s.out, err.Error())
		fmt.Fprintln(s.out, usage)
		return
	}

	if edits.subject != nil {
		if err := s.store.SetSubject(id, *edits.subject); err != nil {
			s.printError(err)
			return
		}
		fmt.Fprintf(s.out, "Updated conversation %d - subject: %s\n", id, *edits.subject)
	}
	if edits.parentSet {
		if err := s.engine.Reparent(id, edits.parent); err != nil {
			s.printError(err)
			return
		}
		if edits.parent == nil {
			fmt.Fprintf(s.out, "Updated conversation %d - now a root conversation\n", id)
		} else {
			fmt.Fprintf(s.out, "Updated conversation %d - parent: %d\n", id, *edits.parent)
		}
	}
	if edits.clearLinks {
		if err := s.engine.ClearLinks(id); err != nil {
			s.printError(err)
			return
		}
		fmt.Fprintf(s.out, "Updated conversation %d - removed all links\n", id)
	}
	if len(edits.link) > 0 {
		if err := s.engine.Link(id, edits.link); err != nil {
			s.printError(err)
			return
		}
		fmt.Fprintf(s.out, "Updated conversation %d - linked to %v\n", id, edits.link)
	}
	if len(edits.unlink) > 0 {
		if err := s.engine.Unlink(id, edits.unlink); err != nil {
			s.printError(err)
			return
		}
		fmt.Fprintf(s.out, "Updated conversation %d - unlinked from %v\n", id, edits.unlink)
	}
}

func (s *Shell) cmdSearch(arg string) {
	if arg == "" {
		fmt.Fprintln(s.out, "Usage: search <pattern>")
		return
	}

	matches, err := s.searcher.Search(arg)
	if err != nil {
		s.printError(err)
		return
	}
	if len(matches) == 0 {
		fmt.Fprintf(s.out, "No conversations found containing %q.\n", arg)
		return
	}

	fmt.Fprintf(s.out, "\nFound %d conversation(s) containing %q:\n", len(matches), arg)
	for _, m := range matches {
		fmt.Fprintf(s.out, "- %s (id: %d, matched: %s, created on: %s)\n",
			m.Node.Subject, m.Node.ID, strings.Join(m.Fields, ", "), m.Node.PromptAt)
	}
}

// cmdExport handles: export <id> <file>
func (s *Shell) cmdExport(arg string) {
	parts := strings.SplitN(strings.TrimSpace(arg), " ", 2)
	if len(parts) != 2 {
		fmt.Fprintln(s.out, "Usage: export <id> <file>")
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid conversation ID: %s\n", parts[0])
		return
	}
	path := strings.TrimSpace(parts[1])

	f, err := os.Create(path)
	if err != nil {
		s.printError(err)
		return
	}
	defer f.Close()

	if err := s.exporter.WriteMarkdown(f, id); err != nil {
		s.printError(err)
		return
	}
	fmt.Fprintf(s.out, "Exported conversation tree (ID: %d) to %s\n", id, path)
}

func (s *Shell) cmdSummarize(ctx context.Context, arg string) {
	id, ok := s.parseID(arg, "Usage: summarize <id>")
	if !ok {
		return
	}
	_, err := s.manager.Summarize(ctx, id, func(chunk string) {
		fmt.Fprint(s.out, chunk)
	})
	fmt.Fprintln(s.out)
	if err != nil {
		s.printError(err)
	}
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.out, `
Promptree commands:
  ask [@<id>] <prompt>   Ask a question; @<id> picks an explicit parent
  list                   List top-level conversations
  open <id>              Show a conversation and its subtree, set context
  close                  Clear the current conversation context
  up                     Move the context to the parent conversation
  edit <id> [...]        Change subject, parent, or links (see below)
  rm <id>[,<id>,...]     Delete conversations and their subtrees
  search <pattern>       Case-insensitive search; * matches any characters
  export <id> <file>     Export a subtree as markdown
  summarize <id>         Summarize one conversation
  help                   Show this message
  quit                   Exit

edit flags: -subject "<text>"  -parent <id|none>  -link <ids|none>  -unlink <ids>
`)
}

// ─── Parsing helpers ─────────────────────────────────────────────────────────

func (s *Shell) currentLabel() string {
	if s.current == nil {
		return "none"
	}
	return strconv.FormatInt(*s.current, 10)
}

func (s *Shell) parseID(arg, usage string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil {
		fmt.Fprintln(s.out, usage)
		return 0, false
	}
	return id, true
}

func (s *Shell) printError(err error) {
	var nf *tree.NotFoundError
	var cyc *tree.CycleError
	var inv *tree.InvalidOperationError
	switch {
	case errors.As(err, &nf), errors.As(err, &cyc), errors.As(err, &inv):
		fmt.Fprintf(s.out, "Error: %v\n", err)
	default:
		fmt.Fprintf(s.out, "Error: %v\n", err)
		s.log.Error("command failed", zap.Error(err))
	}
}

func splitCommand(line string) (cmd, arg string) {
	parts := strings.SplitN(line, " ", 2)
	cmd = strings.ToLower(parts[0])
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return cmd, arg
}

// edits holds the parsed flags of an edit command.
type edits struct {
	subject    *string
	parent     *int64
	parentSet  bool
	link       []int64
	clearLinks bool
	unlink     []int64
}

func parseEdits(tokens []string) (*edits, error) {
	e := &edits{}
	i := 0
	next := func(flag string) (string, error) {
		if i+1 >= len(tokens) {
			return "", fmt.Errorf("%s requires a value", flag)
		}
		i++
		return tokens[i], nil
	}

	for ; i < len(tokens); i++ {
		switch tokens[i] {
		case "-subject":
			v, err := next("-subject")
			if err != nil {
				return nil, err
			}
			e.subject = &v
		case "-parent":
			v, err := next("-parent")
			if err != nil {
				return nil, err
			}
			if isNone(v) {
				e.parent = nil
			} else {
				id, err := strconv.ParseInt(v, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("invalid parent ID: %s", v)
				}
				e.parent = &id
			}
			e.parentSet = true
		case "-link":
			v, err := next("-link")
			if err != nil {
				return nil, err
			}
			if isNone(v) {
				e.clearLinks = true
			} else {
				ids, err := parseIDList(v)
				if err != nil {
					return nil, fmt.Errorf("invalid link IDs: %s", v)
				}
				e.link = ids
			}
		case "-unlink":
			v, err := next("-unlink")
			if err != nil {
				return nil, err
			}
			ids, err := parseIDList(v)
			if err != nil {
				return nil, fmt.Errorf("invalid unlink IDs: %s", v)
			}
			e.unlink = ids
		default:
			return nil, fmt.Errorf("invalid syntax near: %s", tokens[i])
		}
	}

	if e.subject == nil && !e.parentSet && !e.clearLinks && len(e.link) == 0 && len(e.unlink) == 0 {
		return nil, errors.New("must specify at least one of -subject, -parent, -link, -unlink")
	}
	return e, nil
}

func isNone(v string) bool {
	v = strings.ToLower(v)
	return v == "none" || v == "null"
}

// parseIDList parses "1,2,3" into ids.
func parseIDList(arg string) ([]int64, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, errors.New("empty id list")
	}
	var ids []int64
	for _, part := range strings.Split(arg, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// splitArgs splits a command tail into tokens, honoring double quotes so
// subjects with spaces survive: `1 -subject "New name"` → [1 -subject New name].
func splitArgs(arg string) ([]string, error) {
	var tokens []string
	var b strings.Builder
	inQuote := false

	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}

	for _, r := range arg {
		switch {
		case r == '"':
			if inQuote {
				tokens = append(tokens, b.String())
				b.Reset()
			}
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			flush()
		default:
			b.WriteRune(r)
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	flush()
	return tokens, nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// indentWriter prefixes every line written through it.
type indentWriter struct {
	w      io.Writer
	prefix string
}

func (iw indentWriter) Write(p []byte) (int, error) {
	lines := strings.Split(string(p), "\n")
	for i, line := range lines {
		if line == "" && i == len(lines)-1 {
			break
		}
		if _, err := fmt.Fprintf(iw.w, "%s%s\n", iw.prefix, line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}
