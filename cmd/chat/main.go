// aguimock-chat is a terminal client for the mock agent server. It keeps
// conversation history on disk, streams answers as they are typed out by
// the server, and falls back to the embedded Q&A data when the server is
// unreachable.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/goland-group/aguimock/internal/config"
	"github.com/goland-group/aguimock/internal/conversation"
	"github.com/goland-group/aguimock/internal/protocol"
	"github.com/goland-group/aguimock/internal/qa"
	"github.com/goland-group/aguimock/internal/run"
	"github.com/goland-group/aguimock/internal/transport"
)

// Version is set at build time via -ldflags "-X main.Version=v1.0.0"
var Version = "dev"

type chatApp struct {
	client *transport.Client
	store  *conversation.Store
	local  *qa.Store
}

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	configFlag := flag.String("config", "", "Path to aguimock.jsonc (default: built-in settings)")
	serverFlag := flag.String("server", "", "Agent server URL, overrides config")
	flag.Parse()

	if *showVersion {
		fmt.Printf("aguimock-chat %s\n", Version)
		os.Exit(0)
	}

	cfg := config.Default()
	if *configFlag != "" {
		loaded, err := config.Load(*configFlag)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		cfg = loaded
	}
	serverURL := cfg.Client.ServerURL
	if *serverFlag != "" {
		serverURL = *serverFlag
	}

	store, err := conversation.NewStore(cfg.Client.DataDir)
	if err != nil {
		log.Fatalf("Failed to open conversation store: %v", err)
	}
	defer func() { _ = store.Close() }()

	local, err := qa.NewEmbeddedStore()
	if err != nil {
		log.Fatalf("Failed to load embedded Q&A data: %v", err)
	}

	app := &chatApp{
		client: transport.NewClient(serverURL),
		store:  store,
		local:  local,
	}

	fmt.Printf("aguimock-chat %s - connected to %s\n", Version, serverURL)
	if status, err := app.client.Health(context.Background()); err != nil {
		fmt.Println("⚠️  Server unreachable, answers will come from local data")
	} else {
		fmt.Printf("✅ Server healthy (%s)\n", status.Service)
	}
	app.printUnread()
	fmt.Println("Type a question, or /help for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if app.command(line) {
				return
			}
			continue
		}
		app.ask(line)
	}
}

// command dispatches a slash command; returns true when the app should
// exit.
func (a *chatApp) command(line string) bool {
	parts := strings.Fields(line)
	switch parts[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		printHelp()
	case "/new":
		a.startNewConversation()
	case "/history":
		a.printHistory()
	case "/retry":
		a.retry()
	case "/regenerate":
		a.regenerate()
	case "/edit":
		if len(parts) < 3 {
			fmt.Println("Usage: /edit <index> <new text>")
			return false
		}
		idx, err := strconv.Atoi(parts[1])
		if err != nil {
			fmt.Println("Usage: /edit <index> <new text>")
			return false
		}
		a.edit(idx, strings.Join(parts[2:], " "))
	case "/feedback":
		if len(parts) != 3 {
			fmt.Println("Usage: /feedback <index> positive|negative")
			return false
		}
		idx, err := strconv.Atoi(parts[1])
		if err != nil {
			fmt.Println("Usage: /feedback <index> positive|negative")
			return false
		}
		a.sendFeedback(idx, parts[2])
	default:
		fmt.Printf("Unknown command %s, try /help\n", parts[0])
	}
	return false
}

func printHelp() {
	fmt.Println(`Commands:
  /new                     Start a fresh conversation
  /history                 Show the current conversation
  /retry                   Resend the last question
  /regenerate              Fork the conversation and regenerate the last answer
  /edit <i> <text>         Fork the conversation with message i rewritten
  /feedback <i> <type>     Rate answer i (positive or negative)
  /quit                    Exit

Press Ctrl-C during an answer to stop the stream.`)
}

// currentRecord loads the active conversation, or returns a fresh
// unsaved record when none exists yet.
func (a *chatApp) currentRecord() *conversation.Record {
	rec, err := a.store.GetOrCreate()
	if err != nil {
		fmt.Printf("⚠️  Could not load conversation: %v\n", err)
		return &conversation.Record{}
	}
	return rec
}

// ask submits one question in the current conversation.
func (a *chatApp) ask(question string) {
	rec := a.currentRecord()

	turns := make([]protocol.Turn, 0, len(rec.Messages)+1)
	for _, m := range rec.Messages {
		turns = append(turns, protocol.Turn{Role: m.Role, Content: m.Content})
	}
	turns = append(turns, protocol.Turn{Role: protocol.RoleUser, Content: question})

	req := &protocol.RunRequest{SessionID: rec.SessionID, Turns: turns}
	a.runAndSave(req, rec, conversation.NewMessage(protocol.RoleUser, question))
}

// runAndSave streams one run, then persists the outcome. userMsg is the
// new user turn to append; seed, when non-nil, replaces the record's
// message history before appending (used by forks).
func (a *chatApp) runAndSave(req *protocol.RunRequest, rec *conversation.Record, userMsg conversation.Message) {
	printed := 0
	machine := run.NewMachine(func(st run.State) {
		if len(st.Text) > printed {
			fmt.Print(st.Text[printed:])
			printed = len(st.Text)
		}
	})
	machine.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle, err := a.client.OpenRun(ctx, req, func(ev protocol.StreamEvent) {
		machine.Apply(ev)
	})
	if err != nil {
		a.answerLocally(req.Message(), rec, userMsg)
		return
	}

	// Ctrl-C stops the stream instead of killing the app.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	select {
	case <-handle.Done():
	case <-interrupt:
		machine.Cancel()
		handle.Cancel()
		<-handle.Done()
		fmt.Println("\n⏹  Stopped.")
	}
	if err := handle.Err(); err != nil {
		machine.Fail(err)
	}

	st := machine.State()
	switch st.Phase {
	case run.PhaseDone:
		fmt.Println()
		if !st.Committed {
			fmt.Println("⚠️  La respuesta quedó incompleta y no se guardó")
			return
		}
		rec.SessionID = st.SessionID
		rec.Messages = append(rec.Messages, userMsg)
		rec.Messages = append(rec.Messages, conversation.NewMessage(protocol.RoleAssistant, st.Text))
		a.persist(rec)
	case run.PhaseError:
		if st.ErrCode == protocol.CodeAnswerNotFound {
			fmt.Printf("🤷 %s\n", st.ErrMessage)
			return
		}
		fmt.Printf("❌ %s\n", st.ErrMessage)
		a.answerLocally(req.Message(), rec, userMsg)
	case run.PhaseStopped:
		// Nothing committed, nothing saved.
	}
}

// persist saves the record, adopts its session, and marks the new answer
// as seen since the user just watched it stream.
func (a *chatApp) persist(rec *conversation.Record) {
	if rec.SessionID == "" {
		fmt.Println("⚠️  Run finished without a session id, conversation not saved")
		return
	}
	if err := a.store.Adopt(rec.SessionID); err != nil {
		fmt.Printf("⚠️  Could not save conversation: %v\n", err)
		return
	}
	rec.SeenCount = rec.AssistantCount()
	if err := a.store.Save(rec); err != nil {
		fmt.Printf("⚠️  Could not save conversation: %v\n", err)
	}
	fmt.Printf("   [%d] rate with /feedback %d positive|negative\n", len(rec.Messages)-1, len(rec.Messages)-1)
}

// answerLocally serves the question from the embedded data when the
// server cannot.
func (a *chatApp) answerLocally(question string, rec *conversation.Record, userMsg conversation.Message) {
	answer, ok := a.local.Find(question)
	if !ok {
		fmt.Println("🤷 Lo siento, no tengo una respuesta para esa pregunta.")
		return
	}
	fmt.Printf("%s\n   (respuesta local)\n", answer)
	if rec.SessionID == "" {
		// No server conversation to attach the exchange to.
		return
	}
	rec.Messages = append(rec.Messages, userMsg)
	rec.Messages = append(rec.Messages, conversation.NewMessage(protocol.RoleAssistant, answer))
	rec.SeenCount = rec.AssistantCount()
	if err := a.store.Save(rec); err != nil {
		fmt.Printf("⚠️  Could not save conversation: %v\n", err)
	}
}

func (a *chatApp) startNewConversation() {
	id, err := a.store.CurrentSessionID()
	if err == nil && id != "" {
		if err := a.store.Forget(id); err != nil {
			fmt.Printf("⚠️  Could not forget conversation: %v\n", err)
			return
		}
	}
	fmt.Println("🆕 New conversation started.")
}

func (a *chatApp) printHistory() {
	rec := a.currentRecord()
	if len(rec.Messages) == 0 {
		fmt.Println("(empty conversation)")
		return
	}
	for i, m := range rec.Messages {
		marker := "🧑"
		if m.Role == protocol.RoleAssistant {
			marker = "🤖"
		}
		note := ""
		if m.Feedback != "" {
			note = " [" + m.Feedback + "]"
		}
		fmt.Printf("[%d] %s %s%s\n", i, marker, m.Content, note)
	}
	if id, err := a.store.CurrentSessionID(); err == nil && id != "" {
		_ = a.store.MarkSeen(id)
	}
}

func (a *chatApp) printUnread() {
	id, err := a.store.CurrentSessionID()
	if err != nil || id == "" {
		return
	}
	rec, err := a.store.Load(id)
	if err != nil {
		return
	}
	if n := rec.UnreadCount(); n > 0 {
		fmt.Printf("🔔 %d unread answer(s), see /history\n", n)
	}
}

// retry resends the last question in the same conversation.
func (a *chatApp) retry() {
	rec := a.currentRecord()
	idx := conversation.LastUserIndex(rec.Messages)
	if idx < 0 {
		fmt.Println("Nothing to retry.")
		return
	}
	a.ask(rec.Messages[idx].Content)
}

// regenerate forks the conversation at the last question so the server
// answers it again under a fresh session.
func (a *chatApp) regenerate() {
	rec := a.currentRecord()
	idx := conversation.LastUserIndex(rec.Messages)
	if idx < 0 {
		fmt.Println("Nothing to regenerate.")
		return
	}
	a.fork(rec, idx, "")
}

// edit forks the conversation with the question at idx rewritten.
func (a *chatApp) edit(idx int, newText string) {
	rec := a.currentRecord()
	a.fork(rec, idx, newText)
}

func (a *chatApp) fork(rec *conversation.Record, idx int, newText string) {
	req, seed, err := conversation.Fork(rec.Messages, idx, newText)
	if err != nil {
		fmt.Printf("⚠️  %v\n", err)
		return
	}

	// The fork is a new conversation; its history minus the pending user
	// turn becomes the record seed.
	forked := &conversation.Record{Messages: seed[:len(seed)-1]}
	a.runAndSave(req, forked, seed[len(seed)-1])
}

func (a *chatApp) sendFeedback(idx int, feedbackType string) {
	rec := a.currentRecord()
	if idx < 0 || idx >= len(rec.Messages) {
		fmt.Println("No such message.")
		return
	}
	msg := rec.Messages[idx]
	if msg.Role != protocol.RoleAssistant {
		fmt.Println("Feedback goes on answers, not questions.")
		return
	}

	if err := a.client.SendFeedback(context.Background(), msg.ID, feedbackType, rec.SessionID); err != nil {
		fmt.Printf("⚠️  %v\n", err)
		return
	}
	rec.Messages[idx].Feedback = feedbackType
	if err := a.store.Save(rec); err != nil {
		fmt.Printf("⚠️  Could not save feedback locally: %v\n", err)
		return
	}
	fmt.Println("🙏 Feedback recorded.")
}
