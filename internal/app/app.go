// Package app wires the components together and runs the interactive loop.
package app

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"ContraChat/internal/agent"
	"ContraChat/internal/cache"
	"ContraChat/internal/config"
	"ContraChat/internal/model"
	"ContraChat/internal/session"
	"ContraChat/internal/store"
	"ContraChat/internal/telemetry"
)

// App is the assembled application.
type App struct {
	config     config.Config
	db         *sql.DB
	store      *store.Store
	cache      *cache.Cache
	controller *session.Controller
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter
	cleanup    func()

	// conversationID of the durable record mirroring the live session;
	// created lazily on the first exchange.
	convID string

	// printed tracks how much of the streaming message is already on
	// screen so updates print only the new suffix.
	printMu sync.Mutex
	printed int

	argumentsViewed int
}

// New builds the application from configuration.
func New(cfg config.Config) (*App, error) {
	logger, err := telemetry.InitLogger(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tracer, meter, cleanup, err := telemetry.InitTelemetry(context.Background(), cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	db, err := telemetry.InitDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	storage, err := cache.NewFileStorage(filepath.Join(cfg.CacheDir, "active"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache storage: %w", err)
	}

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	a := &App{
		config:  cfg,
		db:      db,
		store:   store.New(db, logger),
		cache:   cache.New(storage, logger),
		logger:  logger,
		tracer:  tracer,
		meter:   meter,
		cleanup: cleanup,
	}

	client := agent.NewClient(cfg.Endpoint, logger, tracer, meter)
	a.controller = session.NewController(client, a.cache, logger, meter, session.Options{
		ConversationID: cfg.ConversationID,
		InitialMessage: cfg.InitialMessage,
		Resume:         cfg.Resume,
		OnUpdate:       a.printStreamUpdate,
		OnPhase: func(label string) {
			fmt.Printf("  [%s...]\n", label)
		},
	})

	return a, nil
}

// Run starts the interactive loop.
func (a *App) Run() error {
	defer a.db.Close()
	defer a.cleanup()

	fmt.Println("=== ContraChat ===")
	fmt.Println("State a belief; the agent argues the other side.")
	fmt.Println("Type /help for commands, /quit to exit")
	fmt.Println()

	if a.config.InitialMessage != "" {
		a.beginPrinting()
		a.controller.SendInitial()
		a.controller.Wait()
		a.afterExchange()
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := a.handleCommand(input)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				a.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		a.beginPrinting()
		a.controller.Send(input)
		a.controller.Wait()
		a.afterExchange()
	}

	a.finishSession()
	a.controller.Close()
	fmt.Println("Goodbye!")
	return nil
}

// beginPrinting resets the streaming print cursor before a new exchange.
func (a *App) beginPrinting() {
	a.printMu.Lock()
	a.printed = 0
	a.printMu.Unlock()
	fmt.Print("Agent: ")
}

// printStreamUpdate prints the unprinted suffix of the streaming message.
func (a *App) printStreamUpdate() {
	messages := a.controller.Messages()
	if len(messages) == 0 {
		return
	}
	last := messages[len(messages)-1]
	if last.Role != model.RoleAssistant {
		return
	}

	a.printMu.Lock()
	defer a.printMu.Unlock()
	if len(last.Content) > a.printed {
		fmt.Print(last.Content[a.printed:])
		a.printed = len(last.Content)
	}
}

// afterExchange mirrors the finished exchange into the durable store.
func (a *App) afterExchange() {
	fmt.Println()
	fmt.Println()

	messages := a.controller.Messages()
	if len(messages) < 2 {
		return
	}

	if a.convID == "" {
		if err := a.adoptConversation(messages[0].Content); err != nil {
			a.logger.Warn("failed to open conversation record", "error", err)
			return
		}
	}

	// Append only messages the record does not have yet. A continued
	// record may already hold more than this session does.
	conv, err := a.store.GetConversation(a.convID)
	if err != nil {
		a.logger.Warn("failed to load conversation record", "error", err)
		return
	}
	start := len(conv.Messages)
	if start > len(messages) {
		start = len(messages)
	}
	for _, msg := range messages[start:] {
		if err := a.store.AddMessage(a.convID, msg); err != nil {
			a.logger.Warn("failed to persist message", "error", err)
		}
		a.argumentsViewed += len(msg.Arguments)
	}
}

// adoptConversation binds the session to its durable record. A record with
// the session's id may already exist when the conversation was continued
// via -conversation-id; it is reused rather than recreated.
func (a *App) adoptConversation(firstContent string) error {
	id := a.controller.ConversationID()
	_, err := a.store.GetConversation(id)
	if err == nil {
		a.convID = id
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	conv, err := a.store.CreateConversation(firstContent, id)
	if err != nil {
		return err
	}
	a.convID = conv.ID
	return nil
}

// finishSession records analytics for the conversation, if any.
func (a *App) finishSession() {
	if a.convID == "" {
		return
	}
	conv, err := a.store.GetConversation(a.convID)
	if err != nil {
		return
	}
	if err := a.store.RecordAnalytics(conv, a.argumentsViewed); err != nil {
		a.logger.Warn("failed to record analytics", "error", err)
	}
}

// handleCommand handles special commands
func (a *App) handleCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/retry":
		if a.controller.LastError() == nil {
			fmt.Println("Nothing to retry.")
			return false, nil
		}
		a.beginPrinting()
		a.controller.Retry()
		a.controller.Wait()
		a.afterExchange()
		return false, nil

	case "/conversations":
		convs, err := a.store.GetAllConversations()
		if err != nil {
			return false, err
		}
		a.printGroups(a.store.GroupByDate(convs))
		return false, nil

	case "/search":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /search <query>")
		}
		query := strings.Join(parts[1:], " ")
		results, err := a.store.SearchConversations(query)
		if err != nil {
			return false, err
		}
		if len(results) == 0 {
			fmt.Println("No matches.")
			return false, nil
		}
		for _, conv := range results {
			fmt.Printf("  %s  %s (%d messages)\n", shortID(conv.ID), conv.Title, conv.MessageCount)
		}
		return false, nil

	case "/export":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /export <conversation-id> [md|json]")
		}
		format := "md"
		if len(parts) > 2 {
			format = parts[2]
		}
		var out string
		var err error
		if format == "json" {
			out, err = a.store.ExportJSON(parts[1])
		} else {
			out, err = a.store.ExportMarkdown(parts[1])
		}
		if errors.Is(err, store.ErrNotFound) {
			return false, fmt.Errorf("no conversation with id %s", parts[1])
		}
		if err != nil {
			return false, err
		}
		fmt.Println(out)
		return false, nil

	case "/bookmark":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /bookmark <conversation-id>")
		}
		marked, err := a.store.ToggleBookmark(parts[1])
		if err != nil {
			return false, err
		}
		if marked {
			fmt.Println("Bookmarked.")
		} else {
			fmt.Println("Bookmark removed.")
		}
		return false, nil

	case "/delete":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /delete <conversation-id>")
		}
		if err := a.store.DeleteConversation(parts[1]); err != nil {
			return false, err
		}
		fmt.Println("Deleted.")
		return false, nil

	case "/stats":
		days := 30
		if len(parts) > 1 {
			if n, err := strconv.Atoi(parts[1]); err == nil && n > 0 {
				days = n
			}
		}
		summary, err := a.store.AnalyticsSummary(days)
		if err != nil {
			return false, err
		}
		fmt.Printf("Last %d days: %d conversations, %d messages, %d arguments viewed\n",
			days, summary.Conversations, summary.TotalMessages, summary.TotalArgumentsViewed)
		fmt.Printf("Mean conversation duration: %s\n", summary.MeanDuration)
		if len(summary.TopTopics) > 0 {
			fmt.Println("Top topics:")
			for _, tc := range summary.TopTopics {
				fmt.Printf("  %s (%d)\n", tc.Topic, tc.Count)
			}
		}
		return false, nil

	case "/help":
		fmt.Println("Available commands:")
		fmt.Println("  /quit, /exit            - Exit")
		fmt.Println("  /retry                  - Retry the last failed exchange")
		fmt.Println("  /conversations          - List saved conversations by recency")
		fmt.Println("  /search <query>         - Search saved conversations")
		fmt.Println("  /export <id> [md|json]  - Export a conversation")
		fmt.Println("  /bookmark <id>          - Toggle a conversation bookmark")
		fmt.Println("  /delete <id>            - Delete a conversation")
		fmt.Println("  /stats [days]           - Usage summary")
		fmt.Println("  /help                   - Show this help message")
		return false, nil

	default:
		return false, nil
	}
}

func (a *App) printGroups(groups store.DateGroups) {
	printGroup := func(name string, convs []model.Conversation) {
		if len(convs) == 0 {
			return
		}
		fmt.Println(name + ":")
		for _, conv := range convs {
			mark := " "
			if conv.IsBookmarked {
				mark = "*"
			}
			fmt.Printf("  %s %s  %s (%d messages)\n", mark, shortID(conv.ID), conv.Title, conv.MessageCount)
		}
	}
	printGroup("Today", groups.Today)
	printGroup("Yesterday", groups.Yesterday)
	printGroup("This week", groups.ThisWeek)
	printGroup("This month", groups.ThisMonth)
	printGroup("Older", groups.Older)
}

// shortID abbreviates a conversation id for list output. Ids are
// user-suppliable and may be shorter than the display width.
func shortID(id string) string {
	if len(id) < 8 {
		return id
	}
	return id[:8]
}
