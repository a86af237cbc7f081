// File: cmd/client/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/mostakin5290/discord-client/internal/auth"
	"github.com/mostakin5290/discord-client/internal/client"
	"github.com/mostakin5290/discord-client/internal/config"
	"github.com/mostakin5290/discord-client/internal/domain"
	"github.com/mostakin5290/discord-client/internal/render"
	"github.com/mostakin5290/discord-client/internal/repository/archive"
	"github.com/mostakin5290/discord-client/internal/rest"
	"github.com/mostakin5290/discord-client/internal/services"
	"github.com/mostakin5290/discord-client/internal/store"
	"github.com/mostakin5290/discord-client/internal/transport"
	"github.com/mostakin5290/discord-client/internal/typing"
)

func main() {
	cfg := config.Load()
	logger := services.NewLogger("client")
	ctx := context.Background()

	// --- REST client + credential ---
	restCfg := rest.DefaultConfig()
	restCfg.BaseURL = cfg.APIBaseURL
	restCfg.Token = cfg.AuthToken
	api, err := rest.NewClient(restCfg, logger)
	if err != nil {
		log.Fatalf("REST client error: %v", err)
	}

	token := cfg.AuthToken
	var user domain.User
	if token == "" {
		if cfg.Username == "" || cfg.Password == "" {
			log.Fatalf("No AUTH_TOKEN and no CHAT_USERNAME/CHAT_PASSWORD configured; cannot log in")
		}
		login, err := api.Login(ctx, cfg.Username, cfg.Password)
		if err != nil {
			log.Fatalf("Login failed: %v", err)
		}
		token = login.Token
		user = login.User
	} else {
		if err := auth.CheckLocal(token); err != nil {
			log.Fatalf("Configured token is invalid or expired; log in again: %v", err)
		}
		sub, err := auth.Subject(token)
		if err != nil {
			log.Fatalf("Configured token is malformed: %v", err)
		}
		user = domain.User{ID: sub, Username: cfg.Username}
	}

	// --- Local archive ---
	var arc archive.Archive
	if cfg.ArchivePath != "" {
		db, err := gorm.Open(sqlite.Open(cfg.ArchivePath), &gorm.Config{})
		if err != nil {
			log.Fatalf("DB Error: %v", err)
		}
		if err := archive.Migrate(db); err != nil {
			log.Fatalf("DB Migration Error: %v", err)
		}
		arc = archive.NewArchive(db)
	}

	// --- Sync engine ---
	storeCfg := store.DefaultConfig()
	storeCfg.RetentionLimit = cfg.RetentionLimit
	msgStore, err := store.NewStore(storeCfg, logger)
	if err != nil {
		log.Fatalf("Store error: %v", err)
	}

	tracker, err := typing.NewTracker(&typing.Config{
		ExpireAfter: time.Duration(cfg.TypingExpirySec) * time.Second,
	}, logger)
	if err != nil {
		log.Fatalf("Typing tracker error: %v", err)
	}

	transportCfg := transport.DefaultConfig()
	transportCfg.URL = cfg.SocketURL
	transportCfg.Token = token
	conn, err := transport.NewSession(transportCfg, logger, nil)
	if err != nil {
		log.Fatalf("Transport error: %v", err)
	}

	session, err := client.NewSession(client.Deps{
		Logger:    logger,
		Store:     msgStore,
		Tracker:   tracker,
		Transport: conn,
		API:       api,
		Archive:   arc,
		User:      user,
		Token:     token,
		PageSize:  cfg.HistoryPageSize,
		Retention: cfg.RetentionLimit,
	})
	if err != nil {
		log.Fatalf("Session error: %v", err)
	}

	if err := session.Start(ctx); err != nil {
		log.Fatalf("Could not start session: %v", err)
	}
	defer session.Close()

	fmt.Printf("Logged in as %s. Commands: /join <channel>, /older, /channels, /react <msg> <emoji>, /del <msg> [forMe|forEveryone], /retry <msg>, /discard <msg>, /quit\n", user.Username)

	// The update drain runs concurrently with the command loop; the channel in
	// view is shared between them.
	view := &currentView{}
	go func() {
		for u := range session.Updates() {
			current := view.get()
			switch u.Kind {
			case client.UpdateMessages:
				if u.ChannelID == current {
					printChannel(session, current)
				}
			case client.UpdateTyping:
				if u.ChannelID == current {
					if line := session.TypingSummary(current); line != "" {
						fmt.Println(line)
					}
				}
			case client.UpdateConnection:
				if u.Err != nil {
					fmt.Printf("! connection: %v\n", u.Err)
				}
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-stop:
			fmt.Println("bye")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == "/quit" {
				return
			}
			view.set(dispatch(ctx, session, api, view.get(), line))
		}
	}
}

type currentView struct {
	mu sync.Mutex
	id string
}

func (v *currentView) get() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.id
}

func (v *currentView) set(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.id = id
}

// dispatch handles one input line and returns the (possibly changed) current
// channel.
func dispatch(ctx context.Context, session *client.Session, api *rest.Client, current, line string) string {
	fields := strings.Fields(line)

	switch fields[0] {
	case "/join":
		if len(fields) < 2 {
			fmt.Println("usage: /join <channel>")
			return current
		}
		if current != "" {
			session.CloseChannel(current)
		}
		channelID := fields[1]
		if _, err := session.OpenChannel(ctx, channelID); err != nil {
			fmt.Printf("! %v\n", err)
		}
		printChannel(session, channelID)
		return channelID

	case "/older":
		if current == "" {
			return current
		}
		n, err := session.LoadOlder(ctx, current)
		if err != nil {
			fmt.Printf("! %v\n", err)
		} else {
			fmt.Printf("loaded %d older messages\n", n)
		}

	case "/channels":
		channels, err := api.ListChannels(ctx)
		if err != nil {
			fmt.Printf("! %v\n", err)
			return current
		}
		for _, ch := range channels {
			fmt.Printf("  #%s\n", ch.Name)
		}

	case "/react":
		if current == "" || len(fields) < 3 {
			fmt.Println("usage: /react <messageID> <emoji>")
			return current
		}
		if err := session.React(ctx, current, fields[1], fields[2], true); err != nil {
			fmt.Printf("! %v\n", err)
		}

	case "/del":
		if current == "" || len(fields) < 2 {
			fmt.Println("usage: /del <messageID> [forMe|forEveryone]")
			return current
		}
		scope := domain.DeleteForEveryone
		if len(fields) > 2 && fields[2] == string(domain.DeleteForMe) {
			scope = domain.DeleteForMe
		}
		if err := session.DeleteMessage(ctx, current, fields[1], scope); err != nil {
			fmt.Printf("! %v\n", err)
		}

	case "/retry":
		if current == "" || len(fields) < 2 {
			return current
		}
		if _, err := session.RetrySend(ctx, current, fields[1]); err != nil {
			fmt.Printf("! %v\n", err)
		}

	case "/discard":
		if current == "" || len(fields) < 2 {
			return current
		}
		if err := session.DiscardFailed(current, fields[1]); err != nil {
			fmt.Printf("! %v\n", err)
		}

	default:
		if current == "" {
			fmt.Println("join a channel first: /join <channel>")
			return current
		}
		session.Typing(current)
		if _, err := session.SendMessage(ctx, current, line, "", ""); err != nil {
			fmt.Printf("! send failed (kept for retry): %v\n", err)
		}
	}
	return current
}

func printChannel(session *client.Session, channelID string) {
	entries := session.Messages(channelID)
	groups := render.GroupMessages(entries)
	now := time.Now()

	fmt.Printf("--- #%s ---\n", channelID)
	var prev time.Time
	for _, g := range groups {
		if !prev.IsZero() && render.IsNewDay(prev, g.StartedAt) {
			fmt.Printf("===== %s =====\n", g.StartedAt.Format("January 2, 2006"))
		}
		prev = g.StartedAt
		fmt.Printf("%s  [%s]\n", g.AuthorName, render.FormatTimestamp(g.StartedAt, now))
		for _, e := range g.Messages {
			marker := ""
			switch e.Status {
			case domain.StatusPending:
				marker = " (sending...)"
			case domain.StatusFailed:
				marker = fmt.Sprintf(" (FAILED - /retry %s)", e.ID)
			}
			body := e.Content
			if e.Deleted {
				body = "(message deleted)"
			}
			fmt.Printf("  %s%s\n", body, marker)
			for emoji, users := range e.Reactions {
				fmt.Printf("    %s x%d\n", emoji, len(users))
			}
		}
	}
	if line := session.TypingSummary(channelID); line != "" {
		fmt.Println(line)
	}
}
