package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bantuinchat/internal/api"
	"bantuinchat/internal/auth"
	"bantuinchat/internal/chat"
	"bantuinchat/internal/commands"
	"bantuinchat/internal/config"
	"bantuinchat/internal/models"
	"bantuinchat/internal/storage"
	"bantuinchat/internal/ws"

	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context) error {
	setToken := flag.String("set-token", "", "Store the bearer token from the Bantuin web app")
	logout := flag.Bool("logout", false, "Remove the stored bearer token")
	inbox := flag.Bool("inbox", false, "List conversations, most recently active first")
	with := flag.String("with", "", "Open an interactive chat with the given user id")
	export := flag.String("export", "", "Export a conversation's cached messages as HTML")
	out := flag.String("out", "transcript.html", "Output file for -export")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := storage.NewBboltStorage(cfg.CacheFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	tokens := auth.NewTokenStore(store)

	if *setToken != "" {
		return commands.SetToken(tokens, *setToken)
	}
	if *logout {
		return commands.Logout(tokens)
	}

	client := api.NewClient(cfg.APIBaseURL, tokens)

	self, err := loadIdentity(ctx, client, tokens, cfg)
	if err != nil {
		return err
	}

	svc := chat.New(chat.Config{
		Self:  self,
		API:   client,
		Store: store,
		MessageCallback: func(msg models.Message) {
			if msg.SenderID == self.ID {
				return
			}
			fmt.Printf("\n%s: %s\n> ", senderName(msg), msg.Content)
		},
	})
	if err := svc.LoadCache(); err != nil {
		return err
	}

	switch {
	case *export != "":
		return commands.Export(svc, *export, *out)
	case *inbox:
		return commands.Inbox(ctx, svc, self)
	case *with != "":
		return runSession(ctx, cfg, svc, tokens, *with)
	default:
		flag.Usage()
		return nil
	}
}

// loadIdentity resolves the current user, preferring a live profile fetch
// and falling back to the cached snapshot when the backend is unreachable.
func loadIdentity(ctx context.Context, client *api.Client, tokens *auth.TokenStore, cfg *config.Config) (models.User, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	self, err := client.FetchProfile(fetchCtx)
	if err == nil {
		if saveErr := tokens.SaveProfile(self); saveErr != nil {
			log.Printf("Could not cache profile: %v", saveErr)
		}
		return self, nil
	}

	cached, cacheErr := tokens.LoadProfile()
	if cacheErr == nil {
		log.Printf("Profile fetch failed, using cached identity: %v", err)
		return cached, nil
	}

	if errors.Is(err, models.ErrNotFound) || errors.Is(cacheErr, models.ErrNotFound) {
		return models.User{}, errors.New("not authenticated, run with -set-token first")
	}
	return models.User{}, fmt.Errorf("failed to resolve identity: %w", err)
}

// runSession opens a chat with one user and bridges stdin lines to the send
// pipeline while the socket delivers live updates.
func runSession(ctx context.Context, cfg *config.Config, svc *chat.Service, tokens *auth.TokenStore, recipientID string) error {
	socket, err := ws.NewClient(ws.Config{
		URL:                  cfg.SocketURL,
		MaxReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay,
	}, tokens, svc)
	if err != nil {
		return err
	}
	svc.SetSocket(socket)

	recipient := models.User{ID: recipientID}
	if conv, ok := svc.FindByCounterparty(recipientID); ok {
		for _, p := range conv.Participants {
			if p.User.ID == recipientID {
				recipient = p.User
				break
			}
		}
	}

	if err := svc.OpenChatWith(ctx, recipient); err != nil {
		log.Printf("Could not refresh conversations: %v", err)
	}

	for _, msg := range svc.ActiveMessages() {
		fmt.Printf("%s: %s\n", senderName(msg), msg.Content)
	}
	fmt.Println("Type a message and press enter. /quit to exit.")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return socket.Run(gCtx)
	})

	g.Go(func() error {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "/quit" {
				svc.Close()
				return context.Canceled
			}
			if line != "" {
				if err := svc.Send(gCtx, line); err != nil {
					fmt.Printf("Send failed, message discarded: %v\n", err)
				}
			}
			fmt.Print("> ")
		}
		return scanner.Err()
	})

	g.Go(func() error {
		<-gCtx.Done()
		return gCtx.Err()
	})

	return g.Wait()
}

func senderName(msg models.Message) string {
	if msg.Sender.FullName != "" {
		return msg.Sender.FullName
	}
	return msg.SenderID
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
