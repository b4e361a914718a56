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

	"livechat/backend/internal/clientstore"
	"livechat/backend/internal/mirror"
	"livechat/backend/internal/models"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "chat server base URL")
	storePath := flag.String("store", "", "credential file (default: user config dir)")
	reset := flag.Bool("reset", false, "forget the remembered chat and start a new one")
	flag.Parse()

	path := *storePath
	if path == "" {
		var err error
		if path, err = clientstore.DefaultPath(); err != nil {
			log.Fatalf("resolve credential file: %v", err)
		}
	}
	store, err := clientstore.Open(path)
	if err != nil {
		log.Fatal(err)
	}
	if *reset {
		if err := forget(store); err != nil {
			log.Fatal(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := newAPI(*server)
	reader := bufio.NewReader(os.Stdin)

	session, token, err := resume(ctx, api, store)
	if err != nil {
		log.Fatal(err)
	}
	if session == nil {
		session, token, err = nameGate(ctx, api, store, reader)
		if err != nil {
			log.Fatal(err)
		}
	}

	conn, err := mirror.Dial(ctx, api.wsURL("/ws"), token, session.ID)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	fmt.Printf("---- Chat as %s (type /upload <file> to send a video, /quit to leave) ----\n", session.ClientName)
	for _, m := range conn.Mirror.Messages() {
		printMessage(m)
	}

	tailDone := make(chan error, 1)
	go func() {
		tailDone <- conn.Tail(ctx, func(ev models.Event) {
			switch {
			case ev.Type == models.EventError:
				fmt.Printf("! %s\n", ev.Error)
			case ev.Type == models.EventInsert:
				if m, err := ev.Message(); err == nil {
					printMessage(m)
				}
			case ev.Type == models.EventDelete && ev.Table == models.TableMessages:
				fmt.Println("(a message was removed)")
			}
		})
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			lines <- strings.TrimSpace(line)
		}
	}()

	for {
		select {
		case err := <-tailDone:
			if errors.Is(err, mirror.ErrSessionDeleted) {
				fmt.Println("This chat was closed by the operator.")
				if err := forget(store); err != nil {
					log.Print(err)
				}
				return
			}
			if err != nil && ctx.Err() == nil {
				log.Fatal(err)
			}
			return

		case line, ok := <-lines:
			if !ok || line == "/quit" {
				return
			}
			if line == "" {
				continue
			}
			if file, found := strings.CutPrefix(line, "/upload "); found {
				if _, err := api.upload(ctx, token, strings.TrimSpace(file)); err != nil {
					fmt.Printf("! upload failed: %v\n", err)
				}
				continue
			}
			if err := conn.Send(line); err != nil {
				log.Fatalf("send: %v", err)
			}
		}
	}
}

// resume returns the remembered session, or nil when there is none or it no
// longer exists.
func resume(ctx context.Context, api *apiClient, store *clientstore.Store) (*models.Session, string, error) {
	token, ok := store.Get(clientstore.KeyToken)
	if !ok || token == "" {
		return nil, "", nil
	}
	session, err := api.session(ctx, token)
	if errors.Is(err, errGone) {
		fmt.Println("Your previous chat is no longer available.")
		return nil, "", forget(store)
	}
	if err != nil {
		return nil, "", err
	}
	return session, token, nil
}

// nameGate asks for a display name until a chat is created.
func nameGate(ctx context.Context, api *apiClient, store *clientstore.Store, reader *bufio.Reader) (*models.Session, string, error) {
	for {
		fmt.Print("Your name: ")
		name, err := reader.ReadString('\n')
		if err != nil {
			return nil, "", fmt.Errorf("read name: %w", err)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			fmt.Println("Please enter a name.")
			continue
		}

		session, token, err := api.createSession(ctx, name)
		if err != nil {
			return nil, "", err
		}
		if err := store.Set(clientstore.KeyToken, token); err != nil {
			return nil, "", err
		}
		if err := store.Set(clientstore.KeySessionID, session.ID); err != nil {
			return nil, "", err
		}
		if err := store.Set(clientstore.KeyName, session.ClientName); err != nil {
			return nil, "", err
		}
		return session, token, nil
	}
}

func forget(store *clientstore.Store) error {
	return store.Delete(clientstore.KeyToken, clientstore.KeySessionID, clientstore.KeyName)
}

func printMessage(m models.Message) {
	who := "you"
	if m.Sender == models.SenderAdmin {
		who = "operator"
	}
	text := m.Content
	if m.Kind == models.KindVideo {
		text = "[video] " + text
	}
	fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), who, text)
}
