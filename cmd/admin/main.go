package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"livechat/backend/internal/auth"
	"livechat/backend/internal/chat"
	"livechat/backend/internal/config"
	"livechat/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]

Commands:
  hash-key <key>            print the bcrypt hash for ADMIN_KEY_HASH
  sessions                  list chats, most recently active first
  messages <chat_id>        print the history of a chat
  delete-session <chat_id>  delete a chat and all of its messages
  delete-message <msg_id>   delete one message`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	command := os.Args[1]

	if command == "hash-key" {
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin hash-key <key>")
			os.Exit(1)
		}
		hash, err := auth.HashKey(os.Args[2])
		if err != nil {
			log.Fatalf("Error hashing key: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.LoadDatabaseConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	// Triggers publish the CLI's deletes like any other write.
	svc := chat.NewService(storage.NewStorageService(db, nil), nil, nil, chat.Options{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch command {
	case "sessions":
		if err := listSessions(ctx, svc); err != nil {
			log.Fatalf("Error listing chats: %v", err)
		}
	case "messages":
		requireArg("messages <chat_id>")
		if err := listMessages(ctx, svc, os.Args[2]); err != nil {
			log.Fatalf("Error listing messages: %v", err)
		}
	case "delete-session":
		requireArg("delete-session <chat_id>")
		if err := svc.DeleteSession(ctx, os.Args[2]); err != nil {
			log.Fatalf("Error deleting chat: %v", err)
		}
		fmt.Printf("Chat %s has been deleted.\n", os.Args[2])
	case "delete-message":
		requireArg("delete-message <msg_id>")
		if err := svc.DeleteMessage(ctx, os.Args[2]); err != nil {
			log.Fatalf("Error deleting message: %v", err)
		}
		fmt.Printf("Message %s has been deleted.\n", os.Args[2])
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func requireArg(form string) {
	if len(os.Args) != 3 {
		fmt.Println("Usage: admin " + form)
		os.Exit(1)
	}
}

func listSessions(ctx context.Context, svc *chat.Service) error {
	sessions, err := svc.Sessions(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tUPDATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.ClientName, s.UpdatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func listMessages(ctx context.Context, svc *chat.Service, sessionID string) error {
	msgs, err := svc.History(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		fmt.Printf("[%s] %-6s %s  (%s)\n", m.CreatedAt.Local().Format(time.TimeOnly), m.Sender, m.Content, m.ID)
	}
	return nil
}
