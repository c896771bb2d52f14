package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/notDroid/HarmonyChat/internal/cache"
	"github.com/notDroid/HarmonyChat/internal/models"
	"github.com/notDroid/HarmonyChat/internal/session"
	"github.com/notDroid/HarmonyChat/internal/transport"
	"github.com/notDroid/HarmonyChat/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	apiURL := os.Getenv("HARMONY_API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}
	wsURL := os.Getenv("HARMONY_WS_URL")
	if wsURL == "" {
		wsURL = "ws" + strings.TrimPrefix(apiURL, "http")
	}

	chatID := os.Getenv("HARMONY_CHAT_ID")
	if len(os.Args) > 1 {
		chatID = os.Args[1]
	}
	if chatID == "" {
		log.Fatal("HARMONY_CHAT_ID (or a chat id argument) is required")
	}
	userID := os.Getenv("HARMONY_USER_ID")
	if userID == "" {
		log.Fatal("HARMONY_USER_ID is required")
	}

	// Optional warm-start cache; the client runs fine without Redis.
	var snapshots *cache.SnapshotCache
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisDB := 0
		if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
			if parsedDB, err := strconv.Atoi(dbStr); err == nil {
				redisDB = parsedDB
			}
		}
		redisCache := cache.NewRedisCache(redisAddr, os.Getenv("REDIS_PASSWORD"), redisDB)
		if err := redisCache.Ping(); err != nil {
			log.Printf("WARNING: Redis connection failed: %v. Running without warm-start cache.", err)
		} else {
			snapshots = cache.NewSnapshotCache(redisCache)
			defer redisCache.Close()
			log.Println("Redis warm-start cache connected")
		}
	}

	var tokens *transport.TokenSource
	if access := os.Getenv("HARMONY_ACCESS_TOKEN"); access != "" {
		tokens = transport.NewTokenSource(apiURL, access, os.Getenv("HARMONY_REFRESH_TOKEN"))
	}

	client := transport.NewClient(apiURL, tokens)
	chat := session.NewChatSession(chatID, userID, client, client, snapshots)
	if sizeStr := os.Getenv("CHAT_PAGE_SIZE"); sizeStr != "" {
		if size, err := strconv.Atoi(sizeStr); err == nil {
			chat.SetPageSize(size)
		}
	}
	chat.SetOnChange(func() { render(chat, userID) })
	defer chat.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	header := http.Header{}
	if tokens != nil {
		if token, err := tokens.AccessToken(ctx); err == nil {
			header.Set("Authorization", "Bearer "+token)
		}
	}
	listener := ws.NewListener(
		fmt.Sprintf("%s/api/v1/chats/%s/ws?gzip=1", wsURL, chatID),
		header,
		chat.HandleLive,
	)
	go listener.Run(ctx)
	defer listener.Close()

	if err := chat.LoadInitial(ctx); err != nil {
		log.Fatal("Failed to load chat history: ", err)
	}

	log.Printf("Joined chat %s as %s. /older pages back, /retry <uuid> retries, /quit exits.", chatID, userID)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case line == "/older":
			more, err := chat.LoadOlder(ctx)
			if err != nil {
				log.Printf("Failed to load older messages: %v", err)
			} else if !more {
				log.Println("Beginning of history")
			}
		case strings.HasPrefix(line, "/retry "):
			if err := chat.Retry(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/retry "))); err != nil {
				log.Printf("Retry failed: %v", err)
			}
		default:
			go func(content string) {
				clientUUID, err := chat.Send(ctx, content)
				if err == nil {
					return
				}
				if clientUUID != "" {
					log.Printf("Send failed (retry with /retry %s): %v", clientUUID, err)
				} else {
					log.Printf("Send rejected: %v", err)
				}
			}(line)
		}
	}
}

func render(chat *session.ChatSession, userID string) {
	msgs := chat.Messages()
	fmt.Println("----")
	for _, m := range msgs {
		badge := ""
		switch m.EffectiveStatus() {
		case models.StatusPending:
			badge = " [sending]"
		case models.StatusError:
			badge = fmt.Sprintf(" [failed, /retry %s]", m.ClientUUID)
		}
		author := m.AuthorID
		if author == userID {
			author = "me"
		}
		fmt.Printf("%s %s: %s%s\n", m.Timestamp.Local().Format("15:04:05"), author, m.Content, badge)
	}
}
