package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"
	kafka "github.com/segmentio/kafka-go"

	"github.com/mqy/pairchat/auth"
	"github.com/mqy/pairchat/client"
	"github.com/mqy/pairchat/journal"
)

// The demo chats as --uid with --peer from the terminal, or tails the event journal.
//
//	go run ./dev/demo --uid alice --peer bob
//	go run ./dev/demo --uid bob --peer alice
//	go run ./dev/demo --tail-journal

var (
	flagServer    = flag.String("server", "ws://127.0.0.1:8000/ws", "websocket url")
	flagUid       = flag.String("uid", "", "identity to connect as")
	flagPeer      = flag.String("peer", "", "identity to chat with")
	flagJwtSecret = flag.String("jwt-secret", "", "issue a bearer token with this secret instead of the x-uid cookie")

	flagTailJournal  = flag.Bool("tail-journal", false, "print journal events instead of chatting")
	flagKafkaBrokers = flag.String("kafka-brokers", "127.0.0.1:9092", "comma separated kafka brokers")
	flagKafkaTopic   = flag.String("kafka-topic", "pairchat-events", "journal topic")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	if *flagTailJournal {
		err = tailJournal(ctx)
	} else {
		err = chat(ctx)
	}
	if err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func chat(ctx context.Context) error {
	if *flagUid == "" || *flagPeer == "" {
		return fmt.Errorf("--uid and --peer are required")
	}

	header := http.Header{}
	if *flagJwtSecret != "" {
		token, err := auth.NewTokenClient([]byte(*flagJwtSecret)).Issue(*flagUid, 24*time.Hour)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		header.Set("Authorization", "Bearer "+token)
	} else {
		header.Set("Cookie", auth.CookieName+"="+*flagUid)
	}

	conn := client.NewConn(*flagServer, header)

	printed := make(map[string]string) // token or id -> last rendered line
	render := make(chan struct{}, 1)
	cache := client.NewCache(*flagUid, conn, func(kind client.EventKind, peer string) {
		if peer != *flagPeer {
			return
		}
		select {
		case render <- struct{}{}:
		default:
		}
	})

	errC := make(chan error, 1)
	go func() { errC <- conn.Run(ctx, cache) }()

	go func() {
		for range render {
			for _, e := range cache.Messages(*flagPeer) {
				key := e.Token
				if key == "" {
					key = e.Message.Id
				}
				line := fmt.Sprintf("[%s] %s: %s", e.Message.Status, e.Message.From, e.Text)
				if e.Provisional {
					line += " (sending)"
				} else if e.Failed {
					line += " (failed)"
				}
				if printed[key] != line {
					printed[key] = line
					fmt.Println(line)
				}
			}
		}
	}()

	for !conn.Online() {
		select {
		case err := <-errC:
			return err
		case <-time.After(100 * time.Millisecond):
		}
	}
	if err := cache.OpenConversation(*flagPeer); err != nil {
		glog.Errorf("open conversation: %v", err)
	}

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case err := <-errC:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line = strings.TrimSpace(line); line == "" {
				continue
			}
			if _, err := cache.SendOptimistic(*flagPeer, line); err != nil {
				glog.Errorf("send: %v", err)
			}
		}
	}
}

// kafka-topics.sh --bootstrap-server localhost:9092 --topic pairchat-events --create
func tailJournal(ctx context.Context) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: strings.Split(*flagKafkaBrokers, ","),
		Topic:   *flagKafkaTopic,
		Dialer: &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
		},
	})
	defer r.Close()

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
		var e journal.Event
		if err := json.Unmarshal(m.Value, &e); err != nil {
			glog.Errorf("bad journal event at offset %d: %v", m.Offset, err)
			continue
		}
		fmt.Printf("%s %s %s -> %s status=%s\n", e.Type, e.Id, e.From, e.To, e.Status)
	}
}
