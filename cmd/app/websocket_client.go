// Command app tails the live audit stream of the tenant API.
//
//	go run ./cmd/app -tenant acme <JWT_TOKEN>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kingrain94/tenant-platform/internal/domain"
)

func main() {
	addr := flag.String("addr", "localhost:10000", "API address")
	tenant := flag.String("tenant", "", "Tenant slug sent as X-Tenant-Slug; empty streams platform scope")
	raw := flag.Bool("raw", false, "Print frames as received instead of one line per event")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("Usage: go run ./cmd/app [-addr host:port] [-tenant slug] [-raw] <JWT_TOKEN>")
	}

	endpoint := url.URL{Scheme: "ws", Host: *addr, Path: "/api/v1/audit/stream"}
	header := http.Header{"Authorization": {"Bearer " + flag.Arg(0)}}
	if *tenant != "" {
		header.Set("X-Tenant-Slug", *tenant)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), header)
	if err != nil {
		if resp != nil {
			log.Fatalf("Stream refused with %s: %v", resp.Status, err)
		}
		log.Fatalf("Failed to connect to %s: %v", endpoint.String(), err)
	}
	defer conn.Close()

	fmt.Printf("Streaming audit events from %s\n", endpoint.String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Println("Read error:", err)
				}
				return
			}
			printFrame(frame, *raw)
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second)); err != nil {
			log.Println("Write close:", err)
			return
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func printFrame(frame []byte, raw bool) {
	var event domain.AuditEvent
	if raw || json.Unmarshal(frame, &event) != nil {
		fmt.Println(string(frame))
		return
	}
	scope := event.TenantSlug
	if scope == "" {
		scope = "platform"
	}
	line := fmt.Sprintf("%s %-10s %-24s %-8s principal=%s",
		event.Timestamp.Format(time.RFC3339), scope, event.Action, event.Outcome, event.PrincipalID)
	if event.ErrorCode != "" {
		line += " error=" + event.ErrorCode
	}
	fmt.Println(line)
}
