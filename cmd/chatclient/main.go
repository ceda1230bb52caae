package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/marketchat/internal/proto"
)

var (
	serverURL string
	name      string
	token     string
)

var rootCmd = &cobra.Command{
	Use:   "chatclient <market-id>",
	Short: "Join a market chat room from the terminal",
	Long: `Join a market chat room from the terminal.

Without --token a guest token is requested for --name.
Type messages and press Enter to send. Ctrl+C to exit.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&serverURL, "server", "http://localhost:8080", "marketchat server base URL")
	flags.StringVar(&name, "name", "cli-user", "display name for a guest token")
	flags.StringVar(&token, "token", "", "existing bearer token")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	marketID := args[0]

	baseCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	if token == "" {
		t, err := guestToken(ctx, serverURL, name)
		if err != nil {
			return err
		}
		token = t
	}

	wsURL, err := chatURL(serverURL, marketID, token)
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	fmt.Printf("Connected to market %s as %s\n", marketID, name)

	go func() {
		defer cancel()
		readLoop(ctx, conn, os.Stdout)
	}()

	writeLoop(ctx, conn, os.Stdin)
	return nil
}

func guestToken(ctx context.Context, base, displayName string) (string, error) {
	body, err := json.Marshal(map[string]string{"name": displayName})
	if err != nil {
		return "", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, strings.TrimRight(base, "/")+"/api/guest", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request guest token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request guest token: status %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode guest token: %w", err)
	}
	return out.Token, nil
}

func chatURL(base, marketID, tok string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws/markets/" + url.PathEscape(marketID)
	u.RawQuery = url.Values{"token": {tok}}.Encode()
	return u.String(), nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, out io.Writer) {
	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			fmt.Fprintf(os.Stderr, "read error: %v\n", err)
			return
		}

		if outbound.Type == proto.OutboundTypeError && outbound.Error != nil {
			fmt.Fprintf(out, "! %s: %s\n", outbound.Error.Code, outbound.Error.Msg)
			continue
		}

		var evt proto.EventMessage
		if err := json.Unmarshal(outbound.Data, &evt); err != nil {
			fmt.Fprintf(os.Stderr, "unmarshal message: %v\n", err)
			continue
		}
		ts := time.UnixMilli(evt.Timestamp).Format("15:04:05")
		fmt.Fprintf(out, "#%d %s %s: %s\n", evt.ID, ts, evt.Author, evt.Body)
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			payload, err := json.Marshal(proto.MsgData{Body: text})
			if err != nil {
				fmt.Fprintf(os.Stderr, "marshal msg: %v\n", err)
				return
			}
			if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMsg, Data: payload}); err != nil {
				fmt.Fprintf(os.Stderr, "send error: %v\n", err)
				return
			}
		}
	}
}
