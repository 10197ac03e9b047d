package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orchestra-mcp/relay/src/reconnect"
	"github.com/orchestra-mcp/relay/src/types"
)

func chatCmd() *cobra.Command {
	var (
		url   string
		token string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a relay from the terminal, reconnecting on drops",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("RELAY_TOKEN")
			}
			if token == "" {
				return errors.New("--token or RELAY_TOKEN is required")
			}
			out := cmd.OutOrStdout()
			logger := newLogger("warn", true)

			r := reconnect.New(&reconnect.WSDialer{URL: url, Token: token}, reconnect.Options{
				OnState: func(state reconnect.State, status string) {
					fmt.Fprintf(out, "[%s] %s\n", state, status)
				},
				OnMessage: func(raw []byte) { printFrame(out, raw) },
				Logger:    logger,
			})
			r.Connect(cmd.Context())
			defer r.Disconnect()

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					lines <- scanner.Text()
				}
			}()

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					if err := chatLine(cmd, r, strings.TrimSpace(line)); err != nil {
						fmt.Fprintln(out, err)
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:3333/ws", "relay WebSocket URL")
	cmd.Flags().StringVar(&token, "token", "", "bearer token (defaults to RELAY_TOKEN)")
	return cmd
}

// chatLine sends one input line. "/connect" retries after a failed
// reconnect and "/join room" or "/leave room" manage rooms.
func chatLine(cmd *cobra.Command, r *reconnect.Reconnector, line string) error {
	switch {
	case line == "":
		return nil
	case line == "/connect":
		r.Connect(cmd.Context())
		return nil
	case strings.HasPrefix(line, "/join "):
		return send(r, types.EventJoinRoom, types.JoinRoom{Room: strings.TrimPrefix(line, "/join ")})
	case strings.HasPrefix(line, "/leave "):
		return send(r, types.EventLeaveRoom, types.LeaveRoom{Room: strings.TrimPrefix(line, "/leave ")})
	default:
		return send(r, types.EventClientMessage, types.ClientMessage{Content: line})
	}
}

func send(r *reconnect.Reconnector, event string, data any) error {
	return r.Send(map[string]any{"event": event, "data": data})
}

func printFrame(out io.Writer, raw []byte) {
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		fmt.Fprintf(out, "? %s\n", raw)
		return
	}

	switch env.Event {
	case types.EventServerMessage:
		var msg types.ServerMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return
		}
		switch msg.Type {
		case types.SubtypeUserSync:
			fmt.Fprintf(out, "you (other device): %s\n", msg.Content)
		case types.SubtypeStart:
			fmt.Fprint(out, "ai: ")
		case types.SubtypeChunk:
			fmt.Fprint(out, msg.Content)
		case types.SubtypeDone:
			fmt.Fprintln(out)
		}
	case types.EventError:
		var e types.Error
		_ = json.Unmarshal(env.Data, &e)
		fmt.Fprintf(out, "error: %s\n", e.Message)
	default:
		fmt.Fprintf(out, "%s %s\n", env.Event, env.Data)
	}
}
