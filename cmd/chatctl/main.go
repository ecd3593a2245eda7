// Command chatctl is a command line client for the chatbot platform.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mpadronm90/simple-chatbot-platform/internal/auth"
	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

func main() {
	app := &cli.App{
		Name:  "chatctl",
		Usage: "talk to a chatbot platform server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Value:   "http://localhost:8080",
				Usage:   "platform base URL",
				EnvVars: []string{"CHATCTL_API_URL"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "bearer token identifying the caller",
				EnvVars: []string{"CHATCTL_TOKEN"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "token",
				Usage: "sign an access token with the server's JWT secret",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "secret", Usage: "JWT secret", EnvVars: []string{"JWT_SECRET"}, Required: true},
					&cli.StringFlag{Name: "uid", Usage: "user id", Required: true},
					&cli.StringFlag{Name: "email", Usage: "email address"},
					&cli.BoolFlag{Name: "admin", Usage: "issue an admin token"},
					&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime"},
				},
				Action: issueToken,
			},
			{
				Name:      "dispatch",
				Usage:     "send one facade request",
				ArgsUsage: "ACTION [DATA_JSON]",
				Action:    dispatch,
			},
			{
				Name:  "run",
				Usage: "run an assistant on a thread",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "thread", Usage: "thread id", Required: true},
					&cli.StringFlag{Name: "assistant", Usage: "assistant id", Required: true},
					&cli.StringFlag{Name: "content", Usage: "user message to append before the run"},
					&cli.BoolFlag{Name: "stream", Usage: "print the reply as it is generated"},
				},
				Action: run,
			},
			{
				Name:  "watch",
				Usage: "print a thread's messages whenever they change",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "thread", Usage: "thread id", Required: true},
				},
				Action: watch,
			},
			{
				Name:  "chat",
				Usage: "chat interactively with a chatbot",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "chatbot", Usage: "chatbot id", Required: true},
				},
				Action: chat,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newClient(c *cli.Context) *Client {
	return NewClient(c.String("api-url"), c.String("token"))
}

func issueToken(c *cli.Context) error {
	token, err := auth.NewTokenService(c.String("secret")).Issue(domain.Identity{
		UID:   c.String("uid"),
		Email: c.String("email"),
		Admin: c.Bool("admin"),
	}, c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func dispatch(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("ACTION is required", 2)
	}
	action := domain.Action(strings.ToUpper(c.Args().Get(0)))
	data := json.RawMessage(`{}`)
	if c.NArg() > 1 {
		data = json.RawMessage(c.Args().Get(1))
		if !json.Valid(data) {
			return cli.Exit("DATA_JSON is not valid JSON", 2)
		}
	}

	out, err := newClient(c).Dispatch(c.Context, action, data)
	if err != nil {
		return err
	}
	printJSON(out)
	return nil
}

func run(c *cli.Context) error {
	req := domain.RunAssistantRequest{
		ThreadID:    c.String("thread"),
		AssistantID: c.String("assistant"),
		Content:     c.String("content"),
	}
	client := newClient(c)

	if c.Bool("stream") {
		if err := client.StreamRun(c.Context, req, os.Stdout); err != nil {
			return err
		}
		fmt.Println()
		return nil
	}

	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	out, err := client.Dispatch(c.Context, domain.ActionRunAssistant, data)
	if err != nil {
		return err
	}
	printJSON(out)
	return nil
}

func watch(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	return newClient(c).Watch(ctx, c.String("thread"), func(msgs []domain.Message) {
		fmt.Printf("\n--- %d messages ---\n", len(msgs))
		for _, m := range msgs {
			fmt.Printf("[%s] %s\n", m.Role, m.Content)
		}
	})
}

// chat selects the caller's thread on a chatbot and streams a reply for every line typed.
func chat(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	client := newClient(c)
	thread, chatbot, err := client.SelectThread(ctx, c.String("chatbot"))
	if err != nil {
		return err
	}

	fmt.Printf("Chatting with %s on thread %s\n", chatbot.Name, thread.ID)
	fmt.Println("Type a message and press Enter to send. /quit to exit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/quit" {
			fmt.Println("Bye!")
			return nil
		}

		err := client.StreamRun(ctx, domain.RunAssistantRequest{
			ThreadID:    thread.ID,
			AssistantID: chatbot.AgentID,
			Content:     input,
		}, os.Stdout)
		fmt.Println()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			log.Printf("Run failed: %v", err)
		}
	}
}

func printJSON(raw []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(buf.String())
}
