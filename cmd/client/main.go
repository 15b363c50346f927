package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-window/internal/chat"
	"chat-window/internal/config"
	"chat-window/internal/logging"
	"chat-window/internal/transport"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serverURL  string
	authorName string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "chat-client",
	Short: "Terminal chat window",
	Long: `chat-client connects to a chat server over a websocket and shows the
confirmed message history with reactions.

Type a line to send it. Commands:
  /react <id> <emoji>   toggle a reaction
  /list                 reprint the history
  /counts <id>          show reaction counts for a message
  /quit                 leave`,
	SilenceUsage: true,
	RunE:         runChat,
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "url", "", "websocket URL of the chat server (default $CHAT_SERVER_URL)")
	rootCmd.Flags().StringVarP(&authorName, "name", "n", "", "display name (default $CHAT_AUTHOR_NAME)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if authorName != "" {
		cfg.AuthorName = authorName
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	} else if os.Getenv("LOG_LEVEL") == "" {
		// keep the terminal for the conversation
		level = "warn"
	}

	logger, err := logging.New(cfg.Env, level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := newPrinter(cmd.OutOrStdout(), time.Local)
	client := transport.NewClient(logger)
	state := chat.New(client,
		chat.WithLogger(logger),
		chat.WithAuthorName(cfg.AuthorName),
		chat.WithObserver(out.observe),
	)
	out.state = state

	if err := state.Start(); err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(dialCtx, cfg.ServerURL, state); err != nil {
		return err
	}
	defer client.Close()

	logger.Debug("session started", zap.String("session", state.ID()), zap.String("author", cfg.AuthorName))
	fmt.Fprintf(cmd.OutOrStdout(), "connected to %s as %s, /quit to leave\n", cfg.ServerURL, cfg.AuthorName)

	r := &repl{state: state, out: out}
	return r.run(ctx, cmd.InOrStdin(), client.Done())
}
