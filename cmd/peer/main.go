package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/lk2023060901/relaychat-go/application"
	"github.com/lk2023060901/relaychat-go/internal/peer"
	"github.com/lk2023060901/relaychat-go/pkg/log"
	"github.com/lk2023060901/relaychat-go/pkg/util/conc"
	"github.com/lk2023060901/relaychat-go/pkg/util/merr"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "peer: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	// 交互式客户端默认只输出告警日志，避免干扰终端。
	app := application.New("peer", application.WithDefaults(map[string]any{
		"log.level": "warn",
	}))
	flags := app.Flags()
	flags.String("host", "", "relay host")
	flags.Int("port", 0, "relay port")
	flags.Bool("reconnect", false, "reconnect automatically after the connection is lost")

	if err := app.Run(args); err != nil {
		return err
	}
	for key, name := range map[string]string{
		"peer.host":              "host",
		"peer.port":              "port",
		"peer.reconnect.enabled": "reconnect",
	} {
		if err := app.Config().BindPFlag(key, flags.Lookup(name)); err != nil {
			return err
		}
	}
	cfg, err := app.PeerConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ui := newConsole(out)
	client := peer.NewClient(peer.Options{
		Host:        cfg.Host,
		Port:        cfg.Port,
		MaxLineSize: cfg.MaxLineBytes,
		Reconnect:   cfg.Reconnect.Enabled,
		Policy: peer.ReconnectPolicy{
			InitialInterval: cfg.Reconnect.InitialInterval,
			MaxInterval:     cfg.Reconnect.MaxInterval,
			MaxElapsedTime:  cfg.Reconnect.MaxElapsedTime,
		},
	}, ui)
	defer client.Close()

	ctx, stop := app.SignalContext(context.Background())
	defer stop()

	// 连接失败已通过事件展示，这里只记录日志。
	if _, err := client.Connect(ctx).Await(); err != nil {
		log.Debug("initial connect failed", zap.Error(err))
	}

	lines := readLines(in)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, client, ui, line); quit {
				return nil
			}
		}
	}
}

// readLines 在独立协程中读取标准输入，输入结束后关闭通道。
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	conc.Go(func() (struct{}, error) {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		return struct{}{}, scanner.Err()
	})
	return lines
}

// handleLine 处理一行输入，返回 true 表示退出。
func handleLine(ctx context.Context, client *peer.Client, ui *console, raw string) bool {
	line := strings.TrimRight(raw, "\r\n")
	switch line {
	case "":
		return false
	case "/quit":
		return true
	case "/disconnect":
		client.Disconnect()
		return false
	case "/reconnect":
		if _, err := client.Reconnect(ctx).Await(); err != nil {
			log.Debug("reconnect failed", zap.Error(err))
		}
		return false
	}

	_, err := client.Send(line).Await()
	if err == nil {
		ui.Printf("Me: %s", line)
		return false
	}
	switch {
	case errors.Is(err, merr.ErrConnectorState):
		ui.Printf("Not connected")
	case errors.Is(err, merr.ErrSendFailed):
		// 已由 SendFailed 事件展示
	default:
		ui.Printf("Failed to send message: %v", err)
	}
	return false
}
