package main

import (
	"context"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	sloggger "github.com/minefleet/afkconsole/cmd/afkconsole/log"
	"github.com/minefleet/afkconsole/internal/bot"
	"github.com/minefleet/afkconsole/internal/config"
	"github.com/minefleet/afkconsole/internal/event"
	"github.com/minefleet/afkconsole/internal/minecraft"
	"github.com/minefleet/afkconsole/internal/remote/discord"
	ngrokremote "github.com/minefleet/afkconsole/internal/remote/ngrok"
	"github.com/minefleet/afkconsole/internal/remote/telegram"
	"github.com/minefleet/afkconsole/internal/server"
	"github.com/minefleet/afkconsole/internal/store"
	"golang.org/x/sync/errgroup"
)

// wrapWithRecover wraps a function with panic recovery logic
func wrapWithRecover(logger *slog.Logger, f func() error) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				stackTrace := debug.Stack()
				errMsg := fmt.Sprintf("panic recovered: %v\nStacktrace: %s", r, stackTrace)
				logger.Error(errMsg)
				sloggger.FlushLog()
			}
		}()
		return f()
	}
}

func main() {
	err := config.Load()
	if err != nil {
		stdlog.Fatalf("Error loading configuration: %s", err.Error())
	}

	logger, err := sloggger.NewLogger(config.Console.Debug.Log, config.Console.LogSaveDirectory, "")
	if err != nil {
		stdlog.Fatalf("Error starting logger: %s", err.Error())
	}
	defer sloggger.FlushAndClose()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	eventListener := event.NewListener(logger)

	st, err := store.New(config.Console.DataDirectory, logger)
	if err != nil {
		stdlog.Fatalf("Error opening data directory: %s", err.Error())
	}
	eventListener.Register(st.HandleEvent)

	stagger := time.Duration(config.Console.ConnectAllStaggerSeconds) * time.Second
	manager := bot.NewManager(logger, st, eventListener, minecraft.DefaultDialer, stagger)

	gateway := server.NewGateway(logger, manager, st, eventListener)
	srv := server.New(logger, st, gateway)
	eventListener.Register(srv.HandleEvent)

	var ngrokTunnel *ngrokremote.Tunnel
	if config.Console.Ngrok.Enabled {
		if config.Console.Ngrok.Authtoken == "" && os.Getenv("NGROK_AUTHTOKEN") == "" {
			logger.Warn("ngrok enabled but no authtoken set; skipping tunnel start")
		} else {
			opts := ngrokremote.Options{
				LocalAddr:     fmt.Sprintf("http://localhost:%d", config.Console.HTTPPort),
				Authtoken:     config.Console.Ngrok.Authtoken,
				Region:        config.Console.Ngrok.Region,
				Domain:        config.Console.Ngrok.Domain,
				BasicAuthUser: config.Console.Ngrok.BasicAuthUser,
				BasicAuthPass: config.Console.Ngrok.BasicAuthPass,
			}
			tunnel, err := ngrokremote.Start(ctx, opts)
			if err != nil {
				logger.Error("ngrok tunnel failed to start", slog.Any("error", err))
			} else {
				logger.Info("ngrok tunnel established", slog.String("url", tunnel.URL()))
			}
			ngrokTunnel = tunnel
		}
	}

	if config.Console.Discord.Enabled {
		discordBot, err := discord.NewBot(config.Console.Discord.Token, config.Console.Discord.ChannelID, manager)
		if err != nil {
			logger.Error("Discord could not been initialized", slog.Any("error", err))
			return
		}

		eventListener.Register(discordBot.Handle)
		g.Go(wrapWithRecover(logger, func() error {
			return discordBot.Start(ctx)
		}))
	}

	if config.Console.Telegram.Enabled {
		telegramBot, err := telegram.NewBot(config.Console.Telegram.Token, config.Console.Telegram.ChatID, manager, logger)
		if err != nil {
			logger.Error("Telegram could not been initialized", slog.Any("error", err))
			return
		}

		eventListener.Register(telegramBot.Handle)
		g.Go(wrapWithRecover(logger, func() error {
			defer telegramBot.Close()
			return telegramBot.Start(ctx)
		}))
	}

	g.Go(wrapWithRecover(logger, func() error {
		defer cancel()
		return srv.Listen(config.Console.HTTPPort)
	}))

	g.Go(wrapWithRecover(logger, func() error {
		defer cancel()
		return eventListener.Listen(ctx)
	}))

	g.Go(wrapWithRecover(logger, func() error {
		<-ctx.Done()
		logger.Info("AFK console shutting down...")
		manager.StopAll()
		if err := srv.Stop(); err != nil {
			logger.Error("error stopping local server", slog.Any("error", err))
		}
		if ngrokTunnel != nil {
			if closeErr := ngrokTunnel.Close(); closeErr != nil {
				logger.Error("error stopping ngrok tunnel", slog.Any("error", closeErr))
			}
		}
		return nil
	}))

	if err := g.Wait(); err != nil {
		logger.Error("Error running AFK console", slog.Any("error", err))
	}

	sloggger.FlushAndClose()
}
