package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vmalykh/goalboard/internal/api"
	"github.com/vmalykh/goalboard/internal/bot"
	"github.com/vmalykh/goalboard/internal/config"
	"github.com/vmalykh/goalboard/internal/db"
	"github.com/vmalykh/goalboard/internal/tg"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "goalboard",
	Short: "Goal tracking backend with a Telegram bot",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and the bot, when a token is configured)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mux := http.NewServeMux()
		api.New(store).Register(mux)
		srv := &http.Server{Addr: cfg.Addr, Handler: mux}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Printf("goalboard API listening on %s", cfg.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if cfg.BotToken != "" {
			g.Go(func() error {
				return runBot(ctx, cfg, store)
			})
		} else {
			log.Printf("no bot token configured, running API only")
		}

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

var runbotCmd = &cobra.Command{
	Use:   "runbot",
	Short: "Run only the Telegram bot poll loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := setup()
		if err != nil {
			return err
		}
		defer store.Close()

		if cfg.BotToken == "" {
			return fmt.Errorf("bot token required (config bot_token or GOALBOARD_BOT_TOKEN)")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runBot(ctx, cfg, store); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func setup() (config.Config, *db.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, store, nil
}

func runBot(ctx context.Context, cfg config.Config, store *db.Store) error {
	log.Printf("bot polling started")
	b := bot.New(tg.New(cfg.BotToken), store, bot.NewMemorySessionStore())
	if cfg.PollTimeout > 0 {
		b.SetPollTimeout(time.Duration(cfg.PollTimeout) * time.Second)
	}
	return b.Run(ctx)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to config file")
	rootCmd.AddCommand(serveCmd, runbotCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
