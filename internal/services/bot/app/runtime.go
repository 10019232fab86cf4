package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	platformgrpc "github.com/louisbranch/oilandrope/internal/platform/grpc"
	"github.com/louisbranch/oilandrope/internal/platform/telemetry/metrics"
	"github.com/louisbranch/oilandrope/internal/platform/timeouts"
	"github.com/louisbranch/oilandrope/internal/random"
	"github.com/louisbranch/oilandrope/internal/storage/sqlite"
)

const healthService = "bot.gateway"

// RuntimeConfig controls the bot process.
type RuntimeConfig struct {
	Token       string
	DBPath      string
	HealthAddr  string
	MetricsAddr string
	Bot         Config
}

const settingsPreface = "Error loading bot variables."

func (cfg RuntimeConfig) validate() error {
	if strings.TrimSpace(cfg.Token) == "" {
		return &apperrors.HelpfulError{
			Preface:  settingsPreface,
			Issue:    "The bot token is required but was not set.",
			Solution: "Set OILANDROPE_BOT_TOKEN to the token of your Discord application.",
		}
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return &apperrors.HelpfulError{
			Preface:  settingsPreface,
			Issue:    "The database path is required but was empty.",
			Solution: "Set OILANDROPE_DB_PATH or pass -db-path.",
		}
	}
	return nil
}

// Run opens the Discord gateway session and serves events until ctx ends or
// an owner issues the shutdown command.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("bot: close sqlite store: %v", closeErr)
		}
	}()

	session, err := discordgo.New("Bot " + strings.TrimSpace(cfg.Token))
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	session.Client = &http.Client{Timeout: timeouts.DiscordRequest}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := metrics.New()
	bot, err := New(cfg.Bot, Deps{
		Store:     store,
		Messenger: &gateway{session: session},
		Metrics:   m,
		Seed:      random.NewSeed,
	}, cancel)
	if err != nil {
		return fmt.Errorf("init bot: %w", err)
	}

	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			log.Printf("bot: connected as %s", r.User.Username)
		}
	})
	session.AddHandler(func(_ *discordgo.Session, event *discordgo.MessageCreate) {
		msg, ok := messageFromEvent(event)
		if !ok {
			return
		}
		if err := bot.HandleMessage(runCtx, msg); err != nil {
			log.Printf("bot: handle message %s: %v", msg.ID, err)
		}
	})
	session.AddHandler(func(_ *discordgo.Session, event *discordgo.GuildCreate) {
		guild, ok := guildFromEvent(event)
		if !ok {
			return
		}
		if err := bot.HandleGuildCreate(runCtx, guild); err != nil {
			log.Printf("bot: handle guild %s: %v", guild.Server.ID, err)
		}
	})

	if addr := strings.TrimSpace(cfg.HealthAddr); addr != "" {
		health, err := platformgrpc.NewHealthServer(addr)
		if err != nil {
			return err
		}
		go func() {
			if err := health.Serve(runCtx); err != nil {
				log.Printf("bot: health server: %v", err)
			}
		}()
		defer health.SetServing(healthService, false)
		health.SetServing("", true)
		health.SetServing(healthService, true)
		log.Printf("bot: health listening at %s", health.Addr())
	}
	if addr := strings.TrimSpace(cfg.MetricsAddr); addr != "" {
		metricsServer := &http.Server{
			Addr:              addr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: timeouts.ReadHeader,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("bot: metrics server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
			defer shutdownCancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	if err := session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Printf("bot: close discord session: %v", closeErr)
		}
	}()

	<-runCtx.Done()
	log.Printf("bot: stopping")
	return nil
}
