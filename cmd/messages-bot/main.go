package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ysatyn/messages-bot/internal/config"
	"github.com/ysatyn/messages-bot/internal/flow"
	"github.com/ysatyn/messages-bot/internal/http_api"
	"github.com/ysatyn/messages-bot/internal/repository"
	"github.com/ysatyn/messages-bot/internal/session"
	"github.com/ysatyn/messages-bot/internal/telegram"
	"github.com/ysatyn/messages-bot/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "messages-bot",
		Usage: "Telegram bot for leaving private notes behind referral links",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.StringFlag{Name: "telegram-token", Aliases: []string{"T"}, Usage: "Telegram bot token"},
			&cli.StringFlag{Name: "bot-username", Aliases: []string{"b"}, Usage: "Bot username used in referral links"},
			&cli.Int64Flag{Name: "admin-id", Aliases: []string{"a"}, Usage: "Administrator Telegram id"},
			&cli.IntFlag{Name: "credit-cost", Aliases: []string{"c"}, Usage: "Price of one read cancel, in stars"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("telegram-token") {
		cfg.TelegramToken = c.String("telegram-token")
	}
	if c.IsSet("bot-username") {
		cfg.BotUsername = c.String("bot-username")
	}
	if c.IsSet("admin-id") {
		cfg.AdminID = c.Int64("admin-id")
	}
	if c.IsSet("credit-cost") {
		cfg.CreditCost = c.Int("credit-cost")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	// Make sure the singleton panel exists and refresh its restart time
	if err := db.EnsurePanel(cfg.AdminID); err != nil {
		return fmt.Errorf("failed to initialize panel: %v", err)
	}

	// Initialize session store and the conversation flow
	sessions := session.NewMemoryManager()
	flowService := flow.NewService(db, sessions, log, cfg)

	// Initialize Telegram bot
	tgBot, err := telegram.NewBot(log, cfg.TelegramToken, flowService)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram bot: %v", err)
	}

	// Initialize API server
	apiServer := http_api.NewHTTPServer(flowService, cfg.APIPort, log)

	go apiServer.Start()
	// Start the bot (blocks until the context is cancelled)
	tgBot.Start(context.Background())

	return nil
}
