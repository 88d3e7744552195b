package modules

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"

	"github.com/memohai/stowbot/internal/config"
	"github.com/memohai/stowbot/internal/pipeline"
	"github.com/memohai/stowbot/internal/quota"
	"github.com/memohai/stowbot/internal/telegram"
	"github.com/memohai/stowbot/internal/users"
)

var TelegramModule = fx.Module(
	"telegram",
	fx.Provide(
		provideTelegramConfig,
		provideBotAPI,
		telegram.NewFileFetcherFor,
		provideBot,
	),
	fx.Invoke(startBot),
)

func provideTelegramConfig(cfg config.Config) telegram.Config {
	return telegram.Config{
		Token:       cfg.Telegram.BotToken,
		APIEndpoint: cfg.Telegram.APIEndpoint,
		AdminChatID: cfg.Telegram.AdminChatID,
		PollTimeout: cfg.Telegram.PollTimeout,
	}
}

func provideBotAPI(log *slog.Logger, cfg telegram.Config) (*tgbotapi.BotAPI, error) {
	return telegram.NewAPI(log, cfg)
}

func provideBot(log *slog.Logger, api *tgbotapi.BotAPI, cfg telegram.Config, p *pipeline.Service, identities *users.Service, guard *quota.Guard) *telegram.Bot {
	bot := telegram.NewBot(log, api, cfg, p, identities, guard)
	identities.OnPrivilegeChanged(bot)
	return bot
}

func startBot(lc fx.Lifecycle, log *slog.Logger, api *tgbotapi.BotAPI, bot *telegram.Bot) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("telegram bot authorized", slog.String("username", api.Self.UserName))
			go func() {
				defer close(done)
				bot.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
