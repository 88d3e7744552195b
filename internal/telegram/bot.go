// Package telegram is the chat front end: it turns Telegram updates into
// pipeline requests and renders offers, progress and results back to users.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/stowbot/internal/finalize"
	"github.com/memohai/stowbot/internal/pipeline"
	"github.com/memohai/stowbot/internal/transfer"
	"github.com/memohai/stowbot/internal/users"
)

// Client is the subset of *tgbotapi.BotAPI the bot uses.
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Pipeline is the download pipeline as the bot drives it.
type Pipeline interface {
	Submit(ctx context.Context, in pipeline.SubmitInput) (pipeline.Offer, error)
	Start(ctx context.Context, sessionID string, choice pipeline.Choice) (finalize.Outcome, error)
	Cancel(sessionID string) bool
	Pending(sessionID string) (transfer.Request, bool)
}

// Identities is the identity store as the bot uses it.
type Identities interface {
	GetOrCreate(ctx context.Context, p users.Profile) (users.Identity, error)
	Get(ctx context.Context, key string) (users.Identity, error)
	RequestPrivilege(ctx context.Context, key string) (users.Identity, error)
}

// Ceilings reports the single-transfer cap of an identity.
type Ceilings interface {
	Ceiling(identity users.Identity) int64
}

// Config configures the bot connection.
type Config struct {
	Token       string
	APIEndpoint string
	AdminChatID int64
	PollTimeout int
}

// NewAPI connects to the Bot API, or to a local Bot API server when
// cfg.APIEndpoint is set.
func NewAPI(log *slog.Logger, cfg Config) (*tgbotapi.BotAPI, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram bot token is required")
	}
	_ = tgbotapi.SetLogger(&slogBotLogger{log: log.With(slog.String("adapter", "telegram"))})
	if endpoint := strings.TrimSpace(cfg.APIEndpoint); endpoint != "" {
		return tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	}
	return tgbotapi.NewBotAPI(cfg.Token)
}

// NewFileFetcherFor builds the document fetcher matching api's endpoint.
func NewFileFetcherFor(api *tgbotapi.BotAPI, cfg Config) *FileFetcher {
	return NewFileFetcher(api, cfg.Token, fileEndpointFor(cfg.APIEndpoint))
}

type Bot struct {
	client      Client
	pipeline    Pipeline
	identities  Identities
	ceilings    Ceilings
	adminChatID int64
	pollTimeout int
	now         func() time.Time
	logger      *slog.Logger

	wg sync.WaitGroup
}

var _ users.PrivilegeListener = (*Bot)(nil)

func NewBot(log *slog.Logger, client Client, cfg Config, p Pipeline, identities Identities, ceilings Ceilings) *Bot {
	if log == nil {
		log = slog.Default()
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30
	}
	return &Bot{
		client:      client,
		pipeline:    p,
		identities:  identities,
		ceilings:    ceilings,
		adminChatID: cfg.AdminChatID,
		pollTimeout: cfg.PollTimeout,
		now:         time.Now,
		logger:      log.With(slog.String("adapter", "telegram")),
	}
}

// Run consumes updates until ctx is done, handling each in its own goroutine,
// then waits for in-progress handlers.
func (b *Bot) Run(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.pollTimeout
	updateConfig.AllowedUpdates = []string{"message", "callback_query"}
	updates := b.client.GetUpdatesChan(updateConfig)

	b.logger.Info("start")
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("stop")
			b.client.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				b.logger.Info("updates channel closed")
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("update handler panicked", slog.Int("update_id", update.UpdateID), slog.Any("panic", r))
		}
	}()
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func profileOf(u *tgbotapi.User) users.Profile {
	return users.Profile{
		Key:       strconv.FormatInt(u.ID, 10),
		Username:  strings.TrimSpace(u.UserName),
		FirstName: strings.TrimSpace(u.FirstName),
		LastName:  strings.TrimSpace(u.LastName),
	}
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// extractURL returns the first link in msg, preferring text links.
func extractURL(msg *tgbotapi.Message) string {
	for _, entities := range [][]tgbotapi.MessageEntity{msg.Entities, msg.CaptionEntities} {
		for _, e := range entities {
			if e.Type == "text_link" && e.URL != "" {
				return e.URL
			}
		}
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	return urlPattern.FindString(text)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	profile := profileOf(msg.From)
	b.logger.Info("inbound received",
		slog.Int64("chat_id", msg.Chat.ID),
		slog.String("user_id", profile.Key),
		slog.String("username", profile.Username),
	)

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, profile)
		return
	}
	if msg.Document != nil {
		b.handleDocument(ctx, msg, profile)
		return
	}
	if url := extractURL(msg); url != "" {
		b.handleLink(ctx, msg, profile, url)
		return
	}
	b.reply(msg, "Send me a file or a video link. Use /help for details.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, profile users.Profile) {
	switch msg.Command() {
	case "start":
		if _, err := b.identities.GetOrCreate(ctx, profile); err != nil {
			b.logger.Error("register identity failed", slog.String("user_id", profile.Key), slog.Any("error", err))
		}
		b.reply(msg, startText)
	case "help":
		b.reply(msg, helpText)
	case "quota":
		identity, err := b.identities.GetOrCreate(ctx, profile)
		if err != nil {
			b.logger.Error("load identity failed", slog.String("user_id", profile.Key), slog.Any("error", err))
			b.reply(msg, "❌ Could not load your quota. Please try again later.")
			return
		}
		b.reply(msg, quotaText(identity, b.ceilings.Ceiling(identity)))
	case "premium":
		b.handlePremium(ctx, msg, profile)
	default:
		b.reply(msg, helpText)
	}
}

func (b *Bot) handlePremium(ctx context.Context, msg *tgbotapi.Message, profile users.Profile) {
	if _, err := b.identities.GetOrCreate(ctx, profile); err != nil {
		b.logger.Error("load identity failed", slog.String("user_id", profile.Key), slog.Any("error", err))
		b.reply(msg, "❌ Sorry, there was an error processing your request.\n\nPlease try again later.")
		return
	}
	identity, err := b.identities.RequestPrivilege(ctx, profile.Key)
	switch {
	case errors.Is(err, users.ErrAlreadyPrivileged):
		b.reply(msg, "✅ You already have premium access!\n\nEnjoy your increased download limits.")
		return
	case errors.Is(err, users.ErrAlreadyRequested):
		b.reply(msg, "⏳ You have already sent a premium request!\n\nPlease wait for administrator approval.")
		return
	case err != nil:
		b.logger.Error("premium request failed", slog.String("user_id", profile.Key), slog.Any("error", err))
		b.reply(msg, "❌ Sorry, there was an error processing your request.\n\nPlease try again later.")
		return
	}
	b.reply(msg, "✅ Your request has been forwarded to administrators.\nYou will be notified when it is reviewed.")

	if b.adminChatID == 0 {
		return
	}
	if _, err := b.send(b.adminChatID, premiumRequestText(identity, b.now()), nil); err != nil {
		b.logger.Error("notify admin failed", slog.String("user_id", profile.Key), slog.Any("error", err))
		return
	}
	b.logger.Info("premium request forwarded", slog.String("user_id", profile.Key))
}

func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message, profile users.Profile) {
	status, err := b.reply(msg, "📥 Preparing to download...")
	if err != nil {
		return
	}
	doc := msg.Document
	src := transfer.DirectSource{
		FileID: doc.FileID,
		Name:   doc.FileName,
		Mime:   doc.MimeType,
		Size:   int64(doc.FileSize),
	}
	offer, err := b.pipeline.Submit(ctx, pipeline.SubmitInput{Profile: profile, Source: src})
	if err != nil {
		b.showFailure(ctx, status, profile.Key, err)
		return
	}
	markup := directOfferKeyboard(offer.SessionID)
	b.edit(status.Chat.ID, status.MessageID, directOfferText(src, offer.Identity), &markup)
}

func (b *Bot) handleLink(ctx context.Context, msg *tgbotapi.Message, profile users.Profile, url string) {
	status, err := b.reply(msg, "🔍 Analyzing video...")
	if err != nil {
		return
	}
	offer, err := b.pipeline.Submit(ctx, pipeline.SubmitInput{
		Profile: profile,
		Source:  transfer.RemoteSource{URL: url},
	})
	if err != nil {
		b.showFailure(ctx, status, profile.Key, err)
		return
	}
	src, ok := offer.Request.Source.(transfer.RemoteSource)
	if !ok {
		b.pipeline.Cancel(offer.SessionID)
		return
	}
	markup := remoteOfferKeyboard(offer.SessionID, offer.Selection)
	b.edit(status.Chat.ID, status.MessageID, remoteOfferText(src, offer.Identity), &markup)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		return
	}
	cb, ok := parseCallback(cq.Data)
	if !ok {
		b.logger.Warn("invalid callback data", slog.String("data", cq.Data))
		b.answer(cq, "❌ Invalid request format.", true)
		return
	}
	req, ok := b.pipeline.Pending(cb.sessionID)
	if !ok {
		b.answer(cq, "❌ Session expired. Please try again.", true)
		return
	}
	key := strconv.FormatInt(cq.From.ID, 10)
	if req.IdentityKey != key {
		b.answer(cq, "❌ This request belongs to someone else.", true)
		return
	}

	chatID, messageID := cq.Message.Chat.ID, cq.Message.MessageID
	if cb.action == actionCancel {
		b.pipeline.Cancel(cb.sessionID)
		b.answer(cq, "❌ Download cancelled.", false)
		b.edit(chatID, messageID, "❌ <b>Download cancelled</b>\n\nYou can send another file or link to try again.", nil)
		return
	}
	b.answer(cq, "", false)

	name := req.Source.DisplayName()
	rep := &progressReporter{bot: b, chatID: chatID, messageID: messageID, name: name}
	b.edit(chatID, messageID, progressText(name, pipeline.Event{State: pipeline.StateStaging}), nil)

	out, err := b.pipeline.Start(pipeline.WithReporter(ctx, rep), cb.sessionID, cb.choice())
	if errors.Is(err, pipeline.ErrSessionNotFound) {
		// a repeated tap lost the race for the session
		return
	}
	if err != nil {
		b.showFailure(ctx, &tgbotapi.Message{MessageID: messageID, Chat: cq.Message.Chat}, key, err)
		return
	}
	b.edit(chatID, messageID, outcomeText(out), nil)
}

// PrivilegeChanged tells the user their account class changed.
func (b *Bot) PrivilegeChanged(_ context.Context, identity users.Identity) {
	chatID, err := strconv.ParseInt(identity.Key, 10, 64)
	if err != nil {
		b.logger.Warn("identity key is not a chat id", slog.String("key", identity.Key))
		return
	}
	if _, err := b.send(chatID, privilegeChangedText(identity), nil); err != nil {
		b.logger.Error("notify privilege change failed", slog.String("key", identity.Key), slog.Any("error", err))
	}
}

func (b *Bot) showFailure(ctx context.Context, status *tgbotapi.Message, key string, err error) {
	identity, gerr := b.identities.Get(ctx, key)
	if gerr != nil {
		identity = users.Identity{Key: key}
	}
	f := finalize.Describe(err, identity)
	if f.Kind == transfer.KindStorageFailed {
		b.logger.Error("request failed", slog.String("user_id", key), slog.Any("error", err))
	}
	b.edit(status.Chat.ID, status.MessageID, failureText(f), nil)
}

type progressReporter struct {
	bot       *Bot
	chatID    int64
	messageID int
	name      string
	last      string
}

func (r *progressReporter) Transition(_ context.Context, ev pipeline.Event) {
	text := progressText(r.name, ev)
	if text == "" || text == r.last {
		return
	}
	r.last = text
	r.bot.edit(r.chatID, r.messageID, text, nil)
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) (*tgbotapi.Message, error) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyToMessageID = msg.MessageID
	sent, err := b.client.Send(out)
	if err != nil {
		b.logger.Error("send message failed", slog.Int64("chat_id", msg.Chat.ID), slog.Any("error", err))
		return nil, err
	}
	return &sent, nil
}

func (b *Bot) send(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	out := tgbotapi.NewMessage(chatID, text)
	out.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		out.ReplyMarkup = *markup
	}
	return b.client.Send(out)
}

func (b *Bot) edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	cfg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	cfg.ParseMode = tgbotapi.ModeHTML
	cfg.DisableWebPagePreview = true
	cfg.ReplyMarkup = markup
	if _, err := b.client.Request(cfg); err != nil {
		b.logger.Warn("edit message failed", slog.Int64("chat_id", chatID), slog.Int("message_id", messageID), slog.Any("error", err))
	}
}

func (b *Bot) answer(cq *tgbotapi.CallbackQuery, text string, alert bool) {
	cfg := tgbotapi.NewCallback(cq.ID, text)
	cfg.ShowAlert = alert
	if _, err := b.client.Request(cfg); err != nil {
		b.logger.Warn("answer callback failed", slog.Any("error", fmt.Errorf("callback %s: %w", cq.ID, err)))
	}
}
