package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/sherlockbot/sherlock/internal/bot"
	"github.com/sherlockbot/sherlock/internal/history"
)

// MaxMessageLength is the Discord hard limit per message; longer answers are
// chunked across follow-ups.
const MaxMessageLength = 2000

// Bot is the Discord connector. It owns message/command delivery and nothing
// else; every answer comes from the orchestrator handler it is given. The
// admission gate applies to the command surface only; mentions and DMs are
// answered without admission.
type Bot struct {
	session *discordgo.Session
	respond bot.Handler
	gate    *bot.Gate
	store   *history.Store
	log     *zap.Logger
}

func New(token string, respond bot.Handler, gate *bot.Gate, store *history.Store, log *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	b := &Bot{
		session: session,
		respond: respond,
		gate:    gate,
		store:   store,
		log:     log,
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessage)
	session.AddHandler(b.onInteraction)
	return b, nil
}

// Start opens the gateway connection and registers the slash commands.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway: %w", err)
	}

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "ia",
			Description: "Faça uma pergunta para a IA",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "pergunta",
					Description: "Sua pergunta para a IA",
					Required:    true,
				},
			},
		},
		{Name: "limpar", Description: "Limpa seu histórico de conversas"},
		{Name: "stats", Description: "Mostra suas estatísticas de uso"},
	}
	for _, cmd := range commands {
		if _, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, "", cmd); err != nil {
			return fmt.Errorf("failed to register command /%s: %w", cmd.Name, err)
		}
	}
	b.log.Info("slash commands registered", zap.Int("count", len(commands)))
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("bot online",
		zap.String("bot_id", r.User.ID),
		zap.String("bot_name", r.User.Username),
	)
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	switch data.Name {
	case "ia":
		b.handleAsk(s, i, data)
	case "limpar":
		b.handleClear(s, i)
	case "stats":
		b.handleStats(s, i)
	}
}

func (b *Bot) handleAsk(s *discordgo.Session, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	userID, channelID, err := interactionIDs(i)
	if err != nil {
		b.log.Error("failed to parse interaction ids", zap.Error(err))
		return
	}

	var question string
	if len(data.Options) > 0 {
		question = data.Options[0].StringValue()
	}

	// The empty check comes first so a blank question never consumes window
	// budget; admission comes next so denied requests never reach the model.
	if strings.TrimSpace(question) != "" {
		if ok, denied := b.gate.Admit(userID); !ok {
			b.respondEphemeral(s, i, denied)
			return
		}
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		b.log.Error("failed to defer interaction", zap.Error(err))
		return
	}

	b.log.Info("/ia received",
		zap.Int64("user_id", userID),
		zap.Int("question_length", len(question)),
	)

	reply := b.respond(context.Background(), userID, channelID, question)
	for _, chunk := range splitMessage(reply, MaxMessageLength) {
		if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: chunk,
		}); err != nil {
			b.log.Error("failed to send followup", zap.Error(err))
			return
		}
	}
}

func (b *Bot) handleClear(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, channelID, err := interactionIDs(i)
	if err != nil {
		b.log.Error("failed to parse interaction ids", zap.Error(err))
		return
	}

	removed, err := b.store.Clear(userID, &channelID)
	if err != nil {
		b.log.Error("failed to clear history", zap.Int64("user_id", userID), zap.Error(err))
		b.respondEphemeral(s, i, bot.MsgProcessingError(err.Error()))
		return
	}
	b.log.Info("history cleared",
		zap.Int64("user_id", userID),
		zap.Int64("channel_id", channelID),
		zap.Int64("messages_removed", removed),
	)
	b.respondEphemeral(s, i, fmt.Sprintf("🗑️ Histórico limpo! %d mensagem(ns) removida(s).", removed))
}

func (b *Bot) handleStats(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID, _, err := interactionIDs(i)
	if err != nil {
		b.log.Error("failed to parse interaction ids", zap.Error(err))
		return
	}

	if ok, denied := b.gate.Admit(userID); !ok {
		b.respondEphemeral(s, i, denied)
		return
	}

	stats, err := b.store.UserStats(userID)
	if err != nil {
		b.log.Error("failed to get stats", zap.Int64("user_id", userID), zap.Error(err))
		b.respondEphemeral(s, i, bot.MsgProcessingError(err.Error()))
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf(
		"📊 **Suas estatísticas:**\n• Mensagens: %d\n• Canais: %d",
		stats.TotalMessages, stats.TotalChannels,
	))
}

func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		b.log.Error("failed to respond to interaction", zap.Error(err))
	}
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	var content, kind string
	switch {
	case m.GuildID == "": // direct message
		content = strings.TrimSpace(m.Content)
		kind = "dm"
	case mentionsUser(m.Mentions, s.State.User.ID):
		content = stripMentions(m.Content, s.State.User.ID)
		kind = "mention"
	default:
		return
	}

	userID, err := parseSnowflake(m.Author.ID)
	if err != nil {
		b.log.Error("failed to parse author id", zap.String("id", m.Author.ID), zap.Error(err))
		return
	}
	channelID, err := parseSnowflake(m.ChannelID)
	if err != nil {
		b.log.Error("failed to parse channel id", zap.String("id", m.ChannelID), zap.Error(err))
		return
	}

	b.log.Info("message received",
		zap.Int64("user_id", userID),
		zap.Int64("channel_id", channelID),
		zap.String("type", kind),
		zap.Int("content_length", len(content)),
	)

	_ = s.ChannelTyping(m.ChannelID)
	reply := b.respond(context.Background(), userID, channelID, content)

	for idx, chunk := range splitMessage(reply, MaxMessageLength) {
		var sendErr error
		if idx == 0 {
			_, sendErr = s.ChannelMessageSendReply(m.ChannelID, chunk, m.Reference())
		} else {
			_, sendErr = s.ChannelMessageSend(m.ChannelID, chunk)
		}
		if sendErr != nil {
			b.log.Error("failed to send reply chunk", zap.Error(sendErr))
			return
		}
	}
}

// interactionIDs extracts the numeric user and channel ids from an
// interaction. Guild interactions carry the user under Member; DMs carry it
// directly. A DM interaction without a channel falls back to the user id,
// keeping DM history keyed consistently.
func interactionIDs(i *discordgo.InteractionCreate) (userID, channelID int64, err error) {
	user := i.User
	if i.Member != nil {
		user = i.Member.User
	}
	if user == nil {
		return 0, 0, fmt.Errorf("interaction has no user")
	}
	userID, err = parseSnowflake(user.ID)
	if err != nil {
		return 0, 0, err
	}
	if i.ChannelID == "" {
		return userID, userID, nil
	}
	channelID, err = parseSnowflake(i.ChannelID)
	if err != nil {
		return 0, 0, err
	}
	return userID, channelID, nil
}

func parseSnowflake(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid snowflake %q: %w", id, err)
	}
	return n, nil
}

func mentionsUser(mentions []*discordgo.User, userID string) bool {
	for _, u := range mentions {
		if u != nil && u.ID == userID {
			return true
		}
	}
	return false
}

// stripMentions removes both mention spellings for the bot from the content.
func stripMentions(content, botID string) string {
	content = strings.ReplaceAll(content, "<@"+botID+">", "")
	content = strings.ReplaceAll(content, "<@!"+botID+">", "")
	return strings.TrimSpace(content)
}

// splitMessage cuts text into rune-safe chunks of at most max characters.
func splitMessage(text string, max int) []string {
	runes := []rune(text)
	if len(runes) <= max {
		return []string{text}
	}
	var chunks []string
	for start := 0; start < len(runes); start += max {
		end := start + max
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
