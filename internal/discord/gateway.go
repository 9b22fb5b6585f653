// Package discord binds the dispatch engine to the Discord gateway.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/heraldbot/herald/internal/dispatch"
)

// Discord rejects messages longer than 2000 characters.
const maxMessageLen = 2000

// Gateway owns the discordgo session and feeds inbound messages to the engine.
type Gateway struct {
	session *discordgo.Session
	engine  *dispatch.Engine
	logger  *slog.Logger
}

// New creates a gateway for the given bot token. The session is configured
// but not opened; call Start.
func New(log *slog.Logger, token string, engine *dispatch.Engine) (*Gateway, error) {
	if token == "" {
		return nil, fmt.Errorf("discord bot token is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	g := &Gateway{
		session: session,
		engine:  engine,
		logger:  log.With(slog.String("service", "discord")),
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	session.AddHandler(g.onReady)
	session.AddHandler(g.onMessageCreate)
	return g, nil
}

// Start opens the gateway connection. discordgo reconnects on its own after
// transient disconnects.
func (g *Gateway) Start(ctx context.Context) error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

// Stop closes the gateway connection.
func (g *Gateway) Stop() error {
	return g.session.Close()
}

func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	selfID, err := parseSnowflake(r.User.ID)
	if err != nil {
		g.logger.Error("ready event carried an invalid user id",
			slog.String("id", r.User.ID), slog.Any("error", err))
		return
	}
	g.engine.SetSelf(selfID)
	g.logger.Info("gateway ready",
		slog.String("username", r.User.Username),
		slog.Int64("self_id", selfID),
	)
}

func (g *Gateway) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	authorID, err := parseSnowflake(m.Author.ID)
	if err != nil {
		g.logger.Warn("message with invalid author id",
			slog.String("id", m.Author.ID), slog.Any("error", err))
		return
	}

	msg := dispatch.Message{
		AuthorID:   authorID,
		AuthorName: m.Author.Username,
		Content:    m.Content,
	}
	reply := func(ctx context.Context, text string) error {
		_, err := s.ChannelMessageSendReply(m.ChannelID, clampMessage(text), m.Reference())
		return err
	}

	// Per-message failures are logged and the event loop keeps serving.
	if err := g.engine.HandleMessage(context.Background(), msg, reply); err != nil {
		g.logger.Error("message processing failed",
			slog.Int64("author", authorID),
			slog.String("channel", m.ChannelID),
			slog.Any("error", err),
		)
	}
}

func parseSnowflake(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}

func clampMessage(text string) string {
	if len(text) > maxMessageLen {
		return text[:maxMessageLen-3] + "..."
	}
	return text
}
