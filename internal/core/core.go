// Package core wires the interception pipeline: gate a flagged message,
// open a reflection session, deliver the prompt, and route user choices
// and expiries into the resolution executor.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/reflectpause/pausebot/internal/guild"
	"github.com/reflectpause/pausebot/internal/metrics"
	"github.com/reflectpause/pausebot/internal/prompts"
	"github.com/reflectpause/pausebot/internal/ratelimit"
	"github.com/reflectpause/pausebot/internal/resolution"
	"github.com/reflectpause/pausebot/internal/session"
	"github.com/reflectpause/pausebot/internal/toxicity"
	"github.com/reflectpause/pausebot/internal/transport"
)

// InboundMessage is the gateway's event for a message that may need a
// reflection pause. Published on pause.inbound.
type InboundMessage struct {
	AdapterID string `json:"adapter_id"`
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Ts        int64  `json:"ts"`
}

// ChoiceEvent is the author's reaction to a prompt. Published on
// pause.choice.
type ChoiceEvent struct {
	SessionID string `json:"session_id"`
	Action    string `json:"action"` // "post", "edit", "cancel"
	Payload   string `json:"payload,omitempty"`
}

// Scheduler is the expiry surface the core needs.
type Scheduler interface {
	Add(sessionID string, deadline time.Time)
	Remove(sessionID string)
}

// SettingsSource supplies per-guild settings. *guild.Store implements it.
type SettingsSource interface {
	Get(ctx context.Context, guildID string) (guild.Settings, error)
}

// PromptLimiter throttles prompt delivery. *ratelimit.Limiter implements it.
type PromptLimiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// Core owns the interception pipeline for one pausebot instance.
type Core struct {
	gate      *toxicity.Gate
	guilds    SettingsSource
	limiter   PromptLimiter
	store     *session.Store
	scheduler Scheduler
	executor  *resolution.Executor
	transport transport.Transport
	prompts   *prompts.Provider
}

// New assembles a Core from its collaborators.
func New(gate *toxicity.Gate, guilds SettingsSource, limiter PromptLimiter,
	store *session.Store, scheduler Scheduler, executor *resolution.Executor,
	tr transport.Transport, provider *prompts.Provider) *Core {
	return &Core{
		gate:      gate,
		guilds:    guilds,
		limiter:   limiter,
		store:     store,
		scheduler: scheduler,
		executor:  executor,
		transport: tr,
		prompts:   provider,
	}
}

// HandleInbound screens one inbound message. Non-toxic messages (and all
// messages while the guild is disabled or the author is rate limited) pass
// through untouched; toxic ones are intercepted: original deleted, session
// opened, prompt delivered, expiry registered.
func (c *Core) HandleInbound(ctx context.Context, msg InboundMessage) {
	settings, err := c.guilds.Get(ctx, msg.GuildID)
	if err != nil {
		log.Printf("[core] guild settings guild=%s: %v (using defaults)", msg.GuildID, err)
	}
	if !settings.Enabled {
		metrics.PromptsSuppressed.WithLabelValues("guild_disabled").Inc()
		return
	}

	verdict := c.gate.Evaluate(ctx, msg.Content, settings.Threshold)
	if !verdict.Toxic {
		return
	}

	// One prompt per cooldown, bounded per hour. Checked after the gate so
	// the counters reflect actual toxic traffic, and before anything
	// destructive so a rate-limited message is left alone.
	for _, rule := range []ratelimit.Rule{ratelimit.RuleCooldown, ratelimit.RulePrompt} {
		allowed, _ := c.limiter.Allow(ctx, msg.UserID, rule)
		if !allowed {
			metrics.PromptsSuppressed.WithLabelValues("rate_limited").Inc()
			log.Printf("[core] prompt suppressed (rate limit) user=%s guild=%s", msg.UserID, msg.GuildID)
			return
		}
	}

	s := c.store.Create(session.Event{
		UserID:    msg.UserID,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		Origin:    session.MessageRef{AdapterID: msg.AdapterID, MessageID: msg.MessageID},
		Content:   msg.Content,
		Score:     verdict.Score,
	})
	metrics.SessionsActive.Inc()

	if err := c.transport.DeleteOriginal(ctx, s.Origin); err != nil {
		// The original is still visible; keep going so the author still
		// gets the prompt and the session still resolves.
		log.Printf("[core] delete original failed session=%s: %v", s.ID, err)
	}

	questions := c.prompts.QuestionsFor(settings.Locale)
	if err := c.transport.SendReflection(ctx, msg.AdapterID, msg.UserID, s.ID, questions); err != nil {
		log.Printf("[core] prompt delivery failed session=%s: %v", s.ID, err)
	} else {
		metrics.PromptsTotal.Inc()
	}

	c.scheduler.Add(s.ID, s.Deadline)
	log.Printf("[core] session opened id=%s user=%s guild=%s score=%.2f deadline=%s",
		s.ID, msg.UserID, msg.GuildID, verdict.Score, s.Deadline.Format(time.RFC3339))
}

// HandleChoice applies the author's choice to their session. Late or
// duplicate choices resolve to a logged no-op.
func (c *Core) HandleChoice(ctx context.Context, ev ChoiceEvent) {
	action := resolution.Action(ev.Action)
	switch action {
	case resolution.ActionPost, resolution.ActionEdit, resolution.ActionCancel:
	default:
		log.Printf("[core] ignoring unknown choice action=%q session=%s", ev.Action, ev.SessionID)
		return
	}

	out, err := c.executor.Resolve(ctx, ev.SessionID, action, ev.Payload)
	switch {
	case errors.Is(err, resolution.ErrSessionNotActive):
		log.Printf("[core] late choice ignored session=%s action=%s", ev.SessionID, ev.Action)
		return
	case errors.Is(err, resolution.ErrInvalidEditPayload):
		// Session stays pending; the author may retry within the TTL.
		log.Printf("[core] invalid edit payload session=%s", ev.SessionID)
		return
	case err != nil:
		log.Printf("[core] resolve failed session=%s action=%s: %v", ev.SessionID, ev.Action, err)
		return
	}

	c.scheduler.Remove(ev.SessionID)
	log.Printf("[core] session resolved id=%s state=%s posted=%v", out.SessionID, out.State, out.Posted)
}

// HandleExpiry is the scheduler callback: force-resolve a session whose
// deadline passed. Losing the race to a user choice is silent.
func (c *Core) HandleExpiry(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := c.executor.Resolve(ctx, sessionID, resolution.ActionExpire, "")
	if errors.Is(err, resolution.ErrSessionNotActive) {
		return // user choice won the race
	}
	if err != nil {
		log.Printf("[core] expiry resolve failed session=%s: %v", sessionID, err)
		return
	}
	log.Printf("[core] session expired id=%s", sessionID)
}

// DecodeInbound parses an InboundMessage from NATS payload bytes.
func DecodeInbound(data []byte) (InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return InboundMessage{}, err
	}
	return msg, nil
}

// DecodeChoice parses a ChoiceEvent from NATS payload bytes.
func DecodeChoice(data []byte) (ChoiceEvent, error) {
	var ev ChoiceEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ChoiceEvent{}, err
	}
	return ev, nil
}
