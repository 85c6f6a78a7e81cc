// Package discordbot implements a Discord bot through which operators can follow and
// act upon emergencies and crises
package discordbot

import (
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
)

// Operations are the emergency operations available through the bot. *emergency.Handler satisfies it
type Operations interface {
	CrisisStatus() (*emergency.CrisisStatusView, error)
	ListEmergencies(activeOnly bool) ([]*dataobjects.EmergencyLog, error)
	GetEmergency(emergencyLogID string) (*emergency.EmergencyView, error)
	EvaluateTrain(trainID string) (*emergency.Eligibility, error)
	ApprovePlan(planID string, approved bool, approvedBy, notes string) (*dataobjects.EmergencyPlan, error)
	Replan(emergencyLogID string) (*emergency.BreakdownResult, error)
	ResolveEmergency(emergencyLogID, resolvedBy, resolution string) (*dataobjects.EmergencyLog, error)
	FullFleetReoptimization() (*emergency.CrisisOptimizationPlan, error)
}

// Bot is a running Discord bot
type Bot struct {
	session *discordgo.Session
	library *CommandLibrary
	ops     Operations
	log     *log.Logger
	now     func() time.Time
}

// Start opens session and starts answering commands in the channels the bot can read.
// Commands that act on the fleet are only accepted from operators
func Start(session *discordgo.Session, operatorChannelID string, operatorUserIDs []string, ops Operations, logger *log.Logger) (*Bot, error) {
	bot := newBot(session, operatorChannelID, ops, logger)
	bot.library.WithOperators(operatorChannelID, operatorUserIDs...)

	session.AddHandler(bot.messageCreate)
	// Open a websocket connection to Discord and begin listening.
	if err := session.Open(); err != nil {
		return nil, err
	}
	return bot, nil
}

func newBot(session *discordgo.Session, operatorChannelID string, ops Operations, logger *log.Logger) *Bot {
	bot := &Bot{
		session: session,
		library: NewCommandLibrary("$").WithOperators(operatorChannelID),
		ops:     ops,
		log:     logger,
		now:     time.Now,
	}
	bot.registerCommands()
	return bot
}

// Session returns the Discord session of the bot
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Stop closes the connection to Discord
func (b *Bot) Stop() {
	if b.session != nil {
		b.session.Close()
	}
}

func (b *Bot) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// webhook and system messages have no author
	if m.Author == nil {
		return
	}
	// Ignore all messages created by the bot itself
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	b.library.Handle(s, m)
}

func (b *Bot) registerCommands() {
	b.library.Register(NewCommand("crisis", b.handleCrisis))
	b.library.Register(NewCommand("emergencies", b.handleEmergencies))
	b.library.Register(NewCommand("emergency", b.handleEmergency).
		WithArgs(1, "[emergency ID]"))
	b.library.Register(NewCommand("eligibility", b.handleEligibility).
		WithArgs(1, "[train ID]"))
	b.library.Register(NewCommand("approve", b.handleDecision(true)).
		WithRequirePrivilege(OperatorPrivilege).
		WithArgs(1, "[plan ID] [notes]"))
	b.library.Register(NewCommand("reject", b.handleDecision(false)).
		WithRequirePrivilege(OperatorPrivilege).
		WithArgs(1, "[plan ID] [notes]"))
	b.library.Register(NewCommand("replan", b.handleReplan).
		WithRequirePrivilege(OperatorPrivilege).
		WithArgs(1, "[emergency ID]"))
	b.library.Register(NewCommand("resolve", b.handleResolve).
		WithRequirePrivilege(OperatorPrivilege).
		WithArgs(2, "[emergency ID] [resolution]"))
	b.library.Register(NewCommand("reoptimize", b.handleReoptimize).
		WithRequirePrivilege(OperatorPrivilege))
}

func (b *Bot) reply(s *discordgo.Session, m *discordgo.MessageCreate, content string) {
	b.library.send(s, m.ChannelID, content)
}

func (b *Bot) replyError(s *discordgo.Session, m *discordgo.MessageCreate, err error) {
	b.log.Println(err)
	b.reply(s, m, "❌ "+err.Error())
}

func (b *Bot) handleCrisis(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	view, err := b.ops.CrisisStatus()
	if err != nil {
		b.replyError(s, m, err)
		return
	}
	b.reply(s, m, buildCrisisMessage(view))
}

func (b *Bot) handleEmergencies(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	logs, err := b.ops.ListEmergencies(true)
	if err != nil {
		b.replyError(s, m, err)
		return
	}
	b.reply(s, m, buildEmergenciesMessage(logs, b.now()))
}

func (b *Bot) handleEmergency(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	view, err := b.ops.GetEmergency(args[0])
	if err != nil {
		b.replyError(s, m, err)
		return
	}
	b.reply(s, m, buildEmergencyMessage(view))
}

func (b *Bot) handleEligibility(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	eligibility, err := b.ops.EvaluateTrain(args[0])
	if err != nil {
		b.replyError(s, m, err)
		return
	}
	b.reply(s, m, buildEligibilityMessage(eligibility))
}

func (b *Bot) handleDecision(approved bool) CommandHandler {
	return func(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
		plan, err := b.ops.ApprovePlan(args[0], approved, m.Author.Username, strings.Join(args[1:], " "))
		if err != nil {
			b.replyError(s, m, err)
			return
		}
		if plan.Status == dataobjects.PlanExecuted {
			b.reply(s, m, "✅ Plan executed: "+plan.ReplacementTrainID+" replaces "+plan.WithdrawnTrainID)
		} else {
			b.reply(s, m, "🚫 Plan rejected")
		}
	}
}

func (b *Bot) handleReplan(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	result, err := b.ops.Replan(args[0])
	if err != nil {
		b.replyError(s, m, err)
		return
	}
	if !result.PlanGenerated {
		b.reply(s, m, "⚠ No eligible replacement train")
		return
	}
	b.reply(s, m, "📋 New plan "+result.PlanID)
}

func (b *Bot) handleResolve(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	_, err := b.ops.ResolveEmergency(args[0], m.Author.Username, strings.Join(args[1:], " "))
	if err != nil {
		b.replyError(s, m, err)
		return
	}
	b.reply(s, m, "✅")
}

func (b *Bot) handleReoptimize(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	plan, err := b.ops.FullFleetReoptimization()
	if err != nil {
		b.replyError(s, m, err)
		return
	}
	b.reply(s, m, buildOptimizationMessage(plan))
}
