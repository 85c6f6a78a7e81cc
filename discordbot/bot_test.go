package discordbot

import (
	"io/ioutil"
	"log"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOps struct {
	decisions []string
	approved  []bool
	logs      []*dataobjects.EmergencyLog
}

func (f *fakeOps) CrisisStatus() (*emergency.CrisisStatusView, error) {
	return &emergency.CrisisStatusView{
		Fleet:           dataobjects.FleetCounts{Total: 10, InService: 5, Available: 1, Withdrawn: 4},
		MinimumRequired: 6,
	}, nil
}

func (f *fakeOps) ListEmergencies(activeOnly bool) ([]*dataobjects.EmergencyLog, error) {
	return f.logs, nil
}

func (f *fakeOps) GetEmergency(id string) (*emergency.EmergencyView, error) {
	return nil, nil
}

func (f *fakeOps) EvaluateTrain(id string) (*emergency.Eligibility, error) {
	return &emergency.Eligibility{TrainID: id, Eligible: true, ReadinessMinutes: 17}, nil
}

func (f *fakeOps) ApprovePlan(planID string, approved bool, approvedBy, notes string) (*dataobjects.EmergencyPlan, error) {
	f.decisions = append(f.decisions, planID+"|"+approvedBy+"|"+notes)
	f.approved = append(f.approved, approved)
	status := dataobjects.PlanRejected
	if approved {
		status = dataobjects.PlanExecuted
	}
	return &dataobjects.EmergencyPlan{ID: planID, Status: status, ReplacementTrainID: "T-09", WithdrawnTrainID: "T-17"}, nil
}

func (f *fakeOps) Replan(id string) (*emergency.BreakdownResult, error) {
	return &emergency.BreakdownResult{EmergencyLogID: id}, nil
}

func (f *fakeOps) ResolveEmergency(id, by, resolution string) (*dataobjects.EmergencyLog, error) {
	return &dataobjects.EmergencyLog{ID: id}, nil
}

func (f *fakeOps) FullFleetReoptimization() (*emergency.CrisisOptimizationPlan, error) {
	return &emergency.CrisisOptimizationPlan{}, nil
}

func message(channelID, userID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ChannelID: channelID,
			Content:   content,
			Author:    &discordgo.User{ID: userID, Username: "user-" + userID},
		},
	}
}

func newTestBot(ops Operations) (*Bot, *[]string) {
	bot := newBot(nil, "ops-channel", ops, log.New(ioutil.Discard, "", 0))
	sent := []string{}
	bot.library.send = func(s *discordgo.Session, channelID, content string) {
		sent = append(sent, channelID+": "+content)
	}
	return bot, &sent
}

func TestCommandLibraryIgnoresOtherMessages(t *testing.T) {
	bot, sent := newTestBot(&fakeOps{})

	assert.False(t, bot.library.Handle(nil, message("general", "u1", "hello there")))
	assert.False(t, bot.library.Handle(nil, message("general", "u1", "$nosuchcommand")))
	assert.False(t, bot.library.Handle(nil, message("general", "u1", "$crisis \"unterminated")))
	assert.Empty(t, *sent)
	assert.Equal(t, 3, bot.library.MessagesHandled())
	assert.Equal(t, 0, bot.library.MessagesActedUpon())
}

func TestOperatorCommandsRequireOperatorChannel(t *testing.T) {
	ops := &fakeOps{}
	bot, sent := newTestBot(ops)

	assert.True(t, bot.library.Handle(nil, message("general", "u1", "$approve plan-1")))
	assert.Empty(t, ops.decisions)
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0], "restricted to operators")

	assert.True(t, bot.library.Handle(nil, message("ops-channel", "u1", "$approve plan-1 \"crew on site\"")))
	require.Len(t, ops.decisions, 1)
	assert.Equal(t, "plan-1|user-u1|crew on site", ops.decisions[0])
	assert.Equal(t, []bool{true}, ops.approved)
	assert.Contains(t, (*sent)[1], "T-09 replaces T-17")

	assert.True(t, bot.library.Handle(nil, message("ops-channel", "u1", "$reject plan-2")))
	assert.Equal(t, []bool{true, false}, ops.approved)
	assert.Contains(t, (*sent)[2], "rejected")
}

func TestOperatorUsers(t *testing.T) {
	ops := &fakeOps{}
	bot, _ := newTestBot(ops)
	bot.library.WithOperators("ops-channel", "boss")

	bot.library.Handle(nil, message("general", "boss", "$reject plan-3"))
	assert.Equal(t, []bool{false}, ops.approved)
}

func TestCommandUsage(t *testing.T) {
	ops := &fakeOps{}
	bot, sent := newTestBot(ops)

	assert.True(t, bot.library.Handle(nil, message("ops-channel", "u1", "$resolve em-1")))
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0], "usage: $resolve [emergency ID] [resolution]")
	assert.Equal(t, 0, bot.library.MessagesActedUpon())
}

func TestEveryoneCommands(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	ops := &fakeOps{logs: []*dataobjects.EmergencyLog{{
		ID:        "em-1",
		TrainID:   "T-17",
		FaultCode: "BRK-01",
		Severity:  dataobjects.SeverityHigh,
		Time:      now.Add(-5 * time.Minute),
	}}}
	bot, sent := newTestBot(ops)
	bot.now = func() time.Time { return now }

	assert.True(t, bot.library.Handle(nil, message("general", "u1", "$eligibility T-09")))
	assert.True(t, bot.library.Handle(nil, message("general", "u1", "$emergencies")))
	assert.True(t, bot.library.Handle(nil, message("general", "u1", "$crisis")))
	require.Len(t, *sent, 3)
	assert.Contains(t, (*sent)[0], "T-09 is eligible, ready in 17 min")
	assert.Contains(t, (*sent)[1], "**T-17** BRK-01 (HIGH) 5 minutes ago")
	assert.Contains(t, (*sent)[2], "No active crisis")
	assert.Contains(t, (*sent)[2], "6/10 (minimum 6)")
}

func TestBuildEligibilityMessage(t *testing.T) {
	msg := buildEligibilityMessage(&emergency.Eligibility{
		TrainID: "T-10",
		Reasons: []string{"SIGNALLING certificate expired", "too many critical job cards"},
	})
	assert.Equal(t, "❌ T-10 is not eligible: SIGNALLING certificate expired; too many critical job cards", msg)
}

func TestMessagesWithoutAuthorAreIgnored(t *testing.T) {
	ops := &fakeOps{}
	bot, sent := newTestBot(ops)

	m := message("ops-channel", "u1", "$approve plan-1")
	m.Author = nil
	assert.NotPanics(t, func() { bot.messageCreate(&discordgo.Session{}, m) })
	assert.Empty(t, ops.decisions)
	assert.Empty(t, *sent)
	assert.Equal(t, 0, bot.library.MessagesHandled())
}
