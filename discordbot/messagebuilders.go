package discordbot

import (
	"fmt"
	"strings"
	"time"

	"github.com/hako/durafmt"
	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
	"go.tianon.xyz/progress"
)

func availabilityBar(available, total int) string {
	bar := progress.NewBar(nil)
	bar.Min = 0
	bar.Max = int64(total)
	bar.Val = int64(available)

	bar.Prefix = func(_ *progress.Bar) string {
		return ""
	}
	bar.Suffix = func(b *progress.Bar) string {
		return ""
	}

	bar.Phases = []string{
		"·",
		"▌",
		"█",
	}
	return bar.TickString(20)
}

func buildCrisisMessage(view *emergency.CrisisStatusView) string {
	var sb strings.Builder
	if view.Active {
		fmt.Fprintf(&sb, "🚨 **Crisis mode active** since %s\n", view.Crisis.ActivatedAt.Format("15:04"))
		fmt.Fprintf(&sb, "Trains withdrawn: %s\n", strings.Join(view.Crisis.TriggeringTrains, ", "))
	} else {
		sb.WriteString("🟢 No active crisis\n")
	}
	serving := view.Fleet.InService + view.Fleet.Available
	if view.Fleet.Total > 0 {
		fmt.Fprintf(&sb, "Fleet `%s` %d/%d (minimum %d)\n",
			availabilityBar(serving, view.Fleet.Total), serving, view.Fleet.Total, view.MinimumRequired)
	}
	fmt.Fprintf(&sb, "In service %d · standby %d · withdrawn %d · maintenance %d\n",
		view.Fleet.InService, view.Fleet.Available, view.Fleet.Withdrawn, view.Fleet.UnderMaintenance)
	if view.ServiceDeficit > 0 {
		fmt.Fprintf(&sb, "Service deficit: **%d**\n", view.ServiceDeficit)
	}
	if view.CascadeDetected {
		fmt.Fprintf(&sb, "⚠ %d breakdowns in the cascade window\n", len(view.RecentBreakdowns))
	}
	return sb.String()
}

func buildEmergenciesMessage(logs []*dataobjects.EmergencyLog, now time.Time) string {
	if len(logs) == 0 {
		return "No active emergencies"
	}
	var sb strings.Builder
	for _, elog := range logs {
		fmt.Fprintf(&sb, "%s **%s** %s (%s) %s ago · `%s`\n", severityEmoji(elog.Severity),
			elog.TrainID, elog.FaultCode, elog.Severity, durafmt.ParseShort(now.Sub(elog.Time)), elog.ID)
	}
	return sb.String()
}

func buildEmergencyMessage(view *emergency.EmergencyView) string {
	elog := view.EmergencyLog
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s **%s** %s (%s), %s\n", severityEmoji(elog.Severity),
		elog.TrainID, elog.FaultCode, elog.Severity, elog.Status)
	if elog.Location != "" {
		fmt.Fprintf(&sb, "At %s\n", elog.Location)
	}
	plan := view.ActivePlan()
	if plan == nil {
		sb.WriteString("No active plan\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Plan `%s` %s: **%s** ready in %d min", plan.ID, plan.Status,
		plan.ReplacementTrainID, plan.DeploymentMinutes)
	if plan.RouteID != "" {
		fmt.Fprintf(&sb, " for route %s", plan.RouteID)
	}
	sb.WriteString("\n")
	for _, fallback := range plan.Fallbacks {
		fmt.Fprintf(&sb, "Option %s: %s in %d min\n", fallback.Label, fallback.TrainID, fallback.ReadinessMinutes)
	}
	return sb.String()
}

func buildEligibilityMessage(e *emergency.Eligibility) string {
	if e.Eligible {
		msg := fmt.Sprintf("✅ %s is eligible, ready in %d min", e.TrainID, e.ReadinessMinutes)
		if len(e.ExpiringCertificates) > 0 {
			departments := make([]string, len(e.ExpiringCertificates))
			for i := range e.ExpiringCertificates {
				departments[i] = string(e.ExpiringCertificates[i])
			}
			msg += " (certificates expiring soon: " + strings.Join(departments, ", ") + ")"
		}
		return msg
	}
	return fmt.Sprintf("❌ %s is not eligible: %s", e.TrainID, strings.Join(e.Reasons, "; "))
}

func buildOptimizationMessage(plan *emergency.CrisisOptimizationPlan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔧 Reoptimization: deficit %d → %d\n", plan.InitialDeficit, plan.RemainingDeficit)
	for _, action := range plan.Actions {
		fmt.Fprintf(&sb, "• %s", action.Kind)
		if action.Note != "" {
			fmt.Fprintf(&sb, ": %s", action.Note)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func severityEmoji(severity dataobjects.Severity) string {
	switch severity {
	case dataobjects.SeverityCritical:
		return "🔴"
	case dataobjects.SeverityHigh:
		return "🟠"
	case dataobjects.SeverityMedium:
		return "🟡"
	default:
		return "⚪"
	}
}
