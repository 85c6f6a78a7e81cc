package emergency

import (
	"fmt"
	"time"

	"github.com/hako/durafmt"
	"github.com/railops/fleetcrisis/dataobjects"
)

// Eligibility is the verdict of the eligibility rules on a candidate replacement train
type Eligibility struct {
	TrainID          string
	Eligible         bool
	ReadinessMinutes int
	Readiness        dataobjects.Readiness
	Reasons          []string
	// ExpiringCertificates lists the departments whose certificates expire soon but were accepted
	ExpiringCertificates []dataobjects.Department
	OpenCriticalJobCards int
}

// Evaluate applies the default emergency rules to the snapshot
func Evaluate(snapshot *TrainSnapshot, now time.Time) Eligibility {
	return DefaultEligibilityPolicy().Evaluate(snapshot, now)
}

// Evaluate decides whether the train in the snapshot can replace a withdrawn train and
// estimates how long it needs to enter service. It has no side effects
func (p EligibilityPolicy) Evaluate(snapshot *TrainSnapshot, now time.Time) Eligibility {
	result := Eligibility{
		TrainID:  snapshot.Train.ID,
		Eligible: true,
	}

	if p.RequireCertificate && len(snapshot.Certificates) == 0 {
		result.Eligible = false
		result.Reasons = append(result.Reasons, "no fitness certificate on record")
	}

	deadline := now.Add(p.CertificateMargin)
	for _, cert := range snapshot.Certificates {
		switch {
		case cert.ExpiredAt(deadline):
			result.Eligible = false
			if cert.ExpiredAt(now) {
				result.Reasons = append(result.Reasons, fmt.Sprintf("%s certificate expired %s ago",
					cert.Department, durafmt.ParseShort(now.Sub(cert.ExpiresAt)).String()))
			} else {
				result.Reasons = append(result.Reasons, fmt.Sprintf("%s certificate expires in %s, within the required margin of %s",
					cert.Department, durafmt.ParseShort(cert.ExpiresAt.Sub(now)).String(), durafmt.ParseShort(p.CertificateMargin).String()))
			}
		case cert.StatusAt(now) == dataobjects.CertificateExpiringSoon:
			result.ExpiringCertificates = append(result.ExpiringCertificates, cert.Department)
			result.Reasons = append(result.Reasons, fmt.Sprintf("%s certificate expiring soon (in %s), accepted in emergency mode",
				cert.Department, durafmt.ParseShort(cert.ExpiresAt.Sub(now)).String()))
		}
	}

	for _, card := range snapshot.OpenJobCards {
		if card.Priority == dataobjects.JobPriorityCritical && card.IsOpen() {
			result.OpenCriticalJobCards++
		}
	}
	if result.OpenCriticalJobCards > p.MaxOpenCriticalJobCards {
		result.Eligible = false
		result.Reasons = append(result.Reasons, fmt.Sprintf("%d open critical job cards, more than the allowed %d",
			result.OpenCriticalJobCards, p.MaxOpenCriticalJobCards))
	} else if result.OpenCriticalJobCards > 0 {
		result.Reasons = append(result.Reasons, fmt.Sprintf("%d open critical job cards, accepted in emergency mode",
			result.OpenCriticalJobCards))
	}

	result.Readiness = p.readiness(snapshot.Stabling)
	result.ReadinessMinutes = result.Readiness.Total()
	if result.Eligible {
		shunting := "default shunting estimate"
		if snapshot.Stabling != nil {
			shunting = "shunting from bay " + snapshot.Stabling.Bay
		}
		result.Reasons = append(result.Reasons, fmt.Sprintf("ready in %d minutes (crew notification %d, %s %d, safety check %d)",
			result.ReadinessMinutes, result.Readiness.CrewNotification, shunting, result.Readiness.Shunting, result.Readiness.SafetyCheck))
	}
	return result
}

func (p EligibilityPolicy) readiness(stabling *dataobjects.StablingPosition) dataobjects.Readiness {
	shunting := p.DefaultShuntingMinutes
	if stabling != nil {
		shunting = stabling.ShuntingMinutes
	}
	return dataobjects.Readiness{
		CrewNotification: p.CrewNotificationMinutes,
		Shunting:         shunting,
		SafetyCheck:      p.SafetyCheckMinutes,
	}
}
