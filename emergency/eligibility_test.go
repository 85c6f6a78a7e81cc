package emergency_test

import (
	"testing"
	"time"

	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
	"github.com/stretchr/testify/assert"
)

func snapshot(certs []*dataobjects.FitnessCertificate, cards []*dataobjects.JobCard, stabling *dataobjects.StablingPosition) *emergency.TrainSnapshot {
	return &emergency.TrainSnapshot{
		Train:        &dataobjects.Train{ID: "T-20", Status: dataobjects.TrainStandby},
		Certificates: certs,
		OpenJobCards: cards,
		Stabling:     stabling,
	}
}

func cert(department dataobjects.Department, expiresIn time.Duration) *dataobjects.FitnessCertificate {
	return &dataobjects.FitnessCertificate{
		ID:         "C-" + string(department),
		TrainID:    "T-20",
		Department: department,
		IssuedAt:   fixtureNow.Add(-30 * 24 * time.Hour),
		ExpiresAt:  fixtureNow.Add(expiresIn),
	}
}

func cards(priority dataobjects.JobPriority, n int) []*dataobjects.JobCard {
	result := []*dataobjects.JobCard{}
	for i := 0; i < n; i++ {
		result = append(result, &dataobjects.JobCard{
			ID:       string(rune('A' + i)),
			TrainID:  "T-20",
			Priority: priority,
			Status:   dataobjects.JobOpen,
		})
	}
	return result
}

func TestEvaluateReadinessFromStabling(t *testing.T) {
	result := emergency.Evaluate(snapshot(nil, nil, &dataobjects.StablingPosition{
		TrainID:         "T-20",
		Bay:             "S-3",
		ShuntingMinutes: 12,
	}), fixtureNow)

	assert.True(t, result.Eligible)
	assert.Equal(t, 21, result.ReadinessMinutes)
	assert.Equal(t, dataobjects.Readiness{CrewNotification: 5, Shunting: 12, SafetyCheck: 4}, result.Readiness)
	assert.Equal(t, result.Readiness.Total(), result.ReadinessMinutes)
}

func TestEvaluateDefaultShunting(t *testing.T) {
	result := emergency.Evaluate(snapshot(nil, nil, nil), fixtureNow)

	assert.True(t, result.Eligible)
	assert.Equal(t, 19, result.ReadinessMinutes)
	assert.Equal(t, 10, result.Readiness.Shunting)
}

func TestEvaluateExpiredCertificate(t *testing.T) {
	result := emergency.Evaluate(snapshot([]*dataobjects.FitnessCertificate{
		cert(dataobjects.DepartmentRollingStock, 10*24*time.Hour),
		cert(dataobjects.DepartmentSignalling, -2*time.Hour),
	}, nil, nil), fixtureNow)

	assert.False(t, result.Eligible)
	if assert.Len(t, result.Reasons, 1) {
		assert.Contains(t, result.Reasons[0], string(dataobjects.DepartmentSignalling))
		assert.Contains(t, result.Reasons[0], "expired")
	}
}

func TestEvaluateExpiringSoonIsAccepted(t *testing.T) {
	result := emergency.Evaluate(snapshot([]*dataobjects.FitnessCertificate{
		cert(dataobjects.DepartmentTelecom, 6*time.Hour),
	}, nil, nil), fixtureNow)

	assert.True(t, result.Eligible)
	assert.Equal(t, []dataobjects.Department{dataobjects.DepartmentTelecom}, result.ExpiringCertificates)
}

func TestEvaluateCertificateMargin(t *testing.T) {
	policy := emergency.DefaultEligibilityPolicy()
	policy.CertificateMargin = 48 * time.Hour

	result := policy.Evaluate(snapshot([]*dataobjects.FitnessCertificate{
		cert(dataobjects.DepartmentRollingStock, 24*time.Hour),
	}, nil, nil), fixtureNow)

	assert.False(t, result.Eligible)
	assert.Contains(t, result.Reasons[0], "within the required margin")
}

func TestEvaluateCriticalJobCardLimit(t *testing.T) {
	result := emergency.Evaluate(snapshot(nil, cards(dataobjects.JobPriorityCritical, 3), nil), fixtureNow)
	assert.True(t, result.Eligible)
	assert.Equal(t, 3, result.OpenCriticalJobCards)

	result = emergency.Evaluate(snapshot(nil, cards(dataobjects.JobPriorityCritical, 4), nil), fixtureNow)
	assert.False(t, result.Eligible)
	assert.Equal(t, 4, result.OpenCriticalJobCards)
}

func TestEvaluateIgnoresNonCriticalJobCards(t *testing.T) {
	result := emergency.Evaluate(snapshot(nil, cards(dataobjects.JobPriorityHigh, 6), nil), fixtureNow)

	assert.True(t, result.Eligible)
	assert.Equal(t, 0, result.OpenCriticalJobCards)
}

func TestEvaluateRequireCertificate(t *testing.T) {
	policy := emergency.DefaultEligibilityPolicy()
	policy.RequireCertificate = true

	result := policy.Evaluate(snapshot(nil, nil, nil), fixtureNow)
	assert.False(t, result.Eligible)

	result = policy.Evaluate(snapshot([]*dataobjects.FitnessCertificate{
		cert(dataobjects.DepartmentRollingStock, 24*time.Hour*7),
	}, nil, nil), fixtureNow)
	assert.True(t, result.Eligible)
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, emergency.DefaultPolicy().Validate())

	policy := emergency.DefaultPolicy()
	policy.Crisis.MinimumFleetFraction = 1.5
	assert.Error(t, policy.Validate())

	policy = emergency.DefaultPolicy()
	policy.Crisis.CriticalRoutes = []string{"R-1"}
	policy.Crisis.LowDemandRoutes = []string{"R-1"}
	assert.Error(t, policy.Validate())

	policy = emergency.DefaultPolicy()
	policy.Eligibility.MaxOpenCriticalJobCards = -1
	assert.Error(t, policy.Validate())
}

func TestMinimumRequired(t *testing.T) {
	policy := emergency.DefaultCrisisPolicy()
	assert.Equal(t, 3, policy.MinimumRequired(5))
	assert.Equal(t, 6, policy.MinimumRequired(10))
	assert.Equal(t, 8, policy.MinimumRequired(12))
	assert.Equal(t, 0, policy.MinimumRequired(0))
}
