package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/gbl08ma/keybox"
	"github.com/pkg/errors"
	"github.com/railops/fleetcrisis/emergency"
)

type valueGetter interface {
	Get(key string) (string, bool)
}

// policyFromKeybox reads the emergency policy from the "policy" box of the secrets.
// Settings that are not present keep their default values
func policyFromKeybox(secrets *keybox.Keybox) (emergency.Policy, error) {
	policyBox, present := secrets.GetBox("policy")
	if !present {
		mainLog.Println("Policy keybox not found, using default emergency policy")
		return emergency.DefaultPolicy(), nil
	}
	return parsePolicy(policyBox)
}

func parsePolicy(box valueGetter) (emergency.Policy, error) {
	policy := emergency.DefaultPolicy()

	if v, present := box.Get("criticalRoutes"); present {
		policy.Crisis.CriticalRoutes = splitList(v)
	}
	if v, present := box.Get("lowDemandRoutes"); present {
		policy.Crisis.LowDemandRoutes = splitList(v)
	}
	if v, present := box.Get("minimumFleetFraction"); present {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return policy, errors.Wrap(err, "minimumFleetFraction")
		}
		policy.Crisis.MinimumFleetFraction = f
	}
	if v, present := box.Get("cascadeThreshold"); present {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return policy, errors.Wrap(err, "cascadeThreshold")
		}
		policy.Crisis.CascadeThreshold = i
	}
	if v, present := box.Get("cascadeWindow"); present {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return policy, errors.Wrap(err, "cascadeWindow")
		}
		policy.Crisis.CascadeWindow = d
	}
	if v, present := box.Get("autoReoptimize"); present {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return policy, errors.Wrap(err, "autoReoptimize")
		}
		policy.Crisis.AutoReoptimize = b
	}
	if v, present := box.Get("maxOpenCriticalJobCards"); present {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return policy, errors.Wrap(err, "maxOpenCriticalJobCards")
		}
		policy.Eligibility.MaxOpenCriticalJobCards = i
	}
	if v, present := box.Get("certificateMarginHours"); present {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return policy, errors.Wrap(err, "certificateMarginHours")
		}
		policy.Eligibility.CertificateMargin = time.Duration(i) * time.Hour
	}
	if v, present := box.Get("requireCertificate"); present {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return policy, errors.Wrap(err, "requireCertificate")
		}
		policy.Eligibility.RequireCertificate = b
	}

	return policy, policy.Validate()
}

// splitList parses a comma-separated list, skipping empty items
func splitList(s string) []string {
	items := []string{}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
