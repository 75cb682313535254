package summary

import "time"

// DefaultCooldown is the minimum age before an unchanged summary is refreshed.
const DefaultCooldown = 30 * time.Minute

// Policy decides whether a cached summary must be regenerated.
type Policy struct {
	Cooldown time.Duration
}

// Decide applies, in order: fingerprint failure, missing record, force,
// changed fingerprint, then cooldown expiry.
func (p Policy) Decide(fingerprint string, fpErr error, record *Record, force bool, now time.Time) Decision {
	switch {
	case fpErr != nil:
		return Decision{Regenerate: true, Reason: ReasonFingerprintError}
	case record == nil || record.SummaryText == nil:
		return Decision{Regenerate: true, Reason: ReasonMissing}
	case force:
		return Decision{Regenerate: true, Reason: ReasonForced}
	case record.Fingerprint != fingerprint:
		return Decision{Regenerate: true, Reason: ReasonChanged}
	}

	cooldown := p.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if record.LastUpdated != nil && now.Sub(*record.LastUpdated) < cooldown {
		return Decision{Regenerate: false, Reason: ReasonFresh}
	}
	return Decision{Regenerate: true, Reason: ReasonExpired}
}
