package metrics

import "strconv"

// SignupRecorded counts a new waitlist signup.
func SignupRecorded(referred bool) {
	SignupsTotal.WithLabelValues(strconv.FormatBool(referred)).Inc()
}

// ReferralCredited counts a referral credit with the referrer's new tier.
func ReferralCredited(tier string) {
	ReferralsCredited.WithLabelValues(tier).Inc()
}

// VariantAssigned counts a session's first exposure to a variant.
func VariantAssigned(fallback bool) {
	VariantAssignments.WithLabelValues(strconv.FormatBool(fallback)).Inc()
}

// RateLimited counts a rejected request.
func RateLimited(route string) {
	RateLimitRejections.WithLabelValues(route).Inc()
}

// GateDenied counts a subscription gate denial.
func GateDenied(gate, reason string) {
	GateDenials.WithLabelValues(gate, reason).Inc()
}

// CampaignEmailSent counts one campaign delivery attempt.
func CampaignEmailSent(ok bool) {
	status := "sent"
	if !ok {
		status = "failed"
	}
	CampaignEmails.WithLabelValues(status).Inc()
}

// ScheduledTaskRan counts one scheduled task run.
func ScheduledTaskRan(task string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ScheduledTasksTotal.WithLabelValues(task, status).Inc()
}
