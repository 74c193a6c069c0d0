// Package notify delivers approval requests for new reservations to the configured
// approvers over SMTP and schedules a periodic digest of reservations still pending.
package notify
