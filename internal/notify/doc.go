// Package notify delivers anomaly signals to external channels.
//
// SlackNotifier posts a summary message to a Slack incoming webhook;
// NoopNotifier is wired when no webhook is configured. Notification
// failures are the caller's to log: collection and reporting never
// depend on delivery succeeding.
package notify
