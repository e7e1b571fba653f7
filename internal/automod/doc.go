// Package automod evaluates chat messages and member joins against per-guild
// moderation rules.
//
// A rule is a Trigger (blacklist words, a slash command, a spam burst, or a
// join) with a list of Actions. Every time a trigger fires for a member a
// strike is appended to the ledger; an action only runs once the member has
// accumulated enough strikes, either on that trigger or across all triggers
// of the guild.
//
// ScanMessage sits in the message send path and returns the allow/deny
// decision synchronously. Actions that do not influence the decision (kick,
// ban, role changes, automated replies) are handed to an Executor and run
// after the decision has been returned.
package automod
