// Relay service between end users and a staff group chat on Telegram.
//
// Private messages from users are forwarded into a single staff chat with the sender's
// name and a tg://user?id=N token embedded; staff reply to a forward to answer the user,
// or issue moderation commands (/ban, /mute, /unmute, /unban, /info) as replies. Mute and
// ban state lives in the modstore package and gates every inbound user message. A
// background sweeper expires mutes and notifies the affected users.
//
// See `cmd/courier` for the daemon built on this package.
package relay
