// Package journal records fishing sessions and their controller events in a
// local SQLite database.
//
// A Writer subscribes to the controller as a bot.Observer and persists
// events on its own goroutine, so the controller never waits on disk I/O.
// Summaries feed the `angler stats` command.
package journal
