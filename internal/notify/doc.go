// Package notify delivers processing events to an optional webhook.
//
// Notifications are best-effort: delivery failures are logged and
// never propagated, so a dead webhook cannot stall or fail the
// pipeline. Discord webhook URLs get Discord's content payload shape;
// everything else receives a generic JSON event.
package notify
