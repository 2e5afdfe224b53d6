// Package coordinator runs automatic syncs for one profile in the background.
//
// The coordinator wakes on a jittered polling interval, loads the profile's
// persisted status and asks a sync.AutomaticSyncChecker whether the configured
// interval has passed since the last successful sync. When it has, the Runner
// starts a sync job and the outcome is logged.
//
// # Lifecycle
//
//	coord := coordinator.New(client, persistence, profile, time.Hour)
//	go func() { _ = coord.Start(ctx) }()
//	...
//	_ = coord.Stop()
//
// Start performs an initial check before the first tick. Stop cancels the loop
// and waits for a running sync to return.
//
// # Failures
//
// Network failures and server errors are logged and retried on the next due
// interval. A profile flagged as needing a full sync is skipped until the user
// chooses a direction. A lost session (no stored key, or a key the server
// rejects) ends the loop with ErrLoggedOut.
package coordinator
