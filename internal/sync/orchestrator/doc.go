// Package orchestrator runs login and sync jobs against the local collection
// and the remote, one at a time.
//
// # Jobs
//
// Login and Sync validate the request, run the connectivity pre-check and
// return a JobHandle right away. The job body runs on its own goroutine:
//
//  1. Wait for the previous job to finish, up to the predecessor timeout
//  2. Take the stay-awake lease
//  3. Run the login or sync pipeline
//  4. Release the lease, persist status and deliver the single terminal outcome
//
// A job that outlives the predecessor timeout is superseded: its successor
// proceeds and takes over the lease, and the late outcome of the older job is
// still delivered to its own listener.
//
// # Sync Pipeline
//
//	await background tasks → open → lock → incremental
//	                                          ↓ schema mismatch: mark, then fallback
//	                                        full upload / full download
//	                                          ↓
//	                                        clear undo → media
//
// The collection is unlocked and closed on every path, including panics.
//
// # Cancellation
//
// Cancellation is cooperative. Cancel marks the executing job and any job
// waiting behind it. A request made before a job body starts stays pending
// until its first checkpoint. Drivers poll the job at their checkpoints and
// stop with OutcomeUserCancelled. A full sync is never interrupted: the job is
// not cancellable while it runs and a pending request is dropped when the
// full sync starts.
//
// # Listener Callbacks
//
// Callbacks for one job are delivered in order on a goroutine owned by the
// job. Exactly one of OnFinish and OnDisconnected is called, and Done is
// closed after it returns.
package orchestrator
