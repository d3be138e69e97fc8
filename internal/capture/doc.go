// Package capture owns the camera session lifecycle and the still
// capture pipeline built on top of it.
//
// # Session Lifecycle
//
// A Session moves through idle → acquiring → live → stopped, with
// failed as the recoverable error state:
//
//	session, _ := capture.NewSession(provider)
//	err := session.Start(ctx, device.Request{
//	    Facing:     device.FacingEnvironment,
//	    Resolution: device.Res720p,
//	})
//	defer session.Stop()
//
// Start performs at most one fallback retry: the opposite facing at
// the conservative 480p resolution. Stop is idempotent and always
// wins against an in-flight acquisition; a stream that finishes
// opening after Stop is released without ever becoming visible.
// Stopping a failed session is a no-op: the failed state and its
// LastError stay readable until the next Start.
//
// # Capture Pipeline
//
//	pipe, _ := capture.NewPipeline(session, capture.PipelineConfig{JPEGQuality: 90})
//	art, err := pipe.Capture(ctx, store.Settings(), "freezeMotion")
//	path, err := pipe.Export("./captures")
//	err = pipe.Share(ctx)
//
// The pipeline retains exactly one artifact, the most recent capture,
// and overwrites it on each new capture. Export filenames derive
// deterministically from the capture sequence and timestamp, so later
// captures always sort after earlier ones. Share failures never
// disturb the retained artifact or the live session.
//
// # Thread Safety
//
// All methods on Session and Pipeline are safe for concurrent use.
// Stats() returns point-in-time snapshots.
package capture
