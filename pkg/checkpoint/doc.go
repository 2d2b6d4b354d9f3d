// Package checkpoint saves and restores crawl progress.
//
// A Checkpoint records the run id, the seeds, the current depth, every
// visited handle, the remaining frontier and the number of leads emitted.
// The crawler saves one periodically; `igleads crawl --resume` loads it and
// continues from the same depth without refetching visited handles.
//
// Checkpoints live under the XDG data directory by default
// (~/.local/share/igleads/checkpoints on Linux) and are written atomically
// through a temporary file.
package checkpoint
