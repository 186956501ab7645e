// Package storage writes downloaded images to disk.
//
// The Manager type is the Downloader: DownloadOne maps a URL to its
// destination, skips it without a request when the file is already there,
// rejects responses that are clearly not images, and writes the rest
// atomically through a temporary file and a rename in the same directory.
// Each call ends in exactly one models.Status; none of them is fatal.
//
// Usage:
//
//	manager := storage.NewManager(fetcher, log)
//	outcome := manager.DownloadOne(ctx, imageURL, "downloads/滑脂/產品")
//	if outcome.Status.Failed() {
//	    log.WithError(outcome.Err).Warn("download failed")
//	}
package storage
