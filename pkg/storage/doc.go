// Package storage manages downloaded media files on disk.
//
// The storage package handles:
//   - Creating the per-type media subdirectories inside a conversation
//     directory (pictures, gifs, videos, files)
//   - Saving media with atomic write operations
//   - Detecting files already downloaded by earlier runs
//   - Thread-safe access from concurrent download workers
//
// The Manager type is the primary interface for storage operations. It
// maintains an in-memory cache of saved files for fast duplicate
// detection and provides atomic file writing to prevent corruption.
//
// Usage:
//
//	manager, err := storage.NewManager(conversationDir)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Check if the file already exists
//	if !manager.IsDownloaded(parser.DataPictures, "12345_n.jpg") {
//	    // Save the new file
//	    path, err := manager.Save(parser.DataPictures, "12345_n.jpg", body)
//	    if err != nil {
//	        log.Printf("Failed to save media: %v", err)
//	    }
//	    _ = path
//	}
package storage
