// Package messenger provides a client for the legacy Messenger mercury
// web API.
//
// This package includes:
//   - A form-POST HTTP client that authenticates with a session bundle
//   - Type-safe models for mercury responses, with raw record bytes
//     preserved for archiving
//   - Form builders for the thread listing and history endpoints
//   - Handling of the `for (;;);` response guard
//
// Example usage:
//
//	client := messenger.NewClient(bundle, 30*time.Second, log)
//
//	// Walk one conversation's history, newest page to oldest
//	thread := messenger.ThreadRef{ID: "1234567890", Kind: messenger.ThreadKindGroup}
//	var cursor messenger.Cursor
//	for {
//	    page, err := client.FetchHistoryPage(ctx, thread, cursor, 2000)
//	    if err != nil {
//	        if errs.IsAuth(err) {
//	            // Session bundle expired, recapture it
//	        }
//	        return err
//	    }
//	    // page.Records holds the raw message records
//	    if page.End {
//	        break
//	    }
//	    cursor = page.Cursor
//	}
package messenger
