// Package ui provides terminal UI components for msgdump
// This file demonstrates example usage of the UI components
package ui

/*
Example usage of the UI components:

// Terminal colors and output
ui.PrintLogo()                                     // Print ASCII logo
ui.PrintInfo("Using account", "100001234567890")   // Cyan label with yellow value
ui.PrintSuccess("[DUMP COMPLETED]")                // Green success message
ui.PrintError("Failed to dump", err)               // Red error message, prints even in quiet mode
ui.PrintWarning("Dump interrupted", "rerun with --resume") // Yellow warning message
ui.PrintHighlight("[INITIATING DUMP SEQUENCE]")    // Magenta highlight message

// Global switches, usually driven by root command flags
ui.SetQuiet(true)                                  // Suppress everything except errors
ui.DisableColors()                                 // Plain output for dumb terminals

// Batch dump progress (a nil tracker is valid and silent)
tracker := ui.NewDumpTracker(total)
tracker.StartConversation("Road Trip", "1234567890")
tracker.ConversationDumped("Road Trip", 4821)      // Per-conversation outcomes
tracker.ConversationSkipped("Old Group")
tracker.ConversationFailed("Dead Thread", err)
tracker.PrintSummary()                             // One line: dumped/skipped/failed + elapsed

// Artifact download display (single repainted line)
progress := ui.NewProgressDisplay("Road Trip", total, verbose)
progress.StartDownload("photo.jpg")
progress.CompleteDownload("pictures", "photo.jpg", size)
progress.SkipDownload("photo.jpg")                 // Already on disk
progress.FailDownload("photo.jpg", err)
progress.Complete()                                // Final summary with bytes and duration

// Notifications (cross-platform)
notifier := ui.NewNotifier()
notifier.SendSuccess("msgdump", "12 conversations dumped, 0 skipped, 0 failed")
notifier.SendError("msgdump", "Dump failed: session expired")

// Direct color usage
fmt.Printf("%s: %s\n", ui.Cyan("Account"), ui.Yellow("personal"))
fmt.Println(ui.Green("✓ Success"))
fmt.Println(ui.Red("✗ Failed"))
*/
