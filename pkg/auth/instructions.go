package auth

import (
	"fmt"
	"strings"
)

// ShowRequestCaptureGuide displays step-by-step instructions for capturing
// the raw request data this tool needs
func ShowRequestCaptureGuide() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("📚 MESSENGER REQUEST CAPTURE GUIDE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Println("This tool needs the headers and form fields of one authenticated")
	fmt.Println("Messenger request to talk to the mercury API on your behalf.")
	fmt.Println("Follow these steps to capture them from your browser:")
	fmt.Println()

	// Browser
	fmt.Println("🌐 STEP 1: Open Messenger in your browser")
	fmt.Println("   - Go to https://www.facebook.com/messages")
	fmt.Println("   - Log in with your account")
	fmt.Println("   - Open any conversation")
	fmt.Println()

	// Developer tools
	fmt.Println("🔧 STEP 2: Open Developer Tools")
	fmt.Println("   • Chrome/Edge/Brave: Press F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Println("   • Firefox: Press F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	fmt.Println("   • Safari: Enable Developer menu in Preferences, then Cmd+Option+I")
	fmt.Println()

	// Network tab
	fmt.Println("📡 STEP 3: Find a mercury request")
	fmt.Println("   - Click on the 'Network' tab in Developer Tools")
	fmt.Println("   - Type 'mercury' in the filter box")
	fmt.Println("   - Scroll up in the conversation until a request to")
	fmt.Println("     'thread_info.php' or 'threadlist_info.php' appears")
	fmt.Println("   - Click on it")
	fmt.Println()

	// Copy values
	fmt.Println("📋 STEP 4: Copy the values into a text file")
	fmt.Println("   One 'name:value' per line. From 'Request Headers' copy:")
	fmt.Println()
	fmt.Println("   ┌─────────────┬──────────────────────────────────────────────┐")
	fmt.Println("   │ Name        │ What it looks like                           │")
	fmt.Println("   ├─────────────┼──────────────────────────────────────────────┤")
	fmt.Println("   │ cookie      │ Long string of 'name=value;' pairs including │")
	fmt.Println("   │             │ c_user=... and xs=...                        │")
	fmt.Println("   └─────────────┴──────────────────────────────────────────────┘")
	fmt.Println()
	fmt.Println("   From 'Form Data' (use the parsed view, not the source view) copy:")
	fmt.Println()
	fmt.Println("   ┌─────────────┬──────────────────────────────────────────────┐")
	fmt.Println("   │ Name        │ What it looks like                           │")
	fmt.Println("   ├─────────────┼──────────────────────────────────────────────┤")
	fmt.Println("   │ __user      │ Your numeric profile ID                      │")
	fmt.Println("   │ __a         │ Usually just '1'                             │")
	fmt.Println("   │ __dyn       │ Long opaque string                           │")
	fmt.Println("   │ __req       │ Short request counter like '1a'              │")
	fmt.Println("   │ fb_dtsg     │ Anti-CSRF token like 'AQHRk4v...'            │")
	fmt.Println("   │ __rev       │ Numeric build revision                       │")
	fmt.Println("   └─────────────┴──────────────────────────────────────────────┘")
	fmt.Println()

	// Tips
	fmt.Println("💡 TIPS:")
	fmt.Println("   • Copy each ENTIRE value (everything after the first colon)")
	fmt.Println("   • Don't include quotes")
	fmt.Println("   • These values expire when you log out, so recapture them then")
	fmt.Println("   • Save the file and pass it with --request-file, or paste it")
	fmt.Println("     directly into 'msgdump auth login'")
	fmt.Println()

	// Security warning
	fmt.Println("⚠️  SECURITY WARNING:")
	fmt.Println("   • These values give FULL access to your Facebook account")
	fmt.Println("   • NEVER share them with anyone")
	fmt.Println("   • Store them securely (this tool encrypts them)")
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
}

// ShowQuickCaptureGuide shows a condensed version for experienced users
func ShowQuickCaptureGuide() {
	fmt.Println("\n🍪 Quick Guide: F12 → Network tab → filter 'mercury' → scroll the conversation →")
	fmt.Println("   click thread_info.php → copy cookie header + form fields as 'name:value' lines")
	fmt.Println("   Need: cookie, __user, __a, __dyn, __req, fb_dtsg, __rev")
	fmt.Println("   Type 'help' for detailed instructions")
}
