package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"msgdump/pkg/auth"
	"msgdump/pkg/ui"
)

var loginRequestFile string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Messenger sessions",
	Long: `Manage stored Messenger session bundles securely.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (non-interactive use)

Never share your session or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Capture and store a Messenger session",
	Long: `Store a Messenger session bundle securely in the system keychain or an
encrypted file.

The session is captured from one authenticated request in your browser:
the cookie header plus the mercury form fields (__user, __a, __dyn,
__req, fb_dtsg, __rev). You can paste the captured 'name:value' lines
interactively or point --request-file at a file holding them.

The account name defaults to the captured __user id.`,
	Example: `  # Interactive login with the capture guide
  msgdump auth login

  # Login from a saved request file
  msgdump auth login --request-file request.txt

  # Store under a friendlier name
  msgdump auth login personal --request-file request.txt`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [account]",
	Short: "Remove stored sessions",
	Long: `Remove stored Messenger session bundles.

If no account is provided, you will be shown a list of stored accounts
to choose from. You can also remove all accounts at once.`,
	Example: `  # Interactive logout
  msgdump auth logout

  # Logout specific account
  msgdump auth logout personal`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored Messenger accounts with sanitized session information.`,
	Run:   runList,
}

// showCmd represents the auth show command
var showCmd = &cobra.Command{
	Use:   "show [account]",
	Short: "Show one stored session in detail",
	Long: `Show every field of a stored session bundle with sensitive values
masked.

If no account is provided, the default account is shown.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runShow,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(showCmd)

	loginCmd.Flags().StringVarP(&loginRequestFile, "request-file", "r", "", "read the captured request from a file")
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var bundle *auth.Bundle
	if loginRequestFile != "" {
		bundle, err = auth.ParseRawRequestFile(loginRequestFile)
		if err != nil {
			ui.PrintError("Failed to parse request file", err.Error())
			auth.ShowQuickCaptureGuide()
			os.Exit(1)
		}
	} else {
		bundle = captureBundleInteractive()
	}

	if len(args) > 0 {
		bundle.Account = strings.TrimSpace(args[0])
	}
	bundle.LastModified = time.Now()

	// Check if account already exists. Piped input cannot answer a
	// prompt and replaces the session unconditionally.
	if existing, _ := manager.Retrieve(bundle.Account); existing != nil && term.IsTerminal(int(syscall.Stdin)) {
		reader := bufio.NewReader(os.Stdin)
		fmt.Printf("\n⚠️  Account '%s' already exists. Update session? (y/N): ", bundle.Account)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	// Store the session
	fmt.Println("\n💾 Storing session securely...")
	if err := manager.Store(bundle); err != nil {
		ui.PrintError("Failed to store session", err.Error())
		os.Exit(1)
	}

	fmt.Println("\n🎉 Session stored successfully!")
	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", bundle.Account))

	// Show where the session is stored
	fmt.Println("\n🔒 Security Information:")
	fmt.Println("   Your session is encrypted and stored in:")
	if auth.IsKeyringAvailable() {
		fmt.Println("   • System keychain (primary)")
	}
	fmt.Println("   • Encrypted file (backup)")

	// Show how to use
	fmt.Println("\n📖 Quick Start Guide:")
	fmt.Println("   List your conversations:")
	fmt.Printf("   $ msgdump dump --metadata\n")
	fmt.Println("\n   Dump them all:")
	fmt.Printf("   $ msgdump dump\n")
	fmt.Println("\n   Use this account explicitly:")
	fmt.Printf("   $ msgdump dump --account %s\n", bundle.Account)
	fmt.Println("\n   Extract reports from the archives:")
	fmt.Printf("   $ msgdump parse\n")
	fmt.Println("\n⚠️  Never share your session or config files!")
}

// captureBundleInteractive walks through the capture guide and reads the
// pasted request blob from stdin. A blank line ends the paste. Piped
// input ('msgdump auth login < request.txt') skips the guide and reads
// the whole stream.
func captureBundleInteractive() *auth.Bundle {
	if !term.IsTerminal(int(syscall.Stdin)) {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			ui.PrintError("Failed to read request data", err.Error())
			os.Exit(1)
		}
		bundle, err := auth.ParseRawRequest(string(data))
		if err != nil {
			ui.PrintError("Captured request is incomplete", err.Error())
			os.Exit(1)
		}
		return bundle
	}

	reader := bufio.NewReader(os.Stdin)

	auth.ShowRequestCaptureGuide()

	fmt.Print("Ready to paste your captured request? (Y/n): ")
	ready, _ := reader.ReadString('\n')
	if strings.ToLower(strings.TrimSpace(ready)) == "n" {
		fmt.Println("\nRun 'msgdump auth login' when you're ready.")
		os.Exit(0)
	}

	fmt.Println("\n🔐 Paste the captured 'name:value' lines, then press Enter on an empty line:")
	fmt.Println()

	var blob strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if strings.TrimSpace(line) == "" {
			break
		}
		blob.WriteString(line)
		if err != nil {
			break
		}
	}

	bundle, err := auth.ParseRawRequest(blob.String())
	if err != nil {
		ui.PrintError("Captured request is incomplete", err.Error())
		auth.ShowQuickCaptureGuide()
		os.Exit(1)
	}

	// Show what we're about to store
	sanitized := auth.SanitizeBundle(bundle)
	fmt.Println("\n📋 Summary:")
	fmt.Printf("   Account: %s\n", sanitized.Account)
	fmt.Printf("   User ID: %s\n", sanitized.UserID)
	fmt.Printf("   Cookie: %s (hidden)\n", sanitized.Cookie)
	fmt.Printf("   fb_dtsg: %s (hidden)\n", sanitized.DTSG)

	return bundle
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	if len(args) == 0 {
		// List accounts and ask which to remove
		bundles, err := manager.List()
		if err != nil || len(bundles) == 0 {
			ui.PrintError("No stored accounts found")
			return
		}

		if len(bundles) == 1 {
			// Only one account, confirm deletion
			bundle := bundles[0]
			reader := bufio.NewReader(os.Stdin)
			fmt.Printf("Remove account '%s'? (y/N): ", bundle.Account)
			input, _ := reader.ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
				return
			}

			if err := manager.Delete(bundle.Account); err != nil {
				ui.PrintError("Failed to remove account", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("Account removed: " + bundle.Account)
			return
		}

		// Multiple accounts, show menu
		fmt.Println("Select account to remove:")
		for i, bundle := range bundles {
			fmt.Printf("  %d. %s\n", i+1, bundle.Account)
		}
		fmt.Printf("  %d. Remove all accounts\n", len(bundles)+1)
		fmt.Printf("  0. Cancel\n\n")

		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Choice: ")
		input, _ := reader.ReadString('\n')

		var choice int
		fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

		if choice == 0 {
			return
		} else if choice == len(bundles)+1 {
			// Remove all
			fmt.Print("Remove ALL accounts? This cannot be undone! (yes/N): ")
			confirm, _ := reader.ReadString('\n')
			if strings.TrimSpace(confirm) != "yes" {
				return
			}

			if err := manager.DeleteAll(); err != nil {
				ui.PrintError("Failed to remove all accounts", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("All accounts removed")
			return
		} else if choice > 0 && choice <= len(bundles) {
			bundle := bundles[choice-1]
			if err := manager.Delete(bundle.Account); err != nil {
				ui.PrintError("Failed to remove account", err.Error())
				os.Exit(1)
			}
			ui.PrintSuccess("Account removed: " + bundle.Account)
			return
		} else {
			ui.PrintError("Invalid choice")
			os.Exit(1)
		}
	}

	// Account provided as argument
	account := args[0]
	if err := manager.Delete(account); err != nil {
		ui.PrintError("Failed to remove account", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Account removed: " + account)
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	bundles, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		os.Exit(1)
	}

	if len(bundles) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'msgdump auth login' to add an account")
		return
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()

	for i, bundle := range bundles {
		sanitized := auth.SanitizeBundle(bundle)
		fmt.Printf("%d. Account: %s\n", i+1, sanitized.Account)
		fmt.Printf("   User ID: %s\n", sanitized.UserID)
		fmt.Printf("   Cookie: %s\n", sanitized.Cookie)
		fmt.Printf("   fb_dtsg: %s\n", sanitized.DTSG)
		if sanitized.UserAgent != "" {
			fmt.Printf("   User Agent: %s\n", sanitized.UserAgent)
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

func runShow(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var bundle *auth.Bundle
	if len(args) > 0 {
		bundle, err = manager.Retrieve(args[0])
		if err != nil {
			ui.PrintError("Account not found", args[0])
			ui.PrintInfo("Available accounts", "Use 'msgdump auth list' to see stored accounts")
			os.Exit(1)
		}
	} else {
		bundle, err = manager.RetrieveDefault()
		if err != nil {
			ui.PrintError("No stored accounts found")
			os.Exit(1)
		}
	}

	sanitized := auth.SanitizeBundle(bundle)
	ui.PrintHighlight("Session Bundle")
	fmt.Println()
	fmt.Printf("Account: %s\n", sanitized.Account)
	fmt.Printf("User ID: %s\n", sanitized.UserID)
	fmt.Printf("Cookie: %s\n", sanitized.Cookie)
	fmt.Printf("__a: %s\n", sanitized.Ajax)
	fmt.Printf("__dyn: %s\n", sanitized.Dyn)
	fmt.Printf("__req: %s\n", sanitized.Req)
	fmt.Printf("fb_dtsg: %s\n", sanitized.DTSG)
	fmt.Printf("__rev: %s\n", sanitized.Revision)
	if sanitized.UserAgent != "" {
		fmt.Printf("User Agent: %s\n", sanitized.UserAgent)
	}
	fmt.Printf("Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
}
