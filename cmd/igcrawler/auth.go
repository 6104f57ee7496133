package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igcrawler/pkg/auth"
	"igcrawler/pkg/feed"
	"igcrawler/pkg/ui"
)

var useSession bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage sign-in credentials",
	Long: `Manage stored credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store credentials securely",
	Long: `Store credentials in the system keychain or an encrypted file.

By default you are prompted for the account password; the browser fills in
the login form on every crawl. With --session you paste the sessionid
cookie of an already logged-in browser instead, which also works for
accounts with two-factor authentication.`,
	Example: `  # Interactive login
  igcrawler auth login

  # Store a session cookie for an account
  igcrawler auth login myaccount --session`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Remove stored credentials",
	Long: `Remove stored credentials.

If no username is provided, you will be shown a list of stored accounts
to choose from. You can also remove all accounts at once.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with masked credential information.`,
	RunE:  runList,
}

// guideCmd represents the auth guide command
var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain how to provide credentials",
	Run: func(cmd *cobra.Command, args []string) {
		auth.ShowLoginGuide(os.Stdout)
	},
}

// rotateCmd represents the auth rotate command
var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Re-encrypt the credentials file under a new passphrase",
	Long: `Re-encrypt every account in the credentials file with a fresh salt and
a new passphrase.

When IGCRAWLER_PASSPHRASE is set you are prompted for the new passphrase and
must update the variable afterwards. Otherwise a new passphrase is generated
into the .passphrase file next to the credentials.`,
	Args: cobra.NoArgs,
	RunE: runRotate,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(guideCmd)
	authCmd.AddCommand(rotateCmd)

	loginCmd.Flags().BoolVar(&useSession, "session", false, "store a sessionid cookie instead of a password")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err)
		return err
	}

	reader := bufio.NewReader(os.Stdin)

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Print("Username: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
		username = input
	}
	username = feed.NormalizeHandle(username)
	if username == "" {
		return errors.New("username is required")
	}

	if existing, _ := manager.Retrieve(username); existing != nil {
		fmt.Printf("\nAccount '%s' already exists. Update credentials? (y/N): ", username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	account := &auth.Account{Username: username, LastModified: time.Now()}
	if useSession {
		fmt.Print("sessionid cookie value (hidden): ")
		account.SessionID, err = readPassword(reader)
		if err != nil {
			return fmt.Errorf("failed to read session ID: %w", err)
		}
		if len(account.SessionID) < 20 {
			ui.PrintWarning("That looks too short for a sessionid cookie")
		}
	} else {
		fmt.Print("Password (hidden): ")
		account.Password, err = readPassword(reader)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}

	fmt.Print("User Agent (press Enter to use default): ")
	userAgent, _ := reader.ReadString('\n')
	account.UserAgent = strings.TrimSpace(userAgent)

	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err)
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", username))
	fmt.Println("\nStart crawling with:")
	fmt.Println("  $ igcrawler crawl <handle>")
	fmt.Printf("  $ igcrawler crawl <handle> --account %s\n", username)
	fmt.Println("\nNever share your credentials or config files!")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err)
		return err
	}

	if len(args) == 1 {
		username := feed.NormalizeHandle(args[0])
		if err := manager.Delete(username); err != nil {
			ui.PrintError("Failed to remove account", err)
			return err
		}
		ui.PrintSuccess("Account removed: " + username)
		return nil
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		ui.PrintError("No stored accounts found")
		return nil
	}

	fmt.Println("Select account to remove:")
	for i, account := range accounts {
		fmt.Printf("  %d. %s\n", i+1, account.Username)
	}
	fmt.Printf("  %d. Remove all accounts\n", len(accounts)+1)
	fmt.Printf("  0. Cancel\n\n")

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Choice: ")
	input, _ := reader.ReadString('\n')

	var choice int
	fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

	switch {
	case choice == 0:
		return nil
	case choice == len(accounts)+1:
		fmt.Print("Remove ALL accounts? This cannot be undone! (yes/N): ")
		confirm, _ := reader.ReadString('\n')
		if strings.TrimSpace(confirm) != "yes" {
			return nil
		}
		if err := manager.DeleteAll(); err != nil {
			ui.PrintError("Failed to remove all accounts", err)
			return err
		}
		ui.PrintSuccess("All accounts removed")
	case choice > 0 && choice <= len(accounts):
		account := accounts[choice-1]
		if err := manager.Delete(account.Username); err != nil {
			ui.PrintError("Failed to remove account", err)
			return err
		}
		ui.PrintSuccess("Account removed: " + account.Username)
	default:
		return fmt.Errorf("invalid choice %q", strings.TrimSpace(input))
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err)
		return err
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err)
		return err
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'igcrawler auth login' to add an account")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()

	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Username: %s\n", i+1, sanitized.Username)
		if sanitized.Password != "" {
			fmt.Printf("   Password: %s\n", sanitized.Password)
		}
		if sanitized.SessionID != "" {
			fmt.Printf("   Session ID: %s\n", sanitized.SessionID)
		}
		if sanitized.UserAgent != "" {
			fmt.Printf("   User Agent: %s\n", sanitized.UserAgent)
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
	return nil
}

func runRotate(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err)
		return err
	}

	store, ok := manager.FileStore()
	if !ok {
		return errors.New("no encrypted credentials file configured")
	}

	var passphrase string
	if store.PassphraseFromEnv() {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("New passphrase (hidden): ")
		if passphrase, err = readPassword(reader); err != nil {
			return fmt.Errorf("failed to read passphrase: %w", err)
		}
		if passphrase == "" {
			return errors.New("passphrase is required")
		}
	}

	if err := store.Rotate(passphrase); err != nil {
		ui.PrintError("Failed to rotate credentials key", err)
		return err
	}

	ui.PrintSuccess("Credentials file re-encrypted")
	if store.PassphraseFromEnv() {
		fmt.Printf("Update %s to the new passphrase before the next crawl.\n", auth.EnvPassphrase)
	}
	return nil
}

// readPassword reads a secret from stdin without echoing
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(password)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
