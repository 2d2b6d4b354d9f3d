package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igleads/pkg/auth"
	"igleads/pkg/logger"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Instagram sessions",
	Long: `Manage the Instagram session cookies used for crawling.

Sessions are looked up in this order:
  - Environment variables (IGLEADS_SESSION_ID and IGLEADS_CSRF_TOKEN)
  - System keychain (when available)
  - Encrypted file in the igleads config directory

Never share your session cookies or the passphrase file.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Store session cookies for an account",
	Long: `Store the sessionid and csrftoken cookies of a logged-in browser session.

The cookie values are read without echo. They are stored in the system
keychain when one is available, otherwise in an encrypted file.`,
	Example: `  # Interactive login
  igleads auth login

  # Login for a named account
  igleads auth login scout`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:     "logout <account>",
	Short:   "Remove a stored session",
	Example: `  igleads auth logout scout`,
	Args:    cobra.ExactArgs(1),
	RunE:    runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Long:  `List stored Instagram sessions with their cookies masked.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func newAuthManager() (*auth.Manager, error) {
	m, err := auth.NewManager("", logger.GetLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential stores: %w", err)
	}
	return m, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := newAuthManager()
	if err != nil {
		return err
	}
	p := printer(cmd)
	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())

	auth.WriteLoginGuide(out)

	var account string
	if len(args) > 0 {
		account = strings.TrimSpace(args[0])
	}
	if account == "" {
		fmt.Fprint(out, "Account name: ")
		account, err = readLine(reader)
		if err != nil {
			return fmt.Errorf("failed to read account name: %w", err)
		}
	}
	if account == "" {
		return errors.New("account name is required")
	}

	if _, err := manager.Load(account); err == nil {
		fmt.Fprintf(out, "A session for %q already exists. Replace it? (y/N): ", account)
		answer, _ := readLine(reader)
		if !strings.HasPrefix(strings.ToLower(answer), "y") {
			return nil
		}
	}

	fmt.Fprintln(out, "\nCookie values are hidden as you type.")
	fmt.Fprint(out, "sessionid: ")
	sessionID, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read sessionid: %w", err)
	}
	fmt.Fprint(out, "\ncsrftoken: ")
	csrf, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read csrftoken: %w", err)
	}
	fmt.Fprint(out, "\nUser agent (Enter for default): ")
	userAgent, _ := readLine(reader)
	fmt.Fprintln(out)

	store, err := manager.Save(&auth.Session{
		Account:   account,
		SessionID: sessionID,
		CSRFToken: csrf,
		UserAgent: userAgent,
	})
	if err != nil {
		return err
	}

	p.Success(fmt.Sprintf("Session for %s saved to the %s store", account, store))
	p.Plain("Start crawling with: igleads crawl <seed> --account %s", account)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := newAuthManager()
	if err != nil {
		return err
	}
	sessions, err := manager.List()
	if err != nil {
		return err
	}

	p := printer(cmd)
	if len(sessions) == 0 {
		p.Warning("No stored sessions. Run 'igleads auth login' to add one.")
		return nil
	}
	for _, s := range sessions {
		m := s.Masked()
		saved := "unknown"
		if !m.SavedAt.IsZero() {
			saved = m.SavedAt.Local().Format("2006-01-02 15:04")
		}
		p.Info(m.Account, fmt.Sprintf("sessionid=%s csrftoken=%s saved %s", m.SessionID, m.CSRFToken, saved))
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := newAuthManager()
	if err != nil {
		return err
	}
	account := strings.TrimSpace(args[0])
	if err := manager.Delete(account); err != nil {
		return err
	}
	printer(cmd).Success(fmt.Sprintf("Removed session for %s", account))
	return nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads without echo from a terminal, or a plain line otherwise
func readSecret(r *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(r)
}
