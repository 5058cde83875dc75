package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"mangahub/pkg/models"
)

func newAuthCommand() *cobra.Command {
	auth := &cobra.Command{
		Use:   "auth",
		Short: "Account management",
	}
	auth.AddCommand(newRegisterCommand(), newLoginCommand(), newLogoutCommand())
	return auth
}

// promptPassword reads a password without echoing it.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(data), nil
}

func newRegisterCommand() *cobra.Command {
	var username, email string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || email == "" {
				return errors.New("--username and --email are required")
			}
			password, err := promptPassword("Password: ")
			if err != nil {
				return err
			}
			confirm, err := promptPassword("Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return errors.New("passwords do not match")
			}

			client := newAPIClient(viper.GetString("server_url"), "")
			_, err = client.do("POST", "/auth/register", models.RegisterRequest{
				Username: username,
				Email:    email,
				Password: password,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Account %s created. Run `mangahub auth login` to sign in.\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	return cmd
}

func newLoginCommand() *cobra.Command {
	var login string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if login == "" {
				fmt.Print("Username or email: ")
				fmt.Fscanln(os.Stdin, &login)
			}
			login = strings.TrimSpace(login)
			if login == "" {
				return errors.New("login is required")
			}
			password, err := promptPassword("Password: ")
			if err != nil {
				return err
			}

			serverURL := viper.GetString("server_url")
			client := newAPIClient(serverURL, "")
			envelope, err := client.do("POST", "/auth/login", models.LoginRequest{
				Login:    login,
				Password: password,
			})
			if err != nil {
				return err
			}

			var resp models.LoginResponse
			if err := decodeData(envelope, &resp); err != nil {
				return fmt.Errorf("unexpected login response: %w", err)
			}

			sess := &Session{
				ServerURL: serverURL,
				Token:     resp.Token,
				UserID:    resp.User.ID,
				Username:  resp.User.Username,
			}
			if err := sess.Save(); err != nil {
				return err
			}
			fmt.Printf("Signed in as %s.\n", resp.User.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&login, "login", "l", "", "username or email")
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := sessionClient()
			if err != nil {
				return err
			}
			if sess.Token == "" {
				fmt.Println("Not signed in.")
				return nil
			}
			// Best-effort: the server drops the TCP session; a dead
			// server must not keep us logged in locally.
			client.do("POST", "/auth/logout", nil)
			if err := sess.Clear(); err != nil {
				return err
			}
			fmt.Println("Signed out.")
			return nil
		},
	}
}
