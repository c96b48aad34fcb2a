package commands

import (
	"fmt"

	"bantuinchat/internal/auth"
)

// SetToken stores the bearer credential obtained from the Bantuin web app.
func SetToken(tokens *auth.TokenStore, token string) error {
	if err := tokens.SetToken(token); err != nil {
		return err
	}
	fmt.Println("Token saved. Live chat will authenticate with it on next start.")
	return nil
}

// Logout removes the stored credential. Cached conversations stay on disk.
func Logout(tokens *auth.TokenStore) error {
	if err := tokens.ClearToken(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}
