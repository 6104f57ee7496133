package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowLoginGuide explains the two ways the crawler can sign in
func ShowLoginGuide(w io.Writer) {
	line := strings.Repeat("=", 72)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "SIGNING IN")
	fmt.Fprintln(w, line)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The crawler drives a real browser and needs a logged-in session to")
	fmt.Fprintln(w, "scroll a profile feed. Provide one of the following:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. Username and password")
	fmt.Fprintln(w, "     The browser fills in the login form. Accounts with two-factor")
	fmt.Fprintln(w, "     authentication need option 2.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  2. Username and sessionid cookie")
	fmt.Fprintln(w, "     Log in with a normal browser, open Developer Tools (F12),")
	fmt.Fprintln(w, "     go to Application > Cookies > https://www.instagram.com and")
	fmt.Fprintln(w, "     copy the value of the 'sessionid' cookie.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Credentials can also come from the environment:")
	fmt.Fprintf(w, "  %s, %s, %s\n", EnvUsername, EnvPassword, EnvSessionID)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "These values give full access to the account. Use a secondary account")
	fmt.Fprintln(w, "and never share them. Stored credentials are kept in the system keychain")
	fmt.Fprintln(w, "or in an encrypted file.")
	fmt.Fprintln(w, line)
}
