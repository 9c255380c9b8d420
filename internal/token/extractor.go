// Package token recovers a Cursor session credential from the local
// application database, without any interactive login.
package token

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Info is the synthesized session credential. SessionToken is already
// percent-encoded and usable verbatim as the WorkosCursorSessionToken cookie
// value.
type Info struct {
	SessionToken string
	UserID       string
}

var (
	ErrDatabaseNotFound = errors.New("cursor database not found")
	ErrCannotOpen       = errors.New("cannot open cursor database")
	ErrQueryFailed      = errors.New("query failed")
	ErrTokenNotFound    = errors.New("no auth token found in cursor database; are you logged in?")
	ErrInvalidJWT       = errors.New("auth token is not a valid JWT")
	ErrMissingSubClaim  = errors.New("jwt missing 'sub' claim")
)

const accessTokenKey = "cursorAuth/accessToken"

// DatabasePath returns the platform-specific path to Cursor's global storage
// database: ~/Library/Application Support on macOS, %AppData% on Windows,
// ~/.config elsewhere.
func DatabasePath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "Cursor", "User", "globalStorage", "state.vscdb"), nil
}

// Extract reads the access token from the Cursor database at dbPath (the
// platform default when empty) and synthesizes the session credential. The
// database is opened read-only and closed before returning; nothing is
// cached between calls because the stored token may rotate.
func Extract(dbPath string) (*Info, error) {
	if dbPath == "" {
		p, err := DatabasePath()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseNotFound, err)
		}
		dbPath = p
	}

	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
	}

	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}
	defer db.Close()

	// sql.Open is lazy; Ping forces the read-only open so driver-level
	// failures surface here rather than as a query error.
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCannotOpen, err)
	}

	var jwt string
	err = db.QueryRow("SELECT value FROM ItemTable WHERE key = ?", accessTokenKey).Scan(&jwt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrTokenNotFound
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	userID, err := userIDFromJWT(jwt)
	if err != nil {
		return nil, err
	}

	return &Info{
		SessionToken: userID + "%3A%3A" + jwt,
		UserID:       userID,
	}, nil
}

// userIDFromJWT decodes the JWT payload (without verifying the signature)
// and extracts the account id from the 'sub' claim. The claim is shaped
// "provider|userId"; when no pipe is present the whole claim is the id.
func userIDFromJWT(jwt string) (string, error) {
	parts := strings.Split(jwt, ".")
	if len(parts) < 2 {
		return "", ErrInvalidJWT
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrInvalidJWT
	}

	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", ErrInvalidJWT
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return "", ErrMissingSubClaim
	}

	if fields := strings.Split(sub, "|"); len(fields) >= 2 {
		return fields[1], nil
	}
	return sub, nil
}
