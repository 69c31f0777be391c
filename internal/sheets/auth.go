package sheets

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scope grants read and write access to spreadsheets.
const Scope = "https://www.googleapis.com/auth/spreadsheets"

// TokenSourceFromBase64 builds a service-account token source from
// base64-encoded credentials JSON, as kept in an environment variable.
func TokenSourceFromBase64(ctx context.Context, encoded string) (oauth2.TokenSource, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding spreadsheet credentials: %w", err)
	}
	return tokenSource(ctx, data)
}

// TokenSourceFromFile builds a service-account token source from a
// credentials JSON file.
func TokenSourceFromFile(ctx context.Context, path string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spreadsheet credentials: %w", err)
	}
	return tokenSource(ctx, data)
}

func tokenSource(ctx context.Context, data []byte) (oauth2.TokenSource, error) {
	creds, err := google.CredentialsFromJSON(ctx, data, Scope)
	if err != nil {
		return nil, fmt.Errorf("parsing spreadsheet credentials: %w", err)
	}
	return creds.TokenSource, nil
}
