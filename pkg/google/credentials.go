// Package google builds authenticated clients for the Workspace and Cloud APIs
// the pipeline talks to.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/angelmondragon/labaccess-backend/pkg/config"
)

const (
	ScopeSpreadsheets   = "https://www.googleapis.com/auth/spreadsheets"
	ScopeGmailSend      = "https://www.googleapis.com/auth/gmail.send"
	ScopeCalendarEvents = "https://www.googleapis.com/auth/calendar.events"
	ScopeDrive          = "https://www.googleapis.com/auth/drive"
	ScopeForms          = "https://www.googleapis.com/auth/forms"
	ScopeStorage        = "https://www.googleapis.com/auth/devstorage.read_write"
)

var errImpersonationNeedsKey = errors.New("impersonating a workspace user requires service account key credentials")

// CredentialsJSON returns the configured service account key, reading the
// credentials file when no inline JSON is set. Empty means application
// default credentials.
func CredentialsJSON(gcp config.GCPConfig) ([]byte, error) {
	if inline := strings.TrimSpace(gcp.CredentialsJSON); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(gcp.ApplicationCredentials)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	return data, nil
}

// TokenSource resolves an OAuth2 token source for scopes. A non-empty subject
// uses domain-wide delegation to act as that Workspace user.
func TokenSource(ctx context.Context, gcp config.GCPConfig, subject string, scopes ...string) (oauth2.TokenSource, error) {
	data, err := CredentialsJSON(gcp)
	if err != nil {
		return nil, err
	}
	subject = strings.TrimSpace(subject)

	if len(data) == 0 {
		if subject != "" {
			return nil, errImpersonationNeedsKey
		}
		creds, err := googleoauth.FindDefaultCredentials(ctx, scopes...)
		if err != nil {
			return nil, fmt.Errorf("finding default credentials: %w", err)
		}
		return creds.TokenSource, nil
	}

	if subject != "" {
		jwtCfg, err := googleoauth.JWTConfigFromJSON(data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("parsing service account credentials: %w", err)
		}
		jwtCfg.Subject = subject
		return jwtCfg.TokenSource(ctx), nil
	}

	creds, err := googleoauth.CredentialsFromJSON(ctx, data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return creds.TokenSource, nil
}

// HTTPClient returns an http.Client that attaches bearer tokens for scopes.
func HTTPClient(ctx context.Context, gcp config.GCPConfig, subject string, scopes ...string) (*http.Client, error) {
	ts, err := TokenSource(ctx, gcp, subject, scopes...)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, ts), nil
}

// ClientOptions returns the option set used to construct generated API services.
func ClientOptions(ctx context.Context, gcp config.GCPConfig, subject string, scopes ...string) ([]option.ClientOption, error) {
	ts, err := TokenSource(ctx, gcp, subject, scopes...)
	if err != nil {
		return nil, err
	}
	opts := []option.ClientOption{option.WithTokenSource(ts)}
	if project := strings.TrimSpace(gcp.ProjectID); project != "" {
		opts = append(opts, option.WithQuotaProject(project))
	}
	return opts, nil
}
