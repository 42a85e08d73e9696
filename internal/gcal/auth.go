package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// TokenSourceOption builds a client option from a previously provisioned
// OAuth token file. Interactive token acquisition is out of scope: the token
// must already exist (it is typically obtained once on a workstation and
// shipped alongside the config). Refresh against the refresh token is
// handled transparently by the token source.
func TokenSourceOption(ctx context.Context, credentialsFile, tokenFile string) (option.ClientOption, error) {
	credData, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("gcal: reading credentials file: %w", err)
	}
	conf, err := google.ConfigFromJSON(credData, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("gcal: parsing credentials file: %w", err)
	}

	tokData, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("gcal: reading token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokData, &tok); err != nil {
		return nil, fmt.Errorf("gcal: parsing token file: %w", err)
	}

	return option.WithTokenSource(conf.TokenSource(ctx, &tok)), nil
}
