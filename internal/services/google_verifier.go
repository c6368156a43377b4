package services

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/idtoken"

	"pixelfeed/internal/apperrors"
)

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleIdentity is the provider-asserted identity extracted from a Google
// credential. Email is always present; verification fails without it.
type GoogleIdentity struct {
	ExternalID string
	Email      string
	FullName   string
}

// GoogleVerifier validates a Google-issued credential and extracts the
// stable external identity behind it.
type GoogleVerifier interface {
	Verify(ctx context.Context, credential string) (*GoogleIdentity, error)
}

// APIGoogleVerifier verifies credentials against Google. It first treats the
// credential as a signed ID token and checks it against Google's published
// keys and the configured client id; if that fails it falls back to calling
// the userinfo endpoint with the credential as a bearer access token.
type APIGoogleVerifier struct {
	clientID    string
	userinfoURL string
	httpClient  *http.Client
	log         *logrus.Logger
}

// NewAPIGoogleVerifier creates an APIGoogleVerifier for the given OAuth
// client id.
func NewAPIGoogleVerifier(clientID string, log *logrus.Logger) *APIGoogleVerifier {
	return &APIGoogleVerifier{
		clientID:    clientID,
		userinfoURL: googleUserinfoURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

// Verify implements GoogleVerifier.
func (v *APIGoogleVerifier) Verify(ctx context.Context, credential string) (*GoogleIdentity, error) {
	if v.clientID == "" {
		return nil, apperrors.New(apperrors.Internal, "google sign-in is not configured")
	}

	payload, err := idtoken.Validate(ctx, credential, v.clientID)
	if err == nil {
		return identityFromClaims(payload.Claims)
	}
	v.log.WithError(err).Debug("credential is not a valid google id token, trying userinfo")

	return v.fetchUserinfo(ctx, credential)
}

func identityFromClaims(claims map[string]any) (*GoogleIdentity, error) {
	ident := &GoogleIdentity{
		ExternalID: claimString(claims, "sub"),
		Email:      claimString(claims, "email"),
		FullName:   claimString(claims, "name"),
	}
	if ident.ExternalID == "" {
		return nil, apperrors.New(apperrors.Authentication, "invalid google credential")
	}
	if ident.Email == "" {
		return nil, apperrors.New(apperrors.Validation, "google account has no email address")
	}
	return ident, nil
}

func claimString(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

// fetchUserinfo treats the credential as an opaque access token. A non-2xx
// response means the token is bad; a transport failure means Google itself
// was unreachable and surfaces as an upstream error, not retried.
func (v *APIGoogleVerifier) fetchUserinfo(ctx context.Context, accessToken string) (*GoogleIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userinfoURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "failed to build userinfo request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Upstream, "google userinfo request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.New(apperrors.Authentication, "invalid google credential")
	}

	var body struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperrors.Wrap(apperrors.Upstream, "failed to decode userinfo response", err)
	}

	return identityFromClaims(map[string]any{
		"sub":   body.Sub,
		"email": body.Email,
		"name":  body.Name,
	})
}

var _ GoogleVerifier = (*APIGoogleVerifier)(nil)

// WithUserinfoURL overrides the userinfo endpoint. Tests point it at a local
// server.
func (v *APIGoogleVerifier) WithUserinfoURL(url string) *APIGoogleVerifier {
	v.userinfoURL = url
	return v
}
