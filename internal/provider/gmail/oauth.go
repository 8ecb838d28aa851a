package gmail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/lu-zhengda/inboxsync/internal/config"
	"github.com/lu-zhengda/inboxsync/internal/provider"
)

// OAuth runs the consent flow and refresh-token grants for one OAuth client.
// No credentials are embedded in the binary; they come from config.
type OAuth struct {
	config *oauth2.Config
}

// NewOAuth builds the OAuth client from the [gmail] config section.
// A non-empty TokenURL replaces Google's token endpoint.
func NewOAuth(cfg config.GmailConfig) *OAuth {
	endpoint := google.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	return &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       []string{gmailapi.GmailReadonlyScope},
			Endpoint:     endpoint,
		},
	}
}

// Refresh performs the refresh-token grant. A response the token endpoint
// answers with an error status is reported as provider.ErrTokenRejected.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	token, err := o.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return nil, fmt.Errorf("%w: %s", provider.ErrTokenRejected, retrieveMessage(rerr))
		}
		return nil, fmt.Errorf("failed to refresh gmail token: %w", err)
	}
	return token, nil
}

func retrieveMessage(err *oauth2.RetrieveError) string {
	if err.ErrorDescription != "" {
		return err.ErrorDescription
	}
	if err.ErrorCode != "" {
		return err.ErrorCode
	}
	if err.Response != nil {
		return err.Response.Status
	}
	return string(err.Body)
}

// Authenticate runs the installed-app consent flow on a loopback listener
// and exchanges the returned code for a token. The consent URL is written
// to out.
func (o *OAuth) Authenticate(ctx context.Context, out io.Writer) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	cfg := *o.config
	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d", port)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			select {
			case errCh <- fmt.Errorf("no code in callback: %s", r.URL.Query().Get("error")):
			default:
			}
			fmt.Fprint(w, "Authentication failed. You can close this tab.")
			return
		}
		select {
		case codeCh <- code:
		default:
		}
		fmt.Fprint(w, "Authentication successful! You can close this tab.")
	})

	server := &http.Server{Handler: mux}
	go server.Serve(listener)
	defer server.Shutdown(context.Background())

	url := cfg.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(out, "\nOpen this URL in your browser to authorize inboxsync:\n\n  %s\n\nWaiting for authorization...\n", url)

	select {
	case code := <-codeCh:
		token, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange auth code: %w", err)
		}
		return token, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ provider.Refresher = (*OAuth)(nil)
