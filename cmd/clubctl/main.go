// Command clubctl is a small terminal client for the clubs backend. It
// exercises each credential acquisition flow: requesting and redeeming
// magic links, running the delegated provider login through a loopback
// callback listener, and logging out.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/NLstn/clubauth"
	fsstore "github.com/NLstn/clubauth/stores/fs"
)

const loopbackAddr = "127.0.0.1:8910"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("no command given")
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := clubauth.LoadConfig()
	if err != nil {
		return err
	}

	store, err := fsstore.New("", "clubs")
	if err != nil {
		return err
	}

	client := clubauth.New(cfg, store,
		clubauth.WithLogger(logger),
		clubauth.WithNavigator(clubauth.NavigatorFunc(func(target string) {
			fmt.Println("open in your browser:", target)
		})),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch args[0] {
	case "login":
		return login(ctx, client, args[1:])
	case "verify":
		return verify(ctx, client, args[1:])
	case "whoami":
		return whoami(ctx, client)
	case "logout":
		return logout(ctx, client, args[1:])
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  clubctl login --email <address>   request a magic link by email
  clubctl login --provider          log in through the identity provider
  clubctl verify --token <token>    redeem a magic-link token
  clubctl whoami                    show the logged-in profile
  clubctl logout [--provider]       log out, optionally revoking at the provider`)
}

func login(ctx context.Context, client *clubauth.Client, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "address to send the magic link to")
	provider := fs.Bool("provider", false, "use the delegated identity-provider flow")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *provider {
		return providerLogin(ctx, client)
	}
	if *email == "" {
		return fmt.Errorf("login needs --email or --provider")
	}

	if err := client.RequestMagicLink(ctx, *email); err != nil {
		return err
	}
	fmt.Println("magic link sent; redeem it with: clubctl verify --token <token>")
	return nil
}

func verify(ctx context.Context, client *clubauth.Client, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	token := fs.String("token", "", "token from the emailed link")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return fmt.Errorf("verify needs --token")
	}

	result, err := client.VerifyMagicLink(ctx, *token)
	if err != nil {
		fmt.Fprintln(os.Stderr, "verification failed; request a new link with: clubctl login --email <address>")
		return err
	}

	if !result.ProfileComplete {
		fmt.Println("logged in; finish profile setup at", result.RedirectTo)
	} else {
		fmt.Println("logged in")
	}
	return nil
}

// providerLogin runs the full delegated round-trip: a loopback listener
// receives the provider's redirect while the user completes the login in a
// browser.
func providerLogin(ctx context.Context, client *clubauth.Client) error {
	nonce := uuid.NewString()

	type callback struct {
		code  string
		state string
	}
	received := make(chan callback, 1)

	router := mux.NewRouter()
	router.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("nonce") != nonce {
			http.Error(w, "unexpected callback", http.StatusBadRequest)
			return
		}
		received <- callback{
			code:  r.URL.Query().Get("code"),
			state: r.URL.Query().Get("state"),
		}
		fmt.Fprintln(w, "Login received. You can close this tab.")
	}).Methods(http.MethodGet)

	server := &http.Server{Addr: loopbackAddr, Handler: router}
	go server.ListenAndServe()
	defer server.Shutdown(context.Background())

	redirectTarget := fmt.Sprintf("http://%s/callback?nonce=%s", loopbackAddr, nonce)
	authURL, err := client.ProviderLoginStart(ctx, redirectTarget)
	if err != nil {
		return err
	}
	fmt.Println("open in your browser:", authURL)

	select {
	case cb := <-received:
		if _, err := client.ProviderCallback(ctx, cb.code, cb.state); err != nil {
			return err
		}
		fmt.Println("logged in")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for the provider callback")
	}
}

func whoami(ctx context.Context, client *clubauth.Client) error {
	if !client.IsLoggedIn() {
		return fmt.Errorf("not logged in")
	}

	profile, err := client.Session().Profile(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%s <%s>\n", profile.Name, profile.Email)
	if !profile.SetupCompleted {
		fmt.Println("profile setup is incomplete")
	}
	return nil
}

func logout(ctx context.Context, client *clubauth.Client, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	provider := fs.Bool("provider", false, "also revoke the identity-provider session")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client.Logout(ctx, *provider)
	fmt.Println("logged out")
	return nil
}
