// Command pk is a CLI client for the place-keeper backend: browse, offer,
// book and cancel places against the remote store under an authenticated
// session.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/and161185/place-keeper/internal/bookings"
	"github.com/and161185/place-keeper/internal/config"
	"github.com/and161185/place-keeper/internal/model"
	"github.com/and161185/place-keeper/internal/places"
	"github.com/and161185/place-keeper/internal/remote"
	"github.com/and161185/place-keeper/internal/remote/firebase"
	"github.com/and161185/place-keeper/internal/session"
)

// ---- session file ----

type sessionFile struct {
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "place-keeper")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "place-keeper")
}

func sessionPath() string { return filepath.Join(cfgDir(), "session.json") }

func saveSession(sess model.Session) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.Create(sessionPath())
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(sessionFile{UserID: sess.UserID, AccessToken: sess.Token, ExpiresAt: sess.TokenExpiry})
}

func loadSession() (model.Session, error) {
	b, err := os.ReadFile(sessionPath())
	if err != nil {
		return model.Session{}, err
	}
	var sf sessionFile
	if err := json.Unmarshal(b, &sf); err != nil {
		return model.Session{}, err
	}
	sess := model.Session{UserID: sf.UserID, Token: sf.AccessToken, TokenExpiry: sf.ExpiresAt}
	if !sess.Valid(time.Now()) {
		return model.Session{}, errors.New("no valid session (login required)")
	}
	return sess, nil
}

func clearSession() {
	_ = os.Remove(sessionPath())
}

// ---- wiring ----

type app struct {
	cfg      *config.Config
	log      *zap.Logger
	sessions *session.Store
	places   places.Service
	bookings bookings.Service
	uploader remote.Uploader
	geocoder remote.Geocoder
}

// newApp constructs every component explicitly and restores a saved session
// when one is present.
func newApp(debug bool) (*app, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var log *zap.Logger
	if debug {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}

	client := firebase.NewClient(cfg.HTTPTimeout(), log)
	store := firebase.NewStore(client, cfg.StoreURL)
	identity := firebase.NewIdentity(client, cfg.IdentityURL, cfg.APIKey)

	sessions := session.NewStore(identity, log)
	if sess, err := loadSession(); err == nil {
		sessions.Restore(sess)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		sessions: sessions,
		places:   places.NewService(store, sessions, log),
		bookings: bookings.NewService(store, sessions, log),
	}
	if cfg.UploadURL != "" {
		a.uploader = firebase.NewUploader(client, cfg.UploadURL)
	}
	if cfg.MapsAPIKey != "" {
		a.geocoder = firebase.NewGeocoder(client, cfg.GeocodeURL, cfg.MapsAPIKey)
	}
	return a, nil
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

const dateLayout = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `pk CLI
Usage:
  pk [-debug] <cmd> [args]

Configuration comes from the environment (or a .env file):
  PK_STORE_URL, PK_API_KEY, PK_IDENTITY_URL, PK_GEOCODE_URL,
  PK_MAPS_API_KEY, PK_UPLOAD_URL, PK_HTTP_TIMEOUT_SECONDS

Commands:
  version
  register   -email <e> -password <p>              (saves session)
  login      -email <e> -password <p>              (saves session)
  logout
  whoami
  places                                           (list offered places)
  place      -id <key>
  offer      -title -desc -price -from -to [-image-url | -image-file] [-lat -lng]
  edit-place -id <key> -title -desc -price -image-url
  bookings                                         (list my bookings)
  book       -place <key> -first -last -guests -from -to
  cancel     -id <key>
  geocode    -lat <f> -lng <f>
  upload     -file <path>
  watch                                            (stream the places feed)
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands.
func main() {
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	if cmd == "version" {
		fmt.Printf("pk %s (%s)\n", version, buildDate)
		return
	}

	a, err := newApp(*debug)
	if err != nil {
		fail(err)
	}
	defer func() { _ = a.log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*a.cfg.HTTPTimeout())
	defer cancel()

	switch cmd {
	case "register":
		a.cmdRegister(ctx, args)
	case "login":
		a.cmdLogin(ctx, args)
	case "logout":
		a.cmdLogout()
	case "whoami":
		a.cmdWhoami()
	case "places":
		a.cmdPlaces(ctx)
	case "place":
		a.cmdPlace(ctx, args)
	case "offer":
		a.cmdOffer(ctx, args)
	case "edit-place":
		a.cmdEditPlace(ctx, args)
	case "bookings":
		a.cmdBookings(ctx)
	case "book":
		a.cmdBook(ctx, args)
	case "cancel":
		a.cmdCancel(ctx, args)
	case "geocode":
		a.cmdGeocode(ctx, args)
	case "upload":
		a.cmdUpload(ctx, args)
	case "watch":
		a.cmdWatch()
	default:
		usage()
	}
}
