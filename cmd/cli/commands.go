package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/and161185/place-keeper/internal/bookings"
	"github.com/and161185/place-keeper/internal/model"
	"github.com/and161185/place-keeper/internal/places"
)

// ---- auth ----

func authFlags(name string, args []string) (email, password string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	e := fs.String("email", "", "email")
	p := fs.String("password", "", "password")
	_ = fs.Parse(args)
	if *e == "" || *p == "" {
		fmt.Fprintln(os.Stderr, "need -email and -password")
		os.Exit(1)
	}
	return *e, *p
}

func (a *app) cmdRegister(ctx context.Context, args []string) {
	email, password := authFlags("register", args)
	sess, err := a.sessions.SignUp(ctx, email, password)
	if err != nil {
		fail(err)
	}
	if err := saveSession(sess); err != nil {
		fail(err)
	}
	fmt.Println(sess.UserID)
}

func (a *app) cmdLogin(ctx context.Context, args []string) {
	email, password := authFlags("login", args)
	sess, err := a.sessions.SignIn(ctx, email, password)
	if err != nil {
		fail(err)
	}
	if err := saveSession(sess); err != nil {
		fail(err)
	}
	fmt.Println("ok")
}

func (a *app) cmdLogout() {
	a.sessions.SignOut()
	clearSession()
	fmt.Println("ok")
}

func (a *app) cmdWhoami() {
	sess, ok := a.sessions.Current()
	if !ok {
		fail(errors.New("not logged in"))
	}
	printJSON(map[string]any{"userId": sess.UserID, "expiresAt": sess.TokenExpiry})
}

// ---- places ----

type placeRow struct {
	ID, Title, Owner string
	Price            float64
}

func (a *app) cmdPlaces(ctx context.Context) {
	list, err := a.places.FetchAll(ctx)
	if err != nil {
		fail(err)
	}
	rows := make([]placeRow, 0, len(list))
	for _, p := range list {
		rows = append(rows, placeRow{ID: p.ID, Title: p.Title, Owner: p.OwnerUserID, Price: p.Price})
	}
	printJSON(rows)
}

func (a *app) cmdPlace(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("place", flag.ExitOnError)
	id := fs.String("id", "", "place key")
	_ = fs.Parse(args)
	if *id == "" {
		fmt.Fprintln(os.Stderr, "need -id")
		os.Exit(1)
	}
	p, err := a.places.Get(ctx, *id)
	if err != nil {
		fail(err)
	}
	printJSON(p)
}

func (a *app) cmdOffer(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("offer", flag.ExitOnError)
	title := fs.String("title", "", "title")
	desc := fs.String("desc", "", "description")
	price := fs.Float64("price", 0, "price per night")
	from := fs.String("from", "", "available from (YYYY-MM-DD)")
	to := fs.String("to", "", "available to (YYYY-MM-DD)")
	imageURL := fs.String("image-url", "", "image URL")
	imageFile := fs.String("image-file", "", "image file to upload first")
	lat := fs.Float64("lat", 0, "latitude")
	lng := fs.Float64("lng", 0, "longitude")
	_ = fs.Parse(args)
	if *title == "" || *from == "" || *to == "" {
		fmt.Fprintln(os.Stderr, "need -title, -from and -to")
		os.Exit(1)
	}

	dateFrom, err := parseDate(*from)
	if err != nil {
		fail(err)
	}
	dateTo, err := parseDate(*to)
	if err != nil {
		fail(err)
	}

	img := *imageURL
	if *imageFile != "" {
		if a.uploader == nil {
			fail(errors.New("PK_UPLOAD_URL is not configured"))
		}
		f, err := os.Open(*imageFile)
		if err != nil {
			fail(err)
		}
		res, err := a.uploader.Upload(ctx, filepath.Base(*imageFile), f)
		_ = f.Close()
		if err != nil {
			fail(err)
		}
		img = res.URL
	}

	var loc model.GeoPoint
	if *lat != 0 || *lng != 0 {
		loc = model.GeoPoint{Lat: *lat, Lng: *lng}
		if a.geocoder != nil {
			if addr, err := a.geocoder.ReverseGeocode(ctx, *lat, *lng); err == nil {
				loc.Address = addr
			}
		}
	}

	p, err := a.places.Add(ctx, places.NewPlace{
		Title:         *title,
		Description:   *desc,
		ImageURL:      img,
		Price:         *price,
		AvailableFrom: dateFrom,
		AvailableTo:   dateTo,
		Location:      loc,
	})
	if err != nil {
		fail(err)
	}
	printJSON(p)
}

func (a *app) cmdEditPlace(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("edit-place", flag.ExitOnError)
	id := fs.String("id", "", "place key")
	title := fs.String("title", "", "title")
	desc := fs.String("desc", "", "description")
	price := fs.Float64("price", 0, "price per night")
	imageURL := fs.String("image-url", "", "image URL")
	_ = fs.Parse(args)
	if *id == "" || *title == "" {
		fmt.Fprintln(os.Stderr, "need -id and -title")
		os.Exit(1)
	}

	p, err := a.places.Update(ctx, *id, places.Patch{
		Title:       *title,
		Description: *desc,
		ImageURL:    *imageURL,
		Price:       *price,
	})
	if err != nil {
		fail(err)
	}
	printJSON(p)
}

// ---- bookings ----

type bookingRow struct {
	ID, Place, Guest string
	Guests           int
}

func (a *app) cmdBookings(ctx context.Context) {
	list, err := a.bookings.FetchAll(ctx)
	if err != nil {
		fail(err)
	}
	rows := make([]bookingRow, 0, len(list))
	for _, b := range list {
		rows = append(rows, bookingRow{
			ID:     b.ID,
			Place:  b.PlaceTitle,
			Guest:  b.GuestFirstName + " " + b.GuestLastName,
			Guests: b.GuestCount,
		})
	}
	printJSON(rows)
}

func (a *app) cmdBook(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("book", flag.ExitOnError)
	placeID := fs.String("place", "", "place key")
	first := fs.String("first", "", "guest first name")
	last := fs.String("last", "", "guest last name")
	guests := fs.Int("guests", 1, "guest count")
	from := fs.String("from", "", "booked from (YYYY-MM-DD)")
	to := fs.String("to", "", "booked to (YYYY-MM-DD)")
	_ = fs.Parse(args)
	if *placeID == "" || *first == "" || *from == "" || *to == "" {
		fmt.Fprintln(os.Stderr, "need -place, -first, -from and -to")
		os.Exit(1)
	}

	dateFrom, err := parseDate(*from)
	if err != nil {
		fail(err)
	}
	dateTo, err := parseDate(*to)
	if err != nil {
		fail(err)
	}

	place, err := a.places.Get(ctx, *placeID)
	if err != nil {
		fail(err)
	}
	b, err := a.bookings.Add(ctx, bookings.NewBooking{
		Place:          place,
		GuestFirstName: *first,
		GuestLastName:  *last,
		GuestCount:     *guests,
		BookedFrom:     dateFrom,
		BookedTo:       dateTo,
	})
	if err != nil {
		fail(err)
	}
	printJSON(b)
}

func (a *app) cmdCancel(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	id := fs.String("id", "", "booking key")
	_ = fs.Parse(args)
	if *id == "" {
		fmt.Fprintln(os.Stderr, "need -id")
		os.Exit(1)
	}
	// cached bookings are needed to locate the cancel target
	if _, err := a.bookings.FetchAll(ctx); err != nil {
		fail(err)
	}
	if err := a.bookings.Cancel(ctx, *id); err != nil {
		fail(err)
	}
	fmt.Println("ok")
}

// ---- adapters ----

func (a *app) cmdGeocode(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("geocode", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "latitude")
	lng := fs.Float64("lng", 0, "longitude")
	_ = fs.Parse(args)
	if a.geocoder == nil {
		fail(errors.New("PK_MAPS_API_KEY is not configured"))
	}
	addr, err := a.geocoder.ReverseGeocode(ctx, *lat, *lng)
	if err != nil {
		fail(err)
	}
	fmt.Println(addr)
}

func (a *app) cmdUpload(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	file := fs.String("file", "", "image file")
	_ = fs.Parse(args)
	if *file == "" {
		fmt.Fprintln(os.Stderr, "need -file")
		os.Exit(1)
	}
	if a.uploader == nil {
		fail(errors.New("PK_UPLOAD_URL is not configured"))
	}
	f, err := os.Open(*file)
	if err != nil {
		fail(err)
	}
	defer f.Close()
	res, err := a.uploader.Upload(ctx, filepath.Base(*file), f)
	if err != nil {
		fail(err)
	}
	printJSON(res)
}

// cmdWatch streams the places feed until interrupted: the current snapshot
// arrives immediately, then every committed replacement.
func (a *app) cmdWatch() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sub := a.places.Feed().Subscribe()
	defer a.places.Feed().Unsubscribe(sub)

	go func() {
		if _, err := a.places.FetchAll(ctx); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case list := <-sub.C:
			rows := make([]placeRow, 0, len(list))
			for _, p := range list {
				rows = append(rows, placeRow{ID: p.ID, Title: p.Title, Owner: p.OwnerUserID, Price: p.Price})
			}
			printJSON(rows)
		}
	}
}
