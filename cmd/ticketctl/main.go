// Command ticketctl books seats against a ticketing server from the
// terminal.  The selection and any hold are kept in a snapshot file so
// that hold, checkout and release can run as separate invocations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-ticketing/internal/booking"
	"github.com/iliyamo/cinema-ticketing/internal/client"
	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/logger"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
)

const usage = `usage: ticketctl [flags] <command> [args]

commands:
  movies                      list movies on show
  screenings <movieId>        list upcoming screenings of a movie
  map <screeningId>           print the seat map
  hold <screeningId>          hold the seats given by -seats for -adult/-teen tickets
  release                     release the saved hold
  checkout                    open a payment for the saved hold
  confirm                     confirm a payment (-payment-key, -order, -amount)
  bookings                    list my bookings

flags:
`

type options struct {
	baseURL    string
	token      string
	email      string
	password   string
	seats      string
	adults     int
	teens      int
	snapshot   string
	paymentKey string
	orderID    string
	amount     int64
	timeout    time.Duration
}

func main() {
	config.LoadDotEnv()
	var o options
	flag.StringVar(&o.baseURL, "host", envOr("TICKET_API_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&o.token, "token", os.Getenv("TICKET_TOKEN"), "access token")
	flag.StringVar(&o.email, "email", os.Getenv("TICKET_EMAIL"), "login email (used when no token is given)")
	flag.StringVar(&o.password, "password", os.Getenv("TICKET_PASSWORD"), "login password")
	flag.StringVar(&o.seats, "seats", "", "comma separated seats, as labels (A1) or ids")
	flag.IntVar(&o.adults, "adult", 0, "adult tickets")
	flag.IntVar(&o.teens, "teen", 0, "teen tickets")
	flag.StringVar(&o.snapshot, "snapshot", envOr("TICKET_SNAPSHOT", ".ticketctl.json"), "snapshot file")
	flag.StringVar(&o.paymentKey, "payment-key", "", "payment key returned by the payment widget")
	flag.StringVar(&o.orderID, "order", "", "order id from checkout")
	flag.Int64Var(&o.amount, "amount", 0, "approved amount")
	flag.DurationVar(&o.timeout, "timeout", 30*time.Second, "overall timeout")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log := logger.New(os.Getenv("APP_ENV"), os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if err := run(ctx, os.Stdout, log, o, flag.Args()); err != nil {
		log.Debug("command failed", "cmd", flag.Arg(0), "err", err)
		fmt.Fprintln(os.Stderr, booking.Alert(err))
		os.Exit(1)
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func run(ctx context.Context, w io.Writer, log *slog.Logger, o options, args []string) error {
	c := client.New(o.baseURL, client.WithToken(o.token), client.WithLogger(log))

	switch args[0] {
	case "movies":
		return listMovies(ctx, w, c)
	case "screenings":
		id, err := argID(args, "movieId")
		if err != nil {
			return err
		}
		return listScreenings(ctx, w, c, id)
	case "map":
		id, err := argID(args, "screeningId")
		if err != nil {
			return err
		}
		sm, err := c.SeatMap(ctx, id)
		if err != nil {
			return err
		}
		renderMap(w, sm, nil)
		return nil
	}

	if err := authenticate(ctx, c, o); err != nil {
		return err
	}
	switch args[0] {
	case "hold":
		id, err := argID(args, "screeningId")
		if err != nil {
			return err
		}
		return hold(ctx, w, c, log, o, id)
	case "release":
		n, err := restore(ctx, c, log, o.snapshot)
		if err != nil {
			return err
		}
		if err := n.Release(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, "hold released")
		return booking.ClearSnapshot(o.snapshot)
	case "checkout":
		n, err := restore(ctx, c, log, o.snapshot)
		if err != nil {
			return err
		}
		order, err := n.Checkout(ctx)
		if errors.Is(err, booking.ErrHoldExpired) {
			_ = booking.ClearSnapshot(o.snapshot)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "order %s  %s원  %s\n", order.OrderID, won(order.Amount), order.OrderName)
		fmt.Fprintf(w, "customer key %s\nsuccess %s\nfail %s\n", order.CustomerKey, order.SuccessURL, order.FailURL)
		return nil
	case "confirm":
		if o.paymentKey == "" || o.orderID == "" || o.amount <= 0 {
			return errors.New("confirm needs -payment-key, -order and -amount")
		}
		b, err := c.ConfirmPayment(ctx, o.paymentKey, o.orderID, o.amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "booking %d %s\n", b.ID, b.Status)
		return booking.ClearSnapshot(o.snapshot)
	case "bookings":
		bs, err := c.MyBookings(ctx)
		if err != nil {
			return err
		}
		for _, b := range bs {
			fmt.Fprintf(w, "%d\tscreening %d\t%s\t%s원\n", b.ID, b.ScreeningID, b.Status, won(b.TotalAmount))
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func authenticate(ctx context.Context, c *client.Client, o options) error {
	if c.Token() != "" {
		return nil
	}
	if o.email == "" || o.password == "" {
		return errors.New("login required: pass -token or -email and -password")
	}
	_, err := c.Login(ctx, o.email, o.password)
	return err
}

func argID(args []string, name string) (uint64, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("missing <%s>", name)
	}
	id, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s %q", name, args[1])
	}
	return id, nil
}

func listMovies(ctx context.Context, w io.Writer, c *client.Client) error {
	ms, err := c.Movies(ctx)
	if err != nil {
		return err
	}
	for _, m := range ms {
		fmt.Fprintf(w, "%d\t%s\t%s\t%dmin\n", m.ID, m.Title, m.Rating, m.RuntimeMin)
	}
	return nil
}

func listScreenings(ctx context.Context, w io.Writer, c *client.Client, movieID uint64) error {
	ss, err := c.MovieScreenings(ctx, movieID)
	if err != nil {
		return err
	}
	for _, s := range ss {
		fmt.Fprintf(w, "%d\tscreen %d\t%s\t%s원\n", s.ID, s.ScreenID, s.StartsAt.Local().Format("2006-01-02 15:04"), won(s.BasePrice))
	}
	return nil
}

func hold(ctx context.Context, w io.Writer, c *client.Client, log *slog.Logger, o options, screeningID uint64) error {
	n := booking.New(c, screeningID, log)
	if err := n.Load(ctx); err != nil {
		return err
	}
	if err := n.SetCounts(pricing.Headcount{pricing.KindAdult: o.adults, pricing.KindTeen: o.teens}); err != nil {
		return err
	}
	ids, err := resolveSeats(n.SeatMap(), o.seats)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := n.Toggle(id); err != nil {
			return fmt.Errorf("seat %d: %w", id, err)
		}
	}
	if q, err := n.Quote(); err == nil {
		fmt.Fprintf(w, "예상 결제 금액 %s원\n", won(q.Total))
	}

	h, err := n.Submit(ctx)
	if err != nil {
		if errors.Is(err, booking.ErrSeatConflict) && n.SeatMap() != nil {
			renderMap(w, n.SeatMap(), n.Selected())
		}
		return err
	}
	if err := booking.SaveSnapshot(o.snapshot, n.Snapshot()); err != nil {
		log.Warn("snapshot not saved", "path", o.snapshot, "err", err)
	}
	fmt.Fprintf(w, "booking %d held", h.BookingID)
	if h.ExpiresAt != nil {
		fmt.Fprintf(w, " until %s", h.ExpiresAt.Local().Format("15:04:05"))
	}
	fmt.Fprintln(w)
	for _, line := range h.Trace {
		fmt.Fprintf(w, "  %s x%d  %s원\n", line.Kind, line.Count, won(line.UnitPrice))
		for _, st := range line.Steps {
			fmt.Fprintf(w, "    %s\n", st.Label)
		}
	}
	fmt.Fprintf(w, "total %s원\n", won(h.Amount))
	return nil
}

func restore(ctx context.Context, c *client.Client, log *slog.Logger, path string) (*booking.Negotiator, error) {
	s, err := booking.LoadSnapshot(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, booking.ErrNotHeld
	}
	if err != nil {
		return nil, err
	}
	n := booking.New(c, s.ScreeningID, log)
	if err := n.Load(ctx); err != nil {
		return nil, err
	}
	if err := n.Restore(s); err != nil {
		return nil, err
	}
	return n, nil
}

// resolveSeats maps "A1,B3" or "17,18" to seat ids on sm.
func resolveSeats(sm *model.SeatMap, list string) ([]uint64, error) {
	var ids []uint64
	for _, f := range strings.Split(list, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if id, err := strconv.ParseUint(f, 10, 64); err == nil {
			ids = append(ids, id)
			continue
		}
		id, ok := seatByLabel(sm, f)
		if !ok {
			return nil, fmt.Errorf("unknown seat %q", f)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("no seats given, use -seats")
	}
	return ids, nil
}

func seatByLabel(sm *model.SeatMap, label string) (uint64, bool) {
	label = strings.ToUpper(label)
	i := strings.IndexFunc(label, func(r rune) bool { return r >= '0' && r <= '9' })
	if i <= 0 {
		return 0, false
	}
	num, err := strconv.ParseUint(label[i:], 10, 32)
	if err != nil {
		return 0, false
	}
	for _, s := range sm.Seats {
		if s.Row == label[:i] && uint64(s.Number) == num {
			return s.ID, true
		}
	}
	return 0, false
}

// renderMap prints the grid: '.' available, 'h' held, 'x' sold,
// '#' blocked, '*' selected, ' ' no seat.
func renderMap(w io.Writer, sm *model.SeatMap, selected []uint64) {
	sel := map[uint64]bool{}
	for _, id := range selected {
		sel[id] = true
	}
	fmt.Fprint(w, "    ")
	for c := 1; c <= int(sm.Cols); c++ {
		fmt.Fprintf(w, "%d", c%10)
	}
	fmt.Fprintln(w)
	for r, row := range sm.Grid() {
		fmt.Fprintf(w, "%-3s ", model.IndexToRowLabel(r))
		for _, s := range row {
			fmt.Fprint(w, string(cell(s, sel)))
		}
		fmt.Fprintln(w)
	}
}

func cell(s *model.SeatMapSeat, sel map[uint64]bool) byte {
	if s == nil {
		return ' '
	}
	if sel[s.ID] {
		return '*'
	}
	switch s.Status {
	case model.MapAvailable:
		return '.'
	case model.MapHeld:
		return 'h'
	case model.MapSold:
		return 'x'
	}
	return '#'
}

func won(v int64) string { return pricing.Won(decimal.NewFromInt(v)) }
