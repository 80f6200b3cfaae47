package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mkovalchuk/ratechat/internal/exchange"
)

const (
	commandMarker   = "/"
	exchangeCommand = "/exchange"
	defaultDayArg   = "1"
)

// CommandKind tags the result of parsing one inbound chat line.
type CommandKind int

const (
	// KindChat is a plain chat message with no command marker.
	KindChat CommandKind = iota
	// KindExchange is the recognized exchange command.
	KindExchange
	// KindUnknown is a marker-prefixed line that is not a recognized
	// command. Such lines are echoed as chat and otherwise ignored.
	KindUnknown
)

// Command is the parsed form of one inbound line.
type Command struct {
	Kind CommandKind
	Arg  string
	Raw  string
}

// ParseCommand classifies an inbound line. Parsing is pure: it never touches
// the registry, the fetcher, or the audit log.
func ParseCommand(text string) Command {
	if !strings.HasPrefix(text, commandMarker) {
		return Command{Kind: KindChat, Raw: text}
	}

	fields := strings.Fields(text)
	if len(fields) == 0 || fields[0] != exchangeCommand {
		return Command{Kind: KindUnknown, Raw: text}
	}

	arg := defaultDayArg
	if len(fields) > 1 {
		arg = fields[1]
	}
	return Command{Kind: KindExchange, Arg: arg, Raw: text}
}

// RateFetcher is the dispatcher's view of the exchange fetch batch.
type RateFetcher interface {
	Fetch(ctx context.Context, q exchange.Query) ([]exchange.RateTable, error)
}

// AuditSink records command outcomes. Implementations must be best effort and
// never fail the caller.
type AuditSink interface {
	Record(user, command string, success bool, err error)
}

// Dispatcher turns inbound session messages into broadcasts: every line is
// echoed as chat, and the exchange command additionally drives a rate fetch,
// a formatted table broadcast, and an audit record.
type Dispatcher struct {
	hub     *Hub
	fetcher RateFetcher
	audit   AuditSink
	log     *slog.Logger
}

// NewDispatcher wires a Dispatcher to the hub, fetcher, and audit sink.
func NewDispatcher(hub *Hub, fetcher RateFetcher, audit AuditSink, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		hub:     hub,
		fetcher: fetcher,
		audit:   audit,
		log:     log,
	}
}

// Dispatch processes one inbound line from a session. The chat echo always
// goes out first, including to the sender; command handling follows.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *Session, text string) {
	d.hub.Broadcast(fmt.Sprintf("%s: %s", sess.Name(), text))

	cmd := ParseCommand(text)
	if cmd.Kind != KindExchange {
		return
	}
	d.runExchange(ctx, sess, cmd)
}

func (d *Dispatcher) runExchange(ctx context.Context, sess *Session, cmd Command) {
	days, err := strconv.Atoi(cmd.Arg)
	if err != nil || days < 0 {
		// Validation failure never reaches the fetcher.
		msg := fmt.Sprintf("'%s' is not a number.", cmd.Arg)
		d.hub.Broadcast(msg)
		d.audit.Record(sess.Name(), cmd.Raw, false, errors.New(msg))
		return
	}

	d.hub.Broadcast(exchange.LoadingLine())

	tables, err := d.fetchTables(ctx, days)
	if err != nil {
		// The day-range bound is the fetcher's contract; its error is
		// relayed to the clients as-is.
		d.hub.Broadcast(err.Error())
		d.audit.Record(sess.Name(), cmd.Raw, false, err)
		return
	}

	d.hub.Broadcast(exchange.HeaderLine)
	for _, table := range tables {
		d.hub.Broadcast(exchange.DateLine(table.Date))
		d.hub.Broadcast(exchange.ColumnHeader())
		for _, code := range table.Currencies() {
			d.hub.Broadcast(exchange.RateLine(table.Rates[code]))
		}
	}

	d.audit.Record(sess.Name(), cmd.Raw, true, nil)
}

func (d *Dispatcher) fetchTables(ctx context.Context, days int) ([]exchange.RateTable, error) {
	q, err := exchange.NewQuery(days)
	if err != nil {
		return nil, err
	}
	return d.fetcher.Fetch(ctx, q)
}
