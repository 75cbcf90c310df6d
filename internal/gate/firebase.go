// Package gate controls the boom barriers through Firebase Realtime
// Database. The barrier firmware watches /gate1 (entry) and /gate2 (exit)
// for a status payload. The controller is constructed once at startup and
// passed by reference; there is no process-wide instance.
package gate

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Side identifies which camera saw the vehicle, and therefore which
// barrier to drive.
type Side string

const (
	SideIn  Side = "in"
	SideOut Side = "out"
)

const (
	statusOpen   = "open"
	statusClosed = "closed"
)

// State is the payload written to a barrier ref. The firmware acts on
// Status; the rest is audit context.
type State struct {
	Status         string `json:"status"`
	Vehicle        string `json:"vehicle,omitempty"`
	Timestamp      int64  `json:"timestamp"`
	AutoCloseAfter int64  `json:"auto_close_after,omitempty"`
}

// Config carries the Firebase connection settings.
type Config struct {
	DatabaseURL     string
	CredentialsFile string
	// AutoClose drops the barrier back to closed this long after opening.
	// Zero disables the timer; the caller closes explicitly.
	AutoClose time.Duration
}

// Controller drives the two barrier refs.
type Controller struct {
	entry     *db.Ref
	exit      *db.Ref
	autoClose time.Duration
	log       *zap.Logger
}

// New connects to the Realtime Database. A missing credentials file or an
// unreachable database is a construction failure; the service should not
// start half-armed.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Controller, error) {
	if log == nil {
		log = zap.NewNop()
	}

	app, err := firebase.NewApp(ctx,
		&firebase.Config{DatabaseURL: cfg.DatabaseURL},
		option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase database: %w", err)
	}

	return &Controller{
		entry:     client.NewRef("gate1"),
		exit:      client.NewRef("gate2"),
		autoClose: cfg.AutoClose,
		log:       log,
	}, nil
}

// Actuate opens the barrier for a matched vehicle. The match decision is
// the caller's: this layer never looks plates up anywhere. Returns whether
// the barrier was opened.
func (c *Controller) Actuate(ctx context.Context, vehicleText string, side Side, matched bool) (bool, error) {
	if !matched {
		c.log.Debug("gate not opened, plate not matched",
			zap.String("vehicle", vehicleText),
			zap.String("side", string(side)))
		return false, nil
	}

	ref, err := c.ref(side)
	if err != nil {
		return false, err
	}

	state := State{
		Status:         statusOpen,
		Vehicle:        vehicleText,
		Timestamp:      time.Now().Unix(),
		AutoCloseAfter: int64(c.autoClose.Seconds()),
	}
	if err := ref.Set(ctx, state); err != nil {
		return false, fmt.Errorf("open %s gate: %w", side, err)
	}
	c.log.Info("gate opened",
		zap.String("vehicle", vehicleText),
		zap.String("side", string(side)))

	if c.autoClose > 0 {
		go c.closeAfter(ref, side, c.autoClose)
	}
	return true, nil
}

// Close drops the barrier for one side.
func (c *Controller) Close(ctx context.Context, side Side) error {
	ref, err := c.ref(side)
	if err != nil {
		return err
	}
	state := State{Status: statusClosed, Timestamp: time.Now().Unix()}
	if err := ref.Set(ctx, state); err != nil {
		return fmt.Errorf("close %s gate: %w", side, err)
	}
	c.log.Info("gate closed", zap.String("side", string(side)))
	return nil
}

// Status reads both barrier refs. A ref that cannot be read reports as
// closed.
func (c *Controller) Status(ctx context.Context) map[string]State {
	status := map[string]State{
		"gate1": {Status: statusClosed},
		"gate2": {Status: statusClosed},
	}

	var state State
	if err := c.entry.Get(ctx, &state); err == nil && state.Status != "" {
		status["gate1"] = state
	}
	state = State{}
	if err := c.exit.Get(ctx, &state); err == nil && state.Status != "" {
		status["gate2"] = state
	}
	return status
}

func (c *Controller) closeAfter(ref *db.Ref, side Side, d time.Duration) {
	time.Sleep(d)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	state := State{Status: statusClosed, Timestamp: time.Now().Unix()}
	if err := ref.Set(ctx, state); err != nil {
		c.log.Warn("auto-close failed", zap.String("side", string(side)), zap.Error(err))
	}
}

func (c *Controller) ref(side Side) (*db.Ref, error) {
	switch side {
	case SideIn:
		return c.entry, nil
	case SideOut:
		return c.exit, nil
	default:
		return nil, fmt.Errorf("unknown camera side %q", side)
	}
}
