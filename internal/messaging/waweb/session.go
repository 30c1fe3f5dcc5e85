package waweb

import (
	"context"
	"fmt"
	"io"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"

	// sqlite driver for the device store
	_ "github.com/mattn/go-sqlite3"

	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

// Open loads (or creates) the device session stored at dsn and returns an
// unconnected client.
func Open(ctx context.Context, dsn string, logger *logging.Logger) (*whatsmeow.Client, error) {
	if logger == nil {
		logger = logging.Default()
	}
	container, err := sqlstore.New(ctx, "sqlite3", dsn, newLogAdapter(logger, "store"))
	if err != nil {
		return nil, fmt.Errorf("waweb: open session store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("waweb: load device: %w", err)
	}
	return whatsmeow.NewClient(device, newLogAdapter(logger, "client")), nil
}

// Connect connects the client, printing a pairing QR code to out when the
// device has never been linked.
func Connect(ctx context.Context, client *whatsmeow.Client, out io.Writer, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.Default()
	}
	if client.Store.ID != nil {
		if err := client.Connect(); err != nil {
			return fmt.Errorf("waweb: connect: %w", err)
		}
		return nil
	}

	qrChan, err := client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("waweb: qr channel: %w", err)
	}
	if err := client.Connect(); err != nil {
		return fmt.Errorf("waweb: connect: %w", err)
	}
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			fmt.Fprintln(out, "Scan this code with WhatsApp > Linked devices:")
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, out)
		case "success":
			logger.Info("whatsapp web device linked")
			return nil
		default:
			logger.Info("whatsapp web pairing event", "event", evt.Event)
			if evt.Error != nil {
				return fmt.Errorf("waweb: pairing: %w", evt.Error)
			}
		}
	}
	return fmt.Errorf("waweb: pairing ended without success")
}

// logAdapter routes whatsmeow's printf logging into the structured logger.
type logAdapter struct {
	logger *logging.Logger
}

func newLogAdapter(logger *logging.Logger, module string) waLog.Logger {
	return &logAdapter{logger: logger.With("component", "whatsmeow", "module", module)}
}

func (l *logAdapter) Warnf(msg string, args ...any)  { l.logger.Warn(fmt.Sprintf(msg, args...)) }
func (l *logAdapter) Errorf(msg string, args ...any) { l.logger.Error(fmt.Sprintf(msg, args...)) }
func (l *logAdapter) Infof(msg string, args ...any)  { l.logger.Info(fmt.Sprintf(msg, args...)) }
func (l *logAdapter) Debugf(msg string, args ...any) { l.logger.Debug(fmt.Sprintf(msg, args...)) }

func (l *logAdapter) Sub(module string) waLog.Logger {
	return &logAdapter{logger: l.logger.With("submodule", module)}
}
