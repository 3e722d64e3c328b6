package wa

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/matheus3301/autoreader/internal/bus"
	"github.com/matheus3301/autoreader/internal/status"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// Connect opens the WhatsApp connection. Without stored credentials it
// starts QR pairing first and writes each code to qrOut. ctx must stay
// alive for as long as pairing may take.
func (a *Adapter) Connect(ctx context.Context, machine *status.Machine, b *bus.Bus, qrOut io.Writer) error {
	if a.IsLoggedIn() {
		_ = machine.Transition(status.Connecting)
		a.logger.Info("connecting to WhatsApp", zap.String("phone", a.PhoneNumber()))
		if err := a.client.Connect(); err != nil {
			_ = machine.Transition(status.Error)
			return fmt.Errorf("connect: %w", err)
		}
		return nil
	}

	// GetQRChannel must be called before Connect.
	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get QR channel: %w", err)
	}
	_ = machine.Transition(status.PairingRequired)
	if err := a.client.Connect(); err != nil {
		_ = machine.Transition(status.Error)
		return fmt.Errorf("connect: %w", err)
	}

	go func() {
		for item := range qrChan {
			switch item.Event {
			case "code":
				_, _ = fmt.Fprintf(qrOut, "\nScan this QR code with WhatsApp (Linked devices):\n\n%s\n", RenderQR(item.Code))
				b.Publish(bus.Event{Kind: bus.KindPairingCode, Payload: item.Code})
			case "success":
				a.logger.Info("pairing succeeded")
				_ = machine.Transition(status.Connecting)
				return
			case "timeout":
				a.logger.Error("pairing timed out, restart to get a new code")
				_ = machine.Transition(status.Error)
				return
			default:
				if item.Error != nil {
					a.logger.Error("pairing failed", zap.Error(item.Error))
					_ = machine.Transition(status.Error)
					return
				}
			}
		}
	}()
	return nil
}

// RenderQR converts a string to a compact QR code using Unicode
// half-block characters.
func RenderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		sb.WriteString("  ")
		for x := 0; x < cols; x++ {
			top := bitmap[y][x]
			bot := y+1 < rows && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
