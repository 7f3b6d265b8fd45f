package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/rilctl/internal/logging"
	"github.com/danmuck/rilctl/internal/protocol"
	"github.com/danmuck/rilctl/internal/protocol/parcel"
	"github.com/danmuck/rilctl/internal/testutil/fakedaemon"
)

func main() {
	socket := flag.String("socket", "/tmp/rild.sock", "unix socket path to listen on")
	imei := flag.String("imei", "000000000000000", "IMEI reported by GET_IMEI")
	imsi := flag.String("imsi", "001010000000000", "IMSI reported by GET_IMSI")
	baseband := flag.String("baseband", "rilsim-1.0", "version reported by BASEBAND_VERSION")
	signalEvery := flag.Duration("signal-interval", 10*time.Second, "period of unsolicited signal strength reports, 0 disables")
	flag.Parse()

	logging.ConfigureRuntime()
	logger := logging.Component("rilsim")

	d, err := fakedaemon.Listen(*socket, fakedaemon.WithResponder(fakedaemon.DefaultResponder(fakedaemon.Identity{
		IMEI:     *imei,
		IMSI:     *imsi,
		Baseband: *baseband,
	})))
	if err != nil {
		logger.Fatal().Err(err).Str("socket", *socket).Msg("listen")
	}
	defer d.Close()
	logger.Info().Str("socket", d.Path()).Msg("simulated daemon listening")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		for ctx.Err() == nil {
			req, err := d.NextRequest(time.Second)
			if err != nil {
				continue
			}
			logger.Info().Int32("serial", req.Serial).Str("request", protocol.RequestName(req.Type)).Int("body_bytes", len(req.Body)).Msg("request")
		}
	}()

	go func() {
		for ctx.Err() == nil {
			if err := d.WaitConnected(time.Second); err != nil {
				continue
			}
			logger.Info().Int("connections", d.Connections()).Msg("client connected")
			w := parcel.NewWriter(4)
			w.WriteInt32(int32(protocol.RadioSIMReady))
			if err := d.SendUnsolicited(protocol.EventRadioStateChanged, w.Bytes()); err != nil {
				logger.Warn().Err(err).Msg("radio state push failed")
			}
		}
	}()

	if *signalEvery <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(*signalEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w := parcel.NewWriter(32)
			w.WriteInt32s([]int32{17, 99, -1, -1, -1, -1, -1})
			err := d.SendUnsolicited(protocol.EventSignalStrength, w.Bytes())
			if err != nil && !errors.Is(err, fakedaemon.ErrNotConnected) {
				logger.Warn().Err(err).Msg("signal strength push failed")
			}
		}
	}
}
