package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/aisrx/pkg/dsp/stream"
	"github.com/norasector/aisrx/pkg/dsp/viz"
	"github.com/norasector/aisrx/pkg/receiver"
	"github.com/norasector/aisrx/pkg/receiver/config"
	"github.com/norasector/aisrx/pkg/receiver/device"
	"github.com/norasector/aisrx/pkg/receiver/device/file"
	hackrfDevice "github.com/norasector/aisrx/pkg/receiver/device/hackrf"
	"github.com/norasector/aisrx/pkg/receiver/device/rtlsdr"
	"github.com/norasector/aisrx/pkg/receiver/output"
	"github.com/norasector/aisrx/pkg/util"
	"github.com/samuel/go-hackrf/hackrf"
	"golang.org/x/sync/errgroup"
)

const (
	fileByteReadSize = 262144
	fileReadDelay    = time.Microsecond * 16384
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.StringP("config", "c", "aisrx.yaml", "YAML config file")
	verbose := flag.BoolP("verbose", "v", false, "debug logging")
	playback := flag.String("playback", "", "play back a raw capture instead of using a device")
	realtime := flag.Bool("realtime", true, "pace file playback at roughly the capture rate")
	bitsLocation := flag.String("bits", "", "write recovered bits to <prefix>_<channel>.bits")
	flag.Parse()

	if *verbose {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}

	opts, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configFile).Msg("error loading config")
	}
	if *playback != "" {
		opts.PlaybackLocation = *playback
		opts.Device = config.DeviceFile
		if err := opts.Validate(); err != nil {
			log.Fatal().Err(err).Msg("invalid playback settings")
		}
	}
	if *bitsLocation != "" {
		opts.BitsLocation = *bitsLocation
	}

	var dev device.Device

	switch opts.Device {
	case config.DeviceRTLSDR:
		log.Info().Str("device", "rtlsdr").Msg("initializing device...")
		dev, err = rtlsdr.NewRTLSDRDevice(opts.RTLSDRDeviceIndex, opts.Gain)
		if err != nil {
			log.Fatal().Str("device", "rtlsdr").Err(err).Msg("failed to initialize RTLSDR")
		}
	case config.DeviceFile:
		log.Info().Str("device", "file").Str("format", opts.SampleFormat).Msg("initializing device...")
		format := stream.FormatCU8
		if opts.SampleFormat == "cs8" {
			format = stream.FormatCS8
		}
		delay := time.Duration(0)
		if *realtime {
			// one read is fileByteReadSize/2 samples
			delay = time.Duration(float64(time.Second) * fileByteReadSize / 2 / float64(opts.SampleRate))
		}
		dev, err = file.NewFileDevice(opts.PlaybackLocation, format, fileByteReadSize, delay)
		if err != nil {
			log.Fatal().Str("device", "file").Err(err).Msg("failed to init file reader")
		}
	default:
		log.Info().Str("device", "hackrf").Msg("initializing device...")
		if err := hackrf.Init(); err != nil {
			log.Fatal().Str("device", "hackrf").Err(err).Msg("failed to initialize hackRF")
		}
		defer hackrf.Exit()

		dev, err = hackrfDevice.NewHackRFDevice(opts.Gain, opts.RecordLocation)
		if err != nil {
			log.Fatal().Str("device", "hackrf").Err(err).Msg("failed to create hackRF device")
		}
	}

	var writeAPI api.WriteAPI = &util.MockWriteAPI{}
	if opts.InfluxDB.Host != "" {
		client := influxdb2.NewClient(opts.InfluxDB.Host, opts.InfluxDB.Token)
		defer client.Close()
		writeAPI = client.WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)
	}

	rcvOpts := []receiver.ReceiverOption{
		receiver.WithInfluxDB(writeAPI),
		receiver.WithLogger(log.Logger),
	}
	if opts.VizServer.Port > 0 {
		vizServer := viz.NewServer(opts.VizServer.Port, opts.UpdateInterval())
		vizServer.SetLogger(log.Logger)
		rcvOpts = append(rcvOpts, receiver.WithImageServer(vizServer))
	}
	if len(opts.OutputDestinations) > 0 {
		udp := output.NewUDPOutput(opts.OutputDestinations, output.DefaultPacketBits, writeAPI)
		udp.SetLogger(log.Logger)
		rcvOpts = append(rcvOpts, receiver.WithOutput(udp))
	}
	if opts.BitsLocation != "" {
		rcvOpts = append(rcvOpts, receiver.WithOutput(output.NewBitFiles(opts.BitsLocation)))
	}

	rcv, err := receiver.NewReceiver(dev, receiver.OptionsFromConfig(opts), rcvOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create receiver")
	}

	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case <-sigChan:
		case <-ctx.Done():
		}

		return rcv.Stop()
	})

	eg.Go(func() error {
		defer cancel()
		return rcv.Start(ctx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("exited program")
	}
}
