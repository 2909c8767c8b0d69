package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ahrsd/internal/ahrs"
	"ahrsd/internal/clock"
	"ahrsd/internal/config"
	"ahrsd/internal/i2c"
	"ahrsd/internal/loop"
	"ahrsd/internal/mqttpub"
	"ahrsd/internal/sampler"
	"ahrsd/internal/sensors/icm20948"
	"ahrsd/internal/transport"
	"ahrsd/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./ahrsd.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bus, err := i2c.Open(fmt.Sprintf("/dev/i2c-%d", cfg.IMU.I2CBus))
	if err != nil {
		log.Fatalf("i2c open failed: %v", err)
	}
	defer bus.Close()

	imuAddr := cfg.IMU.Addr
	if imuAddr == 0 {
		imuAddr = icm20948.DefaultAddress()
	}
	magAddr := cfg.IMU.MagAddr
	if magAddr == 0 {
		magAddr = icm20948.DefaultMagAddress()
	}
	var magDev *i2c.Dev
	if cfg.IMU.Mag {
		magDev = bus.Dev(magAddr)
	}
	dev, err := icm20948.New(bus.Dev(imuAddr), magDev, cfg.IMU.RateHz)
	if err != nil {
		log.Fatalf("icm20948 init failed: %v", err)
	}

	smpCfg := sampler.Config{MagEnabled: cfg.IMU.Mag}
	if len(cfg.IMU.AxisMap) == 3 {
		copy(smpCfg.AxisMap[:], cfg.IMU.AxisMap)
	}
	smp, err := sampler.New(dev, smpCfg)
	if err != nil {
		log.Fatalf("sampler init failed: %v", err)
	}

	period := time.Second / time.Duration(cfg.IMU.RateHz)
	var pacer clock.Pacer
	if cfg.IMU.DRDYChip != "" {
		pacer, err = clock.NewDRDY(cfg.IMU.DRDYChip, cfg.IMU.DRDYOffset, period)
		if err != nil {
			log.Fatalf("drdy pacer init failed: %v", err)
		}
	} else {
		pacer = clock.NewTicker(period)
	}
	defer pacer.Close()

	var fuser ahrs.Fuser
	switch cfg.Filter.Algorithm {
	case "madgwick":
		fuser = ahrs.NewMadgwick(cfg.Filter.Beta)
	default:
		fuser = ahrs.NewMahony(cfg.Filter.Kp, cfg.Filter.Ki)
	}
	est := ahrs.NewEstimator(fuser, ahrs.EstimatorConfig{
		ConvergeTicks: cfg.Filter.ConvergeTicks,
		MaxCoastTicks: cfg.Filter.MaxCoastTicks,
	})

	host, err := transport.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
	if err != nil {
		log.Fatalf("serial open failed: %v", err)
	}
	defer host.Close()

	svc := loop.New(loop.Config{RateHz: cfg.IMU.RateHz}, est, smp, pacer, host)

	if cfg.UDP.Enable {
		udp, err := transport.OpenUDP(cfg.UDP.Dest)
		if err != nil {
			log.Fatalf("udp open failed: %v", err)
		}
		defer udp.Close()
		svc.AttachAux(udp)
	}

	svc.OnSetRate(func(hz int) error { return dev.SetRate(hz) })

	bcast := web.NewBroadcaster()
	svc.OnState(bcast.Publish)

	log.Printf("ahrsd starting")
	log.Printf("imu bus=%d rate=%dHz mag=%v filter=%s", cfg.IMU.I2CBus, cfg.IMU.RateHz, cfg.IMU.Mag, cfg.Filter.Algorithm)
	log.Printf("serial port=%s baud=%d", cfg.Serial.Port, cfg.Serial.Baud)

	if err := svc.Start(ctx); err != nil {
		log.Fatalf("loop start failed: %v", err)
	}
	defer svc.Close()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Web.Enable {
		srv := web.NewServer(cfg.Web.Listen, svc.Snapshot, bcast)
		g.Go(func() error { return srv.Run(gctx) })
		log.Printf("web listen=%s", cfg.Web.Listen)
	}

	if cfg.MQTT.Enable {
		pub := mqttpub.New(mqttpub.Config{
			Broker:   cfg.MQTT.Broker,
			Port:     cfg.MQTT.Port,
			Topic:    cfg.MQTT.Topic,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			UseTLS:   cfg.MQTT.UseTLS,
			Interval: cfg.MQTT.Interval,
		}, bcast)
		g.Go(func() error { return pub.Run(gctx) })
		log.Printf("mqtt broker=%s topic=%s", cfg.MQTT.Broker, cfg.MQTT.Topic)
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Printf("service stopped: %v", err)
	}
	log.Printf("ahrsd stopping")
}
