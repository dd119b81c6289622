package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/overdrive/internal/api"
	"github.com/banshee-data/overdrive/internal/config"
	"github.com/banshee-data/overdrive/internal/db"
	"github.com/banshee-data/overdrive/internal/fsutil"
	"github.com/banshee-data/overdrive/internal/gateway"
	"github.com/banshee-data/overdrive/internal/protocol"
	"github.com/banshee-data/overdrive/internal/render"
	"github.com/banshee-data/overdrive/internal/scanner"
	"github.com/banshee-data/overdrive/internal/serialmux"
	"github.com/banshee-data/overdrive/internal/version"
)

const progressInterval = 10 * time.Second

var (
	configPath  = flag.String("config", "", "Path to a JSON config file (defaults apply when empty)")
	listen      = flag.String("listen", "", "HTTP listen address")
	gatewayAddr = flag.String("gateway", "", "host:port of a TCP vehicle gateway")
	serialPort  = flag.String("serial", "", "Serial port of a USB vehicle gateway (selects the serial link)")
	dbPath      = flag.String("db", "", "SQLite database for stored roadmaps")
	vehicleAddr = flag.String("vehicle", "", "Vehicle address to connect to (first discovered when empty)")
	plotDir     = flag.String("plots", "", "Directory scanned roadmaps are plotted into")
	autoScan    = flag.Bool("scan", false, "Start scanning the track as soon as the vehicle is connected")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// applyFlags copies the flags set on the command line over cfg.
func applyFlags(cfg *config.Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "listen":
			cfg.ListenAddr = &v
		case "gateway":
			kind := config.GatewayTCP
			cfg.GatewayKind = &kind
			cfg.GatewayAddr = &v
		case "serial":
			kind := config.GatewaySerial
			cfg.GatewayKind = &kind
			cfg.SerialPort = &v
		case "db":
			cfg.DatabasePath = &v
		case "vehicle":
			cfg.VehicleAddr = &v
		case "plots":
			cfg.PlotDir = &v
		}
	})
}

func loadConfig(path string, fs *flag.FlagSet) (*config.Config, error) {
	cfg := &config.Config{}
	if path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	applyFlags(cfg, fs)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openGateway(ctx context.Context, cfg *config.Config) (serialmux.SerialMuxInterface, error) {
	if cfg.GetGatewayKind() == config.GatewaySerial {
		return serialmux.NewRealSerialMux(cfg.GetSerialPort(), cfg.GetSerialOptions())
	}
	return serialmux.NewTCPSerialMux(ctx, cfg.GetGatewayAddr())
}

// pickVehicle returns want when set, otherwise the first vehicle the
// gateway discovers.
func pickVehicle(ctx context.Context, c *gateway.Connector, want string) (string, error) {
	if want != "" {
		return want, nil
	}
	found, err := c.Discover(ctx)
	if err != nil {
		return "", err
	}
	for _, d := range found {
		log.Printf("discovered %s at %s", d.Advertisement, d.Address)
	}
	if len(found) == 0 {
		return "", errors.New("no vehicles discovered")
	}
	return found[0].Address, nil
}

// vehicleInfo is the part of a connected vehicle describe queries.
type vehicleInfo interface {
	Address() string
	BatteryLevel(ctx context.Context) (uint16, error)
	Version(ctx context.Context) (uint16, error)
}

// describe logs the battery and firmware of v. Each request gets its own
// timeout so a lost reply cannot hold up startup.
func describe(ctx context.Context, v vehicleInfo, timeout time.Duration) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	mv, err := v.BatteryLevel(reqCtx)
	cancel()
	if err != nil {
		log.Printf("battery request failed: %v", err)
	} else {
		log.Printf("vehicle %s battery %d mV", v.Address(), mv)
	}

	reqCtx, cancel = context.WithTimeout(ctx, timeout)
	ver, err := v.Version(reqCtx)
	cancel()
	if err != nil {
		log.Printf("version request failed: %v", err)
	} else {
		log.Printf("vehicle %s firmware 0x%04x", v.Address(), ver)
	}
}

// scanAndSave drives the vehicle until the scanner closes the loop or the
// scan times out, then stops it and stores the result.
func scanAndSave(ctx context.Context, cfg *config.Config, sc *scanner.Scanner, v *gateway.Vehicle, database *db.DB) error {
	sc.Start()
	if err := v.Send(protocol.NewSetSpeed(int16(cfg.GetScanSpeed()), 1000)); err != nil {
		return fmt.Errorf("start vehicle: %w", err)
	}
	progressCtx, stopProgress := context.WithCancel(ctx)
	go sc.ReportProgress(progressCtx, progressInterval, log.Printf)
	waitErr := sc.WaitComplete(ctx, cfg.GetScanTimeout())
	stopProgress()
	sc.Stop()
	if err := v.Send(protocol.NewSetSpeed(0, 1000)); err != nil {
		log.Printf("failed to stop vehicle: %v", err)
	}
	if waitErr != nil {
		return waitErr
	}

	rm := sc.Roadmap()
	log.Printf("scanned roadmap:\n%s", rm)
	rec, err := database.SaveRoadmap(ctx, "", v.Address(), rm)
	if err != nil {
		return fmt.Errorf("save roadmap: %w", err)
	}
	log.Printf("saved roadmap %s (%s)", rec.Name, rec.ID)

	if dir := cfg.GetPlotDir(); dir != "" {
		paths, err := render.Export(fsutil.OSFileSystem{}, dir, rec.Name, rm)
		if err != nil {
			return fmt.Errorf("export plots: %w", err)
		}
		log.Printf("wrote %v", paths)
	}
	return nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath, flag.CommandLine)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux, err := openGateway(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open gateway: %v", err)
	}
	defer mux.Close()

	database, err := db.NewDB(cfg.GetDatabasePath())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// The gateway link outlives ctx so the vehicle can be stopped and
	// disconnected during shutdown.
	linkCtx, closeLink := context.WithCancel(context.Background())
	defer closeLink()

	// Create a wait group for the HTTP server, gateway monitor, and connector routines
	var wg sync.WaitGroup

	// run the monitor routine to manage IO on the gateway link
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(linkCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor gateway: %v", err)
			stop()
		}
		log.Print("monitor routine terminated")
	}()

	connector := gateway.NewConnector(mux, gateway.Options{
		ResponseTimeout: cfg.GetResponseTimeout(),
		ConnectAttempts: cfg.GetConnectAttempts(),
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := connector.Run(linkCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("connector stopped: %v", err)
		}
		log.Print("connector routine terminated")
	}()

	addr, err := pickVehicle(ctx, connector, cfg.GetVehicleAddr())
	if err != nil {
		log.Fatalf("failed to find a vehicle: %v", err)
	}
	vehicle, err := connector.Connect(ctx, addr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", addr, err)
	}
	if err := vehicle.Send(protocol.NewSDKMode()); err != nil {
		log.Fatalf("failed to enable sdk mode: %v", err)
	}
	describe(ctx, vehicle, cfg.GetResponseTimeout())

	sc := scanner.New(vehicle, scanner.Options{ClosureTolerance: cfg.GetClosureTolerance()})

	if *autoScan {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := scanAndSave(ctx, cfg, sc, vehicle, database); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("scan failed: %v", err)
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		httpMux := api.NewServer(sc, database, vehicle, api.Options{
			ScanSpeed: int16(cfg.GetScanSpeed()),
			PlotDir:   cfg.GetPlotDir(),
		}).ServeMux()
		mux.AttachAdminRoutes(httpMux)
		if err := database.AttachAdminRoutes(httpMux); err != nil {
			log.Printf("failed to attach database admin routes: %v", err)
		}

		server := &http.Server{
			Addr:    cfg.GetListenAddr(),
			Handler: api.LoggingMiddleware(httpMux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("listening on %s", cfg.GetListenAddr())
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("failed to start server: %v", err)
				stop()
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	<-ctx.Done()

	sc.Stop()
	if err := vehicle.Send(protocol.NewSetSpeed(0, 1000)); err != nil {
		log.Printf("failed to stop vehicle: %v", err)
	}
	disconnectCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := vehicle.Disconnect(disconnectCtx); err != nil {
		log.Printf("disconnect failed: %v", err)
	}
	cancel()
	closeLink()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
