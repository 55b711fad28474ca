package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lintang-b-s/roadgpkg/pkg/config"
	"github.com/lintang-b-s/roadgpkg/pkg/kv"
	"github.com/lintang-b-s/roadgpkg/pkg/logger"
	"github.com/lintang-b-s/roadgpkg/pkg/roadnetwork"
	"github.com/lintang-b-s/roadgpkg/pkg/server/rest"
	"github.com/lintang-b-s/roadgpkg/pkg/server/rest/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	listenAddr = flag.String("listenaddr", ":5000", "server listen address")
	cacheDir   = flag.String("cache", "./roadgpkg_cache", "badger directory for parsed road networks, empty disables the cache")
	memprofile = flag.String("memprofile", "", "write memory profile to this file")
	debug      = flag.Bool("debug", false, "enable debug logging")
)

func main() {
	config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	lg := logger.New(logger.Params{Debug: *debug, Prefix: "server"})

	cfg, err := config.FromFlagSet(flag.CommandLine)
	if err != nil {
		lg.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		lg.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := rest.NewMetrics(reg)

	start := time.Now()
	rn, err := loadRoadNetwork(cfg, lg)
	if err != nil {
		lg.Fatal(err)
	}
	m.ObserveLoad(rn.Stats(), time.Since(start))
	recordMemProfile(memprofile, "load_road_network")

	if err := cfg.ApplyMetadata(rn.Metadata()); err != nil {
		lg.Fatal(err)
	}

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(rest.PromeHttpMiddleware(m)) // prometheus http middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Mount("/debug", middleware.Profiler())
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	rest.RoadNetworkRouter(r, service.NewRoadNetworkService(rn))

	lg.Info("server started",
		"addr", *listenAddr,
		"road_geometry_id", cfg.RoadGeometryID,
		"linear_tolerance", cfg.LinearTolerance,
		"angular_tolerance", cfg.AngularTolerance)

	lg.Fatal(http.ListenAndServe(*listenAddr, r))
}

func loadRoadNetwork(cfg config.BuilderConfiguration, lg *log.Logger) (*roadnetwork.RoadNetwork, error) {
	if *cacheDir == "" {
		return roadnetwork.Load(cfg.GpkgFile, lg)
	}

	kvDB, err := kv.Open(*cacheDir, lg)
	if err != nil {
		return nil, err
	}
	defer kvDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	rn, _, err := kvDB.LoadOrBuild(ctx, cfg.GpkgFile)
	return rn, err
}

func recordMemProfile(memprofile *string, name string) {
	if *memprofile != "" {
		*memprofile = strings.Replace(*memprofile, ".mprof", fmt.Sprintf("%s.mprof", name), -1)
		f, err := os.Create(*memprofile)
		if err != nil {
			return
		}
		pprof.WriteHeapProfile(f)
		f.Close()
	}
}
