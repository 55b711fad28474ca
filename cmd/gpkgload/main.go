package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lintang-b-s/roadgpkg/pkg/config"
	"github.com/lintang-b-s/roadgpkg/pkg/kv"
	"github.com/lintang-b-s/roadgpkg/pkg/logger"
	"github.com/lintang-b-s/roadgpkg/pkg/roadnetwork"
)

var (
	cacheDir   = flag.String("cache", "", "badger directory to store the parsed road network in")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile = flag.String("memprofile", "", "write memory profile to this file")
	debug      = flag.Bool("debug", false, "enable debug logging")
	dump       = flag.Bool("dump", false, "print every segment with its ordered lanes")
)

func main() {
	config.RegisterFlags(flag.CommandLine)
	flag.Parse()

	lg := logger.New(logger.Params{Debug: *debug, Prefix: "gpkgload"})

	// ./bin/gpkgload -gpkg_file=road.gpkg -cpuprofile=gpkgcpu.prof -memprofile=gpkgmem.mprof
	err := withCPUProfile(*cpuprofile, func() error {
		return run(lg)
	})
	if err != nil {
		lg.Fatal(err)
	}
}

// withCPUProfile runs fn under the cpu profiler when path is set. The profile is flushed and the
// file closed before returning, whatever fn returns.
func withCPUProfile(path string, fn func() error) error {
	if path == "" {
		return fn()
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := pprof.StartCPUProfile(f); err != nil {
		return fmt.Errorf("start cpu profile: %w", err)
	}
	defer pprof.StopCPUProfile()

	return fn()
}

// run does the whole load. Errors are returned rather than fatal so the cpu profile is flushed.
func run(lg *log.Logger) error {
	cfg, err := config.FromFlagSet(flag.CommandLine)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	var rn *roadnetwork.RoadNetwork
	if *cacheDir != "" {
		kvDB, err := kv.Open(*cacheDir, lg)
		if err != nil {
			return err
		}
		defer kvDB.Close()

		rn, _, err = kvDB.LoadOrBuild(ctx, cfg.GpkgFile)
		if err != nil {
			return err
		}
	} else {
		rn, err = roadnetwork.Load(cfg.GpkgFile, lg)
		if err != nil {
			return err
		}
	}
	recordMemProfile(memprofile, "load_road_network")

	if err := cfg.ApplyMetadata(rn.Metadata()); err != nil {
		return err
	}
	st := rn.Stats()
	lg.Info("road network ready",
		"road_geometry_id", cfg.RoadGeometryID,
		"linear_tolerance", cfg.LinearTolerance,
		"angular_tolerance", cfg.AngularTolerance,
		"scale_length", cfg.ScaleLength,
		"junctions", st.Junctions,
		"segments", st.Segments,
		"lanes", st.Lanes,
		"connections", st.Connections,
		"elapsed", time.Since(start))

	if *dump {
		dumpSegments(rn)
	}
	return nil
}

func dumpSegments(rn *roadnetwork.RoadNetwork) {
	snap := rn.ToSnapshot()
	for _, s := range snap.Segments {
		fmt.Printf("%s (junction %s): %s\n", s.ID, s.JunctionID, strings.Join(s.LaneIDs, ", "))
	}
	for _, c := range rn.Connections() {
		fmt.Printf("%s -> %s\n", c.From, c.To)
	}
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
