package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/route-beacon/osm-transform/internal/collect"
	"github.com/route-beacon/osm-transform/internal/config"
	"github.com/route-beacon/osm-transform/internal/country"
	"github.com/route-beacon/osm-transform/internal/elevation"
	"github.com/route-beacon/osm-transform/internal/filter"
	"github.com/route-beacon/osm-transform/internal/httpstatus"
	"github.com/route-beacon/osm-transform/internal/logging"
	"github.com/route-beacon/osm-transform/internal/metadata"
	"github.com/route-beacon/osm-transform/internal/metrics"
	"github.com/route-beacon/osm-transform/internal/osmpbf"
	"github.com/route-beacon/osm-transform/internal/pipeline"
	"github.com/route-beacon/osm-transform/internal/skipele"
	"github.com/route-beacon/osm-transform/internal/trace"
)

// version is overwritten at build time via -ldflags.
var version = "dev"

// scrubbedTagKeys matches the metadata-ish tag keys stripped from every
// element in the transformation pass, including language-suffixed
// wikipedia/source/note variants (e.g. "wikipedia:de", "source:geometry").
var scrubbedTagKeys = regexp.MustCompile(`(.*:)?source(:.*)?|(.*:)?note(:.*)?|url|created_by|fixme|wikipedia`)

func main() {
	if len(os.Args) < 2 {
		runTransform(os.Args[1:])
		return
	}

	switch os.Args[1] {
	case "run":
		runTransform(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Println("osm-transform " + version)
	case "--help", "-h", "help":
		printUsage()
	default:
		runTransform(os.Args[1:])
	}
}

func printUsage() {
	fmt.Println("Usage: osm-transform [run] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run       Run the two-pass preprocessing pipeline (default)")
	fmt.Println("  version   Print the binary version")
	fmt.Println("  help      Print this message")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config PATH                     Path to configuration YAML file")
	fmt.Println("  --input-pbf PATH                  Input PBF file")
	fmt.Println("  --output-pbf PATH                 Output PBF file")
	fmt.Println("  --country-csv PATH                Country polygon CSV (id;name;wkt)")
	fmt.Println("  --elevation-tiff PATH             GeoTIFF raster (repeatable)")
	fmt.Println("  --with-node-filtering             Drop unreferenced nodes in pass 2")
	fmt.Println("  --remove-metadata                 Scrub version/timestamp/changeset/uid/user")
	fmt.Println("  --elevation-batch-size N           Per-raster sample batch size")
	fmt.Println("  --elevation-total-buffer-size N    Total buffered-node threshold across rasters")
	fmt.Println("  --elevation-way-splitting          Interpolate synthetic nodes along long way segments")
	fmt.Println("  --resolution-lon DEG               Max longitude step for way splitting")
	fmt.Println("  --resolution-lat DEG               Max latitude step for way splitting")
	fmt.Println("  --print-node-id ID                 Trace a node id across the chain (repeatable)")
	fmt.Println("  --print-way-id ID                  Trace a way id across the chain (repeatable)")
	fmt.Println("  --print-relation-id ID              Trace a relation id across the chain (repeatable)")
	fmt.Println("  --debug                            Raise log verbosity (repeatable)")
	fmt.Println("  --metrics-listen ADDR               Serve /healthz and /metrics on ADDR")
}

// cliFlags holds every flag value parsed off the command line, before it
// is reconciled with the loaded config file. Scalar fields are pointers
// so "not passed" is distinguishable from "passed as the zero value".
type cliFlags struct {
	configPath string

	inputPBF      *string
	outputPBF     *string
	countryCSV    *string
	elevationTIFF []string

	withNodeFiltering *bool
	removeMetadata    *bool

	elevationBatchSize       *int
	elevationTotalBufferSize *int
	elevationWaySplitting    *bool
	resolutionLon            *float64
	resolutionLat            *float64

	printNodeID     []int64
	printWayID      []int64
	printRelationID []int64

	debugCount    int
	metricsListen *string
}

func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{}

	next := func(i int) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("flag %s requires a value", args[i])
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			v, err := next(i)
			if err != nil {
				return nil, err
			}
			f.configPath = v
			i++
		case "--input-pbf":
			v, err := next(i)
			if err != nil {
				return nil, err
			}
			f.inputPBF = &v
			i++
		case "--output-pbf":
			v, err := next(i)
			if err != nil {
				return nil, err
			}
			f.outputPBF = &v
			i++
		case "--country-csv":
			v, err := next(i)
			if err != nil {
				return nil, err
			}
			f.countryCSV = &v
			i++
		case "--elevation-tiff":
			v, err := next(i)
			if err != nil {
				return nil, err
			}
			f.elevationTIFF = append(f.elevationTIFF, v)
			i++
		case "--with-node-filtering":
			v := true
			f.withNodeFiltering = &v
		case "--remove-metadata":
			v := true
			f.removeMetadata = &v
		case "--elevation-batch-size":
			v, err := next(i)
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("--elevation-batch-size: %w", err)
			}
			f.elevationBatchSize = &n
			i++
		case "--elevation-total-buffer-size":
			v, err := next(i)
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("--elevation-total-buffer-size: %w", err)
			}
			f.elevationTotalBufferSize = &n
			i++
		case "--elevation-way-splitting":
			v := true
			f.elevationWaySplitting = &v
		case "--resolution-lon":
			v, err := next(i)
			if err != nil {
				return nil, err
			}
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("--resolution-lon: %w", err)
			}
			f.resolutionLon = &n
			i++
		case "--resolution-lat":
			v, err := next(i)
			if err != nil {
				return nil, err
			}
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("--resolution-lat: %w", err)
			}
			f.resolutionLat = &n
			i++
		case "--print-node-id":
			v, err := next(i)
			if err != nil {
				return nil, err
			}
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("--print-node-id: %w", err)
			}
			f.printNodeID = append(f.printNodeID, id)
			i++
		case "--print-way-id":
			v, err := next(i)
			if err != nil {
				return nil, err
			}
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("--print-way-id: %w", err)
			}
			f.printWayID = append(f.printWayID, id)
			i++
		case "--print-relation-id":
			v, err := next(i)
			if err != nil {
				return nil, err
			}
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("--print-relation-id: %w", err)
			}
			f.printRelationID = append(f.printRelationID, id)
			i++
		case "--debug":
			f.debugCount++
		case "--metrics-listen":
			v, err := next(i)
			if err != nil {
				return nil, err
			}
			f.metricsListen = &v
			i++
		default:
			return nil, fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	return f, nil
}

// applyOverrides lets any flag explicitly passed on the command line win
// over the loaded config file, mirroring the teacher's
// loadConfig/logLevelOverride pattern.
func applyOverrides(cfg *config.Config, f *cliFlags) {
	if f.inputPBF != nil {
		cfg.Paths.InputPBF = *f.inputPBF
	}
	if f.outputPBF != nil {
		cfg.Paths.OutputPBF = *f.outputPBF
	}
	if f.countryCSV != nil {
		cfg.Paths.CountryCSV = *f.countryCSV
	}
	if len(f.elevationTIFF) > 0 {
		cfg.Paths.ElevationTIFF = f.elevationTIFF
	}
	if f.withNodeFiltering != nil {
		cfg.Filter.WithNodeFiltering = *f.withNodeFiltering
	}
	if f.removeMetadata != nil {
		cfg.Filter.RemoveMetadata = *f.removeMetadata
	}
	if len(f.elevationTIFF) > 0 {
		cfg.Elevation.Enabled = true
	}
	if f.elevationBatchSize != nil {
		cfg.Elevation.BatchSize = *f.elevationBatchSize
	}
	if f.elevationTotalBufferSize != nil {
		cfg.Elevation.TotalBufferSize = *f.elevationTotalBufferSize
	}
	if f.elevationWaySplitting != nil {
		cfg.Elevation.WaySplitting = *f.elevationWaySplitting
	}
	if f.resolutionLon != nil {
		cfg.Elevation.ResolutionLon = *f.resolutionLon
	}
	if f.resolutionLat != nil {
		cfg.Elevation.ResolutionLat = *f.resolutionLat
	}
	if f.metricsListen != nil {
		cfg.Service.MetricsListen = *f.metricsListen
	}
}

func runTransform(args []string) {
	f, err := parseFlags(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg, f)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error validating config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(f.debugCount)
	defer logger.Sync()

	metrics.Register()

	if cfg.Service.MetricsListen != "" {
		statusServer := httpstatus.NewServer(cfg.Service.MetricsListen, logger.Named("httpstatus"))
		if err := statusServer.Start(); err != nil {
			logger.Fatal("failed to start metrics HTTP server", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			statusServer.Shutdown(ctx)
		}()
	}

	traceIDs := trace.IDs{
		Nodes:     idSet(f.printNodeID),
		Ways:      idSet(f.printWayID),
		Relations: idSet(f.printRelationID),
	}

	logger.Info("starting osm-transform",
		zap.String("input_pbf", cfg.Paths.InputPBF),
		zap.String("output_pbf", cfg.Paths.OutputPBF),
		zap.Bool("elevation_enabled", cfg.Elevation.Enabled),
		zap.Bool("elevation_way_splitting", cfg.Elevation.WaySplitting),
	)

	start := time.Now()
	if err := run(cfg, traceIDs, logger); err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
	logger.Info("osm-transform complete", zap.Duration("elapsed", time.Since(start)))
}

func idSet(ids []int64) map[int64]bool {
	if len(ids) == 0 {
		return nil
	}
	m := make(map[int64]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// run drives both passes of the pipeline in sequence: pass 1 discovers
// referenced node ids and skip-elevation ids over the whole input, pass 2
// streams the input again through filtering, tagging, enrichment and
// writes the result.
func run(cfg *config.Config, traceIDs trace.IDs, logger *zap.Logger) error {
	data := pipeline.NewHandlerData()

	if err := runDiscoveryPass(cfg, traceIDs, logger, data); err != nil {
		return fmt.Errorf("discovery pass: %w", err)
	}

	logger.Info("discovery pass complete",
		zap.Int64("input_nodes", data.Counters.InputNodes),
		zap.Int64("input_ways", data.Counters.InputWays),
		zap.Int64("input_relations", data.Counters.InputRelations),
		zap.Uint64("referenced_node_count", uint64(data.NodeIDs.Count())),
		zap.Uint64("skip_elevation_count", uint64(data.SkipEle.Count())),
	)

	if err := runTransformationPass(cfg, traceIDs, logger, data); err != nil {
		return fmt.Errorf("transformation pass: %w", err)
	}

	logger.Info("transformation pass complete",
		zap.Int64("output_nodes", data.Counters.OutputNodes),
		zap.Int64("output_ways", data.Counters.OutputWays),
		zap.Int64("output_relations", data.Counters.OutputRelations),
	)

	return nil
}

func runDiscoveryPass(cfg *config.Config, traceIDs trace.IDs, logger *zap.Logger, data *pipeline.HandlerData) error {
	reader, err := osmpbf.OpenReader(cfg.Paths.InputPBF, 1)
	if err != nil {
		return fmt.Errorf("opening %s: %w", cfg.Paths.InputPBF, err)
	}
	defer reader.Close()

	handlers := []pipeline.Handler{
		pipeline.NewInputCounter("discovery"),
		filter.RoutingFilter{},
		collect.ReferencedNodeIDCollector{},
		skipele.NewCollector(logger.Named("skipele")),
		filter.DropAllFilter{Kinds: filter.Kinds{Nodes: true}},
		pipeline.NewAcceptedCounter("discovery"),
	}
	if !traceIDs.Empty() {
		handlers = append([]pipeline.Handler{trace.NewPrinter("input", traceIDs, logger.Named("trace"))}, handlers...)
	}

	chain := pipeline.NewChain("discovery", logger.Named("discovery"), handlers...)
	driver := &pipeline.Driver{Chain: chain, BatchSize: 5000, Logger: logger.Named("discovery")}
	return driver.Run(reader, data)
}

func runTransformationPass(cfg *config.Config, traceIDs trace.IDs, logger *zap.Logger, data *pipeline.HandlerData) error {
	reader, err := osmpbf.OpenReader(cfg.Paths.InputPBF, 1)
	if err != nil {
		return fmt.Errorf("opening %s: %w", cfg.Paths.InputPBF, err)
	}
	defer reader.Close()

	var handlers []pipeline.Handler
	handlers = append(handlers, pipeline.NewInputCounter("transformation"))

	if !traceIDs.Empty() {
		handlers = append(handlers, trace.NewPrinter("input", traceIDs, logger.Named("trace")))
	}

	// Re-apply the routing filter exactly as pass 1 did, so the elements
	// surviving to output match the node_ids referenced set pass 1 built;
	// without this a way dropped in discovery reappears untouched here.
	handlers = append(handlers, filter.RoutingFilter{})

	if cfg.Filter.WithNodeFiltering {
		handlers = append(handlers, filter.NodeIDFilter{})
	}

	if cfg.Paths.CountryCSV != "" {
		mapping, err := country.Load(cfg.Paths.CountryCSV, logger.Named("country"))
		if err != nil {
			return fmt.Errorf("loading country mapping: %w", err)
		}
		handlers = append(handlers, &country.Handler{Mapping: mapping})
	}

	outputPath := cfg.Paths.OutputPBF
	var writer interface {
		pipeline.Handler
		Close() error
	}

	if cfg.Elevation.Enabled {
		manager, closeRasters, err := openRasters(cfg.Paths.ElevationTIFF)
		if err != nil {
			return err
		}
		defer closeRasters()

		if !traceIDs.Empty() {
			handlers = append(handlers, trace.NewPrinter("before_enricher", traceIDs, logger.Named("trace")))
		}

		if cfg.Elevation.WaySplitting {
			handlers = append(handlers, elevation.NewWaySplitter(cfg.Elevation.ResolutionLon, cfg.Elevation.ResolutionLat))
		}
		handlers = append(handlers, elevation.NewEnricher(manager, cfg.Elevation.BatchSize, cfg.Elevation.TotalBufferSize))

		if !traceIDs.Empty() {
			handlers = append(handlers, trace.NewPrinter("after_enricher", traceIDs, logger.Named("trace")))
		}
	}

	if cfg.Filter.RemoveMetadata {
		handlers = append(handlers, metadata.Remover{})
	}

	handlers = append(handlers, filter.TagFilterByKey{
		Key:   scrubbedTagKeys,
		Mode:  filter.RemoveMatching,
		Kinds: filter.AllKinds,
	})

	if !traceIDs.Empty() {
		handlers = append(handlers, trace.NewPrinter("output", traceIDs, logger.Named("trace")))
	}
	handlers = append(handlers, pipeline.NewOutputCounter("transformation"))

	if cfg.Elevation.Enabled && cfg.Elevation.WaySplitting {
		w, err := osmpbf.NewSplittingWriter(outputPath, waysRelationsPath(outputPath))
		if err != nil {
			return fmt.Errorf("opening output writer: %w", err)
		}
		writer = w
	} else {
		w, err := osmpbf.NewSimpleWriter(outputPath)
		if err != nil {
			return fmt.Errorf("opening output writer: %w", err)
		}
		writer = w
	}
	handlers = append(handlers, writer)
	defer writer.Close()

	chain := pipeline.NewChain("transformation", logger.Named("transformation"), handlers...)
	driver := &pipeline.Driver{Chain: chain, BatchSize: 5000, Logger: logger.Named("transformation")}
	return driver.Run(reader, data)
}

// waysRelationsPath derives the auxiliary sibling file a SplittingWriter
// merges from, per spec.md §6: FILE.pbf -> FILE_ways_relations.pbf.
func waysRelationsPath(outputPath string) string {
	if strings.HasSuffix(outputPath, ".pbf") {
		return strings.TrimSuffix(outputPath, ".pbf") + "_ways_relations.pbf"
	}
	return outputPath + "_ways_relations.pbf"
}

// expandRasterPatterns resolves each --elevation-tiff value as a glob
// pattern (e.g. "tiles/*.tif"), matching spec.md §4.7/§6. A pattern
// matching no file is an error rather than silently contributing no
// raster.
func expandRasterPatterns(patterns []string) ([]string, error) {
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid elevation tiff pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("elevation tiff pattern %q matched no files", pattern)
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

func openRasters(patterns []string) (*elevation.Manager, func(), error) {
	paths, err := expandRasterPatterns(patterns)
	if err != nil {
		return nil, nil, err
	}

	rasters := make([]elevation.RasterSource, 0, len(paths))
	closeAll := func() {
		for _, r := range rasters {
			r.Close()
		}
	}
	for _, p := range paths {
		g, err := elevation.OpenGeoTIFF(p)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("opening raster %s: %w", p, err)
		}
		rasters = append(rasters, g)
	}
	return elevation.NewManager(rasters...), closeAll, nil
}
