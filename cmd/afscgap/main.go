// Command afscgap drives the snapshot build pipeline and runs ad hoc
// filtered queries against a built snapshot, grounded on the teacher's
// cmd/main.go urfave/cli wiring (one command per pipeline stage, a
// fixed-size pond pool fanning out the per-item work within a stage).
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/urfave/cli/v2"

	afscgap "github.com/schmidtdse/afscgap-go"
	"github.com/schmidtdse/afscgap-go/build"
)

func main() {
	app := &cli.App{
		Name:  "afscgap",
		Usage: "build and query AFSC bottom-trawl groundfish survey snapshots",
		Commands: []*cli.Command{
			buildCommand(),
			reindexCommand(),
			queryCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "backend", Value: "tiledb", Usage: "storage backend: tiledb or s3"},
		&cli.StringFlag{Name: "root", Usage: "root URI (tiledb backend) or key prefix (s3 backend)"},
		&cli.StringFlag{Name: "bucket", Usage: "bucket name (s3 backend)"},
		&cli.StringFlag{Name: "config-uri", Usage: "URI or pathname to a TileDB config file (tiledb backend)"},
		&cli.IntFlag{Name: "concurrency", Value: 32, Usage: "worker pool size for fan-out stages"},
		&cli.DurationFlag{Name: "retry-delay", Value: 2 * time.Second, Usage: "delay before a single fetch/write retry"},
	}
}

// openStore builds the concrete Requestor+Writer pair a cli.Context's
// storeFlags selected, mirroring the teacher's config-uri-or-default
// pattern in convert_gsf.
func openStore(ctx context.Context, c *cli.Context) (build.Store, func(), error) {
	clock := clockwork.NewRealClock()
	delay := c.Duration("retry-delay")

	switch c.String("backend") {
	case "s3":
		s3, err := afscgap.NewS3Requestor(ctx, c.String("bucket"), c.String("root"), clock, delay)
		if err != nil {
			return nil, func() {}, err
		}
		return s3, func() {}, nil
	case "tiledb", "":
		tdb, err := afscgap.NewTileDBRequestor(c.String("root"), c.String("config-uri"), clock, delay)
		if err != nil {
			return nil, func() {}, err
		}
		return tdb, tdb.Close, nil
	default:
		return nil, func() {}, fmt.Errorf("afscgap: unknown backend %q", c.String("backend"))
	}
}

func buildCommand() *cli.Command {
	flags := append(storeFlags(),
		&cli.IntSliceFlag{Name: "year", Usage: "one or more survey years to ingest haul records for"},
		&cli.BoolFlag{Name: "skip-ingest", Usage: "skip the upstream REST ingestion stage"},
		&cli.BoolFlag{Name: "skip-join", Usage: "skip the per-haul join stage"},
		&cli.BoolFlag{Name: "skip-index", Usage: "skip the index build stage"},
	)

	return &cli.Command{
		Name:  "build",
		Usage: "run the full snapshot build pipeline: ingest, join, index",
		Flags: flags,
		Action: func(c *cli.Context) error {
			runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			store, closeStore, err := openStore(runCtx, c)
			if err != nil {
				return err
			}
			defer closeStore()

			concurrency := c.Int("concurrency")

			if !c.Bool("skip-ingest") {
				ingestor := &build.Ingestor{Store: store, Clock: clockwork.NewRealClock(), RetryDelay: c.Duration("retry-delay")}

				log.Println("Ingesting species master list")
				if err := ingestor.IngestSpecies(runCtx); err != nil {
					return err
				}

				log.Println("Ingesting catch records")
				if err := ingestor.IngestCatches(runCtx); err != nil {
					return err
				}

				for _, year := range c.IntSlice("year") {
					log.Println("Ingesting haul records for year", year)
					if err := ingestor.IngestHauls(runCtx, year); err != nil {
						return err
					}
				}
			}

			if !c.Bool("skip-join") {
				log.Println("Joining hauls with catch and species data")
				if err := build.JoinAll(runCtx, store, concurrency); err != nil {
					return err
				}
			}

			if !c.Bool("skip-index") {
				log.Println("Building per-field indices and main index")
				if err := build.BuildIndices(runCtx, store, concurrency); err != nil {
					return err
				}
			}

			log.Println("Build complete")
			return nil
		},
	}
}

func reindexCommand() *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "rebuild per-field indices and the main index from existing joined flat files",
		Flags: storeFlags(),
		Action: func(c *cli.Context) error {
			runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			store, closeStore, err := openStore(runCtx, c)
			if err != nil {
				return err
			}
			defer closeStore()

			log.Println("Rebuilding indices")
			return build.BuildIndices(runCtx, store, c.Int("concurrency"))
		},
	}
}

func queryCommand() *cli.Command {
	flags := append(storeFlags(),
		&cli.StringSliceFlag{Name: "filter", Usage: `field filter, e.g. --filter "year=2021" or --filter "depth_m=10:200"`},
		&cli.IntFlag{Name: "limit", Value: -1, Usage: "maximum number of observations to return, -1 for unlimited"},
		&cli.BoolFlag{Name: "presence-only", Usage: "permit presence-only fields (species identity) to use their index"},
	)

	return &cli.Command{
		Name:  "query",
		Usage: "run a filtered query against a built snapshot and print matching observations as CSV",
		Flags: flags,
		Action: func(c *cli.Context) error {
			runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			store, closeStore, err := openStore(runCtx, c)
			if err != nil {
				return err
			}
			defer closeStore()

			config := afscgap.NewConfig(store)
			config.Concurrency = c.Int("concurrency")
			config.RetryDelay = c.Duration("retry-delay")
			config.PresenceOnly = c.Bool("presence-only")

			query := afscgap.NewQuery(config)
			for _, raw := range c.StringSlice("filter") {
				field, filter, err := parseFilterFlag(raw)
				if err != nil {
					return err
				}
				if err := query.SetFilter(field, filter); err != nil {
					return err
				}
			}
			query.Limit(c.Int("limit"))

			result, err := query.Execute(runCtx)
			if err != nil {
				return err
			}
			defer query.Close()

			return writeObservationsCSV(os.Stdout, result)
		},
	}
}

// parseFilterFlag parses a "field=value" equality filter or a
// "field=low:high" range filter from the CLI into the package's Filter
// constructors, inferring the value's DataType the same way a typed
// client library would: integer if it parses as one, float if it parses
// as one, string/datetime otherwise.
func parseFilterFlag(raw string) (string, *afscgap.Filter, error) {
	eq := strings.SplitN(raw, "=", 2)
	if len(eq) != 2 {
		return "", nil, fmt.Errorf("afscgap: malformed --filter %q, expected field=value", raw)
	}
	field := eq[0]
	value := eq[1]

	if low, high, ok := strings.Cut(value, ":"); ok {
		filter, err := rangeFilter(low, high)
		return field, filter, err
	}

	filter := equalsFilter(value)
	return field, filter, nil
}

func equalsFilter(value string) *afscgap.Filter {
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return afscgap.IntEquals(i)
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return afscgap.FloatEquals(f)
	}
	return afscgap.StrEquals(value)
}

func rangeFilter(low, high string) (*afscgap.Filter, error) {
	lowInt, lowIntErr := parseOptInt(low)
	highInt, highIntErr := parseOptInt(high)
	if lowIntErr == nil && highIntErr == nil {
		return afscgap.IntRange(lowInt, highInt), nil
	}

	lowFloat, lowFloatErr := parseOptFloat(low)
	highFloat, highFloatErr := parseOptFloat(high)
	if lowFloatErr == nil && highFloatErr == nil {
		return afscgap.FloatRange(lowFloat, highFloat), nil
	}

	return afscgap.StrRange(optStrOrNil(low), optStrOrNil(high)), nil
}

func parseOptInt(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseOptFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optStrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// writeObservationsCSV drains a query's cursor, writing one CSV row per
// matching observation, and logs every invalid record the stream reports:
// records the flat file's own decoder could not parse and candidate hauls
// whose flat file is missing.
func writeObservationsCSV(out *os.File, result *afscgap.QueryResult) error {
	writer := csv.NewWriter(out)
	defer writer.Flush()

	go func() {
		for invalid := range result.Invalid {
			log.Printf("skipping invalid record in haul %s at index %d: %v", invalid.HaulKey, invalid.Index, invalid.Reason)
		}
	}()

	header := []string{"year", "srvy", "haul", "species_code", "scientific_name", "cpue_kgkm2", "complete"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for {
		obs, ok, err := result.Cursor.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		row := []string{
			formatOptInt(obs.Year),
			formatOptStr(obs.Srvy),
			formatOptInt(obs.Haul),
			formatOptInt(obs.SpeciesCode),
			formatOptStr(obs.ScientificName),
			formatOptFloat(obs.CPUEKgKM2),
			strconv.FormatBool(obs.Complete),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
}

func formatOptInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatOptStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
