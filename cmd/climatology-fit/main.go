// climatology-fit fits a monthly dT/dP gradient climatology from a
// directory of historical CTD cast files and writes the table to a
// snapshot file that the pipeline's vertical stage can load.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/oceanobs/moorproc/internal/ingest"
	"github.com/oceanobs/moorproc/internal/log"
	"github.com/oceanobs/moorproc/internal/vertical"
)

func main() {
	var (
		castsDir = flag.String("casts", "", "Directory of historical CTD cast NetCDF files (required)")
		outFile  = flag.String("out", "climatology.msgpack", "Output climatology snapshot file")
		tempMin  = flag.Float64("temp-min", -2.0, "Lower bound of the temperature bin range (°C)")
		tempMax  = flag.Float64("temp-max", 35.5, "Upper bound of the temperature bin range (°C)")
		tempStep = flag.Float64("temp-step", 0.5, "Temperature bin width (°C)")
		minCasts = flag.Int("min-casts", 5, "Minimum casts contributing to a (month, bin) cell")
		debug    = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if *castsDir == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -casts <dir> [-out climatology.msgpack]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	start := time.Now()
	casts, err := ingest.ReadCTDCasts(*castsDir)
	if err != nil {
		log.Errorf("Failed to read casts: %v", err)
		os.Exit(1)
	}
	fmt.Printf("Read %d casts from %s\n", len(casts), *castsDir)

	params := vertical.BuilderParams{
		TempMin:  *tempMin,
		TempMax:  *tempMax,
		TempStep: *tempStep,
		MinCasts: *minCasts,
	}
	clim, err := vertical.BuildClimatology(casts, params, log.GetSugaredLogger())
	if err != nil {
		log.Errorf("Failed to fit climatology: %v", err)
		os.Exit(1)
	}

	printCoverage(clim)

	if err := clim.WriteFile(*outFile); err != nil {
		log.Errorf("Failed to write climatology: %v", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s in %v\n", *outFile, time.Since(start).Round(time.Millisecond))
}

// printCoverage summarizes how many temperature bins each month resolved,
// so sparse historical coverage is visible before the table goes into a
// production run.
func printCoverage(clim *vertical.Climatology) {
	fmt.Println("\nMonthly bin coverage:")
	fmt.Println("  Month  Filled  Total")
	total := 0
	for m := time.January; m <= time.December; m++ {
		filled := 0
		for b := 0; b < clim.Bins(); b++ {
			temp := clim.TempMin() + (float64(b)+0.5)*clim.TempStep()
			if !math.IsNaN(clim.Gradient(m, temp)) {
				filled++
			}
		}
		total += filled
		fmt.Printf("  %-6s %6d %6d\n", m.String()[:3], filled, clim.Bins())
	}
	fmt.Printf("  %d of %d cells populated\n", total, 12*clim.Bins())
}
