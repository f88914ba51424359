// Command gridgen writes synthetic NCEP-style monthly mean NetCDF files for
// local runs of the server and the octants command.
package main

import (
	"flag"
	"log"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"go.ngs.io/geothermophone/internal/adapter/store/ncep"
	"go.ngs.io/geothermophone/internal/domain"
)

// field describes the synthetic climatology of one variable.
type field struct {
	Mean        float64 // Global mean.
	Equator     float64 // Added at the equator, fading to zero at the poles.
	Seasonal    float64 // Amplitude of the annual cycle, opposite in each hemisphere.
	Trend       float64 // Change per decade.
	ScaleFactor float32
	AddOffset   float32
	NLon, NLat  int
}

var fields = map[string]field{
	"air":   {Mean: -15, Equator: 40, Seasonal: 12, Trend: 0.15, ScaleFactor: 0.01, AddOffset: 0, NLon: 144, NLat: 73},
	"prate": {Mean: 2e-5, Equator: 4e-5, Seasonal: 1e-5, Trend: 1e-7, ScaleFactor: 1e-7, AddOffset: 0.0031765, NLon: 192, NLat: 94},
	"rhum":  {Mean: 70, Equator: 10, Seasonal: 8, Trend: -0.2, ScaleFactor: 0.01, AddOffset: 302.65, NLon: 144, NLat: 73},
	"wspd":  {Mean: 6, Equator: -2, Seasonal: 1.5, Trend: 0.05, ScaleFactor: 0.001, AddOffset: 0, NLon: 144, NLat: 73},
}

func main() {
	// Command line flags
	outDir := flag.String("out", "./data", "Output directory for NetCDF files")
	vars := flag.String("vars", "air,prate,rhum,wspd", "Comma-separated variables to generate")
	startStr := flag.String("start", "1948-01-01", "First month (YYYY-MM-DD)")
	months := flag.Int("months", 12*63, "Number of monthly steps")
	missing := flag.Float64("missing", 0, "Fraction of samples replaced by the fill value")
	seed := flag.Int64("seed", 1, "Random seed for noise and missing samples")
	flag.Parse()

	start, err := time.Parse(time.DateOnly, *startStr)
	if err != nil {
		log.Fatalf("Invalid -start: %v", err)
	}
	if *months < 1 {
		log.Fatalf("-months must be positive")
	}
	if *missing < 0 || *missing >= 1 {
		log.Fatalf("-missing must be in [0, 1)")
	}

	rng := rand.New(rand.NewSource(*seed))
	for _, name := range strings.Split(*vars, ",") {
		name = strings.TrimSpace(name)
		info, ok := domain.GetVariableInfo(name)
		if !ok {
			log.Fatalf("Unknown variable: %s", name)
		}
		f := fields[name]

		s := synthesize(name, info.Units, f, start, *months, *missing, rng)
		path := filepath.Join(*outDir, info.FileName)
		if err := ncep.WriteFile(path, s); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		log.Printf("Generated %s (%d months, %d x %d grid)", path, *months, f.NLon, f.NLat)
	}

	log.Printf("Files created in: %s", *outDir)
}

// synthesize builds a smooth latitude profile with an annual cycle, a linear
// trend and a little noise.
func synthesize(name, units string, f field, start time.Time, months int, missingFrac float64, rng *rand.Rand) ncep.Synthetic {
	codec := domain.DefaultTimeCodec()

	// Latitudes run north to south as in the reanalysis files.
	lat := make([]float64, f.NLat)
	for j := range lat {
		lat[j] = 90 - float64(j)*180/float64(f.NLat-1)
	}
	lon := make([]float64, f.NLon)
	for i := range lon {
		lon[i] = float64(i) * 360 / float64(f.NLon)
	}

	s := ncep.Synthetic{
		Name:        name,
		Units:       units,
		Lat:         lat,
		Lon:         lon,
		ScaleFactor: f.ScaleFactor,
		AddOffset:   f.AddOffset,
		Time:        make([]float64, months),
		Values:      make([][][]float64, months),
	}

	for t := 0; t < months; t++ {
		ts := start.AddDate(0, t, 0)
		s.Time[t] = codec.FromCalendar(ts)
		season := math.Cos(2 * math.Pi * float64(ts.Month()-1) / 12)
		decades := float64(t) / 120

		slice := make([][]float64, f.NLon)
		for i := range slice {
			slice[i] = make([]float64, f.NLat)
			for j := range slice[i] {
				if missingFrac > 0 && rng.Float64() < missingFrac {
					slice[i][j] = math.NaN()
					continue
				}
				phi := lat[j] * math.Pi / 180
				hemisphere := math.Copysign(1, lat[j])
				v := f.Mean +
					f.Equator*math.Cos(phi) +
					f.Seasonal*season*hemisphere*math.Abs(math.Sin(phi)) +
					f.Trend*decades +
					0.02*f.Equator*math.Sin(lon[i]*math.Pi/90) +
					0.01*math.Abs(f.Equator)*rng.NormFloat64()
				slice[i][j] = v
			}
		}
		s.Values[t] = slice
	}
	return s
}

func init() {
	log.SetFlags(0)
	log.SetPrefix("gridgen: ")
}
