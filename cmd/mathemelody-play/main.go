package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hajimehoshi/oto"

	"mathemelody/internal/eval"
	"mathemelody/internal/render"
	"mathemelody/internal/synth"
	"mathemelody/pkg/models"
)

const otoBufferSize = 8192

func main() {
	server := flag.String("server", "", "Fetch the composition from a running server at this base URL (requires -id).")
	id := flag.Int("id", 0, "Composition ID to fetch from the server.")
	loops := flag.Int("loops", 1, "Number of times to loop the grid.")
	wavOut := flag.String("wav", "", "Render to this .wav file instead of playing.")
	graph := flag.Bool("graph", false, "Print the first slot's curve before playing.")
	flag.Usage = printUsage
	flag.Parse()

	if *server == "" && flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	retval := 0
	if *server != "" {
		doc, err := fetchComposition(*server, *id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not fetch composition %d: %v\n", *id, err)
			os.Exit(1)
		}
		if err := process(*doc, *loops, *wavOut, *graph); err != nil {
			fmt.Fprintf(os.Stderr, "could not play composition %d: %v\n", *id, err)
			retval = 1
		}
	}
	for _, filename := range flag.Args() {
		doc, err := loadComposition(filename)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not read file %v: %v\n", filename, err)
			retval = 1
			continue
		}
		if err := process(*doc, *loops, *wavOut, *graph); err != nil {
			fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", filename, err)
			retval = 1
		}
	}
	os.Exit(retval)
}

// process renders one composition and either writes it to disk or plays it.
func process(doc models.CompositionFile, loops int, wavOut string, graph bool) error {
	if doc.Title != "" {
		fmt.Printf("%s  (%d bpm, %s)\n", doc.Title, doc.Settings.Tempo, doc.Settings.WaveType)
	}
	if graph && len(doc.Equations) > 0 {
		printGraph(doc.Equations[0])
	}

	buffer, err := render.Render(doc, loops, func(index int, err error) {
		fmt.Fprintf(os.Stderr, "slot %d: %v\n", index+1, err)
	})
	if err != nil {
		return err
	}

	if wavOut != "" {
		return render.WriteWAV(wavOut, buffer)
	}
	return play(buffer)
}

// play streams the rendered buffer to the default audio device and blocks
// until it has drained.
func play(buffer []float64) error {
	context, err := oto.NewContext(synth.SampleRate, 1, 2, otoBufferSize)
	if err != nil {
		return fmt.Errorf("cannot create oto context: %w", err)
	}
	defer context.Close()

	player := context.NewPlayer()
	if _, err := player.Write(synth.ToPCM16Bytes(buffer)); err != nil {
		player.Close()
		return fmt.Errorf("cannot write to player: %w", err)
	}
	// Write returns once the bytes are buffered; give the device time to
	// drain before closing.
	time.Sleep(time.Duration(len(buffer)) * time.Second / synth.SampleRate)
	return player.Close()
}

// fetchComposition pulls a composition from a server's public API.
func fetchComposition(baseURL string, id int) (*models.CompositionFile, error) {
	if id <= 0 {
		return nil, fmt.Errorf("-server requires a positive -id")
	}
	url := fmt.Sprintf("%s/api/compositions/%d", strings.TrimRight(baseURL, "/"), id)

	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var comp models.Composition
	if err := json.Unmarshal(body, &comp); err != nil {
		return nil, err
	}
	return &models.CompositionFile{
		Title:       comp.Title,
		Description: comp.Description,
		Equations:   comp.Equations,
		Settings:    comp.Settings,
		Public:      comp.Public,
	}, nil
}

// loadComposition reads a composition document from disk.
func loadComposition(filename string) (*models.CompositionFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var doc models.CompositionFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// graphGlyphs maps a sample's height to a character, lowest to highest.
var graphGlyphs = []rune("▁▂▃▄▅▆▇█")

// printGraph draws an expression's curve as a one-line sparkline. Absent
// samples (evaluation failures) print as spaces.
func printGraph(expr string) {
	samples := eval.Graph(expr)

	min, max := 0.0, 0.0
	first := true
	for _, s := range samples {
		if !s.OK {
			continue
		}
		if first || s.Value < min {
			min = s.Value
		}
		if first || s.Value > max {
			max = s.Value
		}
		first = false
	}
	if first {
		fmt.Printf("%s: no plottable samples\n", expr)
		return
	}

	var sb strings.Builder
	for _, s := range samples {
		if !s.OK {
			sb.WriteRune(' ')
			continue
		}
		idx := 0
		if max > min {
			idx = int((s.Value - min) / (max - min) * float64(len(graphGlyphs)-1))
		}
		sb.WriteRune(graphGlyphs[idx])
	}
	fmt.Printf("%s  [%s]\n", sb.String(), expr)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Mathemelody command line player for composition .json files.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
