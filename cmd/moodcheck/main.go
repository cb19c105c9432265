package main

// Print the mood detected for each input line:
//   echo "capek banget hari ini" | go run ./cmd/moodcheck
//   go run ./cmd/moodcheck -strategies keyword,fallback "lagi bosen nih"
//   go run ./cmd/moodcheck -catalog data/foods.json "senang banget hari ini"

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"moodfood-backend/internal/bootstrap"
	"moodfood-backend/internal/catalog"
	"moodfood-backend/internal/llm"
	"moodfood-backend/internal/mood"
	"moodfood-backend/internal/shared/config"
	localstore "moodfood-backend/internal/shared/storage/object/local"
)

type checkResult struct {
	Input string `json:"input"`
	mood.Result
	// Matches counts catalog foods for the detected mood when -catalog is set.
	Matches *int   `json:"matches,omitempty"`
	Error   string `json:"error,omitempty"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		exitErr(err.Error())
	}

	strategies := flag.String("strategies", "", "Comma-separated strategies (external,keyword,fallback)")
	offline := flag.Bool("offline", false, "Skip the LLM provider even when configured")
	catalogPath := flag.String("catalog", "", "JSON or YAML catalog to count matches against")
	flag.Parse()

	var classifier mood.Classifier
	if !*offline {
		provider, err := bootstrap.NewProvider(cfg)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "provider disabled: %v\n", err)
		case provider != nil:
			classifier = llm.NewRetrying(provider)
		}
	}

	detector := mood.NewDetector(nil, classifier)
	detector.Location = cfg.Location()
	if cfg.MoodClassifierTimeout > 0 {
		detector.ExternalTimeout = cfg.MoodClassifierTimeout
	}

	inputs := flag.Args()
	if len(inputs) == 0 {
		inputs, err = readLines(os.Stdin)
		if err != nil {
			exitErr(err.Error())
		}
	}

	ctx := context.Background()
	var foods *catalog.Cache
	if *catalogPath != "" {
		foods = catalog.NewCache(&catalog.ObjectSource{
			Store: localstore.New(filepath.Dir(*catalogPath)),
			Key:   filepath.Base(*catalogPath),
		})
		if err := foods.Load(ctx); err != nil {
			exitErr(err.Error())
		}
	}

	if err := classifyInputs(ctx, detector, foods, splitNames(*strategies), inputs, os.Stdout); err != nil {
		exitErr(err.Error())
	}
}

func classifyInputs(ctx context.Context, d *mood.Detector, foods *catalog.Cache, names []string, inputs []string, out io.Writer) error {
	selected, err := d.ParseStrategies(names)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	for _, input := range inputs {
		row := checkResult{Input: input}
		res, err := d.Detect(ctx, input, selected...)
		if err != nil {
			row.Error = err.Error()
		} else {
			row.Result = res
			if foods != nil {
				if n, err := foods.TotalForMood(res.Mood); err == nil {
					row.Matches = &n
				}
			}
		}
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func splitNames(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func exitErr(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
