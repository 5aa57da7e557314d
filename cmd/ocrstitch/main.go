// ocrstitch is a command-line tool for running block-level OCR jobs over
// annotated documents.
//
// The tool reads a layout JSON describing annotated blocks, crops them out
// of pre-rendered page images, batches text and table blocks into strip
// composites with armored separator bands, submits the composites to the
// configured OCR backend and reconciles the responses back to blocks. The
// reconciled results can be saved as JSON and exported as a searchable
// PDF, a block-level hOCR document and an HTML review report.
//
// Configuration:
//
// The tool requires a YAML configuration file selecting the OCR backend:
//
//	vision:
//	  backend: "openai"       # openai | ollama | anthropic | docai | tesseract | noop
//	  model: "gpt-4o"
//	pipeline:
//	  concurrency: 4
//	  retry_passes: 1
//
// Usage:
//
//	ocrstitch -config config.yml -layout layout.json -pages ./pages [options]
//
// Required flags:
//
//	-config string  Path to the YAML configuration file
//	-layout string  Path to the layout JSON file
//	-pages string   Directory with rendered page images
//
// Output options (at least one required):
//
//	-results string Path to save reconciled results JSON
//	-pdf string     Path to save the searchable PDF
//	-hocr string    Path to save the hOCR document
//	-report string  Path to save the HTML review report
//
// Other options:
//
//	-pattern string Page image filename pattern (default "page-%04d.png")
//	-debug          Render the PDF text layer visibly for inspection
//
// Authentication:
//
// API backends read their keys from the config file or the environment
// (OPENAI_API_KEY, ANTHROPIC_API_KEY, OLLAMA_HOST). The docai backend uses
// the GOOGLE_APPLICATION_CREDENTIALS environment variable.
//
// Example:
//
//	ocrstitch -config config.yml -layout scan.json -pages ./pages \
//	  -results scan-results.json -pdf scan_searchable.pdf -report scan.html
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/ocrstitch/ocrstitch/pkg/block"
	"github.com/ocrstitch/ocrstitch/pkg/export"
	"github.com/ocrstitch/ocrstitch/pkg/pipeline"
	"github.com/ocrstitch/ocrstitch/pkg/vision"
	"github.com/ocrstitch/ocrstitch/pkg/vision/tesseract"
)

type yamlConfig struct {
	Vision    vision.Config   `yaml:"vision"`
	Pipeline  pipeline.Config `yaml:"pipeline"`
	Tesseract struct {
		Languages []string `yaml:"languages"`
	} `yaml:"tesseract"`
}

// loadConfig reads the YAML configuration file.
func loadConfig(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, err
	}
	return &yc, nil
}

// buildEngine constructs the configured OCR backend. Tesseract is wired
// here rather than in the vision factory so that library consumers never
// pull in the cgo dependency.
func buildEngine(ctx context.Context, cfg *yamlConfig) (vision.Engine, error) {
	if cfg.Vision.Backend == "tesseract" {
		return tesseract.New(cfg.Tesseract.Languages...), nil
	}
	return vision.New(ctx, cfg.Vision)
}

// pageCount derives the number of pages a job spans.
func pageCount(l *block.Layout) int {
	n := l.Pages
	for _, b := range l.Blocks {
		if b.Page+1 > n {
			n = b.Page + 1
		}
	}
	return n
}

func main() {
	// Required flags.
	configPath := flag.String("config", "", "Path to the config YAML file (required)")
	layoutPath := flag.String("layout", "", "Path to the layout JSON file (required)")
	pagesDir := flag.String("pages", "", "Directory with rendered page images (required)")

	// Output flags
	resultsPath := flag.String("results", "", "Path to save reconciled results JSON")
	pdfPath := flag.String("pdf", "", "Path to save the searchable PDF")
	hocrPath := flag.String("hocr", "", "Path to save the hOCR document")
	reportPath := flag.String("report", "", "Path to save the HTML review report")

	// Other options
	pagePattern := flag.String("pattern", "", "Page image filename pattern (default page-%04d.png)")
	debug := flag.Bool("debug", false, "Render the PDF text layer visibly for inspection")

	flag.Parse()

	// Create a map of provided flags to validate
	providedFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		providedFlags[f.Name] = true
	})

	for _, required := range []struct {
		name  string
		value string
	}{
		{"config", *configPath},
		{"layout", *layoutPath},
		{"pages", *pagesDir},
	} {
		if required.value == "" {
			fmt.Fprintf(os.Stderr, "Error: -%s flag is required\n", required.name)
			fmt.Fprintln(os.Stderr, "Usage:")
			flag.PrintDefaults()
			os.Exit(1)
		}
	}

	// Validate that provided output flags have values
	hasError := false
	validateFlag := func(name string, value string) {
		if providedFlags[name] && value == "" {
			fmt.Fprintf(os.Stderr, "Error: -%s flag requires a value\n", name)
			hasError = true
		}
	}
	validateFlag("results", *resultsPath)
	validateFlag("pdf", *pdfPath)
	validateFlag("hocr", *hocrPath)
	validateFlag("report", *reportPath)
	if hasError {
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *resultsPath == "" && *pdfPath == "" && *hocrPath == "" && *reportPath == "" {
		fmt.Fprintln(os.Stderr, "Error: At least one output flag must be provided (-results, -pdf, -hocr, or -report)")
		fmt.Fprintln(os.Stderr, "Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	layout, err := block.LoadLayout(*layoutPath)
	if err != nil {
		log.Fatalf("Failed to load layout: %v", err)
	}

	provider := block.NewDirProvider(*pagesDir, *pagePattern)

	// Interrupts stop new dispatches; in-flight OCR calls run to completion
	// on a detached deadline before the partial results are saved.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := buildEngine(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build OCR backend: %v", err)
	}
	if closer, ok := engine.(io.Closer); ok {
		defer closer.Close()
	}

	fmt.Printf("Processing %d blocks across %d pages with the %s backend\n",
		len(layout.Blocks), pageCount(layout), engine.Name())

	p := pipeline.New(engine, provider, cfg.Pipeline)
	rs, runErr := p.Run(ctx, layout)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Fatalf("Job failed: %v", runErr)
	}
	if runErr != nil {
		fmt.Println("Job cancelled; saving partial results")
	}

	resolved, missing, failed := rs.Counts()
	fmt.Printf("Resolved %d blocks (%d missing, %d failed)\n", resolved, missing, failed)

	if *resultsPath != "" {
		if err := rs.Save(*resultsPath); err != nil {
			log.Fatalf("Failed to write results: %v", err)
		}
		fmt.Println("Results saved to:", *resultsPath)
	}

	if *pdfPath != "" || *hocrPath != "" || *reportPath != "" {
		// Exports proceed even after cancellation, so page loading runs on
		// a fresh context.
		pages, err := export.CollectPages(context.Background(), provider, pageCount(layout))
		if err != nil {
			log.Fatalf("Failed to collect pages for export: %v", err)
		}
		job := &export.Job{Layout: layout, Results: rs, Pages: pages}

		if *pdfPath != "" {
			pdfCfg := export.DefaultPDFConfig()
			pdfCfg.Debug = *debug
			data, err := export.AssemblePDF(job, pdfCfg)
			if err != nil {
				log.Fatalf("Failed to assemble PDF: %v", err)
			}
			if err := os.WriteFile(*pdfPath, data, 0644); err != nil {
				log.Fatalf("Failed to write PDF: %v", err)
			}
			fmt.Println("Searchable PDF saved to:", *pdfPath)
		}

		if *hocrPath != "" {
			doc, err := export.GenerateHOCR(job)
			if err != nil {
				log.Fatalf("Failed to generate hOCR: %v", err)
			}
			if err := os.WriteFile(*hocrPath, []byte(doc), 0644); err != nil {
				log.Fatalf("Failed to write hOCR: %v", err)
			}
			fmt.Println("hOCR document saved to:", *hocrPath)
		}

		if *reportPath != "" {
			page, err := export.GenerateReport(job)
			if err != nil {
				log.Fatalf("Failed to generate report: %v", err)
			}
			if err := os.WriteFile(*reportPath, []byte(page), 0644); err != nil {
				log.Fatalf("Failed to write report: %v", err)
			}
			fmt.Println("Review report saved to:", *reportPath)
		}
	}

	if runErr != nil {
		os.Exit(1)
	}
}
