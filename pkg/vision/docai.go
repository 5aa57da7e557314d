package vision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/encoding/protojson"
)

// docaiEngine runs OCR through a Google Document AI processor. The client
// is long-lived; callers that care about connection teardown can assert
// for io.Closer.
type docaiEngine struct {
	client  *documentai.DocumentProcessorClient
	name    string
	dumpDir string
}

func newDocAI(ctx context.Context, cfg Config) (*docaiEngine, error) {
	if cfg.ProjectID == "" || cfg.Location == "" || cfg.ProcessorID == "" {
		return nil, fmt.Errorf("docai backend requires project_id, location and processor_id")
	}

	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
	opts := []option.ClientOption{option.WithEndpoint(endpoint)}
	credentials := cfg.CredentialsFile
	if credentials == "" {
		credentials = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}

	return &docaiEngine{
		client: client,
		name: fmt.Sprintf("projects/%s/locations/%s/processors/%s",
			cfg.ProjectID, cfg.Location, cfg.ProcessorID),
		dumpDir: cfg.DumpDir,
	}, nil
}

func (e *docaiEngine) Name() string { return "docai" }

func (e *docaiEngine) Close() error { return e.client.Close() }

// Recognize sends the image to the processor and returns the document's
// full text.
func (e *docaiEngine) Recognize(ctx context.Context, req Request) (string, error) {
	procReq := &documentaipb.ProcessRequest{
		Name: e.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  req.Image,
				MimeType: req.MIME,
			},
		},
		SkipHumanReview: true,
	}

	resp, err := e.client.ProcessDocument(ctx, procReq)
	if err != nil {
		return "", fmt.Errorf("failed to process document: %w", err)
	}

	doc := resp.GetDocument()
	if doc == nil {
		return "", fmt.Errorf("empty document in Document AI response")
	}
	e.dump(doc)
	return doc.GetText(), nil
}

// dump writes the raw Document proto as JSON for offline inspection.
func (e *docaiEngine) dump(doc *documentaipb.Document) {
	if e.dumpDir == "" {
		return
	}
	data, err := protojson.Marshal(doc)
	if err != nil {
		return
	}
	name := fmt.Sprintf("docai-%d.json", time.Now().UnixNano())
	_ = os.WriteFile(filepath.Join(e.dumpDir, name), data, 0o644)
}
