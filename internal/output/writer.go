// Package output transforms candle rows into the JSON export document and
// writes it to local disk or object storage under {request_id}.json.
package output

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/217th/tda-bq-marketdata-exporter/internal/domain/models"
	apperrors "github.com/217th/tda-bq-marketdata-exporter/internal/errors"
	applogger "github.com/217th/tda-bq-marketdata-exporter/pkg/logger"
)

// Record is one exported candle row.
type Record struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Metadata describes the request that produced the export.
type Metadata struct {
	RequestID        string         `json:"request_id"`
	RequestTimestamp string         `json:"request_timestamp"`
	Symbol           string         `json:"symbol"`
	Timeframe        string         `json:"timeframe"`
	QueryType        string         `json:"query_type"`
	QueryParameters  map[string]any `json:"query_parameters"`
}

// Document is the complete export payload.
type Document struct {
	Metadata Metadata `json:"metadata"`
	Data     []Record `json:"data"`
}

const dateLayout = "2006-01-02T15:04:05Z"

// Transform converts candle rows to export records, formatting timestamps
// as UTC ISO strings.
func Transform(candles []models.Candle) []Record {
	records := make([]Record, 0, len(candles))
	for _, c := range candles {
		records = append(records, Record{
			Date:   c.Timestamp.UTC().Format(dateLayout),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	return records
}

// objectStore uploads a staged local file and returns a download URL.
type objectStore interface {
	Upload(ctx context.Context, localPath, objectName string) (string, error)
}

// Writer saves export documents. With an uploader configured the document is
// staged to a temp file, uploaded, and the temp file removed; otherwise it
// is written into the output directory.
type Writer struct {
	dir   string
	store objectStore
	l     *applogger.Logger
}

func NewWriter(dir string, uploader *Uploader, l *applogger.Logger) *Writer {
	if dir == "" {
		dir = "."
	}
	w := &Writer{dir: dir, l: l}
	if uploader != nil {
		w.store = uploader
	}
	return w
}

// Save writes the document as {requestID}.json. It returns the saved path
// (the object name when uploaded, since the staging file is removed) and,
// when uploaded to object storage, a download URL.
func (w *Writer) Save(ctx context.Context, requestID string, doc Document) (string, string, error) {
	filename := requestID + ".json"

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.KindOutputIO, "encode output document", err)
	}

	if w.store != nil {
		tempPath := filepath.Join(os.TempDir(), filename)
		if err := writeFile(tempPath, payload); err != nil {
			return "", "", err
		}

		url, err := w.store.Upload(ctx, tempPath, filename)
		if err != nil {
			_ = os.Remove(tempPath)
			return "", "", err
		}
		_ = os.Remove(tempPath)

		w.l.Info("output uploaded to object storage",
			applogger.String("object", filename),
			applogger.Int("records", len(doc.Data)),
			applogger.String("url", url),
		)
		return filename, url, nil
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", "", apperrors.Wrap(apperrors.KindOutputIO, "create output directory", err).
			WithContext("output_dir", w.dir)
	}

	path := filepath.Join(w.dir, filename)
	if err := writeFile(path, payload); err != nil {
		return "", "", err
	}

	w.l.Info("output file saved",
		applogger.String("path", path),
		applogger.Int("records", len(doc.Data)),
		applogger.Int("size_bytes", len(payload)),
	)
	return path, "", nil
}

func writeFile(path string, payload []byte) error {
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return apperrors.Wrap(apperrors.KindOutputIO, "write output file", err).
			WithContext("path", path)
	}
	return nil
}
