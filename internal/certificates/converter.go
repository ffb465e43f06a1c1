package certificates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxDocumentSize caps the converter response.
const maxDocumentSize = 20 * 1024 * 1024

// ErrDocumentTooLarge is returned when the converter sends more than the accepted size.
var ErrDocumentTooLarge = errors.New("converted document too large")

// HTTPConverter posts markup to a Chromium-based conversion service
// (Gotenberg-compatible /forms/chromium/convert/html route).
type HTTPConverter struct {
	baseURL  string
	client   *http.Client
	maxBytes int64
	logger   *zap.Logger
}

var _ Converter = (*HTTPConverter)(nil)

// NewHTTPConverter creates a converter for the service at baseURL.
func NewHTTPConverter(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPConverter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPConverter{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxDocumentSize,
		logger:   logger,
	}
}

// Convert uploads markup as index.html and returns the printed PDF.
func (c *HTTPConverter) Convert(ctx context.Context, markup string, widthInches, heightInches float64) ([]byte, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.WriteString(part, markup); err != nil {
		return nil, fmt.Errorf("write markup: %w", err)
	}
	fields := map[string]string{
		"paperWidth":      strconv.FormatFloat(widthInches, 'f', -1, 64),
		"paperHeight":     strconv.FormatFloat(heightInches, 'f', -1, 64),
		"marginTop":       "0",
		"marginBottom":    "0",
		"marginLeft":      "0",
		"marginRight":     "0",
		"printBackground": "true",
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/forms/chromium/convert/html", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("convert request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("convert status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	doc, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if int64(len(doc)) > c.maxBytes {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", ErrDocumentTooLarge, c.maxBytes)
	}
	c.logger.Debug("certificate converted", zap.Int("bytes", len(doc)), zap.Duration("took", time.Since(start)))
	return doc, nil
}
