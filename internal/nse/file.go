package nse

import (
	"context"
	"encoding/json"
	"os"

	apperrors "nifty-advisor/internal/errors"
	"nifty-advisor/internal/models"
)

// FileFetcher serves a saved option-chain document. The symbol is ignored.
type FileFetcher struct {
	Path string
}

// FetchOptionChain reads and decodes the file.
func (f FileFetcher) FetchOptionChain(ctx context.Context, _ string) (models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadDocument(f.Path)
}

// ReadDocument loads a raw document saved by `fetch --out` or captured from NSE.
func ReadDocument(path string) (models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewFetchError(StageFile, 0, path, false, err)
	}
	return DecodeDocument(data)
}

// DecodeDocument parses a raw option-chain JSON object.
func DecodeDocument(data []byte) (models.Document, error) {
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewFetchError(StageDecode, 0, "malformed JSON", false, err)
	}
	if len(doc) == 0 {
		return nil, apperrors.NewFetchError(StageDecode, 0, "empty JSON object", false, nil)
	}
	return doc, nil
}
