package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/predictiond/internal/domain"
)

// SettlementMarketStore provides read access to settled markets for archival
// purposes. It is narrower than domain.MarketStore so callers can supply
// purpose-built adapters.
type SettlementMarketStore interface {
	// ListResolvedBefore returns all resolved markets whose resolution time
	// is strictly before the given cutoff.
	ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.Market, error)
}

// SettlementPredictionStore provides read access to the positions on a
// settled market.
type SettlementPredictionStore interface {
	ListByMarket(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Prediction, error)
}

// settlementRecord is one JSONL line in a settlement archive: the final
// market state together with every position on it.
type settlementRecord struct {
	Market      domain.Market       `json:"market"`
	Predictions []domain.Prediction `json:"predictions"`
}

// ArchiveImpl implements domain.Archiver by querying the stores for settled
// markets, serializing the settlements to JSONL, and uploading the result to
// S3. Each upload is verified with a head request before the archival event
// is recorded.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer      domain.BlobWriter
	reader      domain.BlobReader
	markets     SettlementMarketStore
	predictions SettlementPredictionStore
	audit       domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	markets SettlementMarketStore,
	predictions SettlementPredictionStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:      writer,
		reader:      reader,
		markets:     markets,
		predictions: predictions,
		audit:       audit,
	}
}

// ArchiveSettlements queries all markets resolved before the cutoff, bundles
// each with its positions, serializes the settlements to JSONL, and uploads
// the file to S3 at archive/settlements/YYYY-MM.jsonl. The archival event is
// recorded in the audit log and the count of archived markets is returned.
func (a *ArchiveImpl) ArchiveSettlements(ctx context.Context, before time.Time) (int64, error) {
	markets, err := a.markets.ListResolvedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements query: %w", err)
	}
	if len(markets) == 0 {
		return 0, nil
	}

	records := make([]settlementRecord, 0, len(markets))
	for _, m := range markets {
		preds, err := a.predictions.ListByMarket(ctx, m.MarketID, domain.ListOpts{})
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive settlements positions for market %d: %w", m.MarketID, err)
		}
		records = append(records, settlementRecord{
			Market:      m,
			Predictions: preds,
		})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements marshal: %w", err)
	}

	path := archivePath("settlements", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements upload: %w", err)
	}

	ok, err := a.reader.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements verify: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("s3blob: archive settlements verify: object %s missing after upload", path)
	}

	count := int64(len(markets))

	if err := a.audit.Log(ctx, "archive.settlements", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive settlements audit log: %w", err)
	}

	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/settlements/2026-03.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
