package patents

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/tarlanskakov/patenr-ali-sh/internal/chain"
)

// Export sources.
const (
	SourceBlockchain = "blockchain"
	SourceOffChain   = "off-chain"
)

// ExportRow is one flattened patent in an export.
type ExportRow struct {
	Source      string `json:"source"`
	BlockIndex  *int   `json:"block_index"`
	RecordIndex *int   `json:"record_index"`
	BlockHash   string `json:"block_hash"`
	*Patent
}

// ExportRows flattens the selected patents for export. On-chain rows carry
// their block index and hash; off-chain rows carry their position in the
// off-chain list.
func (s *Service) ExportRows(includeChain, includeOffChain bool) []ExportRow {
	rows := []ExportRow{}
	if includeChain {
		for _, b := range s.ledger.Blocks() {
			if b.Index == 0 {
				continue
			}
			p, ok := FromBlock(b)
			if !ok {
				continue
			}
			idx := b.Index
			rows = append(rows, ExportRow{Source: SourceBlockchain, BlockIndex: &idx, BlockHash: b.Hash, Patent: p})
		}
	}
	if includeOffChain {
		s.mu.RLock()
		for i, p := range s.offChain {
			i := i
			cp := *p
			rows = append(rows, ExportRow{Source: SourceOffChain, RecordIndex: &i, Patent: &cp})
		}
		s.mu.RUnlock()
	}
	return rows
}

var csvHeader = []string{
	"source", "block_index", "record_index", "block_hash",
	"patent_id", "title", "description", "inventor", "patent_type", "priority", "status",
	"doc_hash", "estimated_value", "keywords", "related_patents", "collaboration", "funding_source",
	"is_on_blockchain", "verification_score", "created_by", "file_name", "file_size", "timestamp",
}

// WriteCSV writes rows as CSV with a header line.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		p := r.Patent
		rec := []string{
			r.Source, optInt(r.BlockIndex), optInt(r.RecordIndex), r.BlockHash,
			p.ID, p.Title, p.Description, p.Inventor, p.PatentType, string(p.Priority), string(p.Status),
			p.DocHash, strconv.FormatFloat(p.EstimatedValue, 'f', -1, 64), p.Keywords, p.RelatedPatents,
			p.Collaboration, p.FundingSource,
			strconv.FormatBool(p.OnChain), strconv.Itoa(p.VerificationScore), p.CreatedBy, p.FileName,
			strconv.FormatInt(p.FileSize, 10), chain.FormatTimestamp(p.Timestamp),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %s: %w", p.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes rows as an indented JSON array.
func WriteJSON(w io.Writer, rows []ExportRow) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// FileSize renders a byte count for humans: "512 B", "1.5 KB", "2.0 MB".
func FileSize(n int64) string {
	const unit = 1024
	switch {
	case n < unit:
		return fmt.Sprintf("%d B", n)
	case n < unit*unit:
		return fmt.Sprintf("%.1f KB", float64(n)/unit)
	case n < unit*unit*unit:
		return fmt.Sprintf("%.1f MB", float64(n)/(unit*unit))
	default:
		return fmt.Sprintf("%.1f GB", float64(n)/(unit*unit*unit))
	}
}
