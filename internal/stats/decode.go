package stats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"airdrop-reconciler/internal/domain"
)

// ErrNonFiniteFigure is reported for NaN and infinite figures.
var ErrNonFiniteFigure = errors.New("figure is not a finite number")

// wireRecord is one object of a remote stats dump. Unknown fields are ignored.
type wireRecord struct {
	Address       string          `json:"address"`
	RevisedTokens json.RawMessage `json:"revisedTokens"`
	TotalTokens   json.RawMessage `json:"totalTokens"`
}

// FigureError describes a remote record whose figures could not be parsed.
// The record is kept without figures, which makes it ambiguous.
type FigureError struct {
	Index   int
	Address domain.Address
	Field   string
	Err     error
}

func (e FigureError) Error() string {
	return fmt.Sprintf("record %d (%s): %s: %v", e.Index, e.Address, e.Field, e.Err)
}

func (e FigureError) Unwrap() error {
	return e.Err
}

// DecodeJSON reads a JSON array of remote stats objects.
// Figures may be JSON numbers or numeric strings; null or absent means not present.
// Records with unparsable figures are returned without figures and reported as
// FigureErrors; only a malformed document is an error.
func DecodeJSON(r io.Reader) ([]domain.RemoteStatRecord, []FigureError, error) {
	var wire []wireRecord
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, nil, fmt.Errorf("decode remote stats: %w", err)
	}

	out := make([]domain.RemoteStatRecord, 0, len(wire))
	var problems []FigureError
	for i, w := range wire {
		rec, ferr := w.record(domain.NewAddress(w.Address))
		if ferr != nil {
			ferr.Index = i
			problems = append(problems, *ferr)
		}
		out = append(out, rec)
	}
	return out, problems, nil
}

// DecodeRecord parses the figures of one stats payload queried for address.
// The payload's own address field, if any, is ignored. An unreadable payload
// or figure yields a record without figures and a non-nil FigureError.
func DecodeRecord(address string, payload json.RawMessage) (domain.RemoteStatRecord, *FigureError) {
	addr := domain.NewAddress(address)

	var w wireRecord
	if err := json.Unmarshal(payload, &w); err != nil {
		return domain.RemoteStatRecord{Address: addr}, &FigureError{Address: addr, Field: "payload", Err: err}
	}
	return w.record(addr)
}

// record resolves the figures of w. totalTokens is only read when
// revisedTokens is absent.
func (w wireRecord) record(addr domain.Address) (domain.RemoteStatRecord, *FigureError) {
	rec := domain.RemoteStatRecord{Address: addr}

	revised, err := parseFigure(w.RevisedTokens)
	if err != nil {
		return rec, &FigureError{Address: addr, Field: "revisedTokens", Err: err}
	}
	if revised != nil {
		rec.RevisedTokens = revised
		return rec, nil
	}

	total, err := parseFigure(w.TotalTokens)
	if err != nil {
		return rec, &FigureError{Address: addr, Field: "totalTokens", Err: err}
	}
	rec.TotalTokens = total
	return rec, nil
}

// LoadFile decodes a remote stats dump from path.
func LoadFile(path string) ([]domain.RemoteStatRecord, []FigureError, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open remote stats: %w", err)
	}
	defer f.Close()
	return DecodeJSON(f)
}

func parseFigure(raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var v float64
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		v = parsed
	} else if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, ErrNonFiniteFigure
	}
	return &v, nil
}
