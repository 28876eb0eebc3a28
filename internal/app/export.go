package service

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/smartinhale/adherence/internal/domain/model"
)

// CSVFilename is the suggested download name for ExportCSV output.
const CSVFilename = "smartinhale_events.csv"

const (
	csvHeader   = "ts,strength,duration,shakeOk,orientationOk"
	isoUTCMilli = "2006-01-02T15:04:05.000Z"
)

// ExportCSV writes stored events newest first. Each value is JSON encoded,
// so the timestamp appears as a quoted ISO-8601 UTC string. Nothing is
// written when the store is empty. It returns the number of rows written.
func (s *Service) ExportCSV(w io.Writer) (int, error) {
	events := s.snapshot()
	if len(events) == 0 {
		return 0, nil
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(csvHeader); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}
	for i, e := range events {
		row, err := csvRow(e)
		if err != nil {
			return i, fmt.Errorf("encode csv row %d: %w", i, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return i, fmt.Errorf("write csv row %d: %w", i, err)
		}
		if _, err := bw.Write(row); err != nil {
			return i, fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return len(events), fmt.Errorf("flush csv: %w", err)
	}
	return len(events), nil
}

func csvRow(e model.Event) ([]byte, error) {
	values := []any{
		time.UnixMilli(e.TS).UTC().Format(isoUTCMilli),
		e.Strength,
		e.Duration,
		e.ShakeOK,
		e.OrientationOK,
	}
	var row []byte
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			row = append(row, ',')
		}
		row = append(row, b...)
	}
	return row, nil
}
