package trading

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"nifty-advisor/internal/chain"
	apperrors "nifty-advisor/internal/errors"
	"nifty-advisor/internal/models"
	"nifty-advisor/internal/nse"
	"nifty-advisor/pkg/utils"
)

// nseTimestampLayout is the format of records.timestamp, e.g. "20-Mar-2024 15:30:00".
const nseTimestampLayout = "02-Jan-2006 15:04:05"

var fileDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Snapshot is a raw document tagged with the date it was captured.
type Snapshot struct {
	Date   time.Time
	Source string
	Doc    models.Document
}

// LoadSnapshots reads saved documents and orders them by date.
func LoadSnapshots(paths []string) ([]Snapshot, error) {
	snapshots := make([]Snapshot, 0, len(paths))
	for _, path := range paths {
		doc, err := nse.ReadDocument(path)
		if err != nil {
			return nil, err
		}
		date, err := SnapshotDate(doc, path)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, Snapshot{Date: date, Source: path, Doc: doc})
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].Date.Before(snapshots[j].Date)
	})
	return snapshots, nil
}

// SnapshotDate takes the capture time from records.timestamp, falling back
// to a YYYY-MM-DD date in the file name (15:30 IST on that day).
func SnapshotDate(doc models.Document, path string) (time.Time, error) {
	if records, ok := doc[chain.KeyRecords].(map[string]interface{}); ok {
		if ts, ok := records["timestamp"].(string); ok {
			if t, err := time.ParseInLocation(nseTimestampLayout, strings.TrimSpace(ts), utils.IndiaLocation); err == nil {
				return t, nil
			}
		}
	}

	if m := fileDatePattern.FindString(filepath.Base(path)); m != "" {
		if d, err := time.ParseInLocation("2006-01-02", m, utils.IndiaLocation); err == nil {
			return d.Add(15*time.Hour + 30*time.Minute), nil
		}
	}

	return time.Time{}, apperrors.NewValidationError("snapshot", path,
		"no records.timestamp and no YYYY-MM-DD date in the file name")
}
