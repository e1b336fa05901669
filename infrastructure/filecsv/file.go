package filecsv

import (
	"encoding/csv"
	"io"
	"time"

	"my-history/domain/model"
)

var header = []string{"id", "platform", "business", "title", "author", "view_time", "uri"}

// WriteHistory streams records as CSV, one row per record, with view_time
// rendered as RFC 3339.
func WriteHistory(w io.Writer, recs []model.HistoryRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range recs {
		rec := &recs[i]
		row := []string{
			rec.ID,
			rec.Platform,
			rec.Business,
			rec.Title,
			rec.AuthorName,
			time.Unix(rec.ViewTime, 0).UTC().Format(time.RFC3339),
			rec.URI,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
