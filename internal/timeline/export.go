package timeline

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/blocktrace/blocktrace/internal/model"
)

var exportHeader = []string{
	"#", "Time", "Actor", "Role", "Action", "Location", "Status",
	"Transport", "Distance (km)", "Carbon (kg)", "Cost (USD)",
	"Quality", "Temperature (C)", "Humidity (%)", "Latitude", "Longitude",
	"Batch", "Certification", "Notes", "Hash",
}

// ExportXLSX writes events as a single-sheet workbook named after the
// product. Absent fields are left as empty cells.
func ExportXLSX(w io.Writer, productID string, events []model.TimelineEvent) error {
	f := xlsx.NewFile()

	name := productID
	if name == "" {
		name = "Timeline"
	}
	// Excel caps sheet names at 31 characters.
	if len(name) > 31 {
		name = name[:31]
	}
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().SetString(h)
	}

	for _, ev := range events {
		row := sheet.AddRow()
		row.AddCell().SetInt(ev.Index + 1)
		row.AddCell().SetString(ev.Time.Format(time.RFC3339))
		row.AddCell().SetString(ev.Actor)
		row.AddCell().SetString(ev.Role)
		row.AddCell().SetString(ev.Action)
		row.AddCell().SetString(ev.Location)
		row.AddCell().SetString(ev.Status.Label())
		addString(row, transportString(ev.TransportMode))
		addFloat(row, ev.DistanceKm)
		addFloat(row, ev.CarbonFootprintKg)
		addFloat(row, ev.CostUSD)
		if ev.QualityScore != nil {
			row.AddCell().SetInt(*ev.QualityScore)
		} else {
			row.AddCell()
		}
		addFloat(row, ev.TemperatureCelsius)
		addFloat(row, ev.HumidityPercent)
		addFloat(row, ev.GPSLatitude)
		addFloat(row, ev.GPSLongitude)
		addString(row, ev.BatchNumber)
		addString(row, ev.CertificationHash)
		addString(row, ev.Notes)
		addString(row, ev.BlockchainHash)
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

func addString(row *xlsx.Row, v *string) {
	c := row.AddCell()
	if v != nil {
		c.SetString(*v)
	}
}

func addFloat(row *xlsx.Row, v *float64) {
	c := row.AddCell()
	if v != nil {
		c.SetFloat(*v)
	}
}

func transportString(m *model.TransportMode) *string {
	if m == nil {
		return nil
	}
	s := string(*m)
	return &s
}

