package domain

// ExportRow is a single row in a trips export (CSV or printable report).
// It is an ephemeral, denormalized view of one Trip with resolved addresses;
// rows are built at export time and never persisted.
//
// All date fields use DisplayTimeLayout. DistanceTravelled and Duration are
// pre-formatted strings ("12.5 km", "42 min") because the export surface is
// meant for humans, not further processing.
type ExportRow struct {
	Vehicle           string
	StartDate         string
	EndDate           string
	StartAddress      string
	EndAddress        string
	DistanceTravelled string
	Duration          string

	// Raw coordinates of the first and last position of the trip.
	StartLatitude  float64
	StartLongitude float64
	EndLatitude    float64
	EndLongitude   float64
}
