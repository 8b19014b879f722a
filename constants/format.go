package constants

// ArtifactFormat selects the encoder for a work item's result set.
type ArtifactFormat string

const (
	FormatCSV  ArtifactFormat = "CSV"
	FormatXLSX ArtifactFormat = "XLSX"
)

// ArtifactFormats lists the formats accepted in work-item options.
var ArtifactFormats = []ArtifactFormat{FormatCSV, FormatXLSX}

// AsStrings returns the accepted formats as plain strings, for schema enums.
func AsStrings() []string {
	out := make([]string, len(ArtifactFormats))
	for i, f := range ArtifactFormats {
		out[i] = string(f)
	}
	return out
}

// Ext maps a format to its file extension (without the leading dot).
func (f ArtifactFormat) Ext() string {
	switch f {
	case FormatXLSX:
		return "xlsx"
	default:
		return "csv"
	}
}
