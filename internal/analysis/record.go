package analysis

// CrossReference is a related passage with a note on how it connects.
type CrossReference struct {
	Verse       string `json:"verse"`
	Explanation string `json:"explanation"`
}

// Record is the canonical analysis shown to users. CrossReferences is never
// nil; it usually holds two entries but may hold any number.
type Record struct {
	HistoricalContext string           `json:"historicalContext"`
	LinguisticLens    string           `json:"linguisticLens"`
	CrossReferences   []CrossReference `json:"crossReferences"`
}
