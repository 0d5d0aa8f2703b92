package index

// Field identifies one weighted section of an index entry.
type Field int

const (
	FieldTitle Field = iota
	FieldKeywords
	FieldBody
	NumFields
)

func (f Field) String() string {
	switch f {
	case FieldTitle:
		return "title"
	case FieldKeywords:
		return "keywords"
	case FieldBody:
		return "body"
	default:
		return "unknown"
	}
}

// Document is the searchable projection of an article: one term source per
// field. Body is empty when body indexing is off.
type Document struct {
	ID       string
	Title    string
	Keywords string
	Body     string
}

// Posting records how often a term occurs in each field of one document.
type Posting struct {
	DocID     string
	Frequency [NumFields]int
}

// Total is the term frequency summed across fields.
func (p Posting) Total() int {
	n := 0
	for _, f := range p.Frequency {
		n += f
	}
	return n
}

type PostingList []Posting

// DocStats is the per-document information a ranker needs.
type DocStats struct {
	DocID    string
	Lengths  [NumFields]int
	Sequence uint64
}

// CorpusStats summarises the whole index for length normalisation.
type CorpusStats struct {
	DocCount  int
	AvgLength [NumFields]float64
}
