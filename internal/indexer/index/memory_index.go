package index

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Knowledge-Base-Platform/internal/indexer/tokenizer"
)

var ErrDocumentExists = errors.New("document already indexed")

type docEntry struct {
	seq     uint64
	lengths [NumFields]int
	terms   []string
}

// MemoryIndex is an inverted index from term to per-document postings.
// Each document remembers the sequence number of its insertion, which
// breaks ranking ties.
type MemoryIndex struct {
	mu       sync.RWMutex
	postings map[string]map[string]*Posting
	docs     map[string]*docEntry
	totalLen [NumFields]int
	nextSeq  uint64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		postings: make(map[string]map[string]*Posting),
		docs:     make(map[string]*docEntry),
	}
}

func analyze(doc Document) (map[string]*Posting, [NumFields]int) {
	var lengths [NumFields]int
	termData := make(map[string]*Posting)
	sources := [NumFields]string{
		FieldTitle:    doc.Title,
		FieldKeywords: strings.Join(tokenizer.Keywords(doc.Keywords), " "),
		FieldBody:     doc.Body,
	}
	for field, text := range sources {
		if text == "" {
			continue
		}
		tokens := tokenizer.Analyze(text)
		lengths[field] = len(tokens)
		for _, token := range tokens {
			p, exists := termData[token.Term]
			if !exists {
				p = &Posting{DocID: doc.ID}
				termData[token.Term] = p
			}
			p.Frequency[field]++
		}
	}
	return termData, lengths
}

// Add indexes a new document. It fails with ErrDocumentExists, leaving the
// index untouched, if the ID is already present.
func (m *MemoryIndex) Add(doc Document) error {
	termData, lengths := analyze(doc)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.docs[doc.ID]; exists {
		return ErrDocumentExists
	}
	m.insertLocked(doc.ID, termData, lengths, m.nextSeq)
	m.nextSeq++
	return nil
}

// Update replaces the term bag of doc. With expunge the old entry is removed
// first and the document moves to the end of the insertion order; without it
// the document keeps its original slot. Absent documents are inserted.
func (m *MemoryIndex) Update(doc Document, expunge bool) {
	termData, lengths := analyze(doc)

	m.mu.Lock()
	defer m.mu.Unlock()
	seq := m.nextSeq
	if old, exists := m.docs[doc.ID]; exists {
		if !expunge {
			seq = old.seq
		}
		m.removeLocked(doc.ID, old)
	}
	if seq == m.nextSeq {
		m.nextSeq++
	}
	m.insertLocked(doc.ID, termData, lengths, seq)
}

// Remove drops a document. It reports whether anything was removed.
func (m *MemoryIndex) Remove(docID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, exists := m.docs[docID]
	if !exists {
		return false
	}
	m.removeLocked(docID, old)
	return true
}

func (m *MemoryIndex) insertLocked(docID string, termData map[string]*Posting, lengths [NumFields]int, seq uint64) {
	entry := &docEntry{seq: seq, lengths: lengths, terms: make([]string, 0, len(termData))}
	for term, posting := range termData {
		if _, exists := m.postings[term]; !exists {
			m.postings[term] = make(map[string]*Posting)
		}
		m.postings[term][docID] = posting
		entry.terms = append(entry.terms, term)
	}
	for f := range lengths {
		m.totalLen[f] += lengths[f]
	}
	m.docs[docID] = entry
}

func (m *MemoryIndex) removeLocked(docID string, entry *docEntry) {
	for _, term := range entry.terms {
		docs := m.postings[term]
		delete(docs, docID)
		if len(docs) == 0 {
			delete(m.postings, term)
		}
	}
	for f := range entry.lengths {
		m.totalLen[f] -= entry.lengths[f]
	}
	delete(m.docs, docID)
}

// Postings returns the postings for term ordered by insertion sequence.
func (m *MemoryIndex) Postings(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, exists := m.postings[term]
	if !exists {
		return nil
	}
	result := make(PostingList, 0, len(docs))
	for _, posting := range docs {
		result = append(result, *posting)
	}
	sort.Slice(result, func(i, j int) bool {
		return m.docs[result[i].DocID].seq < m.docs[result[j].DocID].seq
	})
	return result
}

// TermsWithPrefix lists indexed terms starting with prefix, sorted.
func (m *MemoryIndex) TermsWithPrefix(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for term := range m.postings {
		if strings.HasPrefix(term, prefix) {
			out = append(out, term)
		}
	}
	sort.Strings(out)
	return out
}

// Stats returns the per-document stats for docID.
func (m *MemoryIndex) Stats(docID string) (DocStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.docs[docID]
	if !ok {
		return DocStats{}, false
	}
	return DocStats{DocID: docID, Lengths: entry.lengths, Sequence: entry.seq}, true
}

func (m *MemoryIndex) Corpus() CorpusStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cs := CorpusStats{DocCount: len(m.docs)}
	if cs.DocCount == 0 {
		return cs
	}
	for f := range m.totalLen {
		cs.AvgLength[f] = float64(m.totalLen[f]) / float64(cs.DocCount)
	}
	return cs
}

func (m *MemoryIndex) Contains(docID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.docs[docID]
	return ok
}

// IDs returns every indexed document ID in insertion order.
func (m *MemoryIndex) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.docs[ids[i]].seq < m.docs[ids[j]].seq
	})
	return ids
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *MemoryIndex) TermCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.postings)
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postings = make(map[string]map[string]*Posting)
	m.docs = make(map[string]*docEntry)
	m.totalLen = [NumFields]int{}
	m.nextSeq = 0
}
