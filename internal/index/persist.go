package index

import (
	"encoding/csv"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"normativa-rag/internal/models"
)

const (
	fragmentsFile = "fragments.csv"
	vectorsFile   = "index.gob"
)

var fragmentColumns = []string{"fragment_id", "document_id", "text", "char_start", "char_end", "sequence_index"}

type vectorFile struct {
	Model     string
	Dimension int
	Vectors   [][]float32
}

// Save persists the index as fragments.csv plus index.gob under dir.
// Both files are written under temporary names and renamed afterwards;
// the vector file is renamed last and acts as the activation marker, so
// concurrent readers see either the old index or the new one.
func (ix *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index dir: %w", err)
	}

	fragPath := filepath.Join(dir, fragmentsFile)
	vecPath := filepath.Join(dir, vectorsFile)

	if err := writeFragments(fragPath+".tmp", ix.Fragments); err != nil {
		return err
	}
	if err := writeVectors(vecPath+".tmp", vectorFile{Model: ix.Model, Dimension: ix.Dimension, Vectors: ix.Vectors}); err != nil {
		return err
	}
	if err := os.Rename(fragPath+".tmp", fragPath); err != nil {
		return fmt.Errorf("activating fragment store: %w", err)
	}
	if err := os.Rename(vecPath+".tmp", vecPath); err != nil {
		return fmt.Errorf("activating vector index: %w", err)
	}
	return nil
}

// Load reads a previously persisted index from dir.
func Load(dir string) (*Index, error) {
	fragPath := filepath.Join(dir, fragmentsFile)
	vecPath := filepath.Join(dir, vectorsFile)

	for _, p := range []string{fragPath, vecPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("%w (missing %s)", ErrIndexNotFound, p)
		}
	}

	fragments, err := readFragments(fragPath)
	if err != nil {
		return nil, err
	}
	vf, err := readVectors(vecPath)
	if err != nil {
		return nil, err
	}
	if len(vf.Vectors) != len(fragments) {
		return nil, fmt.Errorf("fragment store has %d rows but vector index has %d entries; rebuild the index", len(fragments), len(vf.Vectors))
	}
	return &Index{Model: vf.Model, Dimension: vf.Dimension, Fragments: fragments, Vectors: vf.Vectors}, nil
}

func writeFragments(path string, fragments []models.Fragment) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing fragment store: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(fragmentColumns); err != nil {
		return err
	}
	for _, frag := range fragments {
		row := []string{
			frag.ID,
			frag.DocumentID,
			frag.Text,
			strconv.Itoa(frag.CharStart),
			strconv.Itoa(frag.CharEnd),
			strconv.Itoa(frag.SequenceIndex),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing fragment store: %w", err)
	}
	return f.Close()
}

func readFragments(path string) ([]models.Fragment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening fragment store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading fragment store: %w", err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("fragment store %s is empty; rebuild the index", path)
	}

	fragments := make([]models.Fragment, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(fragmentColumns) {
			return nil, fmt.Errorf("fragment store row has %d columns, expected %d", len(row), len(fragmentColumns))
		}
		charStart, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, fmt.Errorf("parsing char_start: %w", err)
		}
		charEnd, err := strconv.Atoi(row[4])
		if err != nil {
			return nil, fmt.Errorf("parsing char_end: %w", err)
		}
		seq, err := strconv.Atoi(row[5])
		if err != nil {
			return nil, fmt.Errorf("parsing sequence_index: %w", err)
		}
		fragments = append(fragments, models.Fragment{
			ID:            row[0],
			DocumentID:    row[1],
			Text:          row[2],
			CharStart:     charStart,
			CharEnd:       charEnd,
			SequenceIndex: seq,
		})
	}
	return fragments, nil
}

func writeVectors(path string, vf vectorFile) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing vector index: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(vf); err != nil {
		f.Close()
		return fmt.Errorf("encoding vector index: %w", err)
	}
	return f.Close()
}

func readVectors(path string) (vectorFile, error) {
	var vf vectorFile
	f, err := os.Open(path)
	if err != nil {
		return vf, fmt.Errorf("opening vector index: %w", err)
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(&vf); err != nil {
		return vf, fmt.Errorf("decoding vector index: %w", err)
	}
	return vf, nil
}
