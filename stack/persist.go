package stack

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/danielegr/deep-ifs/extraction"
	"github.com/danielegr/deep-ifs/types"
)

const manifestName = "manifest.json"

// manifest lists the stage files of a persisted stack, in stage order.
// It is written last and atomically, so a partially written directory
// never pairs up by accident.
type manifest struct {
	Encoders []string `json:"encoders"`
	Supports []string `json:"supports"`
}

// Save persists every stage as an (encoder-weights, support-mask) file
// pair numbered by stage index, then writes the manifest.
func (s *Stack) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating stack directory %s: %w", dir, err)
	}

	m := manifest{
		Encoders: make([]string, 0, len(s.stages)),
		Supports: make([]string, 0, len(s.stages)),
	}
	for i, st := range s.stages {
		encFile := fmt.Sprintf("encoder_%d.bin", i)
		supFile := fmt.Sprintf("support_%d.json", i)
		if err := st.Extractor.Save(path.Join(dir, encFile)); err != nil {
			return fmt.Errorf("saving stage %d encoder: %w", i, err)
		}
		bs, err := json.Marshal(st.Support)
		if err != nil {
			return fmt.Errorf("marshaling stage %d support: %w", i, err)
		}
		if err := os.WriteFile(path.Join(dir, supFile), bs, 0644); err != nil {
			return fmt.Errorf("saving stage %d support: %w", i, err)
		}
		m.Encoders = append(m.Encoders, encFile)
		m.Supports = append(m.Supports, supFile)
	}

	bs, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling stack manifest: %w", err)
	}
	tmp := path.Join(dir, manifestName+".tmp")
	if err := os.WriteFile(tmp, bs, 0644); err != nil {
		return fmt.Errorf("writing stack manifest: %w", err)
	}
	return os.Rename(tmp, path.Join(dir, manifestName))
}

// Load resets the stack and restores every stage listed in the
// directory's manifest, in stage order. Extractors come back as
// reload-only instances. On any failure the stack is left reset.
func (s *Stack) Load(dir string) error {
	s.Reset()

	bs, err := os.ReadFile(path.Join(dir, manifestName))
	if err != nil {
		return &types.StackLoadError{Dir: dir, Reason: "missing or unreadable manifest"}
	}
	var m manifest
	if err := json.Unmarshal(bs, &m); err != nil {
		return &types.StackLoadError{Dir: dir, Reason: "malformed manifest"}
	}
	if len(m.Encoders) != len(m.Supports) || len(m.Encoders) == 0 {
		return &types.StackLoadError{
			Dir:      dir,
			Reason:   "encoder and support file counts must match and be non-zero",
			Encoders: len(m.Encoders),
			Supports: len(m.Supports),
		}
	}

	for i := range m.Encoders {
		enc, err := extraction.LoadEncoder(path.Join(dir, m.Encoders[i]))
		if err != nil {
			s.Reset()
			return fmt.Errorf("loading stage %d encoder: %w", i, err)
		}
		sbs, err := os.ReadFile(path.Join(dir, m.Supports[i]))
		if err != nil {
			s.Reset()
			return fmt.Errorf("loading stage %d support: %w", i, err)
		}
		var support []bool
		if err := json.Unmarshal(sbs, &support); err != nil {
			s.Reset()
			return fmt.Errorf("parsing stage %d support: %w", i, err)
		}
		if err := s.Add(enc, support); err != nil {
			s.Reset()
			return err
		}
	}
	return nil
}
