package account

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"WaveSentinel/internal/model"
)

// Store persists account documents by account id. Load of an unknown id
// returns a fresh document funded with model.DefaultCapital.
type Store interface {
	Load(ctx context.Context, id string) (*model.AccountDocument, error)
	Save(ctx context.Context, id string, doc *model.AccountDocument) error
}

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// JSONFileStore keeps one <id>.json file per account under Dir.
type JSONFileStore struct {
	Dir string
}

func NewJSONFileStore(dir string) *JSONFileStore { return &JSONFileStore{Dir: dir} }

func (s *JSONFileStore) path(id string) (string, error) {
	if !validID.MatchString(id) {
		return "", fmt.Errorf("invalid account id %q", id)
	}
	return filepath.Join(s.Dir, id+".json"), nil
}

// Load reads the account. Returns a fresh account if the file doesn't exist.
func (s *JSONFileStore) Load(_ context.Context, id string) (*model.AccountDocument, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return model.NewAccountDocument(model.DefaultCapital), nil
		}
		return nil, fmt.Errorf("read account %s: %w", id, err)
	}
	var doc model.AccountDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse account %s: %w", id, err)
	}
	doc.Normalize()
	return &doc, nil
}

// Save writes the account through a temporary file and a rename.
func (s *JSONFileStore) Save(_ context.Context, id string, doc *model.AccountDocument) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode account %s: %w", id, err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.Dir, err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write account %s: %w", id, err)
	}
	return os.Rename(tmp, p)
}
