package importer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shop-lifecycle/internal/errors"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// ParseCatalog reads a product dataset. The document is either a list of
// products or an object with a "products" list.
func ParseCatalog(path string) ([]ProductRecord, error) {
	var products []ProductRecord
	if err := decodeDataset(path, "products", &products); err != nil {
		return nil, err
	}
	for i, p := range products {
		if err := p.Validate(); err != nil {
			return nil, invalidRecord(path, i, err)
		}
	}
	return products, nil
}

// ParseLocations reads a store location dataset. The document is either a
// list of locations or an object with a "locations" list.
func ParseLocations(path string) ([]LocationRecord, error) {
	var locations []LocationRecord
	if err := decodeDataset(path, "locations", &locations); err != nil {
		return nil, err
	}
	for i, l := range locations {
		if err := l.Validate(); err != nil {
			return nil, invalidRecord(path, i, err)
		}
	}
	return locations, nil
}

func decodeDataset(path, key string, out interface{}) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewAppError(errors.ErrorTypeValidation, "dataset file not found", err).
				WithContext("file", path).
				WithUserMessage(fmt.Sprintf("Dataset file %s does not exist", path))
		}
		return errors.NewAppError(errors.ErrorTypeValidation, "failed to read dataset file", err).
			WithContext("file", path)
	}

	data, err := normalizeDocument(path, raw)
	if err != nil {
		return malformed(path, err)
	}

	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
		return malformed(path, fmt.Errorf("document is empty"))
	case data[0] == '[':
		if err := json.Unmarshal(data, out); err != nil {
			return malformed(path, err)
		}
	case data[0] == '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return malformed(path, err)
		}
		list, ok := wrapper[key]
		if !ok {
			return malformed(path, fmt.Errorf("object has no %q list", key))
		}
		if err := json.Unmarshal(list, out); err != nil {
			return malformed(path, err)
		}
	default:
		return malformed(path, fmt.Errorf("top level must be a list or an object"))
	}
	return nil
}

// normalizeDocument returns the document as JSON. YAML input is decoded and
// re-encoded so both formats share one set of struct tags.
func normalizeDocument(path string, raw []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, nil
		}
		return json.Marshal(doc)
	case ".json", "":
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported dataset extension %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

func malformed(path string, cause error) error {
	return errors.NewAppError(errors.ErrorTypeValidation, "malformed dataset", cause).
		WithContext("file", path).
		WithUserMessage(fmt.Sprintf("Could not parse %s: %v", path, cause))
}

func invalidRecord(path string, index int, cause error) error {
	return errors.NewAppError(errors.ErrorTypeValidation, "invalid dataset record", cause).
		WithContext("file", path).
		WithContext("record", index+1).
		WithUserMessage(fmt.Sprintf("Record %d in %s is invalid: %v", index+1, path, cause))
}
