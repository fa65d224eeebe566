package service

import "encoding/json"

// ManifestStore is the structured result of reading a provenance
// manifest back out of an asset. The codec produces it; this core
// treats it as an opaque aggregate and only ever checks whether it is
// empty.
type ManifestStore struct {
	// ActiveManifest is the label of the manifest describing the
	// asset's most recent claim.
	ActiveManifest string `json:"active_manifest"`

	// Manifests maps manifest labels to the codec's JSON rendering of
	// each manifest.
	Manifests map[string]json.RawMessage `json:"manifests"`

	// ValidationStatus carries any validation findings the codec
	// reported while reading the store.
	ValidationStatus []json.RawMessage `json:"validation_status,omitempty"`
}

// IsEmpty returns true if the store contains no manifests.
func (store *ManifestStore) IsEmpty() bool {
	return store == nil || len(store.Manifests) == 0
}

func (store *ManifestStore) ToJSON() (string, error) {
	data, err := json.Marshal(store)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func ManifestStoreFromJSON(jsonData string) (*ManifestStore, error) {
	store := &ManifestStore{}
	err := json.Unmarshal([]byte(jsonData), store)
	if err != nil {
		return nil, err
	}
	return store, nil
}
