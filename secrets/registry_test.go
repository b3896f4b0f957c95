package secrets

import "testing"

type fakeProvider struct {
	values map[string]string
}

func (f *fakeProvider) Fetch(key string) (string, error) {
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return "", errNotFound{key}
}

type errNotFound struct{ key string }

func (e errNotFound) Error() string { return "no value for " + e.key }

func TestRegistryFetchUnknownProvider(t *testing.T) {
	r, err := NewRegistryFromJSON(`[]`)
	if err != nil {
		t.Fatalf("NewRegistryFromJSON: %v", err)
	}

	if _, err := r.Fetch("missing", "some-key"); err == nil {
		t.Fatal("expected error for unregistered provider ID")
	}
}

func TestRegistryRejectsDuplicateIDs(t *testing.T) {
	raw := `[
		{"type": "aws-ssm", "id": "dup", "config": {}},
		{"type": "aws-ssm", "id": "dup", "config": {}}
	]`
	if _, err := NewRegistryFromJSON(raw); err == nil {
		t.Fatal("expected error for duplicate provider IDs")
	}
}

func TestRegistryRejectsUnknownProviderType(t *testing.T) {
	raw := `[{"type": "totally-made-up", "id": "p1", "config": {}}]`
	r, err := NewRegistryFromJSON(raw)
	if err != nil {
		t.Fatalf("NewRegistryFromJSON: %v", err)
	}

	if _, err := r.Fetch("p1", "some-key"); err == nil {
		t.Fatal("expected error initializing an unknown provider type")
	}
}
