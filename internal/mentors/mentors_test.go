package mentors

import "testing"

func TestCatalogIsFixed(t *testing.T) {
	all := All()
	if len(all) != 3 {
		t.Fatalf("expected 3 mentors, got %d", len(all))
	}
	expected := []string{"machiavelli", "napoleon", "aurelius"}
	for i, id := range expected {
		if all[i].ID != id {
			t.Errorf("expected mentor %d to be %s, got %s", i, id, all[i].ID)
		}
	}
}

func TestByID(t *testing.T) {
	m, ok := ByID("aurelius")
	if !ok {
		t.Fatal("expected aurelius to exist")
	}
	if m.Name != "Marcus Aurelius" {
		t.Errorf("unexpected name %q", m.Name)
	}

	if _, ok := ByID("caligula"); ok {
		t.Fatal("did not expect caligula in the catalog")
	}
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0].ID = "mutated"
	if !Exists("machiavelli") {
		t.Fatal("mutating the returned slice must not affect the catalog")
	}
}
