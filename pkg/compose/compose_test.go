package compose

import (
	"errors"
	"reflect"
	"testing"
)

func TestServices(t *testing.T) {
	doc := `
version: "3"
services:
  web:
    image: nginx
    ports:
      - "${RHPORT}:80"
  db:
    image: postgres
`
	names, err := Services(doc)
	if err != nil {
		t.Fatalf("services: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"db", "web"}) {
		t.Fatalf("unexpected services %v", names)
	}
}

func TestServicesEmptyAndInvalid(t *testing.T) {
	names, err := Services("")
	if err != nil || len(names) != 0 {
		t.Fatalf("expected no services for empty doc, got %v, %v", names, err)
	}
	if _, err := Services("- a\n- b\n"); !errors.Is(err, ErrNotMapping) {
		t.Fatalf("expected ErrNotMapping, got %v", err)
	}
	if _, err := Services("services: [\n"); err == nil {
		t.Fatalf("expected parse error")
	}
}
