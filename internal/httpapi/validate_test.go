package httpapi

import (
	"strings"
	"testing"
)

func TestValidateDatacenter_CaseInsensitive(t *testing.T) {
	if err := ValidateDatacenter("Crystal", []string{"crystal", "aether"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDatacenter_RejectsUnknown(t *testing.T) {
	if err := ValidateDatacenter("nowhere", []string{"crystal"}); err == nil {
		t.Fatal("expected error for unknown datacenter")
	}
}

func TestParseItemIDs_Valid(t *testing.T) {
	ids, err := ParseItemIDs("3,1,2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("got %v", ids)
	}
}

func TestParseItemIDs_RejectsEmpty(t *testing.T) {
	if _, err := ParseItemIDs(""); err == nil {
		t.Fatal("expected error for empty itemIds")
	}
}

func TestParseItemIDs_RejectsOver100(t *testing.T) {
	ids := make([]string, 101)
	for i := range ids {
		ids[i] = "1"
	}
	if _, err := ParseItemIDs(strings.Join(ids, ",")); err == nil {
		t.Fatal("expected error for 101 ids")
	}
}

func TestParseItemIDs_RejectsZeroAndTooLarge(t *testing.T) {
	if _, err := ParseItemIDs("0"); err == nil {
		t.Fatal("expected error for id 0")
	}
	if _, err := ParseItemIDs("1000001"); err == nil {
		t.Fatal("expected error for id over 1,000,000")
	}
}

func TestParseItemIDs_RejectsNonDigitShape(t *testing.T) {
	if _, err := ParseItemIDs("1;DROP TABLE"); err == nil {
		t.Fatal("expected error for non-matching shape")
	}
}
