package errx_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Abraxas-365/workq/pkg/errx"
)

var testErrors = errx.NewRegistry("TEST")

var (
	codeMissing = testErrors.Register("MISSING", errx.TypeNotFound, 404, "Thing not found")
	codeStale   = testErrors.Register("STALE", errx.TypeConflict, 409, "Thing changed")
)

func TestRegistry_PrefixesCodes(t *testing.T) {
	if codeMissing.Code != "TEST_MISSING" {
		t.Fatalf("expected TEST_MISSING, got %s", codeMissing.Code)
	}
	got, ok := testErrors.Get("MISSING")
	if !ok || got != codeMissing {
		t.Fatalf("expected registered code to be retrievable")
	}
	if len(testErrors.Codes()) != 2 {
		t.Fatalf("expected 2 codes, got %d", len(testErrors.Codes()))
	}
}

func TestHasCode_FollowsWrappedChain(t *testing.T) {
	inner := testErrors.New(codeMissing).WithDetail("id", "42")
	outer := testErrors.NewWithCause(codeStale, inner)
	wrapped := fmt.Errorf("loading: %w", outer)

	if !errx.HasCode(wrapped, codeStale) {
		t.Fatal("expected outer code to match")
	}
	if !errx.HasCode(wrapped, codeMissing) {
		t.Fatal("expected inner code to match through the cause chain")
	}
	if errx.HasCode(errors.New("plain"), codeMissing) {
		t.Fatal("plain errors never carry a code")
	}
}

func TestIsType(t *testing.T) {
	err := testErrors.New(codeMissing)
	if !errx.IsType(err, errx.TypeNotFound) {
		t.Fatal("expected NOT_FOUND type")
	}
	if errx.IsType(err, errx.TypeTimeout) {
		t.Fatal("did not expect TIMEOUT type")
	}
}

func TestNew_MapsTaxonomyToHTTPStatus(t *testing.T) {
	cases := map[errx.Type]int{
		errx.TypeNotFound:     404,
		errx.TypeTimeout:      408,
		errx.TypeCancelled:    410,
		errx.TypePrecondition: 412,
		errx.TypeHandler:      500,
		errx.TypeExternal:     502,
	}
	for typ, status := range cases {
		if got := errx.New("x", typ).HTTPStatus; got != status {
			t.Fatalf("%s: expected %d, got %d", typ, status, got)
		}
	}
}

func TestWrap_PreservesCodeAndDetails(t *testing.T) {
	base := testErrors.New(codeMissing).WithDetail("jobid", "j1")
	wrapped := errx.Wrap(base, "lookup failed", errx.TypeInternal)

	if wrapped.Code != codeMissing.Code {
		t.Fatalf("expected code %s, got %s", codeMissing.Code, wrapped.Code)
	}
	if wrapped.Details["jobid"] != "j1" {
		t.Fatalf("expected details to be preserved, got %v", wrapped.Details)
	}
	if errx.Wrap(nil, "x", errx.TypeInternal) != nil {
		t.Fatal("wrapping nil must return nil")
	}
}
